package config

import "errors"

// StorageConfig controls quote snapshot persistence.
type StorageConfig struct {
	DBPath           string
	SnapshotsEnabled bool
}

func (sc *StorageConfig) Key() string {
	return STORAGE_CONFIG_KEY
}

func (sc *StorageConfig) Load(env *Env) error {
	var err error
	sc.DBPath = env.GetOrDefault("SNAPSHOT_DB_PATH", "./data/split-router.db")
	if sc.SnapshotsEnabled, err = env.GetBoolOrDefault("SNAPSHOTS_ENABLED", true); err != nil {
		return err
	}
	return sc.Validate()
}

func (sc *StorageConfig) Validate() error {
	if sc.SnapshotsEnabled && sc.DBPath == "" {
		return errors.New("SNAPSHOT_DB_PATH is required when snapshots are enabled")
	}
	return nil
}
