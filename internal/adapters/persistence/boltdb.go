package persistence

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	boltdb "github.com/andrew-solarstorm/bolt-db"
	"github.com/boltdb/bolt"
	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"github.com/hxuan190/split-router/internal/metrics"
	"github.com/hxuan190/split-router/internal/services"
)

const (
	SnapshotsBucket = "quote_snapshots"
	PoolSetsBucket  = "pool_sets"

	DefaultDBPath = "./data/split-router.db"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// Storage keeps quote snapshots by request id and the latest pool set per chain.
type Storage struct {
	db     *boltdb.BoltDatabase
	dbPath string
	logger *services.ServiceLogger
}

func NewStorage(dbPath string, logger zerolog.Logger) (*Storage, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	db := boltdb.NewBoltDatabase(dbPath)
	if db == nil {
		return nil, fmt.Errorf("failed to open database at %s", dbPath)
	}
	err := db.Write(func(tx *bolt.Tx) error {
		for _, name := range []string{SnapshotsBucket, PoolSetsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	s := &Storage{db: db, dbPath: dbPath}
	s.logger = services.NewServiceLogger(logger, s)
	s.logger.Info().Str("path", dbPath).Msg("opened database")
	return s, nil
}

func (s *Storage) ID() string {
	return "storage"
}

func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Storage) SaveSnapshot(snapshot *QuoteSnapshot) error {
	if snapshot.ID == "" {
		metrics.SnapshotSaves.WithLabelValues("error").Inc()
		return errors.New("snapshot without id")
	}
	data, err := snapshot.Encode()
	if err != nil {
		metrics.SnapshotSaves.WithLabelValues("error").Inc()
		return fmt.Errorf("marshal snapshot %s: %w", snapshot.ID, err)
	}
	if err := s.db.Set(SnapshotsBucket, []byte(snapshot.ID), data); err != nil {
		metrics.SnapshotSaves.WithLabelValues("error").Inc()
		return fmt.Errorf("save snapshot %s: %w", snapshot.ID, err)
	}
	metrics.SnapshotSaves.WithLabelValues("ok").Inc()
	s.logger.Debug().Str("id", snapshot.ID).Int("routes", len(snapshot.Routes)).Msg("saved quote snapshot")
	return nil
}

func (s *Storage) LoadSnapshot(id string) (*QuoteSnapshot, error) {
	var data []byte
	// Values are only valid inside the transaction, so copy them out.
	err := s.db.Read(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(SnapshotsBucket)).Get([]byte(id)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	return Decode(data)
}

// ListSnapshots returns up to limit ids in key order, newest last for
// time-ordered ids. A non-positive limit lists everything.
func (s *Storage) ListSnapshots(limit int) ([]string, error) {
	var ids []string
	err := s.db.Read(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(SnapshotsBucket)).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if limit > 0 && len(ids) >= limit {
				break
			}
			ids = append(ids, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return ids, nil
}

// SavePoolSet replaces the stored pool set of the file's chain.
func (s *Storage) SavePoolSet(f *PoolSnapshotFile) error {
	data, err := sonic.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal pool set: %w", err)
	}
	key := []byte(strconv.FormatUint(f.ChainID, 10))
	if err := s.db.Set(PoolSetsBucket, key, data); err != nil {
		return fmt.Errorf("save pool set for chain %d: %w", f.ChainID, err)
	}
	s.logger.Info().Uint64("chain_id", f.ChainID).Uint64("block", f.BlockNumber).Int("pools", len(f.Pools)).Msg("saved pool set")
	return nil
}

// LoadPoolSets decodes every stored pool set. Undecodable entries are
// skipped and logged.
func (s *Storage) LoadPoolSets() ([]*PoolSet, error) {
	raw := make(map[string][]byte)
	err := s.db.ForEach(PoolSetsBucket, func(k, v []byte) error {
		raw[string(k)] = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list pool sets: %w", err)
	}

	sets := make([]*PoolSet, 0, len(raw))
	failed := 0
	for chain, data := range raw {
		var f PoolSnapshotFile
		if err := sonic.Unmarshal(data, &f); err != nil {
			s.logger.Error().Str("chain", chain).Err(err).Msg("failed to unmarshal pool set, skipping")
			failed++
			continue
		}
		set, err := f.Decode()
		if err != nil {
			s.logger.Error().Str("chain", chain).Err(err).Msg("failed to decode pool set, skipping")
			failed++
			continue
		}
		sets = append(sets, set)
	}
	s.logger.Info().Int("stored", len(raw)).Int("loaded", len(sets)).Int("failed", failed).Msg("pool sets loaded")
	return sets, nil
}
