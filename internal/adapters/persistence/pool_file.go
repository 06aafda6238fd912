package persistence

import (
	"fmt"
	"os"
	"sort"

	"github.com/bytedance/sonic"

	"github.com/hxuan190/split-router/internal/common"
	"github.com/hxuan190/split-router/internal/domain"
)

// PoolSnapshotFile is the on-disk pool state of one chain at one block,
// loaded by the service and the CLI in place of a node.
type PoolSnapshotFile struct {
	Version     int           `json:"version"`
	ChainID     uint64        `json:"chainId"`
	BlockNumber uint64        `json:"blockNumber"`
	Tokens      []StoredToken `json:"tokens,omitempty"`
	Pools       []StoredPool  `json:"pools"`
}

// PoolSet is a decoded PoolSnapshotFile.
type PoolSet struct {
	ChainID     domain.ChainID
	BlockNumber uint64
	Tokens      []domain.Token
	Pools       []*domain.Pool
}

func NewPoolSnapshotFile(chainID domain.ChainID, block uint64, tokens []domain.Token, pools []*domain.Pool) *PoolSnapshotFile {
	f := &PoolSnapshotFile{
		Version:     SnapshotVersion,
		ChainID:     uint64(chainID),
		BlockNumber: block,
		Pools:       make([]StoredPool, 0, len(pools)),
	}
	for _, t := range tokens {
		f.Tokens = append(f.Tokens, TokenToStored(t))
	}
	sorted := append([]*domain.Pool(nil), pools...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key() < sorted[j].Key() })
	for _, p := range sorted {
		f.Pools = append(f.Pools, PoolToStored(p))
	}
	return f
}

func (f *PoolSnapshotFile) Decode() (*PoolSet, error) {
	if f.Version != SnapshotVersion {
		return nil, common.InvalidConfigf("pool snapshot version %d, want %d", f.Version, SnapshotVersion)
	}
	chainID := domain.ChainID(f.ChainID)
	if _, ok := domain.ChainByID(chainID); !ok {
		return nil, common.InvalidConfigf("pool snapshot chain %d", f.ChainID)
	}
	set := &PoolSet{ChainID: chainID, BlockNumber: f.BlockNumber}
	for _, st := range f.Tokens {
		t, err := StoredToToken(st)
		if err != nil {
			return nil, err
		}
		set.Tokens = append(set.Tokens, t)
	}
	for i, sp := range f.Pools {
		pool, err := StoredToPool(sp)
		if err != nil {
			return nil, fmt.Errorf("pool %d: %w", i, err)
		}
		if pool.Token0.ChainID != chainID {
			return nil, common.InvalidConfigf("pool %d on chain %d in a chain %d snapshot", i, pool.Token0.ChainID, chainID)
		}
		set.Pools = append(set.Pools, pool)
	}
	return set, nil
}

func LoadPoolSnapshotFile(path string) (*PoolSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pool snapshot: %w", err)
	}
	var f PoolSnapshotFile
	if err := sonic.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: pool snapshot %s: %v", common.ErrInvalidConfig, path, err)
	}
	return f.Decode()
}

func WritePoolSnapshotFile(path string, f *PoolSnapshotFile) error {
	data, err := sonic.ConfigStd.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pool snapshot: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
