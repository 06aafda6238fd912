package market

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/hxuan190/split-router/internal/common"
	"github.com/hxuan190/split-router/internal/domain"
	"github.com/hxuan190/split-router/internal/metrics"
	"github.com/hxuan190/split-router/internal/services"
)

var ErrChainNotServed = errors.New("chain not served")

// PoolSet is every known pool of a chain at one block.
type PoolSet struct {
	ChainID     domain.ChainID
	BlockNumber uint64
	Pools       []*domain.Pool
}

type ProviderOptions struct {
	CacheTTL      time.Duration
	RatePerSecond float64
	Burst         int
}

func DefaultProviderOptions() ProviderOptions {
	return ProviderOptions{
		CacheTTL:      15 * time.Second,
		RatePerSecond: 200,
		Burst:         50,
	}
}

// SnapshotPoolProvider serves one protocol's pools from in-memory snapshots.
// Each chain holds exactly one block; Update replaces it and requests still
// pinned to the previous block fail with ErrStaleSnapshot.
type SnapshotPoolProvider struct {
	protocol domain.Protocol
	logger   *services.ServiceLogger
	limiter  *rate.Limiter
	cache    *gocache.Cache

	mu   sync.RWMutex
	sets map[domain.ChainID]PoolSet
}

func NewSnapshotPoolProvider(protocol domain.Protocol, sets []PoolSet, opts ProviderOptions, logger zerolog.Logger) *SnapshotPoolProvider {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultProviderOptions().CacheTTL
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	p := &SnapshotPoolProvider{
		protocol: protocol,
		limiter:  rate.NewLimiter(limit, opts.Burst),
		cache:    gocache.New(opts.CacheTTL, 2*opts.CacheTTL),
		sets:     make(map[domain.ChainID]PoolSet),
	}
	p.logger = services.NewServiceLogger(logger, p)
	for _, s := range sets {
		p.Update(s)
	}
	return p
}

func (p *SnapshotPoolProvider) ID() string {
	return "pool_provider_" + strings.ToLower(p.protocol.String())
}

func (p *SnapshotPoolProvider) Protocol() domain.Protocol {
	return p.protocol
}

// Update installs a new block for a chain, keeping only this provider's protocol.
func (p *SnapshotPoolProvider) Update(set PoolSet) {
	pools := make([]*domain.Pool, 0, len(set.Pools))
	for _, pool := range set.Pools {
		if pool.Protocol == p.protocol && pool.Token0.ChainID == set.ChainID {
			pools = append(pools, pool)
		}
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].Key() < pools[j].Key() })

	p.mu.Lock()
	prev, had := p.sets[set.ChainID]
	p.sets[set.ChainID] = PoolSet{ChainID: set.ChainID, BlockNumber: set.BlockNumber, Pools: pools}
	p.mu.Unlock()

	if had && prev.BlockNumber != set.BlockNumber {
		p.cache.Flush()
	}
	p.logger.Debug().
		Uint64("chain_id", uint64(set.ChainID)).
		Uint64("block", set.BlockNumber).
		Int("pools", len(pools)).
		Msg("pool snapshot installed")
}

func (p *SnapshotPoolProvider) LatestBlock(ctx context.Context, chainID domain.ChainID) (uint64, error) {
	set, err := p.set(chainID)
	if err != nil {
		return 0, err
	}
	return set.BlockNumber, nil
}

func (p *SnapshotPoolProvider) ListPools(ctx context.Context, chainID domain.ChainID, blockNumber uint64) ([]*domain.Pool, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	set, err := p.pinned(chainID, blockNumber)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Pool, len(set.Pools))
	copy(out, set.Pools)
	return out, nil
}

func (p *SnapshotPoolProvider) GetPools(ctx context.Context, chainID domain.ChainID, pairs []domain.TokenPair, blockNumber uint64) (PoolAccessor, error) {
	start := time.Now()
	defer func() {
		metrics.PoolFetchDuration.WithLabelValues(p.protocol.String()).Observe(time.Since(start).Seconds())
	}()

	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	set, err := p.pinned(chainID, blockNumber)
	if err != nil {
		return nil, err
	}

	key := accessorKey(chainID, blockNumber, pairs)
	if cached, ok := p.cache.Get(key); ok {
		return cached.(PoolAccessor), nil
	}

	wanted := make(map[string]struct{}, len(pairs))
	for _, pair := range pairs {
		wanted[pair.Key()] = struct{}{}
	}
	var pools []*domain.Pool
	for _, pool := range set.Pools {
		if _, ok := wanted[pool.Pair().Key()]; ok {
			pools = append(pools, pool)
		}
	}
	accessor := NewPoolAccessor(blockNumber, pools)
	p.cache.SetDefault(key, accessor)
	return accessor, nil
}

func (p *SnapshotPoolProvider) wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s pool fetch: %v", common.ErrProviderTimeout, p.protocol, err)
	}
	return nil
}

func (p *SnapshotPoolProvider) set(chainID domain.ChainID) (PoolSet, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	set, ok := p.sets[chainID]
	if !ok {
		return PoolSet{}, fmt.Errorf("%w: %s pools for chain %d", ErrChainNotServed, p.protocol, chainID)
	}
	return set, nil
}

func (p *SnapshotPoolProvider) pinned(chainID domain.ChainID, blockNumber uint64) (PoolSet, error) {
	set, err := p.set(chainID)
	if err != nil {
		return PoolSet{}, err
	}
	if set.BlockNumber != blockNumber {
		return PoolSet{}, fmt.Errorf("%w: %s pools at block %d, requested %d",
			common.ErrStaleSnapshot, p.protocol, set.BlockNumber, blockNumber)
	}
	return set, nil
}

func accessorKey(chainID domain.ChainID, block uint64, pairs []domain.TokenPair) string {
	keys := make([]string, len(pairs))
	for i, pair := range pairs {
		keys[i] = pair.Key()
	}
	sort.Strings(keys)
	return fmt.Sprintf("%d|%d|%s", chainID, block, strings.Join(keys, ","))
}
