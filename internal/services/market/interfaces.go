package market

import (
	"context"

	"github.com/hxuan190/split-router/internal/domain"
)

// PoolAccessor is a read-only view of the pools fetched for one request.
type PoolAccessor interface {
	GetAllPools() []*domain.Pool
	GetPool(key string) (*domain.Pool, bool)
	BlockNumber() uint64
}

// PoolProvider serves pools of one protocol at a pinned block. Implementations
// must return common.ErrStaleSnapshot when the requested block is no longer
// available and common.ErrProviderTimeout when the context expires.
type PoolProvider interface {
	Protocol() domain.Protocol
	LatestBlock(ctx context.Context, chainID domain.ChainID) (uint64, error)
	ListPools(ctx context.Context, chainID domain.ChainID, blockNumber uint64) ([]*domain.Pool, error)
	GetPools(ctx context.Context, chainID domain.ChainID, pairs []domain.TokenPair, blockNumber uint64) (PoolAccessor, error)
}

// TokenResolver turns a symbol, native name or address into a Token.
type TokenResolver interface {
	Resolve(chainID domain.ChainID, ref string) (domain.Token, error)
}
