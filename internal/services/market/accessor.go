package market

import (
	"github.com/hxuan190/split-router/internal/domain"
)

type poolAccessor struct {
	block uint64
	pools []*domain.Pool
	byKey map[string]*domain.Pool
}

// NewPoolAccessor indexes pools by key. Later duplicates win.
func NewPoolAccessor(block uint64, pools []*domain.Pool) PoolAccessor {
	a := &poolAccessor{
		block: block,
		byKey: make(map[string]*domain.Pool, len(pools)),
	}
	for _, p := range pools {
		if _, dup := a.byKey[p.Key()]; !dup {
			a.pools = append(a.pools, p)
		}
		a.byKey[p.Key()] = p
	}
	if len(a.pools) != len(pools) {
		for i, p := range a.pools {
			a.pools[i] = a.byKey[p.Key()]
		}
	}
	return a
}

func (a *poolAccessor) GetAllPools() []*domain.Pool {
	out := make([]*domain.Pool, len(a.pools))
	copy(out, a.pools)
	return out
}

func (a *poolAccessor) GetPool(key string) (*domain.Pool, bool) {
	p, ok := a.byKey[key]
	return p, ok
}

func (a *poolAccessor) BlockNumber() uint64 {
	return a.block
}
