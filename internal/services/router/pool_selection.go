package router

import (
	"sort"

	"github.com/hxuan190/split-router/internal/domain"
)

// rankPoolsByLiquidity sorts pools by descending liquidity score, breaking
// ties on pool key so the order is stable across requests.
func rankPoolsByLiquidity(pools []*domain.Pool) []*domain.Pool {
	ranked := make([]*domain.Pool, 0, len(pools))
	for _, p := range pools {
		if p == nil || p.LiquidityScore().Sign() <= 0 {
			continue
		}
		ranked = append(ranked, p)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		c := ranked[i].LiquidityScore().Cmp(ranked[j].LiquidityScore())
		if c != 0 {
			return c > 0
		}
		return ranked[i].Key() < ranked[j].Key()
	})
	return ranked
}

type poolSelector struct {
	ranked   []*domain.Pool
	selected map[string]struct{}
	out      []*domain.Pool
}

// take adds up to n not yet selected pools matching keep, in rank order.
func (s *poolSelector) take(n int, keep func(*domain.Pool) bool) []*domain.Pool {
	if n <= 0 {
		return nil
	}
	var picked []*domain.Pool
	for _, p := range s.ranked {
		if len(picked) >= n {
			break
		}
		if _, ok := s.selected[p.Key()]; ok || !keep(p) {
			continue
		}
		picked = append(picked, p)
	}
	s.add(picked)
	return picked
}

func (s *poolSelector) add(pools []*domain.Pool) {
	for _, p := range pools {
		if _, ok := s.selected[p.Key()]; ok {
			continue
		}
		s.selected[p.Key()] = struct{}{}
		s.out = append(s.out, p)
	}
}

// SelectCandidatePools applies the topN heuristics to one protocol's pool
// universe: direct pools, pools pairing a base token with either side, the
// overall deepest pools, pools touching tokenIn/tokenOut and the second hop
// out of those.
func SelectCandidatePools(universe []*domain.Pool, tokenIn, tokenOut domain.Token, baseTokens []domain.Token, sel domain.ProtocolPoolSelection) []*domain.Pool {
	s := &poolSelector{
		ranked:   rankPoolsByLiquidity(universe),
		selected: make(map[string]struct{}),
	}

	s.take(sel.TopNDirectSwaps, func(p *domain.Pool) bool {
		return p.Involves(tokenIn) && p.Involves(tokenOut)
	})

	for _, side := range []domain.Token{tokenIn, tokenOut} {
		var withBase []*domain.Pool
		for _, base := range baseTokens {
			if base.Equals(side) {
				continue
			}
			count := 0
			for _, p := range s.ranked {
				if count >= sel.TopNWithEachBaseToken {
					break
				}
				if _, ok := s.selected[p.Key()]; ok {
					continue
				}
				if p.Involves(base) && p.Involves(side) {
					withBase = append(withBase, p)
					count++
				}
			}
		}
		withBase = rankPoolsByLiquidity(withBase)
		if len(withBase) > sel.TopNWithBaseToken {
			withBase = withBase[:sel.TopNWithBaseToken]
		}
		s.add(withBase)
	}

	s.take(sel.TopN, func(*domain.Pool) bool { return true })

	usingIn := s.take(sel.TopNTokenInOut, func(p *domain.Pool) bool { return p.Involves(tokenIn) })
	usingOut := s.take(sel.TopNTokenInOut, func(p *domain.Pool) bool { return p.Involves(tokenOut) })

	secondHop := func(first []*domain.Pool, origin domain.Token) {
		for _, p := range first {
			hop := p.Other(origin)
			s.take(sel.SecondHopLimit(hop), func(q *domain.Pool) bool {
				return q.Involves(hop) && !q.Involves(origin)
			})
		}
	}
	secondHop(usingIn, tokenIn)
	secondHop(usingOut, tokenOut)

	return s.out
}
