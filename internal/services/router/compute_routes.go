package router

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/hxuan190/split-router/internal/domain"
	"github.com/hxuan190/split-router/internal/metrics"
	"github.com/hxuan190/split-router/internal/services"
)

// ComputeAllRoutes returns every simple path from tokenIn to tokenOut using
// at most maxHops pools. Routes come out in a stable order.
func ComputeAllRoutes(tokenIn, tokenOut domain.Token, pools []*domain.Pool, maxHops int) []*domain.Route {
	if maxHops <= 0 || len(pools) == 0 || tokenIn.Equals(tokenOut) {
		return nil
	}
	sorted := make([]*domain.Pool, len(pools))
	copy(sorted, pools)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key() < sorted[j].Key() })

	var routes []*domain.Route
	used := make([]bool, len(sorted))
	path := make([]*domain.Pool, 0, maxHops)
	visited := map[string]struct{}{tokenKey(tokenIn): {}}

	var walk func(current domain.Token)
	walk = func(current domain.Token) {
		for i, pool := range sorted {
			if used[i] || !pool.Involves(current) {
				continue
			}
			next := pool.Other(current)
			if _, seen := visited[tokenKey(next)]; seen {
				continue
			}
			path = append(path, pool)
			if next.Equals(tokenOut) {
				hops := make([]*domain.Pool, len(path))
				copy(hops, path)
				if route, err := domain.NewRoute(hops, tokenIn, tokenOut); err == nil {
					routes = append(routes, route)
				}
			} else if len(path) < maxHops {
				used[i] = true
				visited[tokenKey(next)] = struct{}{}
				walk(next)
				delete(visited, tokenKey(next))
				used[i] = false
			}
			path = path[:len(path)-1]
		}
	}
	walk(tokenIn)
	return routes
}

func tokenKey(t domain.Token) string {
	return t.Address.Hex()
}

func filterPools(pools []*domain.Pool, protocol domain.Protocol) []*domain.Pool {
	out := make([]*domain.Pool, 0, len(pools))
	for _, p := range pools {
		if p.Protocol == protocol {
			out = append(out, p)
		}
	}
	return out
}

func ComputeAllV2Routes(tokenIn, tokenOut domain.Token, pools []*domain.Pool, maxHops int) []*domain.Route {
	return ComputeAllRoutes(tokenIn, tokenOut, filterPools(pools, domain.ProtocolV2), maxHops)
}

func ComputeAllV3Routes(tokenIn, tokenOut domain.Token, pools []*domain.Pool, maxHops int) []*domain.Route {
	return ComputeAllRoutes(tokenIn, tokenOut, filterPools(pools, domain.ProtocolV3), maxHops)
}

// ComputeAllMixedRoutes keeps only routes that use both pool generations.
func ComputeAllMixedRoutes(tokenIn, tokenOut domain.Token, pools []*domain.Pool, maxHops int) []*domain.Route {
	all := ComputeAllRoutes(tokenIn, tokenOut, pools, maxHops)
	out := all[:0]
	for _, r := range all {
		if r.Protocol == domain.ProtocolMixed {
			out = append(out, r)
		}
	}
	return out
}

// RouteEnumerator turns a protocol's pool universe into candidate routes.
type RouteEnumerator struct {
	logger *services.ServiceLogger
}

func NewRouteEnumerator(logger zerolog.Logger) *RouteEnumerator {
	e := &RouteEnumerator{}
	e.logger = services.NewServiceLogger(logger, e)
	return e
}

func (e *RouteEnumerator) ID() string {
	return "route_enumerator"
}

// Enumerate applies pool selection to the universe of a protocol and
// enumerates routes over what survives. For ProtocolMixed the universe must
// hold pools of both generations. An empty result means no liquidity.
func (e *RouteEnumerator) Enumerate(protocol domain.Protocol, tokenIn, tokenOut domain.Token, universe []*domain.Pool, baseTokens []domain.Token, cfg domain.AlphaRouterConfig) ([]*domain.Route, []*domain.Pool) {
	var candidates []*domain.Pool
	var routes []*domain.Route
	switch protocol {
	case domain.ProtocolV2:
		candidates = SelectCandidatePools(filterPools(universe, domain.ProtocolV2), tokenIn, tokenOut, baseTokens, cfg.V2PoolSelection)
		routes = ComputeAllV2Routes(tokenIn, tokenOut, candidates, cfg.MaxSwapsPerPath)
	case domain.ProtocolV3:
		candidates = SelectCandidatePools(filterPools(universe, domain.ProtocolV3), tokenIn, tokenOut, baseTokens, cfg.V3PoolSelection)
		routes = ComputeAllV3Routes(tokenIn, tokenOut, candidates, cfg.MaxSwapsPerPath)
	case domain.ProtocolMixed:
		v2 := SelectCandidatePools(filterPools(universe, domain.ProtocolV2), tokenIn, tokenOut, baseTokens, cfg.V2PoolSelection)
		v3 := SelectCandidatePools(filterPools(universe, domain.ProtocolV3), tokenIn, tokenOut, baseTokens, cfg.V3PoolSelection)
		candidates = append(v2, v3...)
		routes = ComputeAllMixedRoutes(tokenIn, tokenOut, candidates, cfg.MaxSwapsPerPath)
	}

	metrics.CandidatePools.WithLabelValues(protocol.String()).Observe(float64(len(candidates)))
	metrics.RoutesEnumerated.WithLabelValues(protocol.String()).Observe(float64(len(routes)))
	e.logger.Debug().
		Str("protocol", protocol.String()).
		Int("universe", len(universe)).
		Int("candidate_pools", len(candidates)).
		Int("routes", len(routes)).
		Msg("routes enumerated")
	return routes, candidates
}
