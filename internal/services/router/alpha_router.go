package router

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hxuan190/split-router/internal/common"
	"github.com/hxuan190/split-router/internal/domain"
	"github.com/hxuan190/split-router/internal/metrics"
	"github.com/hxuan190/split-router/internal/services"
	"github.com/hxuan190/split-router/internal/services/gas"
	"github.com/hxuan190/split-router/internal/services/market"
)

const defaultRouteCacheSize = 1024

// RouteResult is the outcome of one routing request. Plan is nil when no
// route covers the amount.
type RouteResult struct {
	Plan              *domain.SwapPlan
	RouteFound        bool
	TokenIn           domain.Token
	TokenOut          domain.Token
	TradeType         domain.TradeType
	Amount            *big.Int
	BlockNumber       uint64
	Percents          []int
	Amounts           []*big.Int
	Candidates        []*domain.RouteWithValidQuote
	QuotingIncomplete bool
}

type enumeratedRoutes struct {
	routes     []*domain.Route
	candidates []*domain.Pool
}

// AlphaRouter runs the full pipeline: block pinning, amount distribution,
// per protocol pool selection, enumeration and quoting, then the split search.
type AlphaRouter struct {
	registry   *market.ProtocolRegistry
	enumerator *RouteEnumerator
	optimizer  *SplitOptimizer
	gasFactory *gas.Factory
	portion    domain.PortionProvider
	routeCache *market.BoundedLRUCache[string, enumeratedRoutes]
	logger     *services.ServiceLogger
}

type AlphaRouterDeps struct {
	Registry       *market.ProtocolRegistry
	GasFactory     *gas.Factory
	Portion        domain.PortionProvider
	RouteCacheSize int
}

func NewAlphaRouter(deps AlphaRouterDeps, logger zerolog.Logger) *AlphaRouter {
	size := deps.RouteCacheSize
	if size <= 0 {
		size = defaultRouteCacheSize
	}
	r := &AlphaRouter{
		registry:   deps.Registry,
		enumerator: NewRouteEnumerator(logger),
		optimizer:  NewSplitOptimizer(logger),
		gasFactory: deps.GasFactory,
		portion:    deps.Portion,
		routeCache: market.NewBoundedLRUCache[string, enumeratedRoutes](size),
	}
	r.logger = services.NewServiceLogger(logger, r)
	return r
}

func (r *AlphaRouter) ID() string {
	return "alpha_router"
}

func (r *AlphaRouter) Optimizer() *SplitOptimizer {
	return r.optimizer
}

// Route finds the best split plan for amount of tokenIn (exact-in) or
// tokenOut (exact-out). A request without any route is not an error: the
// result has RouteFound false.
func (r *AlphaRouter) Route(
	ctx context.Context,
	amount *big.Int,
	tokenIn, tokenOut domain.Token,
	tradeType domain.TradeType,
	cfg domain.AlphaRouterConfig,
) (*RouteResult, error) {
	start := time.Now()
	result, err := r.route(ctx, amount, tokenIn, tokenOut, tradeType, cfg)
	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case !result.RouteFound:
		status = "no_route"
	}
	metrics.QuoteRequests.WithLabelValues(tradeType.String(), status).Inc()
	metrics.QuoteDuration.WithLabelValues(tradeType.String()).Observe(time.Since(start).Seconds())
	return result, err
}

func (r *AlphaRouter) route(
	ctx context.Context,
	amount *big.Int,
	tokenIn, tokenOut domain.Token,
	tradeType domain.TradeType,
	cfg domain.AlphaRouterConfig,
) (*RouteResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, common.InvalidConfigf("amount must be positive")
	}
	if tokenIn.ChainID != tokenOut.ChainID {
		return nil, common.InvalidConfigf("tokens on different chains: %d and %d", tokenIn.ChainID, tokenOut.ChainID)
	}
	chainID := tokenIn.ChainID
	chain, ok := domain.ChainByID(chainID)
	if !ok {
		return nil, common.InvalidConfigf("unsupported chain %d", chainID)
	}
	tokenIn, tokenOut = tokenIn.Wrapped(), tokenOut.Wrapped()
	if tokenIn.Equals(tokenOut) {
		return nil, common.InvalidConfigf("tokenIn and tokenOut are the same token %s", tokenIn)
	}
	protocols := cfg.EnabledProtocols()
	if err := r.registry.Check(protocols); err != nil {
		return nil, err
	}

	block, err := r.pinBlock(ctx, chainID, cfg.BlockNumber)
	if err != nil {
		return nil, err
	}

	percents, amounts, err := GetAmountDistribution(amount, cfg.DistributionPercent)
	if err != nil {
		return nil, err
	}

	quoteToken := tokenOut
	if tradeType == domain.ExactOutput {
		quoteToken = tokenIn
	}

	result := &RouteResult{
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		TradeType:   tradeType,
		Amount:      new(big.Int).Set(amount),
		BlockNumber: block,
		Percents:    percents,
		Amounts:     amounts,
	}

	gasModel, err := r.buildGasModel(ctx, chainID, block, quoteToken, cfg.GasToken)
	if err != nil {
		return nil, err
	}

	var (
		mu         sync.Mutex
		incomplete bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers())
	for _, protocol := range protocols {
		g.Go(func() error {
			quotes, partial, err := r.quoteProtocol(gctx, protocol, chain, block, tokenIn, tokenOut, amounts, percents, quoteToken, tradeType, cfg, gasModel)
			if err != nil {
				return err
			}
			mu.Lock()
			result.Candidates = append(result.Candidates, quotes...)
			incomplete = incomplete || partial
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	result.QuotingIncomplete = incomplete
	if incomplete {
		metrics.QuotingIncomplete.Inc()
		r.logger.Warn().
			Str("token_in", tokenIn.String()).
			Str("token_out", tokenOut.String()).
			Int("quotes", len(result.Candidates)).
			Msg("quoting incomplete, routing on partial quotes")
	}
	if len(result.Candidates) == 0 {
		if incomplete {
			return nil, fmt.Errorf("%w: no quotes before deadline", common.ErrProviderTimeout)
		}
		return result, nil
	}

	if err := r.optimize(result, chainID, cfg, gasModel); err != nil {
		return nil, err
	}
	return result, nil
}

// Replay runs the optimizer over candidates quoted earlier, typically
// restored from a snapshot. Gas is priced from the candidates' own pools.
func (r *AlphaRouter) Replay(
	ctx context.Context,
	chainID domain.ChainID,
	block uint64,
	amount *big.Int,
	percents []int,
	candidates []*domain.RouteWithValidQuote,
	tradeType domain.TradeType,
	cfg domain.AlphaRouterConfig,
) (*RouteResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, common.InvalidConfigf("amount must be positive")
	}
	if len(candidates) == 0 {
		return nil, common.InvalidConfigf("no quotes to replay")
	}
	first := candidates[0].Route
	result := &RouteResult{
		TokenIn:     first.Input,
		TokenOut:    first.Output,
		TradeType:   tradeType,
		Amount:      new(big.Int).Set(amount),
		BlockNumber: block,
		Percents:    percents,
		Candidates:  candidates,
	}

	var gasModel domain.GasModel
	if r.gasFactory != nil {
		seen := make(map[string]bool)
		var pools []*domain.Pool
		for _, rwq := range candidates {
			for _, p := range rwq.Route.Pools {
				if !seen[p.Key()] {
					seen[p.Key()] = true
					pools = append(pools, p)
				}
			}
		}
		model, err := r.gasFactory.BuildGasModel(ctx, chainID, candidates[0].QuoteToken, cfg.GasToken, pools)
		if err != nil {
			return nil, err
		}
		gasModel = model
	}
	if err := r.optimize(result, chainID, cfg, gasModel); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *AlphaRouter) optimize(result *RouteResult, chainID domain.ChainID, cfg domain.AlphaRouterConfig, gasModel domain.GasModel) error {
	plan, err := r.optimizer.GetBestSwapRoute(result.Amount, result.Percents, result.Candidates, result.TradeType, chainID, cfg, r.portion, gasModel)
	if errors.Is(err, common.ErrNoRouteFound) {
		r.logger.Debug().Int("quotes", len(result.Candidates)).Msg("no route found")
		return nil
	}
	if err != nil {
		return err
	}

	plan.BlockNumber = result.BlockNumber
	plan.QuotingIncomplete = result.QuotingIncomplete
	plan.PriceImpactBps = CalculatePlanPriceImpact(plan)
	metrics.PriceImpact.WithLabelValues(string(GetPriceImpactSeverity(plan.PriceImpactBps))).Observe(float64(plan.PriceImpactBps))

	result.Plan = plan
	result.RouteFound = true
	if cfg.DebugRouting {
		for _, rwq := range plan.Routes {
			r.logger.Debug().Str("route", rwq.String()).Str("quote", rwq.RawQuote.String()).Msg("plan leg")
		}
	}
	return nil
}

// pinBlock returns the requested block or the latest block of the first
// provider serving the chain. Every fetch in the request uses this block.
func (r *AlphaRouter) pinBlock(ctx context.Context, chainID domain.ChainID, requested uint64) (uint64, error) {
	if requested != 0 {
		return requested, nil
	}
	for _, provider := range r.registry.Providers() {
		block, err := provider.LatestBlock(ctx, chainID)
		if errors.Is(err, market.ErrChainNotServed) {
			continue
		}
		if err != nil {
			return 0, err
		}
		return block, nil
	}
	return 0, fmt.Errorf("%w: no pool provider serves chain %d", common.ErrQuoteUnavailable, chainID)
}

func (r *AlphaRouter) buildGasModel(ctx context.Context, chainID domain.ChainID, block uint64, quoteToken domain.Token, gasToken *domain.Token) (domain.GasModel, error) {
	if r.gasFactory == nil {
		return nil, nil
	}
	pairs := gas.PricingPairs(chainID, quoteToken, gasToken)
	var pricing []*domain.Pool
	for _, provider := range r.registry.Providers() {
		accessor, err := provider.GetPools(ctx, chainID, pairs, block)
		switch {
		case err == nil:
			if accessor.BlockNumber() != block {
				return nil, fmt.Errorf("%w: pricing pools at block %d, pinned %d", common.ErrStaleSnapshot, accessor.BlockNumber(), block)
			}
			pricing = append(pricing, accessor.GetAllPools()...)
		case errors.Is(err, market.ErrChainNotServed), errors.Is(err, common.ErrProviderTimeout):
			r.logger.Warn().Err(err).Str("protocol", provider.Protocol().String()).Msg("gas pricing pools unavailable")
		default:
			return nil, err
		}
	}
	model, err := r.gasFactory.BuildGasModel(ctx, chainID, quoteToken, gasToken, pricing)
	if err != nil {
		return nil, err
	}
	return model, nil
}

// quoteProtocol selects, enumerates and quotes one protocol. Provider
// timeouts degrade to a partial result; stale snapshots fail the request.
func (r *AlphaRouter) quoteProtocol(
	ctx context.Context,
	protocol domain.Protocol,
	chain domain.ChainInfo,
	block uint64,
	tokenIn, tokenOut domain.Token,
	amounts []*big.Int,
	percents []int,
	quoteToken domain.Token,
	tradeType domain.TradeType,
	cfg domain.AlphaRouterConfig,
	gasModel domain.GasModel,
) ([]*domain.RouteWithValidQuote, bool, error) {
	if protocol == domain.ProtocolMixed && tradeType == domain.ExactOutput {
		return nil, false, nil
	}
	q, _ := r.registry.Quoter(protocol)

	routes, err := r.candidateRoutes(ctx, protocol, chain, block, tokenIn, tokenOut, cfg)
	switch {
	case errors.Is(err, common.ErrProviderTimeout):
		r.logger.Warn().Err(err).Str("protocol", protocol.String()).Msg("pool fetch timed out")
		return nil, true, nil
	case errors.Is(err, market.ErrChainNotServed):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	if len(routes) == 0 {
		return nil, false, nil
	}

	res, err := q.GetQuotes(ctx, routes, amounts, percents, quoteToken, tradeType, cfg, gasModel)
	if err != nil {
		return nil, false, err
	}
	return res.RoutesWithValidQuotes, res.Incomplete, nil
}

// candidateRoutes returns the routes over the selected pools, re-reading
// those pools through a pinned accessor. Enumeration is cached per block.
func (r *AlphaRouter) candidateRoutes(
	ctx context.Context,
	protocol domain.Protocol,
	chain domain.ChainInfo,
	block uint64,
	tokenIn, tokenOut domain.Token,
	cfg domain.AlphaRouterConfig,
) ([]*domain.Route, error) {
	sources := []domain.Protocol{protocol}
	if protocol == domain.ProtocolMixed {
		sources = []domain.Protocol{domain.ProtocolV2, domain.ProtocolV3}
	}

	key := fmt.Sprintf("%d|%d|%s|%s|%s|%d|%+v|%+v", chain.ID, block, tokenIn.Address.Hex(), tokenOut.Address.Hex(),
		protocol, cfg.MaxSwapsPerPath, cfg.V2PoolSelection, cfg.V3PoolSelection)
	enumerated, hit, err := r.routeCache.GetOrCompute(key, func() (enumeratedRoutes, error) {
		var universe []*domain.Pool
		for _, src := range sources {
			provider, _ := r.registry.Provider(src)
			pools, err := provider.ListPools(ctx, chain.ID, block)
			if err != nil {
				return enumeratedRoutes{}, err
			}
			universe = append(universe, pools...)
		}
		routes, candidates := r.enumerator.Enumerate(protocol, tokenIn, tokenOut, universe, chain.BaseTokens, cfg)
		return enumeratedRoutes{routes: routes, candidates: candidates}, nil
	})
	if err != nil {
		return nil, err
	}
	if hit {
		metrics.RouteCacheHits.Inc()
	} else {
		metrics.RouteCacheMisses.Inc()
	}
	if len(enumerated.routes) == 0 {
		return nil, nil
	}

	// Confirm every candidate pool is still served at the pinned block.
	for _, src := range sources {
		provider, _ := r.registry.Provider(src)
		var pairs []domain.TokenPair
		for _, p := range enumerated.candidates {
			if p.Protocol == src {
				pairs = append(pairs, p.Pair())
			}
		}
		if len(pairs) == 0 {
			continue
		}
		accessor, err := provider.GetPools(ctx, chain.ID, pairs, block)
		if err != nil {
			return nil, err
		}
		if accessor.BlockNumber() != block {
			return nil, fmt.Errorf("%w: %s pools at block %d, pinned %d", common.ErrStaleSnapshot, src, accessor.BlockNumber(), block)
		}
		for _, p := range enumerated.candidates {
			if p.Protocol != src {
				continue
			}
			if _, ok := accessor.GetPool(p.Key()); !ok {
				return nil, fmt.Errorf("%w: pool %s missing at block %d", common.ErrStaleSnapshot, p.Key(), block)
			}
		}
	}
	return enumerated.routes, nil
}
