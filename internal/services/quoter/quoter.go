package quoter

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hxuan190/split-router/internal/common"
	"github.com/hxuan190/split-router/internal/domain"
	"github.com/hxuan190/split-router/internal/metrics"
	"github.com/hxuan190/split-router/internal/services"
)

// QuotesResult is the sparse outcome of quoting routes at every bucket.
// Failed (route, percent) pairs are absent, not errors.
type QuotesResult struct {
	RoutesWithValidQuotes []*domain.RouteWithValidQuote
	CandidatePools        []*domain.Pool
	Dropped               int
	Incomplete            bool
}

type Quoter interface {
	Protocol() domain.Protocol
	GetQuotes(
		ctx context.Context,
		routes []*domain.Route,
		amounts []*big.Int,
		percents []int,
		quoteToken domain.Token,
		tradeType domain.TradeType,
		cfg domain.AlphaRouterConfig,
		gasModel domain.GasModel,
	) (*QuotesResult, error)
}

type routeQuoter struct {
	id       string
	protocol domain.Protocol
	exactOut bool
	logger   *services.ServiceLogger
}

func newRouteQuoter(id string, protocol domain.Protocol, exactOut bool, base zerolog.Logger) routeQuoter {
	q := routeQuoter{id: id, protocol: protocol, exactOut: exactOut}
	q.logger = services.NewServiceLogger(base, q)
	return q
}

func (q routeQuoter) ID() string {
	return q.id
}

func (q routeQuoter) Protocol() domain.Protocol {
	return q.protocol
}

type quoteTask struct {
	route   *domain.Route
	amount  *big.Int
	percent int
}

func (q routeQuoter) GetQuotes(
	ctx context.Context,
	routes []*domain.Route,
	amounts []*big.Int,
	percents []int,
	quoteToken domain.Token,
	tradeType domain.TradeType,
	cfg domain.AlphaRouterConfig,
	gasModel domain.GasModel,
) (*QuotesResult, error) {
	if len(amounts) != len(percents) {
		return nil, common.InvalidConfigf("%d amounts for %d percents", len(amounts), len(percents))
	}
	result := &QuotesResult{}
	if tradeType == domain.ExactOutput && !q.exactOut {
		q.logger.Debug().Str("protocol", q.protocol.String()).Msg("exact output not supported, skipping")
		return result, nil
	}

	tasks := make([]quoteTask, 0, len(routes)*len(amounts))
	for _, route := range routes {
		if route.Protocol != q.protocol {
			continue
		}
		for i, amount := range amounts {
			tasks = append(tasks, quoteTask{route: route, amount: amount, percent: percents[i]})
		}
	}
	if len(tasks) == 0 {
		return result, nil
	}

	feeOnTransfer := cfg.EnableFeeOnTransferFeeFetching
	quoted := make([]*domain.RouteWithValidQuote, len(tasks))
	var dropped atomic.Int64
	var incomplete atomic.Bool

	g := new(errgroup.Group)
	g.SetLimit(cfg.Workers())
	for i, task := range tasks {
		if ctx.Err() != nil {
			incomplete.Store(true)
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				incomplete.Store(true)
				return nil
			}
			rwq, err := q.quoteOne(task, quoteToken, tradeType, feeOnTransfer, gasModel)
			if err != nil {
				dropped.Add(1)
				metrics.QuotesDropped.WithLabelValues(q.protocol.String(), dropReason(err)).Inc()
				q.logger.Debug().Err(err).Str("route", task.route.String()).Int("percent", task.percent).Msg("quote dropped")
				return nil
			}
			quoted[i] = rwq
			return nil
		})
	}
	_ = g.Wait()

	seenPools := make(map[string]struct{})
	for _, rwq := range quoted {
		if rwq == nil {
			continue
		}
		result.RoutesWithValidQuotes = append(result.RoutesWithValidQuotes, rwq)
		for _, pool := range rwq.Route.Pools {
			if _, ok := seenPools[pool.Key()]; ok {
				continue
			}
			seenPools[pool.Key()] = struct{}{}
			result.CandidatePools = append(result.CandidatePools, pool)
		}
	}
	result.Dropped = int(dropped.Load())
	result.Incomplete = incomplete.Load() || ctx.Err() != nil

	q.logger.Debug().
		Str("protocol", q.protocol.String()).
		Int("tasks", len(tasks)).
		Int("quoted", len(result.RoutesWithValidQuotes)).
		Int("dropped", result.Dropped).
		Bool("incomplete", result.Incomplete).
		Msg("quotes computed")
	return result, nil
}

func (q routeQuoter) quoteOne(task quoteTask, quoteToken domain.Token, tradeType domain.TradeType, feeOnTransfer bool, gasModel domain.GasModel) (*domain.RouteWithValidQuote, error) {
	sim, err := QuoteRoute(task.route, task.amount, tradeType, feeOnTransfer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrQuoteUnavailable, err)
	}
	raw := sim.AmountOut
	if tradeType == domain.ExactOutput {
		raw = sim.AmountIn
	}
	rwq := domain.NewRouteWithValidQuote(task.route, task.percent, task.amount, raw, tradeType, quoteToken)
	rwq.SqrtPriceX96AfterList = sim.SqrtPriceAfter
	rwq.InitializedTicksCrossedList = sim.TicksCrossed
	if gasModel != nil {
		cost, err := gasModel.EstimateGasCost(rwq)
		if err != nil {
			return nil, fmt.Errorf("%w: gas model: %w", common.ErrQuoteUnavailable, err)
		}
		rwq.ApplyGasCost(cost)
	}
	return rwq, nil
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientLiquidity):
		return "insufficient_liquidity"
	case errors.Is(err, ErrMathOverflow):
		return "overflow"
	case errors.Is(err, ErrInvalidPoolState):
		return "invalid_pool_state"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	default:
		return "other"
	}
}

// V2Quoter quotes constant product routes analytically.
type V2Quoter struct {
	routeQuoter
}

func NewV2Quoter(logger zerolog.Logger) *V2Quoter {
	return &V2Quoter{routeQuoter: newRouteQuoter("v2_quoter", domain.ProtocolV2, true, logger)}
}

// V3Quoter simulates concentrated liquidity swaps tick by tick.
type V3Quoter struct {
	routeQuoter
}

func NewV3Quoter(logger zerolog.Logger) *V3Quoter {
	return &V3Quoter{routeQuoter: newRouteQuoter("v3_quoter", domain.ProtocolV3, true, logger)}
}

// MixedQuoter handles routes that traverse both pool generations. Mixed
// routes are only quoted for exact input.
type MixedQuoter struct {
	routeQuoter
}

func NewMixedQuoter(logger zerolog.Logger) *MixedQuoter {
	return &MixedQuoter{routeQuoter: newRouteQuoter("mixed_quoter", domain.ProtocolMixed, false, logger)}
}
