package router

import (
	"math/big"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/split-router/internal/domain"
)

var (
	tokIn  = domain.NewToken(domain.ChainMainnet, "0x0000000000000000000000000000000000000001", 18, "IN", "Input")
	tokOut = domain.NewToken(domain.ChainMainnet, "0x0000000000000000000000000000000000000002", 18, "OUT", "Output")
	tokMid = domain.NewToken(domain.ChainMainnet, "0x0000000000000000000000000000000000000003", 18, "MID", "Middle")
	tokX   = domain.NewToken(domain.ChainMainnet, "0x0000000000000000000000000000000000000004", 18, "X", "Extra")
)

var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

func v2Pool(a, b domain.Token, reserve int64) *domain.Pool {
	return domain.NewV2Pool(a, b, big.NewInt(reserve), big.NewInt(reserve))
}

func v3Pool(t *testing.T, a, b domain.Token, fee domain.FeeAmount, liquidity int64) *domain.Pool {
	t.Helper()
	if b.SortsBefore(a) {
		a, b = b, a
	}
	p, err := domain.NewV3Pool(a, b, fee, q96, big.NewInt(liquidity), 0, nil)
	require.NoError(t, err)
	return p
}

func mustRoute(t *testing.T, in, out domain.Token, pools ...*domain.Pool) *domain.Route {
	t.Helper()
	r, err := domain.NewRoute(pools, in, out)
	require.NoError(t, err)
	return r
}

// quoted builds a quote whose gas cost is already applied.
func quoted(route *domain.Route, percent int, amount, raw, gas int64, tradeType domain.TradeType) *domain.RouteWithValidQuote {
	quoteToken := tokOut
	if tradeType == domain.ExactOutput {
		quoteToken = tokIn
	}
	rwq := domain.NewRouteWithValidQuote(route, percent, big.NewInt(amount), big.NewInt(raw), tradeType, quoteToken)
	rwq.ApplyGasCost(domain.GasCost{
		GasEstimate:    big.NewInt(100_000),
		GasCostInToken: big.NewInt(gas),
		GasCostInUSD:   big.NewInt(gas),
	})
	return rwq
}

type testRoutes struct {
	v3Low, v3Med, v2Direct, v2ViaMid, mixedViaMid *domain.Route
}

func newTestRoutes(t *testing.T) testRoutes {
	inMid := v2Pool(tokIn, tokMid, 1_000_000)
	return testRoutes{
		v3Low:       mustRoute(t, tokIn, tokOut, v3Pool(t, tokIn, tokOut, domain.FeeLow, 1e12)),
		v3Med:       mustRoute(t, tokIn, tokOut, v3Pool(t, tokIn, tokOut, domain.FeeMedium, 1e12)),
		v2Direct:    mustRoute(t, tokIn, tokOut, v2Pool(tokIn, tokOut, 1_000_000)),
		v2ViaMid:    mustRoute(t, tokIn, tokOut, inMid, v2Pool(tokMid, tokOut, 1_000_000)),
		mixedViaMid: mustRoute(t, tokIn, tokOut, inMid, v3Pool(t, tokMid, tokOut, domain.FeeLow, 1e12)),
	}
}

func testConfig(minSplits, maxSplits int) domain.AlphaRouterConfig {
	cfg := domain.DefaultRoutingConfig()
	cfg.MinSplits = minSplits
	cfg.MaxSplits = maxSplits
	return cfg
}

func newTestOptimizer() *SplitOptimizer {
	return NewSplitOptimizer(zerolog.Nop())
}

// l1PerRoute charges a flat L1 fee per route in the combination.
type l1PerRoute struct {
	fee int64
}

func (s l1PerRoute) EstimateGasCost(*domain.RouteWithValidQuote) (domain.GasCost, error) {
	return domain.GasCost{}, nil
}

func (s l1PerRoute) CalculateL1GasFees(routes []*domain.RouteWithValidQuote) (domain.L1GasFees, error) {
	fees := domain.ZeroL1GasFees()
	n := int64(len(routes))
	fees.GasUsedL1.SetInt64(1_000 * n)
	fees.GasUsedL1OnL2.SetInt64(100 * n)
	fees.GasCostL1QuoteToken.SetInt64(s.fee * n)
	fees.GasCostL1USD.SetInt64(s.fee * n)
	return fees, nil
}
