package router

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hxuan190/split-router/internal/common"
	"github.com/hxuan190/split-router/internal/domain"
	"github.com/hxuan190/split-router/internal/services/portion"
)

var halves = []int{50, 100}

func routeKeys(plan *domain.SwapPlan) []string {
	keys := make([]string, len(plan.Routes))
	for i, r := range plan.Routes {
		keys[i] = r.Key()
	}
	return keys
}

func TestBestSwapRouteSingleRoute(t *testing.T) {
	rs := newTestRoutes(t)
	rwqs := []*domain.RouteWithValidQuote{quoted(rs.v3Low, 100, 1000, 1000, 0, domain.ExactInput)}

	plan, err := newTestOptimizer().GetBestSwapRoute(big.NewInt(1000), []int{100}, rwqs, domain.ExactInput, domain.ChainMainnet, testConfig(1, 1), nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, plan.Splits())
	require.Equal(t, 100, plan.TotalPercent())
	require.Equal(t, "1000", plan.QuoteGasAdjusted.String())
	require.Equal(t, "1000", plan.Quote.String())
	require.Nil(t, plan.L1GasFees)
}

func TestBestSwapRoutePrefersBetterSplit(t *testing.T) {
	rs := newTestRoutes(t)
	rwqs := []*domain.RouteWithValidQuote{
		quoted(rs.v3Low, 50, 500, 525, 0, domain.ExactInput),
		quoted(rs.v3Med, 50, 500, 525, 0, domain.ExactInput),
		quoted(rs.v3Low, 100, 1000, 1020, 0, domain.ExactInput),
		quoted(rs.v3Med, 100, 1000, 1010, 0, domain.ExactInput),
	}

	plan, err := newTestOptimizer().GetBestSwapRoute(big.NewInt(1000), halves, rwqs, domain.ExactInput, domain.ChainMainnet, testConfig(1, 2), nil, nil)
	require.NoError(t, err)
	require.Equal(t, 2, plan.Splits())
	require.Equal(t, "1050", plan.QuoteGasAdjusted.String())
	require.Equal(t, 100, plan.TotalPercent())
}

func TestBestSwapRouteNoCandidates(t *testing.T) {
	_, err := newTestOptimizer().GetBestSwapRoute(big.NewInt(1000), halves, nil, domain.ExactInput, domain.ChainMainnet, testConfig(1, 3), nil, nil)
	require.ErrorIs(t, err, common.ErrNoRouteFound)
}

func TestBestSwapRouteExactOutputMinimizesInput(t *testing.T) {
	rs := newTestRoutes(t)
	tests := []struct {
		name       string
		rwqs       []*domain.RouteWithValidQuote
		wantSplits int
		wantInput  string
	}{
		{
			name: "single cheaper than split",
			rwqs: []*domain.RouteWithValidQuote{
				quoted(rs.v3Low, 100, 1000, 1000, 0, domain.ExactOutput),
				quoted(rs.v3Low, 50, 500, 505, 0, domain.ExactOutput),
				quoted(rs.v3Med, 50, 500, 510, 0, domain.ExactOutput),
				quoted(rs.v3Med, 100, 1000, 1005, 0, domain.ExactOutput),
			},
			wantSplits: 1,
			wantInput:  "1000",
		},
		{
			name: "split cheaper than single",
			rwqs: []*domain.RouteWithValidQuote{
				quoted(rs.v3Low, 100, 1000, 1000, 0, domain.ExactOutput),
				quoted(rs.v3Low, 50, 500, 490, 0, domain.ExactOutput),
				quoted(rs.v3Med, 50, 500, 495, 0, domain.ExactOutput),
			},
			wantSplits: 2,
			wantInput:  "985",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := newTestOptimizer().GetBestSwapRoute(big.NewInt(1000), halves, tt.rwqs, domain.ExactOutput, domain.ChainMainnet, testConfig(1, 2), nil, nil)
			require.NoError(t, err)
			require.Equal(t, tt.wantSplits, plan.Splits())
			require.Equal(t, tt.wantInput, plan.QuoteGasAdjusted.String())
			require.Equal(t, tokIn, plan.QuoteToken)
		})
	}
}

func TestBestSwapRouteGasAware(t *testing.T) {
	rs := newTestRoutes(t)
	build := func(gas int64) []*domain.RouteWithValidQuote {
		return []*domain.RouteWithValidQuote{
			quoted(rs.v3Low, 100, 1000, 1000, gas, domain.ExactInput),
			quoted(rs.v3Low, 50, 500, 505, gas, domain.ExactInput),
			quoted(rs.v3Med, 50, 500, 510, gas, domain.ExactInput),
		}
	}

	plan, err := newTestOptimizer().GetBestSwapRoute(big.NewInt(1000), halves, build(10), domain.ExactInput, domain.ChainMainnet, testConfig(1, 2), nil, nil)
	require.NoError(t, err)
	require.Equal(t, 2, plan.Splits())
	require.Equal(t, "995", plan.QuoteGasAdjusted.String())
	require.Equal(t, "1015", plan.Quote.String())
	require.Equal(t, "20", plan.EstimatedGasUsedQuoteToken.String())
	require.Equal(t, "200000", plan.EstimatedGasUsed.String())

	plan, err = newTestOptimizer().GetBestSwapRoute(big.NewInt(1000), halves, build(20), domain.ExactInput, domain.ChainMainnet, testConfig(1, 2), nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, plan.Splits())
	require.Equal(t, "980", plan.QuoteGasAdjusted.String())
}

func TestBestSwapRouteTieGoesToFewerSplits(t *testing.T) {
	rs := newTestRoutes(t)
	rwqs := []*domain.RouteWithValidQuote{
		quoted(rs.v3Low, 50, 500, 500, 0, domain.ExactInput),
		quoted(rs.v3Med, 50, 500, 500, 0, domain.ExactInput),
		quoted(rs.v3Low, 100, 1000, 1000, 0, domain.ExactInput),
	}
	plan, err := newTestOptimizer().GetBestSwapRoute(big.NewInt(1000), halves, rwqs, domain.ExactInput, domain.ChainMainnet, testConfig(1, 2), nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, plan.Splits())
	require.Equal(t, 100, plan.Routes[0].Percent)
}

func TestBestSwapRouteSplitBounds(t *testing.T) {
	rs := newTestRoutes(t)
	rwqs := []*domain.RouteWithValidQuote{
		quoted(rs.v3Low, 50, 500, 600, 0, domain.ExactInput),
		quoted(rs.v3Med, 50, 500, 600, 0, domain.ExactInput),
		quoted(rs.v3Low, 100, 1000, 1000, 0, domain.ExactInput),
	}
	opt := newTestOptimizer()

	plan, err := opt.GetBestSwapRoute(big.NewInt(1000), halves, rwqs, domain.ExactInput, domain.ChainMainnet, testConfig(1, 1), nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, plan.Splits())

	_, err = opt.GetBestSwapRoute(big.NewInt(1000), halves, rwqs[2:], domain.ExactInput, domain.ChainMainnet, testConfig(2, 3), nil, nil)
	require.ErrorIs(t, err, common.ErrNoRouteFound)
}

func TestBestSwapRouteRejectsSharedPools(t *testing.T) {
	rs := newTestRoutes(t)
	require.True(t, rs.v2ViaMid.SharesPoolWith(rs.mixedViaMid))

	rwqs := []*domain.RouteWithValidQuote{
		quoted(rs.v2ViaMid, 50, 500, 900, 0, domain.ExactInput),
		quoted(rs.mixedViaMid, 50, 500, 900, 0, domain.ExactInput),
	}
	_, err := newTestOptimizer().GetBestSwapRoute(big.NewInt(1000), halves, rwqs, domain.ExactInput, domain.ChainMainnet, testConfig(1, 2), nil, nil)
	require.ErrorIs(t, err, common.ErrNoRouteFound)

	rwqs = append(rwqs, quoted(rs.v2Direct, 50, 500, 100, 0, domain.ExactInput))
	plan, err := newTestOptimizer().GetBestSwapRoute(big.NewInt(1000), halves, rwqs, domain.ExactInput, domain.ChainMainnet, testConfig(1, 2), nil, nil)
	require.NoError(t, err)
	require.Equal(t, "1000", plan.QuoteGasAdjusted.String())
	seen := make(map[string]bool)
	for _, r := range plan.Routes {
		for _, id := range r.PoolIdentifiers {
			require.False(t, seen[id], "pool %s used twice", id)
			seen[id] = true
		}
	}
}

func TestBestSwapRouteNeverRepeatsRoute(t *testing.T) {
	rs := newTestRoutes(t)
	rwqs := []*domain.RouteWithValidQuote{
		quoted(rs.v3Low, 50, 500, 600, 0, domain.ExactInput),
		quoted(rs.v3Low, 100, 1000, 900, 0, domain.ExactInput),
	}
	plan, err := newTestOptimizer().GetBestSwapRoute(big.NewInt(1000), halves, rwqs, domain.ExactInput, domain.ChainMainnet, testConfig(1, 2), nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, plan.Splits())
	require.Equal(t, "900", plan.Quote.String())
}

func TestBestSwapRouteInvalidConfig(t *testing.T) {
	rs := newTestRoutes(t)
	rwqs := []*domain.RouteWithValidQuote{quoted(rs.v3Low, 100, 1000, 1000, 0, domain.ExactInput)}
	opt := newTestOptimizer()

	tests := []struct {
		name    string
		amount  *big.Int
		cfg     domain.AlphaRouterConfig
		percent []int
	}{
		{name: "min above max", amount: big.NewInt(1000), cfg: testConfig(3, 2), percent: []int{100}},
		{name: "zero splits", amount: big.NewInt(1000), cfg: testConfig(0, 0), percent: []int{100}},
		{name: "zero amount", amount: big.NewInt(0), cfg: testConfig(1, 2), percent: []int{100}},
		{name: "bad percent", amount: big.NewInt(1000), cfg: testConfig(1, 2), percent: []int{150}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := opt.GetBestSwapRoute(tt.amount, tt.percent, rwqs, domain.ExactInput, domain.ChainMainnet, tt.cfg, nil, nil)
			require.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestBestSwapRouteL1FeesOnRollup(t *testing.T) {
	rs := newTestRoutes(t)
	rwqs := []*domain.RouteWithValidQuote{
		quoted(rs.v3Low, 50, 500, 525, 0, domain.ExactInput),
		quoted(rs.v3Med, 50, 500, 525, 0, domain.ExactInput),
		quoted(rs.v3Low, 100, 1000, 1020, 0, domain.ExactInput),
	}
	gm := l1PerRoute{fee: 40}
	opt := newTestOptimizer()

	plan, err := opt.GetBestSwapRoute(big.NewInt(1000), halves, rwqs, domain.ExactInput, domain.ChainBase, testConfig(1, 2), nil, gm)
	require.NoError(t, err)
	require.Equal(t, 1, plan.Splits())
	require.NotNil(t, plan.L1GasFees)
	require.Equal(t, "40", plan.L1GasFees.GasCostL1QuoteToken.String())
	require.Equal(t, "980", plan.QuoteGasAdjusted.String())

	// L1 fees are ignored off rollups.
	plan, err = opt.GetBestSwapRoute(big.NewInt(1000), halves, rwqs, domain.ExactInput, domain.ChainMainnet, testConfig(1, 2), nil, gm)
	require.NoError(t, err)
	require.Equal(t, 2, plan.Splits())
	require.Nil(t, plan.L1GasFees)
}

func TestBestSwapRouteAssignsDustToLargestLeg(t *testing.T) {
	rs := newTestRoutes(t)
	total := big.NewInt(1003)
	percents, amounts, err := GetAmountDistribution(total, 25)
	require.NoError(t, err)
	require.Equal(t, "250", amounts[0].String())
	require.Equal(t, "752", amounts[2].String())

	rwqs := []*domain.RouteWithValidQuote{
		quoted(rs.v3Low, 75, amounts[2].Int64(), 800, 0, domain.ExactInput),
		quoted(rs.v3Med, 25, amounts[0].Int64(), 300, 0, domain.ExactInput),
		quoted(rs.v3Low, 100, amounts[3].Int64(), 1000, 0, domain.ExactInput),
	}
	plan, err := newTestOptimizer().GetBestSwapRoute(total, percents, rwqs, domain.ExactInput, domain.ChainMainnet, testConfig(1, 2), nil, nil)
	require.NoError(t, err)
	require.Equal(t, 2, plan.Splits())
	require.Equal(t, 75, plan.Routes[0].Percent)
	require.Equal(t, "753", plan.Routes[0].Amount.String())
	require.Equal(t, "1", plan.Dust.String())
	// The leg keeps the quote simulated for its bucket amount.
	require.Equal(t, "800", plan.Routes[0].RawQuote.String())
	require.Equal(t, "1100", plan.Quote.String())

	sum := new(big.Int)
	for _, r := range plan.Routes {
		sum.Add(sum, r.Amount)
	}
	require.Equal(t, total.String(), sum.String())
	require.Equal(t, "752", rwqs[0].Amount.String(), "input quotes must not be mutated")
}

func TestBestSwapRoutePortion(t *testing.T) {
	rs := newTestRoutes(t)
	cfg := testConfig(1, 1)
	cfg.Portion = &domain.PortionConfig{Bips: 100}

	rwqs := []*domain.RouteWithValidQuote{quoted(rs.v3Low, 100, 1000, 1000, 10, domain.ExactInput)}
	plan, err := newTestOptimizer().GetBestSwapRoute(big.NewInt(1000), []int{100}, rwqs, domain.ExactInput, domain.ChainMainnet, cfg, portion.NewProvider(), nil)
	require.NoError(t, err)
	require.Equal(t, "10", plan.PortionAmount.String())
	require.Equal(t, "990", plan.QuoteGasAdjusted.String())
	require.Equal(t, "980", plan.QuoteGasAndPortionAdjusted.String())

	rwqs = []*domain.RouteWithValidQuote{quoted(rs.v3Low, 100, 1000, 2000, 10, domain.ExactOutput)}
	plan, err = newTestOptimizer().GetBestSwapRoute(big.NewInt(1000), []int{100}, rwqs, domain.ExactOutput, domain.ChainMainnet, cfg, portion.NewProvider(), nil)
	require.NoError(t, err)
	require.Equal(t, "10", plan.PortionAmount.String())
	require.Equal(t, "20", plan.PortionQuoteAmount.String())
	require.Equal(t, "2030", plan.QuoteGasAndPortionAdjusted.String())
}

func TestBestSwapRouteForceCrossProtocol(t *testing.T) {
	rs := newTestRoutes(t)
	rwqs := []*domain.RouteWithValidQuote{
		quoted(rs.v3Low, 50, 500, 600, 0, domain.ExactInput),
		quoted(rs.v3Med, 50, 500, 590, 0, domain.ExactInput),
		quoted(rs.v2Direct, 50, 500, 400, 0, domain.ExactInput),
		quoted(rs.v3Low, 100, 1000, 1300, 0, domain.ExactInput),
	}
	cfg := testConfig(1, 2)
	cfg.ForceCrossProtocol = true

	plan, err := newTestOptimizer().GetBestSwapRoute(big.NewInt(1000), halves, rwqs, domain.ExactInput, domain.ChainMainnet, cfg, nil, nil)
	require.NoError(t, err)
	require.Len(t, plan.Protocols(), 2)
	require.Equal(t, "1000", plan.QuoteGasAdjusted.String())

	_, err = newTestOptimizer().GetBestSwapRoute(big.NewInt(1000), halves, rwqs[:2], domain.ExactInput, domain.ChainMainnet, cfg, nil, nil)
	require.ErrorIs(t, err, common.ErrNoRouteFound)
}

func TestBestSwapRouteDeterministic(t *testing.T) {
	rs := newTestRoutes(t)
	rwqs := []*domain.RouteWithValidQuote{
		quoted(rs.v3Low, 50, 500, 510, 1, domain.ExactInput),
		quoted(rs.v3Med, 50, 500, 510, 1, domain.ExactInput),
		quoted(rs.v2Direct, 50, 500, 510, 1, domain.ExactInput),
		quoted(rs.v2ViaMid, 50, 500, 505, 1, domain.ExactInput),
		quoted(rs.v3Low, 100, 1000, 1000, 1, domain.ExactInput),
	}
	opt := newTestOptimizer()
	first, err := opt.GetBestSwapRoute(big.NewInt(1000), halves, rwqs, domain.ExactInput, domain.ChainMainnet, testConfig(1, 2), nil, nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := opt.GetBestSwapRoute(big.NewInt(1000), halves, rwqs, domain.ExactInput, domain.ChainMainnet, testConfig(1, 2), nil, nil)
		require.NoError(t, err)
		require.Equal(t, routeKeys(first), routeKeys(again))
		require.Equal(t, first.QuoteGasAdjusted.String(), again.QuoteGasAdjusted.String())
	}
}

func TestBestSwapRouteMoreCandidatesNeverWorse(t *testing.T) {
	rs := newTestRoutes(t)
	base := []*domain.RouteWithValidQuote{
		quoted(rs.v3Low, 25, 250, 260, 2, domain.ExactInput),
		quoted(rs.v3Low, 50, 500, 505, 2, domain.ExactInput),
		quoted(rs.v3Low, 75, 750, 752, 2, domain.ExactInput),
		quoted(rs.v3Low, 100, 1000, 990, 2, domain.ExactInput),
		quoted(rs.v3Med, 25, 250, 255, 2, domain.ExactInput),
		quoted(rs.v3Med, 75, 750, 740, 2, domain.ExactInput),
	}
	extra := []*domain.RouteWithValidQuote{
		quoted(rs.v2Direct, 25, 250, 262, 5, domain.ExactInput),
		quoted(rs.v2Direct, 50, 500, 498, 5, domain.ExactInput),
		quoted(rs.v2ViaMid, 50, 500, 520, 8, domain.ExactInput),
	}
	percents := []int{25, 50, 75, 100}
	opt := newTestOptimizer()

	before, err := opt.GetBestSwapRoute(big.NewInt(1000), percents, base, domain.ExactInput, domain.ChainMainnet, testConfig(1, 4), nil, nil)
	require.NoError(t, err)
	after, err := opt.GetBestSwapRoute(big.NewInt(1000), percents, append(base, extra...), domain.ExactInput, domain.ChainMainnet, testConfig(1, 4), nil, nil)
	require.NoError(t, err)
	require.True(t, after.QuoteGasAdjusted.Cmp(before.QuoteGasAdjusted) >= 0,
		"before %s after %s", before.QuoteGasAdjusted, after.QuoteGasAdjusted)
	require.Equal(t, 100, after.TotalPercent())
}

func TestBestSwapRouteMoreCandidatesThroughSharedPoolNeverWorse(t *testing.T) {
	rs := newTestRoutes(t)
	base := []*domain.RouteWithValidQuote{
		quoted(rs.v2ViaMid, 50, 500, 600, 0, domain.ExactInput),
		quoted(rs.v3Low, 50, 500, 500, 0, domain.ExactInput),
		quoted(rs.v3Low, 100, 1000, 900, 0, domain.ExactInput),
	}
	// Ten better 50% quotes, all through the IN/MID pool of v2ViaMid.
	inMid := v2Pool(tokIn, tokMid, 1_000_000)
	var hub []*domain.RouteWithValidQuote
	for i := 0; i < 10; i++ {
		via := domain.NewToken(domain.ChainMainnet, fmt.Sprintf("0x%040x", 0x10+i), 18, fmt.Sprintf("H%d", i), "Hub")
		route := mustRoute(t, tokIn, tokOut, inMid, v2Pool(tokMid, via, 1_000_000), v2Pool(via, tokOut, 1_000_000))
		hub = append(hub, quoted(route, 50, 500, int64(550+i), 0, domain.ExactInput))
	}
	percents := []int{50, 100}
	cfg := testConfig(1, 2)
	opt := newTestOptimizer()

	before, err := opt.GetBestSwapRoute(big.NewInt(1000), percents, base, domain.ExactInput, domain.ChainMainnet, cfg, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "1100", before.QuoteGasAdjusted.String())
	require.Equal(t, 2, before.Splits())

	after, err := opt.GetBestSwapRoute(big.NewInt(1000), percents, append(hub, base...), domain.ExactInput, domain.ChainMainnet, cfg, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "1100", after.QuoteGasAdjusted.String())
	require.Equal(t, routeKeys(before), routeKeys(after))
}

func TestTrimBucketKeepsDisjointReserve(t *testing.T) {
	rs := newTestRoutes(t)
	mk := func(route *domain.Route, score int64) *candidate {
		return &candidate{
			rwq:      quoted(route, 50, 500, score, 0, domain.ExactInput),
			score:    big.NewInt(score),
			routeKey: route.Key(),
			pools:    route.PoolIdentifiers(),
			protocol: route.Protocol,
			shape:    routeShape(route),
		}
	}
	list := []*candidate{
		mk(rs.v2ViaMid, 600),
		mk(rs.mixedViaMid, 590),
		mk(rs.v3Low, 500),
		mk(rs.v3Med, 490),
		mk(rs.v2Direct, 480),
	}

	require.Len(t, trimBucket(list, 10, 2), 5)

	kept := trimBucket(list, 1, 1)
	keys := make([]string, len(kept))
	for i, c := range kept {
		keys[i] = c.routeKey
	}
	// v3Med is dropped: v3Low already covers the V3 shape.
	require.Equal(t, []string{rs.v2ViaMid.Key(), rs.mixedViaMid.Key(), rs.v3Low.Key(), rs.v2Direct.Key()}, keys)
	require.Equal(t, "V3", routeShape(rs.v3Low))
	require.Equal(t, "V2>V3", routeShape(rs.mixedViaMid))
}

func TestPercentPartitions(t *testing.T) {
	desc := []int{100, 75, 50, 25}
	require.Equal(t, [][]int{{100}}, percentPartitions(desc, 1))
	require.Equal(t, [][]int{{75, 25}, {50, 50}}, percentPartitions(desc, 2))
	require.Equal(t, [][]int{{50, 25, 25}}, percentPartitions(desc, 3))
	require.Equal(t, [][]int{{25, 25, 25, 25}}, percentPartitions(desc, 4))
	require.Empty(t, percentPartitions(desc, 5))
	require.Empty(t, percentPartitions([]int{40}, 2))
}
