package router

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/split-router/internal/common"
	"github.com/hxuan190/split-router/internal/domain"
	"github.com/hxuan190/split-router/internal/services/gas"
	"github.com/hxuan190/split-router/internal/services/market"
	"github.com/hxuan190/split-router/internal/services/portion"
	"github.com/hxuan190/split-router/internal/services/quoter"
)

const testBlock = 100

func mainnetTokens(t *testing.T) (weth, usdc, dai domain.Token) {
	t.Helper()
	info, ok := domain.ChainByID(domain.ChainMainnet)
	require.True(t, ok)
	for _, tok := range info.BaseTokens {
		if tok.Symbol == "DAI" {
			dai = tok
		}
	}
	return info.WrappedNative, info.USDStable, dai
}

// newTestAlphaRouter serves a 2000 USDC/WETH market through one V2 and one
// V3 pool at block 100.
func newTestAlphaRouter(t *testing.T) *AlphaRouter {
	t.Helper()
	return newTestAlphaRouterWith(t, nil)
}

// stallingProvider answers block and pricing lookups but holds ListPools
// until the request deadline.
type stallingProvider struct {
	market.PoolProvider
}

func (p stallingProvider) ListPools(ctx context.Context, _ domain.ChainID, _ uint64) ([]*domain.Pool, error) {
	<-ctx.Done()
	return nil, fmt.Errorf("%w: %v", common.ErrProviderTimeout, ctx.Err())
}

func newTestAlphaRouterWith(t *testing.T, wrapV3 func(market.PoolProvider) market.PoolProvider) *AlphaRouter {
	t.Helper()
	weth, usdc, _ := mainnetTokens(t)

	sqrtPrice, ok := new(big.Int).SetString("1771595571142957102961017161607260", 10)
	require.True(t, ok)
	v3, err := domain.NewV3Pool(usdc, weth, domain.FeeLow, sqrtPrice, big.NewInt(44721359549995793), 200311, nil)
	require.NoError(t, err)
	thousandWETH, _ := new(big.Int).SetString("1000000000000000000000", 10)
	v2 := domain.NewV2Pool(weth, usdc, thousandWETH, big.NewInt(2_000_000_000_000))

	set := []market.PoolSet{{ChainID: domain.ChainMainnet, BlockNumber: testBlock, Pools: []*domain.Pool{v2, v3}}}
	registry := market.NewProtocolRegistry()
	registry.RegisterProvider(market.NewSnapshotPoolProvider(domain.ProtocolV2, set, market.DefaultProviderOptions(), zerolog.Nop()))
	var v3Provider market.PoolProvider = market.NewSnapshotPoolProvider(domain.ProtocolV3, set, market.DefaultProviderOptions(), zerolog.Nop())
	if wrapV3 != nil {
		v3Provider = wrapV3(v3Provider)
	}
	registry.RegisterProvider(v3Provider)
	registry.RegisterQuoter(quoter.NewV2Quoter(zerolog.Nop()))
	registry.RegisterQuoter(quoter.NewV3Quoter(zerolog.Nop()))
	registry.RegisterQuoter(quoter.NewMixedQuoter(zerolog.Nop()))

	return NewAlphaRouter(AlphaRouterDeps{
		Registry:   registry,
		GasFactory: gas.NewFactory(gas.NewStaticGasPriceProvider(decimal.NewFromInt(1)), nil, zerolog.Nop()),
		Portion:    portion.NewProvider(),
	}, zerolog.Nop())
}

func routingConfig() domain.AlphaRouterConfig {
	cfg := domain.DefaultRoutingConfig()
	cfg.MaxSplits = 3
	cfg.DistributionPercent = 10
	return cfg
}

func TestAlphaRouterExactInput(t *testing.T) {
	r := newTestAlphaRouter(t)
	weth, usdc, _ := mainnetTokens(t)
	oneWETH := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	res, err := r.Route(context.Background(), oneWETH, weth, usdc, domain.ExactInput, routingConfig())
	require.NoError(t, err)
	require.True(t, res.RouteFound)
	require.Equal(t, uint64(testBlock), res.BlockNumber)
	require.False(t, res.QuotingIncomplete)
	require.Len(t, res.Percents, 10)
	require.NotEmpty(t, res.Candidates)

	plan := res.Plan
	require.Equal(t, 100, plan.TotalPercent())
	require.Equal(t, uint64(testBlock), plan.BlockNumber)
	require.True(t, plan.QuoteToken.Equals(usdc))
	require.True(t, plan.Quote.Cmp(big.NewInt(1_980_000_000)) > 0, "quote %s", plan.Quote)
	require.True(t, plan.Quote.Cmp(big.NewInt(2_000_000_000)) < 0, "quote %s", plan.Quote)
	require.True(t, plan.QuoteGasAdjusted.Cmp(plan.Quote) < 0, "gas must be charged")
	require.True(t, plan.EstimatedGasUsed.Sign() > 0)

	sum := new(big.Int)
	for _, leg := range plan.Routes {
		sum.Add(sum, leg.Amount)
	}
	require.Equal(t, oneWETH.String(), sum.String())
}

func TestAlphaRouterNativeAndExactOutput(t *testing.T) {
	r := newTestAlphaRouter(t)
	weth, usdc, _ := mainnetTokens(t)
	info, _ := domain.ChainByID(domain.ChainMainnet)

	res, err := r.Route(context.Background(), big.NewInt(500_000_000), usdc, info.NativeCurrency(), domain.ExactInput, routingConfig())
	require.NoError(t, err)
	require.True(t, res.RouteFound)
	require.True(t, res.TokenOut.Equals(weth))

	res, err = r.Route(context.Background(), big.NewInt(2_000_000_000), weth, usdc, domain.ExactOutput, routingConfig())
	require.NoError(t, err)
	require.True(t, res.RouteFound)
	require.True(t, res.Plan.QuoteToken.Equals(weth))
	require.True(t, res.Plan.QuoteGasAdjusted.Cmp(res.Plan.Quote) > 0)
	for _, leg := range res.Plan.Routes {
		require.NotEqual(t, domain.ProtocolMixed, leg.Route.Protocol)
	}
}

func TestAlphaRouterNoRoute(t *testing.T) {
	r := newTestAlphaRouter(t)
	_, usdc, dai := mainnetTokens(t)

	res, err := r.Route(context.Background(), big.NewInt(1_000_000), usdc, dai, domain.ExactInput, routingConfig())
	require.NoError(t, err)
	require.False(t, res.RouteFound)
	require.Nil(t, res.Plan)
}

func TestAlphaRouterErrors(t *testing.T) {
	r := newTestAlphaRouter(t)
	weth, usdc, _ := mainnetTokens(t)

	stale := routingConfig()
	stale.BlockNumber = testBlock - 1
	_, err := r.Route(context.Background(), big.NewInt(1e18), weth, usdc, domain.ExactInput, stale)
	require.ErrorIs(t, err, common.ErrStaleSnapshot)

	bad := routingConfig()
	bad.DistributionPercent = 30
	_, err = r.Route(context.Background(), big.NewInt(1e18), weth, usdc, domain.ExactInput, bad)
	require.ErrorIs(t, err, common.ErrInvalidConfig)

	_, err = r.Route(context.Background(), big.NewInt(1e18), weth, weth, domain.ExactInput, routingConfig())
	require.ErrorIs(t, err, common.ErrInvalidConfig)

	_, err = r.Route(context.Background(), big.NewInt(0), weth, usdc, domain.ExactInput, routingConfig())
	require.ErrorIs(t, err, common.ErrInvalidConfig)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Route(ctx, big.NewInt(1e18), weth, usdc, domain.ExactInput, routingConfig())
	require.ErrorIs(t, err, common.ErrProviderTimeout)
}

func TestAlphaRouterRoutesOnPartialQuotesAtDeadline(t *testing.T) {
	r := newTestAlphaRouterWith(t, func(p market.PoolProvider) market.PoolProvider {
		return stallingProvider{PoolProvider: p}
	})
	weth, usdc, _ := mainnetTokens(t)
	oneWETH := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	res, err := r.Route(ctx, oneWETH, weth, usdc, domain.ExactInput, routingConfig())
	require.NoError(t, err)
	require.True(t, res.RouteFound)
	require.True(t, res.QuotingIncomplete)
	require.True(t, res.Plan.QuotingIncomplete)
	require.Equal(t, 100, res.Plan.TotalPercent())

	sum := new(big.Int)
	for _, leg := range res.Plan.Routes {
		require.Equal(t, domain.ProtocolV2, leg.Route.Protocol)
		sum.Add(sum, leg.Amount)
	}
	require.Equal(t, oneWETH.String(), sum.String())
}

func TestAlphaRouterCachesEnumeration(t *testing.T) {
	r := newTestAlphaRouter(t)
	weth, usdc, _ := mainnetTokens(t)

	first, err := r.Route(context.Background(), big.NewInt(1e17), weth, usdc, domain.ExactInput, routingConfig())
	require.NoError(t, err)
	cached := r.routeCache.Len()
	require.Positive(t, cached)

	second, err := r.Route(context.Background(), big.NewInt(1e17), weth, usdc, domain.ExactInput, routingConfig())
	require.NoError(t, err)
	require.Equal(t, cached, r.routeCache.Len())
	require.Equal(t, routeKeys(first.Plan), routeKeys(second.Plan))
}

func TestAlphaRouterReplay(t *testing.T) {
	r := newTestAlphaRouter(t)
	weth, usdc, _ := mainnetTokens(t)
	oneWETH := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	cfg := routingConfig()

	live, err := r.Route(context.Background(), oneWETH, weth, usdc, domain.ExactInput, cfg)
	require.NoError(t, err)
	require.True(t, live.RouteFound)

	replayed, err := r.Replay(context.Background(), domain.ChainMainnet, live.BlockNumber, oneWETH, live.Percents, live.Candidates, domain.ExactInput, cfg)
	require.NoError(t, err)
	require.True(t, replayed.RouteFound)
	require.Equal(t, live.Plan.Quote.String(), replayed.Plan.Quote.String())
	require.Equal(t, routeKeys(live.Plan), routeKeys(replayed.Plan))
	require.True(t, replayed.TokenIn.Equals(weth))

	_, err = r.Replay(context.Background(), domain.ChainMainnet, live.BlockNumber, oneWETH, live.Percents, nil, domain.ExactInput, cfg)
	require.ErrorIs(t, err, common.ErrInvalidConfig)
}
