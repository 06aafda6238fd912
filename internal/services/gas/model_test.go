package gas

import (
	"context"
	"math/big"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/split-router/internal/domain"
)

func chainTokens(t *testing.T, id domain.ChainID) (weth, usdc domain.Token) {
	t.Helper()
	info, ok := domain.ChainByID(id)
	require.True(t, ok)
	return info.WrappedNative, info.USDStable
}

// 1 WETH = 2000 USDC.
func wethUsdcPool(weth, usdc domain.Token) *domain.Pool {
	return domain.NewV2Pool(weth, usdc, new(big.Int).Mul(big.NewInt(1000), big.NewInt(1e18)), big.NewInt(2_000_000_000_000))
}

func singleHopQuote(t *testing.T, pool *domain.Pool, in, out domain.Token, ticks []uint32) *domain.RouteWithValidQuote {
	t.Helper()
	route, err := domain.NewRoute([]*domain.Pool{pool}, in, out)
	require.NoError(t, err)
	rwq := domain.NewRouteWithValidQuote(route, 100, big.NewInt(1e18), big.NewInt(2_000_000_000), domain.ExactInput, out)
	rwq.InitializedTicksCrossedList = ticks
	return rwq
}

func TestGasUnitsWeighting(t *testing.T) {
	weth, usdc := chainTokens(t, domain.ChainMainnet)
	dai := domain.NewToken(domain.ChainMainnet, "0x6B175474E89094C44Da98b954EedeAC495271d0F", 18, "DAI", "")

	v2a := domain.NewV2Pool(weth, usdc, big.NewInt(1), big.NewInt(1))
	v2b := domain.NewV2Pool(usdc, dai, big.NewInt(1), big.NewInt(1))
	v2Route, err := domain.NewRoute([]*domain.Pool{v2a, v2b}, weth, dai)
	require.NoError(t, err)
	require.Equal(t, int64(V2BaseSwapCost+V2CostPerExtraHop), GasUnits(domain.ChainMainnet, v2Route, nil).Int64())

	t0, t1 := weth, usdc
	if t1.SortsBefore(t0) {
		t0, t1 = t1, t0
	}
	v3, err := domain.NewV3Pool(t0, t1, domain.FeeLow, new(big.Int).Lsh(big.NewInt(1), 96), big.NewInt(1), 0, nil)
	require.NoError(t, err)
	v3Route, err := domain.NewRoute([]*domain.Pool{v3}, weth, usdc)
	require.NoError(t, err)
	require.Equal(t, int64(V3BaseSwapCost+V3CostPerHop+2*V3CostPerInitTick), GasUnits(domain.ChainMainnet, v3Route, []uint32{2}).Int64())

	noTicks := GasUnits(domain.ChainMainnet, v3Route, []uint32{0})
	withTicks := GasUnits(domain.ChainMainnet, v3Route, []uint32{3})
	require.Equal(t, 1, withTicks.Cmp(noTicks))
}

func TestEstimateGasCostInQuoteToken(t *testing.T) {
	weth, usdc := chainTokens(t, domain.ChainMainnet)
	pool := wethUsdcPool(weth, usdc)

	factory := NewFactory(NewStaticGasPriceProvider(decimal.NewFromInt(1)), nil, zerolog.Nop())
	model, err := factory.BuildGasModel(context.Background(), domain.ChainMainnet, usdc, nil, []*domain.Pool{pool})
	require.NoError(t, err)

	rwq := singleHopQuote(t, pool, weth, usdc, nil)
	cost, err := model.EstimateGasCost(rwq)
	require.NoError(t, err)

	// 135000 gas at 1 gwei = 0.000135 ETH = 0.27 USDC.
	require.Equal(t, int64(V2BaseSwapCost), cost.GasEstimate.Int64())
	require.Equal(t, int64(270_000), cost.GasCostInToken.Int64())
	require.Equal(t, int64(270_000), cost.GasCostInUSD.Int64())
	require.Nil(t, cost.GasCostInGasToken)
}

func TestEstimateGasCostWithoutPricingPool(t *testing.T) {
	weth, usdc := chainTokens(t, domain.ChainMainnet)
	pool := wethUsdcPool(weth, usdc)

	factory := NewFactory(NewStaticGasPriceProvider(decimal.NewFromInt(1)), nil, zerolog.Nop())
	model, err := factory.BuildGasModel(context.Background(), domain.ChainMainnet, usdc, nil, nil)
	require.NoError(t, err)

	cost, err := model.EstimateGasCost(singleHopQuote(t, pool, weth, usdc, nil))
	require.NoError(t, err)
	require.Zero(t, cost.GasCostInToken.Sign())
	require.Equal(t, int64(V2BaseSwapCost), cost.GasEstimate.Int64())
}

func TestL1FeesOnlyOnRollups(t *testing.T) {
	weth, usdc := chainTokens(t, domain.ChainMainnet)
	factory := NewFactory(NewStaticGasPriceProvider(decimal.NewFromInt(1)), nil, zerolog.Nop())
	pool := wethUsdcPool(weth, usdc)
	model, err := factory.BuildGasModel(context.Background(), domain.ChainMainnet, usdc, nil, []*domain.Pool{pool})
	require.NoError(t, err)
	fees, err := model.CalculateL1GasFees([]*domain.RouteWithValidQuote{singleHopQuote(t, pool, weth, usdc, nil)})
	require.NoError(t, err)
	require.True(t, fees.IsZero())

	baseWeth, baseUsdc := chainTokens(t, domain.ChainBase)
	basePool := wethUsdcPool(baseWeth, baseUsdc)
	baseModel, err := factory.BuildGasModel(context.Background(), domain.ChainBase, baseUsdc, nil, []*domain.Pool{basePool})
	require.NoError(t, err)

	one := []*domain.RouteWithValidQuote{singleHopQuote(t, basePool, baseWeth, baseUsdc, nil)}
	two := append(one, singleHopQuote(t, basePool, baseWeth, baseUsdc, nil))

	fee1, err := baseModel.CalculateL1GasFees(one)
	require.NoError(t, err)
	fee2, err := baseModel.CalculateL1GasFees(two)
	require.NoError(t, err)
	require.Equal(t, 1, fee1.GasCostL1QuoteToken.Sign())
	require.Equal(t, 1, fee2.GasCostL1QuoteToken.Cmp(fee1.GasCostL1QuoteToken))
	require.Equal(t, 1, fee1.GasUsedL1OnL2.Sign())
}

func TestGasTokenOverride(t *testing.T) {
	weth, usdc := chainTokens(t, domain.ChainMainnet)
	dai := domain.NewToken(domain.ChainMainnet, "0x6B175474E89094C44Da98b954EedeAC495271d0F", 18, "DAI", "")
	pools := []*domain.Pool{
		wethUsdcPool(weth, usdc),
		domain.NewV2Pool(weth, dai, big.NewInt(1e18), new(big.Int).Mul(big.NewInt(2000), big.NewInt(1e18))),
	}
	factory := NewFactory(NewStaticGasPriceProvider(decimal.NewFromInt(1)), nil, zerolog.Nop())
	model, err := factory.BuildGasModel(context.Background(), domain.ChainMainnet, usdc, &dai, pools)
	require.NoError(t, err)

	cost, err := model.EstimateGasCost(singleHopQuote(t, pools[0], weth, usdc, nil))
	require.NoError(t, err)
	require.NotNil(t, cost.GasCostInGasToken)
	// 0.000135 ETH = 0.27 DAI.
	require.Equal(t, "270000000000000000", cost.GasCostInGasToken.String())
}

func TestPricingPairs(t *testing.T) {
	weth, usdc := chainTokens(t, domain.ChainMainnet)
	pairs := PricingPairs(domain.ChainMainnet, usdc, nil)
	require.Len(t, pairs, 1)

	info, _ := domain.ChainByID(domain.ChainMainnet)
	require.Len(t, PricingPairs(domain.ChainMainnet, info.NativeCurrency(), nil), 1)
	require.Len(t, PricingPairs(domain.ChainMainnet, weth, nil), 1)
}
