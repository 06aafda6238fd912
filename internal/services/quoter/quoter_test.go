package quoter

import (
	"context"
	"math/big"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/split-router/internal/domain"
)

type flatGasModel struct {
	cost int64
}

func (m flatGasModel) EstimateGasCost(*domain.RouteWithValidQuote) (domain.GasCost, error) {
	return domain.GasCost{
		GasEstimate:    big.NewInt(100_000),
		GasCostInToken: big.NewInt(m.cost),
		GasCostInUSD:   big.NewInt(m.cost),
	}, nil
}

func (m flatGasModel) CalculateL1GasFees([]*domain.RouteWithValidQuote) (domain.L1GasFees, error) {
	return domain.ZeroL1GasFees(), nil
}

func buckets(total int64) ([]*big.Int, []int) {
	percents := []int{50, 100}
	amounts := []*big.Int{big.NewInt(total / 2), big.NewInt(total)}
	return amounts, percents
}

func TestGetQuotesDropsFailedBuckets(t *testing.T) {
	deep := domain.NewV2Pool(tokenA, tokenB, big.NewInt(1e12), big.NewInt(1e12))
	shallow := domain.NewV2Pool(tokenA, tokenC, big.NewInt(1e12), big.NewInt(1e12))
	thin := domain.NewV2Pool(tokenC, tokenB, big.NewInt(10), big.NewInt(10))

	direct, err := domain.NewRoute([]*domain.Pool{deep}, tokenA, tokenB)
	require.NoError(t, err)
	viaC, err := domain.NewRoute([]*domain.Pool{shallow, thin}, tokenA, tokenB)
	require.NoError(t, err)

	amounts, percents := buckets(1_000_000)
	q := NewV2Quoter(zerolog.Nop())
	res, err := q.GetQuotes(context.Background(), []*domain.Route{direct, viaC}, amounts, percents,
		tokenA, domain.ExactOutput, domain.DefaultRoutingConfig(), flatGasModel{cost: 7})
	require.NoError(t, err)

	require.Len(t, res.RoutesWithValidQuotes, 2)
	require.Equal(t, 2, res.Dropped)
	require.False(t, res.Incomplete)
	for _, rwq := range res.RoutesWithValidQuotes {
		require.Equal(t, direct.Key(), rwq.Route.Key())
		require.Equal(t, new(big.Int).Add(rwq.RawQuote, big.NewInt(7)), rwq.QuoteAdjustedForGas)
	}
	require.Len(t, res.CandidatePools, 1)
}

func TestGetQuotesWithoutGasModel(t *testing.T) {
	pool := domain.NewV2Pool(tokenA, tokenB, big.NewInt(1e12), big.NewInt(1e12))
	route, err := domain.NewRoute([]*domain.Pool{pool}, tokenA, tokenB)
	require.NoError(t, err)

	amounts, percents := buckets(1_000_000)
	res, err := NewV2Quoter(zerolog.Nop()).GetQuotes(context.Background(), []*domain.Route{route}, amounts, percents,
		tokenB, domain.ExactInput, domain.DefaultRoutingConfig(), nil)
	require.NoError(t, err)
	require.Len(t, res.RoutesWithValidQuotes, 2)
	for _, rwq := range res.RoutesWithValidQuotes {
		require.False(t, rwq.HasGasCost())
		require.Equal(t, rwq.RawQuote, rwq.AdjustedQuote())
	}
}

func TestGetQuotesIgnoresOtherProtocols(t *testing.T) {
	pool := domain.NewV2Pool(tokenA, tokenB, big.NewInt(1e12), big.NewInt(1e12))
	route, err := domain.NewRoute([]*domain.Pool{pool}, tokenA, tokenB)
	require.NoError(t, err)

	amounts, percents := buckets(1_000_000)
	res, err := NewV3Quoter(zerolog.Nop()).GetQuotes(context.Background(), []*domain.Route{route}, amounts, percents,
		tokenB, domain.ExactInput, domain.DefaultRoutingConfig(), nil)
	require.NoError(t, err)
	require.Empty(t, res.RoutesWithValidQuotes)
}

func TestMixedQuoterSkipsExactOutput(t *testing.T) {
	v2 := domain.NewV2Pool(tokenA, tokenB, big.NewInt(1e12), big.NewInt(1e12))
	v3, err := domain.NewV3Pool(tokenB, tokenC, domain.FeeLow, q96, big.NewInt(1e18), 0, nil)
	require.NoError(t, err)
	route, err := domain.NewRoute([]*domain.Pool{v2, v3}, tokenA, tokenC)
	require.NoError(t, err)
	require.Equal(t, domain.ProtocolMixed, route.Protocol)

	amounts, percents := buckets(1_000_000)
	q := NewMixedQuoter(zerolog.Nop())

	res, err := q.GetQuotes(context.Background(), []*domain.Route{route}, amounts, percents,
		tokenA, domain.ExactOutput, domain.DefaultRoutingConfig(), nil)
	require.NoError(t, err)
	require.Empty(t, res.RoutesWithValidQuotes)

	res, err = q.GetQuotes(context.Background(), []*domain.Route{route}, amounts, percents,
		tokenC, domain.ExactInput, domain.DefaultRoutingConfig(), nil)
	require.NoError(t, err)
	require.Len(t, res.RoutesWithValidQuotes, 2)
	require.Len(t, res.CandidatePools, 2)
}

func TestGetQuotesCancelledContext(t *testing.T) {
	pool := domain.NewV2Pool(tokenA, tokenB, big.NewInt(1e12), big.NewInt(1e12))
	route, err := domain.NewRoute([]*domain.Pool{pool}, tokenA, tokenB)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	amounts, percents := buckets(1_000_000)
	res, err := NewV2Quoter(zerolog.Nop()).GetQuotes(ctx, []*domain.Route{route}, amounts, percents,
		tokenB, domain.ExactInput, domain.DefaultRoutingConfig(), nil)
	require.NoError(t, err)
	require.True(t, res.Incomplete)
	require.Empty(t, res.RoutesWithValidQuotes)
}

func TestGetQuotesRejectsMismatchedBuckets(t *testing.T) {
	_, err := NewV2Quoter(zerolog.Nop()).GetQuotes(context.Background(), nil, []*big.Int{big.NewInt(1)}, nil,
		tokenB, domain.ExactInput, domain.DefaultRoutingConfig(), nil)
	require.Error(t, err)
}
