package router

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hxuan190/split-router/internal/domain"
)

func TestGetPriceImpactSeverity(t *testing.T) {
	tests := []struct {
		bps  uint16
		want PriceImpactSeverity
	}{
		{0, SeverityNone},
		{99, SeverityNone},
		{100, SeverityLow},
		{300, SeverityModerate},
		{500, SeverityHigh},
		{999, SeverityHigh},
		{1000, SeverityExtreme},
	}
	for _, tt := range tests {
		if got := GetPriceImpactSeverity(tt.bps); got != tt.want {
			t.Errorf("GetPriceImpactSeverity(%d) = %s, want %s", tt.bps, got, tt.want)
		}
	}
	if GetPriceImpactWarning(50) != "" {
		t.Error("no warning expected below 1%")
	}
}

func TestCalculatePlanPriceImpact(t *testing.T) {
	route := mustRoute(t, tokIn, tokOut, v2Pool(tokIn, tokOut, 1_000_000))

	exactIn := &domain.SwapPlan{
		TradeType: domain.ExactInput,
		Routes:    []*domain.RouteWithValidQuote{quoted(route, 100, 1000, 990, 0, domain.ExactInput)},
	}
	require.Equal(t, uint16(100), CalculatePlanPriceImpact(exactIn))

	exactOut := &domain.SwapPlan{
		TradeType: domain.ExactOutput,
		Routes:    []*domain.RouteWithValidQuote{quoted(route, 100, 1000, 1010, 0, domain.ExactOutput)},
	}
	require.Equal(t, uint16(99), CalculatePlanPriceImpact(exactOut))

	better := &domain.SwapPlan{
		TradeType: domain.ExactInput,
		Routes:    []*domain.RouteWithValidQuote{quoted(route, 100, 1000, 1001, 0, domain.ExactInput)},
	}
	require.Zero(t, CalculatePlanPriceImpact(better))
	require.Zero(t, CalculatePlanPriceImpact(nil))
}

func TestCalculatePlanPriceImpactUsesPoolPrice(t *testing.T) {
	// 2 OUT per IN.
	pool := domain.NewV2Pool(tokIn, tokOut, big.NewInt(1_000_000), big.NewInt(2_000_000))
	route := mustRoute(t, tokIn, tokOut, pool)
	plan := &domain.SwapPlan{
		TradeType: domain.ExactInput,
		Routes:    []*domain.RouteWithValidQuote{quoted(route, 100, 1000, 1900, 0, domain.ExactInput)},
	}
	require.Equal(t, uint16(500), CalculatePlanPriceImpact(plan))
}
