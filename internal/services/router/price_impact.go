package router

import (
	"math/big"

	"github.com/hxuan190/split-router/internal/domain"
)

// Price impact thresholds in basis points (bps)
const (
	PriceImpactLow      uint16 = 100  // 1%
	PriceImpactModerate uint16 = 300  // 3%
	PriceImpactHigh     uint16 = 500  // 5%
	PriceImpactExtreme  uint16 = 1000 // 10%
)

var BPS_DENOM = big.NewInt(10_000)

type PriceImpactSeverity string

const (
	SeverityNone     PriceImpactSeverity = "none"
	SeverityLow      PriceImpactSeverity = "low"
	SeverityModerate PriceImpactSeverity = "moderate"
	SeverityHigh     PriceImpactSeverity = "high"
	SeverityExtreme  PriceImpactSeverity = "extreme"
)

func GetPriceImpactSeverity(priceImpactBps uint16) PriceImpactSeverity {
	switch {
	case priceImpactBps < PriceImpactLow:
		return SeverityNone
	case priceImpactBps < PriceImpactModerate:
		return SeverityLow
	case priceImpactBps < PriceImpactHigh:
		return SeverityModerate
	case priceImpactBps < PriceImpactExtreme:
		return SeverityHigh
	default:
		return SeverityExtreme
	}
}

// GetPriceImpactWarning returns a user-facing warning for the impact level.
func GetPriceImpactWarning(priceImpactBps uint16) string {
	switch GetPriceImpactSeverity(priceImpactBps) {
	case SeverityLow:
		return "Low price impact"
	case SeverityModerate:
		return "Moderate price impact - consider reducing trade size"
	case SeverityHigh:
		return "High price impact - you may receive significantly less tokens"
	case SeverityExtreme:
		return "EXTREME price impact - this trade will severely impact the market price"
	default:
		return ""
	}
}

// routeMidPrice multiplies the pool mid prices along the route, giving the
// price of the route input in the route output as a fraction.
func routeMidPrice(route *domain.Route) (num, den *big.Int) {
	num, den = big.NewInt(1), big.NewInt(1)
	for i, pool := range route.Pools {
		n, d := pool.PriceOf(route.TokenPath[i])
		num.Mul(num, n)
		den.Mul(den, d)
	}
	return num, den
}

// CalculatePlanPriceImpact compares the plan's output against what the
// pre-trade mid prices of its routes would give for the same inputs. Pool
// fees are part of the impact.
func CalculatePlanPriceImpact(plan *domain.SwapPlan) uint16 {
	if plan == nil || len(plan.Routes) == 0 {
		return 0
	}
	expected := new(big.Rat)
	actual := new(big.Int)
	for _, r := range plan.Routes {
		in, out := r.Amount, r.RawQuote
		if plan.TradeType == domain.ExactOutput {
			in, out = r.RawQuote, r.Amount
		}
		num, den := routeMidPrice(r.Route)
		if den.Sign() == 0 {
			return 0
		}
		leg := new(big.Rat).SetFrac(new(big.Int).Mul(in, num), den)
		expected.Add(expected, leg)
		actual.Add(actual, out)
	}
	if expected.Sign() <= 0 {
		return 0
	}
	diff := new(big.Rat).Sub(expected, new(big.Rat).SetInt(actual))
	if diff.Sign() <= 0 {
		return 0
	}
	impact := diff.Quo(diff, expected)
	impact.Mul(impact, new(big.Rat).SetInt(BPS_DENOM))
	bps := new(big.Int).Quo(impact.Num(), impact.Denom())
	if !bps.IsUint64() || bps.Uint64() > 65535 {
		return 65535
	}
	return uint16(bps.Uint64())
}
