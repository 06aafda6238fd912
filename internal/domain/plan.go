package domain

import (
	"math/big"
)

// SwapPlan is the chosen execution: routes whose percents sum to 100.
//
// Leg amounts sum to Amount. The rounding Dust left by the percent buckets
// is added to the amount of Routes[0], whose RawQuote and gas figures stay
// those quoted for the bucket amount.
type SwapPlan struct {
	TradeType  TradeType
	Amount     *big.Int
	QuoteToken Token
	Routes     []*RouteWithValidQuote
	Dust       *big.Int

	Quote                      *big.Int
	QuoteGasAdjusted           *big.Int
	EstimatedGasUsed           *big.Int
	EstimatedGasUsedUSD        *big.Int
	EstimatedGasUsedQuoteToken *big.Int
	EstimatedGasUsedGasToken   *big.Int
	L1GasFees                  *L1GasFees

	PortionAmount              *big.Int
	PortionQuoteAmount         *big.Int
	QuoteGasAndPortionAdjusted *big.Int

	PriceImpactBps    uint16
	BlockNumber       uint64
	QuotingIncomplete bool
}

// PortionBreakdown is the portion carved out of a plan. PortionQuoteAmount is
// the exact-out portion converted to the input token and zero for exact-in.
type PortionBreakdown struct {
	PortionAmount              *big.Int
	PortionQuoteAmount         *big.Int
	QuoteGasAndPortionAdjusted *big.Int
}

func (p *SwapPlan) Splits() int {
	return len(p.Routes)
}

func (p *SwapPlan) TotalPercent() int {
	total := 0
	for _, r := range p.Routes {
		total += r.Percent
	}
	return total
}

// Protocols returns the distinct protocols used by the plan in route order.
func (p *SwapPlan) Protocols() []Protocol {
	seen := make(map[Protocol]struct{}, len(p.Routes))
	out := make([]Protocol, 0, len(p.Routes))
	for _, r := range p.Routes {
		if _, ok := seen[r.Route.Protocol]; ok {
			continue
		}
		seen[r.Route.Protocol] = struct{}{}
		out = append(out, r.Route.Protocol)
	}
	return out
}
