package domain

import (
	"fmt"
	"math/big"
)

// GasCost is the gas model's estimate for one quoted route.
type GasCost struct {
	GasEstimate       *big.Int
	GasCostInToken    *big.Int
	GasCostInUSD      *big.Int
	GasCostInGasToken *big.Int
}

// L1GasFees is the rollup data fee for a combination of routes sent in one call.
type L1GasFees struct {
	GasUsedL1           *big.Int
	GasUsedL1OnL2       *big.Int
	GasCostL1USD        *big.Int
	GasCostL1QuoteToken *big.Int
}

func ZeroL1GasFees() L1GasFees {
	return L1GasFees{
		GasUsedL1:           new(big.Int),
		GasUsedL1OnL2:       new(big.Int),
		GasCostL1USD:        new(big.Int),
		GasCostL1QuoteToken: new(big.Int),
	}
}

func (f L1GasFees) IsZero() bool {
	return f.GasCostL1QuoteToken == nil || f.GasCostL1QuoteToken.Sign() == 0
}

// Apportion splits the quote-token L1 cost across routes by percent. The
// shares always sum to the total.
func (f L1GasFees) Apportion(percents []int) []*big.Int {
	out := make([]*big.Int, len(percents))
	if len(percents) == 0 {
		return out
	}
	total := f.GasCostL1QuoteToken
	if total == nil {
		total = new(big.Int)
	}
	sumPct := 0
	for _, p := range percents {
		sumPct += p
	}
	allocated := new(big.Int)
	for i, p := range percents {
		if i == len(percents)-1 || sumPct == 0 {
			out[i] = new(big.Int).Sub(total, allocated)
			break
		}
		share := new(big.Int).Mul(total, big.NewInt(int64(p)))
		share.Quo(share, big.NewInt(int64(sumPct)))
		out[i] = share
		allocated.Add(allocated, share)
	}
	for i := range out {
		if out[i] == nil {
			out[i] = new(big.Int)
		}
	}
	return out
}

// RouteWithValidQuote is one route quoted at one percent bucket. Amount is
// the specified side (input for exact-in, output for exact-out); RawQuote is
// the other side.
type RouteWithValidQuote struct {
	Route      *Route
	Percent    int
	Amount     *big.Int
	RawQuote   *big.Int
	TradeType  TradeType
	QuoteToken Token

	GasEstimate         *big.Int
	GasCostInToken      *big.Int
	GasCostInUSD        *big.Int
	GasCostInGasToken   *big.Int
	QuoteAdjustedForGas *big.Int

	SqrtPriceX96AfterList       []*big.Int
	InitializedTicksCrossedList []uint32
	PoolIdentifiers             []string
}

func NewRouteWithValidQuote(route *Route, percent int, amount, rawQuote *big.Int, tradeType TradeType, quoteToken Token) *RouteWithValidQuote {
	return &RouteWithValidQuote{
		Route:           route,
		Percent:         percent,
		Amount:          amount,
		RawQuote:        rawQuote,
		TradeType:       tradeType,
		QuoteToken:      quoteToken,
		PoolIdentifiers: route.PoolIdentifiers(),
	}
}

// ApplyGasCost records the gas estimate and derives the gas-adjusted quote:
// output minus gas for exact-in, input plus gas for exact-out.
func (r *RouteWithValidQuote) ApplyGasCost(cost GasCost) {
	r.GasEstimate = orZero(cost.GasEstimate)
	r.GasCostInToken = orZero(cost.GasCostInToken)
	r.GasCostInUSD = orZero(cost.GasCostInUSD)
	r.GasCostInGasToken = cost.GasCostInGasToken
	if r.TradeType == ExactInput {
		r.QuoteAdjustedForGas = new(big.Int).Sub(r.RawQuote, r.GasCostInToken)
	} else {
		r.QuoteAdjustedForGas = new(big.Int).Add(r.RawQuote, r.GasCostInToken)
	}
}

// AdjustedQuote returns the gas-adjusted quote, or the raw quote when no gas
// model has run.
func (r *RouteWithValidQuote) AdjustedQuote() *big.Int {
	if r.QuoteAdjustedForGas != nil {
		return r.QuoteAdjustedForGas
	}
	return r.RawQuote
}

func (r *RouteWithValidQuote) HasGasCost() bool {
	return r.GasEstimate != nil && r.QuoteAdjustedForGas != nil
}

func (r *RouteWithValidQuote) Key() string {
	return fmt.Sprintf("%s@%d", r.Route.Key(), r.Percent)
}

func (r *RouteWithValidQuote) String() string {
	return fmt.Sprintf("%d%% = %s", r.Percent, r.Route)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
