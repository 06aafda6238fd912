package domain

import "math/big"

// GasModel prices route execution in the quote token and USD. A model is
// built per request for one quote token.
type GasModel interface {
	EstimateGasCost(rwq *RouteWithValidQuote) (GasCost, error)
	CalculateL1GasFees(routes []*RouteWithValidQuote) (L1GasFees, error)
}

// PortionProvider computes the fee portion carved out of a plan.
type PortionProvider interface {
	// GetPortionAmount returns the portion in the output token. tokenOutAmount
	// is the quote for exact-in and the requested amount for exact-out.
	GetPortionAmount(tokenOutAmount *big.Int, tradeType TradeType, portion *PortionConfig) *big.Int
	// GetPortionQuoteAmount converts an exact-out portion into the input token.
	GetPortionQuoteAmount(tradeType TradeType, quote, amount, portionAmount *big.Int) *big.Int
	GetQuoteGasAndPortionAdjusted(tradeType TradeType, quoteGasAdjusted, portionAmount, portionQuoteAmount *big.Int) *big.Int
	// Split applies the three steps above to a plan's totals.
	Split(tradeType TradeType, amount, quote, quoteGasAdjusted *big.Int, portion *PortionConfig) PortionBreakdown
}
