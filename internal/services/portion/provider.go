package portion

import (
	"math/big"

	"github.com/hxuan190/split-router/internal/domain"
)

const bipsDenominator = 10_000

// Provider takes a bips portion plus an optional flat fee out of the output
// token. Exact-out trades pay it on the input side.
type Provider struct{}

func NewProvider() *Provider {
	return &Provider{}
}

func (p *Provider) GetPortionAmount(tokenOutAmount *big.Int, tradeType domain.TradeType, cfg *domain.PortionConfig) *big.Int {
	if !cfg.Enabled() || tokenOutAmount == nil || tokenOutAmount.Sign() <= 0 {
		return new(big.Int)
	}
	amount := new(big.Int).Mul(tokenOutAmount, big.NewInt(int64(cfg.Bips)))
	amount.Quo(amount, big.NewInt(bipsDenominator))
	if cfg.FlatAmount != nil {
		amount.Add(amount, cfg.FlatAmount)
	}
	if tradeType == domain.ExactInput && amount.Cmp(tokenOutAmount) > 0 {
		amount.Set(tokenOutAmount)
	}
	return amount
}

// GetPortionQuoteAmount converts an output-token portion into input token at
// the plan's execution rate, rounding up.
func (p *Provider) GetPortionQuoteAmount(tradeType domain.TradeType, quote, amount, portionAmount *big.Int) *big.Int {
	if tradeType != domain.ExactOutput || portionAmount == nil || portionAmount.Sign() == 0 || amount == nil || amount.Sign() == 0 {
		return new(big.Int)
	}
	num := new(big.Int).Mul(portionAmount, quote)
	q, r := new(big.Int).QuoRem(num, amount, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func (p *Provider) GetQuoteGasAndPortionAdjusted(tradeType domain.TradeType, quoteGasAdjusted, portionAmount, portionQuoteAmount *big.Int) *big.Int {
	if tradeType == domain.ExactInput {
		return new(big.Int).Sub(quoteGasAdjusted, orZero(portionAmount))
	}
	return new(big.Int).Add(quoteGasAdjusted, orZero(portionQuoteAmount))
}

// Split computes the plan level portion. The portion is taken from the quote
// for exact-in and from the requested amount for exact-out. A disabled
// portion leaves the gas adjusted quote unchanged.
func (p *Provider) Split(tradeType domain.TradeType, amount, quote, quoteGasAdjusted *big.Int, cfg *domain.PortionConfig) domain.PortionBreakdown {
	tokenOutAmount := quote
	if tradeType == domain.ExactOutput {
		tokenOutAmount = amount
	}
	portionAmount := p.GetPortionAmount(tokenOutAmount, tradeType, cfg)
	portionQuote := p.GetPortionQuoteAmount(tradeType, quote, amount, portionAmount)
	return domain.PortionBreakdown{
		PortionAmount:              portionAmount,
		PortionQuoteAmount:         portionQuote,
		QuoteGasAndPortionAdjusted: p.GetQuoteGasAndPortionAdjusted(tradeType, quoteGasAdjusted, portionAmount, portionQuote),
	}
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
