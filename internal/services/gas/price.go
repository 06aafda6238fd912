package gas

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/hxuan190/split-router/internal/domain"
)

// Price converts raw amounts of Base into raw amounts of Quote.
type Price struct {
	Base  domain.Token
	Quote domain.Token
	Num   *big.Int
	Den   *big.Int
}

func identityPrice(t domain.Token) Price {
	return Price{Base: t, Quote: t, Num: big.NewInt(1), Den: big.NewInt(1)}
}

func (p Price) Convert(amount *big.Int) *big.Int {
	if amount == nil || p.Den == nil || p.Den.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount, p.Num)
	return out.Quo(out, p.Den)
}

// midPrice picks the deepest pool pairing base with quote, preferring
// concentrated liquidity pools, and returns its mid price.
func midPrice(pools []*domain.Pool, base, quote domain.Token) (Price, bool) {
	if base.Equals(quote) {
		return identityPrice(base), true
	}
	var best *domain.Pool
	for _, pool := range pools {
		if !pool.Involves(base) || !pool.Involves(quote) {
			continue
		}
		if best == nil {
			best = pool
			continue
		}
		if pool.Protocol != best.Protocol {
			if pool.Protocol == domain.ProtocolV3 {
				best = pool
			}
			continue
		}
		if pool.LiquidityScore().Cmp(best.LiquidityScore()) > 0 {
			best = pool
		}
	}
	if best == nil {
		return Price{}, false
	}
	num, den := best.PriceOf(base)
	if den.Sign() == 0 {
		return Price{}, false
	}
	return Price{Base: base, Quote: quote, Num: num, Den: den}, true
}

// GasPriceProvider returns the current execution gas price in wei.
type GasPriceProvider interface {
	GasPrice(ctx context.Context) (*big.Int, error)
}

// StaticGasPriceProvider serves a configured price.
type StaticGasPriceProvider struct {
	wei *big.Int
}

func NewStaticGasPriceProvider(gwei decimal.Decimal) *StaticGasPriceProvider {
	return &StaticGasPriceProvider{wei: gwei.Shift(9).BigInt()}
}

func (p *StaticGasPriceProvider) GasPrice(context.Context) (*big.Int, error) {
	return new(big.Int).Set(p.wei), nil
}
