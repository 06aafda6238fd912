package quoter

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/hxuan190/split-router/internal/domain"
)

const maxSwapSteps = 512

// HopQuote is the result of swapping through one pool.
type HopQuote struct {
	AmountIn       *uint256.Int
	AmountOut      *uint256.Int
	SqrtPriceAfter *big.Int
	TicksCrossed   uint32
}

// quoteHop quotes one pool. For exact-in amount is the input and the result
// carries the output; for exact-out amount is the desired output.
func quoteHop(pool *domain.Pool, tokenIn domain.Token, amount *uint256.Int, exactIn, feeOnTransfer bool) (*HopQuote, error) {
	switch pool.Protocol {
	case domain.ProtocolV2:
		return quoteV2Hop(pool, tokenIn, amount, exactIn, feeOnTransfer)
	case domain.ProtocolV3:
		return quoteV3Hop(pool, tokenIn, amount, exactIn)
	default:
		return nil, ErrInvalidPoolState
	}
}

func quoteV2Hop(pool *domain.Pool, tokenIn domain.Token, amount *uint256.Int, exactIn, feeOnTransfer bool) (*HopQuote, error) {
	reserve0, err := toU256(pool.Reserve0)
	if err != nil {
		return nil, ErrInvalidPoolState
	}
	reserve1, err := toU256(pool.Reserve1)
	if err != nil {
		return nil, ErrInvalidPoolState
	}
	tokenOut := pool.Other(tokenIn)
	reserveIn, reserveOut := reserve0, reserve1
	if !pool.Token0.Equals(tokenIn) {
		reserveIn, reserveOut = reserve1, reserve0
	}

	var sellTax, buyTax uint16
	if feeOnTransfer {
		sellTax, buyTax = tokenIn.SellFeeBps, tokenOut.BuyFeeBps
	}

	if exactIn {
		received := applyTransferTax(amount, sellTax)
		if received.IsZero() {
			return nil, ErrInsufficientLiquidity
		}
		out, err := getV2AmountOut(received, reserveIn, reserveOut)
		if err != nil {
			return nil, err
		}
		out = applyTransferTax(out, buyTax)
		if out.IsZero() {
			return nil, ErrInsufficientLiquidity
		}
		return &HopQuote{AmountIn: amount, AmountOut: out}, nil
	}

	gross, err := grossUpTransferTax(amount, buyTax)
	if err != nil {
		return nil, err
	}
	in, err := getV2AmountIn(gross, reserveIn, reserveOut)
	if err != nil {
		return nil, err
	}
	if in, err = grossUpTransferTax(in, sellTax); err != nil {
		return nil, err
	}
	return &HopQuote{AmountIn: in, AmountOut: amount}, nil
}

// quoteV3Hop walks initialized ticks the way the pool's swap loop does and
// stops with ErrInsufficientLiquidity when the range runs dry.
func quoteV3Hop(pool *domain.Pool, tokenIn domain.Token, amount *uint256.Int, exactIn bool) (*HopQuote, error) {
	if amount.IsZero() {
		return nil, ErrInvalidAmount
	}
	sqrtP, err := toU256(pool.SqrtPriceX96)
	if err != nil || sqrtP.IsZero() {
		return nil, ErrInvalidPoolState
	}
	liquidity, err := toU256(pool.Liquidity)
	if err != nil {
		return nil, ErrInvalidPoolState
	}
	liquidity = liquidity.Clone()
	sqrtP = sqrtP.Clone()

	zeroForOne := pool.Token0.Equals(tokenIn)
	limit := new(uint256.Int).AddUint64(minSqrtRatio, 1)
	if !zeroForOne {
		limit = new(uint256.Int).SubUint64(maxSqrtRatio, 1)
	}

	remaining := amount.Clone()
	calculated := new(uint256.Int)
	tick := pool.TickCurrent
	var crossed uint32

	for steps := 0; !remaining.IsZero() && !sqrtP.Eq(limit); steps++ {
		if steps >= maxSwapSteps {
			return nil, ErrInsufficientLiquidity
		}
		next, ok := nextInitializedTick(pool.Ticks, tick, zeroForOne)
		target := limit
		var tickPrice *uint256.Int
		if ok {
			if tickPrice, err = toU256(next.SqrtPriceX96); err != nil {
				return nil, ErrInvalidPoolState
			}
			if zeroForOne && tickPrice.Gt(limit) || !zeroForOne && tickPrice.Lt(limit) {
				target = tickPrice
			}
		}
		if liquidity.IsZero() && !ok {
			return nil, ErrInsufficientLiquidity
		}

		if !liquidity.IsZero() {
			step, err := computeSwapStep(sqrtP, target, liquidity, remaining, uint32(pool.Fee), exactIn)
			if err != nil {
				return nil, err
			}
			sqrtP = step.sqrtNext
			if exactIn {
				consumed := new(uint256.Int).Add(step.amountIn, step.feeAmount)
				if consumed.Gt(remaining) {
					consumed = remaining
				}
				remaining.Sub(remaining, consumed)
				calculated.Add(calculated, step.amountOut)
			} else {
				remaining.Sub(remaining, step.amountOut)
				calculated.Add(calculated, step.amountIn)
				calculated.Add(calculated, step.feeAmount)
			}
		} else {
			sqrtP = target.Clone()
		}

		if ok && tickPrice != nil && sqrtP.Eq(tickPrice) {
			liquidityNet := new(big.Int).Set(next.LiquidityNet)
			if zeroForOne {
				liquidityNet.Neg(liquidityNet)
			}
			updated := new(big.Int).Add(liquidity.ToBig(), liquidityNet)
			if updated.Sign() < 0 {
				return nil, ErrInvalidPoolState
			}
			if liquidity, err = toU256(updated); err != nil {
				return nil, ErrInvalidPoolState
			}
			crossed++
			if zeroForOne {
				tick = next.Index - 1
			} else {
				tick = next.Index
			}
		}
	}

	if !remaining.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	if calculated.IsZero() {
		return nil, ErrInsufficientLiquidity
	}

	hop := &HopQuote{
		SqrtPriceAfter: sqrtP.ToBig(),
		TicksCrossed:   crossed,
	}
	if exactIn {
		hop.AmountIn, hop.AmountOut = amount, calculated
	} else {
		hop.AmountIn, hop.AmountOut = calculated, amount
	}
	return hop, nil
}

// nextInitializedTick returns the nearest initialized tick at or below tick
// when moving down, or strictly above it when moving up.
func nextInitializedTick(ticks []domain.Tick, tick int32, lte bool) (domain.Tick, bool) {
	if lte {
		for i := len(ticks) - 1; i >= 0; i-- {
			if ticks[i].Index <= tick {
				return ticks[i], true
			}
		}
		return domain.Tick{}, false
	}
	for _, t := range ticks {
		if t.Index > tick {
			return t, true
		}
	}
	return domain.Tick{}, false
}

// RouteQuote is a full route simulation.
type RouteQuote struct {
	AmountIn       *big.Int
	AmountOut      *big.Int
	SqrtPriceAfter []*big.Int
	TicksCrossed   []uint32
}

// QuoteRoute simulates amount through every pool of the route, forward for
// exact-in and backward for exact-out.
func QuoteRoute(route *domain.Route, amount *big.Int, tradeType domain.TradeType, feeOnTransfer bool) (*RouteQuote, error) {
	amt, err := toU256(amount)
	if err != nil {
		return nil, err
	}
	if amt.IsZero() {
		return nil, ErrInvalidAmount
	}
	hops := len(route.Pools)
	rq := &RouteQuote{
		SqrtPriceAfter: make([]*big.Int, hops),
		TicksCrossed:   make([]uint32, hops),
	}

	if tradeType == domain.ExactInput {
		current := amt
		for i, pool := range route.Pools {
			hop, err := quoteHop(pool, route.TokenPath[i], current, true, feeOnTransfer)
			if err != nil {
				return nil, err
			}
			rq.SqrtPriceAfter[i] = sqrtPriceAfter(pool, hop)
			rq.TicksCrossed[i] = hop.TicksCrossed
			current = hop.AmountOut
		}
		rq.AmountIn = amt.ToBig()
		rq.AmountOut = current.ToBig()
		return rq, nil
	}

	current := amt
	for i := hops - 1; i >= 0; i-- {
		pool := route.Pools[i]
		hop, err := quoteHop(pool, route.TokenPath[i], current, false, feeOnTransfer)
		if err != nil {
			return nil, err
		}
		rq.SqrtPriceAfter[i] = sqrtPriceAfter(pool, hop)
		rq.TicksCrossed[i] = hop.TicksCrossed
		current = hop.AmountIn
	}
	rq.AmountIn = current.ToBig()
	rq.AmountOut = amt.ToBig()
	return rq, nil
}

// V2 hops carry no sqrt price; the pool's own price, or zero, is reported.
func sqrtPriceAfter(pool *domain.Pool, hop *HopQuote) *big.Int {
	if hop.SqrtPriceAfter != nil {
		return hop.SqrtPriceAfter
	}
	if pool.SqrtPriceX96 != nil {
		return new(big.Int).Set(pool.SqrtPriceX96)
	}
	return new(big.Int)
}
