package quoter

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrMathOverflow          = errors.New("math overflow")
	ErrInvalidPoolState      = errors.New("invalid pool state")
)

const feeDenominator = 1_000_000

var (
	u256Q96      = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	u256FeeDenom = uint256.NewInt(feeDenominator)
	u256Bps      = uint256.NewInt(10_000)

	// Bounds of the v3 sqrt price range.
	minSqrtRatio = uint256.NewInt(4295128739)
	maxSqrtRatio = uint256.MustFromDecimal("1461446703485210103287273052203988822378723970342")
)

func toU256(v *big.Int) (*uint256.Int, error) {
	if v == nil || v.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	z, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrMathOverflow
	}
	return z, nil
}

func mulDiv(a, b, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrMathOverflow
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, d)
	if overflow {
		return nil, ErrMathOverflow
	}
	return z, nil
}

func mulDivRoundingUp(a, b, d *uint256.Int) (*uint256.Int, error) {
	z, err := mulDiv(a, b, d)
	if err != nil {
		return nil, err
	}
	if !new(uint256.Int).MulMod(a, b, d).IsZero() {
		if z.Eq(maxUint256()) {
			return nil, ErrMathOverflow
		}
		z.AddUint64(z, 1)
	}
	return z, nil
}

func divRoundingUp(a, b *uint256.Int) *uint256.Int {
	q, r := new(uint256.Int), new(uint256.Int)
	q.DivMod(a, b, r)
	if !r.IsZero() {
		q.AddUint64(q, 1)
	}
	return q
}

func maxUint256() *uint256.Int {
	return new(uint256.Int).SetAllOne()
}

// V2 constant product with the 0.3% fee applied to the input.

func getV2AmountOut(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if amountIn.IsZero() {
		return nil, ErrInvalidAmount
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	amountInWithFee, overflow := new(uint256.Int).MulOverflow(amountIn, uint256.NewInt(997))
	if overflow {
		return nil, ErrMathOverflow
	}
	denominator, overflow := new(uint256.Int).MulOverflow(reserveIn, uint256.NewInt(1000))
	if overflow {
		return nil, ErrMathOverflow
	}
	if _, overflow = denominator.AddOverflow(denominator, amountInWithFee); overflow {
		return nil, ErrMathOverflow
	}
	out, err := mulDiv(amountInWithFee, reserveOut, denominator)
	if err != nil {
		return nil, err
	}
	if out.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	return out, nil
}

func getV2AmountIn(amountOut, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if amountOut.IsZero() {
		return nil, ErrInvalidAmount
	}
	if reserveIn.IsZero() || reserveOut.IsZero() || !amountOut.Lt(reserveOut) {
		return nil, ErrInsufficientLiquidity
	}
	numerator, overflow := new(uint256.Int).MulOverflow(reserveIn, uint256.NewInt(1000))
	if overflow {
		return nil, ErrMathOverflow
	}
	denominator := new(uint256.Int).Sub(reserveOut, amountOut)
	if _, overflow = denominator.MulOverflow(denominator, uint256.NewInt(997)); overflow {
		return nil, ErrMathOverflow
	}
	in, err := mulDiv(numerator, amountOut, denominator)
	if err != nil {
		return nil, err
	}
	return in.AddUint64(in, 1), nil
}

// applyTransferTax removes a fee-on-transfer tax (bps) from amount.
func applyTransferTax(amount *uint256.Int, taxBps uint16) *uint256.Int {
	if taxBps == 0 {
		return amount
	}
	z := new(uint256.Int).Mul(amount, uint256.NewInt(uint64(10_000-uint32(taxBps))))
	return z.Div(z, u256Bps)
}

// grossUpTransferTax is the smallest amount that still delivers net after tax.
func grossUpTransferTax(net *uint256.Int, taxBps uint16) (*uint256.Int, error) {
	if taxBps == 0 {
		return net, nil
	}
	if taxBps >= 10_000 {
		return nil, ErrInsufficientLiquidity
	}
	return mulDivRoundingUp(net, u256Bps, uint256.NewInt(uint64(10_000-uint32(taxBps))))
}

// Concentrated liquidity price math, Q64.96 sqrt prices.

func getAmount0Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if sqrtA.Gt(sqrtB) {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	if sqrtA.IsZero() {
		return nil, ErrInvalidPoolState
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	numerator2 := new(uint256.Int).Sub(sqrtB, sqrtA)
	if roundUp {
		z, err := mulDivRoundingUp(numerator1, numerator2, sqrtB)
		if err != nil {
			return nil, err
		}
		return divRoundingUp(z, sqrtA), nil
	}
	z, err := mulDiv(numerator1, numerator2, sqrtB)
	if err != nil {
		return nil, err
	}
	return z.Div(z, sqrtA), nil
}

func getAmount1Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if sqrtA.Gt(sqrtB) {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	if roundUp {
		return mulDivRoundingUp(liquidity, diff, u256Q96)
	}
	return mulDiv(liquidity, diff, u256Q96)
}

func nextSqrtPriceFromAmount0RoundingUp(sqrtP, liquidity, amount *uint256.Int, add bool) (*uint256.Int, error) {
	if amount.IsZero() {
		return sqrtP.Clone(), nil
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	product, overflow := new(uint256.Int).MulOverflow(amount, sqrtP)
	if add {
		if !overflow {
			denominator, overflow := new(uint256.Int).AddOverflow(numerator1, product)
			if !overflow {
				return mulDivRoundingUp(numerator1, sqrtP, denominator)
			}
		}
		denominator := new(uint256.Int).Div(numerator1, sqrtP)
		if _, overflow := denominator.AddOverflow(denominator, amount); overflow {
			return nil, ErrMathOverflow
		}
		return divRoundingUp(numerator1, denominator), nil
	}
	if overflow || !numerator1.Gt(product) {
		return nil, ErrInsufficientLiquidity
	}
	denominator := new(uint256.Int).Sub(numerator1, product)
	return mulDivRoundingUp(numerator1, sqrtP, denominator)
}

func nextSqrtPriceFromAmount1RoundingDown(sqrtP, liquidity, amount *uint256.Int, add bool) (*uint256.Int, error) {
	if add {
		quotient, err := mulDiv(amount, u256Q96, liquidity)
		if err != nil {
			return nil, err
		}
		next, overflow := new(uint256.Int).AddOverflow(sqrtP, quotient)
		if overflow {
			return nil, ErrMathOverflow
		}
		return next, nil
	}
	quotient, err := mulDivRoundingUp(amount, u256Q96, liquidity)
	if err != nil {
		return nil, err
	}
	if !sqrtP.Gt(quotient) {
		return nil, ErrInsufficientLiquidity
	}
	return new(uint256.Int).Sub(sqrtP, quotient), nil
}

func nextSqrtPriceFromInput(sqrtP, liquidity, amountIn *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if liquidity.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	if zeroForOne {
		return nextSqrtPriceFromAmount0RoundingUp(sqrtP, liquidity, amountIn, true)
	}
	return nextSqrtPriceFromAmount1RoundingDown(sqrtP, liquidity, amountIn, true)
}

func nextSqrtPriceFromOutput(sqrtP, liquidity, amountOut *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if liquidity.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	if zeroForOne {
		return nextSqrtPriceFromAmount1RoundingDown(sqrtP, liquidity, amountOut, false)
	}
	return nextSqrtPriceFromAmount0RoundingUp(sqrtP, liquidity, amountOut, false)
}

type swapStep struct {
	sqrtNext  *uint256.Int
	amountIn  *uint256.Int
	amountOut *uint256.Int
	feeAmount *uint256.Int
}

// computeSwapStep moves the price from current toward target within a single
// liquidity range, consuming at most remaining.
func computeSwapStep(current, target, liquidity, remaining *uint256.Int, feePips uint32, exactIn bool) (*swapStep, error) {
	zeroForOne := !current.Lt(target)
	feeComplement := uint256.NewInt(uint64(feeDenominator - feePips))
	step := &swapStep{}

	var err error
	if exactIn {
		remainingLessFee, err := mulDiv(remaining, feeComplement, u256FeeDenom)
		if err != nil {
			return nil, err
		}
		if zeroForOne {
			step.amountIn, err = getAmount0Delta(target, current, liquidity, true)
		} else {
			step.amountIn, err = getAmount1Delta(current, target, liquidity, true)
		}
		if err != nil {
			return nil, err
		}
		if !remainingLessFee.Lt(step.amountIn) {
			step.sqrtNext = target.Clone()
		} else if step.sqrtNext, err = nextSqrtPriceFromInput(current, liquidity, remainingLessFee, zeroForOne); err != nil {
			return nil, err
		}
	} else {
		if zeroForOne {
			step.amountOut, err = getAmount1Delta(target, current, liquidity, false)
		} else {
			step.amountOut, err = getAmount0Delta(current, target, liquidity, false)
		}
		if err != nil {
			return nil, err
		}
		if !remaining.Lt(step.amountOut) {
			step.sqrtNext = target.Clone()
		} else if step.sqrtNext, err = nextSqrtPriceFromOutput(current, liquidity, remaining, zeroForOne); err != nil {
			return nil, err
		}
	}

	reachedTarget := target.Eq(step.sqrtNext)
	if zeroForOne {
		if !(reachedTarget && exactIn) {
			if step.amountIn, err = getAmount0Delta(step.sqrtNext, current, liquidity, true); err != nil {
				return nil, err
			}
		}
		if !(reachedTarget && !exactIn) {
			if step.amountOut, err = getAmount1Delta(step.sqrtNext, current, liquidity, false); err != nil {
				return nil, err
			}
		}
	} else {
		if !(reachedTarget && exactIn) {
			if step.amountIn, err = getAmount1Delta(current, step.sqrtNext, liquidity, true); err != nil {
				return nil, err
			}
		}
		if !(reachedTarget && !exactIn) {
			if step.amountOut, err = getAmount0Delta(current, step.sqrtNext, liquidity, false); err != nil {
				return nil, err
			}
		}
	}

	if !exactIn && step.amountOut.Gt(remaining) {
		step.amountOut = remaining.Clone()
	}

	if exactIn && !step.sqrtNext.Eq(target) {
		step.feeAmount = new(uint256.Int).Sub(remaining, step.amountIn)
	} else {
		step.feeAmount, err = mulDivRoundingUp(step.amountIn, uint256.NewInt(uint64(feePips)), feeComplement)
		if err != nil {
			return nil, err
		}
	}
	return step, nil
}
