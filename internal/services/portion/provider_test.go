package portion

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hxuan190/split-router/internal/domain"
)

func TestPortionExactInput(t *testing.T) {
	p := NewProvider()
	cfg := &domain.PortionConfig{Bips: 25}

	portion := p.GetPortionAmount(big.NewInt(1_000_003), domain.ExactInput, cfg)
	require.Equal(t, int64(2_500), portion.Int64())

	adjusted := p.GetQuoteGasAndPortionAdjusted(domain.ExactInput, big.NewInt(999_000), portion, nil)
	require.Equal(t, int64(996_500), adjusted.Int64())
}

func TestPortionFlatFeeIsCapped(t *testing.T) {
	p := NewProvider()
	cfg := &domain.PortionConfig{FlatAmount: big.NewInt(5_000)}
	require.Equal(t, int64(1_000), p.GetPortionAmount(big.NewInt(1_000), domain.ExactInput, cfg).Int64())
}

func TestPortionDisabled(t *testing.T) {
	p := NewProvider()
	require.Zero(t, p.GetPortionAmount(big.NewInt(1_000), domain.ExactInput, nil).Sign())
	require.Zero(t, p.GetPortionAmount(big.NewInt(1_000), domain.ExactInput, &domain.PortionConfig{}).Sign())
}

func TestPortionExactOutputChargesInput(t *testing.T) {
	p := NewProvider()
	cfg := &domain.PortionConfig{Bips: 15}
	amount := big.NewInt(2_000_000)
	quote := big.NewInt(1_000_001)

	portionOut := p.GetPortionAmount(amount, domain.ExactOutput, cfg)
	require.Equal(t, int64(3_000), portionOut.Int64())

	portionIn := p.GetPortionQuoteAmount(domain.ExactOutput, quote, amount, portionOut)
	// 3000 * 1000001 / 2000000 = 1500.0015, rounded up.
	require.Equal(t, int64(1_501), portionIn.Int64())

	adjusted := p.GetQuoteGasAndPortionAdjusted(domain.ExactOutput, big.NewInt(1_000_500), portionOut, portionIn)
	require.Equal(t, int64(1_002_001), adjusted.Int64())
}

func TestSplitMatchesSteps(t *testing.T) {
	p := NewProvider()
	cfg := &domain.PortionConfig{Bips: 33, FlatAmount: big.NewInt(7)}

	for _, q := range []int64{1, 999, 123_456_789, 10_000_000_000_001} {
		quote := big.NewInt(q)
		adjusted := new(big.Int).Sub(quote, big.NewInt(3))

		in := p.Split(domain.ExactInput, big.NewInt(5), quote, adjusted, cfg)
		wantPortion := p.GetPortionAmount(quote, domain.ExactInput, cfg)
		require.Equal(t, wantPortion.String(), in.PortionAmount.String())
		require.Zero(t, in.PortionQuoteAmount.Sign())
		require.Equal(t, new(big.Int).Sub(adjusted, wantPortion).String(), in.QuoteGasAndPortionAdjusted.String())
		require.True(t, in.PortionAmount.Cmp(quote) <= 0)

		amount := big.NewInt(1_000_000)
		out := p.Split(domain.ExactOutput, amount, quote, adjusted, cfg)
		portionOut := p.GetPortionAmount(amount, domain.ExactOutput, cfg)
		require.Equal(t, portionOut.String(), out.PortionAmount.String())
		require.Equal(t, p.GetPortionQuoteAmount(domain.ExactOutput, quote, amount, portionOut).String(), out.PortionQuoteAmount.String())
		require.Equal(t, new(big.Int).Add(adjusted, out.PortionQuoteAmount).String(), out.QuoteGasAndPortionAdjusted.String())
	}

	none := p.Split(domain.ExactInput, big.NewInt(5), big.NewInt(100), big.NewInt(90), nil)
	require.Zero(t, none.PortionAmount.Sign())
	require.Equal(t, int64(90), none.QuoteGasAndPortionAdjusted.Int64())
}
