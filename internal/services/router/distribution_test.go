package router

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hxuan190/split-router/internal/common"
)

func TestGetAmountDistribution(t *testing.T) {
	tests := []struct {
		name         string
		total        int64
		distribution int
		wantPercents []int
		wantAmounts  []string
	}{
		{name: "quarters", total: 1000, distribution: 25, wantPercents: []int{25, 50, 75, 100}, wantAmounts: []string{"250", "500", "750", "1000"}},
		{name: "rounds down", total: 7, distribution: 50, wantPercents: []int{50, 100}, wantAmounts: []string{"3", "7"}},
		{name: "whole", total: 42, distribution: 100, wantPercents: []int{100}, wantAmounts: []string{"42"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			percents, amounts, err := GetAmountDistribution(big.NewInt(tt.total), tt.distribution)
			require.NoError(t, err)
			require.Equal(t, tt.wantPercents, percents)
			got := make([]string, len(amounts))
			for i, a := range amounts {
				got[i] = a.String()
			}
			require.Equal(t, tt.wantAmounts, got)
		})
	}
}

func TestGetAmountDistributionFivePercent(t *testing.T) {
	percents, amounts, err := GetAmountDistribution(big.NewInt(1_000_003), 5)
	require.NoError(t, err)
	require.Len(t, percents, 20)
	require.Equal(t, 100, percents[len(percents)-1])
	require.Equal(t, "1000003", amounts[len(amounts)-1].String())
	for i := 1; i < len(amounts); i++ {
		require.True(t, amounts[i].Cmp(amounts[i-1]) > 0)
	}
}

func TestGetAmountDistributionInvalid(t *testing.T) {
	for _, d := range []int{30, 0, -5, 101} {
		_, _, err := GetAmountDistribution(big.NewInt(100), d)
		require.ErrorIs(t, err, common.ErrInvalidConfig, "distribution %d", d)
	}
	_, _, err := GetAmountDistribution(big.NewInt(0), 10)
	require.ErrorIs(t, err, common.ErrInvalidConfig)
}
