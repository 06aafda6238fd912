package router

import (
	"math/big"

	"github.com/hxuan190/split-router/internal/common"
)

var HUNDRED = big.NewInt(100)

// GetAmountDistribution returns the percent buckets d, 2d, ..., 100 and the
// amount each represents, total*percent/100 rounded down. The 100% bucket is
// always exactly total.
func GetAmountDistribution(total *big.Int, distributionPercent int) ([]int, []*big.Int, error) {
	if distributionPercent <= 0 || 100%distributionPercent != 0 {
		return nil, nil, common.InvalidConfigf("distributionPercent %d must be a positive divisor of 100", distributionPercent)
	}
	if total == nil || total.Sign() <= 0 {
		return nil, nil, common.InvalidConfigf("amount must be positive")
	}
	n := 100 / distributionPercent
	percents := make([]int, 0, n)
	amounts := make([]*big.Int, 0, n)
	for i := 1; i <= n; i++ {
		percent := i * distributionPercent
		percents = append(percents, percent)
		amounts = append(amounts, PercentOf(total, percent))
	}
	return percents, amounts, nil
}

// PercentOf computes total*percent/100 in integer arithmetic.
func PercentOf(total *big.Int, percent int) *big.Int {
	out := new(big.Int).Mul(total, big.NewInt(int64(percent)))
	return out.Quo(out, HUNDRED)
}
