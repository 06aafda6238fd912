package gas

import (
	"math/big"

	"github.com/hxuan190/split-router/internal/domain"
)

// L1Params describes how a rollup charges for publishing calldata to L1.
type L1Params struct {
	L1BaseFeeWei *big.Int
	// Fee scalar in millionths.
	Scalar   uint64
	Overhead uint64
}

func DefaultL1Params(kind domain.RollupKind) L1Params {
	switch kind {
	case domain.RollupOPStack:
		return L1Params{L1BaseFeeWei: big.NewInt(20_000_000_000), Scalar: 684_000, Overhead: 188}
	case domain.RollupArbitrum:
		return L1Params{L1BaseFeeWei: big.NewInt(20_000_000_000), Scalar: 1_000_000, Overhead: 140}
	default:
		return L1Params{}
	}
}

// Calldata size estimates for a router call carrying the given routes.
const (
	callOverheadBytes  = 132
	routeOverheadBytes = 196
	tokenBytes         = 20
	v3HopBytes         = 23
	v2HopBytes         = 20
	nonZeroByteGas     = 16
	scalarDenominator  = 1_000_000
)

func calldataBytes(routes []*domain.RouteWithValidQuote) uint64 {
	size := uint64(callOverheadBytes)
	for _, rwq := range routes {
		size += routeOverheadBytes + tokenBytes
		for _, pool := range rwq.Route.Pools {
			if pool.Protocol == domain.ProtocolV2 {
				size += v2HopBytes
			} else {
				size += v3HopBytes
			}
		}
	}
	return size
}

// CalculateL1GasFees prices the L1 data fee of sending every route in one
// call. It is zero on chains that are not rollups.
func (m *Model) CalculateL1GasFees(routes []*domain.RouteWithValidQuote) (domain.L1GasFees, error) {
	if m.chain.Rollup == domain.RollupNone || len(routes) == 0 || m.l1.L1BaseFeeWei == nil {
		return domain.ZeroL1GasFees(), nil
	}
	dataGas := new(big.Int).SetUint64(calldataBytes(routes)*nonZeroByteGas + m.l1.Overhead)

	feeWei := new(big.Int).Mul(dataGas, m.l1.L1BaseFeeWei)
	scalar := m.l1.Scalar
	if scalar == 0 {
		scalar = scalarDenominator
	}
	feeWei.Mul(feeWei, new(big.Int).SetUint64(scalar))
	feeWei.Quo(feeWei, big.NewInt(scalarDenominator))

	onL2 := new(big.Int)
	if m.gasPriceWei.Sign() > 0 {
		onL2.Quo(feeWei, m.gasPriceWei)
	}
	return domain.L1GasFees{
		GasUsedL1:           dataGas,
		GasUsedL1OnL2:       onL2,
		GasCostL1USD:        m.inUSD(feeWei),
		GasCostL1QuoteToken: m.inQuoteToken(feeWei),
	}, nil
}
