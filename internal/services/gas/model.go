package gas

import (
	"context"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"

	"github.com/hxuan190/split-router/internal/common"
	"github.com/hxuan190/split-router/internal/domain"
	"github.com/hxuan190/split-router/internal/services"
)

// Execution gas weights. Concentrated liquidity hops cost more than constant
// product hops and every initialized tick crossed adds a storage write.
const (
	V2BaseSwapCost      = 135_000
	V2CostPerExtraHop   = 50_000
	V3BaseSwapCost      = 2_000
	V3CostPerHop        = 80_000
	V3CostPerInitTick   = 31_000
	MixedV2CostPerHop   = 60_000
	arbitrumV3BaseExtra = 3_000
)

// GasUnits estimates execution gas for a route given the ticks crossed per hop.
func GasUnits(chainID domain.ChainID, route *domain.Route, ticksCrossed []uint32) *big.Int {
	var ticks uint64
	for _, t := range ticksCrossed {
		ticks += uint64(t)
	}
	hops := uint64(len(route.Pools))

	var units uint64
	switch route.Protocol {
	case domain.ProtocolV2:
		units = V2BaseSwapCost + (hops-1)*V2CostPerExtraHop
	case domain.ProtocolV3:
		units = V3BaseSwapCost + hops*V3CostPerHop + ticks*V3CostPerInitTick
	default:
		units = V3BaseSwapCost + ticks*V3CostPerInitTick
		for _, pool := range route.Pools {
			if pool.Protocol == domain.ProtocolV2 {
				units += MixedV2CostPerHop
			} else {
				units += V3CostPerHop
			}
		}
	}
	if chainID == domain.ChainArbitrum && route.Protocol != domain.ProtocolV2 {
		units += arbitrumV3BaseExtra
	}
	return new(big.Int).SetUint64(units)
}

// Model prices gas for one request: one chain, one quote token, one gas price.
type Model struct {
	chain       domain.ChainInfo
	quoteToken  domain.Token
	gasPriceWei *big.Int
	l1          L1Params

	nativeToQuote    Price
	hasQuotePrice    bool
	nativeToUSD      Price
	hasUSDPrice      bool
	nativeToGasToken *Price
}

func (m *Model) EstimateGasCost(rwq *domain.RouteWithValidQuote) (domain.GasCost, error) {
	if rwq == nil || rwq.Route == nil {
		return domain.GasCost{}, fmt.Errorf("%w: nil route", common.ErrQuoteUnavailable)
	}
	units := GasUnits(m.chain.ID, rwq.Route, rwq.InitializedTicksCrossedList)
	wei := new(big.Int).Mul(units, m.gasPriceWei)
	cost := domain.GasCost{
		GasEstimate:    units,
		GasCostInToken: m.inQuoteToken(wei),
		GasCostInUSD:   m.inUSD(wei),
	}
	if m.nativeToGasToken != nil {
		cost.GasCostInGasToken = m.nativeToGasToken.Convert(wei)
	}
	return cost, nil
}

func (m *Model) inQuoteToken(wei *big.Int) *big.Int {
	if !m.hasQuotePrice {
		return new(big.Int)
	}
	return m.nativeToQuote.Convert(wei)
}

func (m *Model) inUSD(wei *big.Int) *big.Int {
	if !m.hasUSDPrice {
		return new(big.Int)
	}
	return m.nativeToUSD.Convert(wei)
}

func (m *Model) GasPriceWei() *big.Int {
	return new(big.Int).Set(m.gasPriceWei)
}

func (m *Model) QuoteToken() domain.Token {
	return m.quoteToken
}

// Factory builds a Model per request.
type Factory struct {
	gasPrice GasPriceProvider
	l1       map[domain.ChainID]L1Params
	logger   *services.ServiceLogger
}

func NewFactory(gasPrice GasPriceProvider, l1 map[domain.ChainID]L1Params, logger zerolog.Logger) *Factory {
	f := &Factory{gasPrice: gasPrice, l1: l1}
	f.logger = services.NewServiceLogger(logger, f)
	return f
}

func (f *Factory) ID() string {
	return "gas_model_factory"
}

// PricingPairs lists the pairs whose pools the model needs to price gas.
func PricingPairs(chainID domain.ChainID, quoteToken domain.Token, gasToken *domain.Token) []domain.TokenPair {
	info, ok := domain.ChainByID(chainID)
	if !ok {
		return nil
	}
	native := info.WrappedNative
	var pairs []domain.TokenPair
	add := func(t domain.Token) {
		t = t.Wrapped()
		if t.Equals(native) {
			return
		}
		pair := domain.NewTokenPair(native, t)
		for _, p := range pairs {
			if p.Key() == pair.Key() {
				return
			}
		}
		pairs = append(pairs, pair)
	}
	add(quoteToken)
	add(info.USDStable)
	if gasToken != nil {
		add(*gasToken)
	}
	return pairs
}

// BuildGasModel prices native gas in quoteToken and USD from pricingPools.
// Missing pricing pools leave the corresponding costs at zero.
func (f *Factory) BuildGasModel(ctx context.Context, chainID domain.ChainID, quoteToken domain.Token, gasToken *domain.Token, pricingPools []*domain.Pool) (*Model, error) {
	info, ok := domain.ChainByID(chainID)
	if !ok {
		return nil, common.InvalidConfigf("unsupported chain %d", chainID)
	}
	gasPrice, err := f.gasPrice.GasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: gas price: %w", common.ErrProviderTimeout, err)
	}

	native := info.WrappedNative
	m := &Model{
		chain:       info,
		quoteToken:  quoteToken,
		gasPriceWei: gasPrice,
		l1:          f.l1[chainID],
	}
	m.nativeToQuote, m.hasQuotePrice = midPrice(pricingPools, native, quoteToken.Wrapped())
	m.nativeToUSD, m.hasUSDPrice = midPrice(pricingPools, native, info.USDStable)
	if gasToken != nil {
		if p, ok := midPrice(pricingPools, native, gasToken.Wrapped()); ok {
			m.nativeToGasToken = &p
		} else {
			f.logger.Warn().Str("gas_token", gasToken.String()).Msg("no pool to price gas token")
		}
	}
	if !m.hasQuotePrice {
		f.logger.Warn().Str("quote_token", quoteToken.String()).Msg("no pool to price gas in quote token, gas cost treated as zero")
	}
	if info.Rollup != domain.RollupNone && m.l1.L1BaseFeeWei == nil {
		m.l1 = DefaultL1Params(info.Rollup)
	}
	return m, nil
}
