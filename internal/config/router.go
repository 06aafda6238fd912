package config

import (
	"bytes"
	"math/big"
	"os"
	"strings"
	"time"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"

	"github.com/hxuan190/split-router/internal/common"
	"github.com/hxuan190/split-router/internal/domain"
	"github.com/hxuan190/split-router/internal/services/gas"
	"github.com/hxuan190/split-router/internal/services/market"
)

// RouterConfig is the TOML file holding routing defaults, gas pricing and
// the token and pool sources the service starts from.
type RouterConfig struct {
	Routing RoutingSection `toml:"routing"`
	V2      PoolSelection  `toml:"v2"`
	V3      PoolSelection  `toml:"v3"`
	Gas     GasSection     `toml:"gas"`
	Pools   PoolsSection   `toml:"pools"`
	Portion PortionSection `toml:"portion"`
	Tokens  []TokenEntry   `toml:"tokens"`
}

type RoutingSection struct {
	MaxSwapsPerPath         int      `toml:"max_swaps_per_path"`
	MinSplits               int      `toml:"min_splits"`
	MaxSplits               int      `toml:"max_splits"`
	DistributionPercent     int      `toml:"distribution_percent"`
	Protocols               []string `toml:"protocols"`
	ForceCrossProtocol      bool     `toml:"force_cross_protocol"`
	ForceMixedRoutes        bool     `toml:"force_mixed_routes"`
	MaxCandidatesPerPercent int      `toml:"max_candidates_per_percent"`
	Parallelism             int      `toml:"parallelism"`
}

// PoolSelection mirrors domain.ProtocolPoolSelection with a TOML-friendly
// second-hop override table keyed by hex address.
type PoolSelection struct {
	domain.ProtocolPoolSelection
	SecondHopOverrides map[string]int `toml:"second_hop_overrides"`
}

type GasSection struct {
	PriceGwei string              `toml:"price_gwei"`
	L1        map[string]L1Section `toml:"l1"`
}

type L1Section struct {
	BaseFeeWei string `toml:"base_fee_wei"`
	Scalar     uint64 `toml:"scalar"`
	Overhead   uint64 `toml:"overhead"`
}

type PoolsSection struct {
	Snapshots     []string `toml:"snapshots"`
	CacheTTL      string   `toml:"cache_ttl"`
	RatePerSecond float64  `toml:"rate_per_second"`
	Burst         int      `toml:"burst"`
}

type PortionSection struct {
	Bips       uint32 `toml:"bips"`
	FlatAmount string `toml:"flat_amount"`
	Recipient  string `toml:"recipient"`
}

type TokenEntry struct {
	ChainID  uint64 `toml:"chain_id"`
	Address  string `toml:"address"`
	Decimals uint8  `toml:"decimals"`
	Symbol   string `toml:"symbol"`
	Name     string `toml:"name"`
}

func DefaultRouterConfig() *RouterConfig {
	d := domain.DefaultRoutingConfig()
	return &RouterConfig{
		Routing: RoutingSection{
			MaxSwapsPerPath:         d.MaxSwapsPerPath,
			MinSplits:               d.MinSplits,
			MaxSplits:               d.MaxSplits,
			DistributionPercent:     d.DistributionPercent,
			MaxCandidatesPerPercent: d.MaxCandidatesPerPercent,
			Parallelism:             d.Parallelism,
		},
		V2:  PoolSelection{ProtocolPoolSelection: d.V2PoolSelection},
		V3:  PoolSelection{ProtocolPoolSelection: d.V3PoolSelection},
		Gas: GasSection{PriceGwei: "20"},
		Pools: PoolsSection{
			CacheTTL:      "15s",
			RatePerSecond: 200,
			Burst:         50,
		},
	}
}

// LoadRouterConfig decodes path over the defaults. Unknown keys are rejected.
// An empty path returns the defaults.
func LoadRouterConfig(path string) (*RouterConfig, error) {
	cfg := DefaultRouterConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.InvalidConfigf("read router config %s: %v", path, err)
	}
	if err := cfg.decode(data); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ParseRouterConfig(data []byte) (*RouterConfig, error) {
	cfg := DefaultRouterConfig()
	if err := cfg.decode(data); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *RouterConfig) decode(data []byte) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return common.InvalidConfigf("router config: %v", err)
	}
	return c.Validate()
}

func (c *RouterConfig) Validate() error {
	if _, err := c.ToAlphaRouterConfig(); err != nil {
		return err
	}
	if _, err := c.GasPriceGwei(); err != nil {
		return err
	}
	if _, err := c.L1Params(); err != nil {
		return err
	}
	if _, err := c.TokenList(); err != nil {
		return err
	}
	if _, err := c.ProviderOptions(); err != nil {
		return err
	}
	return nil
}

func (c *RouterConfig) ProviderOptions() (market.ProviderOptions, error) {
	opts := market.DefaultProviderOptions()
	if c.Pools.CacheTTL != "" {
		ttl, err := time.ParseDuration(c.Pools.CacheTTL)
		if err != nil || ttl <= 0 {
			return opts, common.InvalidConfigf("pools cache_ttl %q", c.Pools.CacheTTL)
		}
		opts.CacheTTL = ttl
	}
	if c.Pools.RatePerSecond < 0 || c.Pools.Burst < 0 {
		return opts, common.InvalidConfigf("pools rate_per_second and burst must not be negative")
	}
	if c.Pools.RatePerSecond > 0 {
		opts.RatePerSecond = c.Pools.RatePerSecond
	}
	if c.Pools.Burst > 0 {
		opts.Burst = c.Pools.Burst
	}
	return opts, nil
}

// ToAlphaRouterConfig converts the file into per-request routing defaults.
func (c *RouterConfig) ToAlphaRouterConfig() (domain.AlphaRouterConfig, error) {
	cfg := domain.DefaultRoutingConfig()
	cfg.MaxSwapsPerPath = c.Routing.MaxSwapsPerPath
	cfg.MinSplits = c.Routing.MinSplits
	cfg.MaxSplits = c.Routing.MaxSplits
	cfg.DistributionPercent = c.Routing.DistributionPercent
	cfg.ForceCrossProtocol = c.Routing.ForceCrossProtocol
	cfg.ForceMixedRoutes = c.Routing.ForceMixedRoutes
	cfg.MaxCandidatesPerPercent = c.Routing.MaxCandidatesPerPercent
	cfg.Parallelism = c.Routing.Parallelism

	protocols, err := ParseProtocols(strings.Join(c.Routing.Protocols, ","))
	if err != nil {
		return cfg, err
	}
	cfg.Protocols = protocols

	if cfg.V2PoolSelection, err = c.V2.resolve(); err != nil {
		return cfg, err
	}
	if cfg.V3PoolSelection, err = c.V3.resolve(); err != nil {
		return cfg, err
	}

	portion, err := c.Portion.resolve()
	if err != nil {
		return cfg, err
	}
	cfg.Portion = portion
	return cfg, cfg.Validate()
}

func (s PoolSelection) resolve() (domain.ProtocolPoolSelection, error) {
	out := s.ProtocolPoolSelection
	if len(s.SecondHopOverrides) == 0 {
		return out, nil
	}
	out.TopNSecondHopForTokenAddress = make(map[gethcommon.Address]int, len(s.SecondHopOverrides))
	for addr, n := range s.SecondHopOverrides {
		if !gethcommon.IsHexAddress(addr) {
			return out, common.InvalidConfigf("second hop override address %q", addr)
		}
		out.TopNSecondHopForTokenAddress[gethcommon.HexToAddress(addr)] = n
	}
	return out, nil
}

func (p PortionSection) resolve() (*domain.PortionConfig, error) {
	if p.Bips == 0 && p.FlatAmount == "" {
		return nil, nil
	}
	out := &domain.PortionConfig{Bips: p.Bips}
	if p.FlatAmount != "" {
		v, ok := new(big.Int).SetString(p.FlatAmount, 10)
		if !ok || v.Sign() < 0 {
			return nil, common.InvalidConfigf("portion flat_amount %q", p.FlatAmount)
		}
		out.FlatAmount = v
	}
	if p.Recipient != "" {
		if !gethcommon.IsHexAddress(p.Recipient) {
			return nil, common.InvalidConfigf("portion recipient %q", p.Recipient)
		}
		out.Recipient = gethcommon.HexToAddress(p.Recipient)
	}
	return out, nil
}

func (c *RouterConfig) GasPriceGwei() (decimal.Decimal, error) {
	v, err := decimal.NewFromString(c.Gas.PriceGwei)
	if err != nil {
		return decimal.Zero, common.InvalidConfigf("gas price_gwei %q: %v", c.Gas.PriceGwei, err)
	}
	if v.IsNegative() {
		return decimal.Zero, common.InvalidConfigf("gas price_gwei %q must not be negative", c.Gas.PriceGwei)
	}
	return v, nil
}

// L1Params returns the rollup data-fee parameters keyed by chain. Rollup
// chains without an entry fall back to gas.DefaultL1Params.
func (c *RouterConfig) L1Params() (map[domain.ChainID]gas.L1Params, error) {
	out := make(map[domain.ChainID]gas.L1Params)
	for _, id := range domain.SupportedChains() {
		info, _ := domain.ChainByID(id)
		if info.Rollup != domain.RollupNone {
			out[id] = gas.DefaultL1Params(info.Rollup)
		}
	}
	for name, sec := range c.Gas.L1 {
		id, err := ParseChain(name)
		if err != nil {
			return nil, err
		}
		params := out[id]
		if sec.BaseFeeWei != "" {
			fee, ok := new(big.Int).SetString(sec.BaseFeeWei, 10)
			if !ok || fee.Sign() < 0 {
				return nil, common.InvalidConfigf("l1 %s base_fee_wei %q", name, sec.BaseFeeWei)
			}
			params.L1BaseFeeWei = fee
		}
		if sec.Scalar > 0 {
			params.Scalar = sec.Scalar
		}
		if sec.Overhead > 0 {
			params.Overhead = sec.Overhead
		}
		out[id] = params
	}
	return out, nil
}

// TokenList returns the extra tokens listed in the file.
func (c *RouterConfig) TokenList() ([]domain.Token, error) {
	out := make([]domain.Token, 0, len(c.Tokens))
	for _, t := range c.Tokens {
		if _, ok := domain.ChainByID(domain.ChainID(t.ChainID)); !ok {
			return nil, common.InvalidConfigf("token %s: unsupported chain %d", t.Symbol, t.ChainID)
		}
		if !gethcommon.IsHexAddress(t.Address) {
			return nil, common.InvalidConfigf("token %s: bad address %q", t.Symbol, t.Address)
		}
		out = append(out, domain.NewToken(domain.ChainID(t.ChainID), t.Address, t.Decimals, t.Symbol, t.Name))
	}
	return out, nil
}
