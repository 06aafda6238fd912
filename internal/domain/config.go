package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	appcommon "github.com/hxuan190/split-router/internal/common"
)

// ProtocolPoolSelection bounds how many pools of one protocol feed route
// enumeration.
type ProtocolPoolSelection struct {
	TopN                         int                    `toml:"top_n" json:"topN"`
	TopNDirectSwaps              int                    `toml:"top_n_direct_swaps" json:"topNDirectSwaps"`
	TopNTokenInOut               int                    `toml:"top_n_token_in_out" json:"topNTokenInOut"`
	TopNSecondHop                int                    `toml:"top_n_second_hop" json:"topNSecondHop"`
	TopNSecondHopForTokenAddress map[common.Address]int `toml:"-" json:"topNSecondHopForTokenAddress,omitempty"`
	TopNWithEachBaseToken        int                    `toml:"top_n_with_each_base_token" json:"topNWithEachBaseToken"`
	TopNWithBaseToken            int                    `toml:"top_n_with_base_token" json:"topNWithBaseToken"`
}

// SecondHopLimit returns the second-hop limit for pools leaving token.
func (s ProtocolPoolSelection) SecondHopLimit(token Token) int {
	if n, ok := s.TopNSecondHopForTokenAddress[token.Address]; ok {
		return n
	}
	return s.TopNSecondHop
}

func (s ProtocolPoolSelection) validate(name string) error {
	fields := map[string]int{
		"topN":                  s.TopN,
		"topNDirectSwaps":       s.TopNDirectSwaps,
		"topNTokenInOut":        s.TopNTokenInOut,
		"topNSecondHop":         s.TopNSecondHop,
		"topNWithEachBaseToken": s.TopNWithEachBaseToken,
		"topNWithBaseToken":     s.TopNWithBaseToken,
	}
	for field, v := range fields {
		if v < 0 {
			return appcommon.InvalidConfigf("%s %s must not be negative, got %d", name, field, v)
		}
	}
	for addr, v := range s.TopNSecondHopForTokenAddress {
		if v < 0 {
			return appcommon.InvalidConfigf("%s second hop override for %s must not be negative", name, addr.Hex())
		}
	}
	return nil
}

type PortionConfig struct {
	Bips       uint32
	FlatAmount *big.Int
	Recipient  common.Address
}

func (p *PortionConfig) Enabled() bool {
	return p != nil && (p.Bips > 0 || (p.FlatAmount != nil && p.FlatAmount.Sign() > 0))
}

// AlphaRouterConfig is built once per request and passed by value.
type AlphaRouterConfig struct {
	V2PoolSelection ProtocolPoolSelection
	V3PoolSelection ProtocolPoolSelection

	MaxSwapsPerPath     int
	MinSplits           int
	MaxSplits           int
	DistributionPercent int

	// Empty means V2 and V3.
	Protocols          []Protocol
	ForceCrossProtocol bool
	ForceMixedRoutes   bool

	EnableFeeOnTransferFeeFetching bool
	GasToken                       *Token

	// Zero resolves to the provider's latest block.
	BlockNumber uint64

	MaxCandidatesPerPercent int
	Parallelism             int

	Portion      *PortionConfig
	DebugRouting bool
}

const (
	DefaultMaxCandidatesPerPercent = 10
	DefaultParallelism             = 8
)

func DefaultRoutingConfig() AlphaRouterConfig {
	return AlphaRouterConfig{
		V2PoolSelection: ProtocolPoolSelection{
			TopN:                  3,
			TopNDirectSwaps:       1,
			TopNTokenInOut:        5,
			TopNSecondHop:         2,
			TopNWithEachBaseToken: 2,
			TopNWithBaseToken:     6,
		},
		V3PoolSelection: ProtocolPoolSelection{
			TopN:                  2,
			TopNDirectSwaps:       2,
			TopNTokenInOut:        3,
			TopNSecondHop:         1,
			TopNWithEachBaseToken: 3,
			TopNWithBaseToken:     5,
		},
		MaxSwapsPerPath:         3,
		MinSplits:               1,
		MaxSplits:               7,
		DistributionPercent:     5,
		MaxCandidatesPerPercent: DefaultMaxCandidatesPerPercent,
		Parallelism:             DefaultParallelism,
	}
}

func (c AlphaRouterConfig) Validate() error {
	if c.MinSplits <= 0 || c.MaxSplits <= 0 {
		return appcommon.InvalidConfigf("minSplits and maxSplits must be positive, got %d and %d", c.MinSplits, c.MaxSplits)
	}
	if c.MinSplits > c.MaxSplits {
		return appcommon.InvalidConfigf("minSplits %d exceeds maxSplits %d", c.MinSplits, c.MaxSplits)
	}
	if c.DistributionPercent <= 0 || 100%c.DistributionPercent != 0 {
		return appcommon.InvalidConfigf("distributionPercent %d must divide 100", c.DistributionPercent)
	}
	if c.MaxSwapsPerPath < 1 {
		return appcommon.InvalidConfigf("maxSwapsPerPath must be at least 1, got %d", c.MaxSwapsPerPath)
	}
	if c.MaxCandidatesPerPercent < 0 || c.Parallelism < 0 {
		return appcommon.InvalidConfigf("maxCandidatesPerPercent and parallelism must not be negative")
	}
	if err := c.V2PoolSelection.validate("v2"); err != nil {
		return err
	}
	if err := c.V3PoolSelection.validate("v3"); err != nil {
		return err
	}
	if c.Portion != nil && c.Portion.Bips > 10000 {
		return appcommon.InvalidConfigf("portion bips %d exceeds 10000", c.Portion.Bips)
	}
	if c.ForceMixedRoutes && len(c.Protocols) > 0 && !c.ProtocolEnabled(ProtocolMixed) {
		return appcommon.InvalidConfigf("forceMixedRoutes requires MIXED in protocols")
	}
	return nil
}

func (c AlphaRouterConfig) PoolSelection(p Protocol) ProtocolPoolSelection {
	if p == ProtocolV2 {
		return c.V2PoolSelection
	}
	return c.V3PoolSelection
}

// EnabledProtocols resolves the protocol set. Mixed routes are opt-in.
func (c AlphaRouterConfig) EnabledProtocols() []Protocol {
	if len(c.Protocols) == 0 {
		out := []Protocol{ProtocolV2, ProtocolV3}
		if c.ForceMixedRoutes {
			out = append(out, ProtocolMixed)
		}
		return out
	}
	return c.Protocols
}

func (c AlphaRouterConfig) ProtocolEnabled(p Protocol) bool {
	for _, e := range c.EnabledProtocols() {
		if e == p {
			return true
		}
	}
	return false
}

// CandidateWidth is the per-bucket search width after defaults.
func (c AlphaRouterConfig) CandidateWidth() int {
	if c.MaxCandidatesPerPercent <= 0 {
		return DefaultMaxCandidatesPerPercent
	}
	return c.MaxCandidatesPerPercent
}

func (c AlphaRouterConfig) Workers() int {
	if c.Parallelism <= 0 {
		return DefaultParallelism
	}
	return c.Parallelism
}
