package domain

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type Protocol uint8

const (
	ProtocolV2 Protocol = iota + 1
	ProtocolV3
	ProtocolMixed
)

func (p Protocol) String() string {
	switch p {
	case ProtocolV2:
		return "V2"
	case ProtocolV3:
		return "V3"
	case ProtocolMixed:
		return "MIXED"
	default:
		return "UNKNOWN"
	}
}

func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "V2":
		return ProtocolV2, nil
	case "V3":
		return ProtocolV3, nil
	case "MIXED":
		return ProtocolMixed, nil
	default:
		return 0, fmt.Errorf("unknown protocol %q", s)
	}
}

// FeeAmount is a pool fee in hundredths of a bip (3000 = 0.3%).
type FeeAmount uint32

const (
	FeeLowest FeeAmount = 100
	FeeLow    FeeAmount = 500
	FeeMedium FeeAmount = 3000
	FeeHigh   FeeAmount = 10000

	V2Fee FeeAmount = 3000
)

// Tick is an initialized tick with its precomputed price.
type Tick struct {
	Index        int32    `json:"index"`
	SqrtPriceX96 *big.Int `json:"sqrtPriceX96"`
	LiquidityNet *big.Int `json:"liquidityNet"`
}

// Pool is a read-only view of a liquidity pool at a pinned block. Token0
// always sorts before Token1.
type Pool struct {
	Protocol Protocol       `json:"protocol"`
	Address  common.Address `json:"address"`
	Token0   Token          `json:"token0"`
	Token1   Token          `json:"token1"`
	Fee      FeeAmount      `json:"fee"`

	// V2 state
	Reserve0 *big.Int `json:"reserve0,omitempty"`
	Reserve1 *big.Int `json:"reserve1,omitempty"`

	// V3 state
	SqrtPriceX96 *big.Int `json:"sqrtPriceX96,omitempty"`
	Liquidity    *big.Int `json:"liquidity,omitempty"`
	TickCurrent  int32    `json:"tickCurrent,omitempty"`
	Ticks        []Tick   `json:"ticks,omitempty"`

	key string
}

func NewV2Pool(a, b Token, reserveA, reserveB *big.Int) *Pool {
	if b.SortsBefore(a) {
		a, b = b, a
		reserveA, reserveB = reserveB, reserveA
	}
	p := &Pool{
		Protocol: ProtocolV2,
		Token0:   a,
		Token1:   b,
		Fee:      V2Fee,
		Reserve0: new(big.Int).Set(reserveA),
		Reserve1: new(big.Int).Set(reserveB),
	}
	p.key = p.computeKey()
	return p
}

// NewV3Pool expects token0/token1 already sorted, since the price is quoted
// as token1 per token0.
func NewV3Pool(token0, token1 Token, fee FeeAmount, sqrtPriceX96, liquidity *big.Int, tickCurrent int32, ticks []Tick) (*Pool, error) {
	if !token0.SortsBefore(token1) {
		return nil, fmt.Errorf("v3 pool tokens out of order: %s, %s", token0, token1)
	}
	sorted := make([]Tick, len(ticks))
	copy(sorted, ticks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Index == sorted[i-1].Index {
			return nil, fmt.Errorf("duplicate tick %d", sorted[i].Index)
		}
	}
	p := &Pool{
		Protocol:     ProtocolV3,
		Token0:       token0,
		Token1:       token1,
		Fee:          fee,
		SqrtPriceX96: new(big.Int).Set(sqrtPriceX96),
		Liquidity:    new(big.Int).Set(liquidity),
		TickCurrent:  tickCurrent,
		Ticks:        sorted,
	}
	p.key = p.computeKey()
	return p, nil
}

func (p *Pool) computeKey() string {
	t0 := strings.ToLower(p.Token0.Address.Hex())
	t1 := strings.ToLower(p.Token1.Address.Hex())
	if p.Protocol == ProtocolV2 {
		return fmt.Sprintf("v2:%s-%s", t0, t1)
	}
	return fmt.Sprintf("v3:%s-%s-%d", t0, t1, p.Fee)
}

// Key identifies the pool independently of its state.
func (p *Pool) Key() string {
	if p.key == "" {
		p.key = p.computeKey()
	}
	return p.key
}

func (p *Pool) Involves(t Token) bool {
	return p.Token0.Equals(t) || p.Token1.Equals(t)
}

// Other returns the counterpart of t. The caller must ensure Involves(t).
func (p *Pool) Other(t Token) Token {
	if p.Token0.Equals(t) {
		return p.Token1
	}
	return p.Token0
}

func (p *Pool) Pair() TokenPair {
	return TokenPair{Token0: p.Token0, Token1: p.Token1}
}

// LiquidityScore ranks pools of the same protocol against each other.
func (p *Pool) LiquidityScore() *big.Int {
	switch p.Protocol {
	case ProtocolV2:
		if p.Reserve0 == nil || p.Reserve1 == nil {
			return new(big.Int)
		}
		k := new(big.Int).Mul(p.Reserve0, p.Reserve1)
		return k.Sqrt(k)
	case ProtocolV3:
		if p.Liquidity == nil {
			return new(big.Int)
		}
		return new(big.Int).Set(p.Liquidity)
	default:
		return new(big.Int)
	}
}

// MidPrice returns the price of token0 in token1 as an exact fraction of raw units.
func (p *Pool) MidPrice() (num, den *big.Int) {
	switch p.Protocol {
	case ProtocolV2:
		return new(big.Int).Set(p.Reserve1), new(big.Int).Set(p.Reserve0)
	default:
		num = new(big.Int).Mul(p.SqrtPriceX96, p.SqrtPriceX96)
		den = new(big.Int).Lsh(big.NewInt(1), 192)
		return num, den
	}
}

// PriceOf returns the price of t in the pool's other token.
func (p *Pool) PriceOf(t Token) (num, den *big.Int) {
	num, den = p.MidPrice()
	if p.Token1.Equals(t) {
		return den, num
	}
	return num, den
}

func (p *Pool) String() string {
	if p.Protocol == ProtocolV2 {
		return fmt.Sprintf("[V2 %s/%s]", p.Token0, p.Token1)
	}
	return fmt.Sprintf("[V3 %s/%s %.2f%%]", p.Token0, p.Token1, float64(p.Fee)/10000)
}
