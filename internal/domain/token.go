package domain

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type ChainID uint64

const (
	ChainMainnet  ChainID = 1
	ChainOptimism ChainID = 10
	ChainBase     ChainID = 8453
	ChainArbitrum ChainID = 42161
)

type TradeType uint8

const (
	ExactInput TradeType = iota
	ExactOutput
)

func (t TradeType) String() string {
	switch t {
	case ExactInput:
		return "EXACT_INPUT"
	case ExactOutput:
		return "EXACT_OUTPUT"
	default:
		return "UNKNOWN"
	}
}

// ParseTradeType accepts the wire names plus the CLI shorthands.
func ParseTradeType(s string) (TradeType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EXACT_INPUT", "EXACTIN", "EXACT_IN", "":
		return ExactInput, nil
	case "EXACT_OUTPUT", "EXACTOUT", "EXACT_OUT":
		return ExactOutput, nil
	default:
		return ExactInput, fmt.Errorf("unknown trade type %q", s)
	}
}

// Token is an immutable currency description. Identity is (ChainID, Address);
// native currencies carry the zero address and IsNative.
type Token struct {
	ChainID  ChainID        `json:"chainId"`
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name,omitempty"`
	IsNative bool           `json:"isNative,omitempty"`

	// Transfer taxes in bps, only honoured when fee-on-transfer fetching is enabled.
	BuyFeeBps  uint16 `json:"buyFeeBps,omitempty"`
	SellFeeBps uint16 `json:"sellFeeBps,omitempty"`
}

func NewToken(chainID ChainID, address string, decimals uint8, symbol, name string) Token {
	return Token{
		ChainID:  chainID,
		Address:  common.HexToAddress(address),
		Decimals: decimals,
		Symbol:   symbol,
		Name:     name,
	}
}

func (t Token) Equals(o Token) bool {
	return t.ChainID == o.ChainID && t.Address == o.Address && t.IsNative == o.IsNative
}

// SortsBefore orders tokens by address, the same order pools use for token0/token1.
func (t Token) SortsBefore(o Token) bool {
	return bytes.Compare(t.Address.Bytes(), o.Address.Bytes()) < 0
}

// Wrapped returns the ERC20 form of a native currency, or the token itself.
func (t Token) Wrapped() Token {
	if !t.IsNative {
		return t
	}
	if info, ok := ChainByID(t.ChainID); ok {
		return info.WrappedNative
	}
	return t
}

func (t Token) String() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Address.Hex()
}

// TokenPair is an unordered pair, stored sorted.
type TokenPair struct {
	Token0 Token
	Token1 Token
}

func NewTokenPair(a, b Token) TokenPair {
	if b.SortsBefore(a) {
		a, b = b, a
	}
	return TokenPair{Token0: a, Token1: b}
}

func (p TokenPair) Key() string {
	return strings.ToLower(p.Token0.Address.Hex() + "-" + p.Token1.Address.Hex())
}
