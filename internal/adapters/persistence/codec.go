package persistence

import (
	"fmt"
	"math/big"
	"strings"

	gethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/hxuan190/split-router/internal/common"
	"github.com/hxuan190/split-router/internal/domain"
)

type StoredToken struct {
	ChainID    uint64 `json:"chainId"`
	Address    string `json:"address"`
	Decimals   uint8  `json:"decimals"`
	Symbol     string `json:"symbol,omitempty"`
	Name       string `json:"name,omitempty"`
	BuyFeeBps  uint16 `json:"buyFeeBps,omitempty"`
	SellFeeBps uint16 `json:"sellFeeBps,omitempty"`
}

type StoredTick struct {
	Index        int32  `json:"index"`
	SqrtPriceX96 string `json:"sqrtPriceX96"`
	LiquidityNet string `json:"liquidityNet"`
}

type StoredPool struct {
	Protocol string      `json:"protocol"`
	Address  string      `json:"address,omitempty"`
	Token0   StoredToken `json:"token0"`
	Token1   StoredToken `json:"token1"`
	Fee      uint32      `json:"fee"`

	Reserve0 string `json:"reserve0,omitempty"`
	Reserve1 string `json:"reserve1,omitempty"`

	SqrtPriceX96 string       `json:"sqrtPriceX96,omitempty"`
	Liquidity    string       `json:"liquidity,omitempty"`
	TickCurrent  int32        `json:"tickCurrent,omitempty"`
	Ticks        []StoredTick `json:"ticks,omitempty"`
}

func TokenToStored(t domain.Token) StoredToken {
	return StoredToken{
		ChainID:    uint64(t.ChainID),
		Address:    t.Address.Hex(),
		Decimals:   t.Decimals,
		Symbol:     t.Symbol,
		Name:       t.Name,
		BuyFeeBps:  t.BuyFeeBps,
		SellFeeBps: t.SellFeeBps,
	}
}

func StoredToToken(s StoredToken) (domain.Token, error) {
	if !gethcommon.IsHexAddress(s.Address) {
		return domain.Token{}, common.InvalidConfigf("token address %q", s.Address)
	}
	t := domain.NewToken(domain.ChainID(s.ChainID), s.Address, s.Decimals, s.Symbol, s.Name)
	t.BuyFeeBps = s.BuyFeeBps
	t.SellFeeBps = s.SellFeeBps
	return t, nil
}

func PoolToStored(pool *domain.Pool) StoredPool {
	stored := StoredPool{
		Protocol: pool.Protocol.String(),
		Token0:   TokenToStored(pool.Token0),
		Token1:   TokenToStored(pool.Token1),
		Fee:      uint32(pool.Fee),
	}
	if pool.Address != (gethcommon.Address{}) {
		stored.Address = pool.Address.Hex()
	}
	switch pool.Protocol {
	case domain.ProtocolV2:
		stored.Reserve0 = bigString(pool.Reserve0)
		stored.Reserve1 = bigString(pool.Reserve1)
	case domain.ProtocolV3:
		stored.SqrtPriceX96 = bigString(pool.SqrtPriceX96)
		stored.Liquidity = bigString(pool.Liquidity)
		stored.TickCurrent = pool.TickCurrent
		stored.Ticks = make([]StoredTick, len(pool.Ticks))
		for i, t := range pool.Ticks {
			stored.Ticks[i] = StoredTick{
				Index:        t.Index,
				SqrtPriceX96: bigString(t.SqrtPriceX96),
				LiquidityNet: bigString(t.LiquidityNet),
			}
		}
	}
	return stored
}

func StoredToPool(stored StoredPool) (*domain.Pool, error) {
	protocol, err := domain.ParseProtocol(stored.Protocol)
	if err != nil || protocol == domain.ProtocolMixed {
		return nil, common.InvalidConfigf("pool protocol %q", stored.Protocol)
	}
	t0, err := StoredToToken(stored.Token0)
	if err != nil {
		return nil, err
	}
	t1, err := StoredToToken(stored.Token1)
	if err != nil {
		return nil, err
	}
	if t0.ChainID != t1.ChainID {
		return nil, common.InvalidConfigf("pool tokens on chains %d and %d", t0.ChainID, t1.ChainID)
	}

	var pool *domain.Pool
	switch protocol {
	case domain.ProtocolV2:
		r0, err := parseBig("reserve0", stored.Reserve0)
		if err != nil {
			return nil, err
		}
		r1, err := parseBig("reserve1", stored.Reserve1)
		if err != nil {
			return nil, err
		}
		pool = domain.NewV2Pool(t0, t1, r0, r1)
	case domain.ProtocolV3:
		sqrtPrice, err := parseBig("sqrtPriceX96", stored.SqrtPriceX96)
		if err != nil {
			return nil, err
		}
		liquidity, err := parseBig("liquidity", stored.Liquidity)
		if err != nil {
			return nil, err
		}
		ticks := make([]domain.Tick, len(stored.Ticks))
		for i, st := range stored.Ticks {
			price, err := parseBig("tick sqrtPriceX96", st.SqrtPriceX96)
			if err != nil {
				return nil, err
			}
			net, err := parseSignedBig("liquidityNet", st.LiquidityNet)
			if err != nil {
				return nil, err
			}
			ticks[i] = domain.Tick{Index: st.Index, SqrtPriceX96: price, LiquidityNet: net}
		}
		pool, err = domain.NewV3Pool(t0, t1, domain.FeeAmount(stored.Fee), sqrtPrice, liquidity, stored.TickCurrent, ticks)
		if err != nil {
			return nil, common.InvalidConfigf("v3 pool: %v", err)
		}
	}
	if stored.Address != "" {
		if !gethcommon.IsHexAddress(stored.Address) {
			return nil, common.InvalidConfigf("pool address %q", stored.Address)
		}
		pool.Address = gethcommon.HexToAddress(stored.Address)
	}
	return pool, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

// parseBig reads a non-negative decimal integer.
func parseBig(field, s string) (*big.Int, error) {
	v, err := parseSignedBig(field, s)
	if err != nil {
		return nil, err
	}
	if v.Sign() < 0 {
		return nil, common.InvalidConfigf("%s is negative: %s", field, s)
	}
	return v, nil
}

func parseSignedBig(field, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an integer: %q", common.ErrInvalidConfig, field, s)
	}
	return v, nil
}

// parseOptionalBig is parseBig that maps an empty string to nil.
func parseOptionalBig(field, s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	return parseBig(field, s)
}
