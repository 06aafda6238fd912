package persistence

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	gethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/hxuan190/split-router/internal/common"
	"github.com/hxuan190/split-router/internal/domain"
)

const SnapshotVersion = 1

// QuoteSnapshot is the persisted candidate set of one quote request: enough
// to rerun the split search offline. Every amount is a decimal string.
type QuoteSnapshot struct {
	Version     int           `json:"version"`
	ID          string        `json:"id"`
	CreatedAt   int64         `json:"createdAt,omitempty"`
	ChainID     uint64        `json:"chainId"`
	TradeType   string        `json:"tradeType"`
	Amount      string        `json:"amount"`
	Percents    []int         `json:"percents"`
	BlockNumber string        `json:"blockNumber"`
	QuoteToken  string        `json:"quoteToken,omitempty"`
	Tokens      []StoredToken `json:"tokens"`
	Routes      []StoredRoute `json:"routes"`
}

type StoredRoute struct {
	Protocol            string       `json:"protocol"`
	Percent             int          `json:"percent"`
	Amount              string       `json:"amount"`
	RawQuote            string       `json:"rawQuote"`
	GasEstimate         string       `json:"gasEstimate,omitempty"`
	GasCostInToken      string       `json:"gasCostInToken,omitempty"`
	GasCostInUSD        string       `json:"gasCostInUSD,omitempty"`
	GasCostInGasToken   string       `json:"gasCostInGasToken,omitempty"`
	QuoteAdjustedForGas string       `json:"quoteAdjustedForGas,omitempty"`
	TokenPath           []string     `json:"tokenPath"`
	PoolIdentifiers     []string     `json:"poolIdentifiers"`
	Pools               []StoredPool `json:"pools"`

	InitializedTicksCrossedList []uint32 `json:"initializedTicksCrossedList,omitempty"`
	SqrtPriceX96AfterList       []string `json:"sqrtPriceX96AfterList,omitempty"`
}

// RestoredQuotes is a decoded snapshot ready for the optimizer.
type RestoredQuotes struct {
	ID                    string
	ChainID               domain.ChainID
	TradeType             domain.TradeType
	Amount                *big.Int
	Percents              []int
	BlockNumber           uint64
	RoutesWithValidQuotes []*domain.RouteWithValidQuote
}

// NewQuoteSnapshot captures quoted candidates. Tokens are collected from the
// route paths so the document is self contained.
func NewQuoteSnapshot(id string, chainID domain.ChainID, tradeType domain.TradeType, amount *big.Int, percents []int, block uint64, rwqs []*domain.RouteWithValidQuote) *QuoteSnapshot {
	s := &QuoteSnapshot{
		Version:     SnapshotVersion,
		ID:          id,
		CreatedAt:   time.Now().Unix(),
		ChainID:     uint64(chainID),
		TradeType:   tradeType.String(),
		Amount:      amount.String(),
		Percents:    append([]int(nil), percents...),
		BlockNumber: strconv.FormatUint(block, 10),
		Routes:      make([]StoredRoute, 0, len(rwqs)),
	}
	seen := make(map[gethcommon.Address]struct{})
	for _, rwq := range rwqs {
		if s.QuoteToken == "" {
			s.QuoteToken = rwq.QuoteToken.Address.Hex()
		}
		path := make([]string, len(rwq.Route.TokenPath))
		for i, t := range rwq.Route.TokenPath {
			path[i] = t.Address.Hex()
			if _, ok := seen[t.Address]; !ok {
				seen[t.Address] = struct{}{}
				s.Tokens = append(s.Tokens, TokenToStored(t))
			}
		}
		pools := make([]StoredPool, len(rwq.Route.Pools))
		for i, p := range rwq.Route.Pools {
			pools[i] = PoolToStored(p)
		}
		sqrtAfter := make([]string, len(rwq.SqrtPriceX96AfterList))
		for i, v := range rwq.SqrtPriceX96AfterList {
			sqrtAfter[i] = bigString(v)
		}
		s.Routes = append(s.Routes, StoredRoute{
			Protocol:                    rwq.Route.Protocol.String(),
			Percent:                     rwq.Percent,
			Amount:                      rwq.Amount.String(),
			RawQuote:                    rwq.RawQuote.String(),
			GasEstimate:                 bigString(rwq.GasEstimate),
			GasCostInToken:              bigString(rwq.GasCostInToken),
			GasCostInUSD:                bigString(rwq.GasCostInUSD),
			GasCostInGasToken:           bigString(rwq.GasCostInGasToken),
			QuoteAdjustedForGas:         bigString(rwq.QuoteAdjustedForGas),
			TokenPath:                   path,
			PoolIdentifiers:             rwq.Route.PoolIdentifiers(),
			Pools:                       pools,
			InitializedTicksCrossedList: rwq.InitializedTicksCrossedList,
			SqrtPriceX96AfterList:       sqrtAfter,
		})
	}
	return s
}

func (s *QuoteSnapshot) Encode() ([]byte, error) {
	return sonic.Marshal(s)
}

// Decode parses a snapshot document and checks its version. Field level
// validation happens in Restore.
func Decode(data []byte) (*QuoteSnapshot, error) {
	var s QuoteSnapshot
	if err := sonic.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: snapshot json: %v", common.ErrInvalidConfig, err)
	}
	if s.Version != SnapshotVersion {
		return nil, common.InvalidConfigf("snapshot version %d, want %d", s.Version, SnapshotVersion)
	}
	return &s, nil
}

// Restore rebuilds typed routes and quotes. Any unknown protocol, token or
// malformed integer fails with ErrInvalidConfig.
func (s *QuoteSnapshot) Restore() (*RestoredQuotes, error) {
	chainID := domain.ChainID(s.ChainID)
	if _, ok := domain.ChainByID(chainID); !ok {
		return nil, common.InvalidConfigf("snapshot chain %d", s.ChainID)
	}
	tradeType, err := domain.ParseTradeType(s.TradeType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	amount, err := parseBig("amount", s.Amount)
	if err != nil {
		return nil, err
	}
	block := uint64(0)
	if s.BlockNumber != "" {
		if block, err = strconv.ParseUint(s.BlockNumber, 10, 64); err != nil {
			return nil, common.InvalidConfigf("blockNumber %q", s.BlockNumber)
		}
	}

	tokens := make(map[gethcommon.Address]domain.Token, len(s.Tokens))
	for _, st := range s.Tokens {
		t, err := StoredToToken(st)
		if err != nil {
			return nil, err
		}
		tokens[t.Address] = t
	}

	out := &RestoredQuotes{
		ID:          s.ID,
		ChainID:     chainID,
		TradeType:   tradeType,
		Amount:      amount,
		Percents:    append([]int(nil), s.Percents...),
		BlockNumber: block,
	}
	for i, sr := range s.Routes {
		rwq, err := restoreRoute(sr, tokens, tradeType)
		if err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}
		out.RoutesWithValidQuotes = append(out.RoutesWithValidQuotes, rwq)
	}
	if len(out.Percents) == 0 {
		out.Percents = percentsOf(out.RoutesWithValidQuotes)
	}
	return out, nil
}

func restoreRoute(sr StoredRoute, tokens map[gethcommon.Address]domain.Token, tradeType domain.TradeType) (*domain.RouteWithValidQuote, error) {
	protocol, err := domain.ParseProtocol(sr.Protocol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	if len(sr.TokenPath) != len(sr.Pools)+1 {
		return nil, common.InvalidConfigf("token path of %d for %d pools", len(sr.TokenPath), len(sr.Pools))
	}
	path := make([]domain.Token, len(sr.TokenPath))
	for i, addr := range sr.TokenPath {
		if !gethcommon.IsHexAddress(addr) {
			return nil, common.InvalidConfigf("token path address %q", addr)
		}
		t, ok := tokens[gethcommon.HexToAddress(addr)]
		if !ok {
			return nil, fmt.Errorf("%w: %s not in snapshot tokens", common.ErrUnknownToken, addr)
		}
		path[i] = t
	}
	pools := make([]*domain.Pool, len(sr.Pools))
	for i, sp := range sr.Pools {
		if pools[i], err = StoredToPool(sp); err != nil {
			return nil, err
		}
	}
	route, err := domain.NewRoute(pools, path[0], path[len(path)-1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	if route.Protocol != protocol {
		return nil, common.InvalidConfigf("route declared %s but pools make it %s", protocol, route.Protocol)
	}
	if len(sr.PoolIdentifiers) > 0 {
		ids := route.PoolIdentifiers()
		if len(ids) != len(sr.PoolIdentifiers) {
			return nil, common.InvalidConfigf("%d pool identifiers for %d pools", len(sr.PoolIdentifiers), len(ids))
		}
		for i, id := range sr.PoolIdentifiers {
			if !strings.EqualFold(id, ids[i]) {
				return nil, common.InvalidConfigf("pool identifier %s does not match pool %s", id, ids[i])
			}
		}
	}
	if sr.Percent <= 0 || sr.Percent > 100 {
		return nil, common.InvalidConfigf("percent %d", sr.Percent)
	}

	amount, err := parseBig("amount", sr.Amount)
	if err != nil {
		return nil, err
	}
	raw, err := parseBig("rawQuote", sr.RawQuote)
	if err != nil {
		return nil, err
	}
	quoteToken := route.Output
	if tradeType == domain.ExactOutput {
		quoteToken = route.Input
	}
	rwq := domain.NewRouteWithValidQuote(route, sr.Percent, amount, raw, tradeType, quoteToken)

	fields := []struct {
		name string
		src  string
		dst  **big.Int
	}{
		{"gasEstimate", sr.GasEstimate, &rwq.GasEstimate},
		{"gasCostInToken", sr.GasCostInToken, &rwq.GasCostInToken},
		{"gasCostInUSD", sr.GasCostInUSD, &rwq.GasCostInUSD},
		{"gasCostInGasToken", sr.GasCostInGasToken, &rwq.GasCostInGasToken},
	}
	for _, f := range fields {
		if *f.dst, err = parseOptionalBig(f.name, f.src); err != nil {
			return nil, err
		}
	}
	// The adjusted quote may be negative when gas exceeds the output.
	if sr.QuoteAdjustedForGas != "" {
		if rwq.QuoteAdjustedForGas, err = parseSignedBig("quoteAdjustedForGas", sr.QuoteAdjustedForGas); err != nil {
			return nil, err
		}
	}
	rwq.InitializedTicksCrossedList = sr.InitializedTicksCrossedList
	for _, v := range sr.SqrtPriceX96AfterList {
		p, err := parseBig("sqrtPriceX96After", v)
		if err != nil {
			return nil, err
		}
		rwq.SqrtPriceX96AfterList = append(rwq.SqrtPriceX96AfterList, p)
	}
	return rwq, nil
}

func percentsOf(rwqs []*domain.RouteWithValidQuote) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, r := range rwqs {
		if _, ok := seen[r.Percent]; !ok {
			seen[r.Percent] = struct{}{}
			out = append(out, r.Percent)
		}
	}
	sort.Ints(out)
	return out
}
