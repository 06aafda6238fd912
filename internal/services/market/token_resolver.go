package market

import (
	"fmt"
	"strings"
	"sync"

	gethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/hxuan190/split-router/internal/common"
	"github.com/hxuan190/split-router/internal/domain"
)

// StaticTokenResolver resolves tokens from the chain table plus a token list.
// Addresses that are not listed are unknown: decimals cannot be fetched
// without a node.
type StaticTokenResolver struct {
	mu        sync.RWMutex
	bySymbol  map[domain.ChainID]map[string]domain.Token
	byAddress map[domain.ChainID]map[gethcommon.Address]domain.Token
}

func NewStaticTokenResolver(tokens []domain.Token) *StaticTokenResolver {
	r := &StaticTokenResolver{
		bySymbol:  make(map[domain.ChainID]map[string]domain.Token),
		byAddress: make(map[domain.ChainID]map[gethcommon.Address]domain.Token),
	}
	for _, id := range domain.SupportedChains() {
		info, _ := domain.ChainByID(id)
		for _, t := range info.BaseTokens {
			r.add(t)
		}
		r.add(info.WrappedNative)
		r.add(info.USDStable)
	}
	for _, t := range tokens {
		r.add(t)
	}
	return r
}

// Add lists more tokens. A symbol already taken keeps its first token.
func (r *StaticTokenResolver) Add(tokens ...domain.Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tokens {
		r.add(t)
	}
}

func (r *StaticTokenResolver) add(t domain.Token) {
	if t.IsNative {
		return
	}
	if r.bySymbol[t.ChainID] == nil {
		r.bySymbol[t.ChainID] = make(map[string]domain.Token)
		r.byAddress[t.ChainID] = make(map[gethcommon.Address]domain.Token)
	}
	if sym := strings.ToUpper(t.Symbol); sym != "" {
		if _, taken := r.bySymbol[t.ChainID][sym]; !taken {
			r.bySymbol[t.ChainID][sym] = t
		}
	}
	r.byAddress[t.ChainID][t.Address] = t
}

// Resolve accepts a native currency name, a listed symbol, or a listed address.
func (r *StaticTokenResolver) Resolve(chainID domain.ChainID, ref string) (domain.Token, error) {
	info, ok := domain.ChainByID(chainID)
	if !ok {
		return domain.Token{}, common.InvalidConfigf("unsupported chain %d", chainID)
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Token{}, fmt.Errorf("%w: empty token reference", common.ErrUnknownToken)
	}
	upper := strings.ToUpper(ref)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range info.NativeNames {
		if upper == name {
			return info.NativeCurrency(), nil
		}
	}
	if gethcommon.IsHexAddress(ref) {
		if t, ok := r.byAddress[chainID][gethcommon.HexToAddress(ref)]; ok {
			return t, nil
		}
		return domain.Token{}, fmt.Errorf("%w: %s on %s", common.ErrUnknownToken, ref, info.Name)
	}
	if t, ok := r.bySymbol[chainID][upper]; ok {
		return t, nil
	}
	return domain.Token{}, fmt.Errorf("%w: %s on %s", common.ErrUnknownToken, ref, info.Name)
}

// Tokens lists every known token of a chain.
func (r *StaticTokenResolver) Tokens(chainID domain.ChainID) []domain.Token {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Token, 0, len(r.byAddress[chainID]))
	for _, t := range r.byAddress[chainID] {
		out = append(out, t)
	}
	return out
}
