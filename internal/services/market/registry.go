package market

import (
	"fmt"
	"sort"

	"github.com/hxuan190/split-router/internal/common"
	"github.com/hxuan190/split-router/internal/domain"
	"github.com/hxuan190/split-router/internal/services/quoter"
)

// ProtocolRegistry maps each protocol to the provider serving its pools and
// the quoter pricing its routes. Mixed routes need no provider of their own.
type ProtocolRegistry struct {
	providers map[domain.Protocol]PoolProvider
	quoters   map[domain.Protocol]quoter.Quoter
}

func NewProtocolRegistry() *ProtocolRegistry {
	return &ProtocolRegistry{
		providers: make(map[domain.Protocol]PoolProvider),
		quoters:   make(map[domain.Protocol]quoter.Quoter),
	}
}

func (r *ProtocolRegistry) RegisterProvider(p PoolProvider) {
	r.providers[p.Protocol()] = p
}

func (r *ProtocolRegistry) RegisterQuoter(q quoter.Quoter) {
	r.quoters[q.Protocol()] = q
}

func (r *ProtocolRegistry) Provider(p domain.Protocol) (PoolProvider, bool) {
	provider, ok := r.providers[p]
	return provider, ok
}

func (r *ProtocolRegistry) Quoter(p domain.Protocol) (quoter.Quoter, bool) {
	q, ok := r.quoters[p]
	return q, ok
}

// Providers returns the registered pool providers ordered by protocol.
func (r *ProtocolRegistry) Providers() []PoolProvider {
	out := make([]PoolProvider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Protocol() < out[j].Protocol() })
	return out
}

// Check reports protocols that are enabled but cannot be served.
func (r *ProtocolRegistry) Check(protocols []domain.Protocol) error {
	for _, p := range protocols {
		if _, ok := r.quoters[p]; !ok {
			return common.InvalidConfigf("no quoter registered for %s", p)
		}
		switch p {
		case domain.ProtocolMixed:
			if _, ok := r.providers[domain.ProtocolV2]; !ok {
				return common.InvalidConfigf("mixed routes need a %s pool provider", domain.ProtocolV2)
			}
			if _, ok := r.providers[domain.ProtocolV3]; !ok {
				return common.InvalidConfigf("mixed routes need a %s pool provider", domain.ProtocolV3)
			}
		default:
			if _, ok := r.providers[p]; !ok {
				return common.InvalidConfigf("no pool provider registered for %s", p)
			}
		}
	}
	return nil
}

func (r *ProtocolRegistry) String() string {
	return fmt.Sprintf("registry{providers=%d quoters=%d}", len(r.providers), len(r.quoters))
}
