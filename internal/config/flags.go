package config

import (
	"strconv"
	"strings"

	gethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/hxuan190/split-router/internal/common"
	"github.com/hxuan190/split-router/internal/domain"
)

// ParseProtocols parses a comma separated protocol list. An empty string
// yields nil, which the router reads as V2 and V3.
func ParseProtocols(raw string) ([]domain.Protocol, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out []domain.Protocol
	seen := map[domain.Protocol]bool{}
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		p, err := domain.ParseProtocol(part)
		if err != nil {
			return nil, common.InvalidConfigf("protocols: %v", err)
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out, nil
}

// ParseSecondHopOverrides parses "addr|N,addr|N".
func ParseSecondHopOverrides(raw string) (map[gethcommon.Address]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	out := make(map[gethcommon.Address]int)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		addr, count, ok := strings.Cut(entry, "|")
		if !ok {
			return nil, common.InvalidConfigf("topNSecondHopForTokenAddressRaw entry %q: want addr|N", entry)
		}
		addr = strings.TrimSpace(addr)
		if !gethcommon.IsHexAddress(addr) {
			return nil, common.InvalidConfigf("topNSecondHopForTokenAddressRaw address %q", addr)
		}
		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil || n < 0 {
			return nil, common.InvalidConfigf("topNSecondHopForTokenAddressRaw count %q", count)
		}
		out[gethcommon.HexToAddress(addr)] = n
	}
	return out, nil
}

// ParseChain accepts a chain id or a chain name such as "base".
func ParseChain(raw string) (domain.ChainID, error) {
	raw = strings.TrimSpace(raw)
	if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
		if _, ok := domain.ChainByID(domain.ChainID(id)); ok {
			return domain.ChainID(id), nil
		}
		return 0, common.InvalidConfigf("unsupported chain %d", id)
	}
	for _, id := range domain.SupportedChains() {
		info, _ := domain.ChainByID(id)
		if strings.EqualFold(info.Name, raw) {
			return id, nil
		}
	}
	return 0, common.InvalidConfigf("unsupported chain %q", raw)
}
