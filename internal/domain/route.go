package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidRoute = errors.New("invalid route")

// Route is an ordered pool sequence connecting Input to Output.
type Route struct {
	Protocol  Protocol
	Pools     []*Pool
	TokenPath []Token
	Input     Token
	Output    Token

	key string
}

// NewRoute derives the token path and validates that every pool chains onto
// the previous token without revisiting a token.
func NewRoute(pools []*Pool, input, output Token) (*Route, error) {
	if len(pools) == 0 {
		return nil, fmt.Errorf("%w: empty pool list", ErrInvalidRoute)
	}
	path := make([]Token, 0, len(pools)+1)
	path = append(path, input)
	current := input
	var sawV2, sawV3 bool
	for i, pool := range pools {
		if !pool.Involves(current) {
			return nil, fmt.Errorf("%w: pool %d %s does not contain %s", ErrInvalidRoute, i, pool, current)
		}
		next := pool.Other(current)
		for _, seen := range path {
			if seen.Equals(next) {
				return nil, fmt.Errorf("%w: token %s visited twice", ErrInvalidRoute, next)
			}
		}
		path = append(path, next)
		current = next
		switch pool.Protocol {
		case ProtocolV2:
			sawV2 = true
		case ProtocolV3:
			sawV3 = true
		}
	}
	if !current.Equals(output) {
		return nil, fmt.Errorf("%w: path ends at %s, want %s", ErrInvalidRoute, current, output)
	}

	protocol := ProtocolV3
	switch {
	case sawV2 && sawV3:
		protocol = ProtocolMixed
	case sawV2:
		protocol = ProtocolV2
	}

	r := &Route{
		Protocol:  protocol,
		Pools:     pools,
		TokenPath: path,
		Input:     input,
		Output:    output,
	}
	keys := r.PoolIdentifiers()
	r.key = protocol.String() + "|" + strings.Join(keys, ">")
	return r, nil
}

func (r *Route) PoolIdentifiers() []string {
	ids := make([]string, len(r.Pools))
	for i, p := range r.Pools {
		ids[i] = p.Key()
	}
	return ids
}

// Key identifies the route by protocol and pool sequence.
func (r *Route) Key() string {
	return r.key
}

func (r *Route) Hops() int {
	return len(r.Pools)
}

// SharesPoolWith reports whether both routes touch the same pool.
func (r *Route) SharesPoolWith(o *Route) bool {
	for _, a := range r.Pools {
		for _, b := range o.Pools {
			if a.Key() == b.Key() {
				return true
			}
		}
	}
	return false
}

func (r *Route) String() string {
	var sb strings.Builder
	sb.WriteString(r.TokenPath[0].String())
	for i, p := range r.Pools {
		sb.WriteString(" -- ")
		sb.WriteString(p.String())
		sb.WriteString(" --> ")
		sb.WriteString(r.TokenPath[i+1].String())
	}
	return sb.String()
}
