package router

import (
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hxuan190/split-router/internal/common"
	"github.com/hxuan190/split-router/internal/domain"
	"github.com/hxuan190/split-router/internal/metrics"
	"github.com/hxuan190/split-router/internal/services"
)

// SplitOptimizer searches percent combinations of quoted routes for the
// plan with the best gas adjusted net value.
type SplitOptimizer struct {
	logger *services.ServiceLogger
}

func NewSplitOptimizer(logger zerolog.Logger) *SplitOptimizer {
	o := &SplitOptimizer{}
	o.logger = services.NewServiceLogger(logger, o)
	return o
}

func (o *SplitOptimizer) ID() string {
	return "split_optimizer"
}

// candidate is one quote prepared for the search. score is oriented so that
// higher is always better: the adjusted output for exact-in and the negated
// adjusted input for exact-out.
type candidate struct {
	rwq      *domain.RouteWithValidQuote
	score    *big.Int
	routeKey string
	pools    []string
	protocol domain.Protocol
	// shape is the per-hop protocol sequence, which fixes the route protocol
	// and its calldata size.
	shape string
}

type combination struct {
	candidates []*candidate
	score      *big.Int
	l1         domain.L1GasFees
}

// GetBestSwapRoute picks routes and one percent per route so the percents sum
// to 100, the route count is within [MinSplits, MaxSplits] and the summed
// gas adjusted quote is maximal (exact-in) or minimal (exact-out). Each route
// already carries its own gas in QuoteAdjustedForGas, so every extra split
// pays for itself. On rollups the L1 data fee of the whole combination is
// charged too. Ties go to fewer splits.
//
// Returns common.ErrNoRouteFound when no combination covers 100%.
func (o *SplitOptimizer) GetBestSwapRoute(
	amount *big.Int,
	percents []int,
	routesWithValidQuotes []*domain.RouteWithValidQuote,
	tradeType domain.TradeType,
	chainID domain.ChainID,
	cfg domain.AlphaRouterConfig,
	portionProvider domain.PortionProvider,
	gasModel domain.GasModel,
) (*domain.SwapPlan, error) {
	if cfg.MinSplits <= 0 || cfg.MaxSplits <= 0 {
		return nil, common.InvalidConfigf("minSplits and maxSplits must be positive, got %d and %d", cfg.MinSplits, cfg.MaxSplits)
	}
	if cfg.MinSplits > cfg.MaxSplits {
		return nil, common.InvalidConfigf("minSplits %d exceeds maxSplits %d", cfg.MinSplits, cfg.MaxSplits)
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, common.InvalidConfigf("amount must be positive")
	}
	for _, p := range percents {
		if p <= 0 || p > 100 {
			return nil, common.InvalidConfigf("percent bucket %d out of range", p)
		}
	}
	if len(routesWithValidQuotes) == 0 {
		return nil, common.ErrNoRouteFound
	}

	buckets := groupByPercent(routesWithValidQuotes, percents, tradeType, cfg.CandidateWidth(), cfg.MaxSplits)
	if len(buckets) == 0 {
		return nil, common.ErrNoRouteFound
	}

	var l1 l1Pricer
	if gasModel != nil && chainID.IsRollup() {
		l1 = gasModel.CalculateL1GasFees
	}

	start := time.Now()
	results := make([]*combination, cfg.MaxSplits-cfg.MinSplits+1)
	explored := make([]int, len(results))
	g := new(errgroup.Group)
	g.SetLimit(cfg.Workers())
	for k := cfg.MinSplits; k <= cfg.MaxSplits; k++ {
		g.Go(func() error {
			kStart := time.Now()
			s := newSplitSearch(k, buckets, tradeType, l1, cfg.ForceCrossProtocol)
			best, err := s.run()
			if err != nil {
				return err
			}
			results[k-cfg.MinSplits] = best
			explored[k-cfg.MinSplits] = s.combinations
			metrics.OptimizerDuration.WithLabelValues(strconv.Itoa(k)).Observe(time.Since(kStart).Seconds())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var best *combination
	total := 0
	for i, res := range results {
		total += explored[i]
		if res == nil {
			continue
		}
		if best == nil || res.score.Cmp(best.score) > 0 {
			best = res
		}
	}
	metrics.OptimizerCombinations.Observe(float64(total))

	if best == nil {
		o.logger.Debug().Int("quotes", len(routesWithValidQuotes)).Int("combinations", total).Msg("no combination covers 100%")
		return nil, common.ErrNoRouteFound
	}

	plan := buildSwapPlan(best, amount, tradeType, cfg, portionProvider)
	metrics.PlanSplits.Observe(float64(plan.Splits()))
	o.logger.Debug().
		Int("splits", plan.Splits()).
		Int("combinations", total).
		Str("quote_gas_adjusted", plan.QuoteGasAdjusted.String()).
		Dur("elapsed", time.Since(start)).
		Msg("best swap route found")
	return plan, nil
}

// groupByPercent keeps the best quote per (route, percent) and trims each
// bucket, ordered by score then route key, with trimBucket.
func groupByPercent(rwqs []*domain.RouteWithValidQuote, percents []int, tradeType domain.TradeType, width, maxSplits int) map[int][]*candidate {
	allowed := make(map[int]struct{}, len(percents))
	for _, p := range percents {
		allowed[p] = struct{}{}
	}

	maxHops := 1
	bestPer := make(map[string]*candidate)
	for _, rwq := range rwqs {
		if rwq == nil || rwq.Route == nil || rwq.RawQuote == nil || rwq.TradeType != tradeType {
			continue
		}
		if _, ok := allowed[rwq.Percent]; len(percents) > 0 && !ok {
			continue
		}
		if rwq.Percent <= 0 || rwq.Percent > 100 {
			continue
		}
		score := new(big.Int).Set(rwq.AdjustedQuote())
		if tradeType == domain.ExactOutput {
			score.Neg(score)
		}
		c := &candidate{
			rwq:      rwq,
			score:    score,
			routeKey: rwq.Route.Key(),
			pools:    rwq.Route.PoolIdentifiers(),
			protocol: rwq.Route.Protocol,
			shape:    routeShape(rwq.Route),
		}
		if len(c.pools) > maxHops {
			maxHops = len(c.pools)
		}
		key := rwq.Key()
		if prev, ok := bestPer[key]; !ok || c.score.Cmp(prev.score) > 0 {
			bestPer[key] = c
		}
	}

	// The other legs of a plan touch at most (maxSplits-1)*maxHops pools, so
	// they can block at most that many mutually pool disjoint candidates.
	reserve := 1
	if maxSplits > 1 {
		reserve = (maxSplits-1)*maxHops + 1
	}

	buckets := make(map[int][]*candidate)
	for _, c := range bestPer {
		buckets[c.rwq.Percent] = append(buckets[c.rwq.Percent], c)
	}
	for p, list := range buckets {
		sort.Slice(list, func(i, j int) bool {
			if c := list[i].score.Cmp(list[j].score); c != 0 {
				return c > 0
			}
			return list[i].routeKey < list[j].routeKey
		})
		buckets[p] = trimBucket(list, width, reserve)
	}
	return buckets
}

// trimBucket keeps the first width candidates of a sorted bucket. Past the
// width a candidate is dropped only once its shape already has reserve
// mutually pool disjoint candidates kept ahead of it: whatever the other legs
// of a plan use, one of those is free and scores at least as well, with the
// same protocol and L1 footprint.
func trimBucket(list []*candidate, width, reserve int) []*candidate {
	if len(list) <= width {
		return list
	}
	kept := make([]*candidate, 0, width)
	disjoint := make(map[string][]*candidate)
	for i, c := range list {
		set := disjoint[c.shape]
		if i >= width && len(set) >= reserve {
			continue
		}
		kept = append(kept, c)
		if len(set) < reserve && disjointFromAll(c, set) {
			disjoint[c.shape] = append(set, c)
		}
	}
	return kept
}

func disjointFromAll(c *candidate, set []*candidate) bool {
	for _, o := range set {
		for _, a := range c.pools {
			for _, b := range o.pools {
				if a == b {
					return false
				}
			}
		}
	}
	return true
}

func routeShape(route *domain.Route) string {
	var sb strings.Builder
	for i, p := range route.Pools {
		if i > 0 {
			sb.WriteByte('>')
		}
		sb.WriteString(p.Protocol.String())
	}
	return sb.String()
}

type l1Pricer func([]*domain.RouteWithValidQuote) (domain.L1GasFees, error)

// splitSearch is a depth first branch and bound over the partitions of 100
// into exactly k parts. It owns all of its state.
type splitSearch struct {
	k          int
	buckets    map[int][]*candidate
	percents   []int
	tradeType  domain.TradeType
	l1         l1Pricer
	forceCross bool

	partition  []int
	optimistic []*big.Int
	chosen     []*candidate
	chosenIdx  []int
	usedRoutes map[string]struct{}
	usedPools  map[string]int
	partial    *big.Int
	upper      *big.Int

	best         *combination
	combinations int
	err          error
}

func newSplitSearch(k int, buckets map[int][]*candidate, tradeType domain.TradeType, l1 l1Pricer, forceCross bool) *splitSearch {
	percents := make([]int, 0, len(buckets))
	for p, list := range buckets {
		if len(list) > 0 {
			percents = append(percents, p)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(percents)))
	return &splitSearch{
		k:          k,
		buckets:    buckets,
		percents:   percents,
		tradeType:  tradeType,
		l1:         l1,
		forceCross: forceCross,
		chosen:     make([]*candidate, k),
		chosenIdx:  make([]int, k),
		optimistic: make([]*big.Int, k+1),
		usedRoutes: make(map[string]struct{}, k),
		usedPools:  make(map[string]int),
		partial:    new(big.Int),
		upper:      new(big.Int),
	}
}

func (s *splitSearch) run() (*combination, error) {
	for _, partition := range percentPartitions(s.percents, s.k) {
		if !s.feasible(partition) {
			continue
		}
		s.partition = partition
		s.optimistic[s.k] = new(big.Int)
		for i := s.k - 1; i >= 0; i-- {
			s.optimistic[i] = new(big.Int).Add(s.optimistic[i+1], s.buckets[partition[i]][0].score)
		}
		s.assign(0)
		if s.err != nil {
			return nil, s.err
		}
	}
	return s.best, nil
}

// feasible checks each percent has enough candidates for its multiplicity.
func (s *splitSearch) feasible(partition []int) bool {
	counts := make(map[int]int, len(partition))
	for _, p := range partition {
		counts[p]++
	}
	for p, n := range counts {
		if len(s.buckets[p]) < n {
			return false
		}
	}
	return true
}

func (s *splitSearch) assign(slot int) {
	if s.err != nil {
		return
	}
	if slot == s.k {
		s.score()
		return
	}
	percent := s.partition[slot]
	list := s.buckets[percent]
	from := 0
	// Slots sharing a percent take candidates in increasing order so each
	// set of routes is visited once.
	if slot > 0 && s.partition[slot-1] == percent {
		from = s.chosenIdx[slot-1] + 1
	}
	for i := from; i < len(list); i++ {
		c := list[i]
		if s.best != nil {
			s.upper.Add(s.partial, c.score)
			s.upper.Add(s.upper, s.optimistic[slot+1])
			if s.upper.Cmp(s.best.score) <= 0 {
				// Candidates are sorted, nothing further in this bucket can win.
				return
			}
		}
		if !s.compatible(c) {
			continue
		}
		s.push(slot, i, c)
		s.assign(slot + 1)
		s.pop(slot, c)
		if s.err != nil {
			return
		}
	}
}

// compatible rejects a route already in the plan or one sharing a pool with
// it, since two legs through one pool would both be quoted against the
// untouched reserves.
func (s *splitSearch) compatible(c *candidate) bool {
	if _, ok := s.usedRoutes[c.routeKey]; ok {
		return false
	}
	for _, p := range c.pools {
		if s.usedPools[p] > 0 {
			return false
		}
	}
	return true
}

func (s *splitSearch) push(slot, idx int, c *candidate) {
	s.chosen[slot] = c
	s.chosenIdx[slot] = idx
	s.usedRoutes[c.routeKey] = struct{}{}
	for _, p := range c.pools {
		s.usedPools[p]++
	}
	s.partial.Add(s.partial, c.score)
}

func (s *splitSearch) pop(slot int, c *candidate) {
	s.partial.Sub(s.partial, c.score)
	for _, p := range c.pools {
		s.usedPools[p]--
	}
	delete(s.usedRoutes, c.routeKey)
	s.chosen[slot] = nil
}

func (s *splitSearch) score() {
	if s.forceCross && !spansProtocols(s.chosen) {
		return
	}
	s.combinations++
	total := new(big.Int).Set(s.partial)
	l1 := domain.ZeroL1GasFees()
	if s.l1 != nil {
		rwqs := make([]*domain.RouteWithValidQuote, len(s.chosen))
		for i, c := range s.chosen {
			rwqs[i] = c.rwq
		}
		fees, err := s.l1(rwqs)
		if err != nil {
			s.err = err
			return
		}
		if fees.GasCostL1QuoteToken != nil {
			// More output lost or more input paid, either way the score drops.
			total.Sub(total, fees.GasCostL1QuoteToken)
		}
		l1 = fees
	}
	if s.best != nil && total.Cmp(s.best.score) <= 0 {
		return
	}
	chosen := make([]*candidate, len(s.chosen))
	copy(chosen, s.chosen)
	s.best = &combination{candidates: chosen, score: total, l1: l1}
}

func spansProtocols(chosen []*candidate) bool {
	for _, c := range chosen[1:] {
		if c.protocol != chosen[0].protocol {
			return true
		}
	}
	return false
}

// percentPartitions lists the non-increasing sequences of k values drawn
// from percents (sorted descending) that sum to 100.
func percentPartitions(percents []int, k int) [][]int {
	var out [][]int
	if k <= 0 || len(percents) == 0 {
		return out
	}
	smallest := percents[len(percents)-1]
	cur := make([]int, 0, k)

	var rec func(remaining, from, slots int)
	rec = func(remaining, from, slots int) {
		if slots == 0 {
			if remaining == 0 {
				p := make([]int, len(cur))
				copy(p, cur)
				out = append(out, p)
			}
			return
		}
		for i := from; i < len(percents); i++ {
			p := percents[i]
			if p > remaining {
				continue
			}
			// Remaining slots hold values no larger than p and no smaller
			// than the smallest bucket.
			if p*slots < remaining {
				break
			}
			if remaining-p < (slots-1)*smallest {
				continue
			}
			cur = append(cur, p)
			rec(remaining-p, i, slots-1)
			cur = cur[:len(cur)-1]
		}
	}
	rec(100, 0, k)
	return out
}

func buildSwapPlan(best *combination, amount *big.Int, tradeType domain.TradeType, cfg domain.AlphaRouterConfig, portionProvider domain.PortionProvider) *domain.SwapPlan {
	routes := make([]*domain.RouteWithValidQuote, len(best.candidates))
	for i, c := range best.candidates {
		cp := *c.rwq
		cp.Amount = new(big.Int).Set(c.rwq.Amount)
		routes[i] = &cp
	}
	sort.SliceStable(routes, func(i, j int) bool {
		if routes[i].Percent != routes[j].Percent {
			return routes[i].Percent > routes[j].Percent
		}
		return routes[i].Route.Key() < routes[j].Route.Key()
	})

	// Bucket amounts are rounded down; the dust goes to the largest leg so
	// the plan covers the requested amount exactly.
	sum := new(big.Int)
	for _, r := range routes {
		sum.Add(sum, r.Amount)
	}
	dust := new(big.Int).Sub(amount, sum)
	if dust.Sign() > 0 {
		routes[0].Amount.Add(routes[0].Amount, dust)
	} else {
		dust.SetInt64(0)
	}

	plan := &domain.SwapPlan{
		TradeType:                  tradeType,
		Amount:                     new(big.Int).Set(amount),
		QuoteToken:                 routes[0].QuoteToken,
		Routes:                     routes,
		Dust:                       dust,
		Quote:                      new(big.Int),
		QuoteGasAdjusted:           new(big.Int),
		EstimatedGasUsed:           new(big.Int),
		EstimatedGasUsedUSD:        new(big.Int),
		EstimatedGasUsedQuoteToken: new(big.Int),
	}
	for _, r := range routes {
		plan.Quote.Add(plan.Quote, r.RawQuote)
		plan.QuoteGasAdjusted.Add(plan.QuoteGasAdjusted, r.AdjustedQuote())
		addIfSet(plan.EstimatedGasUsed, r.GasEstimate)
		addIfSet(plan.EstimatedGasUsedUSD, r.GasCostInUSD)
		addIfSet(plan.EstimatedGasUsedQuoteToken, r.GasCostInToken)
		if r.GasCostInGasToken != nil {
			if plan.EstimatedGasUsedGasToken == nil {
				plan.EstimatedGasUsedGasToken = new(big.Int)
			}
			plan.EstimatedGasUsedGasToken.Add(plan.EstimatedGasUsedGasToken, r.GasCostInGasToken)
		}
	}

	if !best.l1.IsZero() {
		l1 := best.l1
		plan.L1GasFees = &l1
		if tradeType == domain.ExactInput {
			plan.QuoteGasAdjusted.Sub(plan.QuoteGasAdjusted, l1.GasCostL1QuoteToken)
		} else {
			plan.QuoteGasAdjusted.Add(plan.QuoteGasAdjusted, l1.GasCostL1QuoteToken)
		}
		addIfSet(plan.EstimatedGasUsed, l1.GasUsedL1OnL2)
		addIfSet(plan.EstimatedGasUsedUSD, l1.GasCostL1USD)
		addIfSet(plan.EstimatedGasUsedQuoteToken, l1.GasCostL1QuoteToken)
	}

	plan.PortionAmount = new(big.Int)
	plan.PortionQuoteAmount = new(big.Int)
	plan.QuoteGasAndPortionAdjusted = new(big.Int).Set(plan.QuoteGasAdjusted)
	if portionProvider != nil && cfg.Portion.Enabled() {
		b := portionProvider.Split(tradeType, plan.Amount, plan.Quote, plan.QuoteGasAdjusted, cfg.Portion)
		plan.PortionAmount = b.PortionAmount
		plan.PortionQuoteAmount = b.PortionQuoteAmount
		plan.QuoteGasAndPortionAdjusted = b.QuoteGasAndPortionAdjusted
	}
	return plan
}

func addIfSet(dst, v *big.Int) {
	if v != nil {
		dst.Add(dst, v)
	}
}
