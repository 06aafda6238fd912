package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/hxuan190/split-router/internal/adapters/persistence"
	"github.com/hxuan190/split-router/internal/aggregator"
	"github.com/hxuan190/split-router/internal/common"
	"github.com/hxuan190/split-router/internal/config"
	"github.com/hxuan190/split-router/internal/domain"
	"github.com/hxuan190/split-router/internal/services"
	"github.com/hxuan190/split-router/internal/services/router"
)

type quoteFlags struct {
	tokenIn    string
	tokenOut   string
	amount     string
	exactIn    bool
	exactOut   bool
	protocols  string
	chain      string
	configPath string
	pools      []string
	dbPath     string
	snapshot   string
	logLevel   string
	timeout    time.Duration

	forceCrossProtocol             bool
	forceMixedRoutes               bool
	debugRouting                   bool
	enableFeeOnTransferFeeFetching bool
	requestBlockNumber             uint64
	gasToken                       string

	topN                            int
	topNTokenInOut                  int
	topNSecondHop                   int
	topNSecondHopForTokenAddressRaw string
	topNWithEachBaseToken           int
	topNWithBaseToken               int
	topNDirectSwaps                 int
	maxSwapsPerPath                 int
	minSplits                       int
	maxSplits                       int
	distributionPercent             int
}

func newQuoteCommand() *cobra.Command {
	f := &quoteFlags{}
	cmd := &cobra.Command{
		Use:           "quote",
		Short:         "Find the best gas-adjusted split route for a swap",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runQuote(cmd, f)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
			}
			return err
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.tokenIn, "tokenIn", "i", "", "input token symbol, address or native name")
	fl.StringVarP(&f.tokenOut, "tokenOut", "o", "", "output token symbol, address or native name")
	fl.StringVarP(&f.amount, "amount", "a", "", "human readable amount of the specified side")
	fl.BoolVar(&f.exactIn, "exactIn", false, "amount is the input")
	fl.BoolVar(&f.exactOut, "exactOut", false, "amount is the output")
	fl.StringVar(&f.protocols, "protocols", "", "comma separated protocols: v2,v3,mixed")
	fl.StringVar(&f.chain, "chainId", "1", "chain id or name")
	fl.StringVar(&f.configPath, "config", "", "router config TOML")
	fl.StringArrayVar(&f.pools, "pools", nil, "pool snapshot JSON file, repeatable")
	fl.StringVar(&f.dbPath, "db", "", "persist quote snapshots to this bolt database")
	fl.StringVar(&f.snapshot, "snapshot", "", "replay a quote snapshot JSON file instead of quoting")
	fl.StringVar(&f.logLevel, "logLevel", "warn", "log level")
	fl.DurationVar(&f.timeout, "timeout", 30*time.Second, "quote deadline")

	fl.BoolVar(&f.forceCrossProtocol, "forceCrossProtocol", false, "require legs on at least two protocols")
	fl.BoolVar(&f.forceMixedRoutes, "forceMixedRoutes", false, "enable mixed V2/V3 routes")
	fl.BoolVar(&f.debugRouting, "debugRouting", true, "log every plan leg")
	fl.BoolVar(&f.enableFeeOnTransferFeeFetching, "enableFeeOnTransferFeeFetching", false, "apply listed fee-on-transfer taxes")
	fl.Uint64Var(&f.requestBlockNumber, "requestBlockNumber", 0, "pin pool state to this block")
	fl.StringVar(&f.gasToken, "gasToken", "", "also report gas in this token")

	fl.IntVar(&f.topN, "topN", 0, "top pools by liquidity")
	fl.IntVar(&f.topNTokenInOut, "topNTokenInOut", 0, "top pools touching tokenIn or tokenOut")
	fl.IntVar(&f.topNSecondHop, "topNSecondHop", 0, "top second hop pools")
	fl.StringVar(&f.topNSecondHopForTokenAddressRaw, "topNSecondHopForTokenAddressRaw", "", "per token second hop limits: addr|N,addr|N")
	fl.IntVar(&f.topNWithEachBaseToken, "topNWithEachBaseToken", 0, "top pools with each base token")
	fl.IntVar(&f.topNWithBaseToken, "topNWithBaseToken", 0, "top pools with any base token")
	fl.IntVar(&f.topNDirectSwaps, "topNDirectSwaps", 0, "top direct pools")
	fl.IntVar(&f.maxSwapsPerPath, "maxSwapsPerPath", 0, "maximum hops per route")
	fl.IntVar(&f.minSplits, "minSplits", 0, "minimum number of legs")
	fl.IntVar(&f.maxSplits, "maxSplits", 0, "maximum number of legs")
	fl.IntVar(&f.distributionPercent, "distributionPercent", 0, "split granularity, must divide 100")
	return cmd
}

func runQuote(cmd *cobra.Command, f *quoteFlags) error {
	logger := services.NewBaseLogger(cmd.ErrOrStderr(), f.logLevel, true)

	rc, err := config.LoadRouterConfig(f.configPath)
	if err != nil {
		return err
	}
	rc.Pools.Snapshots = append(rc.Pools.Snapshots, f.pools...)

	var storage *config.StorageConfig
	if f.dbPath != "" {
		storage = &config.StorageConfig{DBPath: f.dbPath, SnapshotsEnabled: true}
	}
	svc, err := aggregator.NewService(aggregator.Options{Router: rc, Storage: storage}, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	chainID, err := config.ParseChain(f.chain)
	if err != nil {
		return err
	}
	cfg, err := applyFlags(cmd, f, svc, chainID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
	defer cancel()

	if f.snapshot != "" {
		data, err := os.ReadFile(f.snapshot)
		if err != nil {
			return err
		}
		snap, err := persistence.Decode(data)
		if err != nil {
			return err
		}
		start := time.Now()
		result, err := svc.Replay(ctx, snap, cfg)
		if err != nil {
			return err
		}
		logger.Info().Dur("elapsed", time.Since(start)).Int("candidates", len(result.Candidates)).Msg("replayed snapshot")
		return render(cmd, &aggregator.Quote{ID: snap.ID, Result: result})
	}

	tradeType, err := tradeTypeOf(f)
	if err != nil {
		return err
	}
	if f.tokenIn == "" || f.tokenOut == "" || f.amount == "" {
		return common.InvalidConfigf("tokenIn, tokenOut and amount are required")
	}
	amount, err := decimal.NewFromString(f.amount)
	if err != nil {
		return common.InvalidConfigf("amount %q", f.amount)
	}

	start := time.Now()
	q, err := svc.Quote(ctx, aggregator.QuoteRequest{
		ChainID:   chainID,
		TokenIn:   f.tokenIn,
		TokenOut:  f.tokenOut,
		Amount:    amount,
		TradeType: tradeType,
		Config:    cfg,
	})
	if err != nil {
		return err
	}
	logger.Info().Dur("elapsed", time.Since(start)).Msg("quoted")
	return render(cmd, q)
}

func tradeTypeOf(f *quoteFlags) (domain.TradeType, error) {
	if f.exactIn && f.exactOut {
		return 0, common.InvalidConfigf("must set only one of exactIn and exactOut")
	}
	if !f.exactIn && !f.exactOut {
		return 0, common.InvalidConfigf("must set either exactIn or exactOut")
	}
	if f.exactOut {
		return domain.ExactOutput, nil
	}
	return domain.ExactInput, nil
}

// applyFlags overlays the flags the user set onto the config defaults.
// Pool selection flags apply to V2 and V3 alike.
func applyFlags(cmd *cobra.Command, f *quoteFlags, svc *aggregator.Service, chainID domain.ChainID) (domain.AlphaRouterConfig, error) {
	cfg := svc.Defaults()
	changed := cmd.Flags().Changed

	selection := func(apply func(s *domain.ProtocolPoolSelection)) {
		apply(&cfg.V2PoolSelection)
		apply(&cfg.V3PoolSelection)
	}
	if changed("topN") {
		selection(func(s *domain.ProtocolPoolSelection) { s.TopN = f.topN })
	}
	if changed("topNTokenInOut") {
		selection(func(s *domain.ProtocolPoolSelection) { s.TopNTokenInOut = f.topNTokenInOut })
	}
	if changed("topNSecondHop") {
		selection(func(s *domain.ProtocolPoolSelection) { s.TopNSecondHop = f.topNSecondHop })
	}
	if changed("topNWithEachBaseToken") {
		selection(func(s *domain.ProtocolPoolSelection) { s.TopNWithEachBaseToken = f.topNWithEachBaseToken })
	}
	if changed("topNWithBaseToken") {
		selection(func(s *domain.ProtocolPoolSelection) { s.TopNWithBaseToken = f.topNWithBaseToken })
	}
	if changed("topNDirectSwaps") {
		selection(func(s *domain.ProtocolPoolSelection) { s.TopNDirectSwaps = f.topNDirectSwaps })
	}
	if changed("topNSecondHopForTokenAddressRaw") {
		overrides, err := config.ParseSecondHopOverrides(f.topNSecondHopForTokenAddressRaw)
		if err != nil {
			return cfg, err
		}
		selection(func(s *domain.ProtocolPoolSelection) { s.TopNSecondHopForTokenAddress = overrides })
	}
	if changed("maxSwapsPerPath") {
		cfg.MaxSwapsPerPath = f.maxSwapsPerPath
	}
	if changed("minSplits") {
		cfg.MinSplits = f.minSplits
	}
	if changed("maxSplits") {
		cfg.MaxSplits = f.maxSplits
	}
	if changed("distributionPercent") {
		cfg.DistributionPercent = f.distributionPercent
	}
	if changed("protocols") {
		protocols, err := config.ParseProtocols(f.protocols)
		if err != nil {
			return cfg, err
		}
		cfg.Protocols = protocols
	}
	if changed("forceCrossProtocol") {
		cfg.ForceCrossProtocol = f.forceCrossProtocol
	}
	if changed("forceMixedRoutes") {
		cfg.ForceMixedRoutes = f.forceMixedRoutes
	}
	cfg.DebugRouting = f.debugRouting
	cfg.EnableFeeOnTransferFeeFetching = f.enableFeeOnTransferFeeFetching
	cfg.BlockNumber = f.requestBlockNumber
	if f.gasToken != "" {
		gasToken, err := svc.ResolveToken(chainID, f.gasToken)
		if err != nil {
			return cfg, err
		}
		cfg.GasToken = &gasToken
	}
	return cfg, cfg.Validate()
}

func render(cmd *cobra.Command, q *aggregator.Quote) error {
	out := cmd.OutOrStdout()
	res := q.Result
	if !res.RouteFound {
		fmt.Fprintln(out, "No route found")
		return nil
	}
	plan := res.Plan
	quoteToken := plan.QuoteToken
	side := "Out"
	if res.TradeType == domain.ExactOutput {
		side = "In"
	}

	fmt.Fprintln(out, "Best Route:")
	for _, leg := range plan.Routes {
		fmt.Fprintf(out, "[%s] %s\n", leg.Route.Protocol, leg)
	}
	fmt.Fprintf(out, "\tRaw Quote %s: %s %s\n", side, aggregator.FormatAmount(plan.Quote, quoteToken), quoteToken.Symbol)
	fmt.Fprintf(out, "\tGas Adjusted Quote %s: %s %s\n", side, aggregator.FormatAmount(plan.QuoteGasAdjusted, quoteToken), quoteToken.Symbol)
	fmt.Fprintf(out, "\tGas Used Quote Token: %s %s\n", aggregator.FormatAmount(plan.EstimatedGasUsedQuoteToken, quoteToken), quoteToken.Symbol)
	if info, ok := domain.ChainByID(quoteToken.ChainID); ok {
		fmt.Fprintf(out, "\tGas Used USD: %s\n", aggregator.FormatAmount(plan.EstimatedGasUsedUSD, info.USDStable))
	}
	if plan.EstimatedGasUsed != nil {
		fmt.Fprintf(out, "\tEstimated Gas Used: %s\n", plan.EstimatedGasUsed)
	}
	if plan.L1GasFees != nil && !plan.L1GasFees.IsZero() {
		fmt.Fprintf(out, "\tL1 Gas Cost: %s %s\n", aggregator.FormatAmount(plan.L1GasFees.GasCostL1QuoteToken, quoteToken), quoteToken.Symbol)
	}
	if plan.PortionAmount != nil && plan.PortionAmount.Sign() > 0 {
		fmt.Fprintf(out, "\tPortion: %s %s\n", aggregator.FormatAmount(plan.PortionAmount, res.TokenOut), res.TokenOut.Symbol)
		fmt.Fprintf(out, "\tQuote Gas And Portion Adjusted: %s %s\n", aggregator.FormatAmount(plan.QuoteGasAndPortionAdjusted, quoteToken), quoteToken.Symbol)
	}
	fmt.Fprintf(out, "\tPrice Impact: %.2f%% (%s)\n", float64(plan.PriceImpactBps)/100, router.GetPriceImpactSeverity(plan.PriceImpactBps))
	fmt.Fprintf(out, "\tBlock Number: %d\n", plan.BlockNumber)
	if res.QuotingIncomplete {
		fmt.Fprintln(out, "\tQuoting incomplete: plan built from partial quotes")
	}
	if q.SnapshotID != "" {
		fmt.Fprintf(out, "\tSnapshot: %s\n", q.SnapshotID)
	}
	return nil
}
