package aggregator

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hxuan190/split-router/internal/adapters/persistence"
	"github.com/hxuan190/split-router/internal/common"
	"github.com/hxuan190/split-router/internal/config"
	"github.com/hxuan190/split-router/internal/domain"
	"github.com/hxuan190/split-router/internal/services"
	"github.com/hxuan190/split-router/internal/services/gas"
	"github.com/hxuan190/split-router/internal/services/market"
	"github.com/hxuan190/split-router/internal/services/portion"
	"github.com/hxuan190/split-router/internal/services/quoter"
	"github.com/hxuan190/split-router/internal/services/router"
)

const AGGREGATOR_SERVICE = "aggregator-service"

var ErrSnapshotsDisabled = errors.New("quote snapshots are disabled")

type Options struct {
	Router *config.RouterConfig
	// Nil or disabled storage skips snapshot persistence.
	Storage *config.StorageConfig
}

// Service wires token resolution, pool providers, quoters, gas and the
// split router into the quote API used by the HTTP server and the CLI.
type Service struct {
	logger    *services.ServiceLogger
	resolver  *market.StaticTokenResolver
	providers []*market.SnapshotPoolProvider
	router    *router.AlphaRouter
	storage   *persistence.Storage
	defaults  domain.AlphaRouterConfig
}

func NewService(opts Options, base zerolog.Logger) (*Service, error) {
	svc := &Service{}
	svc.logger = services.NewServiceLogger(base, svc)

	rc := opts.Router
	if rc == nil {
		rc = config.DefaultRouterConfig()
	}
	defaults, err := rc.ToAlphaRouterConfig()
	if err != nil {
		return nil, err
	}
	svc.defaults = defaults

	tokens, err := rc.TokenList()
	if err != nil {
		return nil, err
	}
	svc.resolver = market.NewStaticTokenResolver(tokens)

	providerOpts, err := rc.ProviderOptions()
	if err != nil {
		return nil, err
	}
	registry := market.NewProtocolRegistry()
	for _, protocol := range []domain.Protocol{domain.ProtocolV2, domain.ProtocolV3} {
		p := market.NewSnapshotPoolProvider(protocol, nil, providerOpts, base)
		svc.providers = append(svc.providers, p)
		registry.RegisterProvider(p)
	}
	registry.RegisterQuoter(quoter.NewV2Quoter(base))
	registry.RegisterQuoter(quoter.NewV3Quoter(base))
	registry.RegisterQuoter(quoter.NewMixedQuoter(base))

	gwei, err := rc.GasPriceGwei()
	if err != nil {
		return nil, err
	}
	l1, err := rc.L1Params()
	if err != nil {
		return nil, err
	}
	svc.router = router.NewAlphaRouter(router.AlphaRouterDeps{
		Registry:   registry,
		GasFactory: gas.NewFactory(gas.NewStaticGasPriceProvider(gwei), l1, base),
		Portion:    portion.NewProvider(),
	}, base)

	if opts.Storage != nil && opts.Storage.SnapshotsEnabled {
		svc.storage, err = persistence.NewStorage(opts.Storage.DBPath, base)
		if err != nil {
			return nil, err
		}
		stored, err := svc.storage.LoadPoolSets()
		if err != nil {
			_ = svc.Close()
			return nil, err
		}
		for _, set := range stored {
			svc.install(set)
		}
	}

	for _, path := range rc.Pools.Snapshots {
		set, err := persistence.LoadPoolSnapshotFile(path)
		if err != nil {
			_ = svc.Close()
			return nil, err
		}
		if err := svc.InstallPoolSet(set); err != nil {
			_ = svc.Close()
			return nil, err
		}
	}
	svc.logger.Info().Str("registry", registry.String()).Bool("snapshots", svc.storage != nil).Msg("aggregator ready")
	return svc, nil
}

func (svc *Service) ID() string {
	return AGGREGATOR_SERVICE
}

func (svc *Service) Close() error {
	if svc.storage == nil {
		return nil
	}
	return svc.storage.Close()
}

// Defaults returns the routing config requests start from.
func (svc *Service) Defaults() domain.AlphaRouterConfig {
	return svc.defaults
}

func (svc *Service) Router() *router.AlphaRouter {
	return svc.router
}

func (svc *Service) ResolveToken(chainID domain.ChainID, ref string) (domain.Token, error) {
	return svc.resolver.Resolve(chainID, ref)
}

// InstallPoolSet serves set from every provider and persists it when
// storage is enabled. Requests pinned to the previous block become stale.
func (svc *Service) InstallPoolSet(set *persistence.PoolSet) error {
	svc.install(set)
	if svc.storage == nil {
		return nil
	}
	return svc.storage.SavePoolSet(persistence.NewPoolSnapshotFile(set.ChainID, set.BlockNumber, set.Tokens, set.Pools))
}

func (svc *Service) install(set *persistence.PoolSet) {
	svc.resolver.Add(set.Tokens...)
	for _, pool := range set.Pools {
		svc.resolver.Add(pool.Token0, pool.Token1)
	}
	for _, p := range svc.providers {
		p.Update(market.PoolSet{ChainID: set.ChainID, BlockNumber: set.BlockNumber, Pools: set.Pools})
	}
}

type QuoteRequest struct {
	ChainID   domain.ChainID
	TokenIn   string
	TokenOut  string
	Amount    decimal.Decimal
	TradeType domain.TradeType
	Config    domain.AlphaRouterConfig
}

type Quote struct {
	ID     string
	Result *router.RouteResult
	// Empty when the candidate set was not persisted.
	SnapshotID string
}

// Quote resolves both tokens, scales the human amount by the decimals of
// the specified side and routes it.
func (svc *Service) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	tokenIn, err := svc.resolver.Resolve(req.ChainID, req.TokenIn)
	if err != nil {
		return nil, err
	}
	tokenOut, err := svc.resolver.Resolve(req.ChainID, req.TokenOut)
	if err != nil {
		return nil, err
	}
	specified := tokenIn
	if req.TradeType == domain.ExactOutput {
		specified = tokenOut
	}
	amount, err := ToRawAmount(req.Amount, specified)
	if err != nil {
		return nil, err
	}

	id := newID()
	result, err := svc.router.Route(ctx, amount, tokenIn, tokenOut, req.TradeType, req.Config)
	if err != nil {
		return nil, err
	}
	quote := &Quote{ID: id, Result: result}
	if svc.storage != nil && len(result.Candidates) > 0 {
		snap := persistence.NewQuoteSnapshot(id, req.ChainID, req.TradeType, result.Amount, result.Percents, result.BlockNumber, result.Candidates)
		snap.CreatedAt = time.Now().Unix()
		if err := svc.storage.SaveSnapshot(snap); err != nil {
			svc.logger.Error().Err(err).Str("id", id).Msg("failed to persist quote snapshot")
		} else {
			quote.SnapshotID = id
		}
	}
	return quote, nil
}

func (svc *Service) Snapshot(id string) (*persistence.QuoteSnapshot, error) {
	if svc.storage == nil {
		return nil, ErrSnapshotsDisabled
	}
	return svc.storage.LoadSnapshot(id)
}

func (svc *Service) ListSnapshots(limit int) ([]string, error) {
	if svc.storage == nil {
		return nil, ErrSnapshotsDisabled
	}
	return svc.storage.ListSnapshots(limit)
}

// Replay reruns the split search over a snapshot's candidates. Routing
// parameters come from cfg; the amount and percents from the snapshot.
func (svc *Service) Replay(ctx context.Context, snap *persistence.QuoteSnapshot, cfg domain.AlphaRouterConfig) (*router.RouteResult, error) {
	restored, err := snap.Restore()
	if err != nil {
		return nil, err
	}
	return svc.router.Replay(ctx, restored.ChainID, restored.BlockNumber, restored.Amount, restored.Percents, restored.RoutesWithValidQuotes, restored.TradeType, cfg)
}

// ToRawAmount scales a human amount to token units. More fractional digits
// than the token carries is an error.
func ToRawAmount(amount decimal.Decimal, token domain.Token) (*big.Int, error) {
	if !amount.IsPositive() {
		return nil, common.InvalidConfigf("amount %s must be positive", amount)
	}
	scaled := amount.Shift(int32(token.Decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, common.InvalidConfigf("amount %s has more than %d decimals for %s", amount, token.Decimals, token.Symbol)
	}
	return scaled.BigInt(), nil
}

// FormatAmount renders raw token units as a decimal string.
func FormatAmount(raw *big.Int, token domain.Token) string {
	if raw == nil {
		return "0"
	}
	return decimal.NewFromBigInt(raw, -int32(token.Decimals)).String()
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
