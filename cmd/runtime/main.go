package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hxuan190/split-router/internal/aggregator"
	"github.com/hxuan190/split-router/internal/common"
	"github.com/hxuan190/split-router/internal/config"
	"github.com/hxuan190/split-router/internal/http"
	"github.com/hxuan190/split-router/internal/services"
)

// @title Split Router API
// @version 1.0
// @description Gas-aware split routing across Uniswap V2, V3 and mixed routes.
// @description
// @description ## Features
// @description - **Split search**: an amount is divided into percent buckets and spread over up to maxSplits pool-disjoint routes
// @description - **Gas aware**: every leg is charged its execution gas, and rollups their L1 data fee, in the quote token
// @description - **Block pinned**: all pool state of a request comes from one block
// @description - **Replayable**: candidate quotes are persisted and can be re-optimized offline
// @description
// @description ## Usage
// @description - Amounts are human readable, e.g. `1.5` WETH
// @description - Tokens are symbols, listed addresses or the native currency name
// @BasePath /
// @schemes http https
// @tag.name quote
// @tag.description Split swap quotes
// @tag.name snapshots
// @tag.description Persisted candidate quotes

func main() {
	boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
	env, err := config.LoadEnv(".env")
	if err != nil {
		boot.Fatal().Err(err).Msg("failed to load env")
	}

	general := &config.GeneralConfig{}
	if err := general.Load(env); err != nil {
		boot.Fatal().Err(err).Str("config", general.Key()).Msg("invalid config")
	}
	logger := services.NewBaseLogger(os.Stdout, general.LogLevel, general.Env == config.DevEnv)
	common.TuneRuntime(logger)

	storage := &config.StorageConfig{}
	if err := storage.Load(env); err != nil {
		logger.Fatal().Err(err).Str("config", storage.Key()).Msg("invalid config")
	}
	routerConf, err := loadRouterConfig(general.RouterConfig, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load router config")
	}

	aggregatorSvc, err := aggregator.NewService(aggregator.Options{Router: routerConf, Storage: storage}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start aggregator")
	}

	httpSvc, err := http.NewHTTPService(general, aggregatorSvc, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create http service")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSvc.Start()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("shutting down services...")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSvc.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}
	if err := aggregatorSvc.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close storage")
	}
	logger.Info().Msg("shutdown complete")
}

// loadRouterConfig falls back to the defaults when path does not exist. A
// file that exists but does not parse is an error.
func loadRouterConfig(path string, logger zerolog.Logger) (*config.RouterConfig, error) {
	routerConf, err := config.LoadRouterConfig(path)
	if errors.Is(err, common.ErrInvalidConfig) && !fileExists(path) {
		logger.Warn().Str("path", path).Msg("router config not found, using defaults")
		return config.DefaultRouterConfig(), nil
	}
	return routerConf, err
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
