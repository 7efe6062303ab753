// Package main is the entry point for the neurotrader capital allocation bot.
// It wires the exchange and oracle clients, the portfolio ledger, the risk
// engine and the scheduler, then serves the read-only API until shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/apetrov/neurotrader/internal/clients/bybit"
	"github.com/apetrov/neurotrader/internal/clients/openai"
	"github.com/apetrov/neurotrader/internal/config"
	"github.com/apetrov/neurotrader/internal/database"
	"github.com/apetrov/neurotrader/internal/modules/portfolio"
	"github.com/apetrov/neurotrader/internal/modules/rebalancing"
	"github.com/apetrov/neurotrader/internal/modules/risk"
	"github.com/apetrov/neurotrader/internal/modules/snapshots"
	"github.com/apetrov/neurotrader/internal/modules/strategy"
	"github.com/apetrov/neurotrader/internal/modules/trading"
	"github.com/apetrov/neurotrader/internal/notifier"
	"github.com/apetrov/neurotrader/internal/reliability"
	"github.com/apetrov/neurotrader/internal/scheduler"
	"github.com/apetrov/neurotrader/internal/server"
	"github.com/apetrov/neurotrader/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.Pretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("env", cfg.Env).Msg("Starting neurotrader")

	// Databases: the position/decision ledger on the durability profile,
	// market snapshots on the speed profile.
	portfolioDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "portfolio.db"),
		Profile: database.ProfileLedger,
		Name:    "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}
	defer portfolioDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	if err := portfolioDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate portfolio database")
	}
	if err := cacheDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate cache database")
	}

	// Repositories
	positionRepo := portfolio.NewPositionRepository(portfolioDB.Conn(), log)
	tradeRepo := trading.NewTradeRepository(portfolioDB.Conn(), log)
	snapshotRepo := snapshots.NewRepository(cacheDB.Conn(), log)

	// A fresh ledger starts as pure stable-asset capital.
	if err := seedLedger(positionRepo, cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed ledger")
	}

	// Clients
	exchange := bybit.NewClient(bybit.Config{
		APIKey:    cfg.BybitAPIKey,
		APISecret: cfg.BybitAPISecret,
		Testnet:   cfg.BybitTestnet,
	}, log)
	oracle := openai.NewClient(openai.Config{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.OpenAIModel,
		Temperature: cfg.OpenAITemperature,
		MaxTokens:   cfg.OpenAIMaxTokens,
	}, log)
	telegram := notifier.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, log)

	// Risk and portfolio services
	riskEngine := risk.NewEngine(positionRepo, risk.Config{
		InitialBalance:      cfg.InitialBalance,
		EmergencyThreshold:  cfg.EmergencyThreshold,
		PositionSizePercent: cfg.PositionSizePercent,
		MaxAssetPercent:     cfg.MaxAssetPercent,
	}, log)
	portfolioService := portfolio.NewService(positionRepo, riskEngine, cfg.InitialBalance, cfg.MaxAssetPercent, log)

	// Trading pipeline
	decisionMaker := trading.NewDecisionMaker(riskEngine, cfg.MinConfidence, log)
	executor := trading.NewOrderExecutor(exchange, positionRepo, tradeRepo, cfg.StableSymbol, log)
	rebalancer := rebalancing.NewService(positionRepo, executor, cfg.MaxAssetPercent, log)
	emergency := risk.NewEmergencyProtocol(riskEngine, rebalancer, telegram, cfg.StableSymbol, log)
	analyzer := strategy.NewAnalyzer(log)
	strategyService := strategy.NewService(
		oracle, exchange, analyzer, portfolioService, decisionMaker, riskEngine, telegram, log)

	// Scheduler
	sched := scheduler.New(log)

	tradeCycle := scheduler.NewTradeCycleJob(scheduler.TradeCycleDeps{
		Symbols:    exchange,
		Market:     exchange,
		Emergency:  emergency,
		Risk:       riskEngine,
		Reporter:   portfolioService,
		Decider:    strategyService,
		Executor:   executor,
		Rebalancer: rebalancer,
		Snapshots:  snapshotRepo,
	}, scheduler.TradeCycleConfig{
		TopPairs:         cfg.TopPairs,
		StableSymbol:     cfg.StableSymbol,
		RebalanceWeekday: cfg.RebalanceWeekday,
		RebalanceHour:    cfg.RebalanceHour,
	}, log)
	if err := sched.AddJob(cfg.TradeCycleSpec, tradeCycle); err != nil {
		log.Fatal().Err(err).Msg("Failed to register trade cycle")
	}

	snapshotTTL := time.Duration(cfg.SnapshotTTLHours) * time.Hour
	pruneJob := scheduler.NewSnapshotPruneJob(snapshotRepo, snapshotTTL, log)
	if err := sched.AddJob("@daily", pruneJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register snapshot prune job")
	}

	if cfg.BackupEnabled {
		r2, err := reliability.NewR2Client(context.Background(), reliability.R2Config{
			Endpoint:        cfg.BackupEndpoint,
			Bucket:          cfg.BackupBucket,
			AccessKeyID:     cfg.BackupAccessKey,
			SecretAccessKey: cfg.BackupSecretKey,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize backup storage")
		}
		backups := reliability.NewBackupService(cfg.DataDir, r2, cfg.BackupKeep, log)
		if err := sched.AddJob(cfg.BackupSpec, scheduler.NewBackupJob(backups, log)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
	}

	// HTTP API
	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		Positions: positionRepo,
		Snapshots: snapshotRepo,
		Risk:      riskEngine,
		Trades:    tradeRepo,
		Databases: []server.HealthChecker{portfolioDB, cacheDB},
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sched.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("Shutdown signal received")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Goodbye")
}

// seedLedger books the initial stable balance when the ledger is empty.
func seedLedger(positions *portfolio.PositionRepository, cfg *config.Config) error {
	held, err := positions.GetAll()
	if err != nil {
		return err
	}
	if len(held) > 0 {
		return nil
	}
	return positions.ApplyDelta(cfg.StableSymbol, cfg.InitialBalance, 1)
}
