package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"mt5-smc-bot/config"
	"mt5-smc-bot/internal/api"
	"mt5-smc-bot/internal/bot"
	"mt5-smc-bot/internal/broker"
	"mt5-smc-bot/internal/events"
	"mt5-smc-bot/internal/fusion"
	"mt5-smc-bot/internal/lifecycle"
	"mt5-smc-bot/internal/logging"
	"mt5-smc-bot/internal/market"
	"mt5-smc-bot/internal/poi"
	"mt5-smc-bot/internal/session"
)

func main() {
	// .env first so config env overrides see it.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(&logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
		Component:  "main",
	})
	logging.SetDefault(logger)
	logger.Info("Configuration loaded", "symbol", cfg.EngineConfig.Symbol, "dry_run", cfg.EngineConfig.DryRun)

	series := market.NewMemorySeries(cfg.EngineConfig.Symbol, market.SymbolInfo{
		Name:      cfg.EngineConfig.Symbol,
		Digits:    5,
		Point:     0.00001,
		TickValue: 1,
		LotStep:   0.01,
		MinLot:    0.01,
		MaxLot:    100,
	})

	var b broker.Broker
	var bridge *broker.BridgeClient
	if cfg.EngineConfig.DryRun {
		b = broker.NewMockBroker()
		logger.Info("Dry run: using mock broker")
	} else {
		bridge = broker.NewBridgeClient(cfg.BridgeSymbol(), series, logger)
		if err := bridge.Connect(); err != nil {
			logger.Fatal("Bridge connection failed", "error", err)
		}
		defer bridge.Stop()
		b = bridge
		requestHistory(bridge, cfg, logger)
	}

	var filter session.Filter = session.AlwaysOpen{}
	if cfg.EngineConfig.SessionFiltered {
		killZones, err := session.NewKillZones(cfg.SessionConfig)
		if err != nil {
			logger.Fatal("Session filter setup failed", "error", err)
		}
		filter = killZones
	}

	orderBlocks := poi.NewOrderBlockDetector(series, cfg.OrderBlockConfig)
	fvgs := poi.NewFVGDetector(series, cfg.FVGConfig)
	supplyDemand := poi.NewSupplyDemandDetector(series, cfg.SupplyDemandConfig)
	liquidity := poi.NewLiquidityDetector(series, cfg.LiquidityConfig)

	cascade := fusion.NewEngine(cfg.FusionConfig, fusion.Deps{
		Series:       series,
		Filter:       filter,
		StructureCfg: cfg.StructureConfig,
		WyckoffCfg:   cfg.WyckoffConfig,
		OrderBlocks:  orderBlocks,
		FVGs:         fvgs,
		SupplyDemand: supplyDemand,
		Liquidity:    liquidity,
	})

	bus := events.NewBus()
	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()
	manager := lifecycle.NewManager(cfg.LifecycleConfig, b, bus, zlog)

	signalTF := cfg.FusionConfig.LowerTimeframes[len(cfg.FusionConfig.LowerTimeframes)-1]
	engine := bot.New(bot.Config{
		Symbol:          cfg.EngineConfig.Symbol,
		SignalTimeframe: signalTF,
		PollInterval:    time.Duration(cfg.EngineConfig.PollIntervalSec) * time.Second,
	}, series, b, cascade, manager, bus, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.APIConfig.Enabled {
		inspector := poi.NewInspector(orderBlocks, fvgs, supplyDemand, liquidity)
		server := api.NewServer(engine, inspector, logger)
		go func() {
			if err := server.Start(ctx, cfg.APIConfig.Listen); err != nil && ctx.Err() == nil {
				logger.Error("Status API stopped", "error", err)
			}
		}()
	}

	if err := engine.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("Engine exited", "error", err)
	}
	logger.Info("Shutdown complete")
}

// requestHistory pre-loads every configured timeframe from the terminal.
func requestHistory(bridge *broker.BridgeClient, cfg *config.Config, logger *logging.Logger) {
	seen := make(map[market.Timeframe]bool)
	all := append(append(append([]market.Timeframe{},
		cfg.FusionConfig.HigherTimeframes...),
		cfg.FusionConfig.MediumTimeframes...),
		cfg.FusionConfig.LowerTimeframes...)
	for _, tf := range all {
		if seen[tf] {
			continue
		}
		seen[tf] = true
		if err := bridge.RequestBars(tf, cfg.FusionConfig.Lookback); err != nil {
			logger.Warn("Bar history request failed", "timeframe", string(tf), "error", err)
		}
	}
}
