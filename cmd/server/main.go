package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/groundbreak/groundbreak-server-go/internal/cards"
	"github.com/groundbreak/groundbreak-server-go/internal/config"
	"github.com/groundbreak/groundbreak-server-go/internal/movement"
	"github.com/groundbreak/groundbreak-server-go/internal/repository"
	"github.com/groundbreak/groundbreak-server-go/internal/server"
	"github.com/groundbreak/groundbreak-server-go/internal/session"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting Groundbreak server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	// Create context that listens for termination signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Persistence is optional; without it finished games and snapshots live
	// only in memory.
	var archive session.Archive
	if cfg.Database.Enabled {
		db, dbErr := repository.NewDB(ctx, cfg.Database, logger)
		if dbErr != nil {
			logger.Fatal("failed to connect to database", zap.Error(dbErr))
		}
		defer db.Close()

		stats := db.Stat()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)

		repo := repository.NewGameRepository(db, logger)
		if schemaErr := repo.EnsureSchema(ctx); schemaErr != nil {
			logger.Fatal("failed to prepare database schema", zap.Error(schemaErr))
		}
		archive = repo
	} else {
		logger.Info("database disabled; games will not be persisted")
	}

	// Load card catalog
	catalog := cards.DefaultCatalog()
	if cfg.Game.CardCatalog != "" {
		catalog, err = cards.Load(cfg.Game.CardCatalog)
		if err != nil {
			logger.Fatal("failed to load card catalog", zap.Error(err))
		}
	}
	logger.Info("card catalog loaded", zap.Int("definitions", catalog.Size()))

	// Load board
	board := movement.DefaultBoard()
	if cfg.Game.Board != "" {
		board, err = movement.LoadBoard(cfg.Game.Board)
		if err != nil {
			logger.Fatal("failed to load board", zap.Error(err))
		}
	}
	logger.Info("board loaded",
		zap.Int("spaces", board.Size()),
		zap.String("start", board.StartSpace()),
	)

	// Initialize session manager
	sessionMgr := session.NewManager(catalog, board, cfg.Game, archive, logger)
	logger.Info("session manager initialized",
		zap.Int("max_players", cfg.Game.MaxPlayers),
	)

	srv := server.NewServer(cfg.Server, sessionMgr, logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	logger.Info("Groundbreak server initialized",
		zap.String("version", version),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
	)

	// Wait for termination signal or a server failure
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
		if stopErr := <-errChan; stopErr != nil {
			logger.Error("server shutdown error", zap.Error(stopErr))
		}
	case srvErr := <-errChan:
		if srvErr != nil {
			logger.Error("server error", zap.Error(srvErr))
		}
		cancel()
	}

	// Graceful shutdown
	logger.Info("shutting down gracefully...")

	// Close all active game sessions
	sessionMgr.CloseAll()

	logger.Info("Groundbreak server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
