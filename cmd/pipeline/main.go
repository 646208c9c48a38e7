package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/pulsedash/pulse/internal/analytics"
	"github.com/pulsedash/pulse/internal/cache"
	"github.com/pulsedash/pulse/internal/db"
	"github.com/pulsedash/pulse/internal/etl"
	"github.com/pulsedash/pulse/internal/scheduler"
	"github.com/pulsedash/pulse/internal/twitter"
	"github.com/pulsedash/pulse/internal/youtube"
	"github.com/pulsedash/pulse/pkg/config"
	"github.com/pulsedash/pulse/pkg/logging"
	"github.com/pulsedash/pulse/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting Pulse Pipeline")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	if !cfg.Twitter.Enabled {
		logger.Fatal("The pipeline requires the twitter provider; set PULSE_TWITTER_ENABLED=true")
	}

	// Initialize database
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(); err != nil {
			logger.Fatal("Failed to migrate schema", zap.Error(err))
		}
		logger.Info("Schema migration complete")
	}

	// Initialize Redis cache (optional)
	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisCache.Close()

	// Provider clients
	twitterClient, err := twitter.New(&cfg.Twitter)
	if err != nil {
		logger.Fatal("Failed to initialize Twitter client", zap.Error(err))
	}

	// Repositories and engines
	repo := db.NewRepository(database.DB)
	identityRepo := db.NewIdentityRepository(repo)
	rawTweetRepo := db.NewRawTweetRepository(repo)
	postRepo := db.NewPostRepository(repo)
	etlEngine := etl.NewEngine(rawTweetRepo, postRepo)

	// Snapshot refresh is optional: only wired when youtube is enabled
	var refresher scheduler.SnapshotRefresher
	if cfg.YouTube.Enabled {
		youtubeClient, err := youtube.New(&cfg.YouTube, redisCache)
		if err != nil {
			logger.Fatal("Failed to initialize YouTube client", zap.Error(err))
		}
		refresher = analytics.NewService(youtubeClient, db.NewSnapshotRepository(repo))
	} else {
		logger.Info("YouTube provider disabled, skipping snapshot refresh")
	}

	sched := scheduler.New(&cfg.Scheduler, identityRepo, twitterClient, rawTweetRepo, etlEngine, refresher)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sched.Run(ctx)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down pipeline...")
	cancel()
	<-done
	logger.Info("Pipeline exited")
}
