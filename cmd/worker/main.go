package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/id"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/logger"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/otel"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/core/config"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/core/db"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/queue"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/service"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/store"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if !cfg.Redis.Enabled() {
		slog.ErrorContext(ctx, "REDIS_URL is required for the grammar backfill worker")
		os.Exit(1)
	}

	slog.InfoContext(ctx, "grammar worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Redis.Group,
		"consumer_name", cfg.Redis.Consumer)

	// distinct node from the API server
	if err := id.Init(cfg.NodeID + 1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Redis.EventsStream)

	provider, err := service.NewProvider(cfg.LLM)
	if err != nil {
		slog.ErrorContext(ctx, "failed to configure llm provider", "error", err)
		os.Exit(1)
	}

	consumer, err := queue.NewRedisConsumer(ctx, redisClient, queue.ConsumerConfig{
		Stream:       cfg.Redis.EventsStream,
		Group:        cfg.Redis.Group,
		Consumer:     cfg.Redis.Consumer,
		DLQStream:    cfg.Redis.DLQStream,
		BatchSize:    1,
		Block:        5 * time.Second,
		RequeueDelay: 2 * time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	stores := store.NewStores(database.Conn())
	grammar := service.NewGrammarService(provider, stores.GrammarFeedback(), stores.Messages(), service.GrammarSettings{
		MaxTokens:   cfg.Grammar.MaxTokens,
		Temperature: cfg.Grammar.Temperature,
	})

	w := worker.New(consumer, grammar, worker.Config{
		MaxAttempts: cfg.Redis.MaxAttempts,
	})

	reclaimer := worker.NewReclaimer(consumer, w.Handle, worker.ReclaimerConfig{
		MinIdle:   5 * time.Minute,
		Interval:  time.Minute,
		BatchSize: 10,
	})

	errCh := make(chan error, 2)
	go func() {
		errCh <- w.Run(ctx)
	}()
	go func() {
		reclaimer.Run(ctx)
		errCh <- nil
	}()

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	reclaimer.Stop()
	w.Stop()

	for range 2 {
		select {
		case <-shutdownCtx.Done():
			slog.WarnContext(ctx, "shutdown timeout exceeded")
		case err := <-errCh:
			if err != nil {
				slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
			}
			continue
		}
		break
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

const banner = `
  __  __ _____ _   _    __        _____  ____  _  _______ ____
 |  \/  |_   _| | | |   \ \      / / _ \|  _ \| |/ / ____|  _ \
 | |\/| | | | | |_| |    \ \ /\ / / | | | |_) | ' /|  _| | |_) |
 | |  | | | | |  _  |     \ V  V /| |_| |  _ <| . \| |___|  _ <
 |_|  |_| |_| |_| |_|      \_/\_/  \___/|_| \_\_|\_\_____|_| \_\
`
