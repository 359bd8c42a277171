package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/id"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/logger"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/otel"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/core/config"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/core/db"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/http/middleware"
	httprouter "github.com/Hyun-Jun-Lee/MoreThanHuman/internal/http/router"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/queue"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/search"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/service"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(cfg.NodeID); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	provider, err := service.NewProvider(cfg.LLM)
	if err != nil {
		slog.ErrorContext(ctx, "failed to configure llm provider", "error", err, "provider", cfg.LLM.Provider)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "llm provider ready", "provider", provider.Name())

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to apply schema", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "database connected")

	publisher := queue.NewNoopPublisher()
	if cfg.Redis.Enabled() {
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
		slog.InfoContext(ctx, "redis connected", "stream", cfg.Redis.EventsStream)

		publisher = queue.NewRedisPublisher(redisClient, cfg.Redis.EventsStream, slog.Default())
	}
	defer publisher.Close()

	var searcher search.Searcher
	if cfg.Search.Enabled() {
		searcher = search.NewTavilyClient(search.Config{
			APIKey:     cfg.Search.TavilyAPIKey,
			BaseURL:    cfg.Search.BaseURL,
			MaxResults: cfg.Search.MaxResults,
			Timeout:    cfg.Search.Timeout,
		})
	} else {
		slog.InfoContext(ctx, "search disabled (no TAVILY_API_KEY)")
	}

	services := service.NewServices(
		store.NewStores(database.Conn()),
		service.NewTxRunner(database),
		provider,
		searcher,
		publisher,
		cfg,
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// a turn waits on two model calls and the feedback stream holds
		// the connection for up to FEEDBACK_MAX_WAIT
		WriteTimeout: cfg.LLM.Timeout + cfg.FeedbackStream.MaxWait + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORSOrigins))
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services)

	return router
}

const banner = `
  __  __ _____ _   _    ____  _____ ______     _______ ____
 |  \/  |_   _| | | |  / ___|| ____|  _ \ \   / / ____|  _ \
 | |\/| | | | | |_| |  \___ \|  _| | |_) \ \ / /|  _| | |_) |
 | |  | | | | |  _  |   ___) | |___|  _ < \ V / | |___|  _ <
 |_|  |_| |_| |_| |_|  |____/|_____|_| \_\ \_/  |_____|_| \_\
`
