package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/events"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"backend", cfg.Storage.Backend,
		"prefix", cfg.Storage.Prefix,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	st, err := store.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open artifact store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	exec := executor.New(st, cfg.Storage.Prefix, tokenizer.Terms, m)
	if err := exec.Reload(ctx); err != nil {
		// Serve anyway: queries answer 503 until a reload succeeds.
		slog.Warn("no index loaded at startup", "error", err)
	}

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	if cfg.Kafka.Enabled {
		var inv events.Invalidator
		if queryCache != nil {
			inv = queryCache
		}
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexPublished, events.HandleIndexPublished(exec, inv))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("index event consumer stopped", "error", err)
			}
		}()
		slog.Info("listening for index announcements", "topic", cfg.Kafka.Topics.IndexPublished)
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		snap := exec.Snapshot()
		if snap == nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no snapshot loaded"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d docs, %d terms", snap.N(), snap.NumTerms()),
		}
	})
	if cfg.Redis.Enabled {
		var pinger health.Pinger
		if redisClient != nil {
			pinger = redisClient
		}
		checker.Register("redis", health.PingCheck(pinger, health.StatusDegraded))
	}

	h := handler.New(exec, tokenizer.Terms, queryCache, cfg.Search.DefaultLimit, cfg.Search.MaxResults)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}
