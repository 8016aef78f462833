package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/bbs/internal/config"
	dompost "github.com/kailas-cloud/bbs/internal/domain/post"
	"github.com/kailas-cloud/bbs/internal/index"
	logpkg "github.com/kailas-cloud/bbs/internal/logger"
	"github.com/kailas-cloud/bbs/internal/metrics"
	"github.com/kailas-cloud/bbs/internal/ratelimit"
	algorithmrepo "github.com/kailas-cloud/bbs/internal/repository/algorithm"
	identityrepo "github.com/kailas-cloud/bbs/internal/repository/identity"
	likerepo "github.com/kailas-cloud/bbs/internal/repository/like"
	notificationrepo "github.com/kailas-cloud/bbs/internal/repository/notification"
	postrepo "github.com/kailas-cloud/bbs/internal/repository/post"
	"github.com/kailas-cloud/bbs/internal/repository/sqlite"
	chiTransport "github.com/kailas-cloud/bbs/internal/transport/chi"
	healthuc "github.com/kailas-cloud/bbs/internal/usecase/health"
	notifuc "github.com/kailas-cloud/bbs/internal/usecase/notification"
	postuc "github.com/kailas-cloud/bbs/internal/usecase/post"
	searchuc "github.com/kailas-cloud/bbs/internal/usecase/search"
	"github.com/kailas-cloud/bbs/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting bbs API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_path", cfg.Database.Path),
		zap.String("ratelimit_driver", cfg.RateLimit.Driver),
	)

	ctx := context.Background()

	store, err := sqlite.Open(ctx, cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to open content store", zap.Error(err))
	}
	defer func() { _ = store.Close() }()
	logger.Info("Content store ready")

	// Register board metrics explicitly (no init())
	metrics.RegisterBoardMetrics()

	// Create repositories
	posts := postrepo.New(store)
	likes := likerepo.New(store)
	notifs := notificationrepo.New(store)
	idents := identityrepo.New(store)
	algs := algorithmrepo.New(store)

	// The vector index is a derived copy of the content store; rebuild it
	// from scratch on every start.
	idx := index.NewMemory(cfg.Board.ScanCap)
	if err := posts.All(ctx, func(p dompost.Post) error {
		idx.Insert(index.Entry{
			PostID:    p.ID(),
			Vector:    p.Vector(),
			CreatedAt: p.CreatedAt(),
			Hashtags:  p.Hashtags(),
		})
		return nil
	}); err != nil {
		logger.Fatal("Failed to rebuild vector index", zap.Error(err))
	}
	logger.Info("Vector index rebuilt", zap.Int("entries", idx.Len()))

	// Rate gate driver
	window := time.Duration(cfg.RateLimit.WindowSec) * time.Second
	var gate postuc.Gate
	switch cfg.RateLimit.Driver {
	case "memory":
		gate = ratelimit.NewMemory(window, cfg.RateLimit.Limit)
	case "redis":
		redisGate, gateErr := ratelimit.NewRedis(ratelimit.RedisConfig{
			Addrs:    cfg.RateLimit.Addrs,
			Username: cfg.RateLimit.Username,
			Password: cfg.RateLimit.Password,
			Prefix:   cfg.RateLimit.KeyPrefix,
		}, window, cfg.RateLimit.Limit)
		if gateErr != nil {
			logger.Fatal("Failed to create redis rate gate", zap.Error(gateErr))
		}
		defer redisGate.Close()
		gate = redisGate
	default:
		logger.Fatal("Unknown ratelimit driver", zap.String("driver", cfg.RateLimit.Driver))
	}

	// Create use case services
	postSvc := postuc.New(posts, likes, notifs, idents, idx, gate, store.Clock(), postuc.Config{
		VectorDim:           cfg.Board.VectorDim,
		MaxContentLen:       cfg.Board.MaxContentLen,
		SimilarityThreshold: cfg.Board.SimilarityThreshold,
		RecentWindow:        cfg.Board.RecentWindow,
		DefaultPageSize:     cfg.Board.DefaultPageSize,
		MaxPageSize:         cfg.Board.MaxPageSize,
	})
	searchSvc := searchuc.New(idx, posts, algs, store.Clock(), searchuc.Config{
		VectorDim:       cfg.Board.VectorDim,
		ScanCap:         cfg.Board.ScanCap,
		CandidatePool:   cfg.Board.CandidatePool,
		DefaultPageSize: cfg.Board.DefaultPageSize,
		MaxPageSize:     cfg.Board.MaxPageSize,
	})
	notifSvc := notifuc.New(notifs)
	healthSvc := healthuc.New(store, idx)

	// Create chi server
	server := chiTransport.NewServer(postSvc, searchSvc, notifSvc, healthSvc, idents, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Mount(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
