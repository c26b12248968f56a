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

	"github.com/joshuajonah/xapian-haystack/internal/config"
	"github.com/joshuajonah/xapian-haystack/internal/db"
	dbRedis "github.com/joshuajonah/xapian-haystack/internal/db/redis"
	dbSqlite "github.com/joshuajonah/xapian-haystack/internal/db/sqlite"
	"github.com/joshuajonah/xapian-haystack/internal/engine"
	logpkg "github.com/joshuajonah/xapian-haystack/internal/logger"
	"github.com/joshuajonah/xapian-haystack/internal/metrics"
	chiTransport "github.com/joshuajonah/xapian-haystack/internal/transport/chi"
	indexinguc "github.com/joshuajonah/xapian-haystack/internal/usecase/indexing"
	searchuc "github.com/joshuajonah/xapian-haystack/internal/usecase/search"
	"github.com/joshuajonah/xapian-haystack/internal/version"
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

	logger.Info("Starting haystackd",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("storage_driver", cfg.Storage.Driver),
	)

	// Create index store based on driver
	var store db.Store
	var ping func(r *http.Request) error
	switch cfg.Storage.Driver {
	case "sqlite":
		store, err = dbSqlite.NewStore(dbSqlite.Config{Path: cfg.Storage.Path})
	case "redis":
		var rs *dbRedis.Store
		rs, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.Storage.Addrs,
			Username:  cfg.Storage.Username,
			Password:  cfg.Storage.Password,
			DB:        cfg.Storage.DB,
			KeyPrefix: cfg.Storage.KeyPrefix,
		})
		if rs != nil {
			store = rs
			ping = func(r *http.Request) error { return rs.Ping(r.Context()) }
		}
	default:
		logger.Fatal("Unknown storage driver", zap.String("driver", cfg.Storage.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to open index store", zap.Error(err))
	}
	defer store.Close()
	logger.Info("Index store opened")

	// Create use case services
	stemmer := engine.NewStemmer(cfg.Search.StemmingLanguage)
	indexSvc := indexinguc.New(store, nil, stemmer, logger)
	searchSvc := searchuc.New(store, nil, stemmer, cfg.Search.IncludeSpelling, logger)

	// Create chi server
	server := chiTransport.NewServer(indexSvc, searchSvc, cfg.Index, cfg.Search, ping, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

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
