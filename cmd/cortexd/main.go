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
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cortexnotes/cortex/internal/backend"
	"github.com/cortexnotes/cortex/internal/backend/ollama"
	"github.com/cortexnotes/cortex/internal/backend/openai"
	"github.com/cortexnotes/cortex/internal/config"
	"github.com/cortexnotes/cortex/internal/domain"
	"github.com/cortexnotes/cortex/internal/embedding"
	"github.com/cortexnotes/cortex/internal/index"
	indexfile "github.com/cortexnotes/cortex/internal/index/file"
	indexredis "github.com/cortexnotes/cortex/internal/index/redis"
	logpkg "github.com/cortexnotes/cortex/internal/logger"
	"github.com/cortexnotes/cortex/internal/metrics"
	"github.com/cortexnotes/cortex/internal/prompt"
	chiTransport "github.com/cortexnotes/cortex/internal/transport/chi"
	healthuc "github.com/cortexnotes/cortex/internal/usecase/health"
	notesuc "github.com/cortexnotes/cortex/internal/usecase/notes"
	processuc "github.com/cortexnotes/cortex/internal/usecase/process"
	"github.com/cortexnotes/cortex/internal/version"
)

func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting cortex server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.Int("backends", len(cfg.Backends)),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterBackendMetrics()

	// Prompt templates
	engine, err := prompt.Load(cfg.Templates.Path)
	if err != nil {
		logger.Fatal("Failed to load prompt templates", zap.Error(err))
	}
	logger.Info("Loaded prompt templates", zap.Strings("tasks", engine.Tasks()))

	// Backend chain — composition root
	chain, healthChecker, err := buildChain(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build backend chain", zap.Error(err))
	}

	// Vector index
	ctx := context.Background()
	idx, redisStore, err := buildIndex(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open vector index", zap.Error(err))
	}
	defer func() { _ = idx.Close() }()
	logger.Info("Vector index ready",
		zap.String("driver", cfg.Storage.Driver),
		zap.Int("dimensions", idx.Dimensions()),
	)

	// Embedding service, cached when redis provides the KV store
	var chainEmbedder embedding.Embedder = chain
	if cfg.Embedding.Cache && redisStore != nil {
		chainEmbedder = embedding.NewCached(
			chain, redisStore, cfg.Storage.KeyPrefix, metrics.EmbeddingCacheTotal, logger,
		)
		logger.Info("Embedding cache enabled")
	}
	embedSvc := embedding.NewService(chainEmbedder, cfg.Embedding.Dimensions, cfg.Embedding.MaxInputTokens, logger)

	// Use case services
	processSvc := processuc.New(engine, chain, embedSvc, idx)
	notesSvc := notesuc.New(embedSvc, idx)
	healthSvc := healthuc.New(idx, healthChecker)

	// HTTP server
	server := chiTransport.NewServer(
		processSvc, notesSvc, healthSvc, engine,
		processuc.EmbedSource(cfg.Embedding.Source), logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
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

// buildChain assembles the ordered backend chain from config. The first
// local backend doubles as the health checker.
func buildChain(cfg config.Config, logger *zap.Logger) (*backend.Chain, healthuc.BackendChecker, error) {
	candidates := make([]backend.Candidate, 0, len(cfg.Backends))
	var checker healthuc.BackendChecker

	for _, bc := range cfg.Backends {
		timeout := time.Duration(bc.TimeoutSec) * time.Second

		switch domain.BackendKind(bc.Kind) {
		case domain.BackendLocal:
			baseURL := bc.BaseURL
			if baseURL == "" {
				baseURL = fmt.Sprintf("http://%s:%d", bc.Host, bc.Port)
			}
			client := ollama.New(ollama.Config{
				BaseURL:        baseURL,
				Model:          bc.Model,
				EmbeddingModel: bc.EmbeddingModel,
			})
			candidates = append(candidates, backend.Candidate{Backend: client, Timeout: timeout})
			if checker == nil {
				checker = client
			}
			logger.Info("Configured local backend",
				zap.String("base_url", baseURL), zap.String("model", bc.Model))

		case domain.BackendCloud:
			client := openai.New(openai.Config{
				APIKey:         bc.APIKey,
				BaseURL:        bc.BaseURL,
				Model:          bc.Model,
				EmbeddingModel: bc.EmbeddingModel,
			})
			candidates = append(candidates, backend.Candidate{Backend: client, Timeout: timeout})
			logger.Info("Configured cloud backend", zap.String("model", bc.Model))

		default:
			return nil, nil, fmt.Errorf("unknown backend kind %q", bc.Kind)
		}
	}

	chain, err := backend.NewChain(logger, candidates...)
	if err != nil {
		return nil, nil, err
	}
	return chain, checker, nil
}

// buildIndex opens the configured index driver. The redis store is returned
// separately so it can serve as the embedding cache KV.
func buildIndex(ctx context.Context, cfg config.Config, logger *zap.Logger) (index.Index, *indexredis.Store, error) {
	switch cfg.Storage.Driver {
	case "file":
		store, err := indexfile.Open(cfg.Storage.DataDir, cfg.Embedding.Dimensions)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	case "redis":
		store, err := indexredis.New(indexredis.Config{
			Addrs:           cfg.Storage.Addrs,
			Password:        cfg.Storage.Password,
			KeyPrefix:       cfg.Storage.KeyPrefix,
			Dimensions:      cfg.Embedding.Dimensions,
			HNSWM:           cfg.Storage.HNSWM,
			HNSWEFConstruct: cfg.Storage.HNSWEFConstruct,
		})
		if err != nil {
			return nil, nil, err
		}
		readiness := time.Duration(cfg.Storage.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, readiness); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("redis not ready: %w", err)
		}
		if err := store.EnsureIndex(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("ensure search index: %w", err)
		}
		logger.Info("Connected to redis")
		return store, store, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// jsonRecoverer converts panics into JSON 500 responses.
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
