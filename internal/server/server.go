package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tariff/internal/cache"
	"tariff/internal/config"
	"tariff/internal/db"
	"tariff/internal/engine"
	"tariff/internal/handler"
	"tariff/internal/ledger"
	"tariff/internal/repository"
)

// Server represents the HTTP server.
type Server struct {
	httpServer   *http.Server
	logger       *zap.Logger
	database     *db.DB
	cacheClient  *cache.Client
	ledgerClient *ledger.Client
}

// Config holds server configuration. CacheClient and LedgerClient may be nil;
// the calculation path degrades gracefully without them.
type Config struct {
	Port         int
	Database     *db.DB
	CacheClient  *cache.Client
	LedgerClient *ledger.Client
	Logger       *zap.Logger
	Engine       config.EngineConfig
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		logger:       cfg.Logger,
		database:     cfg.Database,
		cacheClient:  cfg.CacheClient,
		ledgerClient: cfg.LedgerClient,
	}

	// Create repositories
	feeRepo := repository.NewFeeDefinitionRepository(cfg.Database.Pool())
	discountRepo := repository.NewDiscountRuleRepository(cfg.Database.Pool())
	regionRepo := repository.NewRegionRepository(cfg.Database.Pool())
	calcRepo := repository.NewCalculationRepository(cfg.Database)

	// Region lookups go through the cache when Redis is available.
	var regions engine.RegionSource = regionRepo
	if cfg.CacheClient != nil {
		ttl := time.Duration(cfg.Engine.RegionCacheTTLSeconds) * time.Second
		regions = cache.NewRegionResolver(cfg.CacheClient, regionRepo, ttl)
	}

	feeEngine := engine.New(feeRepo, discountRepo, regions, calcRepo, cfg.Logger)

	// Create handlers
	calcHandler := handler.NewCalculationHandler(handler.CalculationHandlerConfig{
		Engine:       feeEngine,
		CalcRepo:     calcRepo,
		CacheClient:  cfg.CacheClient,
		LedgerClient: cfg.LedgerClient,
		Logger:       cfg.Logger,
		RateLimit:    cfg.Engine.RateLimitPerMinute,
		ResultTTL:    time.Duration(cfg.Engine.ResultCacheTTLSeconds) * time.Second,
	})
	ruleHandler := handler.NewRuleHandler(feeRepo, discountRepo, regionRepo)

	// Setup chi router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.zapLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health check endpoints
	r.Get("/health", s.healthCheck)
	r.Get("/ready", s.readyCheck)
	r.Handle("/metrics", promhttp.Handler())

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Calculations
		r.Post("/calculations", calcHandler.Calculate)
		r.Get("/calculations/{id}", calcHandler.GetCalculation)
		r.Get("/users/{id}/calculations", calcHandler.ListByUser)

		// Pricing configuration (read-only)
		r.Get("/fee-rules", ruleHandler.ListFeeRules)
		r.Get("/fee-rules/{id}", ruleHandler.GetFeeRule)
		r.Get("/discount-rules", ruleHandler.ListDiscountRules)
		r.Get("/discount-rules/{id}", ruleHandler.GetDiscountRule)
		r.Get("/regions", ruleHandler.ListRegions)
		r.Get("/regions/{id}/countries", ruleHandler.ListRegionCountries)
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// healthCheck returns basic health status.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readyCheck returns readiness status (all dependencies available).
func (s *Server) readyCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Check PostgreSQL
	if err := s.database.Ping(ctx); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not ready","reason":"database unavailable"}`))
		return
	}

	// Check Redis
	if s.cacheClient != nil {
		if err := s.cacheClient.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"not ready","reason":"cache unavailable"}`))
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// zapLogger is a middleware that logs requests using zap.
func (s *Server) zapLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
