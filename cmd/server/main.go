package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/liamcoop/visarules/assessments"
	"github.com/liamcoop/visarules/catalogs"
	"github.com/liamcoop/visarules/eligibility"
	"github.com/liamcoop/visarules/internal/config"
	"github.com/liamcoop/visarules/internal/logger"
	"github.com/liamcoop/visarules/internal/metrics"
	"github.com/liamcoop/visarules/registry"
	"github.com/liamcoop/visarules/rules"
)

type Server struct {
	db           *sql.DB
	redis        redis.UniversalClient
	ruleStore    rules.RuleStore
	registry     *registry.Registry
	engine       *rules.Engine
	assessments  assessments.Store
	metrics      *metrics.Metrics
	thresholds   eligibility.Thresholds
	maxBatch     int
	maxBodyBytes int64
	router       *chi.Mux
}

// NewServer wires storage, cache, registry and engine from cfg and loads
// every catalog. Without a database URL the service runs on in-memory
// stores seeded with the built-in catalogs.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	s := &Server{
		metrics:      metrics.New(),
		thresholds:   cfg.Eligibility.Thresholds(),
		maxBatch:     cfg.Server.MaxBatchSize,
		maxBodyBytes: cfg.Server.MaxBodyBytes,
	}

	var ruleStore rules.RuleStore
	if cfg.Database.URL != "" {
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}

		s.db = db
		ruleStore = rules.NewPostgresRuleStore(db)
		s.assessments = assessments.NewPostgresStore(db)
	} else {
		logger.Info("no database configured, using in-memory stores with built-in catalogs")
		store := rules.NewInMemoryRuleStore()
		if err := catalogs.Seed(ctx, store); err != nil {
			return nil, err
		}
		ruleStore = store
		s.assessments = assessments.NewInMemoryStore()
	}

	cacheConfig := rules.CacheConfig{TTL: cfg.Cache.TTL, Prefix: cfg.Cache.Prefix}
	var cache rules.RulesCache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			s.Close()
			client.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		s.redis = client
		cache = rules.NewRedisRulesCache(client, cacheConfig, logger.Component("cache"))
	} else {
		cache = rules.NewInMemoryRulesCache(cacheConfig)
	}

	reg, err := registry.NewRegistry(ruleStore, cache, logger.Component("registry"))
	if err != nil {
		s.Close()
		return nil, err
	}
	logger.Info("loading catalogs")
	if err := reg.LoadAll(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to load catalogs: %w", err)
	}
	s.ruleStore = ruleStore
	s.registry = reg

	s.engine = rules.NewEngine(
		rules.WithLogger(logger.Component("engine")),
		rules.WithRecorder(s.metrics),
		rules.WithParallelism(cfg.Engine.Parallelism),
	)

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// Evaluation
	r.Post("/api/v1/evaluate", s.handleEvaluate)
	r.Post("/api/v1/evaluate/batch", s.handleEvaluateBatch)
	r.Get("/api/v1/assessments", s.handleListAssessments)
	r.Get("/api/v1/assessments/{assessmentId}", s.handleGetAssessment)

	// Catalogs
	r.Route("/api/v1/catalogs", func(r chi.Router) {
		r.Get("/", s.handleListCatalogs)
		r.Route("/{catalog}", func(r chi.Router) {
			r.Get("/", s.handleGetCatalog)
			r.Delete("/", s.handleDeleteCatalog)
			r.Post("/reload", s.handleReloadCatalog)
			r.Get("/rules/{ruleId}", s.handleGetRule)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases the database and Redis connections
func (s *Server) Close() {
	if s.db != nil {
		s.db.Close()
	}
	if s.redis != nil {
		s.redis.Close()
	}
}

func main() {
	configFile := flag.String("config", "", "Path to a YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatal("failed to load configuration", "error", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.SampleRate, os.Stdout); err != nil {
		logger.Fatal("failed to configure logging", "error", err)
	}

	server, err := NewServer(context.Background(), cfg)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	defer server.Close()

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
