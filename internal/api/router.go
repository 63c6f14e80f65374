package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/reframe/internal/api/handlers"
	mw "github.com/Harshitk-cp/reframe/internal/api/middleware"
	"github.com/Harshitk-cp/reframe/internal/config"
	"github.com/Harshitk-cp/reframe/internal/domain"
	"github.com/Harshitk-cp/reframe/internal/embedding"
	"github.com/Harshitk-cp/reframe/internal/service"
	"github.com/Harshitk-cp/reframe/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router        *chi.Mux
	Decay         *service.DecayService
	Expirer       *service.PauseExpirer
	startTime     time.Time
	requestCount  atomic.Int64
	errorCount    atomic.Int64
	conflictCount atomic.Int64
}

func NewApp(pool *pgxpool.Pool, logger *zap.Logger) *App {
	db := store.NewDB(pool)
	stores := db.Stores()

	engineCfg := service.Config{
		ReconsolidationWindow:     config.ReconsolidationWindow(),
		RecurrenceThreshold:       config.RecurrenceThreshold(),
		RecurrenceWindow:          config.RecurrenceWindow(),
		SignificanceThreshold:     config.SignificanceThreshold(),
		ConfidenceFloor:           config.ConfidenceFloor(),
		PauseTimeout:              config.PauseTimeout(),
		MismatchRetryLimit:        config.MismatchRetryLimit(),
		SuccessRateTarget:         config.SuccessRateTarget(),
		MinVerificationEncounters: config.MinVerificationEncounters(),
	}

	// Belief matcher: embedding-backed when a real provider is configured,
	// token overlap otherwise.
	var matcher domain.BeliefMatcher = service.NewTokenMatcher()
	var vectorClient domain.EmbeddingClient
	embeddingProvider := config.EmbeddingProvider()
	embeddingClient, err := embedding.NewClient(embeddingProvider, config.EmbeddingAPIKey())
	if err != nil {
		logger.Warn("embedding client initialization failed", zap.String("provider", embeddingProvider), zap.Error(err))
	} else {
		logger.Info("embedding client initialized", zap.String("provider", embeddingProvider))
		if embeddingProvider == embedding.ProviderOpenAI {
			matcher = service.NewEmbeddingMatcher(embeddingClient, config.BeliefMatchThreshold())
			vectorClient = embeddingClient
		}
	}

	// Services
	captureSvc := service.NewCaptureService(stores.Captures, logger)
	decaySvc := service.NewDecayService(stores.Captures, config.ConfidenceFloor(), logger)
	decaySvc.SetInterval(config.DecayScanInterval())
	detectorSvc := service.NewDetectorService(stores.Patterns, matcher, engineCfg, logger)
	if vectorClient != nil {
		detectorSvc.UseEmbeddings(vectorClient, config.BeliefMatchThreshold())
	}
	reconSvc := service.NewReconsolidationService(stores.Predictions, service.TokenSimilarity, engineCfg, logger)
	rewriteSvc := service.NewRewriteService(stores.Rewrites, logger)
	verificationSvc := service.NewVerificationService(stores.Encounters, stores.Rewrites, engineCfg, logger)
	consolidationSvc := service.NewConsolidationService(logger)
	orchSvc := service.NewOrchestratorService(stores, db, captureSvc, reconSvc, rewriteSvc, verificationSvc, consolidationSvc, engineCfg, logger)
	expirerSvc := service.NewPauseExpirer(stores.Interventions, orchSvc, engineCfg, logger)

	// Handlers
	captureHandler := handlers.NewCaptureHandler(captureSvc, decaySvc)
	patternHandler := handlers.NewPatternHandler(detectorSvc, captureSvc, orchSvc)
	interventionHandler := handlers.NewInterventionHandler(orchSvc, reconSvc, rewriteSvc)
	rewriteHandler := handlers.NewRewriteHandler(rewriteSvc, verificationSvc)
	cognitiveHandler := handlers.NewCognitiveHandler(decaySvc, expirerSvc)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Decay:     decaySvc,
		Expirer:   expirerSvc,
		startTime: time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount, &app.conflictCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health
	r.Get("/health", healthHandler(pool))

	// Metrics
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		// Captures
		r.Route("/captures/{id}", func(r chi.Router) {
			r.Get("/", captureHandler.GetByID)
			r.Post("/decay", captureHandler.Decay)
		})

		// Patterns
		r.Route("/patterns", func(r chi.Router) {
			r.Get("/", patternHandler.List)
			r.Post("/detect", patternHandler.Detect)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", patternHandler.GetByID)
				r.Post("/interventions", patternHandler.StartIntervention)
			})
		})

		// Interventions (five-phase lifecycle)
		r.Route("/interventions/{id}", func(r chi.Router) {
			r.Get("/", interventionHandler.GetByID)
			r.Post("/advance", interventionHandler.Advance)
			r.Post("/capture", interventionHandler.SubmitCapture)
			r.Get("/mismatch", interventionHandler.Mismatch)
			r.Post("/mismatch", interventionHandler.ComputeMismatch)
			r.Post("/rewrite", interventionHandler.SubmitRewrite)
			r.Post("/encounters", interventionHandler.RecordEncounter)
			r.Post("/pause", interventionHandler.Pause)
			r.Post("/resume", interventionHandler.Resume)
			r.Post("/abandon", interventionHandler.Abandon)
		})

		// Rewrites
		r.Route("/rewrites/{id}", func(r chi.Router) {
			r.Get("/", rewriteHandler.GetByID)
			r.Get("/verification", rewriteHandler.Verification)
		})

		// Maintenance triggers
		r.Route("/cognitive", func(r chi.Router) {
			r.Post("/decay", cognitiveHandler.TriggerDecay)
			r.Post("/expire", cognitiveHandler.TriggerExpiry)
		})
	})

	return app
}

// NewRouter returns just the chi.Mux for callers that manage lifecycles
// themselves.
func NewRouter(pool *pgxpool.Pool, logger *zap.Logger) *chi.Mux {
	return NewApp(pool, logger).Router
}

func healthHandler(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"conflict_count": app.conflictCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.CaptureStore      = (*store.CaptureStore)(nil)
	_ domain.PatternStore      = (*store.PatternStore)(nil)
	_ domain.InterventionStore = (*store.InterventionStore)(nil)
	_ domain.PredictionStore   = (*store.PredictionStore)(nil)
	_ domain.RewriteStore      = (*store.RewriteStore)(nil)
	_ domain.EncounterStore    = (*store.EncounterStore)(nil)
	_ domain.GraphStore        = (*store.GraphStore)(nil)
	_ domain.UnitOfWork        = (*store.DB)(nil)
	_ domain.EmbeddingClient   = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient   = (*embedding.MockClient)(nil)
	_ domain.BeliefMatcher     = (*service.TokenMatcher)(nil)
	_ domain.BeliefMatcher     = (*service.EmbeddingMatcher)(nil)
)
