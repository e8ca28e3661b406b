package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/2beens/fitstreak/internal/auth"
	"github.com/2beens/fitstreak/internal/catalog"
	"github.com/2beens/fitstreak/internal/checkpoints"
	"github.com/2beens/fitstreak/internal/config"
	"github.com/2beens/fitstreak/internal/db"
	"github.com/2beens/fitstreak/internal/idempotency"
	"github.com/2beens/fitstreak/internal/middleware"
	"github.com/2beens/fitstreak/internal/nutrition"
	"github.com/2beens/fitstreak/internal/plans"
	"github.com/2beens/fitstreak/internal/progress"
	"github.com/2beens/fitstreak/internal/sessions"
	"github.com/2beens/fitstreak/internal/storage"
	"github.com/2beens/fitstreak/internal/telemetry/metrics"
	"github.com/2beens/fitstreak/internal/telemetry/tracing"
	"github.com/2beens/fitstreak/pkg"
)

const maxRequestBodyBytes = 1 << 20

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server

	config        *config.Config
	dbPool        *pgxpool.Pool
	redisClient   *redis.Client
	authService   *auth.Service
	admin         auth.Admin
	catalogSource catalog.Source
	catalog       *catalog.Provider
	photos        storage.FileStorage
	idempotency   *idempotency.Cache

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	DBPassword              string
	RedisPassword           string
	AdminSecretHash         string
	S3Credentials           storage.S3Credentials
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "fitstreak")
	if err != nil {
		return nil, err
	}

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         cfg.PostgresHost,
		DBPort:         cfg.PostgresPort,
		DBName:         cfg.PostgresDBName,
		DBPassword:     params.DBPassword,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}
	if err := db.Migrate(ctx, dbPool); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": cfg.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("fitstreak", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})
	if params.HoneycombTracingEnabled {
		rdb.AddHook(redisotel.NewTracingHook())
	}

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	authService := auth.NewAuthService(auth.DefaultTTL, rdb)
	go func() {
		ticker := time.NewTicker(8 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				authService.ScanAndClean(ctx)
			}
		}
	}()

	catalogSource := catalog.Source{
		Path: cfg.CatalogPath,
		URL:  cfg.CatalogURL,
		HTTPClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
	}
	c, err := catalogSource.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	var photos storage.FileStorage = storage.NoopStorage{}
	if cfg.S3.BucketName != "" {
		s3Storage, err := storage.NewS3Storage(ctx, cfg.S3, params.S3Credentials)
		if err != nil {
			return nil, fmt.Errorf("new s3 storage: %w", err)
		}
		photos = s3Storage
	} else {
		log.Warnln("s3 bucket not configured, meal photos disabled")
	}

	return &Server{
		config:        cfg,
		dbPool:        dbPool,
		redisClient:   rdb,
		authService:   authService,
		admin:         auth.Admin{SecretHash: params.AdminSecretHash},
		catalogSource: catalogSource,
		catalog:       catalog.NewProvider(c),
		photos:        photos,
		idempotency:   idempotency.NewCache(cfg.IdempotencyCacheMB, cfg.IdempotencyTTL()),

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() (*mux.Router, error) {
	loc := s.config.Location()

	nutritionDefaults := nutrition.Defaults{
		Calories:   int(s.config.DefaultCalorieTarget),
		Water:      s.config.DefaultWaterTarget,
		TotalMeals: s.config.DefaultMealsPerDay,
	}
	nutritionRepo := nutrition.NewRepo(s.dbPool, nutritionDefaults)
	nutritionService := nutrition.NewService(
		nutritionRepo,
		nutritionDefaults,
		loc,
		s.metricsManager,
	)
	plansService := plans.NewService(
		plans.NewRepo(s.dbPool, nutritionRepo),
		s.catalog,
		loc,
		s.metricsManager,
	)
	checkpointsService := checkpoints.NewService(checkpoints.ServiceParams{
		Repo:           checkpoints.NewRepo(s.dbPool),
		Plans:          plansService,
		Nutrition:      nutritionService,
		Catalog:        s.catalog,
		Photos:         s.photos,
		PhotoURLExpiry: s.config.PresignExpiry(),
		MetricsManager: s.metricsManager,
		Location:       loc,
	})
	sessionsService := sessions.NewService(
		sessions.NewRepo(s.dbPool),
		plansService,
		checkpointsService,
		s.catalog,
		loc,
		s.metricsManager,
	)
	progressService := progress.NewService(
		progress.NewRepo(s.dbPool),
		plansService,
		nutritionService,
		loc,
	)

	r := mux.NewRouter()
	r.Use(otelmux.Middleware("fitstreak-router"))

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		pkg.WriteResponseBytes(w, pkg.ContentType.Text, []byte("fitstreak"), http.StatusOK)
	}).Methods("GET").Name("ping")

	catalogHandler := catalog.NewHandler(s.catalog, s.catalogSource, s.admin)
	r.HandleFunc("/catalog/plans", catalogHandler.HandleListPlans).Methods("GET", "OPTIONS").Name("catalog-plans")
	r.HandleFunc("/catalog/plans/{id}/days/{day}", catalogHandler.HandleGetDay).Methods("GET", "OPTIONS").Name("catalog-day")
	r.HandleFunc("/admin/catalog/reload", catalogHandler.HandleReload).Methods("POST", "OPTIONS").Name("catalog-reload")

	plansHandler := plans.NewHandler(plansService)
	progressHandler := progress.NewHandler(progressService)
	checkpointsHandler := checkpoints.NewHandler(checkpointsService)
	sessionsHandler := sessions.NewHandler(sessionsService)
	nutritionHandler := nutrition.NewHandler(nutritionService)

	r.HandleFunc("/plans", plansHandler.HandleStart).Methods("POST", "OPTIONS").Name("start-plan")
	r.HandleFunc("/plans", plansHandler.HandleList).Methods("GET", "OPTIONS").Name("list-plans")
	r.HandleFunc("/plans/{id}", plansHandler.HandleGet).Methods("GET", "OPTIONS").Name("get-plan")
	r.HandleFunc("/plans/{id}", plansHandler.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-plan")
	r.HandleFunc("/plans/{id}/remove", plansHandler.HandleRemove).Methods("POST", "OPTIONS").Name("remove-plan")
	r.HandleFunc("/plans/{id}/progress", progressHandler.HandlePlanProgress).Methods("GET", "OPTIONS").Name("plan-progress")
	r.HandleFunc("/plans/{id}/sessions", sessionsHandler.HandleInitialize).Methods("POST", "OPTIONS").Name("init-session")
	r.HandleFunc("/plans/{id}/checkpoints", checkpointsHandler.HandleListForDate).Methods("GET", "OPTIONS").Name("list-checkpoints")
	r.HandleFunc("/plans/{id}/meals", checkpointsHandler.HandleSeedMeals).Methods("POST", "OPTIONS").Name("seed-meals")

	r.HandleFunc("/sessions/{id}", sessionsHandler.HandleGet).Methods("GET", "OPTIONS").Name("get-session")
	r.HandleFunc("/sessions/{id}/start", sessionsHandler.HandleStart).Methods("POST", "OPTIONS").Name("start-session")
	r.HandleFunc("/nutrition/{date}", nutritionHandler.HandleGet).Methods("GET", "OPTIONS").Name("get-nutrition")
	r.HandleFunc("/nutrition/{date}/water", nutritionHandler.HandleUpdateWater).Methods("PUT", "OPTIONS").Name("update-water")
	r.HandleFunc("/nutrition/{date}/targets", nutritionHandler.HandleSetTargets).Methods("PUT", "OPTIONS").Name("set-targets")
	r.HandleFunc("/checkpoints/meal/{id}/photo", checkpointsHandler.HandleMealPhotoUpload).Methods("POST", "OPTIONS").Name("meal-photo-upload")
	r.HandleFunc("/checkpoints/meal/{id}/photo", checkpointsHandler.HandleMealPhotoDownload).Methods("GET", "OPTIONS").Name("meal-photo-download")

	r.HandleFunc("/progress/today", progressHandler.HandleToday).Methods("GET", "OPTIONS").Name("progress-today")
	r.HandleFunc("/progress/week", progressHandler.HandleWeek).Methods("GET", "OPTIONS").Name("progress-week")
	r.HandleFunc("/progress/summary", progressHandler.HandleSummary).Methods("GET", "OPTIONS").Name("progress-summary")

	// completions: rate limited per user, replayed on a repeated Idempotency-Key
	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)
	completions := r.NewRoute().Subrouter()
	completions.HandleFunc("/checkpoints/exercise/{id}/complete", checkpointsHandler.HandleCompleteExercise).Methods("POST", "OPTIONS").Name("complete-exercise")
	completions.HandleFunc("/checkpoints/meal/{id}/complete", checkpointsHandler.HandleCompleteMeal).Methods("POST", "OPTIONS").Name("complete-meal")
	completions.HandleFunc("/sessions/{id}/exercises/{exerciseId}/complete", sessionsHandler.HandleCompleteExercise).Methods("POST", "OPTIONS").Name("session-complete-exercise")
	completions.HandleFunc("/sessions/{id}/finish", sessionsHandler.HandleFinish).Methods("POST", "OPTIONS").Name("finish-session")
	completions.HandleFunc("/nutrition/{date}/meals", nutritionHandler.HandleRecordMeal).Methods("POST", "OPTIONS").Name("record-meal")
	completions.Use(middleware.RateLimit(reqRateLimiter, "completions", s.config.CompletionRateLimitPerMin, s.metricsManager))
	completions.Use(middleware.Idempotency(s.idempotency, s.metricsManager))

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.authService)

	r.Use(middleware.Recover(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.AllowedOrigins))
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest(maxRequestBodyBytes))

	return r, nil
}

func (s *Server) Serve(host string, port int) {
	router, err := s.routerSetup()
	if err != nil {
		log.Fatalf("failed to setup router: %s", err)
	}

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
