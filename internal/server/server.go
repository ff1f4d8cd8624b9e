package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/diagnoclinic/apiserver/config"
	"github.com/diagnoclinic/apiserver/internal/classifier"
	"github.com/diagnoclinic/apiserver/internal/db"
	"github.com/diagnoclinic/apiserver/internal/events"
	"github.com/diagnoclinic/apiserver/internal/handlers"
	"github.com/diagnoclinic/apiserver/internal/metrics"
	"github.com/diagnoclinic/apiserver/internal/mq"
	"github.com/diagnoclinic/apiserver/internal/report"
	"github.com/diagnoclinic/apiserver/internal/services"
	"github.com/diagnoclinic/apiserver/internal/session"
	"github.com/diagnoclinic/apiserver/internal/storage"
	"github.com/diagnoclinic/apiserver/internal/store"
)

const (
	requestTimeout  = 60 * time.Second
	shutdownTimeout = 15 * time.Second
)

// Server wraps the HTTP server, its router and the backends it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	logger     zerolog.Logger
	closers    []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// New wires repositories, the classifier, services and routes from cfg.
// Optional backends (Postgres, Redis, broker, object storage, PDF renderer)
// are only connected when configured; a missing classifier or renderer
// degrades the matching feature instead of failing startup.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (_ *Server, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	srv := &Server{logger: logger}
	defer func() {
		if err != nil {
			srv.closeAll()
		}
	}()

	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	doctors, err := store.OpenDoctorRepository(cfg.Data.DoctorsFile, cfg.Accounts.OrdinalBase)
	if err != nil {
		return nil, fmt.Errorf("open doctors: %w", err)
	}
	tokens, err := store.OpenResetTokenRepository(cfg.Data.ResetTokens)
	if err != nil {
		return nil, fmt.Errorf("open reset tokens: %w", err)
	}
	activity, err := store.OpenActivityRepository(cfg.Data.ActivityFile, cfg.Data.ActivityLimit)
	if err != nil {
		return nil, fmt.Errorf("open activity: %w", err)
	}
	catalog, err := store.OpenServiceRepository(cfg.Data.ServicesFile)
	if err != nil {
		return nil, fmt.Errorf("open services: %w", err)
	}

	checks := map[string]handlers.HealthChecker{}

	var history services.HistoryRepository
	switch cfg.HistoryBackend {
	case "postgres":
		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		srv.onClose("postgres", conn.Close)
		if cfg.Database.AutoMigrate {
			if err := db.Migrate(cfg.Database); err != nil {
				return nil, err
			}
			logger.Info().Msg("database migrations applied")
		}
		checks["postgres"] = handlers.HealthCheckFunc(conn.PingContext)
		history = store.NewPostgresHistoryRepository(conn, cfg.Data.HistoryLimit)
	default:
		history = store.NewHistoryRepository(cfg.Data.PatientsFile, cfg.Data.HistoryLimit)
	}

	mapping, err := services.LoadDiseaseMapping(cfg.Data.DiseaseMapping)
	if err != nil {
		return nil, fmt.Errorf("load disease mapping: %w", err)
	}

	var model classifier.Model
	if loaded, err := classifier.Load(ctx, cfg.Model); err != nil {
		logger.Warn().Err(err).Msg("classifier unavailable, diagnosis disabled")
	} else {
		model = loaded
		logger.Info().Strs("features", model.FeatureNames()).Msg("classifier loaded")
	}

	queue, err := mq.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	publisher := events.NewPublisher(queue, cfg.MQChannel)
	if publisher != nil {
		srv.onClose("mq", publisher.Close)
		checks["mq"] = publisher
	}

	objects, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if objects != nil {
		checks["storage"] = objects
	}

	var renderer report.Renderer
	if wk, err := report.NewWKHTMLToPDF(cfg.Report.WKHTMLToPDFPath); err != nil {
		logger.Warn().Err(err).Msg("pdf export disabled")
	} else {
		renderer = wk
	}
	exporter := report.NewExporter(renderer, report.NewArchive(objects), logger)

	var sessionStore session.Store = session.NewMemoryStore()
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		srv.onClose("redis", client.Close)
		redisStore := session.NewRedisStore(client)
		if err := redisStore.Ping(ctx); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		checks["redis"] = redisStore
		sessionStore = redisStore
	}
	sessions := session.NewManager(sessionStore, cfg.Session)

	m := metrics.New()
	rec := services.NewRecorder(activity, publisher, m, logger)
	authService := services.NewAuthService(doctors, rec)
	adminService := services.NewAdminService(doctors, history, activity, tokens, rec, cfg.Accounts.DefaultResetPassword)
	resetService := services.NewPasswordResetService(doctors, tokens, rec, cfg.Accounts.ResetTokenTTL)
	catalogService := services.NewCatalogService(catalog, mapping, rec)
	diagnosisService := services.NewDiagnosisService(services.NewPredictor(model, mapping), history, rec)

	if cfg.Env == "dev" {
		seeded, err := services.SeedDoctors(ctx, doctors, cfg.Accounts.DefaultResetPassword)
		if err != nil {
			return nil, fmt.Errorf("seed doctors: %w", err)
		}
		if seeded > 0 {
			logger.Info().Int("count", seeded).Msg("seeded demo doctors")
		}
	}

	guards := handlers.NewGuards(authService, sessions)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		handlers.RequestLogger(logger),
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
		sessions.Middleware,
	)
	handlers.HealthRouter(router, handlers.NewHealthHandler(checks, diagnosisService.Available, exporter.Available))
	router.Handle("/metrics", m.Handler())
	router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir))))
	handlers.AuthRouter(router, handlers.NewAuthHandler(authService, resetService, sessions, cfg.Accounts.ExposeResetLinks))
	handlers.DiagnosisRouter(router, handlers.NewDiagnosisHandler(diagnosisService, authService, exporter, m, sessions), guards)
	handlers.AdminRouter(router, handlers.NewAdminHandler(adminService, catalogService, sessions), guards)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	srv.router = router
	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.closeAll()
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	s.closeAll()
	return err
}

func (s *Server) onClose(name string, fn func() error) {
	s.closers = append(s.closers, namedCloser{name: name, close: fn})
}

func (s *Server) closeAll() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		c := s.closers[i]
		if err := c.close(); err != nil {
			s.logger.Warn().Err(err).Str("backend", c.name).Msg("close")
		}
	}
	s.closers = nil
}
