package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/hongminglow/kaisurf-be/internal/auth"
	"github.com/hongminglow/kaisurf-be/internal/chronolog"
	"github.com/hongminglow/kaisurf-be/internal/config"
	"github.com/hongminglow/kaisurf-be/internal/events"
	"github.com/hongminglow/kaisurf-be/internal/http/guard"
	"github.com/hongminglow/kaisurf-be/internal/http/handlers"
	"github.com/hongminglow/kaisurf-be/internal/http/respond"
	"github.com/hongminglow/kaisurf-be/internal/ledger"
	"github.com/hongminglow/kaisurf-be/internal/metrics"
	"github.com/hongminglow/kaisurf-be/internal/middleware"
	"github.com/hongminglow/kaisurf-be/internal/rewards"
	"github.com/hongminglow/kaisurf-be/internal/storage"
)

const limiterSweepInterval = time.Minute

// Deps are the collaborators built by the caller.
type Deps struct {
	Store     storage.Store
	Log       logrus.FieldLogger
	Metrics   *metrics.Metrics
	Publisher events.Publisher
	Plugins   handlers.MenuSource
	// KonesEnabled is read on every request. Defaults to the configured flag.
	KonesEnabled func() bool
	StartedAt    time.Time
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner    *http.Server
	handler  http.Handler
	limiter  *middleware.RateLimiter
	rewards  *rewards.Service
	stop     chan struct{}
	stopOnce sync.Once
}

// New wires up services, gates, middleware and routes.
func New(cfg config.Config, deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	konesEnabled := deps.KonesEnabled
	if konesEnabled == nil {
		flag := cfg.KonesEnabled
		konesEnabled = func() bool { return flag }
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Nop{}
	}
	if deps.StartedAt.IsZero() {
		deps.StartedAt = time.Now()
	}
	store := deps.Store

	bearer := auth.NewAuthenticator(cfg.JWTSecret, store)
	keyGate := auth.NewKeyGate(cfg.ServiceAPIKey)
	sessions := auth.NewSessions(store, store, cfg.SessionTTL)
	disabled := guard.Feature(konesEnabled, ledger.ErrDisabled)

	gates := handlers.Gates{
		Bearer:             guard.New(log, deps.Metrics, bearer),
		Trusted:            guard.New(log, deps.Metrics, nil, keyGate),
		TrustedBearer:      guard.New(log, deps.Metrics, bearer, keyGate),
		Session:            guard.New(log, deps.Metrics, sessions),
		KonesTrustedBearer: guard.New(log, deps.Metrics, bearer, disabled, keyGate),
		KonesSession:       guard.New(log, deps.Metrics, sessions, disabled),
	}

	wallet := ledger.NewService(store, konesEnabled,
		ledger.WithPublisher(deps.Publisher),
		ledger.WithMetrics(deps.Metrics),
		ledger.WithLogger(log),
	)
	recorder := chronolog.NewRecorder(store, deps.Publisher, deps.Metrics, log)
	rules := rewards.NewService(store, konesEnabled)

	router := mux.NewRouter()
	router.Use(middleware.Metrics(deps.Metrics))
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, http.StatusNotFound, "resource not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	handlers.NewHealthHandler(deps.StartedAt, cfg.AppVersion).Register(router)
	handlers.NewAppConfigHandler(cfg.AppName, cfg.AppVersion, konesEnabled, deps.Plugins).Register(router)
	handlers.NewPostsHandler().Register(router, gates)
	handlers.NewAuthHandler(store, sessions, recorder, log).Register(router, gates)
	handlers.NewKonesHandler(wallet, log).Register(router, gates)
	handlers.NewChronologHandler(recorder, log).Register(router, gates)
	handlers.NewRewardsHandler(rules, log).Register(router, gates)
	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics.Handler()).Methods(http.MethodGet)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)
	limiter.TrustProxies(cfg.TrustedProxies...)
	handler := middleware.CORS(cfg.CORSOrigins,
		middleware.Logging(log,
			limiter.Handler(
				middleware.Timeout(cfg.RequestTimeout, router))))

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		inner:   httpServer,
		handler: handler,
		limiter: limiter,
		rewards: rules,
		stop:    make(chan struct{}),
	}
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// SeedRewardDefaults inserts the default reward rules that are missing.
func (s *Server) SeedRewardDefaults(ctx context.Context) error {
	if err := s.rewards.SeedDefaults(ctx); err != nil {
		return fmt.Errorf("seed reward rules: %w", err)
	}
	return nil
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	s.limiter.StartSweeper(limiterSweepInterval, s.stop)
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	return s.inner.Shutdown(ctx)
}
