package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/zrupay/zrugate/internal/metrics"
	"github.com/zrupay/zrugate/internal/middleware"
	"github.com/zrupay/zrugate/internal/redact"
	"github.com/zrupay/zrugate/internal/zru"
	"golang.org/x/exp/slog"
)

// App is the gateway service: it owns the HTTP server, the order store and
// the payment API client.
type App struct {
	srv     *http.Server
	wg      *sync.WaitGroup
	Addr    string
	logger  *slog.Logger
	config  *Config
	db      *sql.DB
	Metrics *metrics.Metrics
}

func NewApp(logger *slog.Logger, config *Config) *App {
	logger = logger.With(slog.String("app", "zrugate"))

	if config == nil {
		config = DefaultConfig()
	}

	return &App{
		wg:      &sync.WaitGroup{},
		logger:  logger,
		config:  config,
		Metrics: metrics.New(),
	}
}

func (a *App) Start() error {
	a.logger.Info("starting app...")

	if err := a.config.Validate(); err != nil {
		return err
	}

	repository, err := a.openRepository()
	if err != nil {
		return err
	}

	client := zru.NewClient(a.config.Credentials(),
		zru.WithBaseURL(a.config.APIBaseURL),
		zru.WithHTTPClient(&http.Client{Timeout: a.config.APITimeout}),
		zru.WithLogger(a.logger),
		zru.WithObserver(func(kind zru.Kind, method string, status int, elapsed time.Duration) {
			a.Metrics.ObserveAPICall(string(kind), method, status, elapsed)
		}),
	)
	a.logger.Info("payment api configured",
		slog.String("base_url", a.config.APIBaseURL),
		slog.String("key", redact.MaskKey(a.config.Key)),
		slog.String("key_fingerprint", redact.LastN(redact.Fingerprint(a.config.Key, []byte(a.config.FingerprintKey)), 12)),
		slog.String("way", string(a.config.Way)),
		slog.Bool("ready", a.config.Ready()),
	)
	if !a.config.Ready() {
		a.logger.Warn("payment method is not ready: disabled or no credentials")
	}

	reconciler := NewReconciler(repository, a.config, a.logger, a.Metrics)
	gw := NewGateway(client, repository, a.config, a.logger, a.Metrics)

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(middleware.NewStructuredLogger(a.logger, a.Metrics.ObserveHTTPRequest))

	api := NewAPI(gw, reconciler, client)
	api.AppendRoutes(router)
	if a.config.DevRoutes {
		api.AppendDevRoutes(router, repository)
	}

	router.Get("/-/live", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Get("/-/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := repository.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Method(http.MethodGet, "/metrics", a.Metrics.Handler())

	l, err := net.Listen("tcp", a.config.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening tcp port: %w", err)
	}

	a.Addr = l.Addr().String()

	a.srv = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.wg.Add(1)
	go func() {
		a.logger.Info("http server started", slog.String("addr", a.Addr))

		if err := a.srv.Serve(l); err != nil {
			if err != http.ErrServerClosed {
				a.logger.Error("starting http server", "err", err)
			}

			a.logger.Info("http server stopped")
		}

		a.wg.Done()
	}()

	return nil
}

// openRepository picks the order store from REPO_BACKEND: "mem" (default)
// or "pg", which needs DB_DSN.
func (a *App) openRepository() (*Repository, error) {
	backend := getenv("REPO_BACKEND", "mem")
	switch backend {
	case "pg":
		dsn := getenv("DB_DSN", "")
		if dsn == "" {
			return nil, fmt.Errorf("DB_DSN is required for pg backend")
		}
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxIdleConns(5)
		db.SetMaxOpenConns(10)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		repository := NewPGRepository(db)
		if err := repository.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		a.db = db
		return repository, nil
	case "mem":
		a.logger.Info("using in-memory order store")
		return NewRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported REPO_BACKEND=%s", backend)
	}
}

func (a *App) Shutdown() {
	a.logger.Info("shutting down app...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.srv != nil {
		if err := a.srv.Shutdown(ctx); err != nil {
			a.logger.Error("shutting down http server", "err", err)
		}
	}

	a.wg.Wait()

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("closing database", "err", err)
		}
	}

	a.logger.Info("app stopped")
}
