package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/milanbella/sa-oauth/auth"
	"github.com/milanbella/sa-oauth/config"
	"github.com/milanbella/sa-oauth/db"
	"github.com/milanbella/sa-oauth/logger"
	"github.com/milanbella/sa-oauth/session"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the authorization server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending database migrations before serving")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, migrate bool) error {
	sqlDB, err := db.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			logger.LogErr(fmt.Errorf("close db: %w", err))
		}
	}()

	if migrate {
		if _, err := db.Migrate(ctx, sqlDB, cfg.Database.Driver); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router, err := newRouter(cfg, sqlDB, reg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening on %s", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func newRouter(cfg *config.Config, sqlDB *sql.DB, reg *prometheus.Registry) (http.Handler, error) {
	metrics, err := auth.NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	store := auth.NewStore(sqlDB)
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	clients := auth.NewClientDirectory(store)
	codes := auth.NewCodeStore(store, auth.NewRandomGenerator(), cfg.Auth.CodeTTL, auth.WithMetrics(metrics))
	issuer := auth.NewTokenIssuer(
		store,
		codes,
		store,
		auth.NewRandomGenerator(),
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
		auth.WithMetrics(metrics),
	)

	sessionManager := session.NewManager(sqlDB)
	mux := http.NewServeMux()

	mux.HandleFunc("/hello", getHelloHandler)
	mux.HandleFunc("/healthz", healthHandler(sqlDB))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}))

	// Only browser-facing routes carry a cookie session.
	mux.Handle("/auth/authorize", sessionManager.Middleware(auth.NewAuthorizationHandler(store, clients, codes, cfg.Auth.LoginPath)))
	mux.Handle("/auth/login", sessionManager.Middleware(auth.NewLoginHandler(store, hasher, sessionManager)))

	mux.Handle("/auth/token", auth.NewTokenHandler(clients, auth.NewSecretVerifier(hasher), issuer))
	mux.Handle("/auth/tokeninfo", auth.RequireBearer(issuer, http.HandlerFunc(auth.TokenInfoHandler)))

	return logRequests(mux), nil
}

func getHelloHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	_, _ = w.Write([]byte("Hello!"))
}

func healthHandler(sqlDB *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := sqlDB.PingContext(ctx); err != nil {
			logger.Error(fmt.Errorf("health check: %w", err))
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		logger.Get().Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
