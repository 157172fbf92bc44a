package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-orgauth"
	"github.com/goliatone/go-orgauth/cache"
	"github.com/goliatone/go-orgauth/config"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long:  `Applies pending migrations, then serves the JSON API and, when enabled, the Prometheus metrics listener.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg, logger)
	},
}

func serve(ctx context.Context, cfg *config.Config, logger *config.SlogLogger) error {
	db, err := openDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if _, err := auth.Migrate(ctx, db); err != nil {
		return err
	}

	store, closeStore, err := gateStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	metrics := auth.NewMetrics()
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(registry); err != nil {
		return err
	}

	providers, err := auth.NewTokenProviders(cfg, auth.WithCodecLogger(logger.With("component", "tokens")))
	if err != nil {
		return err
	}

	gateOpts := append(cfg.TimeoutGateOptions(),
		auth.WithTimeoutGateMetrics(metrics),
		auth.WithTimeoutGateLogger(logger.With("component", "timeout_gate")),
	)

	templates, err := auth.NewMailTemplates(cfg.Mail.BaseURL)
	if err != nil {
		return err
	}

	mailer := auth.NewLoggingMailer(logger.With("component", "mailer"), auth.WithOutboxLimit(0))
	mailer.From = cfg.Mail.From

	deps := auth.Deps{
		Repo:      auth.NewRepositoryManager(db),
		Tokens:    providers,
		Gate:      auth.NewTimeoutGate(store, gateOpts...),
		Mailer:    mailer,
		Templates: templates,
		Activity:  auth.LoggingActivitySink(logger.With("component", "activity")),
		Logger:    logger,
		TTLs:      cfg.TokenTTLs(),
		Windows:   cfg.GateWindows(),
	}

	accounts, err := auth.NewAccounts(deps, auth.WithDerivedUserIDs(cfg.Server.DerivedUserIDs))
	if err != nil {
		return err
	}
	orgs, err := auth.NewOrganizationService(deps)
	if err != nil {
		return err
	}
	projects, err := auth.NewProjectService(deps)
	if err != nil {
		return err
	}

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return fiber.New(fiber.Config{
			AppName:               "orgauthd",
			DisableStartupMessage: true,
		})
	})

	gate := auth.NewAuthenticationGate(providers.Session,
		auth.WithTrustTiers(cfg.TrustTiers()),
		auth.WithGateMetrics(metrics),
		auth.WithGateLogger(logger.With("component", "gate")),
	)

	r := srv.Router()
	r.Use(gate.Middleware())

	controller := auth.NewHTTPController(accounts, orgs, projects,
		auth.WithControllerLogger(logger.With("component", "http")),
		auth.WithControllerClientIdentifier(gate.ClientID),
	)
	controller.RegisterRoutes(r)

	go func() {
		logger.Info("listening on %s", cfg.Server.Addr)
		if err := srv.Serve(cfg.Server.Addr); err != nil {
			logger.Error("http server stopped: %v", err)
		}
	}()

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		go func() {
			logger.Info("metrics listening on %s", cfg.Metrics.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped: %v", err)
			}
		}()
	}

	sig := WaitExitSignal()
	logger.Info("received %s, shutting down", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown: %v", err)
		}
	}
	return srv.Shutdown(shutdownCtx)
}

// gateStore returns the Redis store when enabled, else process memory.
func gateStore(ctx context.Context, cfg *config.Config) (auth.CacheStore, func(), error) {
	if !cfg.Redis.Enabled {
		store := cache.NewMemoryStore()
		return store, func() { _ = store.Close() }, nil
	}

	store, err := cache.NewRedisStore(ctx, cfg.RedisStoreConfig())
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}
