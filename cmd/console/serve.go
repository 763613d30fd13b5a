package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pitabwire/bazaar/internal/cache"
	"github.com/pitabwire/bazaar/internal/capability"
	"github.com/pitabwire/bazaar/internal/client"
	"github.com/pitabwire/bazaar/internal/config"
	"github.com/pitabwire/bazaar/internal/confirm"
	"github.com/pitabwire/bazaar/internal/events"
	"github.com/pitabwire/bazaar/internal/observability"
	"github.com/pitabwire/bazaar/internal/query"
	"github.com/pitabwire/bazaar/internal/session"
	"github.com/pitabwire/bazaar/internal/transport"
	"github.com/pitabwire/bazaar/internal/views"
	"github.com/pitabwire/bazaar/model"
)

const serviceName = "bazaar-console"

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the console HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if code := serve(cmd.Context(), opts.configPath); code != 0 {
				return exitCode(code)
			}
			return nil
		},
	}
}

func serve(parent context.Context, configPath string) int {
	if parent == nil {
		parent = context.Background()
	}

	// Step 1: Load configuration.
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	// Step 2: Initialize telemetry (logger, tracer, metrics).
	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, serviceName, version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.InitMetrics(reg)

	// Step 3: Connect shared stores.
	stores := newStoreSet(logger)
	defer stores.Close()

	// Step 4: Event bus and backend client.
	bus := events.NewBus()
	cancelUnauthorized := bus.Subscribe(func(evt model.Event) {
		if evt.Kind == model.EventUnauthorized {
			metrics.RecordUnauthorized(evt.Status)
		}
	})
	defer cancelUnauthorized()

	backend, err := client.New(cfg.Backend,
		client.WithNotifier(bus),
		client.WithMetrics(metrics),
		client.WithLogger(logger.Named("client")),
	)
	if err != nil {
		logger.Error("backend client initialization failed", zap.Error(err))
		return 1
	}

	// Step 5: Query cache and in-flight tracker.
	cacheStore, err := stores.queryCache(ctx, cfg.Cache)
	if err != nil {
		logger.Error("query cache initialization failed", zap.Error(err))
		return 1
	}
	qc := cache.New(cacheStore, cfg.Cache.TTL,
		cache.WithNotifier(bus),
		cache.WithMetrics(metrics),
		cache.WithLogger(logger.Named("cache")),
	)
	tracker := query.NewTracker(query.WithMetrics(metrics), query.WithLogger(logger.Named("query")))

	// Step 6: Capability resolver.
	evaluator, err := capability.NewStaticPolicyEvaluator(cfg.Capability.StaticPolicyFile)
	if err != nil {
		logger.Error("capability policy load failed", zap.Error(err))
		return 1
	}
	resolver := capability.NewResolver(evaluator, cfg.Capability.Cache.TTL,
		capability.WithMetrics(metrics),
		capability.WithMaxEntries(cfg.Capability.Cache.MaxEntries),
	)

	// Step 7: Sessions.
	codec, err := session.NewCodec(cfg.Session.Secret)
	if err != nil {
		logger.Error("session codec initialization failed", zap.Error(err))
		return 1
	}
	sessionStore, err := stores.sessions(ctx, cfg.Session.Store)
	if err != nil {
		logger.Error("session store initialization failed", zap.Error(err))
		return 1
	}
	sessions := session.NewManager(cfg.Session, sessionStore, codec,
		session.WithTracker(tracker),
		session.WithCapabilities(resolver),
		session.WithMetrics(metrics),
		session.WithLogger(logger.Named("session")),
	)
	defer sessions.Watch(bus)()

	// Step 8: Audit trail and confirmations.
	auditStore, err := stores.audit(ctx, cfg.Audit)
	if err != nil {
		logger.Error("audit store initialization failed", zap.Error(err))
		return 1
	}
	confirmStore, err := stores.confirmations(ctx, cfg.Confirmations.Store)
	if err != nil {
		logger.Error("confirmation store initialization failed", zap.Error(err))
		return 1
	}
	confirmOpts := []confirm.Option{
		confirm.WithMetrics(metrics),
		confirm.WithLogger(logger.Named("confirm")),
	}
	viewOpts := []views.Option{views.WithPageSize(cfg.Views.PageSize)}
	if auditStore != nil {
		confirmOpts = append(confirmOpts, confirm.WithAudit(auditStore))
		viewOpts = append(viewOpts, views.WithAudit(auditStore))
	}
	confirms := confirm.NewManager(confirmStore, cfg.Confirmations.TTL, confirmOpts...)

	// Step 9: Views.
	account := client.NewAccount(backend, qc)
	registry := views.NewRegistry(client.NewResources(backend, qc), account, tracker, viewOpts...)

	// Step 10: Event hub and login throttling.
	hub := transport.NewHub(cfg.Server.CORS.AllowedOrigins,
		transport.WithHubMetrics(metrics),
		transport.WithHubLogger(logger.Named("hub")),
	)
	defer hub.Attach(bus)()

	limiter := transport.NewRateLimiter(cfg.RateLimit, metrics)
	defer limiter.Stop()

	// Step 11: Build HTTP router.
	readiness := observability.ReadinessChecks{
		ViewsRegistered:   func() bool { return len(registry.Views()) > 0 },
		Backend:           backend,
		SessionStore:      sessions,
		QueryCache:        qc,
		ConfirmationStore: confirms,
	}
	if auditStore != nil {
		readiness.AuditStore = auditStore
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:        cfg,
		Logger:        logger,
		Metrics:       metrics,
		Gatherer:      reg,
		Sessions:      sessions,
		Capabilities:  resolver,
		Account:       account,
		Views:         registry,
		Confirmations: confirms,
		Hub:           hub,
		LoginLimiter:  limiter,
		Readiness:     readiness,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	// Step 12: Start HTTP server.
	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.Int("views", len(registry.Views())),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	// Graceful shutdown sequence.
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Event streams are hijacked and not drained by Shutdown.
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}
