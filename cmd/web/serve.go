package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/xid"
	"github.com/urfave/cli/v2"

	"xfive/internal/auth"
	"xfive/internal/config"
	"xfive/internal/export"
	"xfive/internal/handlers"
	"xfive/internal/scheduler"
	"xfive/internal/store"
	"xfive/internal/telemetry"
	"xfive/internal/tournament"
	"xfive/pkg/realtime"
)

const shutdownTimeout = 10 * time.Second

func serve(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	base, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	bus := realtime.NewBus[tournament.Change](xid.New().String(), logger)
	defer bus.Close()
	hub := realtime.NewHub[tournament.Change]()
	defer hub.Close()
	go func() {
		if err := bus.Run(ctx, hub); err != nil {
			logger.Error("Change bus stopped", slog.Any("error", err))
		}
	}()
	if err := startRelay(ctx, cfg, bus, logger); err != nil {
		return err
	}

	metrics := telemetry.NewMetrics()
	engine := tournament.NewEngine(
		store.WithNotifications(base, bus, logger),
		tournament.WithLogger(logger),
		tournament.WithMetrics(metrics),
		tournament.WithTracer(telemetry.Tracer("xfive/tournament")),
	)

	sched, err := scheduler.New(engine, cfg.Reconcile.Interval, logger)
	if err != nil {
		return err
	}
	sched.Start()
	defer func() {
		if err := sched.Shutdown(); err != nil {
			logger.Error("Scheduler shutdown failed", slog.Any("error", err))
		}
	}()

	var archiver handlers.Archiver
	if cfg.Archive.Enabled() {
		a, err := export.NewArchiver(ctx, cfg.Archive, cfg.Games)
		if err != nil {
			return err
		}
		archiver = a
	}

	router, err := newRouter(cfg, engine, tournament.NewFeed(engine, hub.All()), metrics, archiver, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
		// Streams end with the process context instead of holding Shutdown open.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening", slog.String("addr", cfg.HTTP.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func startRelay(ctx context.Context, cfg *config.Config, bus *realtime.Bus[tournament.Change], logger *slog.Logger) error {
	if cfg.NATS.URL == "" {
		return nil
	}
	nc, err := realtime.ConnectNATS(cfg.NATS.URL, "xfive-"+bus.Origin())
	if err != nil {
		return err
	}
	relay := realtime.NewNATSRelay(nc, cfg.NATS.Subject, bus, logger)
	go func() {
		defer nc.Close()
		if err := relay.Run(ctx); err != nil {
			logger.Error("NATS relay stopped", slog.Any("error", err))
		}
	}()
	return nil
}

func newRouter(cfg *config.Config, engine *tournament.Engine, feed *tournament.Feed, metrics *telemetry.Metrics, archiver handlers.Archiver, logger *slog.Logger) (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(logger.Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)

	staticFS, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		return nil, err
	}
	r.Mount("/static", http.StripPrefix("/static", http.FileServer(http.FS(staticFS))))
	r.Handle("/metrics", metrics.Handler())

	sessions := auth.NewSessions(cfg.Admin.User, cfg.Admin.Pass, cfg.SessionSecret(), cfg.Admin.SessionTTL)
	limiter := auth.NewIPRateLimiter(cfg.Admin.LoginRate, cfg.Admin.LoginBurst)

	handlers.NewStreamHandler(feed, metrics, cfg.Games, logger).RegisterRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		handlers.NewViewerHandler(engine, sessions, cfg.Games, cfg.HTTP.BaseURL, logger).RegisterRoutes(r)
		handlers.NewAPIHandler(engine, logger).RegisterRoutes(r)
		handlers.NewAdminHandler(engine, sessions, limiter, archiver, cfg.Games, logger).RegisterRoutes(r)
	})
	return r, nil
}
