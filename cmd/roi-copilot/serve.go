package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joelkehle/roi-copilot/internal/report"
	"github.com/joelkehle/roi-copilot/internal/session"
	"github.com/joelkehle/roi-copilot/internal/telemetry"
	"github.com/joelkehle/roi-copilot/internal/webapp"
)

const shutdownTimeout = 10 * time.Second

var (
	serveAddr   string
	serveWebDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and web UI",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveWebDir, "web-dir", "", "Serve UI assets from this directory instead of the embedded page")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveWebDir != "" {
		cfg.Server.WebDir = serveWebDir
	}

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     version,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing_shutdown_failed", zap.Error(err))
		}
	}()

	svc, err := buildServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	store := session.NewStore(session.Options{
		TTL:    cfg.Server.SessionTTL.Duration,
		Wizard: svc.wizardOptions(cfg.Server.SubmitDelay.Duration, logger.Named("copilot")),
		Log:    logger.Named("session"),
	})
	var limiter *webapp.RateLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = webapp.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow.Duration)
	}

	handler := webapp.NewServer(webapp.Options{
		Sessions:      store,
		Search:        svc.searchService(ctx, logger.Named("search")),
		PDF:           report.NewChromiumPDFRenderer(cfg.Report.ChromePath),
		Limiter:       limiter,
		WebDir:        cfg.Server.WebDir,
		SearchTimeout: cfg.AI.SearchTimeout.Duration,
		Log:           logger.Named("http"),
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		store.Run(gctx, cfg.Server.SweepInterval.Duration)
		return nil
	})
	if limiter != nil {
		g.Go(func() error {
			limiter.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("provider", svc.provider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting_down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
