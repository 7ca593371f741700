package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/nepjol-importer/internal/nepjol"
	"github.com/JakeFAU/nepjol-importer/internal/status"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the import control API",
		Long: `Starts the HTTP API for starting, stopping and polling imports. When
schedule.cron is set, runs are also started on that schedule.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx, stop := context.WithCancel(cmd.Context())
			defer stop()
			logger := a.Logger()

			scheduler, err := startScheduler(ctx, a.Config.Schedule.Cron, a.Service, a.Config.RunDefaults(), logger)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", a.Config.Server.Port),
				Handler:           a.Server().Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			serveErr := make(chan error, 1)
			go func() {
				logger.Info("http server started", zap.Int("port", a.Config.Server.Port))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case <-ctx.Done():
			case err = <-serveErr:
				if err != nil {
					logger.Error("http server error", zap.Error(err))
				}
			}
			logger.Info("shutdown initiated")

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if scheduler != nil {
				<-scheduler.Stop().Done()
			}
			if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
				logger.Error("server shutdown error", zap.Error(shutdownErr))
			}
			if _, stopErr := a.Service.Stop(shutdownCtx); stopErr != nil {
				logger.Warn("stop active run", zap.Error(stopErr))
			}
			a.Service.Wait()
			logger.Info("shutdown complete")
			if err != nil {
				return fmt.Errorf("serve http: %w", err)
			}
			return nil
		},
	}
}

type runStarter interface {
	Start(ctx context.Context, opts nepjol.RunOptions) (status.Status, error)
}

// startScheduler registers a cron job that starts runs with the configured
// defaults. An empty spec disables scheduling and returns a nil scheduler.
func startScheduler(ctx context.Context, spec string, svc runStarter, opts nepjol.RunOptions, logger *zap.Logger) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { scheduledRun(ctx, svc, opts, logger) }); err != nil {
		return nil, fmt.Errorf("parse schedule.cron %q: %w", spec, err)
	}
	c.Start()
	logger.Info("scheduled imports enabled", zap.String("cron", spec))
	return c, nil
}

func scheduledRun(ctx context.Context, svc runStarter, opts nepjol.RunOptions, logger *zap.Logger) {
	st, err := svc.Start(ctx, opts)
	switch {
	case errors.Is(err, status.ErrRunInProgress):
		logger.Info("scheduled import skipped; a run is already active")
	case err != nil:
		logger.Error("scheduled import failed to start", zap.Error(err))
	default:
		logger.Info("scheduled import started", zap.String("run_id", st.RunID))
	}
}
