package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bizadmin/internal/api"
	"bizadmin/internal/backup"
	apperrors "bizadmin/internal/errors"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the backup API",
	Long: `Serve the backup management API over HTTP.

Routes:
  GET    /api/backup            list backups
  POST   /api/backup            create a backup
  DELETE /api/backup?fileName=  delete a backup
  PUT    /api/backup            restore a backup
  PATCH  /api/backup            start or stop the auto backup scheduler
  GET    /api/backup/scheduler  scheduler status
  GET    /healthz               liveness
  GET    /metrics               Prometheus metrics

When http.api_token is set every /api route requires a matching X-API-Key
header. The auto backup scheduler starts with the server when
backup.scheduler.enabled is true.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", "", "listen address (default http.listen)")
	serveCmd.Flags().Bool("scheduler", false, "start the auto backup scheduler")
	serveCmd.Flags().Int("interval-hours", 0, "auto backup interval in hours (default backup.scheduler.interval_hours)")

	viper.BindPFlag("http.listen", serveCmd.Flags().Lookup("listen"))
	viper.BindPFlag("backup.scheduler.enabled", serveCmd.Flags().Lookup("scheduler"))
	viper.BindPFlag("backup.scheduler.interval_hours", serveCmd.Flags().Lookup("interval-hours"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := newApp(ctx, appOptions{connect: true, registry: registry})
	if err != nil {
		return err
	}
	logger := a.logger

	shutdown := apperrors.NewGracefulShutdownHandler()
	shutdown.RegisterShutdownFunc(func() error {
		a.Close()
		return nil
	})

	scheduler := backup.NewScheduler(a.manager, logger, a.metrics)
	shutdown.RegisterShutdownFunc(func() error {
		scheduler.Stop()
		return nil
	})
	if a.config.Backup.Scheduler.Enabled {
		if err := scheduler.Start(a.config.Backup.Scheduler.Interval()); err != nil {
			shutdown.Shutdown()
			return fmt.Errorf("failed to start auto backup: %w", err)
		}
	}

	handler := api.NewHandler(a.manager, scheduler, logger)
	router := api.NewRouter(handler, api.RouterConfig{
		APIToken:    a.config.HTTP.APIToken,
		Gatherer:    registry,
		HTTPMetrics: api.NewHTTPMetrics(registry),
	})
	server := api.NewServer(a.config.HTTP.Listen, router)

	shutdown.RegisterShutdownFunc(func() error {
		logger.Info("Shutting down HTTP server")
		cancel()
		drainCtx, drainCancel := context.WithTimeout(context.Background(), a.config.HTTP.ShutdownTimeout)
		defer drainCancel()
		return server.Shutdown(drainCtx)
	})

	shutdown.Start()
	defer shutdown.Stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.WithFields(map[string]interface{}{
			"listen":    a.config.HTTP.Listen,
			"database":  a.config.Database.Database,
			"scheduler": a.config.Backup.Scheduler.Enabled,
			"auth":      a.config.HTTP.APIToken != "",
		}).Info("Backup API listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			shutdown.Shutdown()
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		<-shutdown.Done()
	case <-shutdown.Done():
	}

	logger.Info("Server stopped")
	return nil
}
