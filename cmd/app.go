package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"bizadmin/internal/backup"
	"bizadmin/internal/config"
	"bizadmin/internal/database"
	"bizadmin/internal/logging"
)

// app bundles what every backup command needs
type app struct {
	config  *config.AppConfig
	logger  *logging.Logger
	db      *sql.DB
	catalog *database.Catalog
	manager *backup.Manager
	metrics *backup.Metrics
	service *database.Service
}

type appOptions struct {
	// connect opens the database; list and delete work on the store alone
	connect bool
	// registry receives backup metrics when set
	registry prometheus.Registerer
}

// newApp loads the configuration and wires the backup manager with its
// mirror, notifiers and metrics
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{config: cfg, logger: logger, service: database.NewServiceWithLogger(logger)}

	var db backup.Database
	if opts.connect {
		if err := cfg.ValidateDatabase(); err != nil {
			return nil, fmt.Errorf("configuration error: %w", err)
		}
		a.db, err = a.service.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.catalog = database.NewCatalog(a.db, logger)
		db = a.catalog
	}

	mirror, err := backup.NewMirror(ctx, cfg.Backup.Mirror)
	if err != nil {
		a.Close()
		return nil, err
	}

	managerOpts := []backup.ManagerOption{
		backup.WithLogger(logger),
		backup.WithNotifier(newNotifier(cfg, logger)),
	}
	if mirror != nil {
		managerOpts = append(managerOpts, backup.WithMirror(mirror))
		logger.WithField("provider", mirror.Provider()).Debug("Backup mirror enabled")
	}
	if opts.registry != nil {
		a.metrics = backup.NewMetrics(opts.registry)
		managerOpts = append(managerOpts, backup.WithMetrics(a.metrics))
	}

	a.manager = backup.NewManager(db, cfg.ManagerConfig(), managerOpts...)
	return a, nil
}

// newNotifier always logs and additionally posts to the webhook when one is
// configured
func newNotifier(cfg *config.AppConfig, logger *logging.Logger) backup.Notifier {
	logNotifier := backup.NewLogNotifier(logger)
	if cfg.Backup.Notifications.Webhook.URL == "" {
		return logNotifier
	}
	return backup.MultiNotifier{
		logNotifier,
		backup.NewWebhookNotifier(logger, cfg.Backup.Notifications.Webhook),
	}
}

// Close releases the database connection
func (a *app) Close() {
	if a.db != nil {
		if err := a.service.Close(a.db); err != nil {
			a.logger.WithField("error", err.Error()).Warn("Failed to close database connection")
		}
		a.db = nil
	}
}
