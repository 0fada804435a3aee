// Package config assembles the application configuration from a YAML file,
// BIZADMIN_ environment variables and command line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"bizadmin/internal/backup"
	"bizadmin/internal/database"
	"bizadmin/internal/logging"
)

const (
	// DefaultListen is the HTTP listen address used by `bizadmin serve`
	DefaultListen = ":8080"
	// DefaultShutdownTimeout bounds the HTTP drain on shutdown
	DefaultShutdownTimeout = 15 * time.Second
)

// AppConfig is the complete application configuration
type AppConfig struct {
	Database database.DatabaseConfig `mapstructure:"database" yaml:"database"`
	Backup   backup.Config           `mapstructure:"backup" yaml:"backup"`
	HTTP     HTTPConfig              `mapstructure:"http" yaml:"http"`
	Log      LogConfig               `mapstructure:"log" yaml:"log"`
}

// HTTPConfig configures the admin HTTP surface
type HTTPConfig struct {
	Listen          string        `mapstructure:"listen" yaml:"listen"`
	APIToken        string        `mapstructure:"api_token" yaml:"api_token"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LogConfig configures the structured logger
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// SetDefaults fills every unset field with its default
func (c *AppConfig) SetDefaults() {
	c.Database.SetDefaults()
	c.Backup.SetDefaults()

	if c.HTTP.Listen == "" {
		c.HTTP.Listen = DefaultListen
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = string(logging.LogLevelNormal)
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks the backup, http and log sections. The database section is
// checked separately by ValidateDatabase since only some commands connect.
func (c *AppConfig) Validate() error {
	var errors backup.ValidationErrors

	if err := c.Backup.Validate(); err != nil {
		if validationErrs, ok := err.(backup.ValidationErrors); ok {
			errors = append(errors, validationErrs...)
		} else {
			errors.Add("backup", err.Error(), nil)
		}
	}

	if strings.TrimSpace(c.HTTP.Listen) == "" {
		errors.Add("http.listen", "listen address is required", c.HTTP.Listen)
	}

	switch logging.LogLevel(strings.ToLower(c.Log.Level)) {
	case logging.LogLevelQuiet, logging.LogLevelNormal, logging.LogLevelVerbose, logging.LogLevelDebug:
	default:
		errors.Add("log.level", "must be one of quiet, normal, verbose, debug", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errors.Add("log.format", "must be text or json", c.Log.Format)
	}

	if errors.HasErrors() {
		return errors
	}
	return nil
}

// ValidateDatabase checks the connection settings
func (c *AppConfig) ValidateDatabase() error {
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

// LoggerConfig converts the log section into a logging.Config
func (c *AppConfig) LoggerConfig() logging.Config {
	return logging.Config{
		Level:   logging.ParseLevel(c.Log.Level),
		Format:  strings.ToLower(c.Log.Format),
		LogFile: c.Log.File,
	}
}

// ManagerConfig derives the backup manager settings
func (c *AppConfig) ManagerConfig() backup.ManagerConfig {
	return backup.ManagerConfig{
		Dir:              c.Backup.Dir,
		MaxBackups:       c.Backup.MaxBackups,
		StrictValidation: c.Backup.Validation.Strict,
	}
}

// Default returns a configuration with every default applied
func Default() *AppConfig {
	c := &AppConfig{}
	c.SetDefaults()
	return c
}
