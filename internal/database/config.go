package database

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

const (
	defaultPort    = 3306
	defaultTimeout = 30 * time.Second
)

// SessionVariables are set on every pooled connection. Backup literals only
// double single quotes, so backslashes must not act as escapes, and
// timestamp literals carry no zone so the session is pinned to UTC.
var SessionVariables = map[string]string{
	"sql_mode":  "CONCAT_WS(',', NULLIF(@@SESSION.sql_mode, ''), 'NO_BACKSLASH_ESCAPES')",
	"time_zone": "'+00:00'",
}

// DatabaseConfig holds the configuration parameters for the MySQL connection
type DatabaseConfig struct {
	Host     string        `mapstructure:"host" yaml:"host"`
	Port     int           `mapstructure:"port" yaml:"port"`
	Username string        `mapstructure:"username" yaml:"username"`
	Password string        `mapstructure:"password" yaml:"password"`
	Database string        `mapstructure:"database" yaml:"database"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SetDefaults fills in the port and timeout when unset
func (dc *DatabaseConfig) SetDefaults() {
	if dc.Port == 0 {
		dc.Port = defaultPort
	}
	if dc.Timeout <= 0 {
		dc.Timeout = defaultTimeout
	}
}

// Validate checks if the database configuration has all required parameters
func (dc *DatabaseConfig) Validate() error {
	var errs []error

	if dc.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if dc.Port <= 0 || dc.Port > 65535 {
		errs = append(errs, errors.New("port must be between 1 and 65535"))
	}
	if dc.Username == "" {
		errs = append(errs, errors.New("username is required"))
	}
	if dc.Database == "" {
		errs = append(errs, errors.New("database name is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("database configuration validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// DSN returns the Data Source Name for the MySQL driver. Times are parsed
// into time.Time in UTC and every connection runs with SessionVariables.
func (dc *DatabaseConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = dc.Username
	cfg.Passwd = dc.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port))
	cfg.DBName = dc.Database
	cfg.Timeout = dc.Timeout
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = make(map[string]string, len(SessionVariables))
	for name, value := range SessionVariables {
		cfg.Params[name] = value
	}
	return cfg.FormatDSN()
}

// String describes the target without credentials
func (dc *DatabaseConfig) String() string {
	return fmt.Sprintf("%s@%s:%d/%s", dc.Username, dc.Host, dc.Port, dc.Database)
}
