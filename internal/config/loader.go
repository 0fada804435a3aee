package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"bizadmin/internal/backup"
)

const (
	// ConfigName is the config file name searched for without an explicit --config
	ConfigName = ".bizadmin"
	// EnvPrefix prefixes every environment override, e.g. BIZADMIN_BACKUP_DIR
	EnvPrefix = "BIZADMIN"
)

// Loader reads AppConfig through a viper instance
type Loader struct {
	viper *viper.Viper
}

// NewLoader wraps v, or a fresh viper instance when v is nil. Pass
// viper.GetViper() to see flags bound with viper.BindPFlag.
func NewLoader(v *viper.Viper) *Loader {
	if v == nil {
		v = viper.New()
	}
	return &Loader{viper: v}
}

// Viper returns the underlying viper instance
func (l *Loader) Viper() *viper.Viper {
	return l.viper
}

// Setup points viper at configFile, or at .bizadmin.yaml in the home
// directory and the working directory when configFile is empty
func (l *Loader) Setup(configFile string) error {
	var paths []string
	if configFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to resolve home directory: %w", err)
		}
		paths = []string{home, "."}
	}
	l.setup(configFile, paths)
	return nil
}

func (l *Loader) setup(configFile string, paths []string) {
	if configFile != "" {
		l.viper.SetConfigFile(configFile)
	} else {
		for _, path := range paths {
			l.viper.AddConfigPath(path)
		}
		l.viper.SetConfigType("yaml")
		l.viper.SetConfigName(ConfigName)
	}

	l.viper.SetEnvPrefix(EnvPrefix)
	l.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.viper.AutomaticEnv()

	l.setDefaults()
}

// setDefaults registers every key so environment overrides reach Unmarshal
func (l *Loader) setDefaults() {
	v := l.viper

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "")
	v.SetDefault("database.timeout", "30s")

	v.SetDefault("backup.dir", backup.DefaultDir)
	v.SetDefault("backup.max_backups", backup.DefaultMaxBackups)
	v.SetDefault("backup.compression_level", backup.DefaultCompressionLevel)
	v.SetDefault("backup.compression_algorithm", string(backup.DefaultCompressionAlgorithm))
	v.SetDefault("backup.encryption_key", "")
	v.SetDefault("backup.validation.strict", false)
	v.SetDefault("backup.scheduler.enabled", false)
	v.SetDefault("backup.scheduler.interval_hours", int(backup.DefaultSchedulerInterval/time.Hour))

	v.SetDefault("backup.mirror.provider", string(backup.MirrorProviderNone))
	v.SetDefault("backup.mirror.s3.bucket", "")
	v.SetDefault("backup.mirror.s3.region", "")
	v.SetDefault("backup.mirror.s3.access_key", "")
	v.SetDefault("backup.mirror.s3.secret_key", "")
	v.SetDefault("backup.mirror.s3.endpoint", "")
	v.SetDefault("backup.mirror.s3.prefix", "")
	v.SetDefault("backup.mirror.gcs.bucket", "")
	v.SetDefault("backup.mirror.gcs.credentials_path", "")
	v.SetDefault("backup.mirror.gcs.project_id", "")
	v.SetDefault("backup.mirror.gcs.prefix", "")
	v.SetDefault("backup.mirror.azure.account_name", "")
	v.SetDefault("backup.mirror.azure.account_key", "")
	v.SetDefault("backup.mirror.azure.container_name", "")
	v.SetDefault("backup.mirror.azure.prefix", "")

	v.SetDefault("backup.notifications.webhook.url", "")
	v.SetDefault("backup.notifications.webhook.method", "POST")
	v.SetDefault("backup.notifications.webhook.timeout", "10s")
	v.SetDefault("backup.notifications.webhook.min_level", "warn")

	v.SetDefault("http.listen", DefaultListen)
	v.SetDefault("http.api_token", "")
	v.SetDefault("http.shutdown_timeout", DefaultShutdownTimeout.String())

	v.SetDefault("log.level", "normal")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
}

// ReadInConfig reads the config file. A missing file in the search paths is
// not an error; a missing explicit --config file is.
func (l *Loader) ReadInConfig() error {
	if err := l.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// ConfigFileUsed returns the path of the file that was read, if any
func (l *Loader) ConfigFileUsed() string {
	return l.viper.ConfigFileUsed()
}

// Load unmarshals, defaults and validates the configuration
func (l *Loader) Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := l.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Sample returns the configuration written by `bizadmin config init`
func Sample() *AppConfig {
	cfg := Default()
	cfg.Database.Host = "localhost"
	cfg.Database.Username = "root"
	cfg.Database.Database = "business"
	cfg.Backup.CompressionLevel = backup.DefaultCompressionLevel
	cfg.Backup.Notifications.Webhook.Method = "POST"
	cfg.Backup.Notifications.Webhook.MinLevel = "warn"
	return cfg
}

const sampleHeader = `# bizadmin configuration
#
# Every key can be overridden with an environment variable, for example
#   BIZADMIN_DATABASE_PASSWORD=secret
#   BIZADMIN_BACKUP_ENCRYPTION_KEY=...
#   BIZADMIN_BACKUP_MIRROR_PROVIDER=s3
#
# backup.mirror.provider is one of none, s3, gcs, azure.

`

// WriteSample encodes cfg as commented YAML
func WriteSample(w io.Writer, cfg *AppConfig) error {
	if _, err := io.WriteString(w, sampleHeader); err != nil {
		return err
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	return encoder.Close()
}

// WriteSampleFile writes the sample configuration to path. An existing file
// is only replaced when force is set.
func WriteSampleFile(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	if err := WriteSample(f, Sample()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EnvironmentVariables lists the supported environment overrides
func EnvironmentVariables() []string {
	keys := viper.New()
	NewLoader(keys).setDefaults()

	vars := make([]string, 0, len(keys.AllKeys()))
	for _, key := range keys.AllKeys() {
		vars = append(vars, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	}
	sort.Strings(vars)
	return vars
}
