package backup

import (
	"fmt"
	"time"
)

// MirrorProvider names an off-host mirror backend
type MirrorProvider string

const (
	MirrorProviderNone  MirrorProvider = "none"
	MirrorProviderS3    MirrorProvider = "s3"
	MirrorProviderGCS   MirrorProvider = "gcs"
	MirrorProviderAzure MirrorProvider = "azure"
)

// Config represents the complete backup subsystem configuration
type Config struct {
	Dir                  string             `mapstructure:"dir" yaml:"dir"`
	MaxBackups           int                `mapstructure:"max_backups" yaml:"max_backups"`
	CompressionLevel     int                `mapstructure:"compression_level" yaml:"compression_level"`
	CompressionAlgorithm CompressionType    `mapstructure:"compression_algorithm" yaml:"compression_algorithm"`
	EncryptionKey        string             `mapstructure:"encryption_key" yaml:"encryption_key,omitempty"`
	Validation           ValidationConfig   `mapstructure:"validation" yaml:"validation"`
	Scheduler            SchedulerConfig    `mapstructure:"scheduler" yaml:"scheduler"`
	Mirror               MirrorConfig       `mapstructure:"mirror" yaml:"mirror"`
	Notifications        NotificationConfig `mapstructure:"notifications" yaml:"notifications"`
}

// ValidationConfig controls the restore script validator
type ValidationConfig struct {
	Strict bool `mapstructure:"strict" yaml:"strict"`
}

// SchedulerConfig controls the auto backup scheduler
type SchedulerConfig struct {
	Enabled       bool `mapstructure:"enabled" yaml:"enabled"`
	IntervalHours int  `mapstructure:"interval_hours" yaml:"interval_hours"`
}

// Interval returns the configured period
func (sc SchedulerConfig) Interval() time.Duration {
	return time.Duration(sc.IntervalHours) * time.Hour
}

// NotificationConfig configures extra notification sinks
type NotificationConfig struct {
	Webhook WebhookConfig `mapstructure:"webhook" yaml:"webhook"`
}

// MirrorConfig selects and configures the mirror backend
type MirrorConfig struct {
	Provider MirrorProvider `mapstructure:"provider" yaml:"provider"`
	S3       S3Config       `mapstructure:"s3" yaml:"s3,omitempty"`
	GCS      GCSConfig      `mapstructure:"gcs" yaml:"gcs,omitempty"`
	Azure    AzureConfig    `mapstructure:"azure" yaml:"azure,omitempty"`
}

// S3Config for Amazon S3 and S3-compatible storage
type S3Config struct {
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Region    string `mapstructure:"region" yaml:"region"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix,omitempty"`
}

// GCSConfig for Google Cloud Storage
type GCSConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	CredentialsPath string `mapstructure:"credentials_path" yaml:"credentials_path"`
	ProjectID       string `mapstructure:"project_id" yaml:"project_id"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix,omitempty"`
}

// AzureConfig for Azure Blob Storage
type AzureConfig struct {
	AccountName   string `mapstructure:"account_name" yaml:"account_name"`
	AccountKey    string `mapstructure:"account_key" yaml:"account_key"`
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	Prefix        string `mapstructure:"prefix" yaml:"prefix,omitempty"`
}

// DefaultConfig returns a configuration with every default applied
func DefaultConfig() Config {
	var c Config
	c.SetDefaults()
	return c
}

// SetDefaults sets default values for unset fields
func (c *Config) SetDefaults() {
	if c.Dir == "" {
		c.Dir = DefaultDir
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = DefaultMaxBackups
	}
	if c.CompressionAlgorithm == "" {
		c.CompressionAlgorithm = DefaultCompressionAlgorithm
	}
	if c.Scheduler.IntervalHours == 0 {
		c.Scheduler.IntervalHours = int(DefaultSchedulerInterval / time.Hour)
	}
	if c.Mirror.Provider == "" {
		c.Mirror.Provider = MirrorProviderNone
	}
}

// Validate validates the backup configuration
func (c *Config) Validate() error {
	var errors ValidationErrors

	if c.Dir == "" {
		errors.Add("backup.dir", "backup directory is required", c.Dir)
	}
	if c.MaxBackups < 1 {
		errors.Add("backup.max_backups", "must be at least 1", c.MaxBackups)
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 9 {
		errors.Add("backup.compression_level", "must be between 0 and 9", c.CompressionLevel)
	}
	if _, ok := ParseCompressionType(string(c.CompressionAlgorithm)); !ok {
		errors.Add("backup.compression_algorithm", "must be one of gzip, zstd, lz4", c.CompressionAlgorithm)
	}
	if c.Scheduler.IntervalHours < 1 || c.Scheduler.IntervalHours > 168 {
		errors.Add("backup.scheduler.interval_hours", "must be between 1 and 168", c.Scheduler.IntervalHours)
	}
	if err := c.Mirror.Validate(); err != nil {
		if validationErrs, ok := err.(ValidationErrors); ok {
			errors = append(errors, validationErrs...)
		} else {
			errors.Add("backup.mirror", err.Error(), nil)
		}
	}

	if errors.HasErrors() {
		return errors
	}
	return nil
}

// Validate checks the block of the selected provider only
func (mc *MirrorConfig) Validate() error {
	var errors ValidationErrors

	switch mc.Provider {
	case "", MirrorProviderNone:
		return nil
	case MirrorProviderS3:
		if mc.S3.Bucket == "" {
			errors.Add("backup.mirror.s3.bucket", "S3 bucket name is required", mc.S3.Bucket)
		}
		if mc.S3.Region == "" {
			errors.Add("backup.mirror.s3.region", "S3 region is required", mc.S3.Region)
		}
		if mc.S3.AccessKey == "" {
			errors.Add("backup.mirror.s3.access_key", "S3 access key is required", nil)
		}
		if mc.S3.SecretKey == "" {
			errors.Add("backup.mirror.s3.secret_key", "S3 secret key is required", nil)
		}
	case MirrorProviderGCS:
		if mc.GCS.Bucket == "" {
			errors.Add("backup.mirror.gcs.bucket", "GCS bucket name is required", mc.GCS.Bucket)
		}
		if mc.GCS.ProjectID == "" {
			errors.Add("backup.mirror.gcs.project_id", "GCS project ID is required", mc.GCS.ProjectID)
		}
	case MirrorProviderAzure:
		if mc.Azure.AccountName == "" {
			errors.Add("backup.mirror.azure.account_name", "Azure account name is required", mc.Azure.AccountName)
		}
		if mc.Azure.AccountKey == "" {
			errors.Add("backup.mirror.azure.account_key", "Azure account key is required", nil)
		}
		if mc.Azure.ContainerName == "" {
			errors.Add("backup.mirror.azure.container_name", "Azure container name is required", mc.Azure.ContainerName)
		}
	default:
		errors.Add("backup.mirror.provider", fmt.Sprintf("unsupported mirror provider: %s", mc.Provider), mc.Provider)
	}

	if errors.HasErrors() {
		return errors
	}
	return nil
}

func objectPrefix(prefix string) string {
	if prefix == "" {
		return "backups/"
	}
	if prefix[len(prefix)-1] != '/' {
		return prefix + "/"
	}
	return prefix
}
