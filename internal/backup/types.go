package backup

import (
	"time"
)

const (
	// DefaultMaxBackups is the retention cap applied when none is configured
	DefaultMaxBackups = 10
	// DefaultDir is the artifact store used when none is configured
	DefaultDir = "./backups"
	// DefaultCompressionLevel is the level used by scheduled backups
	DefaultCompressionLevel = 6
	// DefaultCompressionAlgorithm is used when no algorithm is requested
	DefaultCompressionAlgorithm = CompressionTypeGzip
	// DefaultSchedulerInterval is the auto backup period
	DefaultSchedulerInterval = 24 * time.Hour
)

// CompressionType represents the compression algorithm of an artifact
type CompressionType string

const (
	CompressionTypeNone CompressionType = "none"
	CompressionTypeGzip CompressionType = "gzip"
	CompressionTypeLZ4  CompressionType = "lz4"
	CompressionTypeZstd CompressionType = "zstd"
)

// ParseCompressionType accepts the algorithms a backup can be written with.
// An empty name selects DefaultCompressionAlgorithm.
func ParseCompressionType(name string) (CompressionType, bool) {
	switch CompressionType(name) {
	case "":
		return DefaultCompressionAlgorithm, true
	case CompressionTypeGzip, CompressionTypeZstd, CompressionTypeLZ4:
		return CompressionType(name), true
	default:
		return "", false
	}
}

// Artifact describes one stored backup file
type Artifact struct {
	Name       string          `json:"name" yaml:"name"`
	Path       string          `json:"path" yaml:"path"`
	Size       int64           `json:"size" yaml:"size"`
	CreatedAt  time.Time       `json:"createdAt" yaml:"created_at"`
	Compressed bool            `json:"compressed" yaml:"compressed"`
	Encrypted  bool            `json:"encrypted" yaml:"encrypted"`
	Algorithm  CompressionType `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
}

// BackupOptions controls what a backup run includes and how it is encoded
type BackupOptions struct {
	IncludeSchema    bool            `json:"includeSchema"`
	IncludeData      bool            `json:"includeData"`
	CompressionLevel int             `json:"compressionLevel"`
	Algorithm        CompressionType `json:"compressionAlgorithm,omitempty"`
	Encrypt          bool            `json:"encrypt"`
	EncryptionKey    string          `json:"-"`
}

// DefaultBackupOptions returns the option set used by scheduled backups
func DefaultBackupOptions() BackupOptions {
	return BackupOptions{
		IncludeSchema:    true,
		IncludeData:      true,
		CompressionLevel: DefaultCompressionLevel,
	}
}

// Validate checks the compression settings and the encryption key requirement
func (o BackupOptions) Validate() error {
	var errs ValidationErrors

	if o.CompressionLevel < 0 || o.CompressionLevel > 9 {
		errs.Add("compressionLevel", "must be between 0 and 9", o.CompressionLevel)
	}
	if _, ok := ParseCompressionType(string(o.Algorithm)); !ok {
		errs.Add("compressionAlgorithm", "must be one of gzip, zstd, lz4", o.Algorithm)
	}
	if o.Encrypt && o.EncryptionKey == "" {
		errs.Add("encryptionKey", "is required when encryption is enabled", nil)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// RestoreOptions controls a restore run
type RestoreOptions struct {
	OverwriteExisting bool   `json:"overwriteExisting"`
	ValidateData      bool   `json:"validateData"`
	EncryptionKey     string `json:"-"`
	StrictValidation  bool   `json:"strictValidation"`
}

// StatementResult records the outcome of one replayed statement
type StatementResult struct {
	Index     int    `json:"index"`
	SQL       string `json:"sql"`
	Succeeded bool   `json:"succeeded"`
	Conflict  bool   `json:"conflict,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RestoreResult is the per-statement log of a restore run
type RestoreResult struct {
	Artifact      string            `json:"artifact"`
	Statements    []StatementResult `json:"statements"`
	DroppedTables []string          `json:"droppedTables,omitempty"`
	Warnings      []string          `json:"warnings,omitempty"`
	Succeeded     int               `json:"succeeded"`
	Failed        int               `json:"failed"`
	Duration      time.Duration     `json:"duration"`
}

// FailedStatements returns only the statements that did not apply
func (r *RestoreResult) FailedStatements() []StatementResult {
	var failed []StatementResult
	for _, stmt := range r.Statements {
		if !stmt.Succeeded {
			failed = append(failed, stmt)
		}
	}
	return failed
}

func (r *RestoreResult) record(stmt StatementResult) {
	r.Statements = append(r.Statements, stmt)
	if stmt.Succeeded {
		r.Succeeded++
	} else {
		r.Failed++
	}
}

// SchedulerStatus reports the state of the auto backup scheduler
type SchedulerStatus struct {
	Running  bool          `json:"running"`
	Interval time.Duration `json:"interval"`
	NextRun  *time.Time    `json:"nextRun,omitempty"`
	LastRun  *time.Time    `json:"lastRun,omitempty"`
	LastErr  string        `json:"lastError,omitempty"`
}
