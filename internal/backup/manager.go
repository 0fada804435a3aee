package backup

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"bizadmin/internal/logging"
)

// maxNameAttempts bounds the regenerate loop on artifact name collisions
const maxNameAttempts = 100

// ManagerConfig holds the settings a Manager is built from
type ManagerConfig struct {
	Dir              string
	MaxBackups       int
	StrictValidation bool
}

// ManagerOption customizes a Manager
type ManagerOption func(*Manager)

// WithMirror mirrors created and deleted artifacts to m
func WithMirror(mirror Mirror) ManagerOption {
	return func(m *Manager) { m.mirror = mirror }
}

// WithNotifier replaces the default log notifier
func WithNotifier(notifier Notifier) ManagerOption {
	return func(m *Manager) { m.notifier = notifier }
}

// WithMetrics records backup and restore runs in metrics
func WithMetrics(metrics *Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// WithLogger sets the structured logger
func WithLogger(logger *logging.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithClock overrides the time source used for artifact names and headers
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// Manager orchestrates backup creation, listing, deletion and restore over
// one database and one artifact store
type Manager struct {
	db        Database
	store     *LocalStore
	codec     *Codec
	retention *RetentionManager
	strict    bool

	mirror   Mirror
	notifier Notifier
	metrics  *Metrics
	logger   *logging.Logger
	now      func() time.Time
	sleep    func(time.Duration)
}

// NewManager creates a manager for db storing artifacts as configured
func NewManager(db Database, config ManagerConfig, opts ...ManagerOption) *Manager {
	m := &Manager{
		db:     db,
		store:  NewLocalStore(config.Dir),
		strict: config.StrictValidation,
		now:    time.Now,
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = logging.NewNopLogger()
	}
	if m.notifier == nil {
		m.notifier = NewLogNotifier(m.logger)
	}

	m.codec = NewCodec(NewCompressionManager(), NewEncryptionManager(), m.notifier)
	m.retention = NewRetentionManager(m.store, config.MaxBackups, m.mirror, m.notifier)
	return m
}

// Store returns the artifact store
func (m *Manager) Store() *LocalStore {
	return m.store
}

// Retention returns the retention manager
func (m *Manager) Retention() *RetentionManager {
	return m.retention
}

func (m *Manager) serializer() *Serializer {
	s := NewSerializer(m.db, NewIntrospector(m.db, m.notifier), m.notifier)
	s.now = m.now
	return s
}

// CreateBackup serializes the database, encodes the script and stores it
// under a fresh artifact name, then applies retention and mirrors the bytes
func (m *Manager) CreateBackup(ctx context.Context, opts BackupOptions) (*Artifact, error) {
	startTime := time.Now()

	artifact, err := m.createBackup(ctx, opts)
	duration := time.Since(startTime)

	if err != nil {
		m.metrics.RecordBackup(duration, 0, err)
		m.logger.LogBackupCreated("", 0, false, false, duration, err)
		notify(m.notifier, levelError, "Backup creation failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	m.metrics.RecordBackup(duration, artifact.Size, nil)
	m.logger.LogBackupCreated(artifact.Name, artifact.Size, artifact.Compressed, artifact.Encrypted, duration, nil)
	return artifact, nil
}

func (m *Manager) createBackup(ctx context.Context, opts BackupOptions) (*Artifact, error) {
	if err := opts.Validate(); err != nil {
		return nil, NewValidationError("invalid backup options", err)
	}
	if err := m.store.EnsureDir(); err != nil {
		return nil, err
	}

	script, err := m.serializer().BuildScript(ctx, opts.IncludeSchema, opts.IncludeData)
	if err != nil {
		return nil, err
	}

	encoded, err := m.codec.Encode(script, opts)
	if err != nil {
		return nil, err
	}

	artifact, err := m.write(encoded.Data)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"artifact":   artifact.Name,
		"size":       artifact.Size,
		"checksum":   CalculateChecksum(encoded.Data),
		"compressed": artifact.Compressed,
		"encrypted":  artifact.Encrypted,
	}
	if encoded.Compression != nil {
		fields["compression_ratio"] = encoded.Compression.CompressionRatio
	}
	notify(m.notifier, levelInfo, "Backup created successfully", fields)

	m.applyRetention(ctx)
	m.upload(ctx, artifact.Name, encoded.Data)
	return artifact, nil
}

// write stores data under a new name, regenerating the name after a short
// pause while it collides with an existing artifact
func (m *Manager) write(data []byte) (*Artifact, error) {
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := ArtifactName(m.now())

		artifact, err := m.store.Create(name, data)
		if err == nil {
			return artifact, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}
		m.sleep(time.Millisecond)
	}
	return nil, NewStorageError("could not allocate a unique backup name", fs.ErrExist)
}

func (m *Manager) applyRetention(ctx context.Context) {
	result, err := m.retention.Apply(ctx, false)
	if err != nil {
		notify(m.notifier, levelWarn, "Retention cleanup failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	m.metrics.RecordRetention(result, result.BackupsKept)
}

func (m *Manager) upload(ctx context.Context, name string, data []byte) {
	if m.mirror == nil {
		return
	}
	err := m.mirror.Upload(ctx, name, data)
	m.metrics.RecordMirrorUpload(m.mirror.Provider(), err)
	if err != nil {
		notify(m.notifier, levelWarn, "Failed to mirror backup", map[string]interface{}{
			"artifact": name,
			"provider": m.mirror.Provider(),
			"error":    err.Error(),
		})
	}
}

// ListBackups returns every stored artifact, newest first
func (m *Manager) ListBackups() ([]*Artifact, error) {
	return m.store.List()
}

// ExpiringBackups returns the stored artifacts the retention policy would
// remove on its next pass, oldest last
func (m *Manager) ExpiringBackups() ([]*Artifact, error) {
	return m.retention.Candidates()
}

// HealthCheck verifies that the artifact store can be written
func (m *Manager) HealthCheck() error {
	return m.store.HealthCheck()
}

// GetBackup describes one stored artifact
func (m *Manager) GetBackup(name string) (*Artifact, error) {
	return m.store.Stat(name)
}

// Exists reports whether name is a stored artifact
func (m *Manager) Exists(name string) bool {
	return m.store.Exists(name)
}

// DeleteBackup removes an artifact and its mirrored copy
func (m *Manager) DeleteBackup(ctx context.Context, name string) error {
	if err := m.store.Delete(name); err != nil {
		return err
	}

	notify(m.notifier, levelInfo, "Backup deleted", map[string]interface{}{"artifact": name})

	if m.mirror != nil {
		if err := m.mirror.Delete(ctx, name); err != nil {
			notify(m.notifier, levelWarn, "Failed to delete mirrored backup", map[string]interface{}{
				"artifact": name,
				"provider": m.mirror.Provider(),
				"error":    err.Error(),
			})
		}
	}
	return nil
}
