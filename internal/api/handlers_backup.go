package api

import (
	"context"
	"net/http"
	"time"

	"bizadmin/internal/backup"
	"bizadmin/internal/logging"
)

// BackupService is the backup manager as seen by the handlers
type BackupService interface {
	ListBackups() ([]*backup.Artifact, error)
	CreateBackup(ctx context.Context, opts backup.BackupOptions) (*backup.Artifact, error)
	DeleteBackup(ctx context.Context, name string) error
	RestoreFromBackup(ctx context.Context, name string, opts backup.RestoreOptions) (*backup.RestoreResult, error)
	HealthCheck() error
}

// SchedulerService controls the auto backup scheduler
type SchedulerService interface {
	Start(interval time.Duration) error
	Stop()
	Status() backup.SchedulerStatus
}

// Handler serves the backup endpoints
type Handler struct {
	backups   BackupService
	scheduler SchedulerService
	logger    *logging.Logger
}

// NewHandler creates a handler. scheduler may be nil, which disables PATCH.
func NewHandler(backups BackupService, scheduler SchedulerService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Handler{backups: backups, scheduler: scheduler, logger: logger}
}

// CreateBackupRequest is the request body for creating a backup
type CreateBackupRequest struct {
	IncludeData      bool   `json:"includeData"`
	IncludeSchema    bool   `json:"includeSchema"`
	CompressionLevel int    `json:"compressionLevel" validate:"min=0,max=9"`
	Algorithm        string `json:"compressionAlgorithm" validate:"omitempty,oneof=gzip zstd lz4"`
	Encrypt          bool   `json:"encrypt"`
	EncryptionKey    string `json:"encryptionKey" validate:"required_if=Encrypt true"`
}

// RestoreBackupRequest is the request body for restoring a backup
type RestoreBackupRequest struct {
	FileName          string `json:"fileName" validate:"required,artifact_name"`
	EncryptionKey     string `json:"encryptionKey"`
	OverwriteExisting bool   `json:"overwriteExisting"`
}

// ScheduleRequest is the request body for starting or stopping auto backup
type ScheduleRequest struct {
	Action        string `json:"action" validate:"required,oneof=start stop"`
	IntervalHours int    `json:"intervalHours"`
}

// SchedulerStatusResponse describes the scheduler for GET /api/backup/scheduler
type SchedulerStatusResponse struct {
	Running       bool       `json:"running"`
	IntervalHours float64    `json:"intervalHours,omitempty"`
	NextRun       *time.Time `json:"nextRun,omitempty"`
	LastRun       *time.Time `json:"lastRun,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
}

// HandleListBackups lists stored backups, newest first
// GET /api/backup
func (h *Handler) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backups.ListBackups()
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, "LIST_FAILED", "Failed to list backups", err)
		return
	}
	if backups == nil {
		backups = []*backup.Artifact{}
	}

	h.logger.WithContext(r.Context()).WithField("count", len(backups)).Info("Backup list retrieved")
	h.respondSuccess(w, http.StatusOK, map[string]interface{}{"backups": backups})
}

// HandleCreateBackup creates a backup
// POST /api/backup
func (h *Handler) HandleCreateBackup(w http.ResponseWriter, r *http.Request) {
	req := CreateBackupRequest{
		IncludeData:      true,
		IncludeSchema:    true,
		CompressionLevel: backup.DefaultCompressionLevel,
	}
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "INVALID_JSON", "Invalid request body", err)
		return
	}
	if err := validateRequest(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	artifact, err := h.backups.CreateBackup(r.Context(), backup.BackupOptions{
		IncludeSchema:    req.IncludeSchema,
		IncludeData:      req.IncludeData,
		CompressionLevel: req.CompressionLevel,
		Algorithm:        backup.CompressionType(req.Algorithm),
		Encrypt:          req.Encrypt,
		EncryptionKey:    req.EncryptionKey,
	})
	if err != nil {
		h.respondBackupError(w, r, "Failed to create backup", err)
		return
	}

	h.logger.WithContext(r.Context()).WithFields(map[string]interface{}{
		"backup":            artifact.Name,
		"include_data":      req.IncludeData,
		"include_schema":    req.IncludeSchema,
		"compression_level": req.CompressionLevel,
		"encrypt":           req.Encrypt,
	}).Info("Backup created successfully")

	h.respondSuccess(w, http.StatusOK, map[string]interface{}{
		"message":    "Backup created successfully",
		"backupPath": artifact.Name,
		"backup":     artifact,
	})
}

// HandleDeleteBackup deletes a backup named by the fileName query parameter
// DELETE /api/backup?fileName=
func (h *Handler) HandleDeleteBackup(w http.ResponseWriter, r *http.Request) {
	fileName := r.URL.Query().Get("fileName")
	if err := validateFileName(fileName); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "INVALID_FILE_NAME", err.Error(), nil)
		return
	}

	if err := h.backups.DeleteBackup(r.Context(), fileName); err != nil {
		h.respondBackupError(w, r, "Failed to delete backup", err)
		return
	}

	h.logger.WithContext(r.Context()).WithField("backup", fileName).Info("Backup deleted successfully")
	h.respondSuccess(w, http.StatusOK, map[string]interface{}{
		"message":  "Backup deleted successfully",
		"fileName": fileName,
	})
}

// HandleRestoreBackup replays a listed backup with data validation on
// PUT /api/backup
func (h *Handler) HandleRestoreBackup(w http.ResponseWriter, r *http.Request) {
	var req RestoreBackupRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "INVALID_JSON", "Invalid request body", err)
		return
	}
	if err := validateRequest(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	listed, err := h.isListed(req.FileName)
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, "LIST_FAILED", "Failed to list backups", err)
		return
	}
	if !listed {
		h.respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Backup file not found", nil)
		return
	}

	result, err := h.backups.RestoreFromBackup(r.Context(), req.FileName, backup.RestoreOptions{
		OverwriteExisting: req.OverwriteExisting,
		ValidateData:      true,
		EncryptionKey:     req.EncryptionKey,
	})
	if err != nil {
		h.respondBackupError(w, r, "Failed to restore backup", err)
		return
	}

	h.logger.WithContext(r.Context()).WithFields(map[string]interface{}{
		"backup":             req.FileName,
		"overwrite_existing": req.OverwriteExisting,
		"succeeded":          result.Succeeded,
		"failed":             result.Failed,
	}).Info("Backup restored successfully")

	failed := result.FailedStatements()
	if failed == nil {
		failed = []backup.StatementResult{}
	}
	h.respondSuccess(w, http.StatusOK, map[string]interface{}{
		"message":          "Backup restored successfully",
		"fileName":         req.FileName,
		"succeeded":        result.Succeeded,
		"failed":           result.Failed,
		"droppedTables":    result.DroppedTables,
		"failedStatements": failed,
		"warnings":         result.Warnings,
	})
}

func (h *Handler) isListed(name string) (bool, error) {
	backups, err := h.backups.ListBackups()
	if err != nil {
		return false, err
	}
	for _, b := range backups {
		if b.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// HandleSchedule starts or stops the auto backup scheduler
// PATCH /api/backup
func (h *Handler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		h.respondError(w, r, http.StatusServiceUnavailable, "SCHEDULER_DISABLED", "Auto backup scheduler is not available", nil)
		return
	}

	req := ScheduleRequest{IntervalHours: int(backup.DefaultSchedulerInterval / time.Hour)}
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "INVALID_JSON", "Invalid request body", err)
		return
	}
	if err := validateRequest(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid action, must be start or stop", nil)
		return
	}

	if req.Action == "stop" {
		h.scheduler.Stop()
		h.logger.WithContext(r.Context()).Info("Auto backup stopped")
		h.respondSuccess(w, http.StatusOK, map[string]interface{}{"message": "Auto backup stopped"})
		return
	}

	if req.IntervalHours < 1 || req.IntervalHours > 168 {
		h.respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "intervalHours must be between 1 and 168", nil)
		return
	}
	if err := h.scheduler.Start(time.Duration(req.IntervalHours) * time.Hour); err != nil {
		h.respondBackupError(w, r, "Failed to start auto backup", err)
		return
	}

	h.logger.WithContext(r.Context()).WithField("interval_hours", req.IntervalHours).Info("Auto backup started")
	h.respondSuccess(w, http.StatusOK, map[string]interface{}{
		"message":       "Auto backup started",
		"intervalHours": req.IntervalHours,
	})
}

// HandleSchedulerStatus reports the scheduler state
// GET /api/backup/scheduler
func (h *Handler) HandleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		h.respondSuccess(w, http.StatusOK, SchedulerStatusResponse{})
		return
	}

	status := h.scheduler.Status()
	h.respondSuccess(w, http.StatusOK, SchedulerStatusResponse{
		Running:       status.Running,
		IntervalHours: status.Interval.Hours(),
		NextRun:       status.NextRun,
		LastRun:       status.LastRun,
		LastError:     status.LastErr,
	})
}

// HandleHealth reports liveness, failing while the backup directory cannot
// be written
// GET /healthz
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.backups.HealthCheck(); err != nil {
		h.respondError(w, r, http.StatusServiceUnavailable, "UNHEALTHY", "Backup directory is not writable", err)
		return
	}
	h.respondSuccess(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}
