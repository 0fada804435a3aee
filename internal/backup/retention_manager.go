package backup

import (
	"context"
	"fmt"
	"time"
)

// RetentionResult represents the result of applying the retention policy
type RetentionResult struct {
	TotalBackupsProcessed int           `json:"total_backups_processed"`
	BackupsDeleted        int           `json:"backups_deleted"`
	BackupsKept           int           `json:"backups_kept"`
	DeletedBackups        []*Artifact   `json:"deleted_backups"`
	Errors                []string      `json:"errors,omitempty"`
	ProcessingTime        time.Duration `json:"processing_time"`
	DryRun                bool          `json:"dry_run"`
}

// RetentionManager keeps the store at no more than maxBackups artifacts,
// deleting the oldest by modification time
type RetentionManager struct {
	store      *LocalStore
	maxBackups int
	mirror     Mirror
	notifier   Notifier
}

// NewRetentionManager creates a new retention manager
func NewRetentionManager(store *LocalStore, maxBackups int, mirror Mirror, notifier Notifier) *RetentionManager {
	if maxBackups <= 0 {
		maxBackups = DefaultMaxBackups
	}
	return &RetentionManager{
		store:      store,
		maxBackups: maxBackups,
		mirror:     mirror,
		notifier:   notifier,
	}
}

// MaxBackups returns the retention cap
func (rm *RetentionManager) MaxBackups() int {
	return rm.maxBackups
}

// Candidates returns the artifacts the policy would delete, oldest last
func (rm *RetentionManager) Candidates() ([]*Artifact, error) {
	artifacts, err := rm.store.List()
	if err != nil {
		return nil, err
	}
	if len(artifacts) <= rm.maxBackups {
		return nil, nil
	}
	return artifacts[rm.maxBackups:], nil
}

// Apply deletes every artifact beyond the newest maxBackups. Individual delete
// failures are collected in the result and do not stop the pass.
func (rm *RetentionManager) Apply(ctx context.Context, dryRun bool) (*RetentionResult, error) {
	startTime := time.Now()

	artifacts, err := rm.store.List()
	if err != nil {
		return nil, err
	}

	result := &RetentionResult{
		TotalBackupsProcessed: len(artifacts),
		BackupsKept:           len(artifacts),
		DryRun:                dryRun,
	}
	if len(artifacts) <= rm.maxBackups {
		result.ProcessingTime = time.Since(startTime)
		return result, nil
	}

	toDelete := artifacts[rm.maxBackups:]
	result.BackupsKept = rm.maxBackups

	for i := len(toDelete) - 1; i >= 0; i-- {
		artifact := toDelete[i]
		if dryRun {
			result.DeletedBackups = append(result.DeletedBackups, artifact)
			continue
		}

		if err := rm.store.Delete(artifact.Name); err != nil {
			msg := fmt.Sprintf("failed to delete backup %s: %v", artifact.Name, err)
			result.Errors = append(result.Errors, msg)
			notify(rm.notifier, levelError, "Retention cleanup failed for backup", map[string]interface{}{
				"artifact": artifact.Name,
				"error":    err.Error(),
			})
			continue
		}

		result.DeletedBackups = append(result.DeletedBackups, artifact)
		notify(rm.notifier, levelInfo, "Deleted old backup", map[string]interface{}{
			"artifact":   artifact.Name,
			"created_at": artifact.CreatedAt.Format(time.RFC3339),
			"reason":     "retention_policy",
		})
		rm.deleteMirrored(ctx, artifact.Name)
	}

	result.BackupsDeleted = len(result.DeletedBackups)
	result.ProcessingTime = time.Since(startTime)
	return result, nil
}

func (rm *RetentionManager) deleteMirrored(ctx context.Context, name string) {
	if rm.mirror == nil {
		return
	}
	if err := rm.mirror.Delete(ctx, name); err != nil {
		notify(rm.notifier, levelWarn, "Failed to delete mirrored backup", map[string]interface{}{
			"artifact": name,
			"provider": rm.mirror.Provider(),
			"error":    err.Error(),
		})
	}
}
