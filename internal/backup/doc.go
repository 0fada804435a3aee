// Package backup creates, stores, restores and prunes logical backups of the
// application database.
//
// A backup is a replayable SQL script: a schema section made of the
// SHOW CREATE TABLE output of every base table, followed by a data section
// with one INSERT per row. The script is optionally gzip compressed and
// AES-GCM encrypted, prefixed with a small archive header and written to the
// artifact directory under a timestamped name.
//
// Core components:
//
//   - Manager: orchestrates backup creation, listing, deletion and restore
//   - Serializer and Introspector: turn the live catalog into a script
//   - Codec: applies compression and encryption in write order and undoes them on read
//   - LocalStore: the artifact directory; every access goes through a validated name
//   - RetentionManager: keeps the newest N artifacts
//   - ScriptValidator: advisory or strict scan for risky statements before replay
//   - Scheduler: periodic automatic backups driven by robfig/cron
//   - Mirror: optional off-host copy on S3, GCS or Azure Blob Storage
//
// Example usage:
//
//	catalog := database.NewCatalog(db, logger)
//	manager := backup.NewManager(catalog, backup.ManagerConfig{Dir: "./backups", MaxBackups: 10},
//		backup.WithLogger(logger))
//
//	artifact, err := manager.CreateBackup(ctx, backup.DefaultBackupOptions())
//	if err != nil {
//		return fmt.Errorf("backup creation failed: %w", err)
//	}
//
//	result, err := manager.RestoreFromBackup(ctx, artifact.Name, backup.RestoreOptions{ValidateData: true})
//	if err != nil {
//		return fmt.Errorf("restore failed: %w", err)
//	}
//	fmt.Printf("%d statements applied, %d skipped\n", result.Succeeded, result.Failed)
package backup
