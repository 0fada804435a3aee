package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"bizadmin/internal/backup"
	"bizadmin/internal/confirmation"
	"bizadmin/internal/display"
)

var (
	// Backup creation flags
	createNoData      bool
	createNoSchema    bool
	compressionLevel  int
	compressionAlgo   string
	encryptBackup     bool
	encryptionKeyFlag string

	// Output flags
	outputFormat string
	listExpiring bool

	// Restore flags
	restoreFile      string
	restoreOverwrite bool
	restoreStrict    bool
	restoreNoCheck   bool
)

// backupCmd represents the backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage database backups",
	Long: `Create, list, restore and delete backups of the business admin database.

Backups are single SQL files named backup-<UTC timestamp>.sql stored in the
configured backup directory. They may be gzip compressed and AES-256-GCM
encrypted. Only the newest backup.max_backups files are kept.

Examples:
  # Create a compressed backup
  bizadmin backup create

  # Create a schema-only encrypted backup
  bizadmin backup create --no-data --encrypt --key "$BACKUP_KEY"

  # List backups
  bizadmin backup list

  # Show storage usage
  bizadmin backup usage`,
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new database backup",
	Long: `Create a backup of every table in the configured database.

The backup holds CREATE TABLE statements followed by INSERT statements for
every row. It is compressed at --level (0 disables compression) and
encrypted when --encrypt is set or backup.encryption_key is configured.`,
	Args: cobra.NoArgs,
	RunE: runBackupCreate,
}

var backupListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List existing backups, newest first",
	Long: `List existing backups, newest first.

With --expiring only the backups beyond backup.max_backups are listed, which
are the ones the next backup run will delete.`,
	Args: cobra.NoArgs,
	RunE: runBackupList,
}

var backupDeleteCmd = &cobra.Command{
	Use:   "delete <backup-file>",
	Short: "Delete a backup",
	Long: `Delete a backup from the backup directory and the configured mirror.

The operation requires confirmation unless --yes is used.`,
	Args: cobra.ExactArgs(1),
	RunE: runBackupDelete,
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore [backup-file]",
	Short: "Restore the database from a backup",
	Long: `Replay a backup into the configured database.

Statements are executed one at a time; a failing statement is recorded and
the restore continues. With --overwrite every existing table is dropped
first, which requires confirmation unless --yes is used.

Examples:
  # Restore a backup from the backup directory
  bizadmin backup restore backup-2024-05-01T10-20-30-123Z.sql

  # Restore a copied backup file, replacing existing tables
  bizadmin backup restore --file /tmp/backup-2024-05-01T10-20-30-123Z.sql --overwrite --yes`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBackupRestore,
}

var backupUsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show backup storage usage",
	Args:  cobra.NoArgs,
	RunE:  runBackupUsage,
}

func init() {
	rootCmd.AddCommand(backupCmd)

	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupDeleteCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupCmd.AddCommand(backupUsageCmd)

	backupCreateCmd.Flags().BoolVar(&createNoData, "no-data", false, "back up the schema only")
	backupCreateCmd.Flags().BoolVar(&createNoSchema, "no-schema", false, "back up the data only")
	backupCreateCmd.Flags().IntVar(&compressionLevel, "level", -1, "gzip compression level 0-9 (default backup.compression_level)")
	backupCreateCmd.Flags().StringVar(&compressionAlgo, "algorithm", "", "compression algorithm: gzip, zstd or lz4 (default backup.compression_algorithm)")
	backupCreateCmd.Flags().BoolVar(&encryptBackup, "encrypt", false, "encrypt the backup")
	backupCreateCmd.Flags().StringVar(&encryptionKeyFlag, "key", "", "encryption key (default backup.encryption_key)")
	backupCreateCmd.MarkFlagsMutuallyExclusive("no-data", "no-schema")

	backupListCmd.Flags().StringVarP(&outputFormat, "format", "o", "table", "output format (table, json, yaml)")
	backupListCmd.Flags().BoolVar(&listExpiring, "expiring", false, "list only the backups the retention policy will delete next")
	backupUsageCmd.Flags().StringVarP(&outputFormat, "format", "o", "table", "output format (table, json, yaml)")

	backupRestoreCmd.Flags().StringVar(&restoreFile, "file", "", "restore from a backup file outside the backup directory")
	backupRestoreCmd.Flags().StringVar(&encryptionKeyFlag, "key", "", "decryption key (default backup.encryption_key)")
	backupRestoreCmd.Flags().BoolVar(&restoreOverwrite, "overwrite", false, "drop existing tables before restoring")
	backupRestoreCmd.Flags().BoolVar(&restoreStrict, "strict", false, "refuse to restore when the script fails validation")
	backupRestoreCmd.Flags().BoolVar(&restoreNoCheck, "skip-validation", false, "skip the script validation pass")
	backupRestoreCmd.MarkFlagsMutuallyExclusive("strict", "skip-validation")
}

// encryptionKey picks the --key flag over the configured key
func encryptionKey(a *app) string {
	if encryptionKeyFlag != "" {
		return encryptionKeyFlag
	}
	return a.config.Backup.EncryptionKey
}

func runBackupCreate(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	a, err := newApp(ctx, appOptions{connect: true})
	if err != nil {
		return err
	}
	defer a.Close()

	opts := backup.BackupOptions{
		IncludeSchema:    !createNoSchema,
		IncludeData:      !createNoData,
		CompressionLevel: a.config.Backup.CompressionLevel,
		Algorithm:        a.config.Backup.CompressionAlgorithm,
		EncryptionKey:    encryptionKey(a),
	}
	if compressionAlgo != "" {
		opts.Algorithm = backup.CompressionType(compressionAlgo)
	}
	if compressionLevel >= 0 {
		opts.CompressionLevel = compressionLevel
	}
	if cmd.Flags().Changed("encrypt") {
		opts.Encrypt = encryptBackup
	} else {
		opts.Encrypt = a.config.Backup.EncryptionKey != ""
	}

	printer := newPrinter(cmd)
	printer.Info(fmt.Sprintf("Creating backup of %s...", a.config.Database.Database))

	start := time.Now()
	artifact, err := a.manager.CreateBackup(ctx, opts)
	if err != nil {
		return fmt.Errorf("backup creation failed: %w", err)
	}

	printer.Success(fmt.Sprintf("Backup created successfully: %s", artifact.Name))
	printer.Info(fmt.Sprintf("Size: %s", display.FormatBytes(artifact.Size)))
	if artifact.Compressed {
		printer.Info(fmt.Sprintf("Compression: %s level %d", artifact.Algorithm, opts.CompressionLevel))
	}
	if artifact.Encrypted {
		printer.Info("Encrypted: yes")
	}
	printer.Info(fmt.Sprintf("Duration: %s", time.Since(start).Round(time.Millisecond)))
	return nil
}

func runBackupList(cmd *cobra.Command, args []string) error {
	a, err := newApp(commandContext(cmd), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	list := a.manager.ListBackups
	if listExpiring {
		list = a.manager.ExpiringBackups
	}
	artifacts, err := list()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if artifacts == nil {
		artifacts = []*backup.Artifact{}
	}

	printer := newPrinter(cmd)
	switch outputFormat {
	case "json":
		return printJSON(cmd, artifacts)
	case "yaml":
		return printer.PrintYAML(artifacts)
	case "table":
		printer.PrintBackups(artifacts)
		return nil
	default:
		return fmt.Errorf("invalid output format '%s', must be one of: table, json, yaml", outputFormat)
	}
}

func runBackupDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := backup.ValidateArtifactName(name); err != nil {
		return err
	}

	ctx := commandContext(cmd)
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	artifact, err := a.manager.GetBackup(name)
	if err != nil {
		return err
	}

	printer := newPrinter(cmd)
	confirmed, err := confirmation.NewConfirmationService(printer, cmd.InOrStdin()).
		Confirm(confirmation.DeletePrompt(artifact), autoApprove)
	if err != nil {
		return err
	}
	if !confirmed {
		return nil
	}

	if err := a.manager.DeleteBackup(ctx, name); err != nil {
		return fmt.Errorf("failed to delete backup: %w", err)
	}

	printer.Success(fmt.Sprintf("Backup deleted successfully: %s", name))
	return nil
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	if (len(args) == 0) == (restoreFile == "") {
		return fmt.Errorf("specify either a backup file name or --file")
	}

	ctx := commandContext(cmd)
	a, err := newApp(ctx, appOptions{connect: true})
	if err != nil {
		return err
	}
	defer a.Close()

	artifact, err := restoreTarget(a, args)
	if err != nil {
		return err
	}

	var existing []string
	if restoreOverwrite {
		if existing, err = a.catalog.ListTables(ctx); err != nil {
			return fmt.Errorf("failed to list existing tables: %w", err)
		}
	}

	printer := newPrinter(cmd)
	prompt := confirmation.RestorePrompt(artifact, a.config.Database.Database, restoreOverwrite, existing)
	confirmed, err := confirmation.NewConfirmationService(printer, cmd.InOrStdin()).
		Confirm(prompt, autoApprove || !prompt.Destructive)
	if err != nil {
		return err
	}
	if !confirmed {
		return nil
	}

	opts := backup.RestoreOptions{
		OverwriteExisting: restoreOverwrite,
		ValidateData:      !restoreNoCheck,
		EncryptionKey:     encryptionKey(a),
		StrictValidation:  restoreStrict || a.config.Backup.Validation.Strict,
	}

	var result *backup.RestoreResult
	if restoreFile != "" {
		result, err = a.manager.RestoreByPath(ctx, restoreFile, opts)
	} else {
		result, err = a.manager.RestoreFromBackup(ctx, artifact.Name, opts)
	}
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	printer.PrintRestoreResult(result)
	if result.Failed > 0 {
		printer.Warning(fmt.Sprintf("%d statement(s) failed; the database may be partially restored", result.Failed))
	}
	return nil
}

// restoreTarget resolves the artifact being restored, either by name from the
// store or from --file
func restoreTarget(a *app, args []string) (*backup.Artifact, error) {
	if restoreFile == "" {
		return a.manager.GetBackup(args[0])
	}
	name := filepath.Base(restoreFile)
	if err := backup.ValidateArtifactName(name); err != nil {
		return nil, err
	}
	return &backup.Artifact{Name: name, Path: restoreFile}, nil
}

func runBackupUsage(cmd *cobra.Command, args []string) error {
	a, err := newApp(commandContext(cmd), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.manager.StorageUsage()
	if err != nil {
		return fmt.Errorf("failed to compute storage usage: %w", err)
	}

	printer := newPrinter(cmd)
	switch outputFormat {
	case "json":
		return printJSON(cmd, report)
	case "yaml":
		return printer.PrintYAML(report)
	case "table":
		printer.PrintStorageUsage(report)
		return nil
	default:
		return fmt.Errorf("invalid output format '%s', must be one of: table, json, yaml", outputFormat)
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

// commandContext returns the command context, or a background context when
// the command runs without one
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
