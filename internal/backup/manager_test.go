package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2026, 3, 14, 9, 26, 53, 589000000, time.UTC)

func newTestManager(t *testing.T, db Database, opts ...ManagerOption) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	opts = append([]ManagerOption{WithClock(steppingClock(testEpoch, time.Second))}, opts...)
	return NewManager(db, ManagerConfig{Dir: dir, MaxBackups: DefaultMaxBackups}, opts...), dir
}

func readScript(t *testing.T, m *Manager, name, key string) string {
	t.Helper()
	data, err := m.Store().Read(name)
	require.NoError(t, err)
	script, err := m.codec.Decode(data, key)
	require.NoError(t, err)
	return script
}

func TestManager_CreateBackup_Products(t *testing.T) {
	db := productsDatabase()
	m, dir := newTestManager(t, db)

	artifact, err := m.CreateBackup(context.Background(), BackupOptions{
		IncludeSchema:    true,
		IncludeData:      true,
		CompressionLevel: 6,
	})
	require.NoError(t, err)

	assert.True(t, IsArtifactName(artifact.Name))
	assert.Equal(t, filepath.Join(dir, artifact.Name), artifact.Path)
	assert.True(t, artifact.Compressed)
	assert.False(t, artifact.Encrypted)
	assert.Equal(t, CompressionTypeGzip, artifact.Algorithm)

	script := readScript(t, m, artifact.Name, "")
	assert.Contains(t, script, "CREATE TABLE products")
	assert.Contains(t, script, "INSERT INTO products (id, sku) VALUES (1, 'A-1');")
	assert.True(t, strings.HasPrefix(script, "-- Database Schema Backup\n-- Generated at: "))
	assert.Contains(t, script, "-- Table: products\n")
	assert.Contains(t, script, "\n-- Database Data Backup\n")
}

func TestManager_CreateBackup_Uncompressed(t *testing.T) {
	m, _ := newTestManager(t, productsDatabase())

	artifact, err := m.CreateBackup(context.Background(), BackupOptions{IncludeData: true})
	require.NoError(t, err)
	assert.False(t, artifact.Compressed)

	data, err := m.Store().Read(artifact.Name)
	require.NoError(t, err)

	header, payload, ok := ParseHeader(data)
	require.True(t, ok)
	assert.False(t, header.Compressed)
	assert.NotContains(t, string(payload), "-- Database Schema Backup")
	assert.Contains(t, string(payload), "INSERT INTO products (id, sku) VALUES (1, 'A-1');")
}

func TestManager_CreateBackup_InvalidOptions(t *testing.T) {
	db := productsDatabase()
	m, dir := newTestManager(t, db)

	tests := []struct {
		name string
		opts BackupOptions
	}{
		{"encrypt without key", BackupOptions{IncludeData: true, Encrypt: true}},
		{"compression level too high", BackupOptions{IncludeData: true, CompressionLevel: 10}},
		{"negative compression level", BackupOptions{IncludeData: true, CompressionLevel: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.CreateBackup(context.Background(), tt.opts)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
		})
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestManager_CreateBackup_IntrospectionFailure(t *testing.T) {
	db := productsDatabase()
	db.listErr = errors.New("connection refused")
	m, _ := newTestManager(t, db)

	_, err := m.CreateBackup(context.Background(), DefaultBackupOptions())
	require.Error(t, err)
	assert.True(t, IsIntrospectionError(err))
	assert.Contains(t, err.Error(), "connection refused")

	artifacts, err := m.ListBackups()
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestManager_CreateBackup_NameCollision(t *testing.T) {
	m, _ := newTestManager(t, productsDatabase())

	// Each run reads the clock once for the script header and once per name
	// attempt, so the second run collides once before moving on.
	times := []time.Time{testEpoch, testEpoch, testEpoch, testEpoch, testEpoch.Add(time.Millisecond)}
	calls := 0
	m.now = func() time.Time {
		t := times[calls]
		if calls < len(times)-1 {
			calls++
		}
		return t
	}
	var slept []time.Duration
	m.sleep = func(d time.Duration) { slept = append(slept, d) }

	first, err := m.CreateBackup(context.Background(), DefaultBackupOptions())
	require.NoError(t, err)

	second, err := m.CreateBackup(context.Background(), DefaultBackupOptions())
	require.NoError(t, err)

	assert.NotEqual(t, first.Name, second.Name)
	assert.Equal(t, []time.Duration{time.Millisecond}, slept)
}

func TestManager_Retention_KeepsNewestTen(t *testing.T) {
	m, _ := newTestManager(t, productsDatabase())

	var created []string
	for i := 0; i < 13; i++ {
		artifact, err := m.CreateBackup(context.Background(), DefaultBackupOptions())
		require.NoError(t, err)
		created = append(created, artifact.Name)
	}

	artifacts, err := m.ListBackups()
	require.NoError(t, err)
	require.Len(t, artifacts, DefaultMaxBackups)

	var remaining []string
	for _, artifact := range artifacts {
		remaining = append(remaining, artifact.Name)
	}

	newest := created[len(created)-DefaultMaxBackups:]
	assert.ElementsMatch(t, newest, remaining)
	assert.Equal(t, created[len(created)-1], remaining[0])
	for _, old := range created[:3] {
		assert.False(t, m.Exists(old))
	}
}

func TestManager_Encryption_WrongKey(t *testing.T) {
	db := productsDatabase()
	m, _ := newTestManager(t, db)

	artifact, err := m.CreateBackup(context.Background(), BackupOptions{
		IncludeSchema:    true,
		IncludeData:      true,
		CompressionLevel: 6,
		Encrypt:          true,
		EncryptionKey:    "k1",
	})
	require.NoError(t, err)
	assert.True(t, artifact.Encrypted)

	result, err := m.RestoreFromBackup(context.Background(), artifact.Name, RestoreOptions{
		EncryptionKey: "k2",
		ValidateData:  true,
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsDecryptionError(err))
	assert.Empty(t, db.executedStatements())

	_, err = m.RestoreFromBackup(context.Background(), artifact.Name, RestoreOptions{})
	require.Error(t, err)
	assert.True(t, IsDecryptionError(err))
	assert.Empty(t, db.executedStatements())
}

func TestManager_Restore_RoundTrip(t *testing.T) {
	db := productsDatabase()
	m, _ := newTestManager(t, db)

	artifact, err := m.CreateBackup(context.Background(), BackupOptions{
		IncludeSchema:    true,
		IncludeData:      true,
		CompressionLevel: 9,
		Encrypt:          true,
		EncryptionKey:    "s3cret",
	})
	require.NoError(t, err)

	result, err := m.RestoreFromBackup(context.Background(), artifact.Name, RestoreOptions{
		EncryptionKey: "s3cret",
		ValidateData:  true,
	})
	require.NoError(t, err)

	executed := db.executedStatements()
	require.Len(t, executed, 8)
	assert.Equal(t, "SET FOREIGN_KEY_CHECKS=0", executed[0])
	assert.Equal(t, "SET FOREIGN_KEY_CHECKS=0;", executed[1])
	assert.Contains(t, executed[2], "NO_BACKSLASH_ESCAPES")
	assert.Equal(t, "SET SESSION time_zone = '+00:00';", executed[3])
	assert.True(t, strings.HasPrefix(executed[4], "CREATE TABLE products"))
	assert.Equal(t, "INSERT INTO products (id, sku) VALUES (1, 'A-1');", executed[5])
	assert.Equal(t, "SET FOREIGN_KEY_CHECKS=1;", executed[6])
	assert.Equal(t, "SET FOREIGN_KEY_CHECKS=1", executed[7])

	assert.Equal(t, 6, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, artifact.Name, result.Artifact)
	assert.Empty(t, result.DroppedTables)
}

func TestManager_Restore_ConflictsAreSkipped(t *testing.T) {
	db := newFakeDatabase()
	db.addTable("customers", "CREATE TABLE customers (id int PRIMARY KEY, name varchar(64))",
		[]string{"id", "name"},
		[]interface{}{int64(1), "Ada"},
		[]interface{}{int64(2), "O'Brien"},
		[]interface{}{int64(3), "Grace"},
	)
	notifier := &recordingNotifier{}
	m, _ := newTestManager(t, db, WithNotifier(notifier))

	artifact, err := m.CreateBackup(context.Background(), BackupOptions{IncludeSchema: true, IncludeData: true})
	require.NoError(t, err)

	db.execHook = func(statement string) error {
		switch {
		case strings.HasPrefix(statement, "CREATE TABLE"):
			return &mysql.MySQLError{Number: 1050, Message: "Table 'customers' already exists"}
		case strings.Contains(statement, "VALUES (1, "):
			return &mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1' for key 'PRIMARY'"}
		}
		return nil
	}

	result, err := m.RestoreFromBackup(context.Background(), artifact.Name, RestoreOptions{})
	require.NoError(t, err)

	assert.Equal(t, 6, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Statements, 8)

	failed := result.FailedStatements()
	require.Len(t, failed, 2)
	for _, stmt := range failed {
		assert.True(t, stmt.Conflict, stmt.SQL)
		assert.NotEmpty(t, stmt.Error)
	}
	assert.Equal(t, "INSERT INTO customers (id, name) VALUES (2, 'O''Brien');", result.Statements[5].SQL)
	assert.True(t, result.Statements[5].Succeeded)
	assert.NotEmpty(t, result.Warnings)
	assert.Equal(t, 2, notifier.countMessage("warn", "failed to execute SQL statement"))
}

func TestManager_Restore_Overwrite(t *testing.T) {
	db := productsDatabase()
	db.addTable("orders", "CREATE TABLE orders (id int)", []string{"id"})
	m, _ := newTestManager(t, db)

	artifact, err := m.CreateBackup(context.Background(), DefaultBackupOptions())
	require.NoError(t, err)

	result, err := m.RestoreFromBackup(context.Background(), artifact.Name, RestoreOptions{OverwriteExisting: true})
	require.NoError(t, err)

	executed := db.executedStatements()
	require.GreaterOrEqual(t, len(executed), 3)
	assert.Equal(t, "SET FOREIGN_KEY_CHECKS=0", executed[0])
	assert.Equal(t, "DROP TABLE IF EXISTS `orders`", executed[1])
	assert.Equal(t, "DROP TABLE IF EXISTS `products`", executed[2])
	assert.Equal(t, "SET FOREIGN_KEY_CHECKS=1", executed[len(executed)-1])
	assert.Equal(t, []string{"orders", "products"}, result.DroppedTables)
}

func TestManager_Restore_StrictValidationRejects(t *testing.T) {
	db := newFakeDatabase()
	db.addTable("notes", "CREATE TABLE notes (body text)", []string{"body"},
		[]interface{}{"remember to DROP TABLE staging"},
	)
	notifier := &recordingNotifier{}
	m, _ := newTestManager(t, db, WithNotifier(notifier))

	artifact, err := m.CreateBackup(context.Background(), DefaultBackupOptions())
	require.NoError(t, err)

	_, err = m.RestoreFromBackup(context.Background(), artifact.Name, RestoreOptions{
		ValidateData:     true,
		StrictValidation: true,
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Empty(t, db.executedStatements())

	// Advisory mode only warns
	result, err := m.RestoreFromBackup(context.Background(), artifact.Name, RestoreOptions{ValidateData: true})
	require.NoError(t, err)
	assert.Equal(t, 6, result.Succeeded)
	assert.True(t, notifier.has("warn", "Potentially dangerous SQL detected"))
}

func TestManager_Restore_NotFound(t *testing.T) {
	db := productsDatabase()
	m, _ := newTestManager(t, db)

	_, err := m.RestoreFromBackup(context.Background(), ArtifactName(testEpoch), RestoreOptions{})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Empty(t, db.executedStatements())
}

func TestManager_RestoreByPath(t *testing.T) {
	db := productsDatabase()
	m, _ := newTestManager(t, db)

	artifact, err := m.CreateBackup(context.Background(), DefaultBackupOptions())
	require.NoError(t, err)

	result, err := m.RestoreByPath(context.Background(), artifact.Path, RestoreOptions{})
	require.NoError(t, err)
	assert.Equal(t, 6, result.Succeeded)

	other := filepath.Join(t.TempDir(), "dump.sql")
	require.NoError(t, os.WriteFile(other, []byte("SELECT 1;"), 0644))

	_, err = m.RestoreByPath(context.Background(), other, RestoreOptions{})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestManager_RestoreLegacyPlaintext(t *testing.T) {
	db := newFakeDatabase()
	m, dir := newTestManager(t, db)

	name := ArtifactName(testEpoch)
	legacy := "-- Database Schema Backup\n-- Generated at: 2025-01-01T00:00:00.000Z\n\n" +
		"-- Table: t\nCREATE TABLE t (a int);\n\n\n-- Database Data Backup\n" +
		"-- Data for table: t\nINSERT INTO t (a) VALUES (1);\n\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(legacy), 0644))

	result, err := m.RestoreFromBackup(context.Background(), name, RestoreOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"SET FOREIGN_KEY_CHECKS=0",
		"CREATE TABLE t (a int);",
		"INSERT INTO t (a) VALUES (1);",
		"SET FOREIGN_KEY_CHECKS=1",
	}, db.executedStatements())
	assert.Equal(t, 2, result.Succeeded)
}

func TestManager_DeleteBackup(t *testing.T) {
	mirror := newFakeMirror()
	m, _ := newTestManager(t, productsDatabase(), WithMirror(mirror))

	artifact, err := m.CreateBackup(context.Background(), DefaultBackupOptions())
	require.NoError(t, err)
	assert.Contains(t, mirror.uploaded, artifact.Name)

	require.NoError(t, m.DeleteBackup(context.Background(), artifact.Name))
	assert.False(t, m.Exists(artifact.Name))
	assert.Equal(t, []string{artifact.Name}, mirror.deleted)

	err = m.DeleteBackup(context.Background(), artifact.Name)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestManager_DeleteBackup_RejectsTraversal(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "app", "backups")
	target := filepath.Join(root, "etc", "passwd")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0755))
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(target, []byte("root:x:0:0"), 0644))

	m := NewManager(productsDatabase(), ManagerConfig{Dir: dir})

	err := m.DeleteBackup(context.Background(), "../../etc/passwd")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	_, statErr := os.Stat(target)
	assert.NoError(t, statErr)
}

func TestManager_MirrorFailureIsNotFatal(t *testing.T) {
	mirror := newFakeMirror()
	mirror.uploadErr = errors.New("bucket unavailable")
	notifier := &recordingNotifier{}
	m, _ := newTestManager(t, productsDatabase(), WithMirror(mirror), WithNotifier(notifier))

	artifact, err := m.CreateBackup(context.Background(), DefaultBackupOptions())
	require.NoError(t, err)
	assert.True(t, m.Exists(artifact.Name))
	assert.True(t, notifier.has("warn", "Failed to mirror backup"))
}

func TestManager_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	db := productsDatabase()
	m, _ := newTestManager(t, db, WithMetrics(metrics))

	artifact, err := m.CreateBackup(context.Background(), DefaultBackupOptions())
	require.NoError(t, err)
	_, err = m.CreateBackup(context.Background(), BackupOptions{Encrypt: true})
	require.Error(t, err)

	_, err = m.RestoreFromBackup(context.Background(), artifact.Name, RestoreOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BackupsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BackupsTotal.WithLabelValues("failure")))
	assert.Equal(t, float64(artifact.Size), testutil.ToFloat64(metrics.BackupSizeBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RestoresTotal.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.StatementsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ArtifactsStored))
}

func TestManager_StorageUsage(t *testing.T) {
	m, _ := newTestManager(t, productsDatabase())

	report, err := m.StorageUsage()
	require.NoError(t, err)
	assert.Equal(t, 0, report.TotalBackups)
	assert.Nil(t, report.Newest)

	for i := 0; i < 3; i++ {
		_, err := m.CreateBackup(context.Background(), DefaultBackupOptions())
		require.NoError(t, err)
	}

	report, err = m.StorageUsage()
	require.NoError(t, err)
	assert.Equal(t, 3, report.TotalBackups)
	assert.Equal(t, 3, report.Compressed)
	assert.Equal(t, DefaultMaxBackups, report.MaxBackups)
	assert.Equal(t, report.TotalSize/3, report.AverageBackupSize)
	require.NotNil(t, report.Newest)
	require.NotNil(t, report.LargestBackup)
}

func TestManager_CreateBackup_CompressionAlgorithms(t *testing.T) {
	for _, algorithm := range []CompressionType{CompressionTypeGzip, CompressionTypeZstd, CompressionTypeLZ4} {
		t.Run(string(algorithm), func(t *testing.T) {
			db := productsDatabase()
			m, _ := newTestManager(t, db)

			artifact, err := m.CreateBackup(context.Background(), BackupOptions{
				IncludeSchema:    true,
				IncludeData:      true,
				CompressionLevel: 6,
				Algorithm:        algorithm,
			})
			require.NoError(t, err)
			assert.True(t, artifact.Compressed)
			assert.Equal(t, algorithm, artifact.Algorithm)

			script := readScript(t, m, artifact.Name, "")
			assert.Contains(t, script, "INSERT INTO products (id, sku) VALUES (1, 'A-1');")
		})
	}

	m, _ := newTestManager(t, productsDatabase())
	_, err := m.CreateBackup(context.Background(), BackupOptions{IncludeData: true, CompressionLevel: 6, Algorithm: "brotli"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}
