package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bizadmin/internal/backup"
	"bizadmin/internal/logging"
)

const testArtifact = "backup-2024-05-01T10-20-30-123Z.sql"

type mockBackupService struct {
	mock.Mock
	unhealthy error
}

func (m *mockBackupService) ListBackups() ([]*backup.Artifact, error) {
	args := m.Called()
	artifacts, _ := args.Get(0).([]*backup.Artifact)
	return artifacts, args.Error(1)
}

func (m *mockBackupService) CreateBackup(ctx context.Context, opts backup.BackupOptions) (*backup.Artifact, error) {
	args := m.Called(opts)
	artifact, _ := args.Get(0).(*backup.Artifact)
	return artifact, args.Error(1)
}

func (m *mockBackupService) DeleteBackup(ctx context.Context, name string) error {
	return m.Called(name).Error(0)
}

func (m *mockBackupService) RestoreFromBackup(ctx context.Context, name string, opts backup.RestoreOptions) (*backup.RestoreResult, error) {
	args := m.Called(name, opts)
	result, _ := args.Get(0).(*backup.RestoreResult)
	return result, args.Error(1)
}

func (m *mockBackupService) HealthCheck() error {
	return m.unhealthy
}

type mockScheduler struct {
	mock.Mock
}

func (m *mockScheduler) Start(interval time.Duration) error {
	return m.Called(interval).Error(0)
}

func (m *mockScheduler) Stop() {
	m.Called()
}

func (m *mockScheduler) Status() backup.SchedulerStatus {
	return m.Called().Get(0).(backup.SchedulerStatus)
}

type decodedResponse struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data"`
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
}

func newTestRouter(backups BackupService, scheduler SchedulerService, config RouterConfig) http.Handler {
	return NewRouter(NewHandler(backups, scheduler, logging.NewNopLogger()), config)
}

func serve(t *testing.T, handler http.Handler, method, target, body string) (*httptest.ResponseRecorder, decodedResponse) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp decodedResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func listed(names ...string) []*backup.Artifact {
	artifacts := make([]*backup.Artifact, len(names))
	for i, name := range names {
		artifacts[i] = &backup.Artifact{Name: name, Size: 128}
	}
	return artifacts
}

func TestHandleListBackups(t *testing.T) {
	backups := new(mockBackupService)
	backups.On("ListBackups").Return(listed(testArtifact), nil)

	rec, resp := serve(t, newTestRouter(backups, nil, RouterConfig{}), http.MethodGet, "/api/backup/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	items, ok := resp.Data["backups"].([]interface{})
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, testArtifact, items[0].(map[string]interface{})["name"])
}

func TestHandleListBackupsEmpty(t *testing.T) {
	backups := new(mockBackupService)
	backups.On("ListBackups").Return(nil, nil)

	rec, resp := serve(t, newTestRouter(backups, nil, RouterConfig{}), http.MethodGet, "/api/backup/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{}, resp.Data["backups"])
}

func TestHandleListBackupsFailure(t *testing.T) {
	backups := new(mockBackupService)
	backups.On("ListBackups").Return(nil, errors.New("permission denied"))

	rec, resp := serve(t, newTestRouter(backups, nil, RouterConfig{}), http.MethodGet, "/api/backup/", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "LIST_FAILED", resp.Code)
}

func TestHandleCreateBackup(t *testing.T) {
	t.Run("defaults on empty body", func(t *testing.T) {
		backups := new(mockBackupService)
		backups.On("CreateBackup", backup.BackupOptions{
			IncludeSchema:    true,
			IncludeData:      true,
			CompressionLevel: backup.DefaultCompressionLevel,
		}).Return(&backup.Artifact{Name: testArtifact}, nil)

		rec, resp := serve(t, newTestRouter(backups, nil, RouterConfig{}), http.MethodPost, "/api/backup/", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, resp.Success)
		assert.Equal(t, "Backup created successfully", resp.Data["message"])
		assert.Equal(t, testArtifact, resp.Data["backupPath"])
		backups.AssertExpectations(t)
	})

	t.Run("explicit options", func(t *testing.T) {
		backups := new(mockBackupService)
		backups.On("CreateBackup", backup.BackupOptions{
			IncludeSchema:    true,
			IncludeData:      false,
			CompressionLevel: 9,
			Algorithm:        backup.CompressionTypeZstd,
			Encrypt:          true,
			EncryptionKey:    "k3y",
		}).Return(&backup.Artifact{Name: testArtifact, Encrypted: true}, nil)

		body := `{"includeData":false,"compressionLevel":9,"compressionAlgorithm":"zstd","encrypt":true,"encryptionKey":"k3y"}`
		rec, _ := serve(t, newTestRouter(backups, nil, RouterConfig{}), http.MethodPost, "/api/backup/", body)

		assert.Equal(t, http.StatusOK, rec.Code)
		backups.AssertExpectations(t)
	})

	t.Run("unknown compression algorithm", func(t *testing.T) {
		backups := new(mockBackupService)

		rec, resp := serve(t, newTestRouter(backups, nil, RouterConfig{}), http.MethodPost, "/api/backup/", `{"compressionAlgorithm":"brotli"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", resp.Code)
		backups.AssertNotCalled(t, "CreateBackup", mock.Anything)
	})

	t.Run("compression level out of range", func(t *testing.T) {
		backups := new(mockBackupService)

		rec, resp := serve(t, newTestRouter(backups, nil, RouterConfig{}), http.MethodPost, "/api/backup/", `{"compressionLevel":12}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", resp.Code)
		assert.Contains(t, resp.Error, "compressionLevel")
		backups.AssertNotCalled(t, "CreateBackup", mock.Anything)
	})

	t.Run("encrypt without key", func(t *testing.T) {
		backups := new(mockBackupService)

		rec, resp := serve(t, newTestRouter(backups, nil, RouterConfig{}), http.MethodPost, "/api/backup/", `{"encrypt":true}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, resp.Error, "encryptionKey is required")
		backups.AssertNotCalled(t, "CreateBackup", mock.Anything)
	})

	t.Run("malformed body", func(t *testing.T) {
		backups := new(mockBackupService)

		rec, resp := serve(t, newTestRouter(backups, nil, RouterConfig{}), http.MethodPost, "/api/backup/", `{"includeData":`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_JSON", resp.Code)
	})

	t.Run("manager failure", func(t *testing.T) {
		backups := new(mockBackupService)
		backups.On("CreateBackup", mock.Anything).Return(nil, backup.NewIntrospectionError("show tables failed", errors.New("gone away")))

		rec, resp := serve(t, newTestRouter(backups, nil, RouterConfig{}), http.MethodPost, "/api/backup/", "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Failed to create backup", resp.Error)
	})
}

func TestHandleDeleteBackup(t *testing.T) {
	t.Run("deletes", func(t *testing.T) {
		backups := new(mockBackupService)
		backups.On("DeleteBackup", testArtifact).Return(nil)

		rec, resp := serve(t, newTestRouter(backups, nil, RouterConfig{}), http.MethodDelete, "/api/backup/?fileName="+testArtifact, "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Backup deleted successfully", resp.Data["message"])
		backups.AssertExpectations(t)
	})

	t.Run("missing name", func(t *testing.T) {
		backups := new(mockBackupService)

		rec, resp := serve(t, newTestRouter(backups, nil, RouterConfig{}), http.MethodDelete, "/api/backup/", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "fileName is required", resp.Error)
	})

	t.Run("path traversal", func(t *testing.T) {
		backups := new(mockBackupService)

		rec, resp := serve(t, newTestRouter(backups, nil, RouterConfig{}), http.MethodDelete, "/api/backup/?fileName=../../etc/passwd", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_FILE_NAME", resp.Code)
		backups.AssertNotCalled(t, "DeleteBackup", mock.Anything)
	})

	t.Run("not found", func(t *testing.T) {
		backups := new(mockBackupService)
		backups.On("DeleteBackup", testArtifact).Return(backup.NewNotFoundError("backup not found", nil))

		rec, resp := serve(t, newTestRouter(backups, nil, RouterConfig{}), http.MethodDelete, "/api/backup/?fileName="+testArtifact, "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "NOT_FOUND", resp.Code)
	})
}

func TestHandleRestoreBackup(t *testing.T) {
	body := `{"fileName":"` + testArtifact + `","overwriteExisting":true,"encryptionKey":"k3y"}`
	wantOpts := backup.RestoreOptions{OverwriteExisting: true, ValidateData: true, EncryptionKey: "k3y"}

	t.Run("restores", func(t *testing.T) {
		backups := new(mockBackupService)
		backups.On("ListBackups").Return(listed(testArtifact), nil)
		backups.On("RestoreFromBackup", testArtifact, wantOpts).Return(&backup.RestoreResult{
			Artifact:      testArtifact,
			DroppedTables: []string{"users"},
			Statements: []backup.StatementResult{
				{Index: 0, SQL: "CREATE TABLE `users` (id int)", Succeeded: true},
				{Index: 1, SQL: "INSERT INTO `users` VALUES (1)", Error: "Duplicate entry", Conflict: true},
			},
			Succeeded: 1,
			Failed:    1,
		}, nil)

		rec, resp := serve(t, newTestRouter(backups, nil, RouterConfig{}), http.MethodPut, "/api/backup/", body)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Backup restored successfully", resp.Data["message"])
		assert.EqualValues(t, 1, resp.Data["succeeded"])
		assert.EqualValues(t, 1, resp.Data["failed"])
		failed, ok := resp.Data["failedStatements"].([]interface{})
		require.True(t, ok)
		assert.Len(t, failed, 1)
		backups.AssertExpectations(t)
	})

	t.Run("invalid name", func(t *testing.T) {
		backups := new(mockBackupService)

		rec, resp := serve(t, newTestRouter(backups, nil, RouterConfig{}), http.MethodPut, "/api/backup/", `{"fileName":"../../etc/passwd"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, resp.Error, "fileName is not a valid backup file name")
		backups.AssertNotCalled(t, "ListBackups")
	})

	t.Run("not listed", func(t *testing.T) {
		backups := new(mockBackupService)
		backups.On("ListBackups").Return(listed("backup-2023-01-01T00-00-00-000Z.sql"), nil)

		rec, resp := serve(t, newTestRouter(backups, nil, RouterConfig{}), http.MethodPut, "/api/backup/", body)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Backup file not found", resp.Error)
		backups.AssertNotCalled(t, "RestoreFromBackup", mock.Anything, mock.Anything)
	})

	t.Run("wrong key", func(t *testing.T) {
		backups := new(mockBackupService)
		backups.On("ListBackups").Return(listed(testArtifact), nil)
		backups.On("RestoreFromBackup", testArtifact, wantOpts).Return(nil, backup.NewDecryptionError("authentication failed", nil))

		rec, resp := serve(t, newTestRouter(backups, nil, RouterConfig{}), http.MethodPut, "/api/backup/", body)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "DECRYPTION_FAILED", resp.Code)
	})

	t.Run("unsupported format version", func(t *testing.T) {
		backups := new(mockBackupService)
		backups.On("ListBackups").Return(listed(testArtifact), nil)
		backups.On("RestoreFromBackup", testArtifact, wantOpts).Return(nil, backup.NewCodecError("unsupported artifact format version", nil))

		rec, resp := serve(t, newTestRouter(backups, nil, RouterConfig{}), http.MethodPut, "/api/backup/", body)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "UNSUPPORTED_FORMAT", resp.Code)
	})

	t.Run("restore failure", func(t *testing.T) {
		backups := new(mockBackupService)
		backups.On("ListBackups").Return(listed(testArtifact), nil)
		backups.On("RestoreFromBackup", testArtifact, wantOpts).Return(nil, errors.New("drop table failed"))

		rec, resp := serve(t, newTestRouter(backups, nil, RouterConfig{}), http.MethodPut, "/api/backup/", body)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Failed to restore backup", resp.Error)
	})
}

func TestHandleSchedule(t *testing.T) {
	t.Run("start", func(t *testing.T) {
		scheduler := new(mockScheduler)
		scheduler.On("Start", 12*time.Hour).Return(nil)

		rec, resp := serve(t, newTestRouter(new(mockBackupService), scheduler, RouterConfig{}), http.MethodPatch, "/api/backup/", `{"action":"start","intervalHours":12}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Auto backup started", resp.Data["message"])
		assert.EqualValues(t, 12, resp.Data["intervalHours"])
		scheduler.AssertExpectations(t)
	})

	t.Run("start with default interval", func(t *testing.T) {
		scheduler := new(mockScheduler)
		scheduler.On("Start", 24*time.Hour).Return(nil)

		rec, _ := serve(t, newTestRouter(new(mockBackupService), scheduler, RouterConfig{}), http.MethodPatch, "/api/backup/", `{"action":"start"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		scheduler.AssertExpectations(t)
	})

	t.Run("stop", func(t *testing.T) {
		scheduler := new(mockScheduler)
		scheduler.On("Stop").Return()

		rec, resp := serve(t, newTestRouter(new(mockBackupService), scheduler, RouterConfig{}), http.MethodPatch, "/api/backup/", `{"action":"stop"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Auto backup stopped", resp.Data["message"])
		scheduler.AssertExpectations(t)
	})

	t.Run("invalid action", func(t *testing.T) {
		scheduler := new(mockScheduler)

		rec, resp := serve(t, newTestRouter(new(mockBackupService), scheduler, RouterConfig{}), http.MethodPatch, "/api/backup/", `{"action":"pause"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid action, must be start or stop", resp.Error)
	})

	for _, hours := range []string{"0", "200"} {
		t.Run("interval "+hours, func(t *testing.T) {
			scheduler := new(mockScheduler)

			rec, resp := serve(t, newTestRouter(new(mockBackupService), scheduler, RouterConfig{}), http.MethodPatch, "/api/backup/", `{"action":"start","intervalHours":`+hours+`}`)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, resp.Error, "intervalHours")
			scheduler.AssertNotCalled(t, "Start", mock.Anything)
		})
	}

	t.Run("no scheduler", func(t *testing.T) {
		rec, resp := serve(t, newTestRouter(new(mockBackupService), nil, RouterConfig{}), http.MethodPatch, "/api/backup/", `{"action":"start"}`)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "SCHEDULER_DISABLED", resp.Code)
	})
}

func TestHandleSchedulerStatus(t *testing.T) {
	next := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	scheduler := new(mockScheduler)
	scheduler.On("Status").Return(backup.SchedulerStatus{Running: true, Interval: 6 * time.Hour, NextRun: &next})

	rec, resp := serve(t, newTestRouter(new(mockBackupService), scheduler, RouterConfig{}), http.MethodGet, "/api/backup/scheduler", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp.Data["running"])
	assert.EqualValues(t, 6, resp.Data["intervalHours"])
	assert.Equal(t, "2024-05-02T10:00:00Z", resp.Data["nextRun"])
}
