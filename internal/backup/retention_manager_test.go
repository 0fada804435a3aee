package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStore(t *testing.T, count int) (*LocalStore, []string) {
	t.Helper()
	dir := t.TempDir()
	store := NewLocalStore(dir)

	base := time.Now().Add(-24 * time.Hour)
	names := make([]string, 0, count)
	for i := 0; i < count; i++ {
		name := ArtifactName(testEpoch.Add(time.Duration(i) * time.Minute))
		_, err := store.Create(name, []byte("SELECT 1;"))
		require.NoError(t, err)
		mtime := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(filepath.Join(dir, name), mtime, mtime))
		names = append(names, name)
	}
	return store, names
}

func TestNewRetentionManager(t *testing.T) {
	store := NewLocalStore(t.TempDir())

	assert.Equal(t, DefaultMaxBackups, NewRetentionManager(store, 0, nil, nil).MaxBackups())
	assert.Equal(t, DefaultMaxBackups, NewRetentionManager(store, -3, nil, nil).MaxBackups())
	assert.Equal(t, 4, NewRetentionManager(store, 4, nil, nil).MaxBackups())
}

func TestRetentionManager_Apply(t *testing.T) {
	store, names := seedStore(t, 12)
	mirror := newFakeMirror()
	notifier := &recordingNotifier{}
	rm := NewRetentionManager(store, 10, mirror, notifier)

	result, err := rm.Apply(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 12, result.TotalBackupsProcessed)
	assert.Equal(t, 2, result.BackupsDeleted)
	assert.Equal(t, 10, result.BackupsKept)
	assert.Empty(t, result.Errors)

	require.Len(t, result.DeletedBackups, 2)
	assert.Equal(t, names[0], result.DeletedBackups[0].Name)
	assert.Equal(t, names[1], result.DeletedBackups[1].Name)
	assert.Equal(t, []string{names[0], names[1]}, mirror.deleted)
	assert.Equal(t, 2, notifier.countMessage("info", "Deleted old backup"))

	remaining, err := store.List()
	require.NoError(t, err)
	require.Len(t, remaining, 10)
	assert.Equal(t, names[11], remaining[0].Name)
	assert.Equal(t, names[2], remaining[9].Name)
}

func TestRetentionManager_Apply_DryRun(t *testing.T) {
	store, names := seedStore(t, 5)
	rm := NewRetentionManager(store, 3, nil, nil)

	candidates, err := rm.Candidates()
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	result, err := rm.Apply(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, 2, result.BackupsDeleted)

	remaining, err := store.List()
	require.NoError(t, err)
	assert.Len(t, remaining, 5)
	assert.True(t, store.Exists(names[0]))
}

func TestRetentionManager_Apply_UnderLimit(t *testing.T) {
	store, _ := seedStore(t, 3)
	rm := NewRetentionManager(store, 10, nil, nil)

	result, err := rm.Apply(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.BackupsDeleted)
	assert.Equal(t, 3, result.BackupsKept)

	candidates, err := rm.Candidates()
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
