package backup

import (
	"context"

	"bizadmin/internal/database"
)

// Database is the minimal catalog, read and execute contract the backup
// engine needs. database.Catalog implements it for MySQL.
type Database interface {
	ListTables(ctx context.Context) ([]string, error)
	Query(ctx context.Context, table string) (*database.ResultSet, error)
	QueryRaw(ctx context.Context, query string) (*database.ResultSet, error)
	ExecuteRaw(ctx context.Context, statement string) error
}

// Mirror keeps an off-host copy of every artifact in the store
type Mirror interface {
	Upload(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error
	Provider() string
}

// Notifier receives fire-and-forget lifecycle messages from backup and
// restore runs
type Notifier interface {
	LogInfo(message string, fields map[string]interface{})
	LogWarn(message string, fields map[string]interface{})
	LogError(message string, fields map[string]interface{})
}

var _ Database = (*database.Catalog)(nil)
