package backup

import (
	"context"
	"strings"

	"bizadmin/internal/database"
)

// Introspector reads table names and creation statements from the catalog
type Introspector struct {
	db       Database
	notifier Notifier
}

// NewIntrospector creates an introspector over db
func NewIntrospector(db Database, notifier Notifier) *Introspector {
	return &Introspector{db: db, notifier: notifier}
}

// ListTables returns the user tables in name order. A failure here aborts
// the backup run.
func (i *Introspector) ListTables(ctx context.Context) ([]string, error) {
	tables, err := i.db.ListTables(ctx)
	if err != nil {
		return nil, NewIntrospectionError("failed to list tables", err)
	}
	return tables, nil
}

// TableSchema returns the CREATE TABLE statement for name, or "" when the
// table is gone or the catalog has no row for it.
func (i *Introspector) TableSchema(ctx context.Context, name string) string {
	result, err := i.db.QueryRaw(ctx, "SHOW CREATE TABLE "+database.QuoteIdentifier(name))
	if err != nil {
		notify(i.notifier, levelWarn, "Failed to read table schema", map[string]interface{}{
			"table": name,
			"error": err.Error(),
		})
		return ""
	}

	create := createStatement(result)
	if create == "" {
		notify(i.notifier, levelWarn, "No schema returned for table", map[string]interface{}{"table": name})
	}
	return create
}

// createStatement picks the "Create Table" column of SHOW CREATE TABLE,
// falling back to the second column.
func createStatement(result *database.ResultSet) string {
	if result == nil || len(result.Rows) == 0 {
		return ""
	}

	column := -1
	for idx, name := range result.Columns {
		if strings.EqualFold(name, "Create Table") {
			column = idx
			break
		}
	}
	if column == -1 {
		column = 1
	}

	row := result.Rows[0]
	if column >= len(row) {
		return ""
	}
	switch v := row[column].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}
