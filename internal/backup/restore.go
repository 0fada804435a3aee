package backup

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bizadmin/internal/database"
	apperrors "bizadmin/internal/errors"
)

const (
	disableForeignKeyChecks = "SET FOREIGN_KEY_CHECKS=0"
	enableForeignKeyChecks  = "SET FOREIGN_KEY_CHECKS=1"
)

// sessionOpener is implemented by databases that can pin one connection, so
// session variables set during a replay apply to every statement of it.
type sessionOpener interface {
	Session(ctx context.Context) (*database.Session, error)
}

// RestoreFromBackup replays a stored artifact against the database
func (m *Manager) RestoreFromBackup(ctx context.Context, name string, opts RestoreOptions) (*RestoreResult, error) {
	data, err := m.store.Read(name)
	if err != nil {
		m.metrics.RecordRestore(nil, err)
		return nil, err
	}
	return m.restore(ctx, name, data, opts)
}

// RestoreByPath replays an artifact file outside the store. The file name
// must still follow the artifact naming pattern.
func (m *Manager) RestoreByPath(ctx context.Context, path string, opts RestoreOptions) (*RestoreResult, error) {
	name := filepath.Base(path)
	if err := ValidateArtifactName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = NewNotFoundError("backup file not found", err).WithContext("path", path)
		} else {
			err = NewStorageError("failed to read backup file", err).WithContext("path", path)
		}
		m.metrics.RecordRestore(nil, err)
		return nil, err
	}
	return m.restore(ctx, name, data, opts)
}

func (m *Manager) restore(ctx context.Context, name string, data []byte, opts RestoreOptions) (*RestoreResult, error) {
	startTime := time.Now()

	result, err := m.replay(ctx, name, data, opts)
	if result != nil {
		result.Duration = time.Since(startTime)
	}
	m.metrics.RecordRestore(result, err)

	if err != nil {
		notify(m.notifier, levelError, "Restore failed", map[string]interface{}{
			"artifact": name,
			"error":    err.Error(),
		})
		return nil, err
	}

	m.logger.LogRestoreCompleted(name, result.Succeeded, result.Failed, result.Duration)
	notify(m.notifier, levelInfo, "Restore completed", map[string]interface{}{
		"artifact":  name,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	})
	return result, nil
}

func (m *Manager) replay(ctx context.Context, name string, data []byte, opts RestoreOptions) (*RestoreResult, error) {
	script, err := m.codec.Decode(data, opts.EncryptionKey)
	if err != nil {
		return nil, err
	}

	if opts.ValidateData {
		validator := NewScriptValidator(m.strict || opts.StrictValidation, m.notifier)
		if err := validator.Validate(script); err != nil {
			return nil, err
		}
	}

	db, release, err := m.session(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := db.ExecuteRaw(ctx, disableForeignKeyChecks); err != nil {
		return nil, NewStatementExecutionError("failed to disable foreign key checks", err)
	}
	defer func() {
		if err := db.ExecuteRaw(context.WithoutCancel(ctx), enableForeignKeyChecks); err != nil {
			notify(m.notifier, levelWarn, "Failed to re-enable foreign key checks", map[string]interface{}{
				"artifact": name,
				"error":    err.Error(),
			})
		}
	}()

	result := &RestoreResult{Artifact: name}

	if opts.OverwriteExisting {
		dropped, err := m.dropAllTables(ctx, db)
		result.DroppedTables = dropped
		if err != nil {
			return nil, err
		}
	}

	for i, statement := range SplitStatements(script) {
		stmt := StatementResult{Index: i, SQL: statement}

		if err := db.ExecuteRaw(ctx, statement); err != nil {
			stmt.Conflict = apperrors.IsConflict(err)
			stmt.Error = err.Error()

			execErr := NewStatementExecutionError("failed to execute SQL statement", err).
				WithContext("index", i)
			notify(m.notifier, levelWarn, execErr.Message, map[string]interface{}{
				"artifact":  name,
				"index":     i,
				"statement": truncateStatement(statement),
				"conflict":  stmt.Conflict,
				"error":     err.Error(),
			})
		} else {
			stmt.Succeeded = true
		}

		result.record(stmt)
	}

	if result.Failed > 0 {
		result.Warnings = append(result.Warnings, "some statements failed and were skipped")
	}
	return result, nil
}

// session pins a connection when the database supports it. The returned
// release func must be called once the replay is done.
func (m *Manager) session(ctx context.Context) (Database, func(), error) {
	opener, ok := m.db.(sessionOpener)
	if !ok {
		return m.db, func() {}, nil
	}
	session, err := opener.Session(ctx)
	if err != nil {
		return nil, nil, NewStatementExecutionError("failed to open restore session", err)
	}
	return session, func() { session.Close() }, nil
}

// dropAllTables runs on db with foreign key checks already disabled, so
// referenced tables can be dropped in any order.
func (m *Manager) dropAllTables(ctx context.Context, db Database) ([]string, error) {
	tables, err := NewIntrospector(db, m.notifier).ListTables(ctx)
	if err != nil {
		return nil, err
	}

	var dropped []string
	for _, table := range tables {
		if err := db.ExecuteRaw(ctx, "DROP TABLE IF EXISTS "+database.QuoteIdentifier(table)); err != nil {
			return dropped, NewStatementExecutionError("failed to drop existing table", err).
				WithContext("table", table)
		}
		dropped = append(dropped, table)
	}
	return dropped, nil
}

// SplitStatements breaks a script into executable statements. Lines starting
// with "--" outside a quoted literal are dropped, the rest is split on
// semicolons outside single-quoted literals, and every non-blank statement
// gets its terminating semicolon back.
func SplitStatements(script string) []string {
	var (
		statements []string
		current    strings.Builder
		inQuote    bool
	)

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		current.Reset()
		if stmt != "" {
			statements = append(statements, stmt+";")
		}
	}

	lines := strings.SplitAfter(script, "\n")
	for _, line := range lines {
		if !inQuote && strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		for _, r := range line {
			switch {
			case r == '\'':
				inQuote = !inQuote
			case r == ';' && !inQuote:
				flush()
				continue
			}
			current.WriteRune(r)
		}
	}
	flush()

	return statements
}

func truncateStatement(statement string) string {
	const limit = 200
	if len(statement) <= limit {
		return statement
	}
	return statement[:limit] + "..."
}
