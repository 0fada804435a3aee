package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"bizadmin/internal/errors"
	"bizadmin/internal/logging"
)

const listTablesQuery = `SELECT TABLE_NAME FROM information_schema.TABLES
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'
ORDER BY TABLE_NAME`

// ResultSet is a fully materialized query result. Rows hold one value per
// column in Columns order.
type ResultSet struct {
	Columns []string
	Rows    [][]interface{}
}

// querier is satisfied by both *sql.DB and *sql.Conn
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Catalog runs the catalog, read and raw statements the backup engine needs
// against a live MySQL connection.
type Catalog struct {
	db     querier
	pool   *sql.DB
	logger *logging.Logger
}

// Session is a Catalog bound to a single connection. Session variables set
// through ExecuteRaw stay in effect for every later statement until Close.
type Session struct {
	*Catalog
	conn *sql.Conn
}

// NewCatalog wraps an open connection pool
func NewCatalog(db *sql.DB, logger *logging.Logger) *Catalog {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Catalog{db: db, pool: db, logger: logger}
}

// Session reserves one connection from the pool
func (c *Catalog) Session(ctx context.Context) (*Session, error) {
	if c.pool == nil {
		return nil, errors.NewAppError(errors.ErrorTypeConnection, "catalog is already bound to a session", nil)
	}
	conn, err := c.pool.Conn(ctx)
	if err != nil {
		return nil, errors.WrapError(err, "failed to reserve connection")
	}
	return &Session{
		Catalog: &Catalog{db: conn, logger: c.logger},
		conn:    conn,
	}, nil
}

// Close returns the connection to the pool
func (s *Session) Close() error {
	return s.conn.Close()
}

// ListTables returns the base tables of the connected schema in name order
func (c *Catalog) ListTables(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, listTablesQuery)
	if err != nil {
		return nil, errors.WrapError(err, "failed to list tables")
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.WrapError(err, "failed to scan table name")
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapError(err, "failed to iterate tables")
	}
	return tables, nil
}

// Query reads every row of table
func (c *Catalog) Query(ctx context.Context, table string) (*ResultSet, error) {
	return c.QueryRaw(ctx, "SELECT * FROM "+QuoteIdentifier(table))
}

// QueryRaw runs an arbitrary read statement and materializes its result
func (c *Catalog) QueryRaw(ctx context.Context, query string) (*ResultSet, error) {
	startTime := time.Now()
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		c.logger.LogSQLExecution(query, time.Since(startTime), 0, err)
		return nil, errors.WrapError(err, "query failed")
	}
	defer rows.Close()

	result, err := scanResultSet(rows)
	c.logger.LogSQLExecution(query, time.Since(startTime), int64(len(resultRows(result))), err)
	if err != nil {
		return nil, errors.WrapError(err, "failed to read query result")
	}
	return result, nil
}

// ExecuteRaw executes a single statement
func (c *Catalog) ExecuteRaw(ctx context.Context, statement string) error {
	startTime := time.Now()
	result, err := c.db.ExecContext(ctx, statement)

	var rowsAffected int64
	if result != nil {
		rowsAffected, _ = result.RowsAffected()
	}
	c.logger.LogSQLExecution(logging.SanitizeSQL(statement), time.Since(startTime), rowsAffected, err)

	if err != nil {
		return errors.WrapError(err, "statement failed")
	}
	return nil
}

// QuoteIdentifier wraps name in backticks, doubling embedded backticks
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func resultRows(rs *ResultSet) [][]interface{} {
	if rs == nil {
		return nil
	}
	return rs.Rows
}

func scanResultSet(rows *sql.Rows) (*ResultSet, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	result := &ResultSet{Columns: columns}
	for rows.Next() {
		raw := make([]interface{}, len(columns))
		dest := make([]interface{}, len(columns))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		row := make([]interface{}, len(columns))
		for i, value := range raw {
			typeName := ""
			if i < len(types) && types[i] != nil {
				typeName = types[i].DatabaseTypeName()
			}
			row[i] = convertValue(typeName, value)
		}
		result.Rows = append(result.Rows, row)
	}
	return result, rows.Err()
}

// convertValue turns the driver's text-protocol bytes into typed values so the
// literal encoder can tell numbers from strings.
func convertValue(typeName string, value interface{}) interface{} {
	b, ok := value.([]byte)
	if !ok {
		return value
	}

	switch strings.ToUpper(typeName) {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT", "YEAR":
		if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
			return n
		}
		if n, err := strconv.ParseUint(string(b), 10, 64); err == nil {
			return n
		}
		return string(b)
	case "UNSIGNED TINYINT", "UNSIGNED SMALLINT", "UNSIGNED MEDIUMINT", "UNSIGNED INT", "UNSIGNED BIGINT":
		if n, err := strconv.ParseUint(string(b), 10, 64); err == nil {
			return n
		}
		return string(b)
	case "DECIMAL", "NUMERIC":
		return json.Number(string(b))
	case "FLOAT", "DOUBLE", "REAL":
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return f
		}
		return string(b)
	case "JSON":
		return json.RawMessage(append([]byte(nil), b...))
	case "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BINARY", "VARBINARY", "BIT", "GEOMETRY":
		return append([]byte(nil), b...)
	default:
		return string(b)
	}
}

