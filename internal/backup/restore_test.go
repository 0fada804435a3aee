package backup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name     string
		script   string
		expected []string
	}{
		{
			name:     "empty",
			script:   "",
			expected: nil,
		},
		{
			name:     "comments only",
			script:   "-- Database Schema Backup\n-- Generated at: now\n\n",
			expected: nil,
		},
		{
			name:   "schema and data",
			script: "-- Table: t\nCREATE TABLE t (\n  a int\n);\n\n-- Data for table: t\nINSERT INTO t (a) VALUES (1);\nINSERT INTO t (a) VALUES (2);\n",
			expected: []string{
				"CREATE TABLE t (\n  a int\n);",
				"INSERT INTO t (a) VALUES (1);",
				"INSERT INTO t (a) VALUES (2);",
			},
		},
		{
			name:     "semicolon inside literal",
			script:   "INSERT INTO t (a) VALUES ('x; y');",
			expected: []string{"INSERT INTO t (a) VALUES ('x; y');"},
		},
		{
			name:     "doubled quotes",
			script:   "INSERT INTO t (a) VALUES ('it''s; fine');INSERT INTO t (a) VALUES ('b');",
			expected: []string{"INSERT INTO t (a) VALUES ('it''s; fine');", "INSERT INTO t (a) VALUES ('b');"},
		},
		{
			name:     "comment marker inside multi-line literal",
			script:   "INSERT INTO t (a) VALUES ('first\n-- still data\nlast');\n",
			expected: []string{"INSERT INTO t (a) VALUES ('first\n-- still data\nlast');"},
		},
		{
			name:     "missing final terminator",
			script:   "INSERT INTO t (a) VALUES (1);\nINSERT INTO t (a) VALUES (2)",
			expected: []string{"INSERT INTO t (a) VALUES (1);", "INSERT INTO t (a) VALUES (2);"},
		},
		{
			name:     "blank statements",
			script:   ";;\n ; SELECT 1;",
			expected: []string{"SELECT 1;"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitStatements(tt.script))
		})
	}
}

func TestTruncateStatement(t *testing.T) {
	short := "SELECT 1;"
	assert.Equal(t, short, truncateStatement(short))

	long := make([]byte, 250)
	for i := range long {
		long[i] = 'a'
	}
	truncated := truncateStatement(string(long))
	assert.Len(t, truncated, 203)
}

// foreignKeyEnforcer rejects statements the way MySQL does while foreign key
// checks are on. parents maps a child table to the table it references.
type foreignKeyEnforcer struct {
	checks  bool
	parents map[string]string
	created map[string]bool
	rows    map[string]int
}

func newForeignKeyEnforcer(existing ...string) *foreignKeyEnforcer {
	e := &foreignKeyEnforcer{
		checks:  true,
		parents: map[string]string{"orders": "customers", "order_items": "orders"},
		created: make(map[string]bool),
		rows:    make(map[string]int),
	}
	for _, table := range existing {
		e.created[table] = true
	}
	return e
}

func (e *foreignKeyEnforcer) exec(statement string) error {
	fields := strings.Fields(statement)
	switch {
	case strings.HasPrefix(statement, "SET FOREIGN_KEY_CHECKS=0"):
		e.checks = false
	case strings.HasPrefix(statement, "SET FOREIGN_KEY_CHECKS=1"):
		e.checks = true
	case strings.HasPrefix(statement, "DROP TABLE IF EXISTS"):
		table := strings.Trim(fields[4], "`")
		for child, parent := range e.parents {
			if e.checks && parent == table && e.created[child] {
				return &mysql.MySQLError{Number: 3730, Message: "Cannot drop table '" + table + "' referenced by a foreign key constraint"}
			}
		}
		e.created[table] = false
	case strings.HasPrefix(statement, "CREATE TABLE"):
		table := fields[2]
		if parent := e.parents[table]; e.checks && parent != "" && !e.created[parent] {
			return &mysql.MySQLError{Number: 1824, Message: "Failed to open the referenced table '" + parent + "'"}
		}
		e.created[table] = true
	case strings.HasPrefix(statement, "INSERT INTO"):
		table := fields[2]
		if parent := e.parents[table]; e.checks && parent != "" && e.rows[parent] == 0 {
			return &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"}
		}
		e.rows[table]++
	}
	return nil
}

func orderTablesDatabase() *fakeDatabase {
	db := newFakeDatabase()
	db.addTable("customers", "CREATE TABLE customers (id int PRIMARY KEY)",
		[]string{"id"},
		[]interface{}{int64(1)},
	)
	db.addTable("orders", "CREATE TABLE orders (id int PRIMARY KEY, customer_id int, "+
		"FOREIGN KEY (customer_id) REFERENCES customers(id))",
		[]string{"id", "customer_id"},
		[]interface{}{int64(5), int64(1)},
	)
	db.addTable("order_items", "CREATE TABLE order_items (id int PRIMARY KEY, order_id int, "+
		"FOREIGN KEY (order_id) REFERENCES orders(id))",
		[]string{"id", "order_id"},
		[]interface{}{int64(10), int64(5)},
	)
	return db
}

func TestManager_Restore_ChildTableSortsBeforeParent(t *testing.T) {
	db := orderTablesDatabase()
	m, _ := newTestManager(t, db)

	artifact, err := m.CreateBackup(context.Background(), DefaultBackupOptions())
	require.NoError(t, err)

	enforcer := newForeignKeyEnforcer("customers", "orders", "order_items")
	db.execHook = enforcer.exec

	result, err := m.RestoreFromBackup(context.Background(), artifact.Name, RestoreOptions{OverwriteExisting: true})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Failed, result.FailedStatements())
	assert.Equal(t, []string{"customers", "order_items", "orders"}, result.DroppedTables)
	assert.Equal(t, 1, enforcer.rows["order_items"])
	assert.True(t, enforcer.checks)

	var order []string
	for _, stmt := range result.Statements {
		if strings.HasPrefix(stmt.SQL, "CREATE TABLE") || strings.HasPrefix(stmt.SQL, "INSERT INTO") {
			order = append(order, strings.Fields(stmt.SQL)[2])
		}
	}
	assert.Equal(t, []string{
		"customers", "order_items", "orders",
		"customers", "order_items", "orders",
	}, order)
}

func TestManager_Restore_LegacyScriptRunsWithoutForeignKeyChecks(t *testing.T) {
	enforcer := newForeignKeyEnforcer()
	db := newFakeDatabase()
	db.execHook = enforcer.exec
	m, dir := newTestManager(t, db)

	name := ArtifactName(testEpoch)
	legacy := "-- Table: order_items\nCREATE TABLE order_items (id int, order_id int REFERENCES orders(id));\n\n" +
		"-- Table: orders\nCREATE TABLE orders (id int);\n\n" +
		"INSERT INTO order_items (id, order_id) VALUES (10, 1);\n" +
		"INSERT INTO orders (id) VALUES (1);\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(legacy), 0644))

	result, err := m.RestoreFromBackup(context.Background(), name, RestoreOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.True(t, enforcer.checks)
}
