package backup

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"bizadmin/internal/database"
)

type fakeTable struct {
	create  string
	columns []string
	rows    [][]interface{}
}

// fakeDatabase is an in-memory Database. Executed statements are recorded
// but never applied.
type fakeDatabase struct {
	mu       sync.Mutex
	tables   map[string]*fakeTable
	listErr  error
	queryErr map[string]error
	execHook func(statement string) error
	executed []string
}

func newFakeDatabase() *fakeDatabase {
	return &fakeDatabase{
		tables:   make(map[string]*fakeTable),
		queryErr: make(map[string]error),
	}
}

func (f *fakeDatabase) addTable(name, create string, columns []string, rows ...[]interface{}) {
	f.tables[name] = &fakeTable{create: create, columns: columns, rows: rows}
}

func (f *fakeDatabase) ListTables(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	names := make([]string, 0, len(f.tables))
	for name := range f.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeDatabase) Query(ctx context.Context, table string) (*database.ResultSet, error) {
	if err := f.queryErr[table]; err != nil {
		return nil, err
	}
	t, ok := f.tables[table]
	if !ok {
		return nil, fmt.Errorf("table %s does not exist", table)
	}
	if len(t.rows) == 0 {
		return &database.ResultSet{Columns: t.columns, Rows: [][]interface{}{}}, nil
	}
	return &database.ResultSet{Columns: t.columns, Rows: t.rows}, nil
}

func (f *fakeDatabase) QueryRaw(ctx context.Context, query string) (*database.ResultSet, error) {
	const prefix = "SHOW CREATE TABLE "
	if !strings.HasPrefix(query, prefix) {
		return nil, fmt.Errorf("unsupported query: %s", query)
	}
	name := strings.Trim(strings.TrimPrefix(query, prefix), "`")
	t, ok := f.tables[name]
	if !ok {
		return nil, fmt.Errorf("table %s does not exist", name)
	}
	return &database.ResultSet{
		Columns: []string{"Table", "Create Table"},
		Rows:    [][]interface{}{{name, t.create}},
	}, nil
}

func (f *fakeDatabase) ExecuteRaw(ctx context.Context, statement string) error {
	f.mu.Lock()
	f.executed = append(f.executed, statement)
	hook := f.execHook
	f.mu.Unlock()

	if hook != nil {
		return hook(statement)
	}
	return nil
}

func (f *fakeDatabase) executedStatements() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.executed...)
}

type notification struct {
	level   string
	message string
	fields  map[string]interface{}
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notification
}

func (r *recordingNotifier) add(level, message string, fields map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, notification{level: level, message: message, fields: fields})
}

func (r *recordingNotifier) LogInfo(message string, fields map[string]interface{}) {
	r.add("info", message, fields)
}

func (r *recordingNotifier) LogWarn(message string, fields map[string]interface{}) {
	r.add("warn", message, fields)
}

func (r *recordingNotifier) LogError(message string, fields map[string]interface{}) {
	r.add("error", message, fields)
}

func (r *recordingNotifier) count(level string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, msg := range r.messages {
		if msg.level == level {
			n++
		}
	}
	return n
}

func (r *recordingNotifier) countMessage(level, message string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, msg := range r.messages {
		if msg.level == level && msg.message == message {
			n++
		}
	}
	return n
}

func (r *recordingNotifier) has(level, message string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range r.messages {
		if msg.level == level && msg.message == message {
			return true
		}
	}
	return false
}

type fakeMirror struct {
	mu        sync.Mutex
	uploaded  map[string][]byte
	deleted   []string
	uploadErr error
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{uploaded: make(map[string][]byte)}
}

func (m *fakeMirror) Upload(ctx context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return m.uploadErr
	}
	m.uploaded[name] = data
	return nil
}

func (m *fakeMirror) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, name)
	delete(m.uploaded, name)
	return nil
}

func (m *fakeMirror) Provider() string { return "fake" }

// steppingClock returns a time source that advances by step on every call
func steppingClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := current
		current = current.Add(step)
		return t
	}
}

func productsDatabase() *fakeDatabase {
	db := newFakeDatabase()
	db.addTable("products",
		"CREATE TABLE products (\n  id int NOT NULL,\n  sku varchar(32) NOT NULL,\n  PRIMARY KEY (id)\n)",
		[]string{"id", "sku"},
		[]interface{}{int64(1), "A-1"},
	)
	return db
}
