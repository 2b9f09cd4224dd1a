package reconcile

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/marmos91/dirmigrate/pkg/directory"
	"github.com/marmos91/dirmigrate/pkg/userservice/store"
)

func newTestStore(t *testing.T, opts ...store.Option) *store.GORMStore {
	t.Helper()
	s, err := store.New(&store.Config{
		Type:        store.DatabaseTypeSQLite,
		SQLite:      store.SQLiteConfig{Path: ":memory:"},
		AutoMigrate: true,
	}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var errConnReset = errors.New("connection reset by peer")

// failInserts makes every insert into table fail until the returned
// function is called.
func failInserts(t *testing.T, s *store.GORMStore, table string) (restore func()) {
	t.Helper()
	name := "test:fail_insert_" + table
	creates := s.DB().Callback().Create()
	require.NoError(t, creates.Before("gorm:create").Register(name, func(db *gorm.DB) {
		if db.Statement.Table == table {
			_ = db.AddError(errConnReset)
		}
	}))
	return func() { require.NoError(t, creates.Remove(name)) }
}

// uniqueContacts adds a unique index on the users contact column.
func uniqueContacts(t *testing.T, s *store.GORMStore) {
	t.Helper()
	require.NoError(t, s.DB().Exec("CREATE UNIQUE INDEX idx_users_email ON users (email)").Error)
}

func record(id, contact, features string) directory.Record {
	return directory.Record{
		ID:       id,
		Contact:  contact,
		Username: id,
		Enabled:  true,
		Status:   "CONFIRMED",
		Attributes: []directory.Attribute{
			{Name: "sub", Value: id},
			{Name: "email", Value: contact},
			{Name: "custom:features", Value: features},
		},
	}
}

// recordingMetrics counts every observation.
type recordingMetrics struct {
	mu       sync.Mutex
	pages    int
	skipped  map[string]int
	outcomes map[Outcome]int
	rows     map[string]int
	misses   map[string]int
	unmatch  int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		skipped:  map[string]int{},
		outcomes: map[Outcome]int{},
		rows:     map[string]int{},
		misses:   map[string]int{},
	}
}

func (m *recordingMetrics) ObservePage(int, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages++
}

func (m *recordingMetrics) RecordSkipped(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped[reason]++
}

func (m *recordingMetrics) RecordOutcome(o Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[o]++
}

func (m *recordingMetrics) RecordRowsCreated(table string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[table] += n
}

func (m *recordingMetrics) RecordLookupMiss(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses[kind]++
}

func (m *recordingMetrics) RecordUnmatched() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unmatch++
}
