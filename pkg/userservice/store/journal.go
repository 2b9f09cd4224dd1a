package store

import (
	"sync"
	"time"
)

// Statement is a mutating statement captured in dry-run mode.
type Statement struct {
	Table string
	SQL   string
	Vars  []any
	At    time.Time
}

// Journal collects the statements a dry-run would have executed.
// It is safe for concurrent use.
type Journal struct {
	mu    sync.Mutex
	stmts []Statement
}

// NewJournal creates an empty journal.
func NewJournal() *Journal {
	return &Journal{}
}

// record appends statements contiguously.
func (j *Journal) record(statements ...Statement) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.stmts = append(j.stmts, statements...)
}

// Statements returns a copy of the recorded statements in recording order.
func (j *Journal) Statements() []Statement {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Statement, len(j.stmts))
	copy(out, j.stmts)
	return out
}

// Len returns the number of recorded statements.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.stmts)
}

// Count returns the number of statements recorded against table.
func (j *Journal) Count(table string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := 0
	for _, st := range j.stmts {
		if st.Table == table {
			n++
		}
	}
	return n
}
