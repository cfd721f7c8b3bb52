package database

import (
	"sync"

	"gorm.io/gorm"
)

// QueryCounter counts the statements gorm issues, per table. Raw SQL is
// recorded under "raw".
type QueryCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewQueryCounter() *QueryCounter {
	return &QueryCounter{counts: make(map[string]int)}
}

// Register installs the counter on db's query and row callbacks.
func (qc *QueryCounter) Register(db *gorm.DB) error {
	if err := db.Callback().Query().After("gorm:query").Register("dei:count_query", qc.record); err != nil {
		return err
	}
	return db.Callback().Row().After("gorm:row").Register("dei:count_row", qc.record)
}

func (qc *QueryCounter) record(tx *gorm.DB) {
	table := tx.Statement.Table
	if table == "" {
		table = "raw"
	}
	qc.mu.Lock()
	qc.counts[table]++
	qc.mu.Unlock()
}

// Count returns the number of statements recorded against table.
func (qc *QueryCounter) Count(table string) int {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	return qc.counts[table]
}

// Total returns the number of statements recorded.
func (qc *QueryCounter) Total() int {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	n := 0
	for _, c := range qc.counts {
		n += c
	}
	return n
}

func (qc *QueryCounter) Reset() {
	qc.mu.Lock()
	qc.counts = make(map[string]int)
	qc.mu.Unlock()
}
