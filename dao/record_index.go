// dao/record_index.go
package dao

import "sync"

// recordIndex maps normalized emails to their row number. It is rebuilt on
// every poll cycle and invalidated on any write, so a verification between
// cycles falls back to a full scan instead of trusting stale positions.
type recordIndex struct {
	mu    sync.RWMutex
	rows  map[string]int
	valid bool
}

func newRecordIndex() *recordIndex {
	return &recordIndex{}
}

func (idx *recordIndex) rebuild(rows map[string]int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.rows = rows
	idx.valid = true
}

func (idx *recordIndex) invalidate() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.rows = nil
	idx.valid = false
}

// lookup returns the indexed row for key. valid is false when the index has
// been invalidated and the caller must scan.
func (idx *recordIndex) lookup(key string) (row int, found, valid bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if !idx.valid {
		return 0, false, false
	}
	row, found = idx.rows[key]
	return row, found, true
}
