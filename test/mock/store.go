// test/mock/store.go
package mock

import (
	"context"
	"strconv"
	"strings"
	"sync"
)

// FakeStore is an in-memory rectangular store implementing dao.ValuesAPI.
// Rows are addressed by absolute row number per sheet, mirroring how the
// real values API behaves, and every mutation is counted so tests can
// assert idempotence.
type FakeStore struct {
	mu     sync.Mutex
	sheets map[string]map[int][]string // sheet -> row -> cells

	GetCalls    int
	UpdateCalls int
	AppendCalls int
	ClearCalls  int

	GetErr    error
	UpdateErr error
	AppendErr error
	ClearErr  error

	// AfterGet, when set, runs after a Get returns its snapshot, outside
	// the store mutex. Lets tests interleave writes between a reader's
	// loads and its later row operations.
	AfterGet func()
}

func NewFakeStore() *FakeStore {
	return &FakeStore{sheets: make(map[string]map[int][]string)}
}

// SetRow seeds a row directly.
func (f *FakeStore) SetRow(sheet string, row int, cells []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows(sheet)[row] = append([]string(nil), cells...)
}

// Row returns a copy of a row's cells, or nil when the row is empty.
func (f *FakeStore) Row(sheet string, row int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	cells, ok := f.rows(sheet)[row]
	if !ok {
		return nil
	}
	return append([]string(nil), cells...)
}

// Mutations returns the total number of write operations performed.
func (f *FakeStore) Mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.UpdateCalls + f.AppendCalls + f.ClearCalls
}

func (f *FakeStore) Get(ctx context.Context, rng string) ([][]string, error) {
	f.mu.Lock()
	f.GetCalls++
	if f.GetErr != nil {
		f.mu.Unlock()
		return nil, f.GetErr
	}

	sheet, startRow, endRow := splitRange(rng)
	rows := f.rows(sheet)

	last := endRow
	if last == 0 {
		for row := range rows {
			if row > last {
				last = row
			}
		}
	}

	var out [][]string
	for row := startRow; row <= last; row++ {
		out = append(out, append([]string(nil), rows[row]...))
	}
	// The real API omits trailing empty rows.
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	hook := f.AfterGet
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

func (f *FakeStore) Update(ctx context.Context, rng string, data [][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpdateCalls++
	if f.UpdateErr != nil {
		return f.UpdateErr
	}

	sheet, startRow, _ := splitRange(rng)
	rows := f.rows(sheet)
	for i, cells := range data {
		rows[startRow+i] = append([]string(nil), cells...)
	}
	return nil
}

func (f *FakeStore) Append(ctx context.Context, rng string, data [][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AppendCalls++
	if f.AppendErr != nil {
		return f.AppendErr
	}

	sheet, startRow, _ := splitRange(rng)
	rows := f.rows(sheet)
	next := startRow
	for row := range rows {
		if row >= next {
			next = row + 1
		}
	}
	for i, cells := range data {
		rows[next+i] = append([]string(nil), cells...)
	}
	return nil
}

func (f *FakeStore) Clear(ctx context.Context, rng string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ClearCalls++
	if f.ClearErr != nil {
		return f.ClearErr
	}

	sheet, startRow, endRow := splitRange(rng)
	rows := f.rows(sheet)
	if endRow == 0 {
		for row := range rows {
			if row >= startRow {
				delete(rows, row)
			}
		}
		return nil
	}
	for row := startRow; row <= endRow; row++ {
		delete(rows, row)
	}
	return nil
}

func (f *FakeStore) rows(sheet string) map[int][]string {
	if f.sheets[sheet] == nil {
		f.sheets[sheet] = make(map[int][]string)
	}
	return f.sheets[sheet]
}

// splitRange parses "Sheet!A2:E" or "Sheet!A7:E7" into sheet name, start
// row and end row (0 = unbounded).
func splitRange(rng string) (sheet string, startRow, endRow int) {
	sheet, cells, _ := strings.Cut(rng, "!")
	start, end, _ := strings.Cut(cells, ":")

	startRow = 1
	if len(start) > 1 {
		if n, err := strconv.Atoi(start[1:]); err == nil {
			startRow = n
		}
	}
	if len(end) > 1 {
		if n, err := strconv.Atoi(end[1:]); err == nil {
			endRow = n
		}
	}
	return sheet, startRow, endRow
}
