// dao/record_dao.go
package dao

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	logger "github.com/calltoleap/gatekeeper/logging"
	"github.com/calltoleap/gatekeeper/model"
)

// Column roles within a membership row, relative to the configured range.
// Everything else in the row is opaque pass-through data. The layout is an
// external contract shared with the purchasing process.
const (
	memberEmailCol  = 2
	memberStatusCol = 3
	memberHolderCol = 4

	cancelEmailCol = 0
)

// ValuesAPI is the rectangular store surface the DAO depends on,
// implemented by db.SheetsClient and by test fakes.
type ValuesAPI interface {
	Get(ctx context.Context, rng string) ([][]string, error)
	Update(ctx context.Context, rng string, rows [][]string) error
	Append(ctx context.Context, rng string, rows [][]string) error
	Clear(ctx context.Context, rng string) error
}

// RecordDAO is the typed client for the membership and cancellation tables.
type RecordDAO struct {
	store   ValuesAPI
	members tableRange
	cancels tableRange
	index   *recordIndex
}

func NewRecordDAO(store ValuesAPI, membersRange, cancellationsRange string) (*RecordDAO, error) {
	members, err := parseTableRange(membersRange)
	if err != nil {
		return nil, fmt.Errorf("invalid members range: %w", err)
	}
	cancels, err := parseTableRange(cancellationsRange)
	if err != nil {
		return nil, fmt.Errorf("invalid cancellations range: %w", err)
	}
	return &RecordDAO{
		store:   store,
		members: members,
		cancels: cancels,
		index:   newRecordIndex(),
	}, nil
}

// Records loads every membership row and rebuilds the email index as a
// side effect. The poller calls this once per cycle.
func (dao *RecordDAO) Records(ctx context.Context) ([]model.MembershipRecord, error) {
	rows, err := dao.store.Get(ctx, dao.members.String())
	if err != nil {
		return nil, err
	}

	records := make([]model.MembershipRecord, 0, len(rows))
	keys := make(map[string]int, len(rows))
	for i, cells := range rows {
		rec := dao.toRecord(dao.members.startRow+i, cells)
		records = append(records, rec)
		key := matchKey(rec.Email)
		if key == "" {
			continue
		}
		// First row by ascending index wins on duplicate emails.
		if _, exists := keys[key]; !exists {
			keys[key] = rec.Row
		}
	}
	dao.index.rebuild(keys)
	return records, nil
}

// FindByEmail returns the first membership row (by ascending index) whose
// email cell matches, case-insensitive, after trimming. A nil record with a
// nil error means no row matched. The row is always re-read so the caller
// sees the live status, even on an index hit.
func (dao *RecordDAO) FindByEmail(ctx context.Context, email string) (*model.MembershipRecord, error) {
	key := matchKey(email)
	if key == "" {
		return nil, nil
	}

	if row, found, valid := dao.index.lookup(key); valid {
		if !found {
			return nil, nil
		}
		rec, err := dao.fetchRecord(ctx, row)
		if err != nil {
			return nil, err
		}
		if rec != nil && matchKey(rec.Email) == key {
			return rec, nil
		}
		// The sheet changed underneath the index; fall through to a scan.
		dao.index.invalidate()
	}

	records, err := dao.Records(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if matchKey(records[i].Email) == key {
			return &records[i], nil
		}
	}
	return nil, nil
}

// UpdateRecord rewrites the record's full fixed-width row. Opaque cells are
// preserved and the row is padded to the range width, never truncated.
func (dao *RecordDAO) UpdateRecord(ctx context.Context, rec model.MembershipRecord) error {
	row := padRow(rec.Cells, dao.members.width())
	row[memberEmailCol] = rec.Email
	row[memberStatusCol] = rec.Status
	row[memberHolderCol] = rec.HolderID

	if err := dao.store.Update(ctx, dao.members.rowRange(rec.Row), [][]string{row}); err != nil {
		return err
	}
	dao.index.invalidate()
	logger.Debug("Membership row updated",
		zap.Int("row", rec.Row),
		zap.String("status", rec.Status))
	return nil
}

// ResetRecord clears the status and holder cells back to their unpopulated
// form, leaving the email and all opaque cells untouched.
func (dao *RecordDAO) ResetRecord(ctx context.Context, rec model.MembershipRecord) error {
	rec.Status = ""
	rec.HolderID = ""
	return dao.UpdateRecord(ctx, rec)
}

// AppendRecord adds a new membership row after the last populated one.
func (dao *RecordDAO) AppendRecord(ctx context.Context, rec model.MembershipRecord) error {
	row := padRow(rec.Cells, dao.members.width())
	row[memberEmailCol] = rec.Email
	row[memberStatusCol] = rec.Status
	row[memberHolderCol] = rec.HolderID

	if err := dao.store.Append(ctx, dao.members.String(), [][]string{row}); err != nil {
		return err
	}
	dao.index.invalidate()
	return nil
}

// ListCancellations returns every pending cancellation entry.
func (dao *RecordDAO) ListCancellations(ctx context.Context) ([]model.CancellationEntry, error) {
	rows, err := dao.store.Get(ctx, dao.cancels.String())
	if err != nil {
		return nil, err
	}

	var entries []model.CancellationEntry
	for i, cells := range rows {
		padded := padRow(cells, dao.cancels.width())
		email := strings.TrimSpace(padded[cancelEmailCol])
		if email == "" {
			continue
		}
		entries = append(entries, model.CancellationEntry{
			Row:   dao.cancels.startRow + i,
			Email: email,
			Cells: padded,
		})
	}
	return entries, nil
}

// ClearCancellation empties the entry's whole row, auxiliary columns
// included.
func (dao *RecordDAO) ClearCancellation(ctx context.Context, entry model.CancellationEntry) error {
	return dao.store.Clear(ctx, dao.cancels.rowRange(entry.Row))
}

// CancellationPending re-reads the entry's row and reports whether it still
// holds the same email. False means the entry was cleared (or rewritten)
// after the caller's snapshot was taken.
func (dao *RecordDAO) CancellationPending(ctx context.Context, entry model.CancellationEntry) (bool, error) {
	rows, err := dao.store.Get(ctx, dao.cancels.rowRange(entry.Row))
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}
	padded := padRow(rows[0], dao.cancels.width())
	email := strings.TrimSpace(padded[cancelEmailCol])
	return email != "" && EmailsMatch(email, entry.Email), nil
}

// InvalidateIndex drops the email index so the next lookup scans the sheet.
func (dao *RecordDAO) InvalidateIndex() {
	dao.index.invalidate()
}

func (dao *RecordDAO) fetchRecord(ctx context.Context, row int) (*model.MembershipRecord, error) {
	rows, err := dao.store.Get(ctx, dao.members.rowRange(row))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	rec := dao.toRecord(row, rows[0])
	return &rec, nil
}

func (dao *RecordDAO) toRecord(row int, cells []string) model.MembershipRecord {
	padded := padRow(cells, dao.members.width())
	return model.MembershipRecord{
		Row:      row,
		Email:    strings.TrimSpace(padded[memberEmailCol]),
		Status:   strings.TrimSpace(padded[memberStatusCol]),
		HolderID: strings.TrimSpace(padded[memberHolderCol]),
		Cells:    padded,
	}
}

func matchKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailsMatch reports whether two emails resolve to the same record key
// (case-insensitive, trimmed, exact full-string).
func EmailsMatch(a, b string) bool {
	return matchKey(a) == matchKey(b)
}

// CanonicalEmail returns the normalized form used as a lock and index key.
func CanonicalEmail(email string) string {
	return matchKey(email)
}

func padRow(cells []string, width int) []string {
	row := make([]string, width)
	copy(row, cells)
	if len(cells) > width {
		// Never truncate trailing data we did not expect.
		row = append([]string(nil), cells...)
	}
	return row
}

// tableRange is a parsed A1-style range like "Members!A2:E".
type tableRange struct {
	sheet    string
	startCol byte
	endCol   byte
	startRow int
}

func parseTableRange(s string) (tableRange, error) {
	sheet, cells, found := strings.Cut(s, "!")
	if !found {
		return tableRange{}, fmt.Errorf("range %q is missing a sheet name", s)
	}
	start, end, found := strings.Cut(cells, ":")
	if !found {
		return tableRange{}, fmt.Errorf("range %q is missing a column span", s)
	}
	if start == "" || end == "" {
		return tableRange{}, fmt.Errorf("range %q has an empty bound", s)
	}

	startCol := start[0]
	endCol := end[0]
	if startCol < 'A' || startCol > 'Z' || endCol < startCol {
		return tableRange{}, fmt.Errorf("range %q has an invalid column span", s)
	}
	// Single-letter columns only; a second letter would silently parse
	// into the wrong width.
	if len(start) > 1 && !isDigit(start[1]) {
		return tableRange{}, fmt.Errorf("range %q uses an unsupported multi-letter column", s)
	}
	if len(end) > 1 && !isDigit(end[1]) {
		return tableRange{}, fmt.Errorf("range %q uses an unsupported multi-letter column", s)
	}

	startRow := 1
	if len(start) > 1 {
		n, err := strconv.Atoi(start[1:])
		if err != nil || n < 1 {
			return tableRange{}, fmt.Errorf("range %q has an invalid start row", s)
		}
		startRow = n
	}

	return tableRange{sheet: sheet, startCol: startCol, endCol: endCol, startRow: startRow}, nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func (r tableRange) width() int {
	return int(r.endCol-r.startCol) + 1
}

func (r tableRange) String() string {
	return fmt.Sprintf("%s!%c%d:%c", r.sheet, r.startCol, r.startRow, r.endCol)
}

func (r tableRange) rowRange(row int) string {
	return fmt.Sprintf("%s!%c%d:%c%d", r.sheet, r.startCol, row, r.endCol, row)
}
