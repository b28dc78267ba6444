// db/sheets.go
package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	logger "github.com/calltoleap/gatekeeper/logging"
)

// SheetsClient adapts the Google Sheets values API to the rectangular
// get/update/append/clear surface the record DAO depends on. Every call
// carries a bounded request timeout; an expired call is reported as failed
// and never retried inline.
type SheetsClient struct {
	svc           *sheets.Service
	spreadsheetID string
	timeout       time.Duration
}

func NewSheetsClient(ctx context.Context, spreadsheetID, credentialsFile string, timeout time.Duration) (*SheetsClient, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	logger.Info("Connected to record store", zap.String("spreadsheetID", spreadsheetID))
	return &SheetsClient{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		timeout:       timeout,
	}, nil
}

// Get reads all populated rows of a range. Cells come back as strings;
// unpopulated trailing cells are absent and must be padded by the caller.
func (c *SheetsClient) Get(ctx context.Context, rng string) ([][]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read range %s: %w", rng, err)
	}
	return toStringRows(resp.Values), nil
}

// Update rewrites a range with the given rows verbatim.
func (c *SheetsClient) Update(ctx context.Context, rng string, rows [][]string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	vr := &sheets.ValueRange{Values: toInterfaceRows(rows)}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update range %s: %w", rng, err)
	}
	return nil
}

// Append adds rows after the last populated row of a range.
func (c *SheetsClient) Append(ctx context.Context, rng string, rows [][]string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	vr := &sheets.ValueRange{Values: toInterfaceRows(rows)}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append to range %s: %w", rng, err)
	}
	return nil
}

// Clear empties every cell of a range.
func (c *SheetsClient) Clear(ctx context.Context, rng string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to clear range %s: %w", rng, err)
	}
	return nil
}

func toStringRows(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, cell := range row {
			if cell == nil {
				continue
			}
			cells[j] = fmt.Sprint(cell)
		}
		rows[i] = cells
	}
	return rows
}

func toInterfaceRows(rows [][]string) [][]interface{} {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		values[i] = cells
	}
	return values
}
