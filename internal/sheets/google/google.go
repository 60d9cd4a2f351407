package google

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ledgersync/internal/core"
	ports "ledgersync/internal/sheets"
)

// Ledger tab layout, columns A through N.
const ledgerRange = "A2:N"

const (
	dateLayout  = "2006-01-02"
	stampLayout = time.RFC3339Nano
)

type Config struct {
	SpreadsheetID   string
	LedgerSheet     string
	DashboardSheet  string
	CredentialsJSON []byte
}

type Client struct {
	svc            *gsheet.Service
	spreadsheetID  string
	ledgerSheet    string
	dashboardSheet string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// Ensure interface conformance
var (
	_ ports.LedgerStore    = (*Client)(nil)
	_ ports.DashboardStore = (*Client)(nil)
)

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if len(cfg.CredentialsJSON) == 0 {
		return nil, errors.New("missing spreadsheet credentials")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(cfg.CredentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:            svc,
		spreadsheetID:  cfg.SpreadsheetID,
		ledgerSheet:    cfg.LedgerSheet,
		dashboardSheet: cfg.DashboardSheet,
		sheetIDs:       make(map[string]int64),
	}, nil
}

func (c *Client) ListRows(ctx context.Context) ([]core.Transaction, error) {
	rng := fmt.Sprintf("%s!%s", c.ledgerSheet, ledgerRange)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}

	var out []core.Transaction
	for i, row := range resp.Values {
		cols := toStrings(row)
		if len(cols) == 0 || cols[0] == "" {
			continue
		}
		t, err := parseRow(cols)
		if err != nil {
			return nil, fmt.Errorf("parse ledger row %d: %w", i+2, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *Client) AppendRow(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	rng := fmt.Sprintf("%s!%s", c.ledgerSheet, ledgerRange)
	vr := &gsheet.ValueRange{Values: [][]any{rowValues(t)}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.ledgerSheet, err)
	}
	return t.ID, nil
}

func (c *Client) UpdateRow(ctx context.Context, t core.Transaction) error {
	rowNum, err := c.findRow(ctx, c.ledgerSheet, t.ID)
	if err != nil {
		return err
	}

	rng := fmt.Sprintf("%s!A%d:N%d", c.ledgerSheet, rowNum, rowNum)
	vr := &gsheet.ValueRange{Values: [][]any{rowValues(t)}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update row %s in sheet %s: %w", t.ID, c.ledgerSheet, err)
	}
	return nil
}

func (c *Client) DeleteRow(ctx context.Context, id string) error {
	rowNum, err := c.findRow(ctx, c.ledgerSheet, id)
	if err != nil {
		return err
	}
	sheetID, err := c.sheetID(ctx, c.ledgerSheet)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(rowNum - 1),
					EndIndex:   int64(rowNum),
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %s from sheet %s: %w", id, c.ledgerSheet, err)
	}
	return nil
}

// WriteMetric updates the dashboard row for measure, appending it when the
// measure is new.
func (c *Client) WriteMetric(ctx context.Context, measure, value string) error {
	rowNum, err := c.findRow(ctx, c.dashboardSheet, measure)
	if errors.Is(err, errRowNotFound) {
		rng := fmt.Sprintf("%s!A:B", c.dashboardSheet)
		vr := &gsheet.ValueRange{Values: [][]any{{measure, value}}}
		_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
			ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("append metric %s: %w", measure, err)
		}
		return nil
	}
	if err != nil {
		return err
	}

	rng := fmt.Sprintf("%s!B%d", c.dashboardSheet, rowNum)
	vr := &gsheet.ValueRange{Values: [][]any{{value}}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update metric %s: %w", measure, err)
	}
	return nil
}

var errRowNotFound = errors.New("row not found")

// findRow scans column A for key and returns its 1-based row number.
func (c *Client) findRow(ctx context.Context, sheet, key string) (int, error) {
	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rng, err)
	}
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == key {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("%q in sheet %s: %w", key, sheet, errRowNotFound)
}

func (c *Client) sheetID(ctx context.Context, title string) (int64, error) {
	c.mu.Lock()
	if id, ok := c.sheetIDs[title]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet metadata: %w", err)
	}
	for _, s := range meta.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			c.mu.Lock()
			c.sheetIDs[title] = s.Properties.SheetId
			c.mu.Unlock()
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", title)
}

func rowValues(t core.Transaction) []any {
	importedAt := ""
	if !t.ImportedAt.IsZero() {
		importedAt = t.ImportedAt.Format(stampLayout)
	}
	return []any{
		t.ID,
		t.Date.Format(dateLayout),
		t.Amount.StringFixed(2),
		t.Category,
		t.Description,
		t.Account,
		boolCell(t.Imported),
		importedAt,
		boolCell(t.Splitwise),
		t.SplitwiseID,
		boolCell(t.Delete),
		t.UUID,
		t.CreatedAt.Format(stampLayout),
		t.UpdatedAt.Format(stampLayout),
	}
}

func parseRow(cols []string) (core.Transaction, error) {
	get := func(i int) string {
		if i >= len(cols) {
			return ""
		}
		return strings.TrimSpace(cols[i])
	}

	t := core.Transaction{
		ID:          get(0),
		Category:    get(3),
		Description: get(4),
		Account:     get(5),
		Imported:    parseBool(get(6)),
		Splitwise:   parseBool(get(8)),
		SplitwiseID: get(9),
		Delete:      parseBool(get(10)),
		UUID:        get(11),
	}

	var err error
	if t.Date, err = time.Parse(dateLayout, get(1)); err != nil {
		return core.Transaction{}, fmt.Errorf("parse date %q: %w", get(1), err)
	}
	if t.Amount, err = decimal.NewFromString(normalizeAmount(get(2))); err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount %q: %w", get(2), err)
	}
	for _, f := range []struct {
		raw  string
		dest *time.Time
	}{
		{get(7), &t.ImportedAt},
		{get(12), &t.CreatedAt},
		{get(13), &t.UpdatedAt},
	} {
		if f.raw == "" {
			continue
		}
		if *f.dest, err = time.Parse(stampLayout, f.raw); err != nil {
			return core.Transaction{}, fmt.Errorf("parse timestamp %q: %w", f.raw, err)
		}
	}
	return t, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func boolCell(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func parseBool(s string) bool {
	switch strings.ToUpper(s) {
	case "TRUE", "1", "YES":
		return true
	default:
		return false
	}
}

// normalizeAmount strips currency decoration a sheet formula may add.
func normalizeAmount(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return "0"
	}
	return s
}
