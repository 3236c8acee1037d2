package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"mindspend/internal/cache"
	"mindspend/internal/core"
	"mindspend/internal/log"
	ports "mindspend/internal/sheets"
)

const (
	DefaultSheetName = "Summaries"

	rowIndexSize = 4096
	rowIndexTTL  = 10 * time.Minute
)

type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// Client exports daily summaries to one sheet of a spreadsheet, one row per
// (owner, date). Row numbers are remembered for a while to skip a lookup read.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	mu   sync.Mutex
	rows *cache.LRUCache[int]
}

var _ ports.SummaryExporter = (*Client)(nil)

// New creates a Sheets client using service account credentials.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = DefaultSheetName
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		rows:          cache.NewLRUCache[int](rowIndexSize, rowIndexTTL),
	}
}

// RowIndex exposes the row number cache so callers can register it for cleanup.
func (c *Client) RowIndex() *cache.LRUCache[int] { return c.rows }

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created",
		log.FieldComponent, log.ComponentSheets)
	return svc, nil
}

// ExportDailySummary writes the summary row, updating the existing row for the
// same owner and date when there is one.
func (c *Client) ExportDailySummary(ctx context.Context, s core.DailySummary) error {
	if err := core.ValidateDateKey(s.Date); err != nil {
		return err
	}
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := rowKey(s.OwnerID, s.Date)
	row, ok := c.rows.Get(key)
	if !ok {
		var err error
		row, err = c.findRow(ctx, key)
		if err != nil {
			return err
		}
	}

	values := &gsheet.ValueRange{Values: [][]any{ports.SummaryRow(s)}}
	if row > 0 {
		rng := fmt.Sprintf("%s!A%d:%s%d", c.sheetName, row, lastColumn(), row)
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, values).
			ValueInputOption(valueInputOption).Context(ctx).Do(); err != nil {
			c.rows.Delete(key)
			return fmt.Errorf("update %s: %w", rng, err)
		}
		return nil
	}

	if err := c.appendRows(ctx, values); err != nil {
		return err
	}
	slog.DebugContext(ctx, "Summary row appended",
		log.FieldComponent, log.ComponentSheets,
		log.FieldOwnerID, s.OwnerID,
		log.FieldDate, s.Date)
	return nil
}

// findRow scans the key columns, refreshes the row index, and returns the
// 1-based row for key or 0. An empty sheet gets its header row first.
func (c *Client) findRow(ctx context.Context, key string) (int, error) {
	rng := fmt.Sprintf("%s!A:B", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) == 0 {
		if err := c.appendRows(ctx, &gsheet.ValueRange{Values: [][]any{ports.SummaryHeader}}); err != nil {
			return 0, fmt.Errorf("write header: %w", err)
		}
		return 0, nil
	}

	found := 0
	for i, cells := range resp.Values {
		if len(cells) < 2 {
			continue
		}
		k := rowKey(strings.TrimSpace(fmt.Sprint(cells[0])), strings.TrimSpace(fmt.Sprint(cells[1])))
		c.rows.Set(k, i+1)
		if k == key {
			found = i + 1
		}
	}
	return found, nil
}

func (c *Client) appendRows(ctx context.Context, values *gsheet.ValueRange) error {
	rng := fmt.Sprintf("%s!A:%s", c.sheetName, lastColumn())
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, values).
		ValueInputOption(valueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append %s: %w", rng, err)
	}
	return nil
}

// findRow relies on the owner and date cells reading back exactly as written.
const valueInputOption = "RAW"

func rowKey(ownerID, date string) string { return ownerID + "|" + date }

func lastColumn() string {
	return string(rune('A' + len(ports.SummaryHeader) - 1))
}
