package memory

import (
	"context"
	"sort"
	"sync"

	"mindspend/internal/core"
	"mindspend/internal/sheets"
)

// Exporter keeps exported rows in memory, keyed like the Google sheet.
type Exporter struct {
	mu   sync.Mutex
	rows map[string][]any
}

var _ sheets.SummaryExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{rows: make(map[string][]any)}
}

func (e *Exporter) ExportDailySummary(_ context.Context, s core.DailySummary) error {
	if err := core.ValidateDateKey(s.Date); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rows[s.OwnerID+"|"+s.Date] = sheets.SummaryRow(s)
	return nil
}

// Rows returns the exported rows ordered by owner and date.
func (e *Exporter) Rows() [][]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := make([]string, 0, len(e.rows))
	for k := range e.rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, append([]any(nil), e.rows[k]...))
	}
	return out
}
