package sheets

import (
	"context"
	"fmt"
	"strings"

	"mindspend/internal/core"
)

// SummaryExporter mirrors derived daily summaries into an external sheet.
// Exporting the same (owner, date) twice must update one row, not add another.
type SummaryExporter interface {
	ExportDailySummary(ctx context.Context, s core.DailySummary) error
}

// SummaryHeader names the columns written by SummaryRow.
var SummaryHeader = []any{
	"Owner", "Date", "Stress avg", "Stress max", "Stress count",
	"Top mood", "Top context", "Expense", "Top categories", "Coaching",
}

// SummaryRow renders a summary as one sheet row; the first two cells are the key.
func SummaryRow(s core.DailySummary) []any {
	coaching := ""
	if s.AI != nil {
		coaching = s.AI.Summary
	}
	return []any{
		s.OwnerID,
		s.Date,
		s.StressScoreAvg,
		s.StressScoreMax,
		s.StressCount,
		deref(s.TopMood),
		deref(s.TopContext),
		s.DailyExpense,
		formatCategories(s.TopCategories),
		coaching,
	}
}

func formatCategories(cats []core.CategoryAmount) string {
	parts := make([]string, 0, len(cats))
	for _, c := range cats {
		parts = append(parts, fmt.Sprintf("%s %d", c.Category, c.Amount))
	}
	return strings.Join(parts, ", ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
