package memory

import (
	"context"
	"testing"

	"mindspend/internal/core"
)

func TestExporter_UpsertsByOwnerAndDate(t *testing.T) {
	ctx := context.Background()
	exp := New()
	mood := "불안"

	inputs := []core.DailySummary{
		{OwnerID: "b", Date: "2024-06-17", DailyExpense: 100},
		{OwnerID: "a", Date: "2024-06-17", DailyExpense: 200, TopMood: &mood},
		{OwnerID: "b", Date: "2024-06-17", DailyExpense: 300},
	}
	for _, s := range inputs {
		if err := exp.ExportDailySummary(ctx, s); err != nil {
			t.Fatalf("ExportDailySummary() error = %v", err)
		}
	}

	rows := exp.Rows()
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0][0] != "a" || rows[0][5] != "불안" {
		t.Errorf("first row = %v", rows[0])
	}
	if rows[1][0] != "b" || rows[1][7] != int64(300) {
		t.Errorf("second row = %v, want the latest export", rows[1])
	}
}

func TestExporter_RejectsBadDate(t *testing.T) {
	if err := New().ExportDailySummary(context.Background(), core.DailySummary{OwnerID: "a", Date: "bad"}); err == nil {
		t.Fatal("expected error for invalid date")
	}
}
