package insight

import (
	"sort"
	"strings"

	"mindspend/internal/core"
)

// topLabel returns the most frequent trimmed, non-empty label. Ties go to the
// label seen first.
func topLabel(values []string) *string {
	counts := make(map[string]int, len(values))
	order := make([]string, 0, len(values))
	for _, v := range values {
		key := strings.TrimSpace(v)
		if key == "" {
			continue
		}
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}
	if len(order) == 0 {
		return nil
	}
	best := order[0]
	for _, key := range order[1:] {
		if counts[key] > counts[best] {
			best = key
		}
	}
	return &best
}

// topCategories totals expense amounts per category, largest first.
// Categories with equal totals keep first-seen order.
func topCategories(events []core.FinanceEvent) []core.CategoryAmount {
	totals := make(map[string]int64)
	order := make([]string, 0)
	for _, e := range events {
		key := e.CategoryKey()
		if _, seen := totals[key]; !seen {
			order = append(order, key)
		}
		totals[key] += e.Amount
	}
	out := make([]core.CategoryAmount, 0, len(order))
	for _, key := range order {
		out = append(out, core.CategoryAmount{Category: key, Amount: totals[key]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount > out[j].Amount })
	return out
}

func limit[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func sumAmounts(events []core.FinanceEvent) int64 {
	var total int64
	for _, e := range events {
		total += e.Amount
	}
	return total
}

func expensesOnly(events []core.FinanceEvent) []core.FinanceEvent {
	out := make([]core.FinanceEvent, 0, len(events))
	for _, e := range events {
		if e.IsExpense() {
			out = append(out, e)
		}
	}
	return out
}
