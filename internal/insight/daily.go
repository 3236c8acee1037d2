package insight

import (
	"math"

	"mindspend/internal/core"
)

// ComputeDailySummary derives the per-day summary for date from the owner's
// events. Events on other dates are ignored, so callers may pass a whole window.
func ComputeDailySummary(ownerID, date string, stress []core.StressEvent, finance []core.FinanceEvent) core.DailySummary {
	summary := core.DailySummary{
		OwnerID:       ownerID,
		Date:          date,
		TopCategories: []core.CategoryAmount{},
	}

	var (
		sum      int
		moods    []string
		contexts []string
	)
	for _, e := range stress {
		if e.Date != date {
			continue
		}
		summary.StressCount++
		sum += e.Score
		if e.Score > summary.StressScoreMax {
			summary.StressScoreMax = e.Score
		}
		moods = append(moods, e.Mood)
		contexts = append(contexts, e.Context)
	}
	if summary.StressCount > 0 {
		summary.StressScoreAvg = int(math.Round(float64(sum) / float64(summary.StressCount)))
	}
	summary.TopMood = topLabel(moods)
	summary.TopContext = topLabel(contexts)

	var expenses []core.FinanceEvent
	for _, e := range finance {
		if e.Date == date && e.IsExpense() {
			expenses = append(expenses, e)
		}
	}
	summary.DailyExpense = sumAmounts(expenses)
	summary.TopCategories = topCategories(expenses)

	return summary
}
