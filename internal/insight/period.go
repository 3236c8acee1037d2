package insight

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"mindspend/internal/core"
)

const (
	// spikeFactor is how far above the window average a day must be to count as a spike.
	spikeFactor = 1.5

	// neutralDayScore buckets days that have spending but no stress record.
	neutralDayScore = float64(core.NeutralStressScore)

	topSpendLimit    = 5
	moodCategoryTopN = 3
)

// Params describes one period insight request.
type Params struct {
	Stress     []core.StressEvent
	Finance    []core.FinanceEvent
	PeriodDays int
	End        time.Time
	// FocusDate defaults to the last day of the window.
	FocusDate string
}

type dayStats struct {
	date     string
	scores   []int
	moods    []string
	expenses []core.FinanceEvent
}

// BuildStressSpendInsight aggregates a window of events into the period insight.
func BuildStressSpendInsight(p Params) core.StressSpendInsight {
	dates := BuildDateRange(p.PeriodDays, p.End)
	stats := collectDays(dates, p.Stress, expensesOnly(p.Finance))

	periodDays := len(dates)
	var (
		windowTotal   int64
		windowExpense []core.FinanceEvent
		dailyTotals   = make(map[string]int64, periodDays)
	)
	for _, day := range stats {
		total := sumAmounts(day.expenses)
		dailyTotals[day.date] = total
		windowTotal += total
		windowExpense = append(windowExpense, day.expenses...)
	}

	var avgExpense int64
	if periodDays > 0 {
		avgExpense = int64(math.Round(float64(windowTotal) / float64(periodDays)))
	}

	focus := p.FocusDate
	if focus == "" && periodDays > 0 {
		focus = dates[periodDays-1]
	}
	dailyExpense := dailyTotals[focus]
	spendSpike := avgExpense > 0 && float64(dailyExpense) >= float64(avgExpense)*spikeFactor

	buckets := map[core.StressBucket][]dayStats{}
	for _, day := range stats {
		score, ok := day.meanScore()
		if !ok {
			continue
		}
		b := core.BucketFor(score)
		buckets[b] = append(buckets[b], day)
	}
	low := summarizeBucket(core.BucketLow, buckets[core.BucketLow])
	mid := summarizeBucket(core.BucketMid, buckets[core.BucketMid])
	high := summarizeBucket(core.BucketHigh, buckets[core.BucketHigh])

	var ratio *float64
	if low.AvgDailyExpense > 0 {
		r := float64(high.AvgDailyExpense) / float64(low.AvgDailyExpense)
		ratio = &r
	}

	topSpend := limit(topCategories(windowExpense), topSpendLimit)
	var topCategory string
	if len(topSpend) > 0 {
		topCategory = topSpend[0].Category
	}

	return core.StressSpendInsight{
		PeriodDays:         periodDays,
		DailyExpense:       dailyExpense,
		AvgExpense:         avgExpense,
		SpendSpike:         spendSpike,
		BucketSummaries:    []core.BucketSummary{low, mid, high},
		MoodCategoryTop:    moodCategoryTop(stats),
		TopSpendCategories: topSpend,
		HighStressDays:     high.DayCount,
		LowStressDays:      low.DayCount,
		RatioHighLow:       ratio,
		PatternSummary:     patternSummary(low.AvgDailyExpense, ratio, periodDays),
		TriggerSummary:     triggerSummary(topCategory, high.DayCount),
	}
}

func collectDays(dates []string, stress []core.StressEvent, expenses []core.FinanceEvent) []dayStats {
	index := make(map[string]int, len(dates))
	stats := make([]dayStats, len(dates))
	for i, d := range dates {
		index[d] = i
		stats[i].date = d
	}
	for _, e := range stress {
		if i, ok := index[e.Date]; ok {
			stats[i].scores = append(stats[i].scores, e.Score)
			stats[i].moods = append(stats[i].moods, e.Mood)
		}
	}
	for _, e := range expenses {
		if i, ok := index[e.Date]; ok {
			stats[i].expenses = append(stats[i].expenses, e)
		}
	}
	return stats
}

// meanScore is false for days with neither stress nor expense events.
func (d dayStats) meanScore() (float64, bool) {
	if len(d.scores) > 0 {
		var sum int
		for _, s := range d.scores {
			sum += s
		}
		return float64(sum) / float64(len(d.scores)), true
	}
	if len(d.expenses) > 0 {
		return neutralDayScore, true
	}
	return 0, false
}

func summarizeBucket(bucket core.StressBucket, days []dayStats) core.BucketSummary {
	s := core.BucketSummary{Bucket: bucket, DayCount: len(days)}
	if len(days) == 0 {
		return s
	}
	var total int64
	for _, d := range days {
		total += sumAmounts(d.expenses)
	}
	s.AvgDailyExpense = int64(math.Round(float64(total) / float64(len(days))))
	return s
}

func moodCategoryTop(stats []dayStats) []core.MoodCategorySummary {
	pooled := make(map[string][]core.FinanceEvent)
	order := make([]string, 0)
	for _, day := range stats {
		mood := topLabel(day.moods)
		if mood == nil {
			continue
		}
		if _, seen := pooled[*mood]; !seen {
			order = append(order, *mood)
			pooled[*mood] = []core.FinanceEvent{}
		}
		pooled[*mood] = append(pooled[*mood], day.expenses...)
	}

	out := make([]core.MoodCategorySummary, 0, len(order))
	for _, mood := range order {
		events := pooled[mood]
		out = append(out, core.MoodCategorySummary{
			Mood:          mood,
			TopCategories: limit(topCategories(events), moodCategoryTopN),
			TotalExpense:  sumAmounts(events),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalExpense > out[j].TotalExpense })
	return out
}

func patternSummary(lowAvg int64, ratio *float64, periodDays int) string {
	if ratio == nil || *ratio == 0 || lowAvg == 0 {
		return fmt.Sprintf("최근 %d일 동안 스트레스 구간별 지출 패턴을 더 쌓고 있어요.", periodDays)
	}
	return fmt.Sprintf("최근 %d일 동안 High 스트레스 날의 평균 지출이 Low보다 %s배 높아요.",
		periodDays, decimal.NewFromFloat(*ratio).StringFixed(1))
}

func triggerSummary(topCategory string, highDays int) string {
	if topCategory == "" || highDays == 0 {
		return "스트레스가 쌓이는 날의 소비 트리거를 찾는 중이에요."
	}
	return fmt.Sprintf("High 스트레스 날에 '%s' 지출 비중이 커요.", topCategory)
}
