package core

const (
	BucketLow  StressBucket = "Low"
	BucketMid  StressBucket = "Mid"
	BucketHigh StressBucket = "High"
)

type (
	StressBucket string

	BucketSummary struct {
		Bucket          StressBucket `json:"bucket"`
		AvgDailyExpense int64        `json:"avgDailyExpense"`
		DayCount        int          `json:"dayCount"`
	}

	MoodCategorySummary struct {
		Mood          string           `json:"mood"`
		TopCategories []CategoryAmount `json:"topCategories"`
		TotalExpense  int64            `json:"totalExpense"`
	}

	// StressSpendInsight is the period-level aggregate over a window of days.
	StressSpendInsight struct {
		PeriodDays         int                   `json:"periodDays"`
		DailyExpense       int64                 `json:"dailyExpense"`
		AvgExpense         int64                 `json:"avgExpense"`
		SpendSpike         bool                  `json:"spendSpike"`
		BucketSummaries    []BucketSummary       `json:"bucketSummaries"`
		MoodCategoryTop    []MoodCategorySummary `json:"moodCategoryTop"`
		TopSpendCategories []CategoryAmount      `json:"topSpendCategories"`
		HighStressDays     int                   `json:"highStressDays"`
		LowStressDays      int                   `json:"lowStressDays"`
		RatioHighLow       *float64              `json:"ratioHighLow"`
		PatternSummary     string                `json:"patternSummary"`
		TriggerSummary     string                `json:"triggerSummary"`
	}
)

// BucketFor places a mean stress score into its bucket.
func BucketFor(score float64) StressBucket {
	switch {
	case score >= 70:
		return BucketHigh
	case score >= 40:
		return BucketMid
	default:
		return BucketLow
	}
}

// Bucket returns the summary for b, or a zero summary when absent.
func (s StressSpendInsight) Bucket(b StressBucket) BucketSummary {
	for _, bs := range s.BucketSummaries {
		if bs.Bucket == b {
			return bs
		}
	}
	return BucketSummary{Bucket: b}
}

// HasData reports whether the window carries anything worth coaching on.
func (s StressSpendInsight) HasData() bool {
	return s.AvgExpense > 0 || s.HighStressDays > 0 || s.LowStressDays > 0 || len(s.MoodCategoryTop) > 0
}
