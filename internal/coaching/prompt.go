package coaching

import (
	"encoding/json"
	"strings"

	"mindspend/internal/core"
)

const (
	dailySystemPrompt = "너는 공감적이고 실용적인 행동·재정 코치야. " +
		"반드시 한국어로만 응답해. " +
		"Return ONLY valid JSON with keys: summary, pattern, recommendations. " +
		"recommendations must be 3 to 5 items. " +
		"Each recommendation has: title, duration, type, steps, reason. " +
		"type must be one of Quick, Rule, Situational, Recovery. " +
		"Quick=1~5 minutes, Rule=spending rule, Situational=10~30 minutes. " +
		"No markdown, no extra text."

	dailyUserPrompt = "다음 데이터를 기반으로 스트레스-지출 인사이트를 만들어줘.\n" +
		"JSON만 반환해줘.\n" +
		"data: "

	periodSystemPrompt = "너는 감정-소비 패턴을 설명하고 행동을 제안하는 코치야. " +
		"반드시 한국어로만 응답해. " +
		"ONLY 유효한 JSON으로 응답하고 키는 summary, pattern, goal, recommendations만 사용해. " +
		"summary는 1줄, pattern은 1줄, goal은 1줄 행동 목표로 작성해. " +
		"recommendations는 정확히 4개로: Quick 2개(1~5분), Rule 1개(소비 억제 규칙), Situational 1개(10~30분). " +
		"각 recommendation은 title, duration, type, steps, reason 필드가 있어야 해. " +
		"reason은 '스트레스↑ + 지출↑(카테고리)'처럼 근거를 한 줄로 써. " +
		"마크다운/추가 텍스트 금지."

	periodUserPrompt = "아래 데이터를 기반으로 감정-소비 패턴 요약과 실행 루틴을 만들어줘.\n" +
		"JSON만 반환.\n" +
		"data: "

	promptCategoryLimit = 3
)

// DailyContext carries the trailing-window facts a daily prompt needs
// beyond the day's own summary.
type DailyContext struct {
	AvgExpense14  int64
	SpendSpike    bool
	TopCategories []string
}

type dailyFacts struct {
	Date           string   `json:"date"`
	StressScoreAvg int      `json:"stressScoreAvg"`
	StressScoreMax int      `json:"stressScoreMax"`
	StressCount    int      `json:"stressCount"`
	TopMood        *string  `json:"topMood"`
	TopContext     *string  `json:"topContext"`
	DailyExpense   int64    `json:"dailyExpense"`
	AvgExpense14   int64    `json:"avgExpense14"`
	SpendSpike     bool     `json:"spendSpike"`
	TopCategories  []string `json:"topCategories"`
}

type periodFacts struct {
	PeriodDays         int                        `json:"periodDays"`
	AvgExpense         int64                      `json:"avgExpense"`
	HighAvg            int64                      `json:"highAvg"`
	LowAvg             int64                      `json:"lowAvg"`
	RatioHighLow       *float64                   `json:"ratioHighLow"`
	HighStressDays     int                        `json:"highStressDays"`
	LowStressDays      int                        `json:"lowStressDays"`
	SpendSpike         bool                       `json:"spendSpike"`
	TopSpendCategories []core.CategoryAmount      `json:"topSpendCategories"`
	MoodCategoryTop    []core.MoodCategorySummary `json:"moodCategoryTop"`
	PatternSummary     string                     `json:"patternSummary"`
	TriggerSummary     string                     `json:"triggerSummary"`
}

// BuildDailyPrompt renders the chat transcript asking for a one-day coaching card.
func BuildDailyPrompt(summary core.DailySummary, dc DailyContext) []Message {
	categories := dc.TopCategories
	if categories == nil {
		categories = []string{}
	}
	facts := dailyFacts{
		Date:           summary.Date,
		StressScoreAvg: summary.StressScoreAvg,
		StressScoreMax: summary.StressScoreMax,
		StressCount:    summary.StressCount,
		TopMood:        summary.TopMood,
		TopContext:     summary.TopContext,
		DailyExpense:   summary.DailyExpense,
		AvgExpense14:   dc.AvgExpense14,
		SpendSpike:     dc.SpendSpike,
		TopCategories:  head(categories, promptCategoryLimit),
	}
	return []Message{
		{Role: RoleSystem, Content: dailySystemPrompt},
		{Role: RoleUser, Content: dailyUserPrompt + encodeFacts(facts)},
	}
}

// BuildPeriodPrompt renders the chat transcript asking for a period coaching card.
func BuildPeriodPrompt(in core.StressSpendInsight) []Message {
	facts := periodFacts{
		PeriodDays:         in.PeriodDays,
		AvgExpense:         in.AvgExpense,
		HighAvg:            in.Bucket(core.BucketHigh).AvgDailyExpense,
		LowAvg:             in.Bucket(core.BucketLow).AvgDailyExpense,
		RatioHighLow:       in.RatioHighLow,
		HighStressDays:     in.HighStressDays,
		LowStressDays:      in.LowStressDays,
		SpendSpike:         in.SpendSpike,
		TopSpendCategories: head(nonNil(in.TopSpendCategories), promptCategoryLimit),
		MoodCategoryTop:    head(nonNil(in.MoodCategoryTop), promptCategoryLimit),
		PatternSummary:     in.PatternSummary,
		TriggerSummary:     in.TriggerSummary,
	}
	return []Message{
		{Role: RoleSystem, Content: periodSystemPrompt},
		{Role: RoleUser, Content: periodUserPrompt + encodeFacts(facts)},
	}
}

// CategoryNames lists the category labels of a summary, largest first.
func CategoryNames(categories []core.CategoryAmount) []string {
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Category)
	}
	return names
}

func encodeFacts(v any) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	// facts are plain structs of strings and numbers, encoding cannot fail
	_ = enc.Encode(v)
	return strings.TrimRight(b.String(), "\n")
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
