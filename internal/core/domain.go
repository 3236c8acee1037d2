package core

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Expense FinanceType = "expense"
	Income  FinanceType = "income"

	// OtherCategory collects finance events recorded without a category label.
	OtherCategory = "Other"

	// Limits count characters, not bytes.
	maxLabelLength = 100
	maxMemoLength  = 500
)

type (
	FinanceType string

	StressEvent struct {
		ID      string `json:"id"`
		OwnerID string `json:"ownerId"`
		Date    string `json:"date"` // YYYY-MM-DD
		Mood    string `json:"mood"`
		Context string `json:"context"`
		Memo    string `json:"memo"`
		Score   int    `json:"score"` // 0..100, always derived from Mood
	}

	FinanceEvent struct {
		ID       string      `json:"id"`
		OwnerID  string      `json:"ownerId"`
		Date     string      `json:"date"`
		Category string      `json:"category"`
		Type     FinanceType `json:"type,omitempty"`
		Amount   int64       `json:"amount"`
		Memo     string      `json:"memo"`
	}

	CategoryAmount struct {
		Category string `json:"category"`
		Amount   int64  `json:"amount"`
	}

	// DailySummary is the derived per-(owner, date) document. AI and AIVersion
	// are only ever filled from a cached, normalized coaching payload.
	DailySummary struct {
		OwnerID        string           `json:"ownerId"`
		Date           string           `json:"date"`
		StressScoreAvg int              `json:"stressScoreAvg"`
		StressScoreMax int              `json:"stressScoreMax"`
		StressCount    int              `json:"stressCount"`
		TopMood        *string          `json:"topMood"`
		TopContext     *string          `json:"topContext"`
		DailyExpense   int64            `json:"dailyExpense"`
		TopCategories  []CategoryAmount `json:"topCategories"`
		AI             *CoachingPayload `json:"ai,omitempty"`
		AIVersion      *int             `json:"aiVersion,omitempty"`
	}

	// DailyRecord is a stored daily summary row with its raw coaching cache.
	DailyRecord struct {
		Summary   DailySummary
		Coaching  CachedCoaching
		UpdatedAt time.Time
	}
)

// EffectiveType returns the event type, treating a missing type as an expense
// so that records written before the type field existed keep counting.
func (f FinanceEvent) EffectiveType() FinanceType {
	t := FinanceType(strings.ToLower(strings.TrimSpace(string(f.Type))))
	if t == "" {
		return Expense
	}
	return t
}

// IsExpense reports whether the event participates in spend aggregation.
func (f FinanceEvent) IsExpense() bool {
	return f.EffectiveType() == Expense
}

// CategoryKey is the grouping label for the event.
func (f FinanceEvent) CategoryKey() string {
	if key := strings.TrimSpace(f.Category); key != "" {
		return key
	}
	return OtherCategory
}

func (t FinanceType) IsValid() bool {
	switch t {
	case Expense, Income:
		return true
	default:
		return false
	}
}

func (e StressEvent) Validate() error {
	if strings.TrimSpace(e.OwnerID) == "" {
		return &ValidationError{Field: "ownerId", Reason: "required"}
	}
	if err := ValidateDateKey(e.Date); err != nil {
		return err
	}
	if strings.TrimSpace(e.Mood) == "" {
		return &ValidationError{Field: "mood", Reason: "required"}
	}
	if utf8.RuneCountInString(e.Mood) > maxLabelLength {
		return &ValidationError{Field: "mood", Reason: "too long (max 100 characters)"}
	}
	if utf8.RuneCountInString(e.Context) > maxLabelLength {
		return &ValidationError{Field: "context", Reason: "too long (max 100 characters)"}
	}
	if utf8.RuneCountInString(e.Memo) > maxMemoLength {
		return &ValidationError{Field: "memo", Reason: "too long (max 500 characters)"}
	}
	if e.Score < 0 || e.Score > 100 {
		return &ValidationError{Field: "score", Reason: "must be between 0 and 100"}
	}
	return nil
}

func (f FinanceEvent) Validate() error {
	if strings.TrimSpace(f.OwnerID) == "" {
		return &ValidationError{Field: "ownerId", Reason: "required"}
	}
	if err := ValidateDateKey(f.Date); err != nil {
		return err
	}
	if !f.EffectiveType().IsValid() {
		return &ValidationError{Field: "type", Reason: "must be expense or income"}
	}
	if f.Amount < 0 {
		return &ValidationError{Field: "amount", Reason: "must not be negative"}
	}
	if utf8.RuneCountInString(f.Category) > maxLabelLength {
		return &ValidationError{Field: "category", Reason: "too long (max 100 characters)"}
	}
	if utf8.RuneCountInString(f.Memo) > maxMemoLength {
		return &ValidationError{Field: "memo", Reason: "too long (max 500 characters)"}
	}
	return nil
}
