package core

import "time"

const (
	RecommendationQuick       RecommendationType = "Quick"
	RecommendationRule        RecommendationType = "Rule"
	RecommendationSituational RecommendationType = "Situational"
	RecommendationRecovery    RecommendationType = "Recovery"

	// DailyAIVersion and PeriodAIVersion tag cached coaching payloads. A stored
	// payload with another version is regenerated.
	DailyAIVersion  = 1
	PeriodAIVersion = 2
)

type (
	RecommendationType string

	Recommendation struct {
		Title    string             `json:"title"`
		Duration string             `json:"duration"`
		Type     RecommendationType `json:"type"`
		Steps    []string           `json:"steps"`
		Reason   string             `json:"reason"`
	}

	CoachingPayload struct {
		Summary         string           `json:"summary"`
		Pattern         string           `json:"pattern"`
		Goal            string           `json:"goal,omitempty"`
		Recommendations []Recommendation `json:"recommendations"`
		Model           string           `json:"model"`
		GeneratedAt     string           `json:"generatedAt"`
	}

	// PeriodSummary is the stored coaching document for a window such as "last-14d".
	PeriodSummary struct {
		OwnerID    string           `json:"ownerId"`
		PeriodKey  string           `json:"periodKey"`
		PeriodDays int              `json:"periodDays"`
		AI         *CoachingPayload `json:"ai,omitempty"`
		AIVersion  *int             `json:"aiVersion,omitempty"`
		UpdatedAt  time.Time        `json:"updatedAt"`
	}
)

// CachedCoaching is a coaching payload as stored, before it is re-validated.
type CachedCoaching struct {
	Raw     []byte
	Version int
}
