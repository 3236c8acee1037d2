package coaching

import (
	"encoding/json"
	"strings"
	"time"

	"mindspend/internal/core"
)

// MaxRecommendations caps how many recommendations a payload keeps.
const MaxRecommendations = 5

// recommendationTypes maps lowercase keyword fragments onto the closed type
// set. Rows are checked in order and the first match wins.
var recommendationTypes = []struct {
	keywords []string
	kind     core.RecommendationType
}{
	{[]string{"즉시", "immediate", "quick"}, core.RecommendationQuick},
	{[]string{"규칙", "보류", "rule"}, core.RecommendationRule},
	{[]string{"상황", "situational", "context"}, core.RecommendationSituational},
	{[]string{"회복", "recovery"}, core.RecommendationRecovery},
	{[]string{"대체", "alternative", "replacement"}, core.RecommendationQuick},
}

// Options supplies the stamps used when a payload does not carry its own.
type Options struct {
	Model string
	Now   func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// ExtractJSON decodes the span from the first '{' to the last '}' of a
// completion. Models often wrap JSON in prose or code fences.
func ExtractJSON(text string) (any, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, core.RejectPayload("response is not JSON")
	}
	var v any
	if err := json.Unmarshal([]byte(text[start:end+1]), &v); err != nil {
		return nil, core.RejectPayload("malformed JSON: " + err.Error())
	}
	return v, nil
}

// NormalizeCoachingPayload validates an untrusted decoded value and returns
// the canonical payload. Invalid recommendations are dropped individually;
// the payload is rejected when none survive.
func NormalizeCoachingPayload(value any, opts Options) (core.CoachingPayload, error) {
	raw, ok := value.(map[string]any)
	if !ok {
		return core.CoachingPayload{}, core.RejectPayload("payload is not an object")
	}

	summary := trimmedString(raw["summary"])
	pattern := trimmedString(raw["pattern"])
	if summary == "" || pattern == "" {
		return core.CoachingPayload{}, core.RejectPayload("summary and pattern are required")
	}

	recs := normalizeRecommendations(raw["recommendations"])
	if len(recs) == 0 {
		return core.CoachingPayload{}, core.RejectPayload("no valid recommendations")
	}

	payload := core.CoachingPayload{
		Summary:         summary,
		Pattern:         pattern,
		Goal:            trimmedString(raw["goal"]),
		Recommendations: recs,
		Model:           trimmedString(raw["model"]),
		GeneratedAt:     trimmedString(raw["generatedAt"]),
	}
	if payload.Model == "" {
		payload.Model = opts.Model
	}
	if payload.GeneratedAt == "" {
		payload.GeneratedAt = opts.now().UTC().Format(time.RFC3339)
	}
	return payload, nil
}

// NormalizeCached decodes and re-validates a stored payload.
func NormalizeCached(c core.CachedCoaching, opts Options) (*core.CoachingPayload, error) {
	if len(c.Raw) == 0 {
		return nil, core.ErrNotFound
	}
	var v any
	if err := json.Unmarshal(c.Raw, &v); err != nil {
		return nil, core.RejectPayload("stored payload is not JSON")
	}
	p, err := NormalizeCoachingPayload(v, opts)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// EncodeCached serializes a normalized payload for storage.
func EncodeCached(p core.CoachingPayload, version int) (core.CachedCoaching, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return core.CachedCoaching{}, err
	}
	return core.CachedCoaching{Raw: raw, Version: version}, nil
}

// NormalizeRecommendationType resolves a free-form type label, reporting
// false when no synonym matches.
func NormalizeRecommendationType(label string) (core.RecommendationType, bool) {
	key := strings.ToLower(strings.TrimSpace(label))
	if key == "" {
		return "", false
	}
	for _, row := range recommendationTypes {
		for _, kw := range row.keywords {
			if strings.Contains(key, kw) {
				return row.kind, true
			}
		}
	}
	return "", false
}

func normalizeRecommendations(value any) []core.Recommendation {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]core.Recommendation, 0, len(items))
	for _, item := range items {
		rec, ok := normalizeRecommendation(item)
		if !ok {
			continue
		}
		out = append(out, rec)
		if len(out) == MaxRecommendations {
			break
		}
	}
	return out
}

func normalizeRecommendation(item any) (core.Recommendation, bool) {
	obj, ok := item.(map[string]any)
	if !ok {
		return core.Recommendation{}, false
	}
	title := trimmedString(obj["title"])
	duration := trimmedString(obj["duration"])
	reason := trimmedString(obj["reason"])
	kind, ok := NormalizeRecommendationType(trimmedString(obj["type"]))
	if !ok || title == "" || duration == "" || reason == "" {
		return core.Recommendation{}, false
	}
	return core.Recommendation{
		Title:    title,
		Duration: duration,
		Type:     kind,
		Steps:    normalizeSteps(obj["steps"]),
		Reason:   reason,
	}, true
}

func normalizeSteps(value any) []string {
	steps := []string{}
	items, ok := value.([]any)
	if !ok {
		return steps
	}
	for _, item := range items {
		if s := trimmedString(item); s != "" {
			steps = append(steps, s)
		}
	}
	return steps
}

func trimmedString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
