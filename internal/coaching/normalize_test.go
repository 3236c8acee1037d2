package coaching

import (
	"errors"
	"testing"
	"time"

	"mindspend/internal/core"
)

var fixedNow = func() time.Time { return time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC) }

func rec(typ string) map[string]any {
	return map[string]any{
		"title":    " 3분 호흡 ",
		"duration": "3분",
		"type":     typ,
		"steps":    []any{"앉기", 42, "  ", "숨 쉬기"},
		"reason":   "스트레스↑ + 지출↑(배달)",
	}
}

func TestNormalizeCoachingPayload(t *testing.T) {
	value := map[string]any{
		"summary":         " 오늘은 스트레스가 높았어요 ",
		"pattern":         "배달 지출이 늘었어요",
		"goal":            "  ",
		"recommendations": []any{rec("즉시"), rec("nonsense")},
	}

	got, err := NormalizeCoachingPayload(value, Options{Model: "gpt-4o-mini", Now: fixedNow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Summary != "오늘은 스트레스가 높았어요" {
		t.Errorf("Summary = %q", got.Summary)
	}
	if got.Goal != "" {
		t.Errorf("Goal = %q, want empty", got.Goal)
	}
	if len(got.Recommendations) != 1 {
		t.Fatalf("Recommendations = %+v, want one", got.Recommendations)
	}
	r := got.Recommendations[0]
	if r.Type != core.RecommendationQuick || r.Title != "3분 호흡" {
		t.Errorf("recommendation = %+v", r)
	}
	if len(r.Steps) != 2 || r.Steps[0] != "앉기" || r.Steps[1] != "숨 쉬기" {
		t.Errorf("Steps = %q", r.Steps)
	}
	if got.Model != "gpt-4o-mini" || got.GeneratedAt != "2024-06-10T12:00:00Z" {
		t.Errorf("stamps = %q %q", got.Model, got.GeneratedAt)
	}
}

func TestNormalizeCoachingPayload_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"not an object", []any{"x"}},
		{"nil", nil},
		{"missing summary", map[string]any{"pattern": "p", "recommendations": []any{rec("Quick")}}},
		{"non-string pattern", map[string]any{"summary": "s", "pattern": 3, "recommendations": []any{rec("Quick")}}},
		{"no valid recommendations", map[string]any{"summary": "s", "pattern": "p", "recommendations": []any{rec("없음"), "text"}}},
		{"recommendations not array", map[string]any{"summary": "s", "pattern": "p", "recommendations": "Quick"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeCoachingPayload(tt.value, Options{Now: fixedNow})
			if !errors.Is(err, core.ErrPayloadRejected) {
				t.Errorf("err = %v, want ErrPayloadRejected", err)
			}
		})
	}
}

func TestNormalizeCoachingPayload_DropsIncompleteRecommendations(t *testing.T) {
	missingReason := rec("rule")
	delete(missingReason, "reason")
	blankTitle := rec("rule")
	blankTitle["title"] = "   "
	noSteps := rec("회복 루틴")
	delete(noSteps, "steps")

	got, err := NormalizeCoachingPayload(map[string]any{
		"summary":         "s",
		"pattern":         "p",
		"recommendations": []any{missingReason, blankTitle, noSteps},
	}, Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Recommendations) != 1 || got.Recommendations[0].Type != core.RecommendationRecovery {
		t.Fatalf("Recommendations = %+v", got.Recommendations)
	}
	if got.Recommendations[0].Steps == nil || len(got.Recommendations[0].Steps) != 0 {
		t.Errorf("Steps = %#v, want empty slice", got.Recommendations[0].Steps)
	}
}

func TestNormalizeCoachingPayload_CapsRecommendations(t *testing.T) {
	var recs []any
	for i := 0; i < 7; i++ {
		recs = append(recs, rec("Situational"))
	}
	got, err := NormalizeCoachingPayload(map[string]any{"summary": "s", "pattern": "p", "recommendations": recs}, Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Recommendations) != MaxRecommendations {
		t.Errorf("len = %d, want %d", len(got.Recommendations), MaxRecommendations)
	}
}

func TestNormalizeCoachingPayload_KeepsOwnStamps(t *testing.T) {
	got, err := NormalizeCoachingPayload(map[string]any{
		"summary":         "s",
		"pattern":         "p",
		"goal":            " 하루 한 번 지출 보류 ",
		"model":           "other-model",
		"generatedAt":     "2024-01-01T00:00:00Z",
		"recommendations": []any{rec("Quick")},
	}, Options{Model: "gpt-4o-mini", Now: fixedNow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Model != "other-model" || got.GeneratedAt != "2024-01-01T00:00:00Z" || got.Goal != "하루 한 번 지출 보류" {
		t.Errorf("payload = %+v", got)
	}
}

func TestNormalizeRecommendationType(t *testing.T) {
	tests := []struct {
		label string
		want  core.RecommendationType
		ok    bool
	}{
		{"즉시 실행", core.RecommendationQuick, true},
		{"IMMEDIATE", core.RecommendationQuick, true},
		{"Quick", core.RecommendationQuick, true},
		{"지출 보류", core.RecommendationRule, true},
		{"rule", core.RecommendationRule, true},
		{"상황별", core.RecommendationSituational, true},
		{"context", core.RecommendationSituational, true},
		{"회복", core.RecommendationRecovery, true},
		{"Recovery", core.RecommendationRecovery, true},
		{"대체 행동", core.RecommendationQuick, true},
		{"replacement", core.RecommendationQuick, true},
		{"quick rule", core.RecommendationQuick, true},
		{"", "", false},
		{"meditation", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := NormalizeRecommendationType(tt.label)
			if got != tt.want || ok != tt.ok {
				t.Errorf("NormalizeRecommendationType(%q) = %q, %v, want %q, %v", tt.label, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	v, err := ExtractJSON("Here you go:\n```json\n{\"summary\": \"s\", \"nested\": {\"a\": 1}}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	obj, ok := v.(map[string]any)
	if !ok || obj["summary"] != "s" {
		t.Errorf("value = %#v", v)
	}

	for _, bad := range []string{"", "no json here", "} backwards {", "{not: json}"} {
		if _, err := ExtractJSON(bad); !errors.Is(err, core.ErrPayloadRejected) {
			t.Errorf("ExtractJSON(%q) err = %v, want ErrPayloadRejected", bad, err)
		}
	}
}

func TestCachedRoundTrip(t *testing.T) {
	p, err := NormalizeCoachingPayload(map[string]any{
		"summary": "s", "pattern": "p", "recommendations": []any{rec("Quick")},
	}, Options{Model: "m", Now: fixedNow})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	cached, err := EncodeCached(p, core.DailyAIVersion)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := NormalizeCached(cached, Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.Summary != p.Summary || back.Model != "m" || len(back.Recommendations) != 1 {
		t.Errorf("round trip = %+v", back)
	}

	if _, err := NormalizeCached(core.CachedCoaching{Raw: []byte(`{"summary":"s"}`)}, Options{}); !errors.Is(err, core.ErrPayloadRejected) {
		t.Errorf("garbage cached err = %v", err)
	}
	if _, err := NormalizeCached(core.CachedCoaching{}, Options{}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("empty cached err = %v", err)
	}
}
