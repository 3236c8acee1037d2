package core

import "strings"

const (
	HighStressScore    = 80
	LowStressScore     = 20
	NeutralStressScore = 50
)

// Keyword tables are checked in order: high, then low, then neutral.
var (
	highStressKeywords = []string{
		"스트레스", "불안", "우울", "짜증", "분노", "화", "긴장", "피곤", "지쳤", "지쳐",
		"압박", "슬픔", "초조", "걱정", "공황",
		"stress", "anxious", "anxiety", "sad", "angry", "tired", "upset", "depressed", "panic", "burnout",
	}
	lowStressKeywords = []string{
		"행복", "기쁨", "좋음", "즐거", "평온", "편안", "안정", "만족", "감사", "차분", "기분좋",
		"happy", "joy", "good", "calm", "relaxed", "content", "grateful", "peace",
	}
	neutralKeywords = []string{
		"보통", "평범", "무난", "그냥", "중간", "ok", "okay", "neutral",
	}
)

// ClassifyMood maps a free-text mood label to a stress score.
func ClassifyMood(mood string) int {
	text := strings.ToLower(strings.TrimSpace(mood))
	if text == "" {
		return NeutralStressScore
	}
	switch {
	case containsAny(text, highStressKeywords):
		return HighStressScore
	case containsAny(text, lowStressKeywords):
		return LowStressScore
	case containsAny(text, neutralKeywords):
		return NeutralStressScore
	default:
		return NeutralStressScore
	}
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
