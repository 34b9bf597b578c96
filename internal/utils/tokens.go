package utils

// Token estimates use the rough 1 token ~= 4 characters rule; they are only
// used for logging and context-window warnings.

// CountTokens estimates the number of tokens in the given text.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len([]rune(text)) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// TruncateToTokenLimit naively truncates text to roughly fit within a token limit.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	charLimit := limit * 4
	if charLimit >= len(runes) {
		return text
	}
	return string(runes[:charLimit])
}

// TokenBreakdown returns a breakdown map of labeled sections to token counts.
func TokenBreakdown(sections map[string]string) map[string]int {
	out := make(map[string]int, len(sections))
	for k, v := range sections {
		out[k] = CountTokens(v)
	}
	return out
}

// NearLimit reports whether used tokens exceed ratio of limit. A
// non-positive limit is treated as unknown and never reported.
func NearLimit(used, limit int, ratio float64) bool {
	if limit <= 0 {
		return false
	}
	return float64(used) >= float64(limit)*ratio
}
