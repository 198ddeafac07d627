package utils

import "strings"

// ParseCSV splits a comma-separated string and returns trimmed, non-empty,
// de-duplicated values in their original order.
// Returns nil for empty/whitespace-only input.
// Used for list-valued settings such as EMAIL_RECIPIENTS and NEWS_URLS.
func ParseCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	seen := make(map[string]bool)
	var result []string
	for _, v := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		result = append(result, trimmed)
	}

	if len(result) == 0 {
		return nil
	}

	return result
}

// TruncateRunes shortens s to at most max runes, appending "…" when cut.
// Headline titles are mostly Hangul, so byte slicing would split characters.
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
