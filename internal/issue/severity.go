package issue

import "strings"

// Severity tiers in display order.
var SeverityOrder = []string{"critical", "high", "medium", "low"}

// Keyword tiers checked in order. The first matching tier wins, which biases
// classification toward the higher severity on mixed signals.
var severityKeywords = []struct {
	severity string
	words    []string
}{
	{"critical", []string{"crash", "panic", "down", "fatal"}},
	{"high", []string{"error", "exception", "fail"}},
	{"medium", []string{"bug", "warning", "issue"}},
}

// DetectSeverity classifies free text into a severity tier by keyword
// matching. Pure function, no side effects. Unmatched text is low.
func DetectSeverity(text string) string {
	lowered := strings.ToLower(text)
	for _, tier := range severityKeywords {
		for _, w := range tier.words {
			if strings.Contains(lowered, w) {
				return tier.severity
			}
		}
	}
	return "low"
}
