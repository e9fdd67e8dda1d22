package extract

import "strings"

// platformKeywords maps hosting bounty platforms to the terms that indicate
// them. Ordered so more specific platforms win over the generic fallback.
var platformKeywords = []struct {
	platform string
	terms    []string
}{
	{"bountysource", []string{"bountysource", "bounty source"}},
	{"gitcoin", []string{"gitcoin"}},
	{"algora", []string{"algora"}},
	{"console", []string{"console.dev"}},
	{"devcash", []string{"devcash"}},
	{"github_sponsors", []string{"github sponsors"}},
	{"custom", []string{"bounty", "reward", "prize"}},
}

// DetectPlatform identifies which bounty platform, if any, the issue text
// references. Returns "" when no platform indicator is present.
func DetectPlatform(text string) string {
	lower := strings.ToLower(text)
	for _, p := range platformKeywords {
		for _, term := range p.terms {
			if strings.Contains(lower, term) {
				return p.platform
			}
		}
	}
	return ""
}
