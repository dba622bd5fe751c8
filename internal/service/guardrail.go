package service

import (
	"regexp"
	"strings"
)

// GuardrailFilter tests generated answer text against a fixed set of
// hedging and approximation patterns. It is stateless and pure: the same
// input always yields the same verdict.
type GuardrailFilter struct {
	patterns []*regexp.Regexp
}

// bannedPatterns matches vocabulary that signals an unverified figure. The
// set is fixed; matching is case-insensitive.
var bannedPatterns = []string{
	`\bapproximately\b`,
	`\baround \d`,
	`\broughly\b`,
	`\btypically\b`,
	`\busually\b`,
	`\bi assume\b`,
	`\babout \d`,
	`\bon average\b`,
	`\bestimated?\b`,
	`\bprobably\b`,
	`\bi think\b`,
	`\bshould be\b`,
	`\bmore or less\b`,
	`\bballpark\b`,
	`\bgive or take\b`,
}

// NewGuardrailFilter compiles the banned pattern set once.
func NewGuardrailFilter() *GuardrailFilter {
	patterns := make([]*regexp.Regexp, 0, len(bannedPatterns))
	for _, p := range bannedPatterns {
		patterns = append(patterns, regexp.MustCompile(`(?i)`+p))
	}
	return &GuardrailFilter{patterns: patterns}
}

// Check returns false with the offending match when the text contains
// hedging vocabulary, true otherwise.
func (f *GuardrailFilter) Check(text string) (bool, string) {
	for _, pattern := range f.patterns {
		if match := pattern.FindString(text); match != "" {
			return false, strings.TrimSpace(match)
		}
	}
	return true, ""
}
