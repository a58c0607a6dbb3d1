package security

import "strings"

// ShellInjectionPatterns are always rejected in directive content,
// even if not configured.
var ShellInjectionPatterns = []string{
	"; rm",
	"; cat",
	"; ls",
	"; wget",
	"; curl",
	"&&",
	"||",
	" | ",
	"`",
	"$(cat",
	"$(rm",
	"$(wget",
	"$(curl",
	"../",
	"/dev/",
	"rm -rf",
	"rm ",
	" exec ",
	" eval ",
	" system ",
}

// SQLInjectionPatterns catch query fragments that have no business in
// directive content.
var SQLInjectionPatterns = []string{
	"'; ",
	"' or ",
	"\" or ",
	" union ",
	" select ",
	" insert ",
	" update ",
	" delete ",
	" drop ",
	" truncate ",
	"--",
	"/*",
	"*/",
	"xp_",
	"sp_",
}

// PathTraversalPatterns catch escape attempts in file references,
// including URL-encoded forms.
var PathTraversalPatterns = []string{
	"../",
	"..\\",
	"..%2f",
	"..%5c",
	"%2e%2e%2f",
	"%2e%2e%5c",
	"%2e%2e/",
	"%00",
}

// NormalizePatterns lowercases, trims, deduplicates, and merges
// defaults with configured additions.
func NormalizePatterns(configured []string, defaults []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(defaults)+len(configured))
	appendUnique := func(patterns []string) {
		for _, p := range patterns {
			n := strings.ToLower(p)
			if strings.TrimSpace(n) == "" {
				continue
			}
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	appendUnique(defaults)
	appendUnique(configured)
	return out
}

// MatchPattern returns the matched pattern (if any) for the input.
// Matching is case-insensitive substring search.
func MatchPattern(input string, patterns []string) (string, bool) {
	lower := strings.ToLower(input)
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(p)) {
			return p, true
		}
	}
	return "", false
}
