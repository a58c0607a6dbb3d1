package optimize

import "strings"

// domainPrefixes are deterministic per-domain instructions applied by
// the local optimizer.
var domainPrefixes = map[string]string{
	"code_generation":    "Generate production-ready code with error handling:\n",
	"system_programming": "Focus on performance and memory efficiency:\n",
	"data_science":       "Provide data analysis with statistical validation:\n",
}

const (
	accuracyPrefix = "Please provide a precise and accurate response:\n"
	accuracySuffix = "\n\nEnsure all details are correct and well-documented."
)

// LocalOptimizer applies deterministic text transforms without any
// network use. It backs local_only mode and every LLM fallback path.
type LocalOptimizer struct{}

// Optimize transforms the prompt according to the goal and domain.
func (LocalOptimizer) Optimize(prompt string, flags Flags) string {
	switch flags.Goal {
	case GoalReduceTokens, GoalBalanced:
		return collapseWhitespace(prompt)
	case GoalImproveAccuracy:
		return accuracyPrefix + prompt + accuracySuffix
	case GoalDomainSpecific:
		if prefix, ok := domainPrefixes[flags.Domain]; ok {
			return prefix + prompt
		}
		return collapseWhitespace(prompt)
	}
	return prompt
}

// collapseWhitespace folds runs of spaces and tabs into single spaces
// and trims trailing whitespace from each line.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		fields := strings.Fields(line)
		lines[i] = strings.Join(fields, " ")
	}
	// Collapse runs of blank lines as well.
	var out []string
	blank := false
	for _, line := range lines {
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
