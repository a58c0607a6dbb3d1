package optimize

import (
	"strings"
	"testing"
)

func TestSelectTemplate(t *testing.T) {
	tests := []struct {
		goal Goal
		want string
	}{
		{GoalReduceTokens, tokenOptimizerTemplate},
		{GoalBalanced, tokenOptimizerTemplate},
		{GoalImproveAccuracy, accuracyEnhancerTemplate},
		{GoalDomainSpecific, domainOptimizerTemplate},
	}
	for _, tt := range tests {
		if got := selectTemplate(tt.goal); got != tt.want {
			t.Errorf("selectTemplate(%s) picked the wrong template", tt.goal)
		}
	}
}

func TestBuildMetaPrompt(t *testing.T) {
	flags := DefaultFlags()
	flags.Goal = GoalDomainSpecific
	flags.Domain = "system_programming"
	out := buildMetaPrompt("write an allocator", flags)
	if !strings.Contains(out, "write an allocator") {
		t.Errorf("original prompt missing: %q", out)
	}
	if !strings.Contains(out, "system_programming") {
		t.Errorf("domain not substituted: %q", out)
	}
	if strings.Contains(out, "{original_prompt}") || strings.Contains(out, "{domain}") {
		t.Errorf("unfilled placeholder left behind: %q", out)
	}
	if !strings.Contains(out, defaultRequirements) {
		t.Errorf("default requirements missing: %q", out)
	}
}

func TestBuildValidationPrompt(t *testing.T) {
	out := buildValidationPrompt("the original", "the optimized")
	if !strings.Contains(out, "the original") || !strings.Contains(out, "the optimized") {
		t.Errorf("prompts not substituted: %q", out)
	}
	if strings.Contains(out, "{original_prompt}") || strings.Contains(out, "{optimized_prompt}") {
		t.Errorf("unfilled placeholder left behind: %q", out)
	}
}

func TestParseOptimizedResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"marker", "Here you go.\nOPTIMIZED PROMPT:\nwrite concise code", "write concise code"},
		{"marker mixed case", "Optimized prompt: do the thing", "do the thing"},
		{"code fence", "Sure:\n```\nfenced prompt body\n```\ntrailing text", "fenced prompt body"},
		{"fence with language", "```text\nfenced body\n```", "fenced body"},
		{"bare text", "  just the prompt  ", "just the prompt"},
	}
	for _, tt := range tests {
		if got := parseOptimizedResponse(tt.response); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestParseValidationResponse(t *testing.T) {
	eq, conf := parseValidationResponse(`{"is_semantically_equivalent": true, "confidence_score": 0.92}`)
	if !eq || conf != 0.92 {
		t.Errorf("json verdict: got %v, %v", eq, conf)
	}

	eq, conf = parseValidationResponse("Preamble.\n{\"is_semantically_equivalent\": false, \"confidence_score\": 0.4}\nDone.")
	if eq || conf != 0.4 {
		t.Errorf("embedded json verdict: got %v, %v", eq, conf)
	}

	eq, conf = parseValidationResponse("The prompts are equivalent in meaning.")
	if !eq || conf != 0.8 {
		t.Errorf("text fallback positive: got %v, %v", eq, conf)
	}

	eq, conf = parseValidationResponse("These are not equivalent at all.")
	if eq || conf != 0.3 {
		t.Errorf("text fallback negative: got %v, %v", eq, conf)
	}
}

func TestEstimateTokensAndCost(t *testing.T) {
	if got := estimateTokens(""); got != 0 {
		t.Errorf("empty string: got %d tokens", got)
	}
	if got := estimateTokens("ab"); got != 1 {
		t.Errorf("short string rounds up to one token, got %d", got)
	}
	if got := estimateTokens(strings.Repeat("x", 400)); got != 100 {
		t.Errorf("400 chars: got %d tokens, want 100", got)
	}
	cost := estimateCost(strings.Repeat("x", 4000))
	if cost < 0.0029 || cost > 0.0031 {
		t.Errorf("1000 tokens should cost about 0.003, got %f", cost)
	}
}
