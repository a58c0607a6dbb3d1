package optimize

import (
	"encoding/json"
	"strings"
)

// Meta-prompt templates sent to the LLM. Placeholders in braces are
// filled by buildMetaPrompt.
const (
	tokenOptimizerTemplate = `You are an expert prompt optimization specialist focused on token efficiency.

Rewrite the following prompt to use fewer tokens while preserving its complete meaning and every explicit requirement. Target a reduction of about {target_reduction}%. Domain: {domain}.

Original prompt:
{original_prompt}

Respond with the optimized prompt only, introduced by the line "OPTIMIZED PROMPT:".`

	accuracyEnhancerTemplate = `You are an expert prompt engineering specialist focused on response accuracy.

Improve the following prompt so a language model produces more precise and complete answers. Keep all original requirements intact. Domain: {domain}. Use case: {use_case}.

Original prompt:
{original_prompt}

Respond with the improved prompt only, introduced by the line "OPTIMIZED PROMPT:".`

	domainOptimizerTemplate = `You are an expert in the {domain} domain.

Rework the following prompt with domain-appropriate terminology and constraints. Requirements to honor: {requirements}.

Original prompt:
{original_prompt}

Respond with the optimized prompt only, introduced by the line "OPTIMIZED PROMPT:".`

	semanticValidatorTemplate = `You are a semantic equivalence judge for prompts.

Compare the two prompts below and decide whether the optimized prompt preserves the full meaning and every requirement of the original.

Original prompt:
{original_prompt}

Optimized prompt:
{optimized_prompt}

Respond with JSON only: {"is_semantically_equivalent": <bool>, "confidence_score": <0.0-1.0>}`
)

// Default placeholder values.
const (
	defaultTargetReduction = "20"
	defaultUseCase         = "general optimization"
	defaultRequirements    = "standard compliance"
)

// selectTemplate picks the meta-prompt for a goal. Balanced
// optimization uses the token optimizer.
func selectTemplate(goal Goal) string {
	switch goal {
	case GoalImproveAccuracy:
		return accuracyEnhancerTemplate
	case GoalDomainSpecific:
		return domainOptimizerTemplate
	default:
		return tokenOptimizerTemplate
	}
}

// buildMetaPrompt fills a template's placeholders.
func buildMetaPrompt(prompt string, flags Flags) string {
	tmpl := selectTemplate(flags.Goal)
	r := strings.NewReplacer(
		"{original_prompt}", prompt,
		"{domain}", flags.Domain,
		"{target_reduction}", defaultTargetReduction,
		"{use_case}", defaultUseCase,
		"{requirements}", defaultRequirements,
	)
	return r.Replace(tmpl)
}

// buildValidationPrompt fills the semantic validator template.
func buildValidationPrompt(original, optimized string) string {
	r := strings.NewReplacer(
		"{original_prompt}", original,
		"{optimized_prompt}", optimized,
	)
	return r.Replace(semanticValidatorTemplate)
}

// parseOptimizedResponse extracts the optimized prompt from an LLM
// response: the text after an "OPTIMIZED PROMPT:" marker, the body of
// the first code fence, or the whole trimmed response.
func parseOptimizedResponse(response string) string {
	for _, marker := range []string{"OPTIMIZED PROMPT:", "Optimized prompt:", "Optimized Prompt:"} {
		if idx := strings.Index(response, marker); idx >= 0 {
			return strings.TrimSpace(response[idx+len(marker):])
		}
	}
	if start := strings.Index(response, "```"); start >= 0 {
		rest := response[start+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	return strings.TrimSpace(response)
}

// parseValidationResponse decodes the validator's JSON verdict, with
// a text-scan fallback for responses that ignore the format.
func parseValidationResponse(response string) (equivalent bool, confidence float64) {
	var verdict struct {
		IsSemanticallyEquivalent bool    `json:"is_semantically_equivalent"`
		ConfidenceScore          float64 `json:"confidence_score"`
	}
	raw := response
	if start := strings.IndexByte(raw, '{'); start >= 0 {
		if end := strings.LastIndexByte(raw, '}'); end > start {
			raw = raw[start : end+1]
		}
	}
	if err := json.Unmarshal([]byte(raw), &verdict); err == nil {
		return verdict.IsSemanticallyEquivalent, verdict.ConfidenceScore
	}
	if strings.Contains(strings.ToLower(response), "equivalent") &&
		!strings.Contains(strings.ToLower(response), "not equivalent") {
		return true, 0.8
	}
	return false, 0.3
}

// estimateCost approximates the price of a request from its prompt
// length, at roughly $0.003 per thousand tokens.
func estimateCost(prompt string) float64 {
	tokens := estimateTokens(prompt)
	return float64(tokens) / 1000 * 0.003
}

// estimateTokens approximates token count as one token per four
// characters.
func estimateTokens(s string) int {
	n := len(s) / 4
	if n == 0 && len(s) > 0 {
		n = 1
	}
	return n
}
