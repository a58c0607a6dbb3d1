package optimize

import (
	"fmt"
	"strings"
)

// SemanticConfig tunes heuristic semantic validation.
type SemanticConfig struct {
	// ConfidenceThreshold is the minimum confidence for an optimized
	// prompt to be accepted.
	ConfidenceThreshold float64
	// MaxLengthChangePercent bounds how much the optimized prompt may
	// grow or shrink.
	MaxLengthChangePercent float64
}

// DefaultSemanticConfig returns the stock validation tuning.
func DefaultSemanticConfig() SemanticConfig {
	return SemanticConfig{
		ConfidenceThreshold:    0.85,
		MaxLengthChangePercent: 50,
	}
}

// structuralMarkers are prompt features whose loss suggests the
// optimization changed intent, grouped so any group member preserves
// the group.
var structuralMarkers = [][]string{
	{"please", "kindly"},
	{"first", "then", "finally", "step"},
	{"example", "e.g.", "for instance"},
	{"important", "must", "note", "required"},
	{"```", "json", "format"},
}

// stopWords are excluded from key-term similarity.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "are": true, "was": true, "but": true, "not": true,
	"you": true, "all": true, "can": true, "has": true, "have": true,
	"will": true, "from": true, "into": true, "its": true, "any": true,
	"each": true, "should": true, "would": true, "could": true,
}

// SemanticValidator scores optimized prompts against their originals
// without calling an LLM.
type SemanticValidator struct {
	cfg SemanticConfig
}

// NewSemanticValidator creates a validator; zero config fields take
// defaults.
func NewSemanticValidator(cfg SemanticConfig) *SemanticValidator {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultSemanticConfig().ConfidenceThreshold
	}
	if cfg.MaxLengthChangePercent <= 0 {
		cfg.MaxLengthChangePercent = DefaultSemanticConfig().MaxLengthChangePercent
	}
	return &SemanticValidator{cfg: cfg}
}

// Threshold returns the configured acceptance threshold.
func (v *SemanticValidator) Threshold() float64 { return v.cfg.ConfidenceThreshold }

// Validate grades the optimized prompt. Confidence starts from term
// similarity blended with the length ratio and is penalized for each
// failed structural check.
func (v *SemanticValidator) Validate(original, optimized string) *SemanticResult {
	result := &SemanticResult{ValidationMethod: "heuristic"}

	structuralOK := checkStructure(original, optimized)
	lengthOK := v.checkLength(original, optimized)

	similarity := jaccardSimilarity(keyTerms(original), keyTerms(optimized))
	confidence := similarity*0.7 + lengthRatio(original, optimized)*0.3
	if !structuralOK {
		confidence *= 0.7
		result.DetectedIssues = append(result.DetectedIssues,
			"structural markers from the original are missing")
	}
	if !lengthOK {
		confidence *= 0.8
		result.DetectedIssues = append(result.DetectedIssues,
			fmt.Sprintf("length changed by more than %.0f%%", v.cfg.MaxLengthChangePercent))
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	result.ConfidenceScore = confidence
	result.IsSemanticallyEquivalent = structuralOK && lengthOK && confidence >= v.cfg.ConfidenceThreshold
	return result
}

// AnalyzeDifferences describes what changed between the prompts.
func (v *SemanticValidator) AnalyzeDifferences(original, optimized string) []string {
	var notes []string
	change := lengthChangePercent(original, optimized)
	notes = append(notes, fmt.Sprintf("length change: %+.1f%%", change))

	origTerms := keyTerms(original)
	optTerms := keyTerms(optimized)
	var missing []string
	for term := range origTerms {
		if !optTerms[term] {
			missing = append(missing, term)
			if len(missing) == 5 {
				break
			}
		}
	}
	if len(missing) > 0 {
		notes = append(notes, "missing key terms: "+strings.Join(missing, ", "))
		notes = append(notes, "consider keeping domain-specific terminology from the original")
	}
	if change < -v.cfg.MaxLengthChangePercent {
		notes = append(notes, "optimized prompt may have dropped requirements; review before use")
	}
	return notes
}

func checkStructure(original, optimized string) bool {
	origLower := strings.ToLower(original)
	optLower := strings.ToLower(optimized)
	for _, group := range structuralMarkers {
		had := false
		kept := false
		for _, marker := range group {
			if strings.Contains(origLower, marker) {
				had = true
			}
			if strings.Contains(optLower, marker) {
				kept = true
			}
		}
		if had && !kept {
			return false
		}
	}
	return true
}

func (v *SemanticValidator) checkLength(original, optimized string) bool {
	change := lengthChangePercent(original, optimized)
	if change < 0 {
		change = -change
	}
	return change <= v.cfg.MaxLengthChangePercent
}

func lengthChangePercent(original, optimized string) float64 {
	if len(original) == 0 {
		return 0
	}
	return (float64(len(optimized)) - float64(len(original))) / float64(len(original)) * 100
}

func lengthRatio(original, optimized string) float64 {
	lo, lp := float64(len(original)), float64(len(optimized))
	if lo == 0 || lp == 0 {
		return 0
	}
	if lp > lo {
		return lo / lp
	}
	return lp / lo
}

// keyTerms extracts lowercase words of three or more letters that are
// not stop words.
func keyTerms(s string) map[string]bool {
	terms := map[string]bool{}
	word := strings.Builder{}
	flush := func() {
		if word.Len() >= 3 {
			term := word.String()
			if !stopWords[term] {
				terms[term] = true
			}
		}
		word.Reset()
	}
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			word.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return terms
}

func jaccardSimilarity(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for term := range a {
		if b[term] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
