package query

import (
	"fmt"
	"strings"
)

// ValidationLevel classifies validation issues.
type ValidationLevel int

const (
	LevelInfo ValidationLevel = iota
	LevelWarning
	LevelError
)

func (l ValidationLevel) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Issue codes reported by the validator.
const (
	CodeGeneral            = "GENERAL"
	CodeMultipleErrors     = "MULTIPLE_ERRORS"
	CodeMissingLanguage    = "MISSING_LANGUAGE"
	CodeMissingDescription = "MISSING_DESCRIPTION"
	CodeMissingCopyright   = "MISSING_COPYRIGHT"
	CodeDuplicateDirective = "DUPLICATE_DIRECTIVE"
	CodeMissingDependency  = "MISSING_DEPENDENCY"
	CodeIncompatible       = "INCOMPATIBLE_DIRECTIVES"
	CodeNoTests            = "NO_TESTS"
)

// ValidationIssue is one finding from query validation.
type ValidationIssue struct {
	Level   ValidationLevel
	Code    string
	Message string
}

func (i ValidationIssue) String() string {
	return fmt.Sprintf("%s [%s]: %s", i.Level, i.Code, i.Message)
}

// ValidationResult aggregates issues found in one query.
type ValidationResult struct {
	Issues []ValidationIssue
}

// ByLevel returns the issues at exactly the given level.
func (r *ValidationResult) ByLevel(level ValidationLevel) []ValidationIssue {
	var out []ValidationIssue
	for _, issue := range r.Issues {
		if issue.Level == level {
			out = append(out, issue)
		}
	}
	return out
}

// HasErrors reports whether any issue is error level.
func (r *ValidationResult) HasErrors() bool {
	return len(r.ByLevel(LevelError)) > 0
}

// Err folds error-level issues into a single error, messages joined
// with "; ". Returns nil when there are no errors.
func (r *ValidationResult) Err() error {
	errs := r.ByLevel(LevelError)
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%s", errs[0].Message)
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// DirectiveCounts tallies how many times each directive kind appears.
type DirectiveCounts map[TokenType]int

// Rule inspects a query and reports issues. Custom rules get the raw
// nodes alongside the counts.
type Rule func(counts DirectiveCounts, nodes []Node) []ValidationIssue

// Validator runs required/exclusive/dependency/incompatible and custom
// rules over a parsed query.
type Validator struct {
	rules []Rule
}

// NewValidator returns a validator loaded with the default rule set.
func NewValidator() *Validator {
	v := &Validator{}
	v.AddRule(RequireDirective(TokenLanguage, CodeMissingLanguage))
	v.AddRule(RequireDirective(TokenDescription, CodeMissingDescription))
	v.AddRule(RequireDirective(TokenCopyright, CodeMissingCopyright))
	v.AddRule(ExclusiveDirective(TokenLanguage))
	v.AddRule(ExclusiveDirective(TokenDescription))
	v.AddRule(ExclusiveDirective(TokenCopyright))
	v.AddRule(ExclusiveDirective(TokenModel))
	v.AddRule(ExclusiveDirective(TokenFormat))
	v.AddRule(ExclusiveDirective(TokenOutputFormat))
	v.AddRule(ExclusiveDirective(TokenMaxTokens))
	v.AddRule(ExclusiveDirective(TokenTemperature))
	v.AddRule(DependentDirective(TokenArchitecture, TokenContext))
	v.AddRule(suggestTests)
	return v
}

// AddRule appends a rule; rules run in registration order.
func (v *Validator) AddRule(rule Rule) {
	v.rules = append(v.rules, rule)
}

// Validate runs all rules over the query.
func (v *Validator) Validate(nodes []Node) *ValidationResult {
	counts := countDirectives(nodes)
	result := &ValidationResult{}
	for _, rule := range v.rules {
		result.Issues = append(result.Issues, rule(counts, nodes)...)
	}
	return result
}

func countDirectives(nodes []Node) DirectiveCounts {
	counts := DirectiveCounts{}
	for _, node := range nodes {
		switch node.(type) {
		case *CodeRequestNode:
			// The combined node satisfies both directives.
			counts[TokenLanguage]++
			counts[TokenDescription]++
		case *ContextNode:
			counts[TokenContext]++
		case *TestNode:
			counts[TokenTest]++
		case *DependencyNode:
			counts[TokenDependency]++
		case *PerformanceNode:
			counts[TokenPerformance]++
		case *CopyrightNode:
			counts[TokenCopyright]++
		case *ArchitectureNode:
			counts[TokenArchitecture]++
		case *ConstraintNode:
			counts[TokenConstraint]++
		case *ExampleNode:
			counts[TokenExample]++
		case *SecurityNode:
			counts[TokenSecurity]++
		case *ComplexityNode:
			counts[TokenComplexity]++
		case *ModelNode:
			counts[TokenModel]++
		case *FormatNode:
			counts[TokenFormat]++
		case *VariableNode:
			counts[TokenVariable]++
		case *OutputFormatNode:
			counts[TokenOutputFormat]++
		case *MaxTokensNode:
			counts[TokenMaxTokens]++
		case *TemperatureNode:
			counts[TokenTemperature]++
		case *PatternNode:
			counts[TokenPattern]++
		case *StructureNode:
			counts[TokenStructure]++
		}
	}
	return counts
}

func directiveName(t TokenType) string {
	for name, typ := range keywords {
		if typ == t {
			return "@" + name
		}
	}
	return t.String()
}

// RequireDirective errors when the directive is absent.
func RequireDirective(t TokenType, code string) Rule {
	return func(counts DirectiveCounts, _ []Node) []ValidationIssue {
		if counts[t] == 0 {
			return []ValidationIssue{{
				Level:   LevelError,
				Code:    code,
				Message: fmt.Sprintf("Required directive %s is missing", directiveName(t)),
			}}
		}
		return nil
	}
}

// ExclusiveDirective warns when a directive that should appear at most
// once appears more than once.
func ExclusiveDirective(t TokenType) Rule {
	return func(counts DirectiveCounts, _ []Node) []ValidationIssue {
		if counts[t] > 1 {
			return []ValidationIssue{{
				Level:   LevelWarning,
				Code:    CodeDuplicateDirective,
				Message: fmt.Sprintf("Multiple %s directives found. Only the last one will be used.", directiveName(t)),
			}}
		}
		return nil
	}
}

// DependentDirective warns when the first directive is used without
// the second.
func DependentDirective(t, requires TokenType) Rule {
	return func(counts DirectiveCounts, _ []Node) []ValidationIssue {
		if counts[t] > 0 && counts[requires] == 0 {
			return []ValidationIssue{{
				Level:   LevelWarning,
				Code:    CodeMissingDependency,
				Message: fmt.Sprintf("%s directive works best with %s directive", directiveName(t), directiveName(requires)),
			}}
		}
		return nil
	}
}

// IncompatibleDirectives warns when both directives appear in the same
// query.
func IncompatibleDirectives(a, b TokenType) Rule {
	return func(counts DirectiveCounts, _ []Node) []ValidationIssue {
		if counts[a] > 0 && counts[b] > 0 {
			return []ValidationIssue{{
				Level:   LevelWarning,
				Code:    CodeIncompatible,
				Message: fmt.Sprintf("%s and %s directives should not be used together", directiveName(a), directiveName(b)),
			}}
		}
		return nil
	}
}

func suggestTests(counts DirectiveCounts, _ []Node) []ValidationIssue {
	if counts[TokenTest] == 0 {
		return []ValidationIssue{{
			Level:   LevelWarning,
			Code:    CodeNoTests,
			Message: "No test cases specified. Consider adding tests with @test directive.",
		}}
	}
	return nil
}
