package template

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// IssueLevel grades template validation findings.
type IssueLevel int

const (
	IssueInfo IssueLevel = iota
	IssueWarning
	IssueError
)

func (l IssueLevel) String() string {
	switch l {
	case IssueInfo:
		return "INFO"
	case IssueWarning:
		return "WARNING"
	case IssueError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Issue is one template validation finding, optionally tied to a
// variable or directive.
type Issue struct {
	Level     IssueLevel
	Message   string
	Variable  string
	Directive string
}

func (i Issue) String() string {
	s := fmt.Sprintf("%s: %s", i.Level, i.Message)
	if i.Variable != "" {
		s += fmt.Sprintf(" [Variable: %s]", i.Variable)
	}
	if i.Directive != "" {
		s += fmt.Sprintf(" [Directive: %s]", i.Directive)
	}
	return s
}

// ValidationResult collects issues for one template.
type ValidationResult struct {
	Issues []Issue
}

func (r *ValidationResult) add(issues ...Issue) {
	r.Issues = append(r.Issues, issues...)
}

// ByLevel returns the issues at exactly the given level.
func (r *ValidationResult) ByLevel(level IssueLevel) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Level == level {
			out = append(out, issue)
		}
	}
	return out
}

// CountErrors returns the number of error-level issues.
func (r *ValidationResult) CountErrors() int { return len(r.ByLevel(IssueError)) }

// CountWarnings returns the number of warning-level issues.
func (r *ValidationResult) CountWarnings() int { return len(r.ByLevel(IssueWarning)) }

// HighestLevel returns the most severe level present, or IssueInfo
// for a clean result.
func (r *ValidationResult) HighestLevel() IssueLevel {
	highest := IssueInfo
	for _, issue := range r.Issues {
		if issue.Level > highest {
			highest = issue.Level
		}
	}
	return highest
}

// Summary renders a one-line overview of the result.
func (r *ValidationResult) Summary() string {
	if len(r.Issues) == 0 {
		return "Template is valid with no issues"
	}
	return fmt.Sprintf("Template has %d error(s), %d warning(s), %d info note(s)",
		r.CountErrors(), r.CountWarnings(), len(r.ByLevel(IssueInfo)))
}

// knownDirectives are the directives a template may use.
var knownDirectives = map[string]bool{
	"@copyright": true, "@language": true, "@description": true,
	"@context": true, "@dependency": true, "@test": true,
	"@architecture": true, "@constraint": true, "@security": true,
	"@complexity": true, "@example": true, "@variable": true,
	"@inherit": true, "@model": true, "@format": true,
	"@performance": true, "@output_format": true, "@max_tokens": true,
	"@temperature": true, "@pattern": true, "@structure": true,
}

var directiveLineRe = regexp.MustCompile(`(?m)^(@[a-zA-Z_]+)\s+`)

// ValidationRule is a pluggable content check.
type ValidationRule func(content string) []Issue

// Validator checks template content and inheritance chains.
type Validator struct {
	store *Store
	rules []ValidationRule
}

// NewValidator creates a validator over the given store.
func NewValidator(store *Store) *Validator {
	return &Validator{store: store}
}

// AddRule registers an extra content rule.
func (v *Validator) AddRule(rule ValidationRule) {
	v.rules = append(v.rules, rule)
}

// ValidateTemplate runs content and inheritance validation for a
// stored template.
func (v *Validator) ValidateTemplate(name string) (*ValidationResult, error) {
	content, err := v.store.Load(name)
	if err != nil {
		return nil, fmt.Errorf("failed to validate template: %w", err)
	}
	result := v.ValidateContent(content)
	v.validateInheritance(name, result)
	return result, nil
}

// ValidateContent checks variables, directives and custom rules on
// raw template content.
func (v *Validator) ValidateContent(content string) *ValidationResult {
	result := &ValidationResult{}
	result.add(checkVariables(content)...)
	result.add(checkDirectives(content)...)
	for _, rule := range v.rules {
		result.add(rule(content)...)
	}
	return result
}

func checkVariables(content string) []Issue {
	declared := map[string]bool{}
	for _, name := range DeclaredVariables(content) {
		declared[name] = true
	}
	referenced := map[string]bool{}
	for _, name := range ReferencedVariables(content) {
		referenced[name] = true
	}

	var issues []Issue
	for _, name := range ReferencedVariables(content) {
		if !declared[name] {
			issues = append(issues, Issue{
				Level:    IssueWarning,
				Message:  "Referenced variable is not declared in the template",
				Variable: name,
			})
		}
	}
	for _, name := range DeclaredVariables(content) {
		if !referenced[name] {
			issues = append(issues, Issue{
				Level:    IssueWarning,
				Message:  "Declared variable is not used in the template",
				Variable: name,
			})
		}
	}
	return issues
}

func checkDirectives(content string) []Issue {
	present := map[string]bool{}
	for _, m := range directiveLineRe.FindAllStringSubmatch(content, -1) {
		present[m[1]] = true
	}

	var issues []Issue
	if !present["@description"] {
		issues = append(issues, Issue{
			Level:     IssueWarning,
			Message:   "Essential directive is missing",
			Directive: "@description",
		})
	}
	for directive := range present {
		if !knownDirectives[directive] {
			issues = append(issues, Issue{
				Level:     IssueError,
				Message:   "Invalid directive found: " + directive,
				Directive: directive,
			})
		}
	}
	return issues
}

// validateInheritance checks the chain for cycles, reports chain
// membership, and re-validates each parent's content with prefixed
// messages.
func (v *Validator) validateInheritance(name string, result *ValidationResult) {
	chain, err := v.store.InheritanceChain(name)
	if err != nil {
		if errors.Is(err, ErrCircularInheritance) {
			result.add(Issue{Level: IssueError, Message: err.Error()})
		} else {
			result.add(Issue{
				Level:   IssueError,
				Message: "Failed to validate inheritance chain: " + err.Error(),
			})
		}
		return
	}
	if len(chain) <= 1 {
		return
	}

	parents := chain[:len(chain)-1]
	result.add(Issue{
		Level: IssueWarning,
		Message: fmt.Sprintf("Template inherits from %d parent template(s): %s",
			len(parents), strings.Join(parents, ", ")),
	})

	for _, parent := range parents {
		content, err := v.store.Load(parent)
		if err != nil {
			result.add(Issue{
				Level:   IssueError,
				Message: fmt.Sprintf("Failed to validate parent template '%s': %v", parent, err),
			})
			continue
		}
		for _, issue := range append(checkVariables(content), checkDirectives(content)...) {
			issue.Message = fmt.Sprintf("In parent template '%s': %s", parent, issue.Message)
			result.add(issue)
		}
	}
}
