package template

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCircularInheritance is wrapped into the error returned when an
// @inherit chain loops back on itself.
var ErrCircularInheritance = errors.New("circular inheritance detected")

// InheritanceChain walks @inherit links from the named template up to
// its root ancestor and returns the chain base-first (the named
// template is the last element). A repeated template fails with
// ErrCircularInheritance naming the cycle path.
func (s *Store) InheritanceChain(name string) ([]string, error) {
	var chain []string
	visited := map[string]bool{}
	current := name
	for current != "" {
		if visited[current] {
			cycle := strings.Join(append(chain, current), " -> ")
			return nil, fmt.Errorf("%w: %s", ErrCircularInheritance, cycle)
		}
		visited[current] = true
		chain = append(chain, current)

		content, err := s.Load(current)
		if err != nil {
			return nil, fmt.Errorf("failed to load template %s in inheritance chain: %w", current, err)
		}
		m := inheritRe.FindStringSubmatch(content)
		if m == nil {
			break
		}
		current = m[1]
	}
	// Reverse so the base template comes first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// LoadResolved loads a template with its whole inheritance chain
// merged: base bodies first, child bodies last, variable declarations
// hoisted to the top with child values overriding parent values.
func (s *Store) LoadResolved(name string) (string, error) {
	chain, err := s.InheritanceChain(name)
	if err != nil {
		return "", err
	}

	variables := map[string]string{}
	var order []string
	var bodies []string
	for _, tmpl := range chain {
		content, err := s.Load(tmpl)
		if err != nil {
			return "", err
		}
		for _, m := range variableRe.FindAllStringSubmatch(content, -1) {
			if _, seen := variables[m[1]]; !seen {
				order = append(order, m[1])
			}
			variables[m[1]] = m[2]
		}
		bodies = append(bodies, stripDirectiveLines(content))
	}

	var b strings.Builder
	for _, name := range order {
		fmt.Fprintf(&b, "@variable \"%s\" \"%s\"\n", name, variables[name])
	}
	for _, body := range bodies {
		body = strings.TrimSpace(body)
		if body == "" {
			continue
		}
		b.WriteString("\n")
		b.WriteString(body)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// stripDirectiveLines removes @inherit and @variable lines; both are
// re-emitted (or consumed) by the merge itself.
func stripDirectiveLines(content string) string {
	lines := strings.Split(content, "\n")
	var kept []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "@inherit ") || strings.HasPrefix(trimmed, "@variable ") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// Instantiate resolves a template and applies caller-supplied variable
// values, which override declared defaults. References without a value
// stay verbatim.
func (s *Store) Instantiate(name string, vars map[string]string) (string, error) {
	content, err := s.LoadResolved(name)
	if err != nil {
		return "", err
	}
	values := map[string]string{}
	for _, m := range variableRe.FindAllStringSubmatch(content, -1) {
		values[m[1]] = m[2]
	}
	for varName, value := range vars {
		values[varName] = value
	}
	return substitute(content, values), nil
}

// ReplaceVariables substitutes ${name} references using the @variable
// declarations present in the content. Unknown references are left
// untouched.
func ReplaceVariables(content string) string {
	values := map[string]string{}
	for _, m := range variableRe.FindAllStringSubmatch(content, -1) {
		values[m[1]] = m[2]
	}
	return substitute(content, values)
}

func substitute(content string, values map[string]string) string {
	return referenceRe.ReplaceAllStringFunc(content, func(ref string) string {
		name := ref[2 : len(ref)-1]
		if value, ok := values[name]; ok {
			return value
		}
		return ref
	})
}

// DeclaredVariables returns the variable names declared in content,
// in declaration order without duplicates.
func DeclaredVariables(content string) []string {
	var names []string
	seen := map[string]bool{}
	for _, m := range variableRe.FindAllStringSubmatch(content, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// ReferencedVariables returns the ${name} references in content, in
// first-use order without duplicates.
func ReferencedVariables(content string) []string {
	var names []string
	seen := map[string]bool{}
	for _, m := range referenceRe.FindAllStringSubmatch(content, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}
