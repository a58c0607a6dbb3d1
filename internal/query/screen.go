package query

import (
	"fmt"

	"github.com/dbjwhs/cql-sub000/internal/security"
)

// MaxQueryLength bounds the raw query text accepted for compilation.
const MaxQueryLength = 50000

func checkQueryLength(input string) error {
	if len(input) > MaxQueryLength {
		return fmt.Errorf("query is %d characters, the maximum is %d", len(input), MaxQueryLength)
	}
	return nil
}

// Screen runs the injection checks over every directive payload.
// Variable references are masked first so that ${name} plumbing is
// not mistaken for shell syntax.
func Screen(nodes []Node) error {
	s := &screener{}
	for _, node := range nodes {
		node.Accept(s)
		if s.err != nil {
			return s.err
		}
	}
	return nil
}

type screener struct {
	err error
}

func (s *screener) check(n Node, directive string, payloads ...string) {
	for _, payload := range payloads {
		if s.err != nil {
			return
		}
		masked := variableRef.ReplaceAllLiteralString(payload, "VAR")
		if err := security.ValidateDirectiveContent(masked); err != nil {
			line, _ := n.Pos()
			s.err = fmt.Errorf("%s at line %d: %w", directive, line, err)
		}
	}
}

func (s *screener) VisitCodeRequest(n *CodeRequestNode) {
	s.check(n, "@language", n.Language)
	s.check(n, "@description", n.Description)
}
func (s *screener) VisitContext(n *ContextNode) { s.check(n, "@context", n.Context) }
func (s *screener) VisitTest(n *TestNode)       { s.check(n, "@test", n.TestCase) }
func (s *screener) VisitDependency(n *DependencyNode) {
	s.check(n, "@dependency", n.Dependency)
}
func (s *screener) VisitPerformance(n *PerformanceNode) {
	s.check(n, "@performance", n.Requirement)
}
func (s *screener) VisitCopyright(n *CopyrightNode) {
	s.check(n, "@copyright", n.License, n.Owner)
}
func (s *screener) VisitArchitecture(n *ArchitectureNode) {
	s.check(n, "@architecture", n.Pattern, n.Parameters)
}
func (s *screener) VisitConstraint(n *ConstraintNode) {
	s.check(n, "@constraint", n.Constraint)
}
func (s *screener) VisitExample(n *ExampleNode) { s.check(n, "@example", n.Label, n.Code) }
func (s *screener) VisitSecurity(n *SecurityNode) {
	s.check(n, "@security", n.Requirement)
}
func (s *screener) VisitComplexity(n *ComplexityNode) {
	s.check(n, "@complexity", n.Complexity)
}
func (s *screener) VisitModel(n *ModelNode)   { s.check(n, "@model", n.Model) }
func (s *screener) VisitFormat(n *FormatNode) { s.check(n, "@format", n.Format) }
func (s *screener) VisitVariable(n *VariableNode) {
	s.check(n, "@variable", n.Name, n.Value)
}
func (s *screener) VisitOutputFormat(n *OutputFormatNode) {
	s.check(n, "@output_format", n.Format)
}
func (s *screener) VisitMaxTokens(n *MaxTokensNode) { s.check(n, "@max_tokens", n.Value) }
func (s *screener) VisitTemperature(n *TemperatureNode) {
	s.check(n, "@temperature", n.Value)
}
func (s *screener) VisitPattern(n *PatternNode) { s.check(n, "@pattern", n.Pattern) }
func (s *screener) VisitStructure(n *StructureNode) {
	s.check(n, "@structure", n.Structure)
}
