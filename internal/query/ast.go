package query

// Node is a parsed query directive. Nodes keep their 1-based source
// position for diagnostics and are visited in source order.
type Node interface {
	Accept(v Visitor)
	Pos() (line, column int)
}

// Visitor dispatches over the concrete node kinds.
type Visitor interface {
	VisitCodeRequest(n *CodeRequestNode)
	VisitContext(n *ContextNode)
	VisitTest(n *TestNode)
	VisitDependency(n *DependencyNode)
	VisitPerformance(n *PerformanceNode)
	VisitCopyright(n *CopyrightNode)
	VisitArchitecture(n *ArchitectureNode)
	VisitConstraint(n *ConstraintNode)
	VisitExample(n *ExampleNode)
	VisitSecurity(n *SecurityNode)
	VisitComplexity(n *ComplexityNode)
	VisitModel(n *ModelNode)
	VisitFormat(n *FormatNode)
	VisitVariable(n *VariableNode)
	VisitOutputFormat(n *OutputFormatNode)
	VisitMaxTokens(n *MaxTokensNode)
	VisitTemperature(n *TemperatureNode)
	VisitPattern(n *PatternNode)
	VisitStructure(n *StructureNode)
}

type basePos struct {
	Line   int
	Column int
}

func (b basePos) Pos() (int, int) { return b.Line, b.Column }

// CodeRequestNode is the combined @language + @description directive.
type CodeRequestNode struct {
	basePos
	Language    string
	Description string
}

func (n *CodeRequestNode) Accept(v Visitor) { v.VisitCodeRequest(n) }

type ContextNode struct {
	basePos
	Context string
}

func (n *ContextNode) Accept(v Visitor) { v.VisitContext(n) }

type TestNode struct {
	basePos
	TestCase string
}

func (n *TestNode) Accept(v Visitor) { v.VisitTest(n) }

type DependencyNode struct {
	basePos
	Dependency string
}

func (n *DependencyNode) Accept(v Visitor) { v.VisitDependency(n) }

type PerformanceNode struct {
	basePos
	Requirement string
}

func (n *PerformanceNode) Accept(v Visitor) { v.VisitPerformance(n) }

type CopyrightNode struct {
	basePos
	License string
	Owner   string
}

func (n *CopyrightNode) Accept(v Visitor) { v.VisitCopyright(n) }

// ArchitectureLayer distinguishes layered architecture directives from
// the legacy single-string form.
type ArchitectureLayer string

const (
	LayerNone        ArchitectureLayer = ""
	LayerFoundation  ArchitectureLayer = "foundation"
	LayerComponent   ArchitectureLayer = "component"
	LayerInteraction ArchitectureLayer = "interaction"
)

// ArchitectureNode holds either a legacy free-form architecture
// requirement (Layer == LayerNone, Pattern holds the text) or a
// layered pattern with optional parameters.
type ArchitectureNode struct {
	basePos
	Layer      ArchitectureLayer
	Pattern    string
	Parameters string
}

func (n *ArchitectureNode) Accept(v Visitor) { v.VisitArchitecture(n) }

// IsLayered reports whether the directive used the layered form.
func (n *ArchitectureNode) IsLayered() bool { return n.Layer != LayerNone }

type ConstraintNode struct {
	basePos
	Constraint string
}

func (n *ConstraintNode) Accept(v Visitor) { v.VisitConstraint(n) }

type ExampleNode struct {
	basePos
	Label string
	Code  string
}

func (n *ExampleNode) Accept(v Visitor) { v.VisitExample(n) }

type SecurityNode struct {
	basePos
	Requirement string
}

func (n *SecurityNode) Accept(v Visitor) { v.VisitSecurity(n) }

type ComplexityNode struct {
	basePos
	Complexity string
}

func (n *ComplexityNode) Accept(v Visitor) { v.VisitComplexity(n) }

type ModelNode struct {
	basePos
	Model string
}

func (n *ModelNode) Accept(v Visitor) { v.VisitModel(n) }

type FormatNode struct {
	basePos
	Format string
}

func (n *FormatNode) Accept(v Visitor) { v.VisitFormat(n) }

type VariableNode struct {
	basePos
	Name  string
	Value string
}

func (n *VariableNode) Accept(v Visitor) { v.VisitVariable(n) }

type OutputFormatNode struct {
	basePos
	Format string
}

func (n *OutputFormatNode) Accept(v Visitor) { v.VisitOutputFormat(n) }

type MaxTokensNode struct {
	basePos
	Value string
}

func (n *MaxTokensNode) Accept(v Visitor) { v.VisitMaxTokens(n) }

type TemperatureNode struct {
	basePos
	Value string
}

func (n *TemperatureNode) Accept(v Visitor) { v.VisitTemperature(n) }

type PatternNode struct {
	basePos
	Pattern string
}

func (n *PatternNode) Accept(v Visitor) { v.VisitPattern(n) }

type StructureNode struct {
	basePos
	Structure string
}

func (n *StructureNode) Accept(v Visitor) { v.VisitStructure(n) }
