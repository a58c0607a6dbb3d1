package query

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultTargetModel is assumed when no @model directive appears; it
// is omitted from the compiled output.
const DefaultTargetModel = "claude-3-opus"

const qualityFooter = `Quality Assurance Requirements:
- All code must be well-documented with comments
- Follow modern best practices
- Ensure proper error handling
- Optimize for readability and maintainability
`

// sectionOrder fixes the rendering order of accumulated sections.
var sectionOrder = []string{
	"Context:",
	"Architecture Requirements:",
	"Constraints:",
	"Dependencies:",
	"Performance Requirements:",
	"Security Requirements:",
	"Algorithmic Complexity Requirements:",
	"Model Parameters:",
	"Design Patterns:",
	"File Structure:",
}

type example struct {
	label string
	code  string
}

// Compiler walks the AST and assembles the final prompt. It implements
// Visitor; one instance compiles one query.
type Compiler struct {
	sections    map[string][]string
	examples    []example
	tests       []string
	variables   map[string]string
	targetModel string
	format      string
	license     string
	owner       string
	hasCopy     bool
	description string
	language    string

	outputFormat string
	maxTokens    string
	temperature  string
	forcedFormat string
}

// NewCompiler returns a compiler with defaults applied.
func NewCompiler() *Compiler {
	return &Compiler{
		sections:    map[string][]string{},
		variables:   map[string]string{},
		targetModel: DefaultTargetModel,
		format:      "markdown",
	}
}

// ForceFormat overrides the output format regardless of any @format
// directive in the query.
func (c *Compiler) ForceFormat(format string) {
	c.forcedFormat = format
}

// Compile parses, screens, visits and renders query text in one step.
func Compile(input string) (string, error) {
	nodes, err := Parse(input)
	if err != nil {
		return "", err
	}
	if err := Screen(nodes); err != nil {
		return "", err
	}
	return NewCompiler().CompileNodes(nodes)
}

// CompileNodes visits the nodes in source order and renders the
// compiled prompt, or its JSON form when @format is json.
func (c *Compiler) CompileNodes(nodes []Node) (string, error) {
	for _, node := range nodes {
		node.Accept(c)
	}
	text := c.interpolate(c.render())
	format := c.format
	if c.forcedFormat != "" {
		format = c.forcedFormat
	}
	if strings.EqualFold(format, "json") {
		return c.renderJSON(text)
	}
	return text, nil
}

func (c *Compiler) addBullet(section, item string) {
	c.sections[section] = append(c.sections[section], "- "+item)
}

func (c *Compiler) VisitCodeRequest(n *CodeRequestNode) {
	c.language = n.Language
	c.description = n.Description
}

func (c *Compiler) VisitContext(n *ContextNode) {
	c.addBullet("Context:", n.Context)
}

func (c *Compiler) VisitTest(n *TestNode) {
	c.tests = append(c.tests, n.TestCase)
}

func (c *Compiler) VisitDependency(n *DependencyNode) {
	c.addBullet("Dependencies:", n.Dependency)
}

func (c *Compiler) VisitPerformance(n *PerformanceNode) {
	c.addBullet("Performance Requirements:", n.Requirement)
}

func (c *Compiler) VisitCopyright(n *CopyrightNode) {
	c.hasCopy = true
	c.license = n.License
	c.owner = n.Owner
}

func (c *Compiler) VisitArchitecture(n *ArchitectureNode) {
	if n.IsLayered() {
		item := fmt.Sprintf("[%s] %s", n.Layer, n.Pattern)
		if n.Parameters != "" {
			item += " (" + n.Parameters + ")"
		}
		c.addBullet("Architecture Requirements:", item)
		return
	}
	c.addBullet("Architecture Requirements:", n.Pattern)
}

func (c *Compiler) VisitConstraint(n *ConstraintNode) {
	c.addBullet("Constraints:", n.Constraint)
}

func (c *Compiler) VisitExample(n *ExampleNode) {
	c.examples = append(c.examples, example{label: n.Label, code: n.Code})
}

func (c *Compiler) VisitSecurity(n *SecurityNode) {
	c.addBullet("Security Requirements:", n.Requirement)
}

func (c *Compiler) VisitComplexity(n *ComplexityNode) {
	c.addBullet("Algorithmic Complexity Requirements:", n.Complexity)
}

func (c *Compiler) VisitModel(n *ModelNode) {
	c.targetModel = n.Model
}

func (c *Compiler) VisitFormat(n *FormatNode) {
	c.format = n.Format
}

func (c *Compiler) VisitVariable(n *VariableNode) {
	c.variables[n.Name] = n.Value
}

func (c *Compiler) VisitOutputFormat(n *OutputFormatNode) {
	c.outputFormat = n.Format
	c.refreshModelParams()
}

func (c *Compiler) VisitMaxTokens(n *MaxTokensNode) {
	c.maxTokens = n.Value
	c.refreshModelParams()
}

func (c *Compiler) VisitTemperature(n *TemperatureNode) {
	c.temperature = n.Value
	c.refreshModelParams()
}

func (c *Compiler) refreshModelParams() {
	var params []string
	if c.outputFormat != "" {
		params = append(params, "- Output Format: "+c.outputFormat)
	}
	if c.maxTokens != "" {
		params = append(params, "- Max Tokens: "+c.maxTokens)
	}
	if c.temperature != "" {
		params = append(params, "- Temperature: "+c.temperature)
	}
	c.sections["Model Parameters:"] = params
}

func (c *Compiler) VisitPattern(n *PatternNode) {
	c.addBullet("Design Patterns:", n.Pattern)
}

func (c *Compiler) VisitStructure(n *StructureNode) {
	c.addBullet("File Structure:", n.Structure)
}

// render assembles the sections in their fixed order with the
// copyright preamble first and the quality footer last.
func (c *Compiler) render() string {
	var b strings.Builder

	if c.hasCopy {
		b.WriteString("Please include the following copyright header at the top of all generated files:\n")
		b.WriteString("```\n")
		b.WriteString("// " + c.license + "\n")
		b.WriteString("// Copyright (c) " + c.owner + "\n")
		b.WriteString("```\n\n")
	}

	if c.targetModel != DefaultTargetModel {
		b.WriteString("Target Model: " + c.targetModel + "\n\n")
	}

	if c.language != "" {
		b.WriteString("Please generate " + c.language + " code that:\n")
		b.WriteString(c.description + "\n\n")
	}

	for _, title := range sectionOrder {
		items := c.sections[title]
		if len(items) == 0 {
			continue
		}
		b.WriteString(title + "\n")
		for _, item := range items {
			b.WriteString(item + "\n")
		}
		b.WriteString("\n")
	}

	if len(c.examples) > 0 {
		b.WriteString("Please reference these examples:\n")
		for _, ex := range c.examples {
			b.WriteString("Example - " + ex.label + ":\n")
			b.WriteString("```\n")
			b.WriteString(ex.code + "\n")
			b.WriteString("```\n\n")
		}
	}

	if len(c.tests) > 0 {
		b.WriteString("Please include tests for the following cases:\n")
		for _, t := range c.tests {
			b.WriteString("- " + t + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(qualityFooter)
	return b.String()
}

var variableRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// interpolate replaces ${name} references with declared variable
// values in a single pass, so substituted values are never expanded
// again. Unknown references stay verbatim.
func (c *Compiler) interpolate(text string) string {
	return variableRef.ReplaceAllStringFunc(text, func(ref string) string {
		name := ref[2 : len(ref)-1]
		if value, ok := c.variables[name]; ok {
			return value
		}
		return ref
	})
}

// jsonQuery is the structured output form used when @format is json.
// MaxTokens and Temperature are pointers so a declared zero still
// appears in the output.
type jsonQuery struct {
	Query        string   `json:"query"`
	Model        string   `json:"model"`
	Format       string   `json:"format"`
	OutputFormat string   `json:"output_format,omitempty"`
	MaxTokens    *int     `json:"max_tokens,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
}

func (c *Compiler) renderJSON(text string) (string, error) {
	out := jsonQuery{
		Query:        text,
		Model:        c.targetModel,
		Format:       c.format,
		OutputFormat: c.outputFormat,
	}
	if c.maxTokens != "" {
		n, err := strconv.Atoi(c.maxTokens)
		if err != nil {
			return "", fmt.Errorf("invalid @max_tokens value %q: %w", c.maxTokens, err)
		}
		out.MaxTokens = &n
	}
	if c.temperature != "" {
		f, err := strconv.ParseFloat(c.temperature, 64)
		if err != nil {
			return "", fmt.Errorf("invalid @temperature value %q: %w", c.temperature, err)
		}
		out.Temperature = &f
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode query JSON: %w", err)
	}
	return string(data), nil
}
