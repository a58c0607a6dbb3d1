package query

import (
	"fmt"
	"strings"
)

// ParseError is a parse failure with the 1-based position of the token
// that triggered it.
type ParseError struct {
	Msg    string
	Line   int
	Column int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at line %d, column %d", e.Msg, e.Line, e.Column)
}

// Parser builds an AST from a token stream by recursive descent, one
// handler per directive.
type Parser struct {
	tokens []Token
	pos    int
}

// Parse lexes and parses query text in one step. Oversized input is
// rejected before it reaches the lexer.
func Parse(input string) ([]Node, error) {
	if err := checkQueryLength(input); err != nil {
		return nil, err
	}
	tokens, err := NewLexer(input).Tokenize()
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).ParseQuery()
}

// NewParser creates a parser over an already-lexed token stream.
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// directive handlers, keyed by the directive token type.
var handlers map[TokenType]func(*Parser, Token) (Node, error)

func init() {
	handlers = map[TokenType]func(*Parser, Token) (Node, error){
		TokenLanguage:     (*Parser).parseCodeRequest,
		TokenContext:      (*Parser).parseContext,
		TokenTest:         (*Parser).parseTest,
		TokenDependency:   (*Parser).parseDependency,
		TokenPerformance:  (*Parser).parsePerformance,
		TokenCopyright:    (*Parser).parseCopyright,
		TokenArchitecture: (*Parser).parseArchitecture,
		TokenConstraint:   (*Parser).parseConstraint,
		TokenExample:      (*Parser).parseExample,
		TokenSecurity:     (*Parser).parseSecurity,
		TokenComplexity:   (*Parser).parseComplexity,
		TokenModel:        (*Parser).parseModel,
		TokenFormat:       (*Parser).parseFormat,
		TokenVariable:     (*Parser).parseVariable,
		TokenOutputFormat: (*Parser).parseOutputFormat,
		TokenMaxTokens:    (*Parser).parseMaxTokens,
		TokenTemperature:  (*Parser).parseTemperature,
		TokenPattern:      (*Parser).parsePattern,
		TokenStructure:    (*Parser).parseStructure,
	}
}

// ParseQuery parses the whole token stream into an ordered node list.
func (p *Parser) ParseQuery() ([]Node, error) {
	var nodes []Node
	for {
		p.skipNewlines()
		tok := p.current()
		if tok.Type == TokenEnd {
			return nodes, nil
		}
		handler, ok := handlers[tok.Type]
		if !ok {
			return nil, &ParseError{
				Msg:    fmt.Sprintf("Unexpected token: %s", tok.Type),
				Line:   tok.Line,
				Column: tok.Column,
			}
		}
		p.advance()
		node, err := handler(p, tok)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
}

func (p *Parser) current() Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return Token{Type: TokenEnd}
}

func (p *Parser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

func (p *Parser) skipNewlines() {
	for p.current().Type == TokenNewline {
		p.advance()
	}
}

// parseString consumes the next string operand. Newlines before the
// string are allowed so multi-line directives read naturally.
func (p *Parser) parseString(directive string) (string, error) {
	p.skipNewlines()
	tok := p.current()
	if tok.Type != TokenString {
		return "", &ParseError{
			Msg:    fmt.Sprintf("Expected string after %s", directive),
			Line:   tok.Line,
			Column: tok.Column,
		}
	}
	p.advance()
	return tok.Value, nil
}

// parseValue consumes an identifier or string operand.
func (p *Parser) parseValue(directive string) (string, error) {
	p.skipNewlines()
	tok := p.current()
	if tok.Type != TokenIdentifier && tok.Type != TokenString {
		return "", &ParseError{
			Msg:    fmt.Sprintf("Expected value after %s", directive),
			Line:   tok.Line,
			Column: tok.Column,
		}
	}
	p.advance()
	return tok.Value, nil
}

// parseCodeRequest handles @language, which must be followed by
// @description; the pair forms a single code request node.
func (p *Parser) parseCodeRequest(tok Token) (Node, error) {
	language, err := p.parseString("@language")
	if err != nil {
		return nil, err
	}
	p.skipNewlines()
	descTok := p.current()
	if descTok.Type != TokenDescription {
		return nil, &ParseError{
			Msg:    "Expected @description after @language",
			Line:   descTok.Line,
			Column: descTok.Column,
		}
	}
	p.advance()
	description, err := p.parseString("@description")
	if err != nil {
		return nil, err
	}
	return &CodeRequestNode{
		basePos:     basePos{tok.Line, tok.Column},
		Language:    language,
		Description: description,
	}, nil
}

func (p *Parser) parseContext(tok Token) (Node, error) {
	s, err := p.parseString("@context")
	if err != nil {
		return nil, err
	}
	return &ContextNode{basePos{tok.Line, tok.Column}, s}, nil
}

func (p *Parser) parseTest(tok Token) (Node, error) {
	s, err := p.parseString("@test")
	if err != nil {
		return nil, err
	}
	return &TestNode{basePos{tok.Line, tok.Column}, s}, nil
}

func (p *Parser) parseDependency(tok Token) (Node, error) {
	s, err := p.parseString("@dependency")
	if err != nil {
		return nil, err
	}
	return &DependencyNode{basePos{tok.Line, tok.Column}, s}, nil
}

func (p *Parser) parsePerformance(tok Token) (Node, error) {
	s, err := p.parseString("@performance")
	if err != nil {
		return nil, err
	}
	return &PerformanceNode{basePos{tok.Line, tok.Column}, s}, nil
}

func (p *Parser) parseCopyright(tok Token) (Node, error) {
	license, err := p.parseString("@copyright")
	if err != nil {
		return nil, err
	}
	owner, err := p.parseString("@copyright")
	if err != nil {
		return nil, err
	}
	return &CopyrightNode{basePos{tok.Line, tok.Column}, license, owner}, nil
}

// parseArchitecture handles both forms: the layered form when the next
// token is a recognized layer identifier, otherwise the legacy
// single-string form.
func (p *Parser) parseArchitecture(tok Token) (Node, error) {
	p.skipNewlines()
	next := p.current()
	if next.Type == TokenIdentifier {
		layer := ArchitectureLayer(strings.ToLower(next.Value))
		switch layer {
		case LayerFoundation, LayerComponent, LayerInteraction:
			p.advance()
			pattern, err := p.parseString("@architecture")
			if err != nil {
				return nil, err
			}
			node := &ArchitectureNode{
				basePos: basePos{tok.Line, tok.Column},
				Layer:   layer,
				Pattern: pattern,
			}
			// Optional parameters string on the same directive.
			if p.current().Type == TokenString {
				node.Parameters = p.current().Value
				p.advance()
			}
			return node, nil
		}
	}
	pattern, err := p.parseString("@architecture")
	if err != nil {
		return nil, err
	}
	return &ArchitectureNode{
		basePos: basePos{tok.Line, tok.Column},
		Pattern: pattern,
	}, nil
}

func (p *Parser) parseConstraint(tok Token) (Node, error) {
	s, err := p.parseString("@constraint")
	if err != nil {
		return nil, err
	}
	return &ConstraintNode{basePos{tok.Line, tok.Column}, s}, nil
}

func (p *Parser) parseExample(tok Token) (Node, error) {
	label, err := p.parseString("@example")
	if err != nil {
		return nil, err
	}
	code, err := p.parseString("@example")
	if err != nil {
		return nil, err
	}
	return &ExampleNode{basePos{tok.Line, tok.Column}, label, code}, nil
}

func (p *Parser) parseSecurity(tok Token) (Node, error) {
	s, err := p.parseString("@security")
	if err != nil {
		return nil, err
	}
	return &SecurityNode{basePos{tok.Line, tok.Column}, s}, nil
}

func (p *Parser) parseComplexity(tok Token) (Node, error) {
	s, err := p.parseString("@complexity")
	if err != nil {
		return nil, err
	}
	return &ComplexityNode{basePos{tok.Line, tok.Column}, s}, nil
}

func (p *Parser) parseModel(tok Token) (Node, error) {
	s, err := p.parseValue("@model")
	if err != nil {
		return nil, err
	}
	return &ModelNode{basePos{tok.Line, tok.Column}, s}, nil
}

func (p *Parser) parseFormat(tok Token) (Node, error) {
	s, err := p.parseValue("@format")
	if err != nil {
		return nil, err
	}
	return &FormatNode{basePos{tok.Line, tok.Column}, s}, nil
}

func (p *Parser) parseVariable(tok Token) (Node, error) {
	name, err := p.parseString("@variable")
	if err != nil {
		return nil, err
	}
	value, err := p.parseString("@variable")
	if err != nil {
		return nil, err
	}
	return &VariableNode{basePos{tok.Line, tok.Column}, name, value}, nil
}

func (p *Parser) parseOutputFormat(tok Token) (Node, error) {
	s, err := p.parseValue("@output_format")
	if err != nil {
		return nil, err
	}
	return &OutputFormatNode{basePos{tok.Line, tok.Column}, s}, nil
}

func (p *Parser) parseMaxTokens(tok Token) (Node, error) {
	s, err := p.parseValue("@max_tokens")
	if err != nil {
		return nil, err
	}
	return &MaxTokensNode{basePos{tok.Line, tok.Column}, s}, nil
}

func (p *Parser) parseTemperature(tok Token) (Node, error) {
	s, err := p.parseValue("@temperature")
	if err != nil {
		return nil, err
	}
	return &TemperatureNode{basePos{tok.Line, tok.Column}, s}, nil
}

func (p *Parser) parsePattern(tok Token) (Node, error) {
	s, err := p.parseString("@pattern")
	if err != nil {
		return nil, err
	}
	return &PatternNode{basePos{tok.Line, tok.Column}, s}, nil
}

func (p *Parser) parseStructure(tok Token) (Node, error) {
	s, err := p.parseString("@structure")
	if err != nil {
		return nil, err
	}
	return &StructureNode{basePos{tok.Line, tok.Column}, s}, nil
}
