package query

import "fmt"

// LexError is a lexing failure with the 1-based source position where
// it was detected.
type LexError struct {
	Msg    string
	Line   int
	Column int
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%s at line %d, column %d", e.Msg, e.Line, e.Column)
}

// Lexer turns query text into a token stream.
type Lexer struct {
	input  string
	pos    int
	line   int
	column int
}

// NewLexer creates a lexer over the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1, column: 1}
}

// Tokenize consumes the whole input and returns the token stream,
// terminated by an END token.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEnd {
			return tokens, nil
		}
	}
}

// next returns the next token in the input.
func (l *Lexer) next() (Token, error) {
	if err := l.skipBlanks(); err != nil {
		return Token{}, err
	}
	if l.pos >= len(l.input) {
		return Token{Type: TokenEnd, Line: l.line, Column: l.column}, nil
	}

	startLine, startCol := l.line, l.column
	switch c := l.input[l.pos]; {
	case c == '\n':
		l.advance()
		return Token{Type: TokenNewline, Value: "\n", Line: startLine, Column: startCol}, nil
	case c == '@':
		return l.lexKeyword()
	case c == '"':
		return l.lexString()
	default:
		return l.lexIdentifier()
	}
}

// skipBlanks skips spaces, tabs, carriage returns and comments. It
// stops before newlines, which are significant.
func (l *Lexer) skipBlanks() error {
	for l.pos < len(l.input) {
		switch c := l.input[l.pos]; {
		case c == ' ' || c == '\t' || c == '\r':
			l.advance()
		case c == '#':
			l.skipLineComment()
		case c == '/' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '/':
			l.skipLineComment()
		case c == '/' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '*':
			if err := l.skipBlockComment(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

func (l *Lexer) skipLineComment() {
	for l.pos < len(l.input) && l.input[l.pos] != '\n' {
		l.advance()
	}
}

func (l *Lexer) skipBlockComment() error {
	startLine, startCol := l.line, l.column
	l.advance() // '/'
	l.advance() // '*'
	for l.pos < len(l.input) {
		if l.input[l.pos] == '*' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '/' {
			l.advance()
			l.advance()
			return nil
		}
		l.advance()
	}
	return &LexError{Msg: "Unterminated block comment", Line: startLine, Column: startCol}
}

func (l *Lexer) lexKeyword() (Token, error) {
	startLine, startCol := l.line, l.column
	l.advance() // '@'
	start := l.pos
	for l.pos < len(l.input) && isKeywordChar(l.input[l.pos]) {
		l.advance()
	}
	word := l.input[start:l.pos]
	typ, ok := keywords[word]
	if !ok {
		return Token{}, &LexError{
			Msg:    fmt.Sprintf("Unknown keyword: @%s", word),
			Line:   startLine,
			Column: startCol,
		}
	}
	l.skipTrailing()
	return Token{Type: typ, Value: "@" + word, Line: startLine, Column: startCol}, nil
}

func (l *Lexer) lexString() (Token, error) {
	startLine, startCol := l.line, l.column
	l.advance() // opening quote
	var buf []byte
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch c {
		case '"':
			l.advance()
			l.skipTrailing()
			return Token{Type: TokenString, Value: string(buf), Line: startLine, Column: startCol}, nil
		case '\\':
			if l.pos+1 >= len(l.input) {
				return Token{}, &LexError{Msg: "Unterminated string", Line: startLine, Column: startCol}
			}
			l.advance()
			esc := l.input[l.pos]
			switch esc {
			case 'n':
				buf = append(buf, '\n')
			case 't':
				buf = append(buf, '\t')
			case '"':
				buf = append(buf, '"')
			case '\\':
				buf = append(buf, '\\')
			default:
				return Token{}, &LexError{
					Msg:    fmt.Sprintf("Unknown escape sequence: \\%c", esc),
					Line:   l.line,
					Column: l.column - 1,
				}
			}
			l.advance()
		default:
			buf = append(buf, c)
			l.advance()
		}
	}
	return Token{}, &LexError{Msg: "Unterminated string", Line: startLine, Column: startCol}
}

func (l *Lexer) lexIdentifier() (Token, error) {
	startLine, startCol := l.line, l.column
	start := l.pos
	for l.pos < len(l.input) && !isIdentifierEnd(l) {
		l.advance()
	}
	word := l.input[start:l.pos]
	l.skipTrailing()
	return Token{Type: TokenIdentifier, Value: word, Line: startLine, Column: startCol}, nil
}

// skipTrailing consumes spaces and tabs after a token so that a
// following newline is the very next token.
func (l *Lexer) skipTrailing() {
	for l.pos < len(l.input) && (l.input[l.pos] == ' ' || l.input[l.pos] == '\t' || l.input[l.pos] == '\r') {
		l.advance()
	}
}

func (l *Lexer) advance() {
	if l.pos < len(l.input) {
		if l.input[l.pos] == '\n' {
			l.line++
			l.column = 1
		} else {
			l.column++
		}
		l.pos++
	}
}

func isKeywordChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// isIdentifierEnd reports whether the current position terminates an
// identifier: whitespace, a directive, or the start of a comment.
func isIdentifierEnd(l *Lexer) bool {
	c := l.input[l.pos]
	if c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '@' || c == '#' || c == '"' {
		return true
	}
	if c == '/' && l.pos+1 < len(l.input) && (l.input[l.pos+1] == '/' || l.input[l.pos+1] == '*') {
		return true
	}
	return false
}
