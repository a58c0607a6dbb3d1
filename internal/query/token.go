package query

import "fmt"

// TokenType identifies the lexical class of a token.
type TokenType int

const (
	TokenLanguage TokenType = iota
	TokenDescription
	TokenContext
	TokenTest
	TokenDependency
	TokenPerformance
	TokenCopyright
	TokenArchitecture
	TokenConstraint
	TokenExample
	TokenSecurity
	TokenComplexity
	TokenModel
	TokenFormat
	TokenVariable
	TokenOutputFormat
	TokenMaxTokens
	TokenTemperature
	TokenPattern
	TokenStructure
	TokenIdentifier
	TokenString
	TokenNewline
	TokenEnd
)

var tokenNames = map[TokenType]string{
	TokenLanguage:     "LANGUAGE",
	TokenDescription:  "DESCRIPTION",
	TokenContext:      "CONTEXT",
	TokenTest:         "TEST",
	TokenDependency:   "DEPENDENCY",
	TokenPerformance:  "PERFORMANCE",
	TokenCopyright:    "COPYRIGHT",
	TokenArchitecture: "ARCHITECTURE",
	TokenConstraint:   "CONSTRAINT",
	TokenExample:      "EXAMPLE",
	TokenSecurity:     "SECURITY",
	TokenComplexity:   "COMPLEXITY",
	TokenModel:        "MODEL",
	TokenFormat:       "FORMAT",
	TokenVariable:     "VARIABLE",
	TokenOutputFormat: "OUTPUT_FORMAT",
	TokenMaxTokens:    "MAX_TOKENS",
	TokenTemperature:  "TEMPERATURE",
	TokenPattern:      "PATTERN",
	TokenStructure:    "STRUCTURE",
	TokenIdentifier:   "IDENTIFIER",
	TokenString:       "STRING",
	TokenNewline:      "NEWLINE",
	TokenEnd:          "END",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// keywords maps directive names (without the leading @) to token types.
var keywords = map[string]TokenType{
	"language":      TokenLanguage,
	"description":   TokenDescription,
	"context":       TokenContext,
	"test":          TokenTest,
	"dependency":    TokenDependency,
	"performance":   TokenPerformance,
	"copyright":     TokenCopyright,
	"architecture":  TokenArchitecture,
	"constraint":    TokenConstraint,
	"example":       TokenExample,
	"security":      TokenSecurity,
	"complexity":    TokenComplexity,
	"model":         TokenModel,
	"format":        TokenFormat,
	"variable":      TokenVariable,
	"output_format": TokenOutputFormat,
	"max_tokens":    TokenMaxTokens,
	"temperature":   TokenTemperature,
	"pattern":       TokenPattern,
	"structure":     TokenStructure,
}

// Token is a single lexical unit with its source position.
// Line and Column are 1-based.
type Token struct {
	Type   TokenType
	Value  string
	Line   int
	Column int
}

func (t Token) String() string {
	return fmt.Sprintf("%s %q at %d:%d", t.Type, t.Value, t.Line, t.Column)
}
