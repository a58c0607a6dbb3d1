package query

import (
	"errors"
	"strings"
	"testing"
)

func TestTokenizeDirectives(t *testing.T) {
	input := "@language \"C++\"\n@description \"implement a thread-safe queue\"\n"
	tokens, err := NewLexer(input).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}

	want := []TokenType{
		TokenLanguage, TokenString, TokenNewline,
		TokenDescription, TokenString, TokenNewline,
		TokenEnd,
	}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(tokens), len(want), tokens)
	}
	for i, typ := range want {
		if tokens[i].Type != typ {
			t.Errorf("token %d: got %s, want %s", i, tokens[i].Type, typ)
		}
	}
	if tokens[1].Value != "C++" {
		t.Errorf("language string: got %q", tokens[1].Value)
	}
}

func TestTokenizeEscapes(t *testing.T) {
	tokens, err := NewLexer(`@context "line1\nline2\t\"quoted\"\\"`).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	got := tokens[1].Value
	want := "line1\nline2\t\"quoted\"\\"
	if got != want {
		t.Errorf("escaped string: got %q, want %q", got, want)
	}
}

func TestTokenizeUnknownEscape(t *testing.T) {
	_, err := NewLexer(`@context "bad \x escape"`).Tokenize()
	if err == nil {
		t.Fatal("expected error for unknown escape sequence")
	}
	if !strings.Contains(err.Error(), `\x`) {
		t.Errorf("error should name the escape: %v", err)
	}
}

func TestTokenizeUnterminatedString(t *testing.T) {
	_, err := NewLexer("@context \"no closing quote\n").Tokenize()
	if err == nil {
		t.Fatal("expected error for unterminated string")
	}
	var lexErr *LexError
	if !errors.As(err, &lexErr) {
		t.Fatalf("expected *LexError, got %T", err)
	}
	// Reported at the opening quote.
	if lexErr.Line != 1 || lexErr.Column != 10 {
		t.Errorf("position: got %d:%d, want 1:10", lexErr.Line, lexErr.Column)
	}
}

func TestTokenizeComments(t *testing.T) {
	input := "# file header\n@language \"Go\" // trailing\n/* block\ncomment */@description \"x\"\n"
	tokens, err := NewLexer(input).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	for _, tok := range tokens {
		if strings.Contains(tok.Value, "comment") || strings.Contains(tok.Value, "header") {
			t.Errorf("comment text leaked into token %v", tok)
		}
	}
}

func TestTokenizeUnknownKeyword(t *testing.T) {
	_, err := NewLexer("@nonsense \"x\"").Tokenize()
	if err == nil {
		t.Fatal("expected error for unknown keyword")
	}
	if !strings.Contains(err.Error(), "@nonsense") {
		t.Errorf("error should name the keyword: %v", err)
	}
}

func TestTokenizePositions(t *testing.T) {
	tokens, err := NewLexer("@language \"Go\"\n  @description \"x\"").Tokenize()
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	if tokens[0].Line != 1 || tokens[0].Column != 1 {
		t.Errorf("@language position: got %d:%d", tokens[0].Line, tokens[0].Column)
	}
	// @description sits after two spaces on line 2.
	desc := tokens[3]
	if desc.Type != TokenDescription {
		t.Fatalf("token 3: got %s", desc.Type)
	}
	if desc.Line != 2 || desc.Column != 3 {
		t.Errorf("@description position: got %d:%d, want 2:3", desc.Line, desc.Column)
	}
}
