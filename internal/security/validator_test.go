package security

import (
	"strings"
	"testing"
)

func TestValidateFilePath(t *testing.T) {
	tests := []struct {
		path string
		ok   bool
	}{
		{"queries/example.llm", true},
		{"/tmp/out.txt", true},
		{"/var/tmp/out.txt", true},
		{"", false},
		{"../escape.llm", false},
		{"..%2fescape", false},
		{"%2e%2e%2fescape", false},
		{"/etc/passwd", false},
		{"C:\\windows\\system32", false},
		{"dir/./file", false},
		{strings.Repeat("a", MaxPathLength+1), false},
	}
	for _, tc := range tests {
		err := ValidateFilePath(tc.path)
		if tc.ok && err != nil {
			t.Errorf("ValidateFilePath(%q) = %v, want nil", tc.path, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("ValidateFilePath(%q) = nil, want error", tc.path)
		}
	}
}

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"query.llm", true},
		{"has space.llm", true},
		{"", false},
		{"bad<name>.llm", false},
		{"pipe|name", false},
		{"CON", false},
		{"con.llm", false},
		{"COM7.txt", false},
		{"LPT1.", false},
		{"console.llm", true},
		{strings.Repeat("x", MaxFilenameLength+1), false},
	}
	for _, tc := range tests {
		err := ValidateFilename(tc.name)
		if tc.ok && err != nil {
			t.Errorf("ValidateFilename(%q) = %v, want nil", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("ValidateFilename(%q) = nil, want error", tc.name)
		}
	}
}

func TestValidateDirectiveContent(t *testing.T) {
	good := []string{
		"implement a thread-safe queue",
		"support HTTP and gRPC transports",
	}
	for _, content := range good {
		if err := ValidateDirectiveContent(content); err != nil {
			t.Errorf("ValidateDirectiveContent(%q) = %v, want nil", content, err)
		}
	}

	bad := []string{
		"nice try; rm -rf /",
		"a && b",
		"use `backticks`",
		"1' or '1'='1",
		"x union select password",
		"drop me -- comment",
		"null\x00byte",
		strings.Repeat("a", MaxContentLength+1),
	}
	for _, content := range bad {
		if err := ValidateDirectiveContent(content); err == nil {
			t.Errorf("ValidateDirectiveContent(%q) = nil, want error", SanitizeForLogging(content))
		}
	}
}

func TestValidateAPIKey(t *testing.T) {
	if err := ValidateAPIKey("sk-ant-0123456789_ABC-def"); err != nil {
		t.Errorf("valid key rejected: %v", err)
	}
	for _, key := range []string{"", "short", "has spaces in it fine", "bad!chars#here$now", strings.Repeat("k", MaxAPIKeyLength+1)} {
		if err := ValidateAPIKey(key); err == nil {
			t.Errorf("ValidateAPIKey(%q) = nil, want error", key)
		}
	}
}

func TestValidateAPIKeyErrorNeverLeaksKey(t *testing.T) {
	secret := "super$ecret!keymaterial"
	err := ValidateAPIKey(secret)
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), "super") {
		t.Errorf("error leaks key material: %v", err)
	}
}

func TestValidateURL(t *testing.T) {
	if err := ValidateURL("https://api.anthropic.com/v1/messages"); err != nil {
		t.Errorf("valid URL rejected: %v", err)
	}
	for _, raw := range []string{
		"",
		"http://api.anthropic.com",
		"https://localhost/x",
		"https://a.b/with space",
		"https://a.b/<script>",
	} {
		if err := ValidateURL(raw); err == nil {
			t.Errorf("ValidateURL(%q) = nil, want error", raw)
		}
	}
}

func TestSanitizeForLogging(t *testing.T) {
	in := "line1\nline2\ttabbed\x00null"
	out := SanitizeForLogging(in)
	if strings.ContainsAny(out, "\n\t\x00") {
		t.Errorf("control characters survived: %q", out)
	}

	ansi := "red\x1b[31malert\x1b[0m\x07"
	out = SanitizeForLogging(ansi)
	if strings.ContainsAny(out, "\x1b\x07") {
		t.Errorf("terminal escape characters survived: %q", out)
	}

	long := strings.Repeat("a", 150)
	out = SanitizeForLogging(long)
	if len(out) != 100 || !strings.HasSuffix(out, "...") {
		t.Errorf("long input not truncated to 100 with ellipsis: %d %q", len(out), out)
	}
}
