package security

import "testing"

func TestSecureStringMasked(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"", "[empty]"},
		{"abc", "[***]"},
		{"abcdef", "[***]"},
		{"abcdefg", "abc...efg"},
		{"sk-ant-api-0123456789", "sk-...789"},
	}
	for _, tc := range tests {
		if got := NewSecureString(tc.value).Masked(); got != tc.want {
			t.Errorf("Masked(%q) = %q, want %q", tc.value, got, tc.want)
		}
	}
}

func TestSecureStringZero(t *testing.T) {
	s := NewSecureString("secret-material")
	s.Zero()
	if !s.Empty() {
		t.Error("Zero should empty the value")
	}
	if s.Masked() != "[empty]" {
		t.Errorf("Masked after Zero: %q", s.Masked())
	}
}

func TestSecureFromEnv(t *testing.T) {
	t.Setenv("CQL_TEST_KEY", "0123456789abc")
	s, ok := SecureFromEnv("CQL_TEST_KEY")
	if !ok || s.Value() != "0123456789abc" {
		t.Errorf("SecureFromEnv: ok=%v value=%q", ok, s.Value())
	}

	if _, ok := SecureFromEnv("CQL_TEST_KEY_UNSET"); ok {
		t.Error("unset variable should report false")
	}
}

func TestMatchPatternCaseInsensitive(t *testing.T) {
	patterns := NormalizePatterns([]string{"Custom Bad"}, ShellInjectionPatterns)
	if _, ok := MatchPattern("run CUSTOM bad things", patterns); !ok {
		t.Error("configured pattern should match case-insensitively")
	}
	if p, ok := MatchPattern("innocent text", patterns); ok {
		t.Errorf("unexpected match: %q", p)
	}
}
