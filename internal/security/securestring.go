package security

import "os"

// SecureString holds sensitive material such as API keys. The value
// never appears in logs; use Masked for display and Zero when done.
type SecureString struct {
	data []byte
}

// NewSecureString copies the value into a SecureString.
func NewSecureString(value string) *SecureString {
	return &SecureString{data: []byte(value)}
}

// SecureFromEnv reads an environment variable into a SecureString.
// The second return is false when the variable is unset or empty.
func SecureFromEnv(name string) (*SecureString, bool) {
	value := os.Getenv(name)
	if value == "" {
		return NewSecureString(""), false
	}
	return NewSecureString(value), true
}

// Value returns the held secret. Callers must not log it.
func (s *SecureString) Value() string {
	if s == nil {
		return ""
	}
	return string(s.data)
}

// Len returns the secret's length.
func (s *SecureString) Len() int {
	if s == nil {
		return 0
	}
	return len(s.data)
}

// Empty reports whether no secret is held.
func (s *SecureString) Empty() bool { return s.Len() == 0 }

// Masked renders the secret for display: "[empty]" when unset,
// "[***]" when too short to partially reveal, otherwise the first and
// last three characters around an ellipsis.
func (s *SecureString) Masked() string {
	switch {
	case s.Len() == 0:
		return "[empty]"
	case s.Len() <= 6:
		return "[***]"
	default:
		return string(s.data[:3]) + "..." + string(s.data[len(s.data)-3:])
	}
}

// Zero overwrites the held secret.
func (s *SecureString) Zero() {
	if s == nil {
		return
	}
	for i := range s.data {
		s.data[i] = 0
	}
	s.data = s.data[:0]
}
