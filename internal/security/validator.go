package security

import (
	"fmt"
	"strings"
	"unicode"
)

// Validation limits for untrusted input.
const (
	MaxPathLength     = 4096
	MaxFilenameLength = 255
	MaxContentLength  = 100000
	MinAPIKeyLength   = 10
	MaxAPIKeyLength   = 256
)

// windowsReservedNames may not be used as filenames on Windows, with
// or without an extension.
var windowsReservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// ValidateFilePath rejects paths that are empty, oversized, traverse
// upward, reach into system locations, or use Windows drive letters.
func ValidateFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("file path is empty")
	}
	if len(path) > MaxPathLength {
		return fmt.Errorf("file path exceeds maximum length of %d", MaxPathLength)
	}
	if pattern, ok := MatchPattern(path, PathTraversalPatterns); ok {
		return fmt.Errorf("file path contains traversal pattern %q", pattern)
	}
	if strings.HasPrefix(path, "/") &&
		!strings.HasPrefix(path, "/tmp/") &&
		!strings.HasPrefix(path, "/var/tmp/") {
		return fmt.Errorf("absolute path outside temporary directories: %s", path)
	}
	if len(path) >= 2 && path[1] == ':' &&
		((path[0] >= 'A' && path[0] <= 'Z') || (path[0] >= 'a' && path[0] <= 'z')) {
		return fmt.Errorf("drive letter paths are not allowed: %s", path)
	}
	for _, component := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if component == "." || component == ".." {
			return fmt.Errorf("file path contains relative component %q", component)
		}
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("file path contains a null byte")
	}
	return nil
}

// ValidateFilename rejects names that are empty, oversized, carry
// characters unsafe on common filesystems, or collide with Windows
// reserved device names.
func ValidateFilename(name string) error {
	if name == "" {
		return fmt.Errorf("filename is empty")
	}
	if len(name) > MaxFilenameLength {
		return fmt.Errorf("filename exceeds maximum length of %d", MaxFilenameLength)
	}
	if strings.ContainsAny(name, "<>:\"|?*\x00/\\") {
		return fmt.Errorf("filename contains forbidden characters: %s", name)
	}
	base := strings.ToUpper(name)
	if idx := strings.IndexByte(base, '.'); idx >= 0 {
		base = base[:idx]
	}
	if windowsReservedNames[base] {
		return fmt.Errorf("filename is a reserved device name: %s", name)
	}
	return nil
}

// ValidateDirectiveContent rejects oversized content and anything
// matching the shell or SQL injection tables.
func ValidateDirectiveContent(content string) error {
	if len(content) > MaxContentLength {
		return fmt.Errorf("directive content exceeds maximum length of %d", MaxContentLength)
	}
	if strings.ContainsRune(content, 0) {
		return fmt.Errorf("directive content contains a null byte")
	}
	if pattern, ok := MatchPattern(content, ShellInjectionPatterns); ok {
		return fmt.Errorf("directive content matches shell injection pattern %q", pattern)
	}
	if pattern, ok := MatchPattern(content, SQLInjectionPatterns); ok {
		return fmt.Errorf("directive content matches SQL injection pattern %q", pattern)
	}
	return nil
}

// ValidateAPIKey checks length and character set. Key material is
// never included in the returned error.
func ValidateAPIKey(key string) error {
	if len(key) < MinAPIKeyLength {
		return fmt.Errorf("API key is too short (minimum %d characters)", MinAPIKeyLength)
	}
	if len(key) > MaxAPIKeyLength {
		return fmt.Errorf("API key is too long (maximum %d characters)", MaxAPIKeyLength)
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return fmt.Errorf("API key contains invalid characters")
		}
	}
	return nil
}

// ValidateURL allows only https URLs without embedded whitespace or
// markup characters, and requires a dotted host.
func ValidateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("URL is empty")
	}
	if !strings.HasPrefix(strings.ToLower(raw), "https://") {
		return fmt.Errorf("only https URLs are allowed: %s", raw)
	}
	if strings.ContainsAny(raw, " <>\"'{}|\\^`") {
		return fmt.Errorf("URL contains forbidden characters: %s", raw)
	}
	host := strings.TrimPrefix(strings.ToLower(raw), "https://")
	if idx := strings.IndexAny(host, "/?#"); idx >= 0 {
		host = host[:idx]
	}
	if !strings.Contains(host, ".") {
		return fmt.Errorf("URL host is not a domain: %s", raw)
	}
	return nil
}

// SanitizeForLogging truncates long values and flattens control
// characters so untrusted input can be logged safely.
func SanitizeForLogging(input string) string {
	var b strings.Builder
	for _, r := range input {
		switch {
		case r == 0:
			// dropped
		case unicode.IsControl(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > 100 {
		return s[:97] + "..."
	}
	return s
}
