package template

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dbjwhs/cql-sub000/internal/security"
)

// Extension is appended to template files on disk.
const Extension = ".llm"

// Well-known categories. user/ is the default save target, common/
// ships curated templates.
const (
	CategoryCommon = "common"
	CategoryUser   = "user"
)

var (
	ErrNotFound    = errors.New("template not found")
	ErrInvalidName = errors.New("invalid template name")
)

// Store manages the on-disk template library. Templates are addressed
// as "name" or "category/name"; the extension is optional.
type Store struct {
	baseDir string
}

// DefaultDir returns the template directory used when none is
// configured: ~/.cql/templates, falling back to ./cql_templates when
// the home directory is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "cql_templates"
	}
	return filepath.Join(home, ".cql", "templates")
}

// NewStore opens a store rooted at dir, creating and repairing the
// directory layout as needed. An empty dir selects DefaultDir.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	s := &Store{baseDir: dir}
	if err := s.Repair(); err != nil {
		return nil, err
	}
	return s, nil
}

// BaseDir returns the store's root directory.
func (s *Store) BaseDir() string { return s.baseDir }

// Validate checks the directory layout without modifying it.
func (s *Store) Validate() error {
	info, err := os.Stat(s.baseDir)
	if err != nil {
		return fmt.Errorf("template directory does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("template path %s is not a directory", s.baseDir)
	}
	// Writability probe.
	probe := filepath.Join(s.baseDir, ".write_test")
	if err := os.WriteFile(probe, []byte{}, 0644); err != nil {
		return fmt.Errorf("template directory is not writable: %w", err)
	}
	os.Remove(probe)
	for _, cat := range []string{CategoryCommon, CategoryUser} {
		if info, err := os.Stat(filepath.Join(s.baseDir, cat)); err != nil || !info.IsDir() {
			return fmt.Errorf("missing template category directory: %s", cat)
		}
	}
	return nil
}

// Repair creates any missing pieces of the directory layout.
func (s *Store) Repair() error {
	for _, dir := range []string{
		s.baseDir,
		filepath.Join(s.baseDir, CategoryCommon),
		filepath.Join(s.baseDir, CategoryUser),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create template directory %s: %w", dir, err)
		}
	}
	return nil
}

// normalize splits a template reference into a relative path with the
// extension applied. Bare names get no category here; callers decide.
func normalize(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, "/") || strings.HasPrefix(name, "\\") {
		return "", fmt.Errorf("%w: %s", ErrInvalidName, name)
	}
	if !strings.HasSuffix(name, Extension) {
		name += Extension
	}
	for _, segment := range strings.Split(name, "/") {
		if err := security.ValidateFilename(segment); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidName, err)
		}
	}
	return filepath.FromSlash(name), nil
}

// Save writes template content. "category/name" saves into that
// category, creating it; a bare name saves into user/.
func (s *Store) Save(name, content string) error {
	rel, err := normalize(name)
	if err != nil {
		return err
	}
	if !strings.ContainsRune(rel, filepath.Separator) {
		rel = filepath.Join(CategoryUser, rel)
	}
	path := filepath.Join(s.baseDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create category directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to save template %s: %w", name, err)
	}
	return nil
}

// resolve finds the on-disk path for a template reference. Bare names
// are searched in user/ first, then common/, then the store root.
func (s *Store) resolve(name string) (string, error) {
	rel, err := normalize(name)
	if err != nil {
		return "", err
	}
	var candidates []string
	if strings.ContainsRune(rel, filepath.Separator) {
		candidates = []string{filepath.Join(s.baseDir, rel)}
	} else {
		candidates = []string{
			filepath.Join(s.baseDir, CategoryUser, rel),
			filepath.Join(s.baseDir, CategoryCommon, rel),
			filepath.Join(s.baseDir, rel),
		}
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Load returns a template's raw content without inheritance applied.
func (s *Store) Load(name string) (string, error) {
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", name, err)
	}
	return string(data), nil
}

// Exists reports whether the template resolves.
func (s *Store) Exists(name string) bool {
	_, err := s.resolve(name)
	return err == nil
}

// Delete removes a template.
func (s *Store) Delete(name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete template %s: %w", name, err)
	}
	return nil
}

// List returns all template references, common/ first, then user/,
// then any other categories, each group sorted by name.
func (s *Store) List() ([]string, error) {
	var names []string
	err := filepath.Walk(s.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, Extension) {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(strings.TrimSuffix(rel, Extension)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := categoryRank(names[i]), categoryRank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
	return names, nil
}

func categoryRank(name string) int {
	switch {
	case strings.HasPrefix(name, CategoryCommon+"/"):
		return 0
	case strings.HasPrefix(name, CategoryUser+"/"):
		return 1
	default:
		return 2
	}
}

// Metadata summarizes a stored template.
type Metadata struct {
	Name         string
	Description  string
	Variables    []string
	Parent       string
	Example      string
	LastModified time.Time
}

var (
	descriptionRe = regexp.MustCompile(`@description\s+"([^"]*)"`)
	variableRe    = regexp.MustCompile(`@variable\s+"([^"]*)"\s+"([^"]*)"`)
	inheritRe     = regexp.MustCompile(`@inherit\s+"([^"]*)"`)
	exampleRe     = regexp.MustCompile(`@example\s+"[^"]*"\s+"([^"]*)"`)
	referenceRe   = regexp.MustCompile(`\$\{([^}]+)\}`)
)

// GetMetadata extracts a template's description, declared variables,
// parent and example without fully parsing it.
func (s *Store) GetMetadata(name string) (*Metadata, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", name, err)
	}
	content := string(data)

	meta := &Metadata{Name: name}
	if info, err := os.Stat(path); err == nil {
		meta.LastModified = info.ModTime()
	}
	meta.Description = extractDescription(content)
	for _, m := range variableRe.FindAllStringSubmatch(content, -1) {
		meta.Variables = append(meta.Variables, m[1])
	}
	if m := inheritRe.FindStringSubmatch(content); m != nil {
		meta.Parent = m[1]
	}
	if m := exampleRe.FindStringSubmatch(content); m != nil {
		meta.Example = m[1]
	} else {
		meta.Example = "No example available"
	}
	return meta, nil
}

func extractDescription(content string) string {
	if m := descriptionRe.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return "No description available"
}
