package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultPrefix = "cql-audit"

// Record is one audit trail entry, appended as a JSONL line to the
// day's file.
type Record struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Event     string         `json:"event"`
	QueryHash string         `json:"query_hash,omitempty"`
	Mode      string         `json:"mode,omitempty"`
	Goal      string         `json:"goal,omitempty"`
	Model     string         `json:"model,omitempty"`
	CacheHit  bool           `json:"cache_hit,omitempty"`
	UsedLLM   bool           `json:"used_llm,omitempty"`
	Cost      float64        `json:"cost,omitempty"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Trail appends audit records to per-day JSONL files and prunes files
// past the retention window.
type Trail struct {
	dir           string
	prefix        string
	retentionDays int
	enabled       bool
	mu            sync.Mutex
}

// NewTrail creates an audit trail rooted at dir. A retention of zero
// or less disables pruning; an empty dir disables the trail entirely.
func NewTrail(dir string, retentionDays int) *Trail {
	return &Trail{
		dir:           dir,
		prefix:        defaultPrefix,
		retentionDays: retentionDays,
		enabled:       dir != "",
	}
}

// Enabled reports whether records are being written.
func (t *Trail) Enabled() bool { return t.enabled }

// Write appends one record. A missing ID or timestamp is filled in.
func (t *Trail) Write(record Record) error {
	if !t.enabled {
		return nil
	}

	now := time.Now()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp == "" {
		record.Timestamp = now.Format(time.RFC3339)
	}

	if err := os.MkdirAll(t.dir, 0755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	path := filepath.Join(t.dir, fmt.Sprintf("%s-%s.jsonl", t.prefix, now.Format("2006-01-02")))
	if err := appendLine(path, line); err != nil {
		return err
	}
	return t.cleanupWithNow(now)
}

func appendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write audit file: %w", err)
	}
	return nil
}

// Cleanup removes audit files older than the retention window.
func (t *Trail) Cleanup() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cleanupWithNow(time.Now())
}

func (t *Trail) cleanupWithNow(now time.Time) error {
	if !t.enabled || t.retentionDays <= 0 {
		return nil
	}

	entries, err := os.ReadDir(t.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("list audit dir: %w", err)
	}

	cutoff := now.AddDate(0, 0, -t.retentionDays)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, t.prefix+"-") || !strings.HasSuffix(name, ".jsonl") {
			continue
		}

		path := filepath.Join(t.dir, name)
		fileDate, ok := parseFileDate(name, t.prefix)
		if ok {
			if fileDate.Before(startOfDay(cutoff)) {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("remove old audit file %s: %w", path, err)
				}
			}
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat audit file %s: %w", path, err)
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove old audit file %s: %w", path, err)
			}
		}
	}
	return nil
}

// ReadDay loads the records written on one date (YYYY-MM-DD).
func (t *Trail) ReadDay(date string) ([]Record, error) {
	path := filepath.Join(t.dir, fmt.Sprintf("%s-%s.jsonl", t.prefix, date))
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record Record
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, fmt.Errorf("parse audit record: %w", err)
		}
		records = append(records, record)
	}
	return records, scanner.Err()
}

func parseFileDate(filename, prefix string) (time.Time, bool) {
	raw := strings.TrimSuffix(filename, ".jsonl")
	raw = strings.TrimPrefix(raw, prefix+"-")
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
