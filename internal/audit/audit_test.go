package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteAndReadDay(t *testing.T) {
	dir := t.TempDir()
	trail := NewTrail(dir, 7)

	for i := 0; i < 3; i++ {
		err := trail.Write(Record{
			Event:     "compile",
			QueryHash: fmt.Sprintf("hash-%d", i),
			Mode:      "cached_llm",
			Success:   true,
		})
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	today := time.Now().Format("2006-01-02")
	records, err := trail.ReadDay(today)
	if err != nil {
		t.Fatalf("ReadDay: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	for i, r := range records {
		if r.ID == "" || r.Timestamp == "" {
			t.Errorf("record %d missing id or timestamp: %+v", i, r)
		}
		if r.QueryHash != fmt.Sprintf("hash-%d", i) {
			t.Errorf("record %d out of order: %+v", i, r)
		}
	}
}

func TestReadDayMissingFile(t *testing.T) {
	trail := NewTrail(t.TempDir(), 7)
	records, err := trail.ReadDay("2000-01-01")
	if err != nil || records != nil {
		t.Errorf("missing day should be empty: %v, %v", records, err)
	}
}

func TestDisabledTrail(t *testing.T) {
	trail := NewTrail("", 7)
	if trail.Enabled() {
		t.Error("empty dir should disable the trail")
	}
	if err := trail.Write(Record{Event: "compile"}); err != nil {
		t.Errorf("disabled write should be a no-op: %v", err)
	}
}

func TestCleanupRemovesOldFiles(t *testing.T) {
	dir := t.TempDir()
	trail := NewTrail(dir, 7)

	oldDate := time.Now().AddDate(0, 0, -10).Format("2006-01-02")
	oldPath := filepath.Join(dir, "cql-audit-"+oldDate+".jsonl")
	if err := os.WriteFile(oldPath, []byte("{}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	unrelated := filepath.Join(dir, "notes.txt")
	os.WriteFile(unrelated, []byte("keep"), 0644)

	if err := trail.Write(Record{Event: "compile", Success: true}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("stale audit file not removed")
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Error("unrelated file removed")
	}
	today := filepath.Join(dir, "cql-audit-"+time.Now().Format("2006-01-02")+".jsonl")
	if _, err := os.Stat(today); err != nil {
		t.Error("today's file removed")
	}
}

func TestCleanupKeepsFilesWithinRetention(t *testing.T) {
	dir := t.TempDir()
	trail := NewTrail(dir, 7)

	recentDate := time.Now().AddDate(0, 0, -3).Format("2006-01-02")
	recentPath := filepath.Join(dir, "cql-audit-"+recentDate+".jsonl")
	os.WriteFile(recentPath, []byte("{}\n"), 0644)

	if err := trail.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(recentPath); err != nil {
		t.Error("in-retention file removed")
	}
}

func TestZeroRetentionNeverPrunes(t *testing.T) {
	dir := t.TempDir()
	trail := NewTrail(dir, 0)

	oldDate := time.Now().AddDate(0, 0, -100).Format("2006-01-02")
	oldPath := filepath.Join(dir, "cql-audit-"+oldDate+".jsonl")
	os.WriteFile(oldPath, []byte("{}\n"), 0644)

	if err := trail.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(oldPath); err != nil {
		t.Error("pruning should be disabled with zero retention")
	}
}
