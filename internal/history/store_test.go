package history

import (
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "cql", "history.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecentRuns(t *testing.T) {
	s := testStore(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		err := s.RecordRun(&Run{
			QueryHash:    "hash-a",
			Mode:         "cached_llm",
			Goal:         "balanced",
			Domain:       "general",
			UsedLLM:      i == 0,
			InputTokens:  100,
			OutputTokens: 50,
			ActualCost:   0.001,
			Success:      true,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	runs, err := s.RecentRuns(2)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if !runs[0].CreatedAt.After(runs[1].CreatedAt) {
		t.Error("runs not newest first")
	}
	if runs[0].ID == "" {
		t.Error("run ID not assigned")
	}
	if runs[0].Mode != "cached_llm" || runs[0].Goal != "balanced" {
		t.Errorf("fields not persisted: %+v", runs[0])
	}
}

func TestRunsForQuery(t *testing.T) {
	s := testStore(t)
	s.RecordRun(&Run{QueryHash: "hash-a", Mode: "local_only", Goal: "balanced", Success: true})
	s.RecordRun(&Run{QueryHash: "hash-b", Mode: "local_only", Goal: "balanced", Success: true})

	runs, err := s.RunsForQuery("hash-a", 10)
	if err != nil {
		t.Fatalf("RunsForQuery: %v", err)
	}
	if len(runs) != 1 || runs[0].QueryHash != "hash-a" {
		t.Errorf("unexpected runs: %+v", runs)
	}
}

func TestDailySpendAccumulates(t *testing.T) {
	s := testStore(t)
	s.RecordRun(&Run{QueryHash: "h", Mode: "full_llm", Goal: "balanced", ActualCost: 0.01, Success: true})
	s.RecordRun(&Run{QueryHash: "h", Mode: "full_llm", Goal: "balanced", ActualCost: 0.02, Success: true})

	spend, err := s.TodaySpend()
	if err != nil {
		t.Fatalf("TodaySpend: %v", err)
	}
	if spend < 0.029 || spend > 0.031 {
		t.Errorf("today spend = %f, want 0.03", spend)
	}

	month, err := s.MonthSpend()
	if err != nil {
		t.Fatalf("MonthSpend: %v", err)
	}
	if month < spend {
		t.Errorf("month spend %f below today spend %f", month, spend)
	}
}

func TestTodaySpendEmptyStore(t *testing.T) {
	s := testStore(t)
	spend, err := s.TodaySpend()
	if err != nil || spend != 0 {
		t.Errorf("empty store spend: %f, %v", spend, err)
	}
}

func TestSummarize(t *testing.T) {
	s := testStore(t)
	s.RecordRun(&Run{QueryHash: "h", Mode: "cached_llm", Goal: "balanced", CacheHit: true, Success: true})
	s.RecordRun(&Run{QueryHash: "h", Mode: "cached_llm", Goal: "balanced", UsedLLM: true, ActualCost: 0.005, Success: true})
	s.RecordRun(&Run{QueryHash: "h", Mode: "cached_llm", Goal: "balanced", Success: false, ErrorMessage: "backend down"})

	sum, err := s.Summarize()
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.TotalRuns != 3 || sum.CacheHits != 1 || sum.LLMRuns != 1 || sum.Failures != 1 {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if sum.TotalCost < 0.0049 || sum.TotalCost > 0.0051 {
		t.Errorf("total cost = %f", sum.TotalCost)
	}
	if sum.FirstRunAt.IsZero() || sum.LastRunAt.IsZero() {
		t.Error("run timestamps missing from summary")
	}
}

func TestPruneRuns(t *testing.T) {
	s := testStore(t)
	s.RecordRun(&Run{QueryHash: "old", Mode: "local_only", Goal: "balanced", Success: true,
		CreatedAt: time.Now().Add(-48 * time.Hour)})
	s.RecordRun(&Run{QueryHash: "new", Mode: "local_only", Goal: "balanced", Success: true})

	removed, err := s.PruneRuns(24 * time.Hour)
	if err != nil {
		t.Fatalf("PruneRuns: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed %d runs, want 1", removed)
	}
	runs, _ := s.RecentRuns(10)
	if len(runs) != 1 || runs[0].QueryHash != "new" {
		t.Errorf("wrong run pruned: %+v", runs)
	}
}
