package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run records one compilation through the optimizer pipeline.
type Run struct {
	ID           string
	QueryHash    string
	Mode         string
	Goal         string
	Domain       string
	CacheHit     bool
	UsedLLM      bool
	InputTokens  int
	OutputTokens int
	ActualCost   float64
	Success      bool
	ErrorMessage string
	CreatedAt    time.Time
}

// Store persists compilation runs and daily spend using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore creates a SQLite-backed run store at the given path.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

// init creates the necessary tables if they don't exist
func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id             TEXT PRIMARY KEY,
			query_hash     TEXT NOT NULL,
			mode           TEXT NOT NULL,
			goal           TEXT NOT NULL,
			domain         TEXT,
			cache_hit      INTEGER NOT NULL DEFAULT 0,
			used_llm       INTEGER NOT NULL DEFAULT 0,
			input_tokens   INTEGER NOT NULL DEFAULT 0,
			output_tokens  INTEGER NOT NULL DEFAULT 0,
			actual_cost    REAL NOT NULL DEFAULT 0,
			success        INTEGER NOT NULL DEFAULT 1,
			error_message  TEXT,
			created_at     TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS daily_costs (
			date      TEXT PRIMARY KEY,
			spend     REAL NOT NULL DEFAULT 0,
			requests  INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
		CREATE INDEX IF NOT EXISTS idx_runs_query ON runs(query_hash);
	`)
	return err
}

// RecordRun saves a run. A missing ID or timestamp is filled in.
func (s *Store) RecordRun(run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO runs (id, query_hash, mode, goal, domain, cache_hit, used_llm,
			input_tokens, output_tokens, actual_cost, success, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.QueryHash, run.Mode, run.Goal, run.Domain,
		boolInt(run.CacheHit), boolInt(run.UsedLLM),
		run.InputTokens, run.OutputTokens, run.ActualCost,
		boolInt(run.Success), run.ErrorMessage, run.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO daily_costs (date, spend, requests)
		VALUES (?, ?, 1)
		ON CONFLICT(date) DO UPDATE SET
			spend = spend + excluded.spend, requests = requests + 1
	`, run.CreatedAt.Format("2006-01-02"), run.ActualCost)
	return err
}

// RecentRuns returns the newest runs, newest first.
func (s *Store) RecentRuns(limit int) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, query_hash, mode, goal, domain, cache_hit, used_llm,
			input_tokens, output_tokens, actual_cost, success, error_message, created_at
		FROM runs
		ORDER BY created_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRuns(rows)
}

// RunsForQuery returns runs for one query hash, newest first.
func (s *Store) RunsForQuery(queryHash string, limit int) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, query_hash, mode, goal, domain, cache_hit, used_llm,
			input_tokens, output_tokens, actual_cost, success, error_message, created_at
		FROM runs
		WHERE query_hash = ?
		ORDER BY created_at DESC, id
		LIMIT ?
	`, queryHash, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]*Run, error) {
	var runs []*Run
	for rows.Next() {
		var run Run
		var cacheHit, usedLLM, success int
		var domain, errMsg sql.NullString
		var createdAt string

		err := rows.Scan(&run.ID, &run.QueryHash, &run.Mode, &run.Goal, &domain,
			&cacheHit, &usedLLM, &run.InputTokens, &run.OutputTokens,
			&run.ActualCost, &success, &errMsg, &createdAt)
		if err != nil {
			return nil, err
		}

		run.Domain = domain.String
		run.ErrorMessage = errMsg.String
		run.CacheHit = cacheHit != 0
		run.UsedLLM = usedLLM != 0
		run.Success = success != 0
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			run.CreatedAt = t
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// TodaySpend returns the spend recorded for today's date. Used to
// seed the in-memory cost controller across process restarts.
func (s *Store) TodaySpend() (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT spend FROM daily_costs WHERE date = ?`,
		time.Now().Format("2006-01-02"))
	var spend float64
	if err := row.Scan(&spend); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return spend, nil
}

// MonthSpend returns the spend recorded over the last 30 days.
func (s *Store) MonthSpend() (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	since := time.Now().AddDate(0, 0, -30).Format("2006-01-02")
	row := s.db.QueryRow(`SELECT COALESCE(SUM(spend), 0) FROM daily_costs WHERE date >= ?`, since)
	var spend float64
	if err := row.Scan(&spend); err != nil {
		return 0, err
	}
	return spend, nil
}

// Summary aggregates all recorded runs.
type Summary struct {
	TotalRuns  int
	CacheHits  int
	LLMRuns    int
	Failures   int
	TotalCost  float64
	FirstRunAt time.Time
	LastRunAt  time.Time
}

// Summarize computes totals across the run table.
func (s *Store) Summarize() (*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(cache_hit), 0),
			COALESCE(SUM(used_llm), 0),
			COALESCE(SUM(1 - success), 0),
			COALESCE(SUM(actual_cost), 0),
			MIN(created_at), MAX(created_at)
		FROM runs
	`)

	var sum Summary
	var first, last sql.NullString
	err := row.Scan(&sum.TotalRuns, &sum.CacheHits, &sum.LLMRuns,
		&sum.Failures, &sum.TotalCost, &first, &last)
	if err != nil {
		return nil, err
	}
	if first.Valid {
		if t, err := time.Parse(time.RFC3339, first.String); err == nil {
			sum.FirstRunAt = t
		}
	}
	if last.Valid {
		if t, err := time.Parse(time.RFC3339, last.String); err == nil {
			sum.LastRunAt = t
		}
	}
	return &sum, nil
}

// PruneRuns deletes runs older than the retention period and returns
// how many were removed. Daily cost rows are kept for budgeting.
func (s *Store) PruneRuns(retention time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-retention).Format(time.RFC3339)
	result, err := s.db.Exec(`DELETE FROM runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
