package optimize

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBudgetExceeded is wrapped into authorization failures.
var ErrBudgetExceeded = errors.New("budget exceeded")

// BudgetStatus grades current spend against the configured budgets.
type BudgetStatus int

const (
	BudgetNormal BudgetStatus = iota
	BudgetApproachingLimit
	BudgetExceeded
	BudgetHardLimitReached
)

func (s BudgetStatus) String() string {
	switch s {
	case BudgetNormal:
		return "normal"
	case BudgetApproachingLimit:
		return "approaching_limit"
	case BudgetExceeded:
		return "budget_exceeded"
	case BudgetHardLimitReached:
		return "hard_limit_reached"
	}
	return "unknown"
}

// Operation labels recorded costs.
const (
	OperationCompilation = "compilation"
	OperationValidation  = "validation"
)

// CostConfig sets spend budgets. HardLimitPercent is the fraction of
// each budget (as a percent, e.g. 120) beyond which requests are
// refused outright.
type CostConfig struct {
	DailyBudget      float64
	MonthlyBudget    float64
	HardLimitPercent float64
	PredictionWindow time.Duration
}

// DefaultCostConfig returns the stock budget configuration.
func DefaultCostConfig() CostConfig {
	return CostConfig{
		DailyBudget:      1.0,
		MonthlyBudget:    25.0,
		HardLimitPercent: 120,
		PredictionWindow: time.Hour,
	}
}

type costSample struct {
	At   time.Time `json:"at"`
	Cost float64   `json:"cost"`
	Op   string    `json:"operation"`
}

// AlertFunc receives budget status transitions.
type AlertFunc func(old, new BudgetStatus, stats CostStatistics)

// CostController tracks spend, authorizes requests against budgets,
// and fires alerts on status changes.
type CostController struct {
	cfg CostConfig

	mu           sync.Mutex
	dailySpend   float64
	monthlySpend float64
	totalSpend   float64
	requestCount int64
	byOperation  map[string]float64
	history      []costSample
	dayStart     time.Time
	monthStart   time.Time
	status       BudgetStatus
	alert        AlertFunc
}

// NewCostController creates a controller with zeroed spend.
func NewCostController(cfg CostConfig) *CostController {
	if cfg.HardLimitPercent <= 0 {
		cfg.HardLimitPercent = DefaultCostConfig().HardLimitPercent
	}
	if cfg.PredictionWindow <= 0 {
		cfg.PredictionWindow = DefaultCostConfig().PredictionWindow
	}
	now := time.Now()
	return &CostController{
		cfg:         cfg,
		byOperation: map[string]float64{},
		dayStart:    now,
		monthStart:  now,
	}
}

// SetAlertFunc registers the status-change callback.
func (c *CostController) SetAlertFunc(fn AlertFunc) {
	c.mu.Lock()
	c.alert = fn
	c.mu.Unlock()
}

// SeedDailySpend primes today's spend, typically from the history
// store at startup.
func (c *CostController) SeedDailySpend(amount float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dailySpend += amount
	c.monthlySpend += amount
	c.totalSpend += amount
}

// AuthorizeRequest checks whether an estimated cost fits within the
// hard limits. The request is not recorded.
func (c *CostController) AuthorizeRequest(estimated float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollPeriodsLocked()

	hard := c.cfg.HardLimitPercent / 100
	if c.cfg.DailyBudget > 0 && c.dailySpend+estimated > c.cfg.DailyBudget*hard {
		return fmt.Errorf("%w: daily spend %.4f + %.4f exceeds hard limit %.4f",
			ErrBudgetExceeded, c.dailySpend, estimated, c.cfg.DailyBudget*hard)
	}
	if c.cfg.MonthlyBudget > 0 && c.monthlySpend+estimated > c.cfg.MonthlyBudget*hard {
		return fmt.Errorf("%w: monthly spend %.4f + %.4f exceeds hard limit %.4f",
			ErrBudgetExceeded, c.monthlySpend, estimated, c.cfg.MonthlyBudget*hard)
	}
	return nil
}

// RecordCost adds an actual cost under the given operation label.
func (c *CostController) RecordCost(operation string, cost float64) {
	c.mu.Lock()
	c.rollPeriodsLocked()
	c.dailySpend += cost
	c.monthlySpend += cost
	c.totalSpend += cost
	c.requestCount++
	c.byOperation[operation] += cost
	c.history = append(c.history, costSample{At: time.Now(), Cost: cost, Op: operation})
	c.pruneHistoryLocked()

	old := c.status
	c.status = c.statusLocked()
	changed := old != c.status
	alert := c.alert
	stats := c.statsLocked()
	c.mu.Unlock()

	if changed && alert != nil {
		alert(old, stats.Status, stats)
	}
}

// Status returns the current budget status.
func (c *CostController) Status() BudgetStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollPeriodsLocked()
	return c.statusLocked()
}

// Stats snapshots spend tracking.
func (c *CostController) Stats() CostStatistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollPeriodsLocked()
	return c.statsLocked()
}

func (c *CostController) statsLocked() CostStatistics {
	byOp := make(map[string]float64, len(c.byOperation))
	for op, cost := range c.byOperation {
		byOp[op] = cost
	}
	return CostStatistics{
		DailySpend:     c.dailySpend,
		MonthlySpend:   c.monthlySpend,
		TotalSpend:     c.totalSpend,
		RequestCount:   c.requestCount,
		DailyBudget:    c.cfg.DailyBudget,
		MonthlyBudget:  c.cfg.MonthlyBudget,
		ByOperation:    byOp,
		Status:         c.statusLocked(),
		PredictedDaily: c.predictDailyLocked(),
	}
}

// statusLocked grades the worse of daily and monthly budget usage.
func (c *CostController) statusLocked() BudgetStatus {
	usage := 0.0
	if c.cfg.DailyBudget > 0 {
		usage = c.dailySpend / c.cfg.DailyBudget
	}
	if c.cfg.MonthlyBudget > 0 {
		if m := c.monthlySpend / c.cfg.MonthlyBudget; m > usage {
			usage = m
		}
	}
	hard := c.cfg.HardLimitPercent / 100
	switch {
	case usage >= hard:
		return BudgetHardLimitReached
	case usage >= 1.0:
		return BudgetExceeded
	case usage >= 0.8:
		return BudgetApproachingLimit
	default:
		return BudgetNormal
	}
}

// predictDailyLocked extrapolates the spend rate over the prediction
// window to a full day.
func (c *CostController) predictDailyLocked() float64 {
	cutoff := time.Now().Add(-c.cfg.PredictionWindow)
	var recent float64
	for _, s := range c.history {
		if s.At.After(cutoff) {
			recent += s.Cost
		}
	}
	if recent == 0 {
		return 0
	}
	return recent * (24 * time.Hour).Seconds() / c.cfg.PredictionWindow.Seconds()
}

// rollPeriodsLocked resets the daily window after 24 hours and the
// monthly window after 30 days.
func (c *CostController) rollPeriodsLocked() {
	now := time.Now()
	if now.Sub(c.dayStart) >= 24*time.Hour {
		c.dailySpend = 0
		c.dayStart = now
	}
	if now.Sub(c.monthStart) >= 30*24*time.Hour {
		c.monthlySpend = 0
		c.monthStart = now
	}
}

func (c *CostController) pruneHistoryLocked() {
	cutoff := time.Now().Add(-24 * time.Hour)
	idx := 0
	for idx < len(c.history) && c.history[idx].At.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		c.history = append([]costSample(nil), c.history[idx:]...)
	}
}

// ExportUsage renders spend tracking as JSON, including the retained
// cost history.
func (c *CostController) ExportUsage() ([]byte, error) {
	c.mu.Lock()
	c.rollPeriodsLocked()
	export := struct {
		Stats   CostStatistics `json:"stats"`
		History []costSample   `json:"history"`
	}{
		Stats:   c.statsLocked(),
		History: append([]costSample(nil), c.history...),
	}
	c.mu.Unlock()
	return json.MarshalIndent(export, "", "  ")
}
