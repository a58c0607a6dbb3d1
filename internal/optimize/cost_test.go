package optimize

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func testCostConfig() CostConfig {
	return CostConfig{
		DailyBudget:      1.0,
		MonthlyBudget:    10.0,
		HardLimitPercent: 120,
		PredictionWindow: time.Hour,
	}
}

func TestCostAuthorizeWithinBudget(t *testing.T) {
	c := NewCostController(testCostConfig())
	if err := c.AuthorizeRequest(0.5); err != nil {
		t.Errorf("within budget should authorize: %v", err)
	}
}

func TestCostHardLimitRefuses(t *testing.T) {
	c := NewCostController(testCostConfig())
	c.RecordCost(OperationCompilation, 1.1)
	// 1.1 + 0.2 > 1.2 hard limit
	err := c.AuthorizeRequest(0.2)
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("expected ErrBudgetExceeded, got %v", err)
	}
}

func TestCostStatusProgression(t *testing.T) {
	c := NewCostController(testCostConfig())
	if c.Status() != BudgetNormal {
		t.Errorf("fresh controller: %s", c.Status())
	}
	c.RecordCost(OperationCompilation, 0.85)
	if c.Status() != BudgetApproachingLimit {
		t.Errorf("85%% spend: %s", c.Status())
	}
	c.RecordCost(OperationCompilation, 0.2)
	if c.Status() != BudgetExceeded {
		t.Errorf("105%% spend: %s", c.Status())
	}
	c.RecordCost(OperationCompilation, 0.2)
	if c.Status() != BudgetHardLimitReached {
		t.Errorf("125%% spend: %s", c.Status())
	}
}

func TestCostAlertFiresOnTransition(t *testing.T) {
	c := NewCostController(testCostConfig())
	var transitions []BudgetStatus
	c.SetAlertFunc(func(old, new BudgetStatus, _ CostStatistics) {
		transitions = append(transitions, new)
	})
	c.RecordCost(OperationCompilation, 0.1)  // still normal
	c.RecordCost(OperationCompilation, 0.8)  // approaching
	c.RecordCost(OperationCompilation, 0.05) // still approaching
	if len(transitions) != 1 || transitions[0] != BudgetApproachingLimit {
		t.Errorf("transitions: %v", transitions)
	}
}

func TestCostByOperationBreakdown(t *testing.T) {
	c := NewCostController(testCostConfig())
	c.RecordCost(OperationCompilation, 0.10)
	c.RecordCost(OperationValidation, 0.03)
	c.RecordCost(OperationCompilation, 0.05)

	stats := c.Stats()
	if got := stats.ByOperation[OperationCompilation]; got < 0.149 || got > 0.151 {
		t.Errorf("compilation spend: %v", got)
	}
	if got := stats.ByOperation[OperationValidation]; got < 0.029 || got > 0.031 {
		t.Errorf("validation spend: %v", got)
	}
	if stats.RequestCount != 3 {
		t.Errorf("request count: %d", stats.RequestCount)
	}
}

func TestCostPrediction(t *testing.T) {
	c := NewCostController(testCostConfig())
	c.RecordCost(OperationCompilation, 0.01)
	stats := c.Stats()
	// 0.01 in the last hour extrapolates to 0.24 over a day.
	if stats.PredictedDaily < 0.23 || stats.PredictedDaily > 0.25 {
		t.Errorf("predicted daily: %v", stats.PredictedDaily)
	}
}

func TestCostExportUsage(t *testing.T) {
	c := NewCostController(testCostConfig())
	c.RecordCost(OperationCompilation, 0.02)
	data, err := c.ExportUsage()
	if err != nil {
		t.Fatalf("ExportUsage failed: %v", err)
	}
	var export struct {
		Stats   CostStatistics `json:"stats"`
		History []costSample   `json:"history"`
	}
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(export.History) != 1 || export.Stats.TotalSpend != 0.02 {
		t.Errorf("export: %+v", export)
	}
}

func TestCostSeedDailySpend(t *testing.T) {
	c := NewCostController(testCostConfig())
	c.SeedDailySpend(0.9)
	if c.Status() != BudgetApproachingLimit {
		t.Errorf("seeded spend should count: %s", c.Status())
	}
}
