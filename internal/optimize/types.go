package optimize

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how much the optimizer may lean on an LLM.
type Mode int

const (
	// ModeLocalOnly never calls an LLM.
	ModeLocalOnly Mode = iota
	// ModeCachedLLM uses the LLM only on cache misses.
	ModeCachedLLM
	// ModeAsyncLLM runs LLM optimization without blocking the caller.
	ModeAsyncLLM
	// ModeFullLLM always consults the LLM.
	ModeFullLLM
)

var modeNames = map[Mode]string{
	ModeLocalOnly: "local_only",
	ModeCachedLLM: "cached_llm",
	ModeAsyncLLM:  "async_llm",
	ModeFullLLM:   "full_llm",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode converts a mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	for mode, name := range modeNames {
		if name == strings.ToLower(strings.TrimSpace(s)) {
			return mode, nil
		}
	}
	return ModeLocalOnly, fmt.Errorf("unknown optimization mode: %q", s)
}

// Goal steers what the optimizer tries to improve.
type Goal int

const (
	GoalReduceTokens Goal = iota
	GoalImproveAccuracy
	GoalDomainSpecific
	GoalBalanced
)

var goalNames = map[Goal]string{
	GoalReduceTokens:    "reduce_tokens",
	GoalImproveAccuracy: "improve_accuracy",
	GoalDomainSpecific:  "domain_specific",
	GoalBalanced:        "balanced",
}

func (g Goal) String() string {
	if name, ok := goalNames[g]; ok {
		return name
	}
	return fmt.Sprintf("Goal(%d)", int(g))
}

// ParseGoal converts a goal name to a Goal.
func ParseGoal(s string) (Goal, error) {
	for goal, name := range goalNames {
		if name == strings.ToLower(strings.TrimSpace(s)) {
			return goal, nil
		}
	}
	return GoalBalanced, fmt.Errorf("unknown optimization goal: %q", s)
}

// Flags configure one optimization request.
type Flags struct {
	Mode              Mode
	Goal              Goal
	ValidateSemantics bool
	EnableCaching     bool
	UseDeterministic  bool
	Domain            string
	CostBudget        float64
	Temperature       float64
}

// DefaultFlags returns the stock configuration: cached LLM use with
// semantic validation on, a general domain and a one-cent budget.
func DefaultFlags() Flags {
	return Flags{
		Mode:              ModeCachedLLM,
		Goal:              GoalBalanced,
		ValidateSemantics: true,
		EnableCaching:     true,
		Domain:            "general",
		CostBudget:        0.01,
		Temperature:       0.1,
	}
}

// Metrics records how one compilation went.
type Metrics struct {
	CompilationTime       time.Duration
	LLMAPITime            time.Duration
	EstimatedCost         float64
	ActualCost            float64
	CacheHit              bool
	UsedLLM               bool
	InputTokens           int
	OutputTokens          int
	TokenReductionPercent float64
}

// SemanticResult reports whether an optimized prompt preserves the
// original's meaning.
type SemanticResult struct {
	IsSemanticallyEquivalent bool
	ConfidenceScore          float64
	DetectedIssues           []string
	ValidationMethod         string
}

// Result is the outcome of one optimization request.
type Result struct {
	Success        bool
	CompiledPrompt string
	ErrorMessage   string
	Metrics        Metrics
	Validation     *SemanticResult
	OriginalQuery  string
	FlagsUsed      Flags
}

// SuccessResult builds a successful Result.
func SuccessResult(prompt, original string, flags Flags, metrics Metrics) *Result {
	return &Result{
		Success:        true,
		CompiledPrompt: prompt,
		Metrics:        metrics,
		OriginalQuery:  original,
		FlagsUsed:      flags,
	}
}

// ErrorResult builds a failed Result.
func ErrorResult(message, original string, flags Flags) *Result {
	return &Result{
		Success:       false,
		ErrorMessage:  message,
		OriginalQuery: original,
		FlagsUsed:     flags,
	}
}

// CacheStatistics is a point-in-time view of the semantic cache.
type CacheStatistics struct {
	Hits            int64
	Misses          int64
	Evictions       int64
	Expirations     int64
	Entries         int
	MemoryBytes     int64
	HitRate         float64
	ProcessRSSBytes uint64
}

// CostStatistics is a point-in-time view of spend tracking.
type CostStatistics struct {
	DailySpend     float64            `json:"daily_spend"`
	MonthlySpend   float64            `json:"monthly_spend"`
	TotalSpend     float64            `json:"total_spend"`
	RequestCount   int64              `json:"request_count"`
	DailyBudget    float64            `json:"daily_budget"`
	MonthlyBudget  float64            `json:"monthly_budget"`
	ByOperation    map[string]float64 `json:"by_operation"`
	Status         BudgetStatus       `json:"status"`
	PredictedDaily float64            `json:"predicted_daily"`
}
