package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbjwhs/cql-sub000/internal/audit"
	"github.com/dbjwhs/cql-sub000/internal/history"
	"github.com/dbjwhs/cql-sub000/internal/logger"
	"github.com/dbjwhs/cql-sub000/internal/optimize"
	"github.com/dbjwhs/cql-sub000/internal/query"
)

var (
	optimizeMode       string
	optimizeGoal       string
	optimizeDomain     string
	optimizeModel      string
	optimizeBudget     float64
	optimizeNoValidate bool
	optimizeShowStats  bool
	optimizeHistoryN   int
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize [FILE]",
	Short: "Compile a CQL query and optimize the resulting prompt",
	Long: `Optimize compiles the query and rewrites the compiled prompt for
the chosen goal. Depending on the mode this uses deterministic local
transforms, an LLM with semantic caching, or both. Every LLM failure
degrades to local optimization.

Modes: local_only, cached_llm (default), async_llm, full_llm.
Goals: reduce_tokens, improve_accuracy, domain_specific, balanced.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOptimize,
}

func init() {
	optimizeCmd.Flags().StringVar(&optimizeMode, "mode", "", "Optimization mode (overrides config)")
	optimizeCmd.Flags().StringVar(&optimizeGoal, "goal", "", "Optimization goal (overrides config)")
	optimizeCmd.Flags().StringVar(&optimizeDomain, "domain", "", "Domain hint for domain_specific optimization")
	optimizeCmd.Flags().StringVar(&optimizeModel, "model", "", "Model name from the provider catalog")
	optimizeCmd.Flags().Float64Var(&optimizeBudget, "budget", 0, "Per-request cost budget in dollars")
	optimizeCmd.Flags().BoolVar(&optimizeNoValidate, "no-validate", false, "Skip semantic validation of the optimized prompt")
	optimizeCmd.Flags().BoolVar(&optimizeShowStats, "stats", false, "Print cache, breaker and cost statistics")
	optimizeCmd.Flags().IntVar(&optimizeHistoryN, "history", 0, "Show the last N optimization runs and exit")
	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	runs := openHistory()
	if runs != nil {
		defer runs.Close()
	}

	if optimizeHistoryN > 0 {
		return printHistory(runs, optimizeHistoryN)
	}

	input, err := readQueryInput(args)
	if err != nil {
		return err
	}
	compiled, err := query.Compile(input)
	if err != nil {
		return err
	}

	flags, err := resolveOptimizeFlags()
	if err != nil {
		return err
	}

	if optimizeModel != "" {
		cfg.Optimizer.Model = optimizeModel
	}
	optimizer, model, err := newOptimizer()
	if err != nil {
		return err
	}
	seedSpend(optimizer, runs)

	result := optimizer.Compile(context.Background(), compiled, flags)
	recordRun(runs, result, flags)
	writeRunAudit(result, flags, model.Name)

	if !result.Success {
		return fmt.Errorf("optimization failed: %s", result.ErrorMessage)
	}

	fmt.Println(result.CompiledPrompt)
	reportMetrics(result)
	if optimizeShowStats {
		printStats(optimizer)
	}
	return nil
}

func resolveOptimizeFlags() (optimize.Flags, error) {
	flags, err := optimizerFlags()
	if err != nil {
		return flags, err
	}
	if optimizeMode != "" {
		mode, err := optimize.ParseMode(optimizeMode)
		if err != nil {
			return flags, err
		}
		flags.Mode = mode
	}
	if optimizeGoal != "" {
		goal, err := optimize.ParseGoal(optimizeGoal)
		if err != nil {
			return flags, err
		}
		flags.Goal = goal
	}
	if optimizeDomain != "" {
		flags.Domain = optimizeDomain
	}
	if optimizeBudget > 0 {
		flags.CostBudget = optimizeBudget
	}
	if optimizeNoValidate {
		flags.ValidateSemantics = false
	}
	return flags, nil
}

// openHistory opens the run store when history is enabled. Failures
// are logged, not fatal: optimization works without history.
func openHistory() *history.Store {
	if !cfg.History.Enabled {
		return nil
	}
	runs, err := history.NewStore(cfg.HistoryPath())
	if err != nil {
		logger.Warn("run history unavailable: %v", err)
		return nil
	}
	return runs
}

// seedSpend restores today's recorded spend into the cost controller
// so budgets survive process restarts.
func seedSpend(optimizer *optimize.Compiler, runs *history.Store) {
	if runs == nil {
		return
	}
	spend, err := runs.TodaySpend()
	if err != nil {
		logger.Warn("failed to load today's spend: %v", err)
		return
	}
	if spend > 0 {
		optimizer.Cost().SeedDailySpend(spend)
	}
}

func recordRun(runs *history.Store, result *optimize.Result, flags optimize.Flags) {
	if runs == nil {
		return
	}
	key := optimize.NewCacheKey(result.OriginalQuery, flags)
	err := runs.RecordRun(&history.Run{
		QueryHash:    key.QueryHash,
		Mode:         flags.Mode.String(),
		Goal:         flags.Goal.String(),
		Domain:       flags.Domain,
		CacheHit:     result.Metrics.CacheHit,
		UsedLLM:      result.Metrics.UsedLLM,
		InputTokens:  result.Metrics.InputTokens,
		OutputTokens: result.Metrics.OutputTokens,
		ActualCost:   result.Metrics.ActualCost,
		Success:      result.Success,
		ErrorMessage: result.ErrorMessage,
	})
	if err != nil {
		logger.Warn("failed to record run: %v", err)
	}
}

func writeRunAudit(result *optimize.Result, flags optimize.Flags, model string) {
	trail := audit.NewTrail(cfg.AuditDir(), cfg.Audit.RetentionDays)
	if !trail.Enabled() {
		return
	}
	key := optimize.NewCacheKey(result.OriginalQuery, flags)
	err := trail.Write(audit.Record{
		Event:     "cli.optimize",
		QueryHash: key.QueryHash,
		Mode:      flags.Mode.String(),
		Goal:      flags.Goal.String(),
		Model:     model,
		CacheHit:  result.Metrics.CacheHit,
		UsedLLM:   result.Metrics.UsedLLM,
		Cost:      result.Metrics.ActualCost,
		Success:   result.Success,
		Error:     result.ErrorMessage,
	})
	if err != nil {
		logger.Warn("failed to write audit record: %v", err)
	}
}

func reportMetrics(result *optimize.Result) {
	m := result.Metrics
	switch {
	case m.CacheHit:
		logger.Debug("served from cache")
	case m.UsedLLM:
		logger.Debug("optimized via LLM in %s (cost $%.4f, %.1f%% token change)",
			m.LLMAPITime.Round(time.Millisecond), m.ActualCost, -m.TokenReductionPercent)
	default:
		logger.Debug("optimized locally in %s", m.CompilationTime.Round(time.Millisecond))
	}
	if result.Validation != nil {
		logger.Debug("semantic validation: equivalent=%t confidence=%.2f",
			result.Validation.IsSemanticallyEquivalent, result.Validation.ConfidenceScore)
	}
}

func printHistory(runs *history.Store, n int) error {
	if runs == nil {
		return fmt.Errorf("run history is disabled in config")
	}
	recent, err := runs.RecentRuns(n)
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		fmt.Println("No optimization runs recorded.")
		return nil
	}
	for _, run := range recent {
		status := "ok"
		if !run.Success {
			status = "failed"
		}
		source := "local"
		if run.CacheHit {
			source = "cache"
		} else if run.UsedLLM {
			source = "llm"
		}
		fmt.Printf("%s  %s/%s  %s  %s  $%.4f  %s\n",
			run.CreatedAt.Format("2006-01-02 15:04:05"),
			run.Mode, run.Goal, source, status, run.ActualCost, run.QueryHash[:12])
	}
	return nil
}

func printStats(optimizer *optimize.Compiler) {
	stats := struct {
		Cache   optimize.CacheStatistics `json:"cache"`
		Breaker optimize.BreakerStats    `json:"breaker"`
		Cost    optimize.CostStatistics  `json:"cost"`
	}{
		Cache:   optimizer.CacheStats(),
		Breaker: optimizer.BreakerStats(),
		Cost:    optimizer.CostStats(),
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		logger.Error("failed to render stats: %v", err)
		return
	}
	fmt.Fprintln(os.Stderr, string(data))
}
