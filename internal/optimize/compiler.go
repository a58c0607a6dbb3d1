package optimize

import (
	"context"
	"time"

	"github.com/dbjwhs/cql-sub000/internal/logger"
)

// CompilerConfig bundles the tuning for all optimizer subsystems.
type CompilerConfig struct {
	Cache    CacheConfig
	Breaker  BreakerConfig
	Cost     CostConfig
	Semantic SemanticConfig
	Retry    RetryConfig
	// Model overrides the backend's default model when set.
	Model string
}

// RetryConfig bounds repeated backend attempts when a failure is in a
// retryable category.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the
	// first. Values below one mean a single attempt.
	MaxAttempts int
	// Delay is the pause between attempts.
	Delay time.Duration
}

// DefaultRetryConfig allows two retries with a short pause.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, Delay: 250 * time.Millisecond}
}

// DefaultCompilerConfig returns stock tuning for every subsystem.
func DefaultCompilerConfig() CompilerConfig {
	return CompilerConfig{
		Cache:    DefaultCacheConfig(),
		Breaker:  DefaultBreakerConfig(),
		Cost:     DefaultCostConfig(),
		Semantic: DefaultSemanticConfig(),
		Retry:    DefaultRetryConfig(),
	}
}

// Compiler routes optimization requests between the local optimizer,
// the semantic cache, and the LLM backend, guarded by the circuit
// breaker and cost controller. Failures never propagate: every path
// degrades to the local optimizer.
type Compiler struct {
	backend  Backend
	local    LocalOptimizer
	cache    *Cache
	breaker  *CircuitBreaker
	cost     *CostController
	semantic *SemanticValidator
	retry    RetryConfig
	model    string
}

// NewCompiler wires a compiler. backend may be nil for a local-only
// deployment.
func NewCompiler(backend Backend, cfg CompilerConfig) *Compiler {
	return &Compiler{
		backend:  backend,
		cache:    NewCache(cfg.Cache),
		breaker:  NewCircuitBreaker(cfg.Breaker),
		cost:     NewCostController(cfg.Cost),
		semantic: NewSemanticValidator(cfg.Semantic),
		retry:    cfg.Retry,
		model:    cfg.Model,
	}
}

// Cache exposes the semantic cache for scheduled maintenance.
func (c *Compiler) Cache() *Cache { return c.cache }

// Breaker exposes the circuit breaker for inspection and reset.
func (c *Compiler) Breaker() *CircuitBreaker { return c.breaker }

// Cost exposes the cost controller.
func (c *Compiler) Cost() *CostController { return c.cost }

// Compile optimizes one prompt according to the flags. The returned
// result always carries the original query and the flags used.
func (c *Compiler) Compile(ctx context.Context, query string, flags Flags) *Result {
	start := time.Now()
	result := c.compile(ctx, query, flags)
	if !result.Metrics.CacheHit {
		result.Metrics.CompilationTime = time.Since(start)
	}
	return result
}

func (c *Compiler) compile(ctx context.Context, query string, flags Flags) *Result {
	if flags.Mode == ModeLocalOnly || flags.UseDeterministic {
		return c.compileLocal(query, flags)
	}

	if flags.EnableCaching {
		if cached, ok := c.cache.Get(query, flags); ok {
			logger.Debug("optimizer cache hit for %s mode", flags.Mode)
			return cached
		}
	}

	if !c.LLMAvailable() {
		logger.Debug("LLM unavailable, using local optimization")
		result := c.compileLocal(query, flags)
		c.cachePut(query, flags, result)
		return result
	}

	result := c.compileLLM(ctx, query, flags)
	c.cachePut(query, flags, result)
	return result
}

func (c *Compiler) cachePut(query string, flags Flags, result *Result) {
	if flags.EnableCaching && result.Success {
		c.cache.Put(query, flags, result)
	}
}

// LLMAvailable reports whether the backend can be used right now:
// configured, breaker willing, and budget not exhausted.
func (c *Compiler) LLMAvailable() bool {
	if c.backend == nil || !c.backend.Configured() {
		return false
	}
	if !c.breaker.CanExecute() {
		return false
	}
	return c.cost.Status() < BudgetExceeded
}

func (c *Compiler) compileLocal(query string, flags Flags) *Result {
	optimized := c.local.Optimize(query, flags)
	metrics := Metrics{
		InputTokens:           estimateTokens(query),
		OutputTokens:          estimateTokens(optimized),
		TokenReductionPercent: reductionPercent(query, optimized),
	}
	return SuccessResult(optimized, query, flags, metrics)
}

func (c *Compiler) compileLLM(ctx context.Context, query string, flags Flags) *Result {
	metaPrompt := buildMetaPrompt(query, flags)
	estimated := estimateCost(metaPrompt)
	if flags.CostBudget > 0 && estimated > flags.CostBudget {
		logger.Warn("estimated cost $%.4f exceeds the request budget $%.4f, using local optimization",
			estimated, flags.CostBudget)
		return c.compileLocal(query, flags)
	}
	if err := c.cost.AuthorizeRequest(estimated); err != nil {
		logger.Warn("optimization request not authorized: %v", err)
		return c.compileLocal(query, flags)
	}

	llmStart := time.Now()
	resp, err := c.complete(ctx, Request{
		Prompt:      metaPrompt,
		Model:       c.model,
		Temperature: flags.Temperature,
	})
	llmTime := time.Since(llmStart)
	if err != nil {
		c.breaker.RecordFailure()
		logger.Warn("LLM optimization failed (%s), falling back to local: %v", Categorize(err), err)
		return c.compileLocal(query, flags)
	}
	c.breaker.RecordSuccess()

	optimized := parseOptimizedResponse(resp.Text)
	actual := float64(resp.InputTokens+resp.OutputTokens) / 1000 * 0.003
	c.cost.RecordCost(OperationCompilation, actual)

	metrics := Metrics{
		LLMAPITime:            llmTime,
		EstimatedCost:         estimated,
		ActualCost:            actual,
		UsedLLM:               true,
		InputTokens:           resp.InputTokens,
		OutputTokens:          resp.OutputTokens,
		TokenReductionPercent: reductionPercent(query, optimized),
	}

	result := SuccessResult(optimized, query, flags, metrics)
	if flags.ValidateSemantics {
		validation := c.semantic.Validate(query, optimized)
		// Heuristic validation overhead is booked at roughly 30%
		// of the compilation cost.
		validationCost := actual * 0.3
		if c.borderline(validation) {
			if confirmed, cost, verr := c.validateWithLLM(ctx, query, optimized); verr == nil {
				validation = confirmed
				validationCost = cost
			} else {
				logger.Debug("LLM validation unavailable, keeping heuristic verdict: %v", verr)
			}
		}
		result.Validation = validation
		c.cost.RecordCost(OperationValidation, validationCost)
		if !validation.IsSemanticallyEquivalent {
			logger.Warn("optimized prompt failed semantic validation (confidence %.2f, %s), using local optimization",
				validation.ConfidenceScore, validation.ValidationMethod)
			fallback := c.compileLocal(query, flags)
			fallback.Validation = validation
			return fallback
		}
	}
	return result
}

// complete calls the backend, repeating retryable failures up to the
// configured attempt bound.
func (c *Compiler) complete(ctx context.Context, req Request) (*Response, error) {
	attempts := c.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var resp *Response
	var err error
	for attempt := 1; ; attempt++ {
		resp, err = c.backend.Complete(ctx, req)
		if err == nil || attempt >= attempts || !IsRetryable(err) || ctx.Err() != nil {
			return resp, err
		}
		logger.Debug("retrying after %s failure (attempt %d of %d): %v",
			Categorize(err), attempt, attempts, err)
		if c.retry.Delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(c.retry.Delay):
			}
		}
	}
}

// confirmMargin is the confidence band around the acceptance
// threshold inside which a heuristic verdict is confirmed with the
// LLM validator.
const confirmMargin = 0.1

func (c *Compiler) borderline(validation *SemanticResult) bool {
	diff := validation.ConfidenceScore - c.semantic.Threshold()
	if diff < 0 {
		diff = -diff
	}
	return diff < confirmMargin
}

// validateWithLLM asks the backend for a semantic-equivalence verdict
// and returns it with the cost of the exchange.
func (c *Compiler) validateWithLLM(ctx context.Context, original, optimized string) (*SemanticResult, float64, error) {
	resp, err := c.complete(ctx, Request{
		Prompt: buildValidationPrompt(original, optimized),
		Model:  c.model,
	})
	if err != nil {
		return nil, 0, err
	}
	equivalent, confidence := parseValidationResponse(resp.Text)
	cost := float64(resp.InputTokens+resp.OutputTokens) / 1000 * 0.003
	return &SemanticResult{
		IsSemanticallyEquivalent: equivalent,
		ConfidenceScore:          confidence,
		ValidationMethod:         "llm",
	}, cost, nil
}

func reductionPercent(original, optimized string) float64 {
	origTokens := estimateTokens(original)
	if origTokens == 0 {
		return 0
	}
	return float64(origTokens-estimateTokens(optimized)) / float64(origTokens) * 100
}

// CompileAsync runs Compile in the background and delivers the result
// on the returned channel.
func (c *Compiler) CompileAsync(ctx context.Context, query string, flags Flags) <-chan *Result {
	out := make(chan *Result, 1)
	go func() {
		defer close(out)
		out <- c.Compile(ctx, query, flags)
	}()
	return out
}

// CompileBatch compiles queries sequentially, preserving input order.
// A cancelled context marks the remaining queries as failed.
func (c *Compiler) CompileBatch(ctx context.Context, queries []string, flags Flags) []*Result {
	results := make([]*Result, len(queries))
	for i, query := range queries {
		select {
		case <-ctx.Done():
			results[i] = ErrorResult(ctx.Err().Error(), query, flags)
		default:
			results[i] = c.Compile(ctx, query, flags)
		}
	}
	return results
}

// CacheStats snapshots the semantic cache.
func (c *Compiler) CacheStats() CacheStatistics { return c.cache.Stats() }

// BreakerStats snapshots the circuit breaker.
func (c *Compiler) BreakerStats() BreakerStats { return c.breaker.Stats() }

// CostStats snapshots the cost controller.
func (c *Compiler) CostStats() CostStatistics { return c.cost.Stats() }
