package backend

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Router tracks per-model health and picks a replacement when the
// current model keeps failing. Failed models enter a cooldown so a
// failover does not bounce straight back.
type Router struct {
	registry *Registry
	current  *ModelConfig
	stats    map[string]*modelStats
	cooldown map[string]time.Time
	period   time.Duration
	mu       sync.RWMutex
}

type modelStats struct {
	successCount int
	failureCount int
	lastSuccess  time.Time
	lastFailure  time.Time
}

// NewRouter creates a router starting on the registry's default model.
func NewRouter(registry *Registry, cooldown time.Duration) *Router {
	return &Router{
		registry: registry,
		current:  registry.DefaultModel(),
		stats:    make(map[string]*modelStats),
		cooldown: make(map[string]time.Time),
		period:   cooldown,
	}
}

// Current returns the model in use.
func (r *Router) Current() *ModelConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Switch moves to the named model. Unless forced, a cooling-down
// model is refused.
func (r *Router) Switch(name string, force bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	model, ok := r.registry.GetModel(name)
	if !ok {
		return fmt.Errorf("model not found: %s", name)
	}
	if !force && r.inCooldownLocked(name) {
		return fmt.Errorf("model %s is in cooldown", name)
	}
	r.current = model
	return nil
}

// RecordSuccess notes a completed request for the model.
func (r *Router) RecordSuccess(model *ModelConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.statsLocked(model.Name)
	s.successCount++
	s.lastSuccess = time.Now()
}

// RecordFailure notes a failed request and puts the model in cooldown.
func (r *Router) RecordFailure(model *ModelConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.statsLocked(model.Name)
	s.failureCount++
	s.lastFailure = time.Now()
	r.cooldown[model.Name] = time.Now().Add(r.period)
}

// Failover picks the best available model: closest capability tier to
// the current model, then matching speed, then higher tier, then
// fewest recorded failures. Cooling-down models are skipped.
func (r *Router) Failover() (*ModelConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	currentRank := 0
	if r.current != nil {
		currentRank = r.current.TierRank()
	}

	type candidate struct {
		model      *ModelConfig
		tierRank   int
		speedMatch bool
		failures   int
	}
	var candidates []candidate
	for _, m := range r.registry.ListModels() {
		if r.inCooldownLocked(m.Name) {
			continue
		}
		failures := 0
		if s := r.stats[m.Name]; s != nil {
			failures = s.failureCount
		}
		candidates = append(candidates, candidate{
			model:      m,
			tierRank:   m.TierRank(),
			speedMatch: r.current != nil && m.Speed == r.current.Speed,
			failures:   failures,
		})
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no available models for failover")
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		aDist := abs(a.tierRank - currentRank)
		bDist := abs(b.tierRank - currentRank)
		if aDist != bDist {
			return aDist < bDist
		}
		if a.speedMatch != b.speedMatch {
			return a.speedMatch
		}
		if a.tierRank != b.tierRank {
			return a.tierRank > b.tierRank
		}
		return a.failures < b.failures
	})

	r.current = candidates[0].model
	return r.current, nil
}

// InCooldown reports whether the named model is cooling down.
func (r *Router) InCooldown(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.inCooldownLocked(name)
}

func (r *Router) inCooldownLocked(name string) bool {
	until, ok := r.cooldown[name]
	return ok && time.Now().Before(until)
}

func (r *Router) statsLocked(name string) *modelStats {
	s, ok := r.stats[name]
	if !ok {
		s = &modelStats{}
		r.stats[name] = s
	}
	return s
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
