package optimize

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker's current disposition.
type BreakerState int

const (
	// BreakerClosed allows all requests.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects all requests until the timeout elapses.
	BreakerOpen
	// BreakerHalfOpen allows probe requests to test recovery.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// BreakerConfig tunes the circuit breaker.
type BreakerConfig struct {
	// FailureThreshold opens the breaker after this many consecutive
	// failures.
	FailureThreshold int
	// SuccessThreshold closes a half-open breaker after this many
	// consecutive successes.
	SuccessThreshold int
	// Timeout is how long an open breaker waits before probing.
	Timeout time.Duration
	// FailureRateThreshold opens the breaker when the rolling-window
	// failure rate reaches this fraction.
	FailureRateThreshold float64
	// MinimumRequests gates the failure-rate rule so a short burst of
	// errors on low traffic does not trip it.
	MinimumRequests int
	// RollingWindow bounds the request history considered for the
	// failure rate.
	RollingWindow time.Duration
}

// DefaultBreakerConfig returns the stock breaker tuning.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:     5,
		SuccessThreshold:     3,
		Timeout:              30 * time.Second,
		FailureRateThreshold: 0.5,
		MinimumRequests:      10,
		RollingWindow:        time.Minute,
	}
}

// BreakerStats snapshots breaker health.
type BreakerStats struct {
	State                BreakerState
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	TotalRequests        int64
	TotalFailures        int64
	WindowFailureRate    float64
	LastStateChange      time.Time
}

type breakerSample struct {
	at      time.Time
	failure bool
}

// CircuitBreaker protects LLM calls from a failing provider.
type CircuitBreaker struct {
	cfg BreakerConfig

	mu                   sync.Mutex
	state                BreakerState
	consecutiveFailures  int
	consecutiveSuccesses int
	totalRequests        int64
	totalFailures        int64
	lastStateChange      time.Time
	openedAt             time.Time
	history              []breakerSample
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = DefaultBreakerConfig().SuccessThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultBreakerConfig().Timeout
	}
	if cfg.RollingWindow <= 0 {
		cfg.RollingWindow = DefaultBreakerConfig().RollingWindow
	}
	return &CircuitBreaker{cfg: cfg, state: BreakerClosed, lastStateChange: time.Now()}
}

// CanExecute reports whether a request may proceed. An open breaker
// whose timeout has elapsed transitions to half-open and allows the
// probe.
func (b *CircuitBreaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		if time.Since(b.openedAt) >= b.cfg.Timeout {
			b.transitionLocked(BreakerHalfOpen)
			return true
		}
		return false
	}
	return false
}

// RecordSuccess notes a successful request.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalRequests++
	b.consecutiveFailures = 0
	b.consecutiveSuccesses++
	b.record(false)
	if b.state == BreakerHalfOpen && b.consecutiveSuccesses >= b.cfg.SuccessThreshold {
		b.transitionLocked(BreakerClosed)
	}
}

// RecordFailure notes a failed request, opening the breaker when the
// consecutive-failure threshold or the rolling failure rate is
// reached. A half-open breaker reopens on any failure.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalRequests++
	b.totalFailures++
	b.consecutiveSuccesses = 0
	b.consecutiveFailures++
	b.record(true)

	if b.state == BreakerHalfOpen {
		b.openLocked()
		return
	}
	if b.consecutiveFailures >= b.cfg.FailureThreshold {
		b.openLocked()
		return
	}
	total, failures := b.windowCountsLocked()
	if b.cfg.FailureRateThreshold > 0 && total >= b.cfg.MinimumRequests {
		if float64(failures)/float64(total) >= b.cfg.FailureRateThreshold {
			b.openLocked()
		}
	}
}

// ForceOpen opens the breaker regardless of history.
func (b *CircuitBreaker) ForceOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openLocked()
}

// Reset closes the breaker and clears all history.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0
	b.history = nil
	b.transitionLocked(BreakerClosed)
}

// State returns the current state without affecting it.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats snapshots breaker health.
func (b *CircuitBreaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	total, failures := b.windowCountsLocked()
	rate := 0.0
	if total > 0 {
		rate = float64(failures) / float64(total)
	}
	return BreakerStats{
		State:                b.state,
		ConsecutiveFailures:  b.consecutiveFailures,
		ConsecutiveSuccesses: b.consecutiveSuccesses,
		TotalRequests:        b.totalRequests,
		TotalFailures:        b.totalFailures,
		WindowFailureRate:    rate,
		LastStateChange:      b.lastStateChange,
	}
}

func (b *CircuitBreaker) openLocked() {
	b.openedAt = time.Now()
	b.consecutiveSuccesses = 0
	b.transitionLocked(BreakerOpen)
}

func (b *CircuitBreaker) transitionLocked(state BreakerState) {
	if b.state == state {
		return
	}
	b.state = state
	b.lastStateChange = time.Now()
	if state == BreakerClosed {
		b.consecutiveFailures = 0
	}
}

func (b *CircuitBreaker) record(failure bool) {
	b.history = append(b.history, breakerSample{at: time.Now(), failure: failure})
	b.pruneLocked()
}

func (b *CircuitBreaker) pruneLocked() {
	cutoff := time.Now().Add(-b.cfg.RollingWindow)
	idx := 0
	for idx < len(b.history) && b.history[idx].at.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		b.history = append([]breakerSample(nil), b.history[idx:]...)
	}
}

func (b *CircuitBreaker) windowCountsLocked() (total, failures int) {
	b.pruneLocked()
	for _, s := range b.history {
		total++
		if s.failure {
			failures++
		}
	}
	return total, failures
}
