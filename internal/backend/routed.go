package backend

import (
	"context"
	"sync"
	"time"

	"github.com/dbjwhs/cql-sub000/internal/logger"
	"github.com/dbjwhs/cql-sub000/internal/optimize"
)

// DefaultCooldown keeps a failed model out of rotation long enough for
// transient provider trouble to pass.
const DefaultCooldown = 5 * time.Minute

// Routed is an optimizer backend that follows the router's current
// model. A failed request records the failure, fails over, and retries
// once on the replacement.
type Routed struct {
	registry *Registry
	router   *Router

	mu       sync.Mutex
	backends map[string]optimize.Backend
}

// NewRouted creates a routed backend over the registry, starting on
// its default model.
func NewRouted(registry *Registry, cooldown time.Duration) *Routed {
	return &Routed{
		registry: registry,
		router:   NewRouter(registry, cooldown),
		backends: make(map[string]optimize.Backend),
	}
}

// Router exposes the underlying router for health inspection.
func (rb *Routed) Router() *Router { return rb.router }

func (rb *Routed) backendFor(model *ModelConfig) (optimize.Backend, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if b, ok := rb.backends[model.Name]; ok {
		return b, nil
	}
	b, _, err := rb.registry.Build(model.Name)
	if err != nil {
		return nil, err
	}
	rb.backends[model.Name] = b
	return b, nil
}

// Complete sends the request through the current model, falling over
// to the best available replacement on failure. The request's model is
// always the routed model's code.
func (rb *Routed) Complete(ctx context.Context, req optimize.Request) (*optimize.Response, error) {
	model := rb.router.Current()
	resp, err := rb.completeOn(ctx, model, req)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	next, ferr := rb.router.Failover()
	if ferr != nil || next.Name == model.Name {
		return nil, err
	}
	logger.Warn("model %s failed, failing over to %s: %v", model.Name, next.Name, err)
	return rb.completeOn(ctx, next, req)
}

func (rb *Routed) completeOn(ctx context.Context, model *ModelConfig, req optimize.Request) (*optimize.Response, error) {
	b, err := rb.backendFor(model)
	if err != nil {
		return nil, err
	}
	req.Model = model.Code
	resp, err := b.Complete(ctx, req)
	if err != nil {
		rb.router.RecordFailure(model)
		return nil, err
	}
	rb.router.RecordSuccess(model)
	return resp, nil
}

// Configured reports whether the current model's backend holds a key.
func (rb *Routed) Configured() bool {
	model := rb.router.Current()
	if model == nil {
		return false
	}
	b, err := rb.backendFor(model)
	return err == nil && b.Configured()
}

// Name identifies the provider currently in use.
func (rb *Routed) Name() string {
	model := rb.router.Current()
	if model == nil {
		return "none"
	}
	if b, err := rb.backendFor(model); err == nil {
		return b.Name()
	}
	return model.Provider
}
