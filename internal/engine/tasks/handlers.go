package tasks

import (
	"context"
	"errors"
	"sync"

	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/zerr"
)

// Request is one action invocation passed down a handler chain.
type Request struct {
	Action  domain.Action
	Module  *domain.Module
	Key     domain.TaskKey
	Version string
	// Env is added to the environment of the module command.
	Env  map[string]string
	Deps map[domain.TaskKey]*domain.TaskResult
}

// Next invokes the rest of a handler chain.
type Next func(ctx context.Context, req *Request) (any, error)

// Handler processes a request. It decides whether and how to call next.
type Handler func(ctx context.Context, req *Request, next Next) (any, error)

// Handlers holds an ordered handler chain per action on top of a shared base.
// Handlers registered later wrap those registered earlier.
type Handlers struct {
	mu     sync.RWMutex
	chains map[domain.Action][]Handler
	base   Next
}

// NewHandlers creates handler chains that end in base.
func NewHandlers(base Next) *Handlers {
	return &Handlers{chains: make(map[domain.Action][]Handler), base: base}
}

// Register adds h as the outermost handler for action.
func (h *Handlers) Register(action domain.Action, handler Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chains[action] = append(h.chains[action], handler)
}

// Handle runs the chain for req.Action.
func (h *Handlers) Handle(ctx context.Context, req *Request) (any, error) {
	h.mu.RLock()
	chain := h.chains[req.Action]
	h.mu.RUnlock()

	next := h.base
	for _, handler := range chain {
		inner := next
		next = func(ctx context.Context, req *Request) (any, error) {
			return handler(ctx, req, inner)
		}
	}
	return next(ctx, req)
}

// Status turns the outcome of a module status command into a StatusOutput.
// A failing command means the service is unhealthy, not that the task failed.
func Status() Handler {
	return func(ctx context.Context, req *Request, next Next) (any, error) {
		if _, ok := req.Module.Action(domain.ActionStatus); !ok {
			return StatusOutput{Module: req.Module.Name, State: ServiceUnknown}, nil
		}

		_, err := next(ctx, req)
		switch {
		case err == nil:
			return StatusOutput{Module: req.Module.Name, State: ServiceReady}, nil
		case errors.Is(err, domain.ErrCommandFailed):
			return StatusOutput{Module: req.Module.Name, State: ServiceUnhealthy}, nil
		default:
			return nil, err
		}
	}
}

// Retry calls next up to attempts times while retryable reports true for the error.
func Retry(attempts int, retryable func(error) bool) Handler {
	return func(ctx context.Context, req *Request, next Next) (any, error) {
		var err error
		for attempt := 1; attempt <= attempts; attempt++ {
			var out any
			out, err = next(ctx, req)
			if err == nil || !retryable(err) || ctx.Err() != nil {
				return out, err
			}
		}
		return nil, zerr.With(err, "attempts", attempts)
	}
}

// Transient reports whether err is a timeout and therefore worth one more attempt.
func Transient(err error) bool {
	return domain.Category(err) == domain.CategoryTimeout
}
