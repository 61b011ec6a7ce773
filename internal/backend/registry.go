package backend

import (
	"context"
	"fmt"
	"sync"
)

// Registry routes action types to backends.
type Registry struct {
	backends map[string]Backend
	fallback Backend
	mu       sync.RWMutex
}

// NewRegistry creates a registry with the built-in wait and verify handlers
// pre-registered.
func NewRegistry() *Registry {
	r := &Registry{backends: make(map[string]Backend)}
	r.MustRegister("wait", HandlerFunc(WaitHandler))
	r.MustRegister("verify", HandlerFunc(VerifyHandler))
	return r
}

// Register binds a backend to an action type. Registering an already-bound
// type is an error.
func (r *Registry) Register(actionType string, b Backend) error {
	if b == nil {
		return fmt.Errorf("cannot register nil backend")
	}
	if actionType == "" {
		return fmt.Errorf("action type cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[actionType]; exists {
		return fmt.Errorf("action type already registered: %s", actionType)
	}
	r.backends[actionType] = b
	return nil
}

// MustRegister registers a backend and panics on error.
func (r *Registry) MustRegister(actionType string, b Backend) {
	if err := r.Register(actionType, b); err != nil {
		panic(err)
	}
}

// RegisterBackend fans one backend out over a list of action types.
func (r *Registry) RegisterBackend(b Backend, actionTypes ...string) error {
	for _, t := range actionTypes {
		if err := r.Register(t, b); err != nil {
			return err
		}
	}
	return nil
}

// SetFallback installs a backend used for action types with no explicit
// registration. A nil fallback restores strict routing.
func (r *Registry) SetFallback(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = b
}

// Unregister removes the binding for an action type.
func (r *Registry) Unregister(actionType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.backends, actionType)
}

// Get returns the backend for an action type, falling back to the registered
// fallback. Returns nil if neither exists.
func (r *Registry) Get(actionType string) Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.backends[actionType]; ok {
		return b
	}
	return r.fallback
}

// Has reports whether an action type is explicitly registered.
func (r *Registry) Has(actionType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.backends[actionType]
	return exists
}

// Types returns all explicitly registered action types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.backends))
	for t := range r.backends {
		types = append(types, t)
	}
	return types
}

// Count returns the number of explicit registrations.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.backends)
}

// Dispatch routes one action to its backend. Unknown action types yield a
// NotFoundError. Registry itself satisfies Backend so it can be handed to
// the engine directly.
func (r *Registry) Dispatch(ctx context.Context, actionType string, params map[string]any) (bool, error) {
	b := r.Get(actionType)
	if b == nil {
		return false, NewNotFoundError(actionType)
	}
	return b.Dispatch(ctx, actionType, params)
}
