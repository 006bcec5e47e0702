package session

import "sync"

// Registry holds one live engine per dashboard client id, created on demand.
type Registry struct {
	mu      sync.Mutex
	engines map[string]*Engine
	factory func(clientID string) *Engine
}

func NewRegistry(factory func(clientID string) *Engine) *Registry {
	return &Registry{
		engines: make(map[string]*Engine),
		factory: factory,
	}
}

func (r *Registry) Get(clientID string) *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.engines[clientID]; ok {
		return e
	}
	e := r.factory(clientID)
	r.engines[clientID] = e
	return e
}
