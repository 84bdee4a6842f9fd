package relay

import "sync"

// Registry tracks the process-wide count of connected clients,
// independent of meeting membership. It never fails: a disconnect
// racing a connect floors the counter at zero instead of going
// negative.
type Registry struct {
	mu    sync.Mutex
	count int
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Connect increments the counter and returns the new total.
func (r *Registry) Connect() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return r.count
}

// Disconnect decrements the counter and returns the new total.
func (r *Registry) Disconnect() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count > 0 {
		r.count--
	}
	return r.count
}

// Count returns the current total.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
