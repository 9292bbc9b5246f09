package transaction

import "sync"

// Registry tracks the ids of pending transactions so that a caller can show
// whether any transaction is in flight. It plays no part in commit or
// rollback correctness. Safe for concurrent use.
type Registry struct {
	mu  sync.Mutex
	ids []string
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds id if it is not already present.
func (r *Registry) Register(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.ids {
		if existing == id {
			return
		}
	}
	r.ids = append(r.ids, id)
}

func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.ids {
		if existing == id {
			r.ids = append(r.ids[:i], r.ids[i+1:]...)
			return
		}
	}
}

// Active returns the registered ids in registration order.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func (r *Registry) IsActive() bool { return r.Count() > 0 }
