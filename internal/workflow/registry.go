package workflow

import "sync"

// Registry tracks artifacts that currently have a running job.
type Registry struct {
	mu       sync.Mutex
	inFlight map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{inFlight: make(map[string]string)}
}

// Acquire claims key for jobID. It returns false when another job holds key.
func (r *Registry) Acquire(key, jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inFlight[key]; busy {
		return false
	}
	r.inFlight[key] = jobID
	return true
}

// Release frees key if jobID still holds it.
func (r *Registry) Release(key, jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight[key] == jobID {
		delete(r.inFlight, key)
	}
}

// Holder returns the job holding key.
func (r *Registry) Holder(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.inFlight[key]
	return id, ok
}

// Len returns the number of in-flight artifacts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inFlight)
}
