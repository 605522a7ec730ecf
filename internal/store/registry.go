package store

import (
	"fmt"
	"path/filepath"
	"sync"
)

// Registry hands out shared Store instances keyed by canonicalized storage
// location. Two callers opening the same path observe one consistent Store;
// different paths get independent instances that never block each other.
//
// The registry is an explicit object owned by the hosting application, not
// package-level state: hosts create one at startup and pass it to whatever
// needs store handles.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]*Store)}
}

// Open returns the shared Store for path, loading its document on first use.
// The path is canonicalized (absolute, cleaned) so spellings of the same
// location map to the same instance.
func (r *Registry) Open(path string) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("store: resolve %s: %w", path, err)
	}
	abs = filepath.Clean(abs)

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[abs]; ok {
		return s, nil
	}
	s := open(abs)
	r.stores[abs] = s
	return s, nil
}

// Len returns the number of open stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}
