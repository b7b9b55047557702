package history

import "fmt"

// Registry is the table of named, interchangeable history backends. Like
// the rest of this core it is confined to the reactor thread and does no
// locking.
type Registry struct {
	backends map[string]Backend
	order    []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds a backend under name. Duplicate names are an error.
func (r *Registry) Register(name string, b Backend) error {
	if name == "" || b == nil {
		return fmt.Errorf("history: backend registration needs a name and a backend")
	}
	if _, exists := r.backends[name]; exists {
		return fmt.Errorf("history: backend %q already registered", name)
	}
	r.backends[name] = b
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the backend registered under name.
func (r *Registry) Lookup(name string) (Backend, bool) {
	b, ok := r.backends[name]
	return b, ok
}

// Deregister removes the named backend. Reports whether it was present.
func (r *Registry) Deregister(name string) bool {
	if _, ok := r.backends[name]; !ok {
		return false
	}
	delete(r.backends, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Names lists registered backends in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}
