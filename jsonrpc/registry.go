package jsonrpc

import (
	"maps"
	"slices"
)

// Registry maps method names to capabilities. It is immutable once built and
// safe for concurrent use.
type Registry struct {
	methods map[string]Capability
}

// NewRegistry copies methods into a new Registry. It panics on an empty name
// or a nil capability.
func NewRegistry(methods map[string]Capability) *Registry {
	r := &Registry{methods: make(map[string]Capability, len(methods))}
	for name, c := range methods {
		if name == "" {
			panic("jsonrpc: empty method name")
		}
		if c == nil {
			panic("jsonrpc: nil capability for method " + name)
		}
		r.methods[name] = c
	}
	return r
}

// Lookup returns the capability registered under name.
func (r *Registry) Lookup(name string) (Capability, bool) {
	if r == nil {
		return nil, false
	}
	c, ok := r.methods[name]
	return c, ok
}

// Methods returns the registered method names in sorted order.
func (r *Registry) Methods() []string {
	if r == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(r.methods))
}
