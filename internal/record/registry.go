package record

import (
	"fmt"
	"slices"
	"sync"

	dErrors "agentwallet/pkg/domain-errors"
)

var (
	// ErrTypeMismatch reports a stored record whose type differs from the one requested.
	ErrTypeMismatch = dErrors.New(dErrors.CodeTypeMismatch, "record type mismatch")
	// ErrUnknownType reports a type name with no registered factory.
	ErrUnknownType = dErrors.New(dErrors.CodeTypeMismatch, "unknown record type")
)

// Factory allocates an empty record of one variant.
type Factory func() Record

// Registry maps type names to factories so stored bodies decode into the
// right variant without reflection.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry knows every variant defined in this package.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(func() Record { return NewConnectionRecord("") })
	r.MustRegister(func() Record { return NewCredentialRecord("") })
	return r
}

// Register adds f under the type name of the records it builds.
func (r *Registry) Register(f Factory) error {
	name := f().TypeName()
	if name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "record type name cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("record type %q already registered", name))
	}
	r.factories[name] = f
	return nil
}

// MustRegister is Register for package initialisation; it panics on error.
func (r *Registry) MustRegister(f Factory) {
	if err := r.Register(f); err != nil {
		panic(err)
	}
}

// New allocates an empty record of typeName.
func (r *Registry) New(typeName string) (Record, error) {
	r.mu.RLock()
	f, ok := r.factories[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
	}
	return f(), nil
}

// Types lists registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
