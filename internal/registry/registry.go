// Package registry maps step identifiers to step definitions.
//
// Steps are registered once at startup under a namespace. A named reference
// "namespace.name" is split at its last dot and looked up here; direct
// references are returned unchanged.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ShayCichocki/steptest/pkg/models"
)

var (
	// ErrUnresolved matches every ResolutionError.
	ErrUnresolved = errors.New("step reference cannot be resolved")
	// ErrDuplicateStep indicates a step identity registered twice.
	ErrDuplicateStep = errors.New("duplicate step identity")
)

// Resolver turns a step reference into a concrete definition.
type Resolver interface {
	Resolve(ref models.Ref) (*models.StepDefinition, error)
}

// ResolutionError reports a reference that names no registered step.
type ResolutionError struct {
	// Ref is the reference as written.
	Ref string
	// Reason says which part of the lookup failed.
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %q: %s", e.Ref, e.Reason)
}

// Unwrap lets errors.Is match ErrUnresolved.
func (e *ResolutionError) Unwrap() error {
	return ErrUnresolved
}

// Registry holds step definitions by namespace and local name.
// It is safe for concurrent use.
type Registry struct {
	mu sync.RWMutex
	// namespaces maps namespace -> local name -> definition.
	namespaces map[string]map[string]*models.StepDefinition
	// owners maps step identity to the identifier it was registered under.
	owners map[string]string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		namespaces: make(map[string]map[string]*models.StepDefinition),
		owners:     make(map[string]string),
	}
}

// Register adds defs under namespace. Each definition is addressable as
// "namespace.<Name>". Identities must be unique across the whole registry.
func (r *Registry) Register(namespace string, defs ...*models.StepDefinition) error {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return fmt.Errorf("register: namespace is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, def := range defs {
		if def == nil || strings.TrimSpace(def.Name) == "" {
			return fmt.Errorf("register %s: step name is required", namespace)
		}
		if strings.Contains(def.Name, ".") {
			return fmt.Errorf("register %s: step name %q must not contain '.'", namespace, def.Name)
		}
		if owner, exists := r.owners[def.Name]; exists {
			return fmt.Errorf("register %s.%s: %w (already registered as %s)", namespace, def.Name, ErrDuplicateStep, owner)
		}
	}

	ns := r.namespaces[namespace]
	if ns == nil {
		ns = make(map[string]*models.StepDefinition)
		r.namespaces[namespace] = ns
	}
	for _, def := range defs {
		ns[def.Name] = def
		r.owners[def.Name] = namespace + "." + def.Name
	}
	return nil
}

// MustRegister is like Register but panics on error. Intended for static
// catalogs populated from init functions.
func (r *Registry) MustRegister(namespace string, defs ...*models.StepDefinition) {
	if err := r.Register(namespace, defs...); err != nil {
		panic(err)
	}
}

// Resolve implements Resolver.
func (r *Registry) Resolve(ref models.Ref) (*models.StepDefinition, error) {
	if def, ok := ref.Definition(); ok {
		return def, nil
	}

	id := ref.Identifier()
	namespace, name, ok := SplitIdentifier(id)
	if !ok {
		return nil, &ResolutionError{Ref: id, Reason: "expected namespace.name"}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ns, exists := r.namespaces[namespace]
	if !exists {
		return nil, &ResolutionError{Ref: id, Reason: fmt.Sprintf("unknown namespace %q", namespace)}
	}
	def, exists := ns[name]
	if !exists {
		return nil, &ResolutionError{Ref: id, Reason: fmt.Sprintf("namespace %q has no step %q", namespace, name)}
	}
	return def, nil
}

// Identifier returns the "namespace.name" a step identity is registered under.
func (r *Registry) Identifier(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.owners[name]
	return id, ok
}

// Namespaces returns the registered namespaces in sorted order.
func (r *Registry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.namespaces))
	for ns := range r.namespaces {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// All returns every registered definition sorted by identifier.
func (r *Registry) All() []*models.StepDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.owners))
	for _, id := range r.owners {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*models.StepDefinition, 0, len(ids))
	for _, id := range ids {
		namespace, name, _ := SplitIdentifier(id)
		out = append(out, r.namespaces[namespace][name])
	}
	return out
}

// Size returns the number of registered steps.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}

// SplitIdentifier splits "a.b.c" into namespace "a.b" and name "c".
func SplitIdentifier(id string) (namespace, name string, ok bool) {
	idx := strings.LastIndex(id, ".")
	if idx <= 0 || idx == len(id)-1 {
		return "", "", false
	}
	return id[:idx], id[idx+1:], true
}
