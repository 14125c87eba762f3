// Package models defines the step, plan and memory types shared by the planner,
// the runner and production code under test.
package models

import "strings"

// Action is a callable unit of behavior: either the real implementation a call
// site would run, or a test double standing in for it.
type Action func(args ...any) (any, error)

// Injector is the surface production code consults at each substitution point.
// It is implemented by substitute.Context; a nil or disabled injector always
// runs the fallback.
type Injector interface {
	// Inject runs the active step's capability called name when one exists,
	// otherwise fallback. Both receive args.
	Inject(name string, fallback Action, args ...any) (any, error)
	// Override is the same call under the name later production code uses.
	Override(name string, fallback Action, args ...any) (any, error)
	// ReturnValue returns its argument unchanged.
	ReturnValue(args ...any) (any, error)
}

// Trigger is the production entry point a step exercises.
type Trigger func(sc Injector, params map[string]any) error

// StepDefinition is a named, reusable unit of test behavior.
// Only Name is required.
type StepDefinition struct {
	// Name is the identity used for deduplication, logging and loop counting.
	Name string
	// Dependencies lists steps that must run before this one.
	Dependencies []Ref
	// Children lists steps that may run after this one.
	Children []Ref
	// Trigger is the production action this step exercises.
	Trigger Trigger
	// Params are passed to Trigger.
	Params map[string]any
	// Capabilities are the test doubles exposed by the declarative instance.
	Capabilities Capabilities
	// Memory is the step's contribution to shared state. nil means the step
	// is memory-agnostic.
	Memory Memory
	// FinalCheck runs after Trigger. A non-nil error fails the scenario.
	FinalCheck func(mem Memory) error
	// New builds a custom instance. It receives the step's initial memory
	// (nil for memory-agnostic steps). When nil, a declarative instance is
	// built from the fields above.
	New func(mem Memory) any
}

// ID returns the step identity.
func (d *StepDefinition) ID() string {
	if d == nil {
		return ""
	}
	return d.Name
}

// HasDependencies reports whether the step declares at least one dependency.
func (d *StepDefinition) HasDependencies() bool {
	return d != nil && len(d.Dependencies) > 0
}

// HasChildren reports whether the step declares at least one child.
func (d *StepDefinition) HasChildren() bool {
	return d != nil && len(d.Children) > 0
}

// UsesMemory reports whether the step takes part in memory threading.
func (d *StepDefinition) UsesMemory() bool {
	return d != nil && d.Memory != nil
}

// String implements fmt.Stringer.
func (d *StepDefinition) String() string {
	return d.ID()
}

// Ref points at a step either directly or by "namespace.name" identifier.
type Ref struct {
	def *StepDefinition
	id  string
}

// Use returns a direct reference to def.
func Use(def *StepDefinition) Ref {
	return Ref{def: def}
}

// Named returns a reference resolved later through a registry.
func Named(id string) Ref {
	return Ref{id: strings.TrimSpace(id)}
}

// Definition returns the referenced definition if the reference is direct.
func (r Ref) Definition() (*StepDefinition, bool) {
	return r.def, r.def != nil
}

// Identifier returns the identifier string of a named reference.
func (r Ref) Identifier() string {
	return r.id
}

// IsZero reports whether r references nothing.
func (r Ref) IsZero() bool {
	return r.def == nil && r.id == ""
}

// String implements fmt.Stringer.
func (r Ref) String() string {
	if r.def != nil {
		return r.def.Name
	}
	return r.id
}

// Refs converts definitions into direct references.
func Refs(defs ...*StepDefinition) []Ref {
	refs := make([]Ref, 0, len(defs))
	for _, d := range defs {
		refs = append(refs, Use(d))
	}
	return refs
}

// NamedRefs converts identifiers into named references.
func NamedRefs(ids ...string) []Ref {
	refs := make([]Ref, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, Named(id))
	}
	return refs
}
