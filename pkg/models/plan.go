package models

import "strings"

// Plan is one concrete ordered path through the relation graph.
type Plan []Ref

// Clone returns a copy of p that shares no backing array with it.
func (p Plan) Clone() Plan {
	out := make(Plan, len(p))
	copy(out, p)
	return out
}

// First returns the first step reference of the plan.
func (p Plan) First() Ref {
	if len(p) == 0 {
		return Ref{}
	}
	return p[0]
}

// Last returns the last step reference of the plan.
func (p Plan) Last() Ref {
	if len(p) == 0 {
		return Ref{}
	}
	return p[len(p)-1]
}

// Prepend returns a new plan with ref in front of p.
func (p Plan) Prepend(ref Ref) Plan {
	out := make(Plan, 0, len(p)+1)
	out = append(out, ref)
	return append(out, p...)
}

// Append returns a new plan with ref after p.
func (p Plan) Append(ref Ref) Plan {
	out := make(Plan, 0, len(p)+1)
	out = append(out, p...)
	return append(out, ref)
}

// String renders the plan as "a -> b -> c".
func (p Plan) String() string {
	names := make([]string, 0, len(p))
	for _, ref := range p {
		names = append(names, ref.String())
	}
	return strings.Join(names, " -> ")
}

// Root is one element of a preparation batch. A root either names a single
// step, whose plans are enumerated, or carries an explicit plan that is taken
// verbatim.
type Root struct {
	ref  Ref
	plan Plan
}

// RootOf returns a root that triggers enumeration from ref.
func RootOf(ref Ref) Root {
	return Root{ref: ref}
}

// ExplicitPlan returns a root holding a fully specified plan.
func ExplicitPlan(refs ...Ref) Root {
	return Root{plan: Plan(refs).Clone()}
}

// IsExplicit reports whether the root carries a prebuilt plan.
func (r Root) IsExplicit() bool {
	return r.plan != nil
}

// Ref returns the step the root enumerates from.
func (r Root) Ref() Ref {
	return r.ref
}

// Plan returns a copy of the explicit plan.
func (r Root) Plan() Plan {
	return r.plan.Clone()
}

// String implements fmt.Stringer.
func (r Root) String() string {
	if r.IsExplicit() {
		return "[" + r.plan.String() + "]"
	}
	return r.ref.String()
}
