// Package graph provides the relation graph between registered steps.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ShayCichocki/steptest/internal/registry"
	"github.com/ShayCichocki/steptest/pkg/models"
)

// ErrCycleDetected indicates a circular relation was found between steps.
var ErrCycleDetected = errors.New("circular relation detected")

// Direction names the relation list a reciprocity check looks in.
type Direction string

const (
	// DirectionDependencies is the parent side of a step.
	DirectionDependencies Direction = "dependencies"
	// DirectionChildren is the child side of a step.
	DirectionChildren Direction = "children"
)

// Asymmetry is a relation declared on one side only.
type Asymmetry struct {
	// Step declares the relation.
	Step string
	// Other is the step on the far side of the relation.
	Other string
	// Missing is the list on Other that should mention Step.
	Missing Direction
}

func (a Asymmetry) String() string {
	return fmt.Sprintf("%s does not list %s in its %s", a.Other, a.Step, a.Missing)
}

// RelationGraph represents steps as nodes addressed by identity. An edge
// a -> b means "a runs before b", whether it came from b's dependencies or
// from a's children.
type RelationGraph struct {
	mu sync.RWMutex
	// nodes maps step identity to its definition.
	nodes map[string]*models.StepDefinition
	// deps maps step identity to the identities it declares as dependencies.
	deps map[string][]string
	// children maps step identity to the identities it declares as children.
	children map[string][]string
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty relation graph.
func New() *RelationGraph {
	return &RelationGraph{
		nodes:    make(map[string]*models.StepDefinition),
		deps:     make(map[string][]string),
		children: make(map[string][]string),
		debugLog: func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (g *RelationGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the graph from defs, resolving every relation through r.
// Related steps that are not in defs are added as nodes too.
func (g *RelationGraph) Build(defs []*models.StepDefinition, r registry.Resolver) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.Build] building graph from %d steps", len(defs))

	pending := append([]*models.StepDefinition(nil), defs...)
	for len(pending) > 0 {
		def := pending[0]
		pending = pending[1:]
		if _, seen := g.nodes[def.Name]; seen {
			continue
		}
		g.nodes[def.Name] = def

		for _, ref := range def.Dependencies {
			dep, err := r.Resolve(ref)
			if err != nil {
				return fmt.Errorf("step %s dependency: %w", def.Name, err)
			}
			g.deps[def.Name] = append(g.deps[def.Name], dep.Name)
			pending = append(pending, dep)
		}
		for _, ref := range def.Children {
			child, err := r.Resolve(ref)
			if err != nil {
				return fmt.Errorf("step %s child: %w", def.Name, err)
			}
			g.children[def.Name] = append(g.children[def.Name], child.Name)
			pending = append(pending, child)
		}
	}

	g.debugLog("[graph.Build] graph built with %d nodes", len(g.nodes))
	return nil
}

// Size returns the number of steps in the graph.
func (g *RelationGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// GetStep returns the definition for an identity, or nil if not found.
func (g *RelationGraph) GetStep(name string) *models.StepDefinition {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[name]
}

// GetDependencies returns the identities a step declares as dependencies.
func (g *RelationGraph) GetDependencies(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.deps[name]
}

// GetChildren returns the identities a step declares as children.
func (g *RelationGraph) GetChildren(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.children[name]
}

// Asymmetries returns every relation not declared on both sides, sorted by
// declaring step.
func (g *RelationGraph) Asymmetries() []Asymmetry {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Asymmetry
	for _, name := range g.sortedNamesLocked() {
		for _, child := range g.children[name] {
			if !contains(g.deps[child], name) {
				out = append(out, Asymmetry{Step: name, Other: child, Missing: DirectionDependencies})
			}
		}
		for _, dep := range g.deps[name] {
			if !contains(g.children[dep], name) {
				out = append(out, Asymmetry{Step: name, Other: dep, Missing: DirectionChildren})
			}
		}
	}
	return out
}

// HasCycle returns true if following "runs before" edges can revisit a step.
func (g *RelationGraph) HasCycle() bool {
	return len(g.FindCycle()) > 0
}

// CheckAcyclic returns ErrCycleDetected, wrapped with the offending path, when
// the graph has a cycle.
func (g *RelationGraph) CheckAcyclic() error {
	if cycle := g.FindCycle(); len(cycle) > 0 {
		return fmt.Errorf("%w: %s", ErrCycleDetected, strings.Join(cycle, " -> "))
	}
	return nil
}

// FindCycle returns one cycle as a list of identities whose first and last
// elements are equal, or nil when the graph is acyclic.
// Uses depth-first search with coloring to detect back edges.
func (g *RelationGraph) FindCycle() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.nodes))
	var stack []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		colors[name] = 1
		stack = append(stack, name)

		for _, next := range g.successorsLocked(name) {
			switch colors[next] {
			case 1:
				// Back edge: the cycle is the stack suffix starting at next.
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == next {
						cycle = append(append([]string(nil), stack[i:]...), next)
						break
					}
				}
				return true
			case 0:
				if visit(next) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[name] = 2
		return false
	}

	for _, name := range g.sortedNamesLocked() {
		if colors[name] == 0 && visit(name) {
			return cycle
		}
	}
	return nil
}

// successorsLocked returns the steps that run right after name.
func (g *RelationGraph) successorsLocked(name string) []string {
	var out []string
	out = append(out, g.children[name]...)
	for other, deps := range g.deps {
		if contains(deps, name) && !contains(out, other) {
			out = append(out, other)
		}
	}
	sort.Strings(out)
	return out
}

func (g *RelationGraph) sortedNamesLocked() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lists reports whether any of refs resolves to a step with identity name.
func Lists(r registry.Resolver, refs []models.Ref, name string) (bool, error) {
	for _, ref := range refs {
		def, err := r.Resolve(ref)
		if err != nil {
			return false, err
		}
		if def.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// Reciprocates reports whether other lists step in the given direction.
func Reciprocates(r registry.Resolver, other *models.StepDefinition, dir Direction, step string) (bool, error) {
	switch dir {
	case DirectionChildren:
		return Lists(r, other.Children, step)
	case DirectionDependencies:
		return Lists(r, other.Dependencies, step)
	default:
		return false, fmt.Errorf("unknown direction %q", dir)
	}
}

func contains(list []string, name string) bool {
	for _, s := range list {
		if s == name {
			return true
		}
	}
	return false
}
