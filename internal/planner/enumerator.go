// Package planner enumerates execution plans from step relations.
//
// A plan is grown from a single root in two passes. The parent pass keeps
// prepending dependencies of the first step until no first step declares any;
// the child pass then keeps appending children of the last step. Each pass
// branches according to its expansion policy and every round is checked by a
// LoopGuard, which is what guarantees termination on cyclic relations.
package planner

import (
	"fmt"
	"math/rand/v2"

	"github.com/ShayCichocki/steptest/internal/config"
	"github.com/ShayCichocki/steptest/internal/graph"
	"github.com/ShayCichocki/steptest/internal/registry"
	"github.com/ShayCichocki/steptest/pkg/models"
)

// Enumerator builds every plan implied by a root step's relations.
type Enumerator struct {
	resolver registry.Resolver
	settings config.Settings
	rng      *rand.Rand
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
	// report prints verbose diagnostics at an indentation level.
	report func(level int, format string, args ...interface{})
}

// NewEnumerator creates an enumerator using the expansion policies, loop
// limit and verbosity of s.
func NewEnumerator(r registry.Resolver, s config.Settings) *Enumerator {
	return &Enumerator{
		resolver: r,
		settings: s,
		debugLog: func(format string, args ...interface{}) {},
		report:   func(level int, format string, args ...interface{}) {},
	}
}

// SetRand sets the random source used by the random policy. A nil source
// uses the process-wide generator.
func (e *Enumerator) SetRand(rng *rand.Rand) {
	e.rng = rng
}

// SetDebugLog sets the debug logging function.
func (e *Enumerator) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		e.debugLog = fn
	}
}

// SetReporter sets the function receiving verbose diagnostics.
func (e *Enumerator) SetReporter(fn func(level int, format string, args ...interface{})) {
	if fn != nil {
		e.report = fn
	}
}

// CreateExecutionPlans returns every plan containing root. Parent expansion
// runs to a fixed point before child expansion starts.
func (e *Enumerator) CreateExecutionPlans(root models.Ref) ([]models.Plan, error) {
	def, err := e.resolver.Resolve(root)
	if err != nil {
		return nil, err
	}

	e.debugLog("[planner.CreateExecutionPlans] root=%s parents=%s children=%s limit=%d",
		def.Name, e.settings.ParentExpansion, e.settings.ChildrenExpansion, e.settings.LoopLimit)
	if e.settings.Verbose {
		e.report(0, "Checking relationships...")
	}

	plans := []models.Plan{{models.Use(def)}}
	plans, err = e.ExpandParents(plans)
	if err != nil {
		return nil, err
	}
	plans, err = e.ExpandChildren(plans)
	if err != nil {
		return nil, err
	}

	e.debugLog("[planner.CreateExecutionPlans] root=%s produced %d plans", def.Name, len(plans))
	return plans, nil
}

// ExpandParents prepends dependencies until no plan starts with a step that
// declares any.
func (e *Enumerator) ExpandParents(plans []models.Plan) ([]models.Plan, error) {
	return e.expand(plans, parentSide)
}

// ExpandChildren appends children until no plan ends with a step that
// declares any.
func (e *Enumerator) ExpandChildren(plans []models.Plan) ([]models.Plan, error) {
	return e.expand(plans, childSide)
}

// side describes one expansion direction.
type side struct {
	name string
	// edge returns the step plans grow from.
	edge func(models.Plan) models.Ref
	// relations returns the related steps of def in this direction.
	relations func(def *models.StepDefinition) []models.Ref
	// grow attaches a related step to the plan.
	grow func(p models.Plan, ref models.Ref) models.Plan
	// reverse is the list the related step should mention the edge step in.
	reverse graph.Direction
	policy  func(s config.Settings) config.Expansion
}

var parentSide = side{
	name:      "parents",
	edge:      models.Plan.First,
	relations: func(def *models.StepDefinition) []models.Ref { return def.Dependencies },
	grow:      models.Plan.Prepend,
	reverse:   graph.DirectionChildren,
	policy:    func(s config.Settings) config.Expansion { return s.ParentExpansion },
}

var childSide = side{
	name:      "children",
	edge:      models.Plan.Last,
	relations: func(def *models.StepDefinition) []models.Ref { return def.Children },
	grow:      models.Plan.Append,
	reverse:   graph.DirectionDependencies,
	policy:    func(s config.Settings) config.Expansion { return s.ChildrenExpansion },
}

func (e *Enumerator) expand(plans []models.Plan, sd side) ([]models.Plan, error) {
	guard := NewLoopGuard(e.resolver, e.settings.LoopLimit)

	for round := 1; ; round++ {
		next := make([]models.Plan, 0, len(plans))
		expanded := false

		for _, plan := range plans {
			edge, err := e.resolver.Resolve(sd.edge(plan))
			if err != nil {
				return nil, err
			}
			related := sd.relations(edge)
			if len(related) == 0 {
				next = append(next, plan)
				continue
			}
			expanded = true

			for _, ref := range e.pick(sd.policy(e.settings), related) {
				def, err := e.resolver.Resolve(ref)
				if err != nil {
					return nil, fmt.Errorf("expand %s of %s: %w", sd.name, edge.Name, err)
				}
				next = append(next, sd.grow(plan, models.Use(def)))
				e.checkRelationship(def, sd.reverse, edge)
			}
		}

		if !expanded {
			return plans, nil
		}

		e.debugLog("[planner.expand] %s round %d: %d plans", sd.name, round, len(next))
		if err := guard.Observe(next...); err != nil {
			return nil, err
		}
		plans = next
	}
}

// pick applies the expansion policy to a non-empty relation list.
func (e *Enumerator) pick(policy config.Expansion, related []models.Ref) []models.Ref {
	switch policy {
	case config.ExpansionRandom:
		idx := e.intN(len(related))
		return related[idx : idx+1]
	case config.ExpansionMain:
		return related[:1]
	default:
		return related
	}
}

func (e *Enumerator) intN(n int) int {
	if e.rng != nil {
		return e.rng.IntN(n)
	}
	return rand.IntN(n)
}

// checkRelationship reports, in verbose mode, a related step that does not
// list edge back in the reverse direction. It never fails the expansion.
func (e *Enumerator) checkRelationship(related *models.StepDefinition, dir graph.Direction, edge *models.StepDefinition) {
	if !e.settings.Verbose {
		return
	}

	ok, err := graph.Reciprocates(e.resolver, related, dir, edge.Name)
	if err != nil {
		e.report(1, "cannot check %s of %s: %v", dir, related.Name, err)
		return
	}
	if !ok {
		e.report(1, "%s", graph.Asymmetry{Step: edge.Name, Other: related.Name, Missing: dir})
	}
}
