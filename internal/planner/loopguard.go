package planner

import (
	"errors"
	"fmt"

	"github.com/ShayCichocki/steptest/internal/config"
	"github.com/ShayCichocki/steptest/internal/registry"
	"github.com/ShayCichocki/steptest/pkg/models"
)

// ErrInfiniteLoop matches every InfiniteLoopError.
var ErrInfiniteLoop = errors.New("possible infinite loop")

// InfiniteLoopError reports a step that appears too often in one branch.
type InfiniteLoopError struct {
	// Identity is the repeated step.
	Identity string
	// Count is the number of occurrences seen.
	Count int
	// Plan is the branch in which the repetition was found.
	Plan models.Plan
}

func (e *InfiniteLoopError) Error() string {
	return fmt.Sprintf("possible infinite loop identified on %s (%d occurrences in %s)", e.Identity, e.Count, e.Plan)
}

// Unwrap lets errors.Is match ErrInfiniteLoop.
func (e *InfiniteLoopError) Unwrap() error {
	return ErrInfiniteLoop
}

// LoopGuard bounds how often a step identity may appear in one branch.
//
// Counting is scoped to a single plan: every plan produced by an expansion
// round is scanned on its own, and the guard fires as soon as one identity
// reaches the limit. Explicit plans are observed the same way when they are
// absorbed, so no step can be expanded or executed limit times in one plan.
type LoopGuard struct {
	resolver registry.Resolver
	limit    int
	// counts holds the occurrence counts of the last plan observed.
	counts map[string]int
}

// NewLoopGuard creates a guard firing at limit occurrences. Named references
// are resolved through r so they count towards the step they name; a nil r
// counts them by identifier. A limit below 2 would reject every plan and is
// replaced by config.DefaultLoopLimit.
func NewLoopGuard(r registry.Resolver, limit int) *LoopGuard {
	if limit < 2 {
		limit = config.DefaultLoopLimit
	}
	return &LoopGuard{resolver: r, limit: limit, counts: make(map[string]int)}
}

// Limit returns the occurrence count at which the guard fires.
func (g *LoopGuard) Limit() int {
	return g.limit
}

// Observe scans plans and returns an *InfiniteLoopError for the first
// identity whose count within one plan reaches the limit.
func (g *LoopGuard) Observe(plans ...models.Plan) error {
	for _, plan := range plans {
		clear(g.counts)
		for _, ref := range plan {
			id, err := g.identity(ref)
			if err != nil {
				return err
			}
			g.counts[id]++
			if g.counts[id] >= g.limit {
				return &InfiniteLoopError{Identity: id, Count: g.counts[id], Plan: plan.Clone()}
			}
		}
	}
	return nil
}

func (g *LoopGuard) identity(ref models.Ref) (string, error) {
	if def, ok := ref.Definition(); ok {
		return def.Name, nil
	}
	if g.resolver == nil {
		return ref.Identifier(), nil
	}
	def, err := g.resolver.Resolve(ref)
	if err != nil {
		return "", err
	}
	return def.Name, nil
}
