package planner

import (
	"strings"

	"github.com/ShayCichocki/steptest/internal/registry"
	"github.com/ShayCichocki/steptest/pkg/models"
)

// keySeparator cannot appear in a registered step name.
const keySeparator = "\x1f"

// Deduplicator drops plans whose ordered identity sequence was already seen.
// Its bookkeeping persists until Reset.
type Deduplicator struct {
	resolver registry.Resolver
	seen     map[string]struct{}
}

// NewDeduplicator creates an empty deduplicator.
func NewDeduplicator(r registry.Resolver) *Deduplicator {
	return &Deduplicator{resolver: r, seen: make(map[string]struct{})}
}

// Identities returns the ordered step identities of plan.
func Identities(r registry.Resolver, plan models.Plan) ([]string, error) {
	ids := make([]string, 0, len(plan))
	for _, ref := range plan {
		def, err := r.Resolve(ref)
		if err != nil {
			return nil, err
		}
		ids = append(ids, def.Name)
	}
	return ids, nil
}

// Add records plan and reports whether it was new.
func (d *Deduplicator) Add(plan models.Plan) (bool, error) {
	key, err := d.key(plan)
	if err != nil {
		return false, err
	}
	if _, dup := d.seen[key]; dup {
		return false, nil
	}
	d.seen[key] = struct{}{}
	return true, nil
}

// Filter returns the plans not seen before, in order, keeping only the first
// of any duplicates within plans. Nothing is recorded if any plan fails to
// resolve.
func (d *Deduplicator) Filter(plans []models.Plan) ([]models.Plan, error) {
	keys := make([]string, len(plans))
	for i, plan := range plans {
		key, err := d.key(plan)
		if err != nil {
			return nil, err
		}
		keys[i] = key
	}

	out := make([]models.Plan, 0, len(plans))
	for i, plan := range plans {
		if _, dup := d.seen[keys[i]]; dup {
			continue
		}
		d.seen[keys[i]] = struct{}{}
		out = append(out, plan)
	}
	return out, nil
}

// Len returns the number of distinct plans recorded.
func (d *Deduplicator) Len() int {
	return len(d.seen)
}

// Reset clears all bookkeeping.
func (d *Deduplicator) Reset() {
	clear(d.seen)
}

func (d *Deduplicator) key(plan models.Plan) (string, error) {
	ids, err := Identities(d.resolver, plan)
	if err != nil {
		return "", err
	}
	return strings.Join(ids, keySeparator), nil
}
