package planner

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"reflect"
	"strings"
	"testing"

	"github.com/ShayCichocki/steptest/internal/config"
	"github.com/ShayCichocki/steptest/internal/registry"
	"github.com/ShayCichocki/steptest/pkg/models"
)

func settings(parent, children config.Expansion) config.Settings {
	s := config.DefaultSettings()
	s.Enabled = true
	s.ParentExpansion = parent
	s.ChildrenExpansion = children
	return s
}

// names renders plans as identity slices for comparison.
func names(t *testing.T, r registry.Resolver, plans []models.Plan) [][]string {
	t.Helper()
	out := make([][]string, 0, len(plans))
	for _, p := range plans {
		ids, err := Identities(r, p)
		if err != nil {
			t.Fatalf("Identities failed: %v", err)
		}
		out = append(out, ids)
	}
	return out
}

// forkRegistry registers R with dependencies A and B.
func forkRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	r.MustRegister("fork",
		&models.StepDefinition{Name: "A", Children: models.NamedRefs("fork.R")},
		&models.StepDefinition{Name: "B", Children: models.NamedRefs("fork.R")},
		&models.StepDefinition{Name: "R", Dependencies: models.NamedRefs("fork.A", "fork.B")},
	)
	return r
}

// relationRegistry reproduces a three-level relation tree with some
// relations declared on one side only.
func relationRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	r.MustRegister("rel",
		&models.StepDefinition{Name: "lvl1_1", Children: models.NamedRefs("rel.lvl2_1", "rel.lvl2_2")},
		&models.StepDefinition{Name: "lvl1_2", Children: models.NamedRefs("rel.lvl3_2")},
		&models.StepDefinition{Name: "lvl1_3"},
		&models.StepDefinition{Name: "lvl1_4"},
		&models.StepDefinition{
			Name:         "lvl2_1",
			Dependencies: models.NamedRefs("rel.lvl1_1", "rel.lvl1_2"),
			Children:     models.NamedRefs("rel.lvl3_1", "rel.lvl3_2"),
		},
		&models.StepDefinition{Name: "lvl2_2", Dependencies: models.NamedRefs("rel.lvl1_1", "rel.lvl1_2")},
		&models.StepDefinition{Name: "lvl2_3", Dependencies: models.NamedRefs("rel.lvl1_3")},
		&models.StepDefinition{Name: "lvl3_1", Dependencies: models.NamedRefs("rel.lvl2_1", "rel.lvl2_3", "rel.lvl1_4")},
		&models.StepDefinition{Name: "lvl3_2", Dependencies: models.NamedRefs("rel.lvl2_1")},
	)
	return r
}

func TestParentExpansionAll(t *testing.T) {
	r := forkRegistry(t)
	e := NewEnumerator(r, settings(config.ExpansionAll, config.ExpansionAll))

	plans, err := e.CreateExecutionPlans(models.Named("fork.R"))
	if err != nil {
		t.Fatalf("CreateExecutionPlans failed: %v", err)
	}

	want := [][]string{{"A", "R"}, {"B", "R"}}
	if got := names(t, r, plans); !reflect.DeepEqual(got, want) {
		t.Errorf("plans = %v, want %v", got, want)
	}
}

func TestParentExpansionRandom(t *testing.T) {
	r := forkRegistry(t)
	e := NewEnumerator(r, settings(config.ExpansionRandom, config.ExpansionAll))
	e.SetRand(rand.New(rand.NewPCG(1, 2)))

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		plans, err := e.CreateExecutionPlans(models.Named("fork.R"))
		if err != nil {
			t.Fatalf("CreateExecutionPlans failed: %v", err)
		}
		got := names(t, r, plans)
		if len(got) != 1 {
			t.Fatalf("expected exactly one plan, got %v", got)
		}
		if len(got[0]) != 2 || got[0][1] != "R" {
			t.Fatalf("unexpected plan shape %v", got[0])
		}
		if first := got[0][0]; first != "A" && first != "B" {
			t.Fatalf("expected first step A or B, got %q", first)
		}
		seen[got[0][0]] = true
	}
	if !seen["A"] || !seen["B"] {
		t.Errorf("expected both branches over 50 draws, saw %v", seen)
	}
}

func TestParentExpansionMainIsDeterministic(t *testing.T) {
	r := forkRegistry(t)
	e := NewEnumerator(r, settings(config.ExpansionMain, config.ExpansionAll))

	for i := 0; i < 5; i++ {
		plans, err := e.CreateExecutionPlans(models.Named("fork.R"))
		if err != nil {
			t.Fatalf("CreateExecutionPlans failed: %v", err)
		}
		want := [][]string{{"A", "R"}}
		if got := names(t, r, plans); !reflect.DeepEqual(got, want) {
			t.Fatalf("call %d: plans = %v, want %v", i, got, want)
		}
	}
}

func TestTrivialPlan(t *testing.T) {
	r := registry.New()
	r.MustRegister("solo",
		&models.StepDefinition{Name: "alone"},
		&models.StepDefinition{Name: "empty", Dependencies: []models.Ref{}, Children: []models.Ref{}},
	)

	for _, id := range []string{"solo.alone", "solo.empty"} {
		for _, policy := range []config.Expansion{config.ExpansionAll, config.ExpansionRandom, config.ExpansionMain} {
			e := NewEnumerator(r, settings(policy, policy))
			plans, err := e.CreateExecutionPlans(models.Named(id))
			if err != nil {
				t.Fatalf("%s/%s: CreateExecutionPlans failed: %v", id, policy, err)
			}
			if len(plans) != 1 || len(plans[0]) != 1 {
				t.Errorf("%s/%s: expected one single-step plan, got %v", id, policy, plans)
			}
		}
	}
}

func TestChildrenExpansionFromTop(t *testing.T) {
	r := relationRegistry(t)
	e := NewEnumerator(r, settings(config.ExpansionAll, config.ExpansionAll))

	plans, err := e.CreateExecutionPlans(models.Named("rel.lvl1_1"))
	if err != nil {
		t.Fatalf("CreateExecutionPlans failed: %v", err)
	}

	want := [][]string{
		{"lvl1_1", "lvl2_1", "lvl3_1"},
		{"lvl1_1", "lvl2_1", "lvl3_2"},
		{"lvl1_1", "lvl2_2"},
	}
	if got := names(t, r, plans); !reflect.DeepEqual(got, want) {
		t.Errorf("plans = %v, want %v", got, want)
	}
}

func TestChildrenExpansionRandom(t *testing.T) {
	r := relationRegistry(t)
	e := NewEnumerator(r, settings(config.ExpansionAll, config.ExpansionRandom))
	e.SetRand(rand.New(rand.NewPCG(3, 4)))

	valid := map[string]bool{
		"lvl1_1 lvl2_1 lvl3_1": true,
		"lvl1_1 lvl2_1 lvl3_2": true,
		"lvl1_1 lvl2_2":        true,
	}
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		plans, err := e.CreateExecutionPlans(models.Named("rel.lvl1_1"))
		if err != nil {
			t.Fatalf("CreateExecutionPlans failed: %v", err)
		}
		got := names(t, r, plans)
		if len(got) != 1 {
			t.Fatalf("expected exactly one plan, got %v", got)
		}
		key := strings.Join(got[0], " ")
		if !valid[key] {
			t.Fatalf("unexpected plan %v", got[0])
		}
		seen[key] = true
	}
	if len(seen) != len(valid) {
		t.Errorf("expected every branch over 100 draws, saw %v", seen)
	}
}

func TestParentExpansionFromBottom(t *testing.T) {
	r := relationRegistry(t)
	e := NewEnumerator(r, settings(config.ExpansionAll, config.ExpansionAll))

	plans, err := e.CreateExecutionPlans(models.Named("rel.lvl3_1"))
	if err != nil {
		t.Fatalf("CreateExecutionPlans failed: %v", err)
	}

	want := [][]string{
		{"lvl1_1", "lvl2_1", "lvl3_1"},
		{"lvl1_2", "lvl2_1", "lvl3_1"},
		{"lvl1_3", "lvl2_3", "lvl3_1"},
		{"lvl1_4", "lvl3_1"},
	}
	if got := names(t, r, plans); !reflect.DeepEqual(got, want) {
		t.Errorf("plans = %v, want %v", got, want)
	}
}

func TestParentsCompleteBeforeChildren(t *testing.T) {
	r := relationRegistry(t)
	e := NewEnumerator(r, settings(config.ExpansionMain, config.ExpansionAll))

	plans, err := e.CreateExecutionPlans(models.Named("rel.lvl2_1"))
	if err != nil {
		t.Fatalf("CreateExecutionPlans failed: %v", err)
	}

	want := [][]string{
		{"lvl1_1", "lvl2_1", "lvl3_1"},
		{"lvl1_1", "lvl2_1", "lvl3_2"},
	}
	if got := names(t, r, plans); !reflect.DeepEqual(got, want) {
		t.Errorf("plans = %v, want %v", got, want)
	}
}

func TestLoopGuardFiresOnCycles(t *testing.T) {
	tests := []struct {
		name     string
		steps    []*models.StepDefinition
		root     string
		limit    int
		identity string
	}{
		{
			name:     "self dependency",
			steps:    []*models.StepDefinition{{Name: "X", Dependencies: models.NamedRefs("loop.X")}},
			root:     "loop.X",
			limit:    2,
			identity: "X",
		},
		{
			name: "two cycle through dependencies",
			steps: []*models.StepDefinition{
				{Name: "X", Dependencies: models.NamedRefs("loop.Y")},
				{Name: "Y", Dependencies: models.NamedRefs("loop.X")},
			},
			root:     "loop.X",
			limit:    2,
			identity: "X",
		},
		{
			name:     "self child with higher limit",
			steps:    []*models.StepDefinition{{Name: "X", Children: models.NamedRefs("loop.X")}},
			root:     "loop.X",
			limit:    4,
			identity: "X",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := registry.New()
			r.MustRegister("loop", tt.steps...)
			s := settings(config.ExpansionAll, config.ExpansionAll)
			s.LoopLimit = tt.limit
			e := NewEnumerator(r, s)

			_, err := e.CreateExecutionPlans(models.Named(tt.root))
			if !errors.Is(err, ErrInfiniteLoop) {
				t.Fatalf("expected ErrInfiniteLoop, got %v", err)
			}
			var loopErr *InfiniteLoopError
			if !errors.As(err, &loopErr) {
				t.Fatalf("expected *InfiniteLoopError, got %T", err)
			}
			if loopErr.Identity != tt.identity {
				t.Errorf("Identity = %q, want %q", loopErr.Identity, tt.identity)
			}
			if loopErr.Count != tt.limit {
				t.Errorf("Count = %d, want %d", loopErr.Count, tt.limit)
			}
		})
	}
}

func TestUnresolvedRelation(t *testing.T) {
	r := registry.New()
	r.MustRegister("broken", &models.StepDefinition{Name: "R", Dependencies: models.NamedRefs("broken.missing")})
	e := NewEnumerator(r, settings(config.ExpansionAll, config.ExpansionAll))

	_, err := e.CreateExecutionPlans(models.Named("broken.R"))
	if !errors.Is(err, registry.ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved, got %v", err)
	}

	_, err = e.CreateExecutionPlans(models.Named("broken.nothing"))
	if !errors.Is(err, registry.ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved for the root, got %v", err)
	}
}

func TestAsymmetryDiagnostics(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		want    []string
	}{
		{
			name:    "verbose",
			verbose: true,
			want: []string{
				"0:Checking relationships...",
				"1:lvl2_3 does not list lvl3_1 in its children",
				"1:lvl1_4 does not list lvl3_1 in its children",
				"1:lvl1_2 does not list lvl2_1 in its children",
				"1:lvl1_3 does not list lvl2_3 in its children",
			},
		},
		{
			name:    "quiet",
			verbose: false,
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := relationRegistry(t)
			s := settings(config.ExpansionAll, config.ExpansionAll)
			s.Verbose = tt.verbose
			e := NewEnumerator(r, s)

			var got []string
			e.SetReporter(func(level int, format string, args ...interface{}) {
				got = append(got, fmt.Sprintf("%d:", level)+fmt.Sprintf(format, args...))
			})

			plans, err := e.CreateExecutionPlans(models.Named("rel.lvl3_1"))
			if err != nil {
				t.Fatalf("CreateExecutionPlans failed: %v", err)
			}
			if len(plans) != 4 {
				t.Errorf("expected 4 plans regardless of diagnostics, got %d", len(plans))
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("diagnostics =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(tt.want, "\n"))
			}
		})
	}
}

func TestChildAsymmetryDiagnostic(t *testing.T) {
	r := registry.New()
	r.MustRegister("one",
		&models.StepDefinition{Name: "parent", Children: models.NamedRefs("one.orphan")},
		&models.StepDefinition{Name: "orphan"},
	)
	s := settings(config.ExpansionAll, config.ExpansionAll)
	s.Verbose = true
	e := NewEnumerator(r, s)

	var got []string
	e.SetReporter(func(level int, format string, args ...interface{}) {
		if level > 0 {
			got = append(got, fmt.Sprintf(format, args...))
		}
	})

	plans, err := e.CreateExecutionPlans(models.Named("one.parent"))
	if err != nil {
		t.Fatalf("CreateExecutionPlans failed: %v", err)
	}
	if len(plans) != 1 || len(plans[0]) != 2 {
		t.Errorf("expected [parent orphan], got %v", plans)
	}
	want := []string{"orphan does not list parent in its dependencies"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("diagnostics = %v, want %v", got, want)
	}
}
