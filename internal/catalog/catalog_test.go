package catalog

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/ShayCichocki/steptest/internal/config"
	"github.com/ShayCichocki/steptest/internal/graph"
	"github.com/ShayCichocki/steptest/internal/orchestrator"
	"github.com/ShayCichocki/steptest/internal/registry"
	"github.com/ShayCichocki/steptest/internal/runner"
	"github.com/ShayCichocki/steptest/pkg/models"
)

func setupCatalog(t *testing.T) (*registry.Registry, *Workspace) {
	t.Helper()
	w := &Workspace{Dir: t.TempDir()}
	reg := registry.New()
	if err := Register(reg, w); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return reg, w
}

func newOrchestrator(t *testing.T, reg *registry.Registry) *orchestrator.Orchestrator {
	t.Helper()
	s := config.DefaultSettings()
	s.Enabled = true
	return orchestrator.New(reg, orchestrator.WithSettings(s), orchestrator.WithOutput(&bytes.Buffer{}))
}

func TestRegister(t *testing.T) {
	reg, _ := setupCatalog(t)

	if got := reg.Namespaces(); strings.Join(got, ",") != "relations,workspace" {
		t.Errorf("Namespaces() = %v", got)
	}
	if reg.Size() != 18 {
		t.Errorf("Size() = %d, want 18", reg.Size())
	}

	if err := Register(reg, &Workspace{}); !errors.Is(err, registry.ErrDuplicateStep) {
		t.Errorf("expected ErrDuplicateStep on second registration, got %v", err)
	}
}

func TestRelationsAsymmetries(t *testing.T) {
	reg, _ := setupCatalog(t)

	g := graph.New()
	if err := g.Build(Relations(), reg); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := g.CheckAcyclic(); err != nil {
		t.Errorf("relation tree should be acyclic: %v", err)
	}

	var got []string
	for _, a := range g.Asymmetries() {
		got = append(got, a.String())
	}
	want := []string{
		"lvl3_2 does not list lvl1_2 in its dependencies",
		"lvl1_2 does not list lvl2_1 in its children",
		"lvl1_2 does not list lvl2_2 in its children",
		"lvl1_3 does not list lvl2_3 in its children",
		"lvl2_3 does not list lvl3_1 in its children",
		"lvl1_4 does not list lvl3_1 in its children",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("asymmetries =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestWorkspaceScenarios(t *testing.T) {
	reg, w := setupCatalog(t)
	o := newOrchestrator(t, reg)
	scenarios := Scenarios()

	if err := o.Execute(models.ExplicitPlan(scenarios[0]...)); err != nil {
		t.Fatalf("first scenario failed: %v", err)
	}
	data, err := os.ReadFile(w.Path())
	if err != nil {
		t.Fatalf("failed to read workspace file: %v", err)
	}
	if string(data) != "fake api call" {
		t.Errorf("file content = %q, want the substituted api result", data)
	}

	err = o.Execute(models.ExplicitPlan(scenarios[1]...))
	var failure *runner.ScenarioFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected the second scenario to fail, got %v", err)
	}
	if failure.Step != "checkContent" || failure.Phase != runner.PhaseFinalCheck || failure.Position != 3 {
		t.Errorf("unexpected failure %+v", failure)
	}
}

func TestWorkspaceEnumeration(t *testing.T) {
	reg, w := setupCatalog(t)
	var out bytes.Buffer
	w.Out = &out
	o := newOrchestrator(t, reg)

	if err := o.PreparePlans(models.RootOf(models.Named("workspace.injectSimpleValue"))); err != nil {
		t.Fatalf("PreparePlans failed: %v", err)
	}
	plans := o.ExecutionPlans()
	if len(plans) != 1 || plans[0].String() != "reset -> createFile -> injectSimpleValue" {
		t.Fatalf("unexpected plans %v", plans)
	}

	if err := o.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	data, err := os.ReadFile(w.Path())
	if err != nil {
		t.Fatalf("failed to read workspace file: %v", err)
	}
	if !strings.Contains(string(data), "actual api call") {
		t.Errorf("expected the real api call without a fakeApiCall capability, got %q", data)
	}
	if !strings.Contains(out.String(), "File content after api") {
		t.Errorf("expected production output, got %q", out.String())
	}
}

func TestSimpleValueStepReadsMemory(t *testing.T) {
	var out bytes.Buffer
	w := &Workspace{Dir: t.TempDir(), Out: &out}

	s := newSimpleValueStep(w, models.Memory{"print_memory_message": true, "value_in_memory": "carried"})
	if out.String() != "carried\n" {
		t.Errorf("expected memory message to be printed, got %q", out.String())
	}

	res, found, err := s.TryInvoke("overrideValue")
	if err != nil || !found || res != true {
		t.Errorf("TryInvoke(overrideValue) = %v, %v, %v", res, found, err)
	}
	if _, found, _ := s.TryInvoke("fakeApiCall"); found {
		t.Error("fakeApiCall should not be substituted")
	}
	if s.Memory()["override_value_injected"] != true || s.Injected != 1 {
		t.Errorf("expected the substitution to be recorded, got %v", s.Memory())
	}
}
