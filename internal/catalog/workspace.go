package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ShayCichocki/steptest/pkg/models"
)

// FileName is the file every workspace step works on.
const FileName = "myfile.txt"

// ExpectedContent is what checkContent requires and WriteContent never writes.
const ExpectedContent = "Awesome package !!"

// Workspace is a directory the file scenario runs in.
type Workspace struct {
	Dir string
	// Out receives the output of the demo production code. nil discards it.
	Out io.Writer
}

// Path returns the scenario file path.
func (w *Workspace) Path() string {
	return filepath.Join(w.Dir, FileName)
}

func ws(names ...string) []models.Ref {
	refs := make([]models.Ref, 0, len(names))
	for _, n := range names {
		refs = append(refs, models.Named(WorkspaceNamespace+"."+n))
	}
	return refs
}

// Steps returns the workspace scenario steps:
//
//	reset -> createFile -> injectApi -> checkContent
//	                    -> injectSimpleValue
//
// checkContent fails on purpose.
func (w *Workspace) Steps() []*models.StepDefinition {
	return []*models.StepDefinition{
		{
			Name:     "reset",
			Children: ws("createFile"),
			Trigger: func(models.Injector, map[string]any) error {
				err := os.Remove(w.Path())
				if err != nil && !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("reset workspace: %w", err)
				}
				return nil
			},
		},
		{
			Name:         "createFile",
			Dependencies: ws("reset"),
			Children:     ws("injectApi", "injectSimpleValue"),
			Memory: models.Memory{
				"print_memory_message": false,
				"value_in_memory":      "this value is passed along all the steps of a plan",
			},
			Trigger: func(models.Injector, map[string]any) error {
				return CreateFile(w.Out, w.Path())
			},
			FinalCheck: func(models.Memory) error {
				if _, err := os.Stat(w.Path()); err != nil {
					return fmt.Errorf("the file %s is missing", FileName)
				}
				return nil
			},
		},
		{
			Name:         "injectApi",
			Dependencies: ws("createFile"),
			Children:     ws("checkContent"),
			Trigger: func(sc models.Injector, _ map[string]any) error {
				return WriteAPIResult(sc, w.Out, w.Path())
			},
			Capabilities: models.Capabilities{
				"fakeApiCall": func(args ...any) (any, error) { return "fake api call", nil },
			},
			FinalCheck: func(models.Memory) error {
				return w.containsAPI()
			},
		},
		{
			Name:         "checkContent",
			Dependencies: ws("injectApi"),
			Trigger: func(models.Injector, map[string]any) error {
				return WriteContent(w.Out, w.Path())
			},
			FinalCheck: func(models.Memory) error {
				data, err := os.ReadFile(w.Path())
				if err != nil {
					return err
				}
				if string(data) != ExpectedContent {
					return fmt.Errorf("unexpected file content %q", data)
				}
				return nil
			},
		},
		{
			Name:         "injectSimpleValue",
			Dependencies: ws("createFile"),
			Memory:       models.Memory{},
			Trigger: func(sc models.Injector, _ map[string]any) error {
				return WriteAPIResult(sc, w.Out, w.Path())
			},
			New: func(mem models.Memory) any {
				return newSimpleValueStep(w, mem)
			},
		},
	}
}

// Scenarios returns the explicit plans of the workspace scenario. The second
// one fails on checkContent.
func Scenarios() []models.Plan {
	return []models.Plan{
		models.Plan(ws("reset", "createFile", "injectApi")),
		models.Plan(ws("reset", "createFile", "injectApi", "checkContent")),
	}
}

func (w *Workspace) containsAPI() error {
	data, err := os.ReadFile(w.Path())
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), "api") {
		return fmt.Errorf("string %q not found in %s", "api", FileName)
	}
	return nil
}

// simpleValueStep substitutes only overrideValue, so the real API call runs.
type simpleValueStep struct {
	models.Base
	ws *Workspace
	// Injected counts substituted calls.
	Injected int
}

func newSimpleValueStep(w *Workspace, mem models.Memory) *simpleValueStep {
	s := &simpleValueStep{Base: models.NewBase(mem), ws: w}
	if show, _ := s.Get("print_memory_message"); show == true && w.Out != nil {
		v, _ := s.Get("value_in_memory")
		fmt.Fprintln(w.Out, v)
	}
	return s
}

func (s *simpleValueStep) TryInvoke(name string, args ...any) (any, bool, error) {
	if name != "overrideValue" {
		return nil, false, nil
	}
	s.Injected++
	s.SetMemory(models.Memory{"override_value_injected": true})
	return true, true, nil
}

func (s *simpleValueStep) FinalCheck() error {
	return s.ws.containsAPI()
}
