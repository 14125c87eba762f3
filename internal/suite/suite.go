// Package suite loads suite files: YAML lists of roots to prepare and run.
//
// A root is either a step identifier, whose plans are enumerated, or a list
// of identifiers forming an explicit plan:
//
//	name: workspace
//	settings:
//	  verbose: true
//	roots:
//	  - workspace.checkContent
//	  - [workspace.reset, workspace.createFile, workspace.injectApi]
package suite

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/steptest/internal/registry"
	"github.com/ShayCichocki/steptest/pkg/models"
)

// ErrInvalidSuite is returned for suite files that parse but cannot be used.
var ErrInvalidSuite = errors.New("invalid suite")

// Suite is a parsed suite file.
type Suite struct {
	Name string `yaml:"name"`
	// Settings are passed to Orchestrator.Configure before preparing.
	Settings map[string]any `yaml:"settings"`
	Roots    []Entry        `yaml:"roots"`
}

// Entry is one root of a suite: a single step or an explicit plan.
type Entry struct {
	Step string
	Plan []string
}

// IsPlan reports whether the entry is an explicit plan.
func (e Entry) IsPlan() bool {
	return e.Plan != nil
}

// String renders the entry the way it is written in a suite file.
func (e Entry) String() string {
	if e.IsPlan() {
		return "[" + strings.Join(e.Plan, ", ") + "]"
	}
	return e.Step
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *Entry) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var id string
		if err := value.Decode(&id); err != nil {
			return err
		}
		id = strings.TrimSpace(id)
		if id == "" {
			return fmt.Errorf("line %d: %w: empty step identifier", value.Line, ErrInvalidSuite)
		}
		*e = Entry{Step: id}
		return nil
	case yaml.SequenceNode:
		var ids []string
		if err := value.Decode(&ids); err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("line %d: %w: empty plan", value.Line, ErrInvalidSuite)
		}
		for i, id := range ids {
			ids[i] = strings.TrimSpace(id)
			if ids[i] == "" {
				return fmt.Errorf("line %d: %w: empty step identifier in plan", value.Line, ErrInvalidSuite)
			}
		}
		*e = Entry{Plan: ids}
		return nil
	default:
		return fmt.Errorf("line %d: %w: root must be an identifier or a list of identifiers", value.Line, ErrInvalidSuite)
	}
}

// MarshalYAML implements yaml.Marshaler.
func (e Entry) MarshalYAML() (interface{}, error) {
	if e.IsPlan() {
		return e.Plan, nil
	}
	return e.Step, nil
}

// Load reads and parses the suite file at path.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse suite %s: %w", path, err)
	}
	return s, nil
}

// Parse parses suite YAML.
func Parse(data []byte) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if len(s.Roots) == 0 {
		return nil, fmt.Errorf("%w: no roots", ErrInvalidSuite)
	}
	return &s, nil
}

// Marshal renders s as YAML.
func (s *Suite) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// ModelRoots converts the entries into orchestrator roots.
func (s *Suite) ModelRoots() []models.Root {
	roots := make([]models.Root, 0, len(s.Roots))
	for _, e := range s.Roots {
		if e.IsPlan() {
			roots = append(roots, models.ExplicitPlan(models.NamedRefs(e.Plan...)...))
			continue
		}
		roots = append(roots, models.RootOf(models.Named(e.Step)))
	}
	return roots
}

// Check resolves every identifier of the suite and reports all that fail.
func (s *Suite) Check(r registry.Resolver) error {
	var errs []error
	for _, e := range s.Roots {
		ids := e.Plan
		if !e.IsPlan() {
			ids = []string{e.Step}
		}
		for _, id := range ids {
			if _, err := r.Resolve(models.Named(id)); err != nil {
				errs = append(errs, fmt.Errorf("root %s: %w", e, err))
			}
		}
	}
	return errors.Join(errs...)
}
