// Package runner executes execution plans step by step, threading memory
// between steps and pointing the substitution context at the running step.
package runner

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/steptest/internal/registry"
	"github.com/ShayCichocki/steptest/internal/substitute"
	"github.com/ShayCichocki/steptest/pkg/models"
)

// ErrScenarioFailed matches every ScenarioFailure.
var ErrScenarioFailed = errors.New("scenario failed")

// Phase names the part of a step that failed.
type Phase string

const (
	// PhaseTrigger is the production action of a step.
	PhaseTrigger Phase = "trigger"
	// PhaseFinalCheck is the post-trigger verification of a step.
	PhaseFinalCheck Phase = "final check"
)

// ScenarioFailure reports the step that failed a plan.
type ScenarioFailure struct {
	// Step is the identity of the failing step.
	Step string
	// Position is the zero-based index of the step within its plan.
	Position int
	// PlanIndex is the zero-based index of the plan within its batch.
	PlanIndex int
	Phase     Phase
	Cause     error
}

func (f *ScenarioFailure) Error() string {
	return fmt.Sprintf("plan %d step %d (%s): %s failed: %v", f.PlanIndex, f.Position, f.Step, f.Phase, f.Cause)
}

// Unwrap returns both the sentinel and the cause so errors.Is matches either.
func (f *ScenarioFailure) Unwrap() []error {
	return []error{ErrScenarioFailed, f.Cause}
}

// PlanResult is the outcome of one plan.
type PlanResult struct {
	// Session groups the results of one orchestrator.
	Session  string
	Index    int
	Steps    []string
	Duration time.Duration
	// Err is nil when every step passed.
	Err error
}

// Passed reports whether the plan completed without error.
func (r PlanResult) Passed() bool {
	return r.Err == nil
}

// Recorder receives the outcome of every plan run.
type Recorder interface {
	RecordPlan(result PlanResult) error
}

// Runner executes plans sequentially. It is not safe for concurrent use.
type Runner struct {
	resolver registry.Resolver
	sc       *substitute.Context
	recorder Recorder
	session  string
	memory   models.Memory
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
	// report prints verbose progress at an indentation level.
	report func(level int, format string, args ...interface{})
}

// New creates a runner that resolves steps through r and activates each step
// instance on sc.
func New(r registry.Resolver, sc *substitute.Context) *Runner {
	return &Runner{
		resolver: r,
		sc:       sc,
		memory:   models.Memory{},
		debugLog: func(format string, args ...interface{}) {},
		report:   func(level int, format string, args ...interface{}) {},
	}
}

// SetRecorder sets the recorder notified after each plan. nil disables it.
func (r *Runner) SetRecorder(rec Recorder) {
	r.recorder = rec
}

// SetSession sets the session ID stamped on recorded results.
func (r *Runner) SetSession(id string) {
	r.session = id
}

// SetDebugLog sets the debug logging function.
func (r *Runner) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		r.debugLog = fn
	}
}

// SetReporter sets the function receiving verbose progress.
func (r *Runner) SetReporter(fn func(level int, format string, args ...interface{})) {
	if fn != nil {
		r.report = fn
	}
}

// Memory returns a copy of the shared memory as left by the last step run.
func (r *Runner) Memory() models.Memory {
	return r.memory.Clone()
}

// RunBatch runs plans in order and stops at the first failure.
func (r *Runner) RunBatch(plans []models.Plan) error {
	for i, plan := range plans {
		if err := r.RunPlan(i, plan); err != nil {
			return err
		}
	}
	return nil
}

// RunPlan runs every step of plan with fresh shared memory. index identifies
// the plan in failures and recorded results.
func (r *Runner) RunPlan(index int, plan models.Plan) error {
	start := time.Now()
	r.memory = models.Memory{}

	defs := make([]*models.StepDefinition, 0, len(plan))
	for _, ref := range plan {
		def, err := r.resolver.Resolve(ref)
		if err != nil {
			return fmt.Errorf("resolve plan %d: %w", index, err)
		}
		defs = append(defs, def)
	}

	steps := make([]string, len(defs))
	for i, def := range defs {
		steps[i] = def.Name
	}
	r.report(0, "Running execution plan: [%s]", strings.Join(steps, ", "))
	r.debugLog("[runner.RunPlan] plan %d: %s", index, strings.Join(steps, " -> "))

	err := r.runSteps(index, defs)
	r.sc.SetActive(nil)

	if r.recorder != nil {
		result := PlanResult{Session: r.session, Index: index, Steps: steps, Duration: time.Since(start), Err: err}
		if recErr := r.recorder.RecordPlan(result); recErr != nil {
			r.debugLog("[runner.RunPlan] recording plan %d failed: %v", index, recErr)
		}
	}
	return err
}

func (r *Runner) runSteps(index int, defs []*models.StepDefinition) error {
	for pos, def := range defs {
		instance := r.instantiate(def)
		r.sc.SetActive(instance)

		if def.Trigger != nil {
			if err := def.Trigger(r.sc, def.Params); err != nil {
				return r.fail(index, pos, def, PhaseTrigger, err)
			}
		}

		if checker, ok := instance.(models.FinalChecker); ok {
			if err := checker.FinalCheck(); err != nil {
				return r.fail(index, pos, def, PhaseFinalCheck, err)
			}
		}

		if holder, ok := instance.(models.MemoryHolder); ok {
			r.memory = r.memory.Merge(holder.Memory())
		}
		r.debugLog("[runner.runSteps] plan %d step %d %s passed", index, pos, def.Name)
	}
	return nil
}

// instantiate builds the instance for def. Memory-aware steps start from
// their declared memory overwritten by the shared memory.
func (r *Runner) instantiate(def *models.StepDefinition) any {
	var mem models.Memory
	if def.UsesMemory() {
		mem = def.Memory.Merge(r.memory)
	}
	if def.New != nil {
		return def.New(mem)
	}
	return models.NewDeclarativeInstance(def, mem)
}

func (r *Runner) fail(index, pos int, def *models.StepDefinition, phase Phase, cause error) error {
	r.debugLog("[runner.runSteps] plan %d step %d %s: %s failed: %v", index, pos, def.Name, phase, cause)
	return &ScenarioFailure{Step: def.Name, Position: pos, PlanIndex: index, Phase: phase, Cause: cause}
}
