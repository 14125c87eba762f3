package orchestrator

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/google/uuid"

	"github.com/ShayCichocki/steptest/internal/config"
	"github.com/ShayCichocki/steptest/internal/planner"
	"github.com/ShayCichocki/steptest/internal/registry"
	"github.com/ShayCichocki/steptest/internal/runner"
	"github.com/ShayCichocki/steptest/internal/substitute"
	"github.com/ShayCichocki/steptest/pkg/models"
)

var (
	// ErrAborted is returned after a failed Execute until ResetExecutionPlans.
	ErrAborted = errors.New("orchestrator aborted: reset execution plans first")
	// ErrRunning is returned when plans are prepared or executed from inside
	// a running step.
	ErrRunning = errors.New("orchestrator is already running")
	// ErrEmptyPlan is returned for an explicit plan without steps.
	ErrEmptyPlan = errors.New("explicit plan has no steps")
)

// State is the lifecycle state of an Orchestrator.
type State string

const (
	// StateIdle means no plans are prepared.
	StateIdle State = "idle"
	// StatePlansPrepared means PreparePlans accepted at least one batch.
	StatePlansPrepared State = "plans_prepared"
	// StateRunning means Execute is running plans.
	StateRunning State = "running"
	// StateAborted means a plan failed. Only ResetExecutionPlans leaves it.
	StateAborted State = "aborted"
)

// Orchestrator prepares execution plans from root steps and runs them.
// It is not safe for concurrent use; separate orchestrators share no state.
type Orchestrator struct {
	resolver  registry.Resolver
	settings  config.Settings
	sessionID string
	state     State

	logger   *DebugLogger
	reporter *Reporter
	rng      *rand.Rand
	recorder runner.Recorder

	sc    *substitute.Context
	dedup *planner.Deduplicator
	plans []models.Plan
}

// New creates an orchestrator resolving steps through r. Invalid initial
// settings fall back to their defaults field by field.
func New(r registry.Resolver, opts ...Option) *Orchestrator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	output := o.output
	if output == nil {
		output = os.Stdout
	}
	logger := o.logger
	if logger == nil {
		logger = NopLogger()
	}
	sessionID := o.sessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	if err := o.settings.Validate(); err != nil {
		logger.Log("[orchestrator] %v, using defaults for invalid fields", err)
		o.settings = o.settings.Sanitize()
	}

	sc := substitute.New(o.settings.Enabled)
	sc.SetDebugLog(logger.Log)

	orch := &Orchestrator{
		resolver:  r,
		settings:  o.settings,
		sessionID: sessionID,
		state:     StateIdle,
		logger:    logger,
		reporter:  NewReporter(output),
		rng:       o.rng,
		recorder:  o.recorder,
		sc:        sc,
		dedup:     planner.NewDeduplicator(r),
	}
	logger.Log("[orchestrator] session %s created (enabled=%v)", sessionID, o.settings.Enabled)
	return orch
}

// Configure updates the settings named in options and leaves the rest
// untouched. Invalid values are rejected and nothing changes.
func (o *Orchestrator) Configure(options map[string]any) error {
	s, err := o.settings.Apply(options)
	if err != nil {
		return fmt.Errorf("configure: %w", err)
	}
	o.settings = s
	o.sc.SetEnabled(s.Enabled)
	o.logger.Log("[orchestrator] settings updated: %+v", s)
	return nil
}

// Settings returns the current settings.
func (o *Orchestrator) Settings() config.Settings {
	return o.settings
}

// Enabled reports whether orchestration is switched on.
func (o *Orchestrator) Enabled() bool {
	return o.settings.Enabled
}

// SessionID returns the ID stamped on recorded plan results.
func (o *Orchestrator) SessionID() string {
	return o.sessionID
}

// State returns the lifecycle state.
func (o *Orchestrator) State() State {
	return o.state
}

// PreparePlans enumerates plans for every root and adds the new ones to the
// plan set. The batch is all-or-nothing: on error the plan set is unchanged.
func (o *Orchestrator) PreparePlans(roots ...models.Root) error {
	if !o.settings.Enabled {
		return nil
	}
	if err := o.checkIdleOrPrepared(); err != nil {
		return err
	}

	staged, err := o.stage(roots)
	if err != nil {
		o.logger.Log("[orchestrator] prepare failed: %v", err)
		return err
	}

	accepted, err := o.dedup.Filter(staged)
	if err != nil {
		return fmt.Errorf("deduplicate plans: %w", err)
	}
	o.plans = append(o.plans, accepted...)
	if len(o.plans) > 0 {
		o.state = StatePlansPrepared
	}

	o.logger.Log("[orchestrator] prepared %d roots: %d plans, %d new, %d total",
		len(roots), len(staged), len(accepted), len(o.plans))
	return nil
}

// stage enumerates every root without touching the plan set.
func (o *Orchestrator) stage(roots []models.Root) ([]models.Plan, error) {
	enum := planner.NewEnumerator(o.resolver, o.settings)
	enum.SetRand(o.rng)
	enum.SetDebugLog(o.logger.Log)
	enum.SetReporter(o.reporter.Print)

	var staged []models.Plan
	for i, root := range roots {
		if root.IsExplicit() {
			plan, err := o.absorb(root.Plan())
			if err != nil {
				return nil, fmt.Errorf("root %d %s: %w", i, root, err)
			}
			staged = append(staged, plan)
			continue
		}

		plans, err := enum.CreateExecutionPlans(root.Ref())
		if err != nil {
			return nil, fmt.Errorf("root %d %s: %w", i, root, err)
		}
		staged = append(staged, plans...)
	}
	return staged, nil
}

// absorb resolves an explicit plan to direct references and checks it
// against the loop limit.
func (o *Orchestrator) absorb(plan models.Plan) (models.Plan, error) {
	if len(plan) == 0 {
		return nil, ErrEmptyPlan
	}

	out := make(models.Plan, 0, len(plan))
	for _, ref := range plan {
		def, err := o.resolver.Resolve(ref)
		if err != nil {
			return nil, err
		}
		out = append(out, models.Use(def))
	}

	if err := planner.NewLoopGuard(o.resolver, o.settings.LoopLimit).Observe(out); err != nil {
		return nil, err
	}
	return out, nil
}

// ExecutionPlans returns a copy of the prepared plan set in preparation order.
func (o *Orchestrator) ExecutionPlans() []models.Plan {
	out := make([]models.Plan, len(o.plans))
	for i, p := range o.plans {
		out[i] = p.Clone()
	}
	return out
}

// ResetExecutionPlans clears the plan set and its deduplication bookkeeping
// and returns the orchestrator to idle.
func (o *Orchestrator) ResetExecutionPlans() {
	o.plans = nil
	o.dedup.Reset()
	o.state = StateIdle
	o.sc.SetActive(nil)
	o.logger.Log("[orchestrator] execution plans reset")
}

// Execute prepares roots, if any, then runs every prepared plan in order and
// resets. The first failing plan stops the run and leaves the orchestrator
// aborted with its plans intact for inspection.
func (o *Orchestrator) Execute(roots ...models.Root) error {
	if !o.settings.Enabled {
		return nil
	}
	if err := o.checkIdleOrPrepared(); err != nil {
		return err
	}

	if len(roots) > 0 {
		if err := o.PreparePlans(roots...); err != nil {
			return err
		}
	}

	o.state = StateRunning
	run := o.newRunner()
	o.logger.Log("[orchestrator] executing %d plans", len(o.plans))

	if err := run.RunBatch(o.plans); err != nil {
		o.state = StateAborted
		o.logger.Log("[orchestrator] execution aborted: %v", err)
		return err
	}

	o.ResetExecutionPlans()
	return nil
}

func (o *Orchestrator) newRunner() *runner.Runner {
	run := runner.New(o.resolver, o.sc)
	run.SetSession(o.sessionID)
	run.SetDebugLog(o.logger.Log)
	if o.settings.Verbose {
		run.SetReporter(o.reporter.Print)
	}
	if o.recorder != nil {
		run.SetRecorder(o.recorder)
	}
	return run
}

func (o *Orchestrator) checkIdleOrPrepared() error {
	switch o.state {
	case StateAborted:
		return ErrAborted
	case StateRunning:
		return ErrRunning
	default:
		return nil
	}
}

// Substitution returns the injector handed to step triggers.
func (o *Orchestrator) Substitution() *substitute.Context {
	return o.sc
}

// Inject runs the active step's capability called name, or fallback.
func (o *Orchestrator) Inject(name string, fallback models.Action, args ...any) (any, error) {
	return o.sc.Inject(name, fallback, args...)
}

// Override is Inject under the name newer call sites use.
func (o *Orchestrator) Override(name string, fallback models.Action, args ...any) (any, error) {
	return o.sc.Override(name, fallback, args...)
}

// ReturnValue returns its argument unchanged.
func (o *Orchestrator) ReturnValue(args ...any) (any, error) {
	return o.sc.ReturnValue(args...)
}
