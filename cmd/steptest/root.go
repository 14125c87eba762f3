package main

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/steptest/internal/catalog"
	"github.com/ShayCichocki/steptest/internal/config"
	"github.com/ShayCichocki/steptest/internal/orchestrator"
	"github.com/ShayCichocki/steptest/internal/registry"
	"github.com/ShayCichocki/steptest/internal/runner"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	parent     string
	children   string
	loopLimit  int
	verbose    bool
	logFile    string
	seed       uint64
	workspace  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "steptest",
		Short: "Step-based test orchestration",
		Long: `steptest enumerates every execution plan implied by the relations between
declared steps and runs each plan, swapping real behavior for test doubles
and carrying memory from one step to the next.

Settings are read from .steptest.yaml (searched upward from the current
directory), then STEPTEST_* environment variables, then flags.`,
		SilenceUsage: true,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "Config file (default: project .steptest.yaml)")
	f.StringVar(&opts.parent, "parent", "", "Parent expansion policy: all, random or main")
	f.StringVar(&opts.children, "children", "", "Children expansion policy: all, random or main")
	f.IntVar(&opts.loopLimit, "loop-limit", config.DefaultLoopLimit, "Occurrences of one step in a plan treated as an infinite loop")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Print relationship checks and plan progress")
	f.StringVar(&opts.logFile, "log-file", "", "Write a debug log to this file")
	f.Uint64Var(&opts.seed, "seed", 0, "Seed for the random expansion policy (0 picks one)")
	f.StringVar(&opts.workspace, "workspace", "", "Directory for the workspace demo steps (default: a temporary directory)")

	cmd.AddCommand(newStepsCmd(opts))
	cmd.AddCommand(newPlansCmd(opts))
	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newCheckCmd(opts))
	cmd.AddCommand(versionCmd)
	return cmd
}

// Execute runs the root command
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and environment, then applies the flags
// that were set. The CLI always runs with orchestration enabled.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if o.configPath != "" {
		cfg, err = config.LoadFromPath(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	overrides := map[string]any{config.KeyEnabled: true}
	flags := cmd.Flags()
	if flags.Changed("parent") {
		overrides[config.KeyParentExpansion] = o.parent
	}
	if flags.Changed("children") {
		overrides[config.KeyChildrenExpansion] = o.children
	}
	if flags.Changed("loop-limit") {
		overrides[config.KeyLoopLimit] = o.loopLimit
	}
	if flags.Changed("verbose") {
		overrides[config.KeyVerbose] = o.verbose
	}

	s, err := cfg.Settings.Apply(overrides)
	if err != nil {
		return nil, err
	}
	cfg.Settings = s
	if flags.Changed("log-file") {
		cfg.LogFile = o.logFile
	}
	return cfg, nil
}

// newRegistry registers the demo catalog. The workspace directory is created
// when missing.
func (o *rootOptions) newRegistry(out io.Writer) (*registry.Registry, *catalog.Workspace, error) {
	dir := o.workspace
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "steptest-workspace")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create workspace: %w", err)
	}

	ws := &catalog.Workspace{Dir: dir, Out: out}
	reg := registry.New()
	if err := catalog.Register(reg, ws); err != nil {
		return nil, nil, err
	}
	return reg, ws, nil
}

// session bundles an orchestrator with the logger it owns.
type session struct {
	orch   *orchestrator.Orchestrator
	logger *orchestrator.DebugLogger
}

func (s *session) Close() error {
	return s.logger.Close()
}

func (o *rootOptions) newSession(cfg *config.Config, reg registry.Resolver, out io.Writer, rec runner.Recorder) (*session, error) {
	logger, err := orchestrator.NewDebugLogger(cfg.LogFile)
	if err != nil {
		return nil, err
	}

	opts := []orchestrator.Option{
		orchestrator.WithSettings(cfg.Settings),
		orchestrator.WithOutput(out),
		orchestrator.WithLogger(logger),
	}
	if o.seed != 0 {
		opts = append(opts, orchestrator.WithRand(rand.New(rand.NewPCG(o.seed, o.seed))))
	}
	if rec != nil {
		opts = append(opts, orchestrator.WithRecorder(rec))
	}
	return &session{orch: orchestrator.New(reg, opts...), logger: logger}, nil
}
