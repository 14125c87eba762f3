package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/steptest/internal/config"
	"github.com/ShayCichocki/steptest/internal/registry"
	"github.com/ShayCichocki/steptest/internal/state"
	"github.com/ShayCichocki/steptest/internal/suite"
)

// watchDebounce collapses the burst of events an editor emits on save.
const watchDebounce = 200 * time.Millisecond

var errWatchNeedsFile = errors.New("--watch requires --file")

func newRunCmd(opts *rootOptions) *cobra.Command {
	var suitePath string
	var watch bool

	cmd := &cobra.Command{
		Use:   "run [step-id...]",
		Short: "Enumerate and execute the plans of root steps",
		Long: `Enumerate the execution plans of the given root steps (or the roots of a
suite file) and execute them in order. Execution stops at the first failing
plan. Every plan outcome is journaled for the session and summarized.

Examples:
  steptest run workspace.injectApi
  steptest run -f suite.yaml --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch && suitePath == "" {
				return errWatchNeedsFile
			}
			out := cmd.OutOrStdout()

			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			reg, _, err := opts.newRegistry(out)
			if err != nil {
				return err
			}
			db, err := state.OpenMigrated()
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer db.Close()

			r := &suiteRun{opts: opts, cfg: cfg, reg: reg, db: db, out: out, ids: args, suitePath: suitePath}
			if !watch {
				return r.run()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return r.watch(ctx)
		},
	}

	cmd.Flags().StringVarP(&suitePath, "file", "f", "", "Suite file listing the roots")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-run whenever the suite file changes")
	return cmd
}

// suiteRun executes one set of roots, each run in its own session.
type suiteRun struct {
	opts      *rootOptions
	cfg       *config.Config
	reg       *registry.Registry
	db        *state.DB
	out       io.Writer
	ids       []string
	suitePath string
}

func (r *suiteRun) label() string {
	parts := append([]string(nil), r.ids...)
	if r.suitePath != "" {
		parts = append([]string{filepath.Base(r.suitePath)}, parts...)
	}
	return strings.Join(parts, " ")
}

// run prepares and executes the roots, then prints the journaled outcome.
func (r *suiteRun) run() error {
	roots, settings, err := collectRoots(r.ids, r.suitePath)
	if err != nil {
		return err
	}

	sess, err := r.opts.newSession(r.cfg, r.reg, r.out, r.db)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.orch.Configure(settings); err != nil {
		return err
	}

	id := sess.orch.SessionID()
	if err := r.db.CreateSession(&state.Session{ID: id, Label: r.label()}); err != nil {
		return err
	}
	sess.logger.Log("[run] session %s started for %s", id, r.label())

	if err := sess.orch.PreparePlans(roots...); err != nil {
		r.finish(id, state.SessionFailed)
		return err
	}
	total := len(sess.orch.ExecutionPlans())

	runErr := sess.orch.Execute()

	runs, err := r.db.ListPlanRuns(id)
	if err != nil {
		return err
	}
	renderRuns(r.out, runs)

	summary, err := r.db.Summarize(id)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, renderSummary(summary, total-summary.Total))

	if runErr != nil {
		r.finish(id, state.SessionFailed)
		return runErr
	}
	r.finish(id, state.SessionPassed)
	return nil
}

func (r *suiteRun) finish(id string, status state.SessionStatus) {
	if err := r.db.FinishSession(id, status); err != nil {
		printStatus(r.out, "!", err.Error(), color.FgYellow)
	}
}

// watch runs once, then again after every write to the suite file until ctx
// is done. Run failures are printed and do not stop the watch.
func (r *suiteRun) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(r.suitePath)
	if err != nil {
		return err
	}
	// Editors often replace the file on save, so watch its directory.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", r.suitePath, err)
	}

	r.runAndReport()
	printStatus(r.out, "→", fmt.Sprintf("Watching %s (Ctrl+C to stop)", r.suitePath), color.FgCyan)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				pending = time.After(watchDebounce)
			}
		case <-pending:
			pending = nil
			fmt.Fprintln(r.out)
			printStatus(r.out, "→", fmt.Sprintf("%s changed, re-running", r.suitePath), color.FgCyan)
			r.runAndReport()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			printStatus(r.out, "!", fmt.Sprintf("watch error: %v", err), color.FgYellow)
		}
	}
}

func (r *suiteRun) runAndReport() {
	if err := r.run(); err != nil {
		printStatus(r.out, "✗", err.Error(), color.FgRed)
	}
}

// checkSuite validates a suite file against the registry without running it.
func checkSuite(path string, reg registry.Resolver) error {
	s, err := suite.Load(path)
	if err != nil {
		return err
	}
	return s.Check(reg)
}
