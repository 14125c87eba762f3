package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/steptest/internal/config"
	"github.com/ShayCichocki/steptest/internal/suite"
	"github.com/ShayCichocki/steptest/pkg/models"
)

var errNoRoots = errors.New("no roots: pass step identifiers or --file")

func newPlansCmd(opts *rootOptions) *cobra.Command {
	var suitePath string

	cmd := &cobra.Command{
		Use:   "plans [step-id...]",
		Short: "Enumerate the execution plans of root steps",
		Long: `Enumerate the execution plans implied by the given root steps (or the
roots of a suite file) without running them.

Example:
  steptest plans relations.lvl3_1 --parent main`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			roots, settings, err := collectRoots(args, suitePath)
			if err != nil {
				return err
			}

			reg, _, err := opts.newRegistry(nil)
			if err != nil {
				return err
			}
			sess, err := opts.newSession(cfg, reg, out, nil)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.orch.Configure(settings); err != nil {
				return err
			}
			if err := sess.orch.PreparePlans(roots...); err != nil {
				return err
			}
			fmt.Fprint(out, renderPlans("Execution plans", sess.orch.ExecutionPlans()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&suitePath, "file", "f", "", "Suite file listing the roots")
	return cmd
}

// collectRoots builds the roots from step identifiers and an optional suite
// file. Suite settings are returned for Configure.
func collectRoots(ids []string, suitePath string) ([]models.Root, map[string]any, error) {
	var roots []models.Root
	var settings map[string]any

	if suitePath != "" {
		s, err := suite.Load(suitePath)
		if err != nil {
			return nil, nil, err
		}
		roots = append(roots, s.ModelRoots()...)
		settings = s.Settings
	}
	for _, id := range ids {
		roots = append(roots, models.RootOf(models.Named(id)))
	}

	if len(roots) == 0 {
		return nil, nil, errNoRoots
	}
	if settings != nil {
		// A suite never switches orchestration off for the CLI, whatever
		// spelling it uses for the key.
		settings = config.NormalizeOptions(settings)
		delete(settings, config.KeyEnabled)
	}
	return roots, settings, nil
}
