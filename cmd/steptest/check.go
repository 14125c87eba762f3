package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/steptest/internal/graph"
	"github.com/ShayCichocki/steptest/internal/orchestrator"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var suitePath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check step relations for asymmetries and cycles",
		Long: `Check the registered step relations. A relation declared on one side only
is reported as a warning; a cycle is reported as an error since it makes
enumeration stop at the loop limit. With --file, the suite's roots are also
checked against the registry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			reg, _, err := opts.newRegistry(nil)
			if err != nil {
				return err
			}

			logger, err := orchestrator.NewDebugLogger(cfg.LogFile)
			if err != nil {
				return err
			}
			defer logger.Close()

			g := graph.New()
			g.SetDebugLog(logger.Log)
			if err := g.Build(reg.All(), reg); err != nil {
				return err
			}

			asymmetries := g.Asymmetries()
			for _, a := range asymmetries {
				printStatus(out, "!", a.String(), color.FgYellow)
			}

			if err := g.CheckAcyclic(); err != nil {
				printStatus(out, "✗", err.Error(), color.FgRed)
				return err
			}

			if suitePath != "" {
				if err := checkSuite(suitePath, reg); err != nil {
					printStatus(out, "✗", err.Error(), color.FgRed)
					return err
				}
				printStatus(out, "✓", fmt.Sprintf("%s resolves", suitePath), color.FgGreen)
			}

			printStatus(out, "✓", fmt.Sprintf("%d steps, %d asymmetric relations, no cycles", g.Size(), len(asymmetries)), color.FgGreen)
			return nil
		},
	}

	cmd.Flags().StringVarP(&suitePath, "file", "f", "", "Suite file to check")
	return cmd
}
