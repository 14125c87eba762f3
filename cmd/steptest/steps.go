package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/steptest/internal/registry"
	"github.com/ShayCichocki/steptest/pkg/models"
)

func newStepsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List registered steps and their relations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			reg, _, err := opts.newRegistry(nil)
			if err != nil {
				return err
			}

			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Steps (%d)", reg.Size())))
			for _, def := range reg.All() {
				id, _ := reg.Identifier(def.Name)
				fmt.Fprintf(out, "  %s\n", stepStyle.Render(id))
				if def.HasDependencies() {
					fmt.Fprintf(out, "      dependencies: %s\n", relationNames(reg, def.Dependencies))
				}
				if def.HasChildren() {
					fmt.Fprintf(out, "      children:     %s\n", relationNames(reg, def.Children))
				}
			}
			return nil
		},
	}
}

func relationNames(reg *registry.Registry, refs []models.Ref) string {
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		def, err := reg.Resolve(ref)
		if err != nil {
			names = append(names, ref.String()+" (unresolved)")
			continue
		}
		names = append(names, def.Name)
	}
	return strings.Join(names, ", ")
}
