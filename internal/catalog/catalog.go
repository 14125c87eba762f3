// Package catalog holds the demo steps shipped with the steptest CLI: a
// relation tree for exploring plan enumeration and a small file workspace
// scenario exercising substitution and memory.
package catalog

import (
	"fmt"

	"github.com/ShayCichocki/steptest/internal/registry"
)

const (
	// RelationsNamespace holds the relation tree steps.
	RelationsNamespace = "relations"
	// WorkspaceNamespace holds the file workspace steps.
	WorkspaceNamespace = "workspace"
)

// Register adds every demo step to reg. The workspace steps operate on ws.
func Register(reg *registry.Registry, ws *Workspace) error {
	if err := reg.Register(RelationsNamespace, Relations()...); err != nil {
		return fmt.Errorf("register relations: %w", err)
	}
	if err := reg.Register(WorkspaceNamespace, ws.Steps()...); err != nil {
		return fmt.Errorf("register workspace: %w", err)
	}
	return nil
}
