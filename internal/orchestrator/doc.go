// Package orchestrator ties step enumeration and plan execution together.
//
// The orchestrator package provides functionality for:
//   - Plan preparation: enumerating every plan implied by a root step's relations
//   - Deduplication: keeping one plan per ordered sequence of step identities
//   - Execution: running each plan with fresh memory and per-step substitution
//
// Production code reaches the orchestrator through the models.Injector it is
// handed by each step trigger. Outside orchestration (or when the orchestrator
// is disabled) every substitution point runs its real implementation.
//
// Example usage:
//
//	reg := registry.New()
//	reg.MustRegister("files", createFile, checkContent)
//	o := orchestrator.New(reg)
//	if err := o.Configure(map[string]any{"enabled": true, "verbose": true}); err != nil {
//		return err
//	}
//	err := o.Execute(models.RootOf(models.Use(checkContent)))
package orchestrator
