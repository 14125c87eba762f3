package state

import (
	"io"

	"github.com/ShayCichocki/steptest/internal/runner"
)

// SessionStore handles session-related persistence operations.
type SessionStore interface {
	CreateSession(s *Session) error
	GetSession(id string) (*Session, error)
	FinishSession(id string, status SessionStatus) error
}

// PlanRunStore handles plan run persistence operations.
type PlanRunStore interface {
	runner.Recorder
	ListPlanRuns(sessionID string) ([]PlanRun, error)
	Summarize(sessionID string) (Summary, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Journal is the run journal used by the CLI.
type Journal interface {
	io.Closer
	Migrator
	SessionStore
	PlanRunStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Journal         = (*DB)(nil)
	_ Migrator        = (*DB)(nil)
	_ SessionStore    = (*DB)(nil)
	_ PlanRunStore    = (*DB)(nil)
	_ runner.Recorder = (*DB)(nil)
)
