package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/steptest/internal/runner"
)

// SessionStatus represents the status of a session.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionPassed SessionStatus = "passed"
	SessionFailed SessionStatus = "failed"
)

// PlanStatus represents the outcome of one plan run.
type PlanStatus string

const (
	PlanPassed PlanStatus = "passed"
	PlanFailed PlanStatus = "failed"
)

// Session groups the plan runs of one orchestrator.
type Session struct {
	ID        string        `json:"id"`
	Label     string        `json:"label"`
	StartedAt time.Time     `json:"started_at"`
	Status    SessionStatus `json:"status"`
}

// PlanRun is the journal row for one executed plan.
type PlanRun struct {
	SessionID  string        `json:"session_id"`
	PlanIndex  int           `json:"plan_index"`
	Steps      []string      `json:"steps"`
	Status     PlanStatus    `json:"status"`
	FailedStep string        `json:"failed_step,omitempty"`
	Phase      string        `json:"phase,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// Summary aggregates the plan runs of one session.
type Summary struct {
	SessionID string
	Total     int
	Passed    int
	Failed    int
	Duration  time.Duration
}

// Session CRUD operations

// CreateSession creates a new active session.
func (db *DB) CreateSession(s *Session) error {
	if s.Status == "" {
		s.Status = SessionActive
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	_, err := db.Exec(`
		INSERT INTO sessions (id, label, started_at, status)
		VALUES (?, ?, ?, ?)
	`, s.ID, s.Label, formatTime(s.StartedAt), string(s.Status))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID. It returns nil when none exists.
func (db *DB) GetSession(id string) (*Session, error) {
	row := db.QueryRow(`
		SELECT id, label, started_at, status
		FROM sessions WHERE id = ?
	`, id)

	var s Session
	var startedAt string
	err := row.Scan(&s.ID, &s.Label, &startedAt, &s.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	s.StartedAt, _ = parseTime(startedAt)
	return &s, nil
}

// FinishSession sets the final status of a session.
func (db *DB) FinishSession(id string, status SessionStatus) error {
	res, err := db.Exec("UPDATE sessions SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish session %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// Plan run operations

// RecordPlan implements runner.Recorder. The session row is created on
// first use.
func (db *DB) RecordPlan(result runner.PlanResult) error {
	steps, err := json.Marshal(result.Steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}

	run := PlanRun{
		SessionID:  result.Session,
		PlanIndex:  result.Index,
		Status:     PlanPassed,
		Duration:   result.Duration,
		RecordedAt: time.Now(),
	}
	var failedStep, phase, errText sql.NullString
	if result.Err != nil {
		run.Status = PlanFailed
		errText = sql.NullString{String: result.Err.Error(), Valid: true}
		var failure *runner.ScenarioFailure
		if errors.As(result.Err, &failure) {
			failedStep = sql.NullString{String: failure.Step, Valid: true}
			phase = sql.NullString{String: string(failure.Phase), Valid: true}
		}
	}

	return db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO sessions (id, started_at, status) VALUES (?, ?, ?)
		`, run.SessionID, formatTime(run.RecordedAt), string(SessionActive)); err != nil {
			return fmt.Errorf("ensure session: %w", err)
		}

		_, err := tx.Exec(`
			INSERT OR REPLACE INTO plan_runs
				(session_id, plan_index, steps, status, failed_step, phase, error, duration_ms, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.SessionID, run.PlanIndex, string(steps), string(run.Status), failedStep, phase, errText,
			run.Duration.Milliseconds(), formatTime(run.RecordedAt))
		if err != nil {
			return fmt.Errorf("record plan run: %w", err)
		}
		return nil
	})
}

// ListPlanRuns lists the plan runs of a session in plan order.
func (db *DB) ListPlanRuns(sessionID string) ([]PlanRun, error) {
	rows, err := db.Query(`
		SELECT session_id, plan_index, steps, status, failed_step, phase, error, duration_ms, recorded_at
		FROM plan_runs WHERE session_id = ? ORDER BY plan_index
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list plan runs: %w", err)
	}
	defer rows.Close()

	var runs []PlanRun
	for rows.Next() {
		var r PlanRun
		var steps, recordedAt string
		var failedStep, phase, errText sql.NullString
		var durationMs int64
		if err := rows.Scan(&r.SessionID, &r.PlanIndex, &steps, &r.Status, &failedStep, &phase, &errText, &durationMs, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan plan run: %w", err)
		}
		if err := json.Unmarshal([]byte(steps), &r.Steps); err != nil {
			return nil, fmt.Errorf("decode steps: %w", err)
		}
		r.FailedStep = failedStep.String
		r.Phase = phase.String
		r.Error = errText.String
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.RecordedAt, _ = parseTime(recordedAt)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plan runs: %w", err)
	}
	return runs, nil
}

// Summarize aggregates the plan runs of a session.
func (db *DB) Summarize(sessionID string) (Summary, error) {
	row := db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(duration_ms), 0)
		FROM plan_runs WHERE session_id = ?
	`, string(PlanPassed), string(PlanFailed), sessionID)

	s := Summary{SessionID: sessionID}
	var durationMs int64
	if err := row.Scan(&s.Total, &s.Passed, &s.Failed, &durationMs); err != nil {
		return Summary{}, fmt.Errorf("summarize session: %w", err)
	}
	s.Duration = time.Duration(durationMs) * time.Millisecond
	return s, nil
}
