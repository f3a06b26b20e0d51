// Package job implements the Job Registry: the finite state machine that
// tracks an extraction job's plan, per-task status, and most recent
// partial summary, so a caller can resume only outstanding work (§4.K).
package job

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"shadowatlas/internal/extraction"
)

// State is a job's position in the state machine: pending -> running ->
// {partial | committed | validation_failed | extraction_failed}. From
// partial a caller may resume_extraction, which re-plans only outstanding
// tasks (§4.K).
type State string

const (
	StatePending           State = "pending"
	StateRunning           State = "running"
	StatePartial           State = "partial"
	StateCommitted         State = "committed"
	StateValidationFailed  State = "validation_failed"
	StateExtractionFailed  State = "extraction_failed"
)

// transitions is the allowed edge set of the job state machine.
var transitions = map[State][]State{
	StatePending: {StateRunning},
	StateRunning: {StatePartial, StateCommitted, StateValidationFailed, StateExtractionFailed},
	StatePartial: {StateRunning},
}

// CanTransition reports whether from -> to is a legal state-machine edge.
func CanTransition(from, to State) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TaskStatus is the per-task record persisted alongside a job (§4.E step
// 7: "Persist task outcomes in the Job... so that resume(job_id) skips
// completed tasks").
type TaskStatus struct {
	TaskID    string
	Completed bool
	Failed    bool
	Error     string
}

// Record is one job's full persisted state.
type Record struct {
	ID        string
	State     State
	PlanJSON  string // caller-supplied description of the plan, opaque to this package
	Tasks     []TaskStatus
	Summary   *extraction.Summary
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Registry is the sqlite-backed Job Registry.
type Registry struct {
	db *sql.DB
}

// Open opens (creating if necessary) the job registry database at path.
func Open(path string) (*Registry, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("job: create directory %s: %w", dir, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("job: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("job: set WAL mode: %w", err)
	}

	r := &Registry{db: db}
	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Registry) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		plan_json TEXT NOT NULL,
		tasks_json TEXT NOT NULL,
		summary_json TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := r.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (r *Registry) Close() error { return r.db.Close() }

// Create inserts a new job in the pending state.
func (r *Registry) Create(id, planJSON string) error {
	now := time.Now()
	tasksJSON, _ := json.Marshal([]TaskStatus{})
	_, err := r.db.Exec(
		`INSERT INTO jobs (id, state, plan_json, tasks_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, StatePending, planJSON, string(tasksJSON), now, now,
	)
	if err != nil {
		return fmt.Errorf("job: create %s: %w", id, err)
	}
	return nil
}

// Get loads a job's current record.
func (r *Registry) Get(id string) (Record, error) {
	row := r.db.QueryRow(`SELECT id, state, plan_json, tasks_json, summary_json, created_at, updated_at FROM jobs WHERE id = ?`, id)

	var (
		rec         Record
		summaryJSON sql.NullString
		tasksJSON   string
	)
	if err := row.Scan(&rec.ID, &rec.State, &rec.PlanJSON, &tasksJSON, &summaryJSON, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, fmt.Errorf("job: get %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(tasksJSON), &rec.Tasks); err != nil {
		return Record{}, fmt.Errorf("job: decode tasks for %s: %w", id, err)
	}
	if summaryJSON.Valid && summaryJSON.String != "" {
		var summary extraction.Summary
		if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err != nil {
			return Record{}, fmt.Errorf("job: decode summary for %s: %w", id, err)
		}
		rec.Summary = &summary
	}
	return rec, nil
}

// Transition moves job id from its current state to next, rejecting the
// call if the edge is not legal in the state machine.
func (r *Registry) Transition(id string, next State) error {
	rec, err := r.Get(id)
	if err != nil {
		return err
	}
	if !CanTransition(rec.State, next) {
		return fmt.Errorf("job: illegal transition %s -> %s for job %s", rec.State, next, id)
	}
	_, err = r.db.Exec(`UPDATE jobs SET state = ?, updated_at = ? WHERE id = ?`, next, time.Now(), id)
	if err != nil {
		return fmt.Errorf("job: transition %s: %w", id, err)
	}
	return nil
}

// RecordTaskOutcome upserts a task's status and persists the most recent
// partial summary, so ResumeExtraction can skip completed tasks.
func (r *Registry) RecordTaskOutcome(id string, task TaskStatus, summary extraction.Summary) error {
	rec, err := r.Get(id)
	if err != nil {
		return err
	}

	updated := false
	for i, t := range rec.Tasks {
		if t.TaskID == task.TaskID {
			rec.Tasks[i] = task
			updated = true
			break
		}
	}
	if !updated {
		rec.Tasks = append(rec.Tasks, task)
	}

	tasksJSON, err := json.Marshal(rec.Tasks)
	if err != nil {
		return fmt.Errorf("job: encode tasks for %s: %w", id, err)
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("job: encode summary for %s: %w", id, err)
	}

	_, err = r.db.Exec(
		`UPDATE jobs SET tasks_json = ?, summary_json = ?, updated_at = ? WHERE id = ?`,
		string(tasksJSON), string(summaryJSON), time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("job: record task outcome for %s: %w", id, err)
	}
	return nil
}

// OutstandingTaskIDs returns task IDs from the full plan that have not yet
// completed successfully, the set ResumeExtraction re-plans (§4.K).
func OutstandingTaskIDs(allTaskIDs []string, tasks []TaskStatus) []string {
	completed := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t.Completed && !t.Failed {
			completed[t.TaskID] = true
		}
	}
	var out []string
	for _, id := range allTaskIDs {
		if !completed[id] {
			out = append(out, id)
		}
	}
	return out
}
