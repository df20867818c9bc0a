// Package job defines the ImportJob value: its status state machine,
// counters, and lifecycle timestamps. One Job is owned by one pipeline run;
// concurrent jobs share nothing.
package job

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status of an import job.
type Status string

const (
	StatusQueued       Status = "queued"
	StatusProcessing   Status = "processing"
	StatusWaitingInput Status = "waiting_input"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
)

// ErrBadTransition rejects a status change the state machine does not allow.
var ErrBadTransition = errors.New("illegal status transition")

// transitions lists the allowed moves. Terminal states have none.
var transitions = map[Status][]Status{
	StatusQueued:       {StatusProcessing, StatusFailed, StatusCancelled},
	StatusProcessing:   {StatusWaitingInput, StatusCompleted, StatusFailed, StatusCancelled},
	StatusWaitingInput: {StatusProcessing, StatusFailed, StatusCancelled},
}

// IsTerminal reports whether a status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Counters tracks record-level progress. The invariant
// processed = imported + skipped + errors holds at every observation
// point because the three Record* methods are the only mutators.
type Counters struct {
	Processed int `json:"processed"`
	Imported  int `json:"imported"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// Job is one import session.
type Job struct {
	mu sync.Mutex

	id           string
	status       Status
	counters     Counters
	createdAt    time.Time
	startedAt    time.Time
	completedAt  time.Time
	summary      string
	errorDetails string
}

// New creates a queued job.
func New() *Job {
	return &Job{
		id:        uuid.New().String(),
		status:    StatusQueued,
		createdAt: time.Now().UTC(),
	}
}

// ID returns the job identifier.
func (j *Job) ID() string { return j.id }

// Status returns the current status.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Transition moves the job to a new status, stamping StartedAt on the
// first move to processing and CompletedAt on any terminal move.
func (j *Job) Transition(to Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	allowed := false
	for _, next := range transitions[j.status] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, j.status, to)
	}

	j.status = to
	now := time.Now().UTC()
	if to == StatusProcessing && j.startedAt.IsZero() {
		j.startedAt = now
	}
	if to.IsTerminal() {
		j.completedAt = now
	}

	return nil
}

// RecordImported counts one successfully persisted record.
func (j *Job) RecordImported() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.counters.Processed++
	j.counters.Imported++
}

// RecordSkipped counts one record skipped by decision or duplicate.
func (j *Job) RecordSkipped() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.counters.Processed++
	j.counters.Skipped++
}

// RecordError counts one record dropped by a non-fatal error.
func (j *Job) RecordError() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.counters.Processed++
	j.counters.Errors++
}

// Counters returns a copy of the current counters.
func (j *Job) Counters() Counters {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.counters
}

// SetSummary records the terminal summary line.
func (j *Job) SetSummary(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.summary = s
}

// SetErrorDetails records why the job failed.
func (j *Job) SetErrorDetails(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errorDetails = s
}

// Snapshot is an immutable view of a job for reporting and the API.
type Snapshot struct {
	ID           string    `json:"id"`
	Status       Status    `json:"status"`
	Counters     Counters  `json:"counters"`
	CreatedAt    time.Time `json:"created_at"`
	StartedAt    time.Time `json:"started_at,omitzero"`
	CompletedAt  time.Time `json:"completed_at,omitzero"`
	Summary      string    `json:"summary,omitempty"`
	ErrorDetails string    `json:"error_details,omitempty"`
}

// Snapshot returns the current view of the job.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	return Snapshot{
		ID:           j.id,
		Status:       j.status,
		Counters:     j.counters,
		CreatedAt:    j.createdAt,
		StartedAt:    j.startedAt,
		CompletedAt:  j.completedAt,
		Summary:      j.summary,
		ErrorDetails: j.errorDetails,
	}
}

// StatusReporter receives status and counter updates as the pipeline moves
// through phases. Implementations must not block the worker.
type StatusReporter interface {
	SetStatus(jobID string, status Status, counters Counters)
}

// NopReporter discards updates.
type NopReporter struct{}

func (NopReporter) SetStatus(string, Status, Counters) {}
