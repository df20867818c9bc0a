package web

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/praxishq/intake/internal/audit"
	"github.com/praxishq/intake/internal/config"
	"github.com/praxishq/intake/internal/job"
	"github.com/praxishq/intake/internal/logging"
	"github.com/praxishq/intake/internal/pipeline"
	"github.com/praxishq/intake/internal/question"
	"github.com/praxishq/intake/internal/schema"
	"github.com/praxishq/intake/internal/store"
)

var (
	// ErrJobNotFound is returned for an unknown job id.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotQueued rejects starting a job that already ran.
	ErrJobNotQueued = errors.New("job is not queued")
)

// managedJob bundles one job with its runner, channel, and cancel handle.
type managedJob struct {
	job     *job.Job
	files   []pipeline.File
	runner  *pipeline.Runner
	channel *question.Channel
	cancel  context.CancelFunc
}

// JobManager owns the lifecycle of import jobs behind the API: creation,
// launch with a concurrency cap, question routing, and cancellation.
type JobManager struct {
	mu   sync.RWMutex
	jobs map[string]*managedJob

	cfg   config.ImportConfig
	store store.Store
	sink  *audit.MemorySink // queryable backing for the logs/questions API
	logs  audit.LogSink
	audit audit.Sink

	// slots caps concurrently running pipelines; a started job waits in
	// queued until a slot frees.
	slots chan struct{}
}

// NewJobManager wires a manager. Extra sinks (a Postgres log mirror, say)
// are fanned out alongside the in-memory sink that backs the query API.
func NewJobManager(cfg config.ImportConfig, st store.Store, extraLogs []audit.LogSink, extraAudit []audit.Sink) *JobManager {
	mem := audit.NewMemorySink()

	logs := audit.TeeLog(append([]audit.LogSink{mem}, extraLogs...))
	sinks := audit.Tee(append([]audit.Sink{mem}, extraAudit...))

	max := cfg.MaxConcurrent
	if max < 1 {
		max = 1
	}

	return &JobManager{
		jobs:  make(map[string]*managedJob),
		cfg:   cfg,
		store: st,
		sink:  mem,
		logs:  logs,
		audit: sinks,
		slots: make(chan struct{}, max),
	}
}

// Create registers a queued job for the given files.
func (m *JobManager) Create(files []pipeline.File) (job.Snapshot, error) {
	if len(files) == 0 {
		return job.Snapshot{}, fmt.Errorf("no files given")
	}
	for _, f := range files {
		if f.Path == "" {
			return job.Snapshot{}, fmt.Errorf("file with empty path")
		}
		if _, ok := schema.Get(f.Entity); !ok {
			return job.Snapshot{}, fmt.Errorf("unknown entity type %q", f.Entity)
		}
	}

	j := job.New()
	ch := question.NewChannel(j.ID())
	if m.cfg.AnswerRetryLimit > 0 {
		ch.SetRetryLimit(m.cfg.AnswerRetryLimit)
	}

	runner := pipeline.New(j, m.store, ch, m.logs, m.audit, nil)
	runner.SkipBadRecords = m.cfg.SkipBadRecords
	runner.QuestionTimeout = m.cfg.QuestionTimeout

	m.mu.Lock()
	m.jobs[j.ID()] = &managedJob{job: j, files: files, runner: runner, channel: ch}
	m.mu.Unlock()

	return j.Snapshot(), nil
}

// Start launches the job's pipeline on its own goroutine. The job stays
// queued until a concurrency slot frees.
func (m *JobManager) Start(jobID string) error {
	m.mu.Lock()
	mj, ok := m.jobs[jobID]
	if ok && mj.cancel == nil && mj.job.Status() == job.StatusQueued {
		ctx, cancel := context.WithCancel(context.Background())
		mj.cancel = cancel
		m.mu.Unlock()

		go func() {
			select {
			case m.slots <- struct{}{}:
				defer func() { <-m.slots }()
			case <-ctx.Done():
				// Cancelled while queued.
				if err := mj.job.Transition(job.StatusCancelled); err == nil {
					mj.channel.Cancel()
				}
				return
			}
			// Run handles its own terminal states; the cause is already
			// reflected in the job and the log sink.
			logger := logging.WithFields(ctx, "job_id", mj.job.ID())
			logger.Info("pipeline run started")
			if err := mj.runner.Run(ctx, mj.files); err != nil {
				logger.Warn("pipeline run ended", "error", err)
			} else {
				logger.Info("pipeline run completed")
			}
		}()
		return nil
	}
	m.mu.Unlock()

	if !ok {
		return ErrJobNotFound
	}
	return ErrJobNotQueued
}

// Cancel stops a job: a queued job goes straight to cancelled, a running
// one is interrupted at its next suspension point.
func (m *JobManager) Cancel(jobID string) error {
	// cancel is written by Start under the same lock; read it here too.
	m.mu.RLock()
	mj, ok := m.jobs[jobID]
	var cancel context.CancelFunc
	if ok {
		cancel = mj.cancel
	}
	m.mu.RUnlock()
	if !ok {
		return ErrJobNotFound
	}

	if mj.job.Status().IsTerminal() {
		return fmt.Errorf("%w: %s", job.ErrBadTransition, mj.job.Status())
	}

	if cancel != nil {
		cancel()
	} else {
		// Never started.
		if err := mj.job.Transition(job.StatusCancelled); err != nil {
			return err
		}
	}
	mj.channel.Cancel()

	return nil
}

// Snapshot returns the current view of a job.
func (m *JobManager) Snapshot(jobID string) (job.Snapshot, error) {
	m.mu.RLock()
	mj, ok := m.jobs[jobID]
	m.mu.RUnlock()
	if !ok {
		return job.Snapshot{}, ErrJobNotFound
	}
	return mj.job.Snapshot(), nil
}

// Snapshots returns every known job, newest last.
func (m *JobManager) Snapshots() []job.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]job.Snapshot, 0, len(m.jobs))
	for _, mj := range m.jobs {
		out = append(out, mj.job.Snapshot())
	}
	return out
}

// Logs returns a job's import narrative after the given sequence number.
func (m *JobManager) Logs(jobID string, since int64) ([]audit.LogEntry, error) {
	m.mu.RLock()
	_, ok := m.jobs[jobID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrJobNotFound
	}
	return m.sink.Logs(jobID, since), nil
}

// Questions returns a job's pending questions (at most one by design).
func (m *JobManager) Questions(jobID string) ([]question.Question, error) {
	m.mu.RLock()
	mj, ok := m.jobs[jobID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrJobNotFound
	}

	if q, pending := mj.channel.Pending(); pending {
		return []question.Question{q}, nil
	}
	return []question.Question{}, nil
}

// Answer routes a responder's answer to whichever job owns the question.
func (m *JobManager) Answer(questionID, value string) error {
	m.mu.RLock()
	var owner *managedJob
	for _, mj := range m.jobs {
		if _, ok := mj.channel.Poll(questionID); ok {
			owner = mj
			break
		}
	}
	m.mu.RUnlock()

	if owner == nil {
		return question.ErrNotFound
	}
	return owner.channel.Answer(questionID, value)
}
