// Package audit provides the job-scoped log sink and the append-only audit
// trail of imported entities. The log sink carries the import narrative the
// job's observers read (including THINKING and DECISION lines); the audit
// sink records every persisted entity so a later run can be seeded for
// idempotent re-imports.
package audit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/praxishq/intake/internal/schema"
)

// Level classifies a log line. SUCCESS, THINKING and DECISION extend the
// usual severities with the import narrative levels observers expect.
type Level string

const (
	LevelDebug    Level = "DEBUG"
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelError    Level = "ERROR"
	LevelSuccess  Level = "SUCCESS"
	LevelThinking Level = "THINKING"
	LevelDecision Level = "DECISION"
)

// LogEntry is one appended log line.
type LogEntry struct {
	Seq     int64     `json:"seq"`
	JobID   string    `json:"job_id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Entry is one audit record: an entity persisted by a job.
type Entry struct {
	JobID      string            `json:"job_id"`
	Entity     schema.EntityType `json:"entity"`
	Handle     int64             `json:"handle"`
	SourceFile string            `json:"source_file"`
	SourceRow  int               `json:"source_row"`
	At         time.Time         `json:"at"`
}

// LogSink receives the per-job import narrative.
type LogSink interface {
	Append(jobID string, level Level, message string)
}

// Sink receives one audit entry per successfully imported record.
type Sink interface {
	Record(jobID string, entity schema.EntityType, handle int64, sourceFile string, sourceRow int)
}

// TeeLog fans one Append out to several log sinks.
type TeeLog []LogSink

func (t TeeLog) Append(jobID string, level Level, message string) {
	for _, s := range t {
		s.Append(jobID, level, message)
	}
}

// Tee fans one Record out to several audit sinks.
type Tee []Sink

func (t Tee) Record(jobID string, entity schema.EntityType, handle int64, sourceFile string, sourceRow int) {
	for _, s := range t {
		s.Record(jobID, entity, handle, sourceFile, sourceRow)
	}
}

// MemorySink implements LogSink and Sink in memory, mirroring log lines to
// slog. Used by tests, local runs, and as the backing for the logs API.
type MemorySink struct {
	mu      sync.RWMutex
	seq     int64
	logs    map[string][]LogEntry
	entries map[string][]Entry
}

// NewMemorySink returns an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		logs:    make(map[string][]LogEntry),
		entries: make(map[string][]Entry),
	}
}

// Append adds a log line for the job.
func (s *MemorySink) Append(jobID string, level Level, message string) {
	s.mu.Lock()
	s.seq++
	entry := LogEntry{
		Seq:     s.seq,
		JobID:   jobID,
		Level:   level,
		Message: message,
		At:      time.Now().UTC(),
	}
	s.logs[jobID] = append(s.logs[jobID], entry)
	s.mu.Unlock()

	slog.Debug("import log", "job_id", jobID, "level", string(level), "message", message)
}

// Record adds an audit entry for a persisted record.
func (s *MemorySink) Record(jobID string, entity schema.EntityType, handle int64, sourceFile string, sourceRow int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[jobID] = append(s.entries[jobID], Entry{
		JobID:      jobID,
		Entity:     entity,
		Handle:     handle,
		SourceFile: sourceFile,
		SourceRow:  sourceRow,
		At:         time.Now().UTC(),
	})
}

// Logs returns the job's log entries with Seq greater than since.
func (s *MemorySink) Logs(jobID string, since int64) []LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.logs[jobID]
	out := make([]LogEntry, 0, len(all))
	for _, e := range all {
		if e.Seq > since {
			out = append(out, e)
		}
	}
	return out
}

// Entries returns the job's audit entries in append order.
func (s *MemorySink) Entries(jobID string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Entry(nil), s.entries[jobID]...)
}

// EntriesByEntity returns the job's audit entries for one entity type.
func (s *MemorySink) EntriesByEntity(jobID string, entity schema.EntityType) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for _, e := range s.entries[jobID] {
		if e.Entity == entity {
			out = append(out, e)
		}
	}
	return out
}
