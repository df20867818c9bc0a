package audit

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/praxishq/intake/internal/schema"
)

// PostgresSink persists log lines and audit entries to the import_logs and
// imported_records tables. Writes are best-effort: a sink failure is logged
// but never fails the import, since the job's counters remain the source of
// truth.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink creates a sink on the given pool.
func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

// Append writes one log line.
func (s *PostgresSink) Append(jobID string, level Level, message string) {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO import_logs (job_id, level, message) VALUES ($1, $2, $3)`,
		jobID, string(level), message,
	)
	if err != nil {
		slog.Error("append import log", "job_id", jobID, "error", err)
	}
}

// Record writes one audit entry.
func (s *PostgresSink) Record(jobID string, entity schema.EntityType, handle int64, sourceFile string, sourceRow int) {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO imported_records (job_id, entity_type, record_id, source_file, source_row)
		 VALUES ($1, $2, $3, $4, $5)`,
		jobID, string(entity), handle, sourceFile, sourceRow,
	)
	if err != nil {
		slog.Error("append audit entry", "job_id", jobID, "entity", string(entity), "error", err)
	}
}
