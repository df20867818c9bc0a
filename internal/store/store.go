// Package store defines the persistence collaborator the pipeline writes
// through, with the scoped-transaction discipline the import requires: one
// transaction per entity-type pass, rolled back whole on a fatal error so
// the store never holds a partially imported entity type.
//
// Two implementations are provided: Postgres on pgx, and an in-memory
// store used by tests and local runs.
package store

import (
	"context"
	"errors"

	"github.com/praxishq/intake/internal/schema"
)

// Handle is the store's opaque primary key for a persisted entity.
type Handle int64

var (
	// ErrDuplicateKey reports a uniqueness violation the resolution engine
	// did not catch. The pipeline treats it as a persistence failure for
	// the whole pass.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrUnknownEntity reports an entity type the store has no table for.
	ErrUnknownEntity = errors.New("unknown entity type")
)

// Store persists canonical records and answers key lookups.
type Store interface {
	// Create persists a record and returns its handle.
	Create(ctx context.Context, entity schema.EntityType, rec schema.CanonicalRecord) (Handle, error)

	// FetchByKey finds a previously persisted record by an exact field
	// value (identifier comparison semantics).
	FetchByKey(ctx context.Context, entity schema.EntityType, field, value string) (Handle, bool, error)

	// Begin opens the scoped transaction for one entity-type pass.
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a scoped transaction. Writes through a Tx are invisible until
// Commit and disappear on Rollback.
type Tx interface {
	Store

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
