package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/praxishq/intake/internal/normalize"
	"github.com/praxishq/intake/internal/schema"
)

// Memory is an in-memory Store. Uniqueness is enforced on the id-key
// fields of each entity's definition, matching the Postgres unique
// constraints.
type Memory struct {
	mu      sync.Mutex
	next    Handle
	rows    map[schema.EntityType]map[Handle]schema.CanonicalRecord
	keys    map[schema.EntityType]map[string]Handle // "field\x00signature" -> handle
	pending *memoryTx
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		rows: make(map[schema.EntityType]map[Handle]schema.CanonicalRecord),
		keys: make(map[schema.EntityType]map[string]Handle),
	}
}

// Create persists a record outside any transaction.
func (m *Memory) Create(ctx context.Context, entity schema.EntityType, rec schema.CanonicalRecord) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.create(entity, rec)
}

func (m *Memory) create(entity schema.EntityType, rec schema.CanonicalRecord) (Handle, error) {
	def, ok := schema.Get(entity)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}

	// Uniqueness on id-key fields.
	for _, spec := range def.KeyFields(schema.KeyID) {
		v := rec.Str(spec.Name)
		if v == "" {
			continue
		}
		if _, exists := m.keys[entity][keyOf(spec.Name, v)]; exists {
			return 0, fmt.Errorf("%w: %s.%s = %q", ErrDuplicateKey, entity, spec.Name, v)
		}
	}

	m.next++
	h := m.next

	rows, ok := m.rows[entity]
	if !ok {
		rows = make(map[Handle]schema.CanonicalRecord)
		m.rows[entity] = rows
	}
	rows[h] = rec

	keys, ok := m.keys[entity]
	if !ok {
		keys = make(map[string]Handle)
		m.keys[entity] = keys
	}
	for _, spec := range def.KeyFields(schema.KeyID) {
		if v := rec.Str(spec.Name); v != "" {
			keys[keyOf(spec.Name, v)] = h
		}
	}

	return h, nil
}

// FetchByKey finds a record by an exact field value.
func (m *Memory) FetchByKey(ctx context.Context, entity schema.EntityType, field, value string) (Handle, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.keys[entity][keyOf(field, value)]; ok {
		return h, true, nil
	}

	// Non-key fields fall back to a scan.
	want := normalize.Identifier(value)
	for h, rec := range m.rows[entity] {
		if normalize.Identifier(rec.Str(field)) == want && want != "" {
			return h, true, nil
		}
	}

	return 0, false, nil
}

// Begin opens a transaction. The in-memory store supports one open
// transaction at a time, matching the single-writer pipeline.
func (m *Memory) Begin(ctx context.Context) (Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending != nil {
		return nil, fmt.Errorf("transaction already open")
	}

	tx := &memoryTx{parent: m}
	m.pending = tx
	return tx, nil
}

// Get returns a stored record, for tests.
func (m *Memory) Get(entity schema.EntityType, h Handle) (schema.CanonicalRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.rows[entity][h]
	return rec, ok
}

// Count returns the number of rows stored for an entity type, for tests.
func (m *Memory) Count(entity schema.EntityType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows[entity])
}

func keyOf(field, value string) string {
	return field + "\x00" + normalize.Identifier(value)
}

// memoryTx journals created handles so Rollback can undo the pass.
type memoryTx struct {
	parent  *Memory
	created []struct {
		entity schema.EntityType
		handle Handle
	}
	closed bool
}

func (tx *memoryTx) Create(ctx context.Context, entity schema.EntityType, rec schema.CanonicalRecord) (Handle, error) {
	tx.parent.mu.Lock()
	defer tx.parent.mu.Unlock()

	h, err := tx.parent.create(entity, rec)
	if err != nil {
		return 0, err
	}
	tx.created = append(tx.created, struct {
		entity schema.EntityType
		handle Handle
	}{entity, h})

	return h, nil
}

func (tx *memoryTx) FetchByKey(ctx context.Context, entity schema.EntityType, field, value string) (Handle, bool, error) {
	return tx.parent.FetchByKey(ctx, entity, field, value)
}

func (tx *memoryTx) Begin(ctx context.Context) (Tx, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

func (tx *memoryTx) Commit(ctx context.Context) error {
	tx.parent.mu.Lock()
	defer tx.parent.mu.Unlock()

	tx.closed = true
	tx.parent.pending = nil
	return nil
}

func (tx *memoryTx) Rollback(ctx context.Context) error {
	tx.parent.mu.Lock()
	defer tx.parent.mu.Unlock()

	if tx.closed {
		return nil
	}
	tx.closed = true
	tx.parent.pending = nil

	// Undo in reverse creation order.
	for i := len(tx.created) - 1; i >= 0; i-- {
		c := tx.created[i]
		rec, ok := tx.parent.rows[c.entity][c.handle]
		if !ok {
			continue
		}
		delete(tx.parent.rows[c.entity], c.handle)

		def, _ := schema.Get(c.entity)
		for _, spec := range def.KeyFields(schema.KeyID) {
			if v := rec.Str(spec.Name); v != "" {
				delete(tx.parent.keys[c.entity], keyOf(spec.Name, v))
			}
		}
	}

	return nil
}
