// Package index provides the per-job in-memory entity index: natural keys
// (identifier, stable id, name signature) mapped to persisted-entity
// handles, with exact and fuzzy lookup for duplicate detection and
// foreign-key resolution.
//
// Each import job owns one Index; nothing here is shared across jobs.
package index

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/praxishq/intake/internal/normalize"
	"github.com/praxishq/intake/internal/schema"
)

// ErrKeyRebound indicates an attempt to bind an already-bound key to a
// different handle. Keys are bound once per job and never rebound.
var ErrKeyRebound = errors.New("entity key already bound to a different handle")

// Handle is the store's opaque primary key for a persisted entity.
type Handle int64

// Key is a natural-key tuple: entity type, key kind, normalized value.
type Key struct {
	Entity schema.EntityType
	Role   schema.KeyRole
	Value  string
}

// IDKey builds an exact-identifier key from a raw identifier.
func IDKey(entity schema.EntityType, raw string) Key {
	return Key{Entity: entity, Role: schema.KeyID, Value: normalize.Identifier(raw)}
}

// StableKey builds a stable secondary key (tax id, bar number).
func StableKey(entity schema.EntityType, raw string) Key {
	return Key{Entity: entity, Role: schema.KeyStable, Value: normalize.Identifier(raw)}
}

// NameKey builds a name-signature key from a raw display name.
func NameKey(entity schema.EntityType, raw string) Key {
	return Key{Entity: entity, Role: schema.KeyName, Value: normalize.Name(raw)}
}

// Entry records one imported entity: its handle, the canonical record used
// to create it, and every key bound to it.
type Entry struct {
	Handle Handle
	Record schema.CanonicalRecord
	Keys   []Key
}

// Candidate is one fuzzy-lookup result, best score first.
type Candidate struct {
	Key    Key
	Handle Handle
	Name   string // Display name of the indexed entity
	Score  float64
}

type nameEntry struct {
	signature string
	display   string
	handle    Handle
}

// Index maps natural keys to handles for one import job.
type Index struct {
	mu      sync.RWMutex
	keys    map[Key]Handle
	entries map[schema.EntityType]map[Handle]*Entry
	names   map[schema.EntityType][]nameEntry
}

// New returns an empty index.
func New() *Index {
	return &Index{
		keys:    make(map[Key]Handle),
		entries: make(map[schema.EntityType]map[Handle]*Entry),
		names:   make(map[schema.EntityType][]nameEntry),
	}
}

// Lookup returns the handle bound to an exact key.
func (ix *Index) Lookup(k Key) (Handle, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	h, ok := ix.keys[k]
	return h, ok
}

// Bind binds every given key to the handle and records the entry. Keys with
// an empty normalized value are ignored. Binding a key that is already
// bound to a different handle returns ErrKeyRebound; binding to the same
// handle is a no-op, so id-based and name-based references converge on one
// entity.
func (ix *Index) Bind(entity schema.EntityType, handle Handle, record schema.CanonicalRecord, keys ...Key) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, k := range keys {
		if k.Value == "" {
			continue
		}
		if existing, ok := ix.keys[k]; ok && existing != handle {
			return fmt.Errorf("%w: %s/%s %q", ErrKeyRebound, k.Entity, k.Role, k.Value)
		}
	}

	byHandle, ok := ix.entries[entity]
	if !ok {
		byHandle = make(map[Handle]*Entry)
		ix.entries[entity] = byHandle
	}

	entry, ok := byHandle[handle]
	if !ok {
		entry = &Entry{Handle: handle, Record: record}
		byHandle[handle] = entry
	}

	for _, k := range keys {
		if k.Value == "" {
			continue
		}
		if _, bound := ix.keys[k]; bound {
			continue
		}
		ix.keys[k] = handle
		entry.Keys = append(entry.Keys, k)

		if k.Role == schema.KeyName {
			ix.names[entity] = append(ix.names[entity], nameEntry{
				signature: k.Value,
				display:   displayName(record),
				handle:    handle,
			})
		}
	}

	return nil
}

// LookupFuzzy scores the raw name against every name signature indexed for
// the entity type and returns candidates at or above CandidateFloor,
// best first.
func (ix *Index) LookupFuzzy(entity schema.EntityType, rawName string) []Candidate {
	signature := normalize.Name(rawName)
	if signature == "" {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []Candidate
	for _, ne := range ix.names[entity] {
		score := Similarity(signature, ne.signature)
		if score < CandidateFloor {
			continue
		}
		out = append(out, Candidate{
			Key:    Key{Entity: entity, Role: schema.KeyName, Value: ne.signature},
			Handle: ne.handle,
			Name:   ne.display,
			Score:  score,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Record returns the canonical record an entity was created from.
func (ix *Index) Record(entity schema.EntityType, handle Handle) (schema.CanonicalRecord, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	byHandle, ok := ix.entries[entity]
	if !ok {
		return schema.CanonicalRecord{}, false
	}
	entry, ok := byHandle[handle]
	if !ok {
		return schema.CanonicalRecord{}, false
	}
	return entry.Record, true
}

// Entries exports the recorded entries for an entity type, in no
// particular order. Used to seed a later run's index.
func (ix *Index) Entries(entity schema.EntityType) []Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]Entry, 0, len(ix.entries[entity]))
	for _, e := range ix.entries[entity] {
		out = append(out, *e)
	}
	return out
}

// Seed pre-populates the index from prior entries, typically rebuilt from
// audit records of an earlier completed job, so re-running the same files
// creates nothing new.
func (ix *Index) Seed(entity schema.EntityType, entries []Entry) error {
	for _, e := range entries {
		if err := ix.Bind(entity, e.Handle, e.Record, e.Keys...); err != nil {
			return err
		}
	}
	return nil
}

// displayName extracts a human-readable name from a record for question
// context, trying the common name fields in order.
func displayName(rec schema.CanonicalRecord) string {
	if v := rec.Str("name"); v != "" {
		return v
	}
	if first, last := rec.Str("first_name"), rec.Str("last_name"); first != "" || last != "" {
		switch {
		case first == "":
			return last
		case last == "":
			return first
		default:
			return first + " " + last
		}
	}
	return rec.Str("title")
}
