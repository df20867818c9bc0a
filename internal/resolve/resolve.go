// Package resolve implements the resolution engine: given a canonical
// record and the job's entity index, it decides whether the record is new,
// a known duplicate, a fuzzy-duplicate candidate needing confirmation, or
// carries an unresolvable reference needing a decision.
//
// Resolution never persists and never asks questions; it only classifies.
// The pipeline owns what happens next.
package resolve

import (
	"strings"

	"github.com/praxishq/intake/internal/index"
	"github.com/praxishq/intake/internal/schema"
)

// Kind tags a resolution outcome.
type Kind int

const (
	// New: no key bound, no strong fuzzy candidate, all references
	// resolved. Safe to persist.
	New Kind = iota

	// Duplicate: an exact or stable key is already bound. Authoritative;
	// no question needed.
	Duplicate

	// PendingDuplicateConfirmation: the best fuzzy name candidate is at or
	// above the confirmation threshold. Merging is irreversible once
	// downstream records bind to the handle, so this always needs an
	// explicit answer.
	PendingDuplicateConfirmation

	// UnresolvedReference: a reference field matched nothing by identifier
	// or by name.
	UnresolvedReference
)

func (k Kind) String() string {
	switch k {
	case New:
		return "new"
	case Duplicate:
		return "duplicate"
	case PendingDuplicateConfirmation:
		return "pending_duplicate_confirmation"
	case UnresolvedReference:
		return "unresolved_reference"
	}
	return "unknown"
}

// Outcome is the tagged result of resolving one record.
type Outcome struct {
	Kind Kind

	// Existing is the bound handle for Duplicate outcomes.
	Existing index.Handle

	// Candidate is the top fuzzy match for PendingDuplicateConfirmation.
	Candidate index.Candidate

	// MissingField/MissingRef/RefEntity describe an UnresolvedReference.
	MissingField string
	MissingRef   string
	RefEntity    schema.EntityType

	// Refs holds resolved reference handles by field name, populated for
	// New outcomes so the pipeline persists without a second lookup.
	Refs map[string]index.Handle
}

// Resolve classifies one record against the index:
//
//  1. Exact identifier key bound → Duplicate.
//  2. Stable key (tax id, bar number) bound → Duplicate. A shared stable
//     identifier outranks the fuzzy policy: no question needed.
//  3. Top fuzzy name candidate ≥ confirmation threshold →
//     PendingDuplicateConfirmation.
//  4. Reference fields resolved by identifier, then by name; the first
//     failure → UnresolvedReference.
//  5. Otherwise New.
func Resolve(def schema.Definition, rec schema.CanonicalRecord, ix *index.Index) Outcome {
	for _, spec := range def.KeyFields(schema.KeyID) {
		if v := rec.Str(spec.Name); v != "" {
			if h, ok := ix.Lookup(index.IDKey(def.Entity, v)); ok {
				return Outcome{Kind: Duplicate, Existing: h}
			}
		}
	}

	for _, spec := range def.KeyFields(schema.KeyStable) {
		if v := rec.Str(spec.Name); v != "" {
			if h, ok := ix.Lookup(index.StableKey(def.Entity, v)); ok {
				return Outcome{Kind: Duplicate, Existing: h}
			}
		}
	}

	if name := DisplayName(def, rec); name != "" {
		if cands := ix.LookupFuzzy(def.Entity, name); len(cands) > 0 && cands[0].Score >= index.ConfirmThreshold {
			// The exact name key binding its own handle is the record
			// itself only on re-runs; those are caught by id/stable keys
			// above, so anything here is a genuine candidate.
			return Outcome{Kind: PendingDuplicateConfirmation, Candidate: cands[0]}
		}
	}

	refs := make(map[string]index.Handle)
	for _, spec := range def.FieldsOfType(schema.FieldReference) {
		v := rec.Str(spec.Name)
		if v == "" {
			continue
		}
		h, ok := ResolveReference(ix, spec.References, v)
		if !ok {
			return Outcome{Kind: UnresolvedReference, MissingField: spec.Name, MissingRef: v, RefEntity: spec.References}
		}
		refs[spec.Name] = h
	}

	return Outcome{Kind: New, Refs: refs}
}

// ResolveReference looks a raw reference value up by identifier key first,
// then by name key. Source files mix both for the same logical entities.
func ResolveReference(ix *index.Index, entity schema.EntityType, raw string) (index.Handle, bool) {
	if h, ok := ix.Lookup(index.IDKey(entity, raw)); ok {
		return h, true
	}
	return ix.Lookup(index.NameKey(entity, raw))
}

// RecordKeys derives every natural key of a record from its definition:
// exact identifier keys, stable keys, and the name-signature key. These are
// the keys the pipeline binds after a successful persist.
func RecordKeys(def schema.Definition, rec schema.CanonicalRecord) []index.Key {
	var keys []index.Key

	for _, spec := range def.KeyFields(schema.KeyID) {
		if v := rec.Str(spec.Name); v != "" {
			keys = append(keys, index.IDKey(def.Entity, v))
		}
	}
	for _, spec := range def.KeyFields(schema.KeyStable) {
		if v := rec.Str(spec.Name); v != "" {
			keys = append(keys, index.StableKey(def.Entity, v))
		}
	}
	if name := DisplayName(def, rec); name != "" {
		keys = append(keys, index.NameKey(def.Entity, name))
	}

	return keys
}

// DisplayName joins the record's name-key fields in declaration order
// ("first_name last_name" for attorneys, "name" for clients).
func DisplayName(def schema.Definition, rec schema.CanonicalRecord) string {
	var parts []string
	for _, spec := range def.KeyFields(schema.KeyName) {
		if v := rec.Str(spec.Name); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}
