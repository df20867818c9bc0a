// Package schema defines the entity types the import engine understands,
// the declarative field-mapping tables that translate heterogeneous source
// columns into canonical fields, and the dependency ordering between entity
// types.
//
// Mapping is pure data: each entity type declares its canonical fields and
// the raw column names that may carry them. Nothing here reflects over
// structs at runtime; alias tables are checked once at registration.
package schema

import "time"

// EntityType identifies one domain category processed in a single
// dependency-ordered pass.
type EntityType string

const (
	PracticeAreas EntityType = "practice_areas"
	Clients       EntityType = "clients"
	Attorneys     EntityType = "attorneys"
	Services      EntityType = "services"
	Matters       EntityType = "matters"
	TimeEntries   EntityType = "time_entries"
	Expenses      EntityType = "expenses"
	Invoices      EntityType = "invoices"
	Payments      EntityType = "payments"
)

// FieldType represents the expected data type for a canonical field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldDecimal
	FieldBool
	FieldPhone
	FieldIdentifier
	FieldReference
)

// FieldSpec defines one canonical field: its accepted raw column names,
// type, and role in natural-key construction.
type FieldSpec struct {
	Name       string     // Canonical field name
	Aliases    []string   // Accepted raw column names (folded for lookup)
	Type       FieldType  // Expected data type
	Required   bool       // Record is questionable/skippable without it
	EnumValues []string   // Valid values for FieldEnum
	References EntityType // Referenced entity type for FieldReference

	// Natural-key roles. IDKey fields form the exact key, StableKey fields
	// form the stable secondary key (tax id, bar number), NameKey fields
	// feed the fuzzy name signature.
	IDKey     bool
	StableKey bool
	NameKey   bool
}

// Definition contains everything needed to process one entity type.
type Definition struct {
	Entity    EntityType
	Label     string       // Display name: "Clients"
	DependsOn []EntityType // Entity types whose pass must complete first
	Fields    []FieldSpec
}

// FieldsOfType returns the specs matching the given type, in declaration order.
func (d Definition) FieldsOfType(t FieldType) []FieldSpec {
	var out []FieldSpec
	for _, f := range d.Fields {
		if f.Type == t {
			out = append(out, f)
		}
	}
	return out
}

// KeyFields returns the specs with the requested key role.
func (d Definition) KeyFields(role KeyRole) []FieldSpec {
	var out []FieldSpec
	for _, f := range d.Fields {
		switch role {
		case KeyID:
			if f.IDKey {
				out = append(out, f)
			}
		case KeyStable:
			if f.StableKey {
				out = append(out, f)
			}
		case KeyName:
			if f.NameKey {
				out = append(out, f)
			}
		}
	}
	return out
}

// KeyRole distinguishes the natural-key kinds an entity may carry.
type KeyRole string

const (
	KeyID     KeyRole = "id"
	KeyStable KeyRole = "stable"
	KeyName   KeyRole = "name"
)

// RawRecord is one row or object read from a source file: ordered column
// names plus their raw string values. Immutable once read.
type RawRecord struct {
	Entity EntityType // Entity-type hint supplied by the caller
	Source string     // Source file name
	Row    int        // 1-based row/object position within the file
	Names  []string   // Column names in source order
	Values map[string]string
}

// Get returns the raw value for an exact column name.
func (r RawRecord) Get(name string) string {
	return r.Values[name]
}

// Kind tags a canonical Value.
type Kind int

const (
	KindString Kind = iota
	KindDate
	KindDecimal
	KindEnum
	KindBool
)

// Value is a typed canonical field value. Decimals stay as canonical
// strings so the store controls precision.
type Value struct {
	Kind Kind
	Str  string
	Date time.Time
	Bool bool
}

// CanonicalRecord maps canonical field names to typed values. Produced by
// MapRecord from one RawRecord; owned by the pipeline for one resolution
// pass.
type CanonicalRecord struct {
	Entity EntityType
	Source string
	Row    int
	Fields map[string]Value
}

// Str returns the string form of a field, or "" when absent.
func (r CanonicalRecord) Str(name string) string {
	v, ok := r.Fields[name]
	if !ok {
		return ""
	}
	if v.Kind == KindDate {
		return v.Date.Format("2006-01-02")
	}
	return v.Str
}

// Has reports whether the field is present.
func (r CanonicalRecord) Has(name string) bool {
	_, ok := r.Fields[name]
	return ok
}

// Set stores a field value, allocating the map on first use.
func (r *CanonicalRecord) Set(name string, v Value) {
	if r.Fields == nil {
		r.Fields = make(map[string]Value)
	}
	r.Fields[name] = v
}
