package schema

import (
	"fmt"
	"strings"

	"github.com/praxishq/intake/internal/normalize"
)

// IssueKind classifies a problem found while mapping one field.
type IssueKind int

const (
	// IssueParse: the value was present but did not normalize. The field is
	// treated as absent; the pipeline escalates only when Required.
	IssueParse IssueKind = iota
	// IssueMissing: a required field had no value under any accepted alias.
	IssueMissing
)

// FieldIssue describes one field-level problem from MapRecord.
type FieldIssue struct {
	Field    string
	Value    string
	Kind     IssueKind
	Required bool
	Message  string
}

func (i FieldIssue) Error() string {
	if i.Kind == IssueMissing {
		return fmt.Sprintf("%s: required field missing", i.Field)
	}
	return fmt.Sprintf("%s: %s", i.Field, i.Message)
}

// MapRecord applies the declarative field mapping and the normalizer to one
// raw record. Optional fields that fail to parse become absent with an
// issue; required problems are returned for the pipeline to escalate.
// Mapping never raises questions and never persists.
func MapRecord(def Definition, raw RawRecord) (CanonicalRecord, []FieldIssue) {
	rec := CanonicalRecord{
		Entity: def.Entity,
		Source: raw.Source,
		Row:    raw.Row,
		Fields: make(map[string]Value, len(def.Fields)),
	}

	// Resolve raw columns to canonical fields once, first alias match wins
	// in source-column order.
	byField := make(map[string]string, len(raw.Names))
	for _, col := range raw.Names {
		field, ok := CanonicalField(def.Entity, col)
		if !ok {
			continue
		}
		if _, seen := byField[field]; !seen {
			if v := strings.TrimSpace(raw.Get(col)); v != "" {
				byField[field] = v
			}
		}
	}

	var issues []FieldIssue
	for _, spec := range def.Fields {
		rawVal, ok := byField[spec.Name]
		if !ok {
			if spec.Required {
				issues = append(issues, FieldIssue{Field: spec.Name, Kind: IssueMissing, Required: true})
			}
			continue
		}

		switch spec.Type {
		case FieldText, FieldReference:
			rec.Set(spec.Name, Value{Kind: KindString, Str: rawVal})

		case FieldIdentifier:
			// Display form is stored; the matching signature is derived by
			// the entity index.
			rec.Set(spec.Name, Value{Kind: KindString, Str: rawVal})

		case FieldPhone:
			rec.Set(spec.Name, Value{Kind: KindString, Str: normalize.Phone(rawVal)})

		case FieldDate:
			d, ok := normalize.Date(rawVal)
			if !ok {
				issues = append(issues, parseIssue(spec, rawVal, "unrecognized date format"))
				continue
			}
			rec.Set(spec.Name, Value{Kind: KindDate, Date: d})

		case FieldDecimal:
			dec, ok := normalize.Decimal(rawVal)
			if !ok {
				issues = append(issues, parseIssue(spec, rawVal, "not a number"))
				continue
			}
			rec.Set(spec.Name, Value{Kind: KindDecimal, Str: dec})

		case FieldEnum:
			v, ok := normalize.Enum(rawVal, spec.EnumValues)
			if !ok {
				issues = append(issues, parseIssue(spec, rawVal, fmt.Sprintf("not one of %s", strings.Join(spec.EnumValues, ", "))))
				continue
			}
			rec.Set(spec.Name, Value{Kind: KindEnum, Str: v})

		case FieldBool:
			b, ok := parseBool(rawVal)
			if !ok {
				issues = append(issues, parseIssue(spec, rawVal, "not a boolean"))
				continue
			}
			rec.Set(spec.Name, Value{Kind: KindBool, Bool: b})
		}
	}

	return rec, issues
}

func parseIssue(spec FieldSpec, raw, msg string) FieldIssue {
	return FieldIssue{Field: spec.Name, Value: raw, Kind: IssueParse, Required: spec.Required, Message: msg}
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "y", "1":
		return true, true
	case "false", "no", "n", "0":
		return false, true
	}
	return false, false
}
