package resolve

import (
	"testing"

	"github.com/praxishq/intake/internal/index"
	"github.com/praxishq/intake/internal/schema"
)

func record(entity schema.EntityType, fields map[string]string) schema.CanonicalRecord {
	rec := schema.CanonicalRecord{Entity: entity}
	for k, v := range fields {
		rec.Set(k, schema.Value{Kind: schema.KindString, Str: v})
	}
	return rec
}

func bindClient(t *testing.T, ix *index.Index, handle index.Handle, fields map[string]string) {
	t.Helper()
	def, _ := schema.Get(schema.Clients)
	rec := record(schema.Clients, fields)
	if err := ix.Bind(schema.Clients, handle, rec, RecordKeys(def, rec)...); err != nil {
		t.Fatalf("bind client: %v", err)
	}
}

func TestResolve_NewThenDuplicateByExactKey(t *testing.T) {
	def, _ := schema.Get(schema.Clients)
	ix := index.New()

	rec := record(schema.Clients, map[string]string{
		"client_number": "CL-2024-001",
		"name":          "Meridian Holdings",
	})

	out := Resolve(def, rec, ix)
	if out.Kind != New {
		t.Fatalf("first occurrence: kind = %s, want new", out.Kind)
	}

	if err := ix.Bind(schema.Clients, 1, rec, RecordKeys(def, rec)...); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	// Same exact key, different punctuation.
	again := record(schema.Clients, map[string]string{
		"client_number": "CL 2024 001",
		"name":          "Meridian Holdings",
	})
	out = Resolve(def, again, ix)
	if out.Kind != Duplicate || out.Existing != 1 {
		t.Errorf("second occurrence: %+v, want duplicate of 1", out)
	}
}

func TestResolve_StableKeyOutranksFuzzy(t *testing.T) {
	// Different client numbers, same tax id: Duplicate without a question.
	def, _ := schema.Get(schema.Clients)
	ix := index.New()

	bindClient(t, ix, 1, map[string]string{
		"client_number": "CL-2024-003",
		"name":          "GRAYSTONE ENTERPRISES",
		"tax_id":        "12-3456789",
	})

	out := Resolve(def, record(schema.Clients, map[string]string{
		"client_number": "CL-2024-008",
		"name":          "GrayStone Enterprises LLC",
		"tax_id":        "12-3456789",
	}), ix)

	if out.Kind != Duplicate || out.Existing != 1 {
		t.Errorf("outcome = %+v, want duplicate of 1 via tax id", out)
	}
}

func TestResolve_FuzzyNeedsConfirmation(t *testing.T) {
	def, _ := schema.Get(schema.Clients)
	ix := index.New()

	bindClient(t, ix, 1, map[string]string{
		"client_number": "CL-2024-003",
		"name":          "Graystone Enterprises",
	})

	// No shared key, near-identical name: confirmation, never auto-merge.
	out := Resolve(def, record(schema.Clients, map[string]string{
		"client_number": "CL-2024-008",
		"name":          "Graystone Enterprise",
	}), ix)

	if out.Kind != PendingDuplicateConfirmation {
		t.Fatalf("outcome = %+v, want pending confirmation", out)
	}
	if out.Candidate.Handle != 1 || out.Candidate.Score < index.ConfirmThreshold {
		t.Errorf("candidate = %+v", out.Candidate)
	}
}

func TestResolve_UnresolvedReference(t *testing.T) {
	def, _ := schema.Get(schema.Matters)
	ix := index.New()

	out := Resolve(def, record(schema.Matters, map[string]string{
		"matter_number": "MAT-2024-100",
		"title":         "Estate Planning",
		"client":        "CL-2024-999",
	}), ix)

	if out.Kind != UnresolvedReference {
		t.Fatalf("outcome = %+v, want unresolved reference", out)
	}
	if out.MissingField != "client" || out.MissingRef != "CL-2024-999" || out.RefEntity != schema.Clients {
		t.Errorf("outcome = %+v", out)
	}
}

func TestResolve_ReferenceByName(t *testing.T) {
	// Attorney bound by id registers the name key too; a time entry naming
	// "Rachel Anderson" resolves without a question.
	attorneyDef, _ := schema.Get(schema.Attorneys)
	ix := index.New()

	attorney := record(schema.Attorneys, map[string]string{
		"employee_id": "ATT-101",
		"first_name":  "Rachel",
		"last_name":   "Anderson",
	})
	if err := ix.Bind(schema.Attorneys, 7, attorney, RecordKeys(attorneyDef, attorney)...); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	matterDef, _ := schema.Get(schema.Matters)
	matter := record(schema.Matters, map[string]string{
		"matter_number": "MAT-2024-001",
		"title":         "Contract Review",
	})
	if err := ix.Bind(schema.Matters, 3, matter, RecordKeys(matterDef, matter)...); err != nil {
		t.Fatalf("Bind matter: %v", err)
	}

	def, _ := schema.Get(schema.TimeEntries)
	out := Resolve(def, record(schema.TimeEntries, map[string]string{
		"matter":   "MAT-2024-001",
		"attorney": "Rachel Anderson",
		"hours":    "2.5",
	}), ix)

	if out.Kind != New {
		t.Fatalf("outcome = %+v, want new", out)
	}
	if out.Refs["attorney"] != 7 || out.Refs["matter"] != 3 {
		t.Errorf("refs = %+v", out.Refs)
	}
}

func TestRecordKeys(t *testing.T) {
	def, _ := schema.Get(schema.Clients)
	rec := record(schema.Clients, map[string]string{
		"client_number": "CL-2024-003",
		"name":          "Graystone Enterprises",
		"tax_id":        "12-3456789",
	})

	keys := RecordKeys(def, rec)
	roles := make(map[schema.KeyRole]int)
	for _, k := range keys {
		roles[k.Role]++
	}
	if roles[schema.KeyID] != 1 || roles[schema.KeyStable] != 1 || roles[schema.KeyName] != 1 {
		t.Errorf("keys = %+v, want one of each role", keys)
	}
}
