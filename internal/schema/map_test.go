package schema

import (
	"testing"
	"time"
)

func rawClient(values map[string]string) RawRecord {
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	return RawRecord{Entity: Clients, Source: "clients.csv", Row: 2, Names: names, Values: values}
}

func TestMapRecord_AliasVariants(t *testing.T) {
	def, _ := Get(Clients)

	// Column spellings from three different source systems.
	for _, values := range []map[string]string{
		{"Client Number": "CL-2024-001", "Client Name": "Graystone Enterprises", "Status": "Active"},
		{"ClientNumber": "CL-2024-001", "Name": "Graystone Enterprises", "Status": "ACTIVE"},
		{"client_number": "CL-2024-001", "name": "Graystone Enterprises", "status": "active"},
	} {
		rec, issues := MapRecord(def, rawClient(values))
		if len(issues) != 0 {
			t.Fatalf("unexpected issues: %v", issues)
		}
		if got := rec.Str("client_number"); got != "CL-2024-001" {
			t.Errorf("client_number = %q", got)
		}
		if got := rec.Str("name"); got != "Graystone Enterprises" {
			t.Errorf("name = %q", got)
		}
		if got := rec.Str("status"); got != "active" {
			t.Errorf("status = %q", got)
		}
	}
}

func TestMapRecord_TypedFields(t *testing.T) {
	def, _ := Get(Clients)

	rec, issues := MapRecord(def, rawClient(map[string]string{
		"Client Number": "CL-2024-003",
		"Client Name":   "GRAYSTONE ENTERPRISES",
		"Tax ID":        "12-3456789",
		"Phone":         "(555) 123-4567",
		"Joined Date":   "March 15, 2024",
	}))
	if len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}

	if got := rec.Fields["phone"].Str; got != "5551234567" {
		t.Errorf("phone = %q", got)
	}

	d := rec.Fields["joined_date"]
	if d.Kind != KindDate || !d.Date.Equal(time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("joined_date = %+v", d)
	}
	if got := rec.Str("joined_date"); got != "2024-03-15" {
		t.Errorf("Str(joined_date) = %q", got)
	}
}

func TestMapRecord_MissingRequired(t *testing.T) {
	def, _ := Get(Clients)

	_, issues := MapRecord(def, rawClient(map[string]string{"Client Name": "Orphan Co"}))

	var found bool
	for _, i := range issues {
		if i.Field == "client_number" && i.Kind == IssueMissing && i.Required {
			found = true
		}
	}
	if !found {
		t.Errorf("issues = %v, want missing client_number", issues)
	}
}

func TestMapRecord_BadOptionalValueBecomesAbsent(t *testing.T) {
	def, _ := Get(Clients)

	rec, issues := MapRecord(def, rawClient(map[string]string{
		"Client Number": "CL-2024-004",
		"Client Name":   "Hargrove LLP",
		"Joined Date":   "sometime last spring",
		"Status":        "archived",
	}))

	if rec.Has("joined_date") {
		t.Error("unparseable optional date should be absent")
	}
	if rec.Has("status") {
		t.Error("unknown enum value should be absent, not defaulted")
	}
	if len(issues) != 2 {
		t.Errorf("issues = %v, want 2 parse issues", issues)
	}
	for _, i := range issues {
		if i.Kind != IssueParse || i.Required {
			t.Errorf("issue %+v, want optional parse issue", i)
		}
	}
}

func TestRegister_AliasCollisionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on alias collision")
		}
	}()

	Register(Definition{
		Entity: "collision_test",
		Fields: []FieldSpec{
			{Name: "alpha", Aliases: []string{"Shared Name"}, Type: FieldText},
			{Name: "beta", Aliases: []string{"shared_name"}, Type: FieldText},
		},
	})
}
