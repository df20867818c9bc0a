package normalize

import (
	"testing"
	"time"
)

func TestDate_SupportedFormats(t *testing.T) {
	want := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   string
	}{
		{"ISO", "2024-03-15"},
		{"US slash", "03/15/2024"},
		{"US slash unpadded", "3/15/2024"},
		{"day first dash", "15-03-2024"},
		{"year first slash", "2024/03/15"},
		{"long month", "March 15 2024"},
		{"long month comma", "March 15, 2024"},
		{"abbreviated month", "Mar 15 2024"},
		{"abbreviated month comma", "Mar 15, 2024"},
		{"surrounding whitespace", "  2024-03-15  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Date(tt.in)
			if !ok {
				t.Fatalf("Date(%q) not ok", tt.in)
			}
			if !got.Equal(want) {
				t.Errorf("Date(%q) = %v, want %v", tt.in, got, want)
			}
		})
	}
}

func TestDate_AmbiguousPolicy(t *testing.T) {
	// Slash-separated is US month-first by policy.
	got, ok := Date("01/02/2024")
	if !ok {
		t.Fatal("Date(01/02/2024) not ok")
	}
	if got.Month() != time.January || got.Day() != 2 {
		t.Errorf("Date(01/02/2024) = %v, want January 2", got)
	}

	// Dash-separated numeric dates are day-first.
	got, ok = Date("05-03-2024")
	if !ok {
		t.Fatal("Date(05-03-2024) not ok")
	}
	if got.Month() != time.March || got.Day() != 5 {
		t.Errorf("Date(05-03-2024) = %v, want March 5", got)
	}
}

func TestDate_Idempotent(t *testing.T) {
	first, ok := Date("January 2, 2024")
	if !ok {
		t.Fatal("first parse failed")
	}

	second, ok := Date(first.Format("2006-01-02"))
	if !ok {
		t.Fatal("reparse of canonical rendering failed")
	}
	if !second.Equal(first) {
		t.Errorf("reparse = %v, want %v", second, first)
	}
}

func TestDate_Unparseable(t *testing.T) {
	for _, in := range []string{"", "not a date", "13/32/2024", "2024-15-99"} {
		if _, ok := Date(in); ok {
			t.Errorf("Date(%q) unexpectedly ok", in)
		}
	}
}

func TestIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"NY-78901", "NY78901"},
		{"NY 78905", "NY78905"},
		{"ny78903", "NY78903"},
		{"  CL-2024-003 ", "CL2024003"},
		{"12-3456789", "123456789"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Identifier(tt.in); got != tt.want {
			t.Errorf("Identifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnum(t *testing.T) {
	allowed := []string{"active", "inactive", "flat_fee"}

	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"Active", "active", true},
		{"ACTIVE", "active", true},
		{" inactive ", "inactive", true},
		{"Flat Fee", "flat_fee", true},
		{"archived", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := Enum(tt.in, allowed)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("Enum(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"(555) 123-4567", "5551234567"},
		{"555.123.4567", "5551234567"},
		{"+1 555 123 4567", "+15551234567"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Phone(tt.in); got != tt.want {
			t.Errorf("Phone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecimal(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"250.00", "250.00", true},
		{"$1,250.50", "1250.50", true},
		{"-42", "-42", true},
		{"+3.5", "+3.5", true},
		{"1.2.3", "", false},
		{"abc", "", false},
		{"$", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := Decimal(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("Decimal(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"GrayStone Enterprises LLC", "graystone enterprises"},
		{"GRAYSTONE ENTERPRISES", "graystone enterprises"},
		{"Anderson, Rachel", "rachel anderson"},
		{"Rachel Anderson", "rachel anderson"},
		{"José Muñoz", "jose munoz"},
		{"Acme Corp.", "acme"},
		{"  Meridian   Holdings,   Ltd.  ", "meridian holdings"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Name(tt.in); got != tt.want {
			t.Errorf("Name(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
