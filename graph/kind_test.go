package graph

import "testing"

func TestKindIsValid(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected bool
	}{
		{KindRequires, true},
		{KindSoftRequires, true},
		{KindEnables, true},
		{KindPrecedes, true},
		{KindConflictsWith, true},
		{KindAlternativeTo, true},
		{KindSpecializes, true},
		{Kind("depends_on"), false},
		{Kind(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.IsValid(); got != tt.expected {
				t.Errorf("Kind(%q).IsValid() = %v, want %v", tt.kind, got, tt.expected)
			}
		})
	}
}

func TestKindProperties(t *testing.T) {
	tests := []struct {
		kind       Kind
		transitive bool
		symmetric  bool
	}{
		{KindRequires, false, false},
		{KindSoftRequires, false, false},
		{KindEnables, false, false},
		{KindPrecedes, true, false},
		{KindConflictsWith, false, true},
		{KindAlternativeTo, false, true},
		{KindSpecializes, true, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			props := tt.kind.Properties()
			if props.Transitive != tt.transitive {
				t.Errorf("Transitive = %v, want %v", props.Transitive, tt.transitive)
			}
			if props.Symmetric != tt.symmetric {
				t.Errorf("Symmetric = %v, want %v", props.Symmetric, tt.symmetric)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	if got := ParseKind("requires"); got != KindRequires {
		t.Errorf("ParseKind(requires) = %q", got)
	}
	if got := ParseKind("bogus"); got != "" {
		t.Errorf("ParseKind(bogus) = %q, want empty", got)
	}
}

func TestKindsCoversAll(t *testing.T) {
	if len(Kinds()) != len(kindProperties) {
		t.Errorf("Kinds() returns %d kinds, properties table has %d", len(Kinds()), len(kindProperties))
	}
	for _, k := range Kinds() {
		if !k.IsValid() {
			t.Errorf("Kinds() contains invalid kind %q", k)
		}
	}
}
