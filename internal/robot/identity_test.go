package robot

import (
	"errors"
	"strings"
	"testing"
)

func TestParseFamily(t *testing.T) {
	tests := []struct {
		in      string
		want    Family
		wantErr bool
	}{
		{"vacuum", FamilyVacuum, false},
		{" Mop ", FamilyMop, false},
		{"COMBO", FamilyCombo, false},
		{"unrecognized", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFamily(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFamily() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFamily() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIdentity_Validate(t *testing.T) {
	tests := []struct {
		name    string
		id      Identity
		wantErr bool
	}{
		{"valid", Identity{ID: "ABC", Secret: "s", Family: FamilyVacuum}, false},
		{"empty id", Identity{ID: " ", Secret: "s", Family: FamilyVacuum}, true},
		{"empty secret", Identity{ID: "ABC", Family: FamilyMop}, true},
		{"bad family", Identity{ID: "ABC", Secret: "s", Family: "toaster"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.id.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidIdentity) {
				t.Errorf("Validate() error = %v, want ErrInvalidIdentity", err)
			}
		})
	}
}

func TestIdentity_StringHidesSecret(t *testing.T) {
	id := Identity{ID: "ABC", Secret: "hunter2", Family: FamilyCombo}
	if s := id.String(); strings.Contains(s, "hunter2") {
		t.Errorf("String() = %q, leaks secret", s)
	}
}
