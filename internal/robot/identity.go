package robot

import (
	"fmt"
	"strings"
)

// Family is a robot product family.
type Family string

// Product families.
const (
	FamilyVacuum Family = "vacuum"
	FamilyMop    Family = "mop"
	FamilyCombo  Family = "combo"

	// FamilyUnrecognized is only produced by DetectFamily.
	FamilyUnrecognized Family = "unrecognized"
)

// ParseFamily converts a configured family name.
func ParseFamily(s string) (Family, error) {
	switch f := Family(strings.ToLower(strings.TrimSpace(s))); f {
	case FamilyVacuum, FamilyMop, FamilyCombo:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFamily, s)
	}
}

// Identity is the immutable tuple a robot is registered with.
type Identity struct {
	ID     string
	Secret string
	Family Family
}

// String returns the identity without its secret.
func (i Identity) String() string {
	return fmt.Sprintf("%s (%s)", i.ID, i.Family)
}

// Validate reports whether the identity can be used to connect. A failure
// means the persisted identity is corrupt and needs operator attention.
func (i Identity) Validate() error {
	var problems []string
	if strings.TrimSpace(i.ID) == "" {
		problems = append(problems, "empty id")
	}
	if i.Secret == "" {
		problems = append(problems, "empty secret")
	}
	if _, err := ParseFamily(string(i.Family)); err != nil {
		problems = append(problems, fmt.Sprintf("family %q", i.Family))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidIdentity, strings.Join(problems, ", "))
	}
	return nil
}
