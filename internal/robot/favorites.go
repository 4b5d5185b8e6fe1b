package robot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Favorite is a saved cleaning job: the parameters of a past start command.
type Favorite struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

// NewFavorite builds a favorite from a lastCommand object.
//
// The command must be a start; its command, time and initiator keys are
// dropped. The job must carry at least one non-null parameter, and neither
// its name nor its parameters may match an existing favorite.
func NewFavorite(name string, lastCommand json.RawMessage, existing []Favorite) (Favorite, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Favorite{}, fmt.Errorf("%w: empty name", ErrInvalidOptionValue)
	}

	var cmd map[string]any
	if err := json.Unmarshal(lastCommand, &cmd); err != nil || cmd == nil {
		return Favorite{}, ErrNotAJob
	}
	if c, _ := cmd["command"].(string); c != string(CommandStart) {
		return Favorite{}, ErrNotAJob
	}
	delete(cmd, "command")
	delete(cmd, "time")
	delete(cmd, "initiator")

	if !hasNonNull(cmd) {
		return Favorite{}, ErrEmptyJob
	}

	for _, f := range existing {
		if strings.EqualFold(strings.TrimSpace(f.Name), name) {
			return Favorite{}, fmt.Errorf("%w: name %q", ErrFavoriteExists, name)
		}
		if sameParams(f.Params, cmd) {
			return Favorite{}, fmt.Errorf("%w: same job saved as %q", ErrFavoriteExists, f.Name)
		}
	}
	return Favorite{Name: name, Params: cmd}, nil
}

// StartParams returns the extra parameters for starting f. Null values and
// the user map version are dropped; the robot rejects stale versions.
func (f Favorite) StartParams() map[string]any {
	params := make(map[string]any, len(f.Params))
	for k, v := range f.Params {
		if v == nil || k == "user_pmapv_id" {
			continue
		}
		params[k] = v
	}
	return params
}

// FindFavorite returns the favorite with the given name.
func FindFavorite(favorites []Favorite, name string) (Favorite, bool) {
	name = strings.TrimSpace(name)
	for _, f := range favorites {
		if strings.EqualFold(strings.TrimSpace(f.Name), name) {
			return f, true
		}
	}
	return Favorite{}, false
}

func hasNonNull(m map[string]any) bool {
	for _, v := range m {
		if v != nil {
			return true
		}
	}
	return false
}

// sameParams compares canonical encodings; map keys marshal sorted.
func sameParams(a, b map[string]any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}
