package robot

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
)

// Option is a robot setting that can be changed over the session.
type Option string

// Options. Support is computed from the document each time it is asked.
const (
	OptionChargeRingPattern Option = "chargeLightRingPattern"
	OptionChildLock         Option = "childLock"
	OptionBinFullPause      Option = "binFullPause"
	OptionCleaningPassMode  Option = "cleaningPassMode"
	OptionMopPadWetness     Option = "mopPadWetness"
	OptionMopPassOverlap    Option = "mopPassOverlap"
	OptionEvacAllowed       Option = "evacAllowed"
)

// Values the mop firmware accepts.
const (
	minPadWetness = 1
	maxPadWetness = 3
)

// passOverlaps are the rank overlaps the robot's own app offers.
var passOverlaps = []int{25, 67, 85}

// AllOptions lists every option in a stable order.
var AllOptions = []Option{
	OptionChargeRingPattern,
	OptionChildLock,
	OptionBinFullPause,
	OptionCleaningPassMode,
	OptionMopPadWetness,
	OptionMopPassOverlap,
	OptionEvacAllowed,
}

// ParseOption converts an option name.
func ParseOption(s string) (Option, error) {
	for _, o := range AllOptions {
		if string(o) == s {
			return o, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedOption, s)
}

// OptionDelta builds the partial state that sets opt to value.
//
// Accepted value types:
//   - chargeLightRingPattern (0-2), mopPadWetness (1-3), mopPassOverlap
//     (25, 67 or 85): integer as int, int64, integral float64, json.Number,
//     or decimal string
//   - childLock, binFullPause, evacAllowed: bool or "true"/"false"
//   - cleaningPassMode: PassMode or its string
func OptionDelta(opt Option, value any) (map[string]any, error) {
	switch opt {
	case OptionChargeRingPattern:
		n, err := toInt(value)
		if err != nil {
			return nil, err
		}
		if n < int(RingDockingAndCharging) || n > int(RingNone) {
			return nil, fmt.Errorf("%w: ring pattern %d", ErrInvalidOptionValue, n)
		}
		return map[string]any{"chrgLrPtrn": n}, nil

	case OptionChildLock, OptionBinFullPause, OptionEvacAllowed:
		b, err := toBool(value)
		if err != nil {
			return nil, err
		}
		key := map[Option]string{
			OptionChildLock:    "childLock",
			OptionBinFullPause: "binPause",
			OptionEvacAllowed:  "evacAllowed",
		}[opt]
		return map[string]any{key: b}, nil

	case OptionCleaningPassMode:
		mode, err := toPassMode(value)
		if err != nil {
			return nil, err
		}
		switch mode {
		case PassOne:
			return map[string]any{"twoPass": false, "noAutoPasses": true}, nil
		case PassTwo:
			return map[string]any{"twoPass": true, "noAutoPasses": true}, nil
		default:
			return map[string]any{"twoPass": false, "noAutoPasses": false}, nil
		}

	case OptionMopPadWetness:
		n, err := toInt(value)
		if err != nil {
			return nil, err
		}
		if n < minPadWetness || n > maxPadWetness {
			return nil, fmt.Errorf("%w: pad wetness %d", ErrInvalidOptionValue, n)
		}
		return map[string]any{"padWetness": map[string]any{"disposable": n, "reusable": n}}, nil

	case OptionMopPassOverlap:
		n, err := toInt(value)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(passOverlaps, n) {
			return nil, fmt.Errorf("%w: pass overlap %d", ErrInvalidOptionValue, n)
		}
		return map[string]any{"rankOverlap": n}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOption, opt)
	}
}

// OptionValue reads the current value of opt from a status.
func OptionValue(opt Option, st Status) (any, bool) {
	switch opt {
	case OptionChargeRingPattern:
		return int(st.ChargeRingPattern), true
	case OptionChildLock:
		return st.ChildLock, true
	}
	if v := st.Vacuum; v != nil {
		switch opt {
		case OptionBinFullPause:
			return v.BinPause, true
		case OptionCleaningPassMode:
			return v.PassMode, true
		case OptionEvacAllowed:
			return v.EvacAllowed, true
		}
	}
	if m := st.Mop; m != nil {
		switch opt {
		case OptionMopPadWetness:
			return m.PadWetness, true
		case OptionMopPassOverlap:
			if m.PassOverlap != nil {
				return *m.PassOverlap, true
			}
		}
	}
	return nil, false
}

// toInt converts value to an int within int32 range. Every integer option
// is small, so anything wider is rejected before it is narrowed.
func toInt(value any) (int, error) {
	var n int64
	switch v := value.(type) {
	case int:
		n = int64(v)
	case int64:
		n = v
	case float64:
		if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
			return 0, fmt.Errorf("%w: %v is not a small integer", ErrInvalidOptionValue, v)
		}
		n = int64(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidOptionValue, v)
		}
		n = i
	case string:
		i, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidOptionValue, v)
		}
		n = i
	default:
		return 0, fmt.Errorf("%w: want integer, got %T", ErrInvalidOptionValue, value)
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d is out of range", ErrInvalidOptionValue, n)
	}
	return int(n), nil
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a boolean", ErrInvalidOptionValue, v)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%w: want boolean, got %T", ErrInvalidOptionValue, value)
	}
}

func toPassMode(value any) (PassMode, error) {
	var s string
	switch v := value.(type) {
	case PassMode:
		s = string(v)
	case string:
		s = v
	default:
		return "", fmt.Errorf("%w: want pass mode, got %T", ErrInvalidOptionValue, value)
	}
	switch m := PassMode(s); m {
	case PassAuto, PassOne, PassTwo:
		return m, nil
	default:
		return "", fmt.Errorf("%w: pass mode %q", ErrInvalidOptionValue, s)
	}
}
