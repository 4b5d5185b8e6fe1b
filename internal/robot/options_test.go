package robot

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestOptionDelta(t *testing.T) {
	tests := []struct {
		name  string
		opt   Option
		value any
		want  string
	}{
		{"ring int", OptionChargeRingPattern, 1, `{"chrgLrPtrn":1}`},
		{"ring float", OptionChargeRingPattern, float64(2), `{"chrgLrPtrn":2}`},
		{"child lock", OptionChildLock, true, `{"childLock":true}`},
		{"child lock string", OptionChildLock, "false", `{"childLock":false}`},
		{"bin pause", OptionBinFullPause, true, `{"binPause":true}`},
		{"evac", OptionEvacAllowed, false, `{"evacAllowed":false}`},
		{"pass auto", OptionCleaningPassMode, PassAuto, `{"noAutoPasses":false,"twoPass":false}`},
		{"pass one", OptionCleaningPassMode, "one", `{"noAutoPasses":true,"twoPass":false}`},
		{"pass two", OptionCleaningPassMode, PassTwo, `{"noAutoPasses":true,"twoPass":true}`},
		{"wetness fans out", OptionMopPadWetness, json.Number("3"), `{"padWetness":{"disposable":3,"reusable":3}}`},
		{"overlap", OptionMopPassOverlap, "67", `{"rankOverlap":67}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, err := OptionDelta(tt.opt, tt.value)
			if err != nil {
				t.Fatalf("OptionDelta() error = %v", err)
			}
			got, err := json.Marshal(delta)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("OptionDelta() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOptionDelta_Errors(t *testing.T) {
	tests := []struct {
		name    string
		opt     Option
		value   any
		wantErr error
	}{
		{"ring out of range", OptionChargeRingPattern, 7, ErrInvalidOptionValue},
		{"ring fractional", OptionChargeRingPattern, 1.5, ErrInvalidOptionValue},
		{"child lock number", OptionChildLock, 1, ErrInvalidOptionValue},
		{"pass mode unknown", OptionCleaningPassMode, "three", ErrInvalidOptionValue},
		{"pass mode bool", OptionCleaningPassMode, true, ErrInvalidOptionValue},
		{"wetness text", OptionMopPadWetness, "wet", ErrInvalidOptionValue},
		{"wetness zero", OptionMopPadWetness, 0, ErrInvalidOptionValue},
		{"wetness too high", OptionMopPadWetness, 4, ErrInvalidOptionValue},
		{"wetness negative", OptionMopPadWetness, json.Number("-1"), ErrInvalidOptionValue},
		{"overlap not offered", OptionMopPassOverlap, 50, ErrInvalidOptionValue},
		{"overlap huge float", OptionMopPassOverlap, 1e12, ErrInvalidOptionValue},
		{"overlap huge int64", OptionMopPassOverlap, int64(1) << 40, ErrInvalidOptionValue},
		{"ring wraps int32", OptionChargeRingPattern, int64(1) << 32, ErrInvalidOptionValue},
		{"unknown option", Option("volume"), 3, ErrUnsupportedOption},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OptionDelta(tt.opt, tt.value)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("OptionDelta() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseOption(t *testing.T) {
	for _, o := range AllOptions {
		got, err := ParseOption(string(o))
		if err != nil || got != o {
			t.Errorf("ParseOption(%q) = %q, %v", o, got, err)
		}
	}
	if _, err := ParseOption("volume"); !errors.Is(err, ErrUnsupportedOption) {
		t.Errorf("ParseOption(volume) error = %v, want ErrUnsupportedOption", err)
	}
}

func TestOptionValue(t *testing.T) {
	overlap := 25
	st := Status{
		ChargeRingPattern: RingDocking,
		ChildLock:         true,
		Vacuum:            &VacuumState{BinPause: true, PassMode: PassTwo, EvacAllowed: true},
		Mop:               &MopState{PadWetness: 2, PassOverlap: &overlap},
	}

	tests := []struct {
		opt  Option
		want any
	}{
		{OptionChargeRingPattern, 1},
		{OptionChildLock, true},
		{OptionBinFullPause, true},
		{OptionCleaningPassMode, PassTwo},
		{OptionEvacAllowed, true},
		{OptionMopPadWetness, 2},
		{OptionMopPassOverlap, 25},
	}

	for _, tt := range tests {
		t.Run(string(tt.opt), func(t *testing.T) {
			got, ok := OptionValue(tt.opt, st)
			if !ok || got != tt.want {
				t.Errorf("OptionValue() = %v, %v, want %v", got, ok, tt.want)
			}
		})
	}

	if _, ok := OptionValue(OptionBinFullPause, Status{}); ok {
		t.Error("OptionValue(binFullPause) on mop status ok = true, want false")
	}
}
