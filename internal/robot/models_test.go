package robot

import (
	"errors"
	"testing"
)

func TestModelFor(t *testing.T) {
	tests := []struct {
		family   Family
		wantBin  bool
		wantTank bool
	}{
		{FamilyVacuum, true, false},
		{FamilyMop, false, true},
		{FamilyCombo, true, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.family), func(t *testing.T) {
			m := mustModel(t, tt.family)
			if m.Family() != tt.family {
				t.Errorf("Family() = %q, want %q", m.Family(), tt.family)
			}
			if _, ok := m.(BinStatusProvider); ok != tt.wantBin {
				t.Errorf("BinStatusProvider = %v, want %v", ok, tt.wantBin)
			}
			if _, ok := m.(TankStatusProvider); ok != tt.wantTank {
				t.Errorf("TankStatusProvider = %v, want %v", ok, tt.wantTank)
			}
		})
	}

	if _, err := ModelFor(FamilyUnrecognized); !errors.Is(err, ErrUnknownFamily) {
		t.Errorf("ModelFor(unrecognized) error = %v, want ErrUnknownFamily", err)
	}
}

func TestModel_IsCorrectType(t *testing.T) {
	tests := []struct {
		name   string
		family Family
		report string
		want   bool
	}{
		{"vacuum with bin", FamilyVacuum, `{"bin": {"present": true}}`, true},
		{"vacuum without bin", FamilyVacuum, `{"batPct": 10}`, false},
		{"mop with pad", FamilyMop, `{"padWetness": {"disposable": 2}}`, true},
		{"mop with bin only", FamilyMop, `{"bin": {"present": true}}`, false},
		{"combo with both", FamilyCombo, `{"bin": {}, "padWetness": {}}`, true},
		{"combo with bin only", FamilyCombo, `{"bin": {}}`, false},
		{"combo with pad only", FamilyCombo, `{"padWetness": {}}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mustModel(t, tt.family)
			if got := m.IsCorrectType(snapshotOf(t, tt.report)); got != tt.want {
				t.Errorf("IsCorrectType() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReadBin(t *testing.T) {
	tests := []struct {
		name   string
		report string
		want   VacuumState
	}{
		{
			name:   "ok",
			report: `{"bin": {"present": true, "full": false}}`,
			want:   VacuumState{Bin: BinOK, PassMode: PassAuto},
		},
		{
			name:   "full",
			report: `{"bin": {"present": true, "full": true}}`,
			want:   VacuumState{Bin: BinFull, PassMode: PassAuto},
		},
		{
			name:   "missing bin",
			report: `{"bin": {"present": false, "full": true}}`,
			want:   VacuumState{Bin: BinNotPresent, PassMode: PassAuto},
		},
		{
			name:   "settings",
			report: `{"bin": {"present": true}, "binPause": true, "evacAllowed": true, "twoPass": true, "noAutoPasses": true}`,
			want:   VacuumState{Bin: BinOK, BinPause: true, EvacAllowed: true, PassMode: PassTwo},
		},
		{
			name:   "one pass",
			report: `{"bin": {"present": true}, "noAutoPasses": true}`,
			want:   VacuumState{Bin: BinOK, PassMode: PassOne},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := binModel{}.ReadBin(snapshotOf(t, tt.report))
			if got != tt.want {
				t.Errorf("ReadBin() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestReadTank(t *testing.T) {
	tests := []struct {
		name        string
		report      string
		wantTank    TankStatus
		wantLevel   int
		wantPad     PadType
		wantWetness int
	}{
		{
			name:        "mopReady ok",
			report:      `{"mopReady": {"tankPresent": true, "lidClosed": true}, "tankLvl": 80, "detectedPad": "dispWet", "padWetness": {"disposable": 3, "reusable": 1}}`,
			wantTank:    TankOK,
			wantLevel:   80,
			wantPad:     PadDisposableWet,
			wantWetness: 3,
		},
		{
			name:        "lid open",
			report:      `{"mopReady": {"tankPresent": true, "lidClosed": false}, "tankLvl": 80}`,
			wantTank:    TankLidOpen,
			wantLevel:   80,
			wantPad:     PadInvalid,
			wantWetness: 1,
		},
		{
			name:        "empty",
			report:      `{"mopReady": {"tankPresent": true, "lidClosed": true}, "tankLvl": 0}`,
			wantTank:    TankEmpty,
			wantPad:     PadInvalid,
			wantWetness: 1,
		},
		{
			name:        "top-level fields",
			report:      `{"tankPresent": true, "lidOpen": false, "tankLvl": 20, "detectedPad": "reusableDry", "padWetness": {"reusable": 2}}`,
			wantTank:    TankOK,
			wantLevel:   20,
			wantPad:     PadReusableDry,
			wantWetness: 2,
		},
		{
			name:        "unknown pad",
			report:      `{"tankPresent": false, "tankLvl": 20, "detectedPad": "sponge"}`,
			wantTank:    TankEmpty,
			wantLevel:   20,
			wantPad:     PadInvalid,
			wantWetness: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tankModel{}.ReadTank(snapshotOf(t, tt.report))
			if got.Tank != tt.wantTank {
				t.Errorf("Tank = %q, want %q", got.Tank, tt.wantTank)
			}
			if got.TankLevel != tt.wantLevel {
				t.Errorf("TankLevel = %d, want %d", got.TankLevel, tt.wantLevel)
			}
			if got.Pad != tt.wantPad {
				t.Errorf("Pad = %q, want %q", got.Pad, tt.wantPad)
			}
			if got.PadWetness != tt.wantWetness {
				t.Errorf("PadWetness = %d, want %d", got.PadWetness, tt.wantWetness)
			}
		})
	}
}

func TestReadTank_OptionalLevels(t *testing.T) {
	got := tankModel{}.ReadTank(snapshotOf(t, `{"dock": {"tankLvl": 55}, "rankOverlap": 25}`))
	if got.DockTankLevel == nil || *got.DockTankLevel != 55 {
		t.Errorf("DockTankLevel = %v, want 55", got.DockTankLevel)
	}
	if got.PassOverlap == nil || *got.PassOverlap != 25 {
		t.Errorf("PassOverlap = %v, want 25", got.PassOverlap)
	}

	got = tankModel{}.ReadTank(snapshotOf(t, `{}`))
	if got.DockTankLevel != nil || got.PassOverlap != nil {
		t.Errorf("ReadTank(empty) = %+v, want nil optional levels", got)
	}
}

func TestModel_Supports(t *testing.T) {
	const full = `{
		"featureFlags": {"chrgLrPtrnEnable": 1, "childLockEnable": 1},
		"cap": {"multiPass": 2, "binFullDetect": 2},
		"evacAllowed": false,
		"padWetness": {"disposable": 2, "reusable": 1},
		"rankOverlap": 15
	}`

	tests := []struct {
		name   string
		family Family
		report string
		opt    Option
		want   bool
	}{
		{"ring enabled", FamilyVacuum, full, OptionChargeRingPattern, true},
		{"ring flag zero", FamilyVacuum, `{"featureFlags": {"chrgLrPtrnEnable": 0}}`, OptionChargeRingPattern, false},
		{"ring flag absent", FamilyMop, `{}`, OptionChargeRingPattern, false},
		{"child lock", FamilyMop, full, OptionChildLock, true},
		{"pass mode vacuum", FamilyVacuum, full, OptionCleaningPassMode, true},
		{"pass mode single", FamilyVacuum, `{"cap": {"multiPass": 1}}`, OptionCleaningPassMode, false},
		{"pass mode mop", FamilyMop, full, OptionCleaningPassMode, false},
		{"bin pause vacuum", FamilyVacuum, full, OptionBinFullPause, true},
		{"bin pause combo", FamilyCombo, full, OptionBinFullPause, true},
		{"evac present false", FamilyVacuum, full, OptionEvacAllowed, true},
		{"evac absent", FamilyVacuum, `{}`, OptionEvacAllowed, false},
		{"evac mop", FamilyMop, full, OptionEvacAllowed, false},
		{"wetness mop", FamilyMop, full, OptionMopPadWetness, true},
		{"wetness mop reusable only", FamilyMop, `{"padWetness": {"reusable": 1}}`, OptionMopPadWetness, false},
		{"wetness combo reusable only", FamilyCombo, `{"padWetness": {"reusable": 1}}`, OptionMopPadWetness, true},
		{"wetness vacuum", FamilyVacuum, full, OptionMopPadWetness, false},
		{"overlap mop", FamilyMop, full, OptionMopPassOverlap, true},
		{"overlap not integer", FamilyMop, `{"rankOverlap": "25"}`, OptionMopPassOverlap, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mustModel(t, tt.family)
			if got := m.Supports(tt.opt, snapshotOf(t, tt.report)); got != tt.want {
				t.Errorf("Supports(%q) = %v, want %v", tt.opt, got, tt.want)
			}
		})
	}
}

func TestModel_SupportsCommand(t *testing.T) {
	tests := []struct {
		family Family
		cmd    Command
		want   bool
	}{
		{FamilyVacuum, CommandEvac, true},
		{FamilyCombo, CommandEvac, true},
		{FamilyMop, CommandEvac, false},
		{FamilyMop, CommandStart, true},
		{FamilyVacuum, CommandReset, true},
		{FamilyVacuum, Command("selfdestruct"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.family)+"/"+string(tt.cmd), func(t *testing.T) {
			if got := mustModel(t, tt.family).SupportsCommand(tt.cmd); got != tt.want {
				t.Errorf("SupportsCommand(%q) = %v, want %v", tt.cmd, got, tt.want)
			}
		})
	}
}

func TestDetectFamily(t *testing.T) {
	tests := []struct {
		name   string
		report string
		want   Family
	}{
		{"bin", `{"bin": {"present": true}}`, FamilyVacuum},
		{"mopReady", `{"mopReady": {}}`, FamilyMop},
		{"tankPresent", `{"tankPresent": true}`, FamilyMop},
		{"tank wins over bin", `{"bin": {}, "tankPresent": true}`, FamilyMop},
		{"neither", `{"batPct": 100}`, FamilyUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFamily(snapshotOf(t, tt.report)); got != tt.want {
				t.Errorf("DetectFamily() = %q, want %q", got, tt.want)
			}
		})
	}
}
