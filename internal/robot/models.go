package robot

import (
	"fmt"
	"slices"

	"github.com/nerrad567/robotlan-core/internal/shadow"
)

// BinStatus is the state of a vacuum's dust bin.
type BinStatus string

// Bin states.
const (
	BinOK         BinStatus = "ok"
	BinFull       BinStatus = "full"
	BinNotPresent BinStatus = "notPresent"
)

// PassMode is how many passes a vacuum makes over each area.
type PassMode string

// Pass modes.
const (
	PassAuto PassMode = "auto"
	PassOne  PassMode = "one"
	PassTwo  PassMode = "two"
)

// TankStatus is the state of a mop's water tank.
type TankStatus string

// Tank states.
const (
	TankOK      TankStatus = "ok"
	TankEmpty   TankStatus = "empty"
	TankLidOpen TankStatus = "lidOpen"
)

// PadType is the mop pad the robot detected.
type PadType string

// Pad types, using the firmware's names.
const (
	PadInvalid       PadType = "invalid"
	PadReusableWet   PadType = "reusableWet"
	PadReusableDry   PadType = "reusableDry"
	PadDisposableWet PadType = "dispWet"
	PadDisposableDry PadType = "dispDry"
)

var knownPads = []PadType{PadInvalid, PadReusableWet, PadReusableDry, PadDisposableWet, PadDisposableDry}

// VacuumState is the bin-family sub-status.
type VacuumState struct {
	Bin         BinStatus `json:"bin"`
	BinPause    bool      `json:"binPause"`
	EvacAllowed bool      `json:"evacAllowed"`
	PassMode    PassMode  `json:"passMode"`
}

// MopState is the tank-family sub-status.
type MopState struct {
	Tank          TankStatus `json:"tank"`
	TankLevel     int        `json:"tankLevel"`
	DockTankLevel *int       `json:"dockTankLevel,omitempty"`
	Pad           PadType    `json:"pad"`
	PadWetness    int        `json:"padWetness"`
	PassOverlap   *int       `json:"passOverlap,omitempty"`
}

// Model is the per-family behaviour a session is built around.
type Model interface {
	Family() Family

	// IsCorrectType reports whether the document carries the fields that
	// identify this family.
	IsCorrectType(s shadow.Snapshot) bool

	// Supports reports whether the robot can change opt.
	Supports(opt Option, s shadow.Snapshot) bool

	// SupportsCommand reports whether the family accepts cmd.
	SupportsCommand(cmd Command) bool
}

// BinStatusProvider is implemented by models with a dust bin.
type BinStatusProvider interface {
	ReadBin(s shadow.Snapshot) VacuumState
}

// TankStatusProvider is implemented by models with a water tank.
type TankStatusProvider interface {
	ReadTank(s shadow.Snapshot) MopState
}

// ModelFor returns the model for a family.
func ModelFor(f Family) (Model, error) {
	switch f {
	case FamilyVacuum:
		return vacuumModel{}, nil
	case FamilyMop:
		return mopModel{tankModel{reusableWetness: false}}, nil
	case FamilyCombo:
		return comboModel{tankModel: tankModel{reusableWetness: true}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, f)
	}
}

// -----------------------------------------------------------------------------
// Shared behaviour
// -----------------------------------------------------------------------------

var baseCommands = []Command{
	CommandStart, CommandStop, CommandPause, CommandResume,
	CommandDock, CommandFind, CommandTrain, CommandReset,
}

func supportsCommon(opt Option, s shadow.Snapshot) bool {
	switch opt {
	case OptionChargeRingPattern:
		return flagEnabled(s, "featureFlags.chrgLrPtrnEnable")
	case OptionChildLock:
		return flagEnabled(s, "featureFlags.childLockEnable")
	default:
		return false
	}
}

func flagEnabled(s shadow.Snapshot, path string) bool {
	v, ok := s.Int(path)
	return ok && v == 1
}

// -----------------------------------------------------------------------------
// Bin capability
// -----------------------------------------------------------------------------

type binModel struct{}

func (binModel) IsCorrectType(s shadow.Snapshot) bool {
	return s.Has("bin")
}

func (binModel) ReadBin(s shadow.Snapshot) VacuumState {
	var r reportedVacuum
	decodeLenient(s, &r)

	st := VacuumState{
		Bin:      BinOK,
		BinPause: r.BinPause,
		PassMode: PassAuto,
	}
	switch {
	case r.Bin == nil || !r.Bin.Present:
		st.Bin = BinNotPresent
	case r.Bin.Full:
		st.Bin = BinFull
	}
	if r.EvacAllowed != nil {
		st.EvacAllowed = *r.EvacAllowed
	}
	switch {
	case r.TwoPass:
		st.PassMode = PassTwo
	case r.NoAutoPasses:
		st.PassMode = PassOne
	}
	return st
}

func (binModel) supports(opt Option, s shadow.Snapshot) bool {
	switch opt {
	case OptionCleaningPassMode:
		v, ok := s.Int("cap.multiPass")
		return ok && v == 2
	case OptionBinFullPause:
		v, ok := s.Int("cap.binFullDetect")
		return ok && v == 2
	case OptionEvacAllowed:
		return s.Has("evacAllowed")
	default:
		return false
	}
}

// -----------------------------------------------------------------------------
// Tank capability
// -----------------------------------------------------------------------------

type tankModel struct {
	// reusableWetness accepts padWetness.reusable as proof of the wetness
	// option when padWetness.disposable is missing.
	reusableWetness bool
}

func (tankModel) IsCorrectType(s shadow.Snapshot) bool {
	return s.Has("padWetness")
}

func (tankModel) ReadTank(s shadow.Snapshot) MopState {
	var r reportedMop
	decodeLenient(s, &r)

	present, lidClosed := r.TankPresent, !r.LidOpen
	if r.MopReady != nil {
		present, lidClosed = r.MopReady.TankPresent, r.MopReady.LidClosed
	}

	st := MopState{
		Tank:        TankEmpty,
		TankLevel:   r.TankLvl,
		Pad:         PadInvalid,
		PadWetness:  1,
		PassOverlap: r.RankOverlap,
	}
	switch {
	case !lidClosed:
		st.Tank = TankLidOpen
	case r.TankLvl > 0 && present:
		st.Tank = TankOK
	}
	if r.Dock != nil {
		st.DockTankLevel = r.Dock.TankLvl
	}
	if r.DetectedPad != nil && slices.Contains(knownPads, PadType(*r.DetectedPad)) {
		st.Pad = PadType(*r.DetectedPad)
	}
	if w := r.PadWetness; w != nil {
		switch {
		case w.Disposable != nil:
			st.PadWetness = *w.Disposable
		case w.Reusable != nil:
			st.PadWetness = *w.Reusable
		}
	}
	return st
}

func (m tankModel) supports(opt Option, s shadow.Snapshot) bool {
	switch opt {
	case OptionMopPadWetness:
		if s.IsInteger("padWetness.disposable") {
			return true
		}
		return m.reusableWetness && s.IsInteger("padWetness.reusable")
	case OptionMopPassOverlap:
		return s.IsInteger("rankOverlap")
	default:
		return false
	}
}

// -----------------------------------------------------------------------------
// Families
// -----------------------------------------------------------------------------

type vacuumModel struct {
	binModel
}

func (vacuumModel) Family() Family { return FamilyVacuum }

func (m vacuumModel) Supports(opt Option, s shadow.Snapshot) bool {
	return supportsCommon(opt, s) || m.binModel.supports(opt, s)
}

func (vacuumModel) SupportsCommand(cmd Command) bool {
	return cmd == CommandEvac || slices.Contains(baseCommands, cmd)
}

type mopModel struct {
	tankModel
}

func (mopModel) Family() Family { return FamilyMop }

func (m mopModel) Supports(opt Option, s shadow.Snapshot) bool {
	return supportsCommon(opt, s) || m.tankModel.supports(opt, s)
}

func (mopModel) SupportsCommand(cmd Command) bool {
	return slices.Contains(baseCommands, cmd)
}

type comboModel struct {
	binModel
	tankModel
}

func (comboModel) Family() Family { return FamilyCombo }

// IsCorrectType requires both the bin and the pad fields.
func (m comboModel) IsCorrectType(s shadow.Snapshot) bool {
	return m.binModel.IsCorrectType(s) && m.tankModel.IsCorrectType(s)
}

func (m comboModel) Supports(opt Option, s shadow.Snapshot) bool {
	return supportsCommon(opt, s) || m.binModel.supports(opt, s) || m.tankModel.supports(opt, s)
}

func (comboModel) SupportsCommand(cmd Command) bool {
	return cmd == CommandEvac || slices.Contains(baseCommands, cmd)
}

// DetectFamily guesses the family from a document. A tank field wins over a
// bin field; a document with neither is FamilyUnrecognized.
func DetectFamily(s shadow.Snapshot) Family {
	switch {
	case s.Has("mopReady") || s.Has("tankPresent"):
		return FamilyMop
	case s.Has("bin"):
		return FamilyVacuum
	default:
		return FamilyUnrecognized
	}
}
