package robot

import (
	"encoding/json"
	"errors"
	"slices"

	"github.com/nerrad567/robotlan-core/internal/shadow"
)

// MissionCycle is the firmware's coarse activity label.
type MissionCycle string

// Known mission cycles.
const (
	CycleNone    MissionCycle = "none"
	CycleClean   MissionCycle = "clean"
	CycleSpot    MissionCycle = "spot"
	CycleDock    MissionCycle = "dock"
	CycleEvac    MissionCycle = "evac"
	CycleTrain   MissionCycle = "train"
	CycleUnknown MissionCycle = "unknown"
)

var knownCycles = []MissionCycle{CycleNone, CycleClean, CycleSpot, CycleDock, CycleEvac, CycleTrain}

// MissionPhase is the firmware's fine activity label.
type MissionPhase string

// Known mission phases.
const (
	PhaseCharge              MissionPhase = "charge"
	PhaseRun                 MissionPhase = "run"
	PhaseStuck               MissionPhase = "stuck"
	PhaseStop                MissionPhase = "stop"
	PhaseUserSentHome        MissionPhase = "hmUsrDock"
	PhaseDockingAfterMission MissionPhase = "hmPostMsn"
	PhaseDockingMidMission   MissionPhase = "hmMidMsn"
	PhaseEvac                MissionPhase = "evac"
	PhaseChargingError       MissionPhase = "chargingerror"
	PhaseUnknown             MissionPhase = "unknown"
)

var knownPhases = []MissionPhase{
	PhaseCharge, PhaseRun, PhaseStuck, PhaseStop, PhaseUserSentHome,
	PhaseDockingAfterMission, PhaseDockingMidMission, PhaseEvac, PhaseChargingError,
}

// ReturningToDock reports whether the phase is one of the homing phases.
func (p MissionPhase) ReturningToDock() bool {
	return p == PhaseUserSentHome || p == PhaseDockingAfterMission || p == PhaseDockingMidMission
}

// ChargeRingPattern is the light ring behaviour while docked.
type ChargeRingPattern int

// Light ring patterns. Robots that do not report one read as
// DockingAndCharging; check OptionChargeRingPattern support first.
const (
	RingDockingAndCharging ChargeRingPattern = 0
	RingDocking            ChargeRingPattern = 1
	RingNone               ChargeRingPattern = 2
)

// UnexpectedValue is an enumerated field value outside the known set.
type UnexpectedValue struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Status is the normalized view of a robot's state.
type Status struct {
	Name              string            `json:"name"`
	SKU               string            `json:"sku"`
	Cycle             MissionCycle      `json:"cycle"`
	Phase             MissionPhase      `json:"phase"`
	BatteryPercent    int               `json:"batteryPercent"`
	ChargeRingPattern ChargeRingPattern `json:"chargeRingPattern"`
	ChildLock         bool              `json:"childLock"`
	ErrorCode         int               `json:"errorCode"`
	NotReadyCode      int               `json:"notReadyCode"`
	CanLearnMaps      bool              `json:"canLearnMaps"`
	SoftwareVersion   string            `json:"softwareVersion"`
	OTAProgress       int               `json:"otaProgress"`

	// Vacuum is set for families with a dust bin.
	Vacuum *VacuumState `json:"vacuum,omitempty"`

	// Mop is set for families with a water tank.
	Mop *MopState `json:"mop,omitempty"`

	// LastJobStartCommand is the lastCommand object when it was a start.
	LastJobStartCommand json.RawMessage `json:"lastJobStartCommand,omitempty"`
}

// Classify interprets a document for the given model. Unknown cycle or
// phase values are returned as UnexpectedValue and classified as Unknown.
// The family sub-status is filled from whichever providers m implements.
func Classify(m Model, s shadow.Snapshot) (Status, []UnexpectedValue) {
	st, unexpected := classifyCommon(s)
	if p, ok := m.(BinStatusProvider); ok {
		v := p.ReadBin(s)
		st.Vacuum = &v
	}
	if p, ok := m.(TankStatusProvider); ok {
		v := p.ReadTank(s)
		st.Mop = &v
	}
	return st, unexpected
}

func classifyCommon(s shadow.Snapshot) (Status, []UnexpectedValue) {
	var rs reportedState
	decodeLenient(s, &rs)

	st := Status{
		Name:              rs.Name,
		SKU:               rs.SKU,
		Cycle:             CycleNone,
		Phase:             PhaseStop,
		BatteryPercent:    rs.BatPct,
		ChargeRingPattern: ChargeRingPattern(rs.ChrgLrPtrn),
		ChildLock:         rs.ChildLock,
		CanLearnMaps:      rs.PmapLearningAllowed,
		SoftwareVersion:   rs.SoftwareVer,
		OTAProgress:       rs.OtaDownloadProgress,
	}

	var unexpected []UnexpectedValue
	if cms := rs.CleanMissionStatus; cms != nil {
		st.ErrorCode = cms.Error
		st.NotReadyCode = cms.NotReady
		if cms.Cycle != nil {
			st.Cycle = MissionCycle(*cms.Cycle)
			if !slices.Contains(knownCycles, st.Cycle) {
				unexpected = append(unexpected, UnexpectedValue{Field: "MissionCycle", Value: *cms.Cycle})
				st.Cycle = CycleUnknown
			}
		}
		if cms.Phase != nil {
			st.Phase = MissionPhase(*cms.Phase)
			if !slices.Contains(knownPhases, st.Phase) {
				unexpected = append(unexpected, UnexpectedValue{Field: "MissionPhase", Value: *cms.Phase})
				st.Phase = PhaseUnknown
			}
		}
	}

	if len(rs.LastCommand) > 0 {
		var lc lastCommand
		if json.Unmarshal(rs.LastCommand, &lc) == nil && lc.Command == "start" {
			st.LastJobStartCommand = slices.Clone(rs.LastCommand)
		}
	}

	return st, unexpected
}

// decodeLenient fills v from the snapshot, keeping whatever decoded when a
// field has an unexpected JSON type.
func decodeLenient(s shadow.Snapshot, v any) bool {
	err := s.Decode(v)
	var typeErr *json.UnmarshalTypeError
	return err == nil || errors.As(err, &typeErr)
}
