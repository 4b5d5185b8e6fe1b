package robot

import "fmt"

// RobotStatus is the host-facing summary of what a robot is doing.
type RobotStatus int

// Robot statuses. Resume and Find are only used as command targets.
const (
	StatusOnBase       RobotStatus = 0
	StatusClean        RobotStatus = 1
	StatusJobPaused    RobotStatus = 2
	StatusResume       RobotStatus = 3
	StatusOffBaseNoJob RobotStatus = 4
	StatusStuck        RobotStatus = 5
	StatusDockManually RobotStatus = 6
	StatusFind         RobotStatus = 7
	StatusEvac         RobotStatus = 8
	StatusTrain        RobotStatus = 9
)

var robotStatusNames = map[RobotStatus]string{
	StatusOnBase:       "onBase",
	StatusClean:        "clean",
	StatusJobPaused:    "jobPaused",
	StatusResume:       "resume",
	StatusOffBaseNoJob: "offBaseNoJob",
	StatusStuck:        "stuck",
	StatusDockManually: "dockManually",
	StatusFind:         "find",
	StatusEvac:         "evac",
	StatusTrain:        "train",
}

func (s RobotStatus) String() string {
	if name, ok := robotStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the status by name.
func (s RobotStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a name produced by MarshalText.
func (s *RobotStatus) UnmarshalText(text []byte) error {
	v, ok := ParseRobotStatus(string(text))
	if !ok {
		return fmt.Errorf("unknown robot status %q", text)
	}
	*s = v
	return nil
}

// ParseRobotStatus converts a status name produced by String.
func ParseRobotStatus(name string) (RobotStatus, bool) {
	for s, n := range robotStatusNames {
		if n == name {
			return s, true
		}
	}
	return 0, false
}

// CleanJobPhase is the host-facing phase of a cleaning job.
type CleanJobPhase int

// Job phases.
const (
	JobNoJob                     CleanJobPhase = 0
	JobCleaning                  CleanJobPhase = 1
	JobCharging                  CleanJobPhase = 2
	JobEvac                      CleanJobPhase = 3
	JobLowBatteryReturningToDock CleanJobPhase = 4
	JobDoneReturningToDock       CleanJobPhase = 5
	JobChargingError             CleanJobPhase = 6
)

var jobPhaseNames = map[CleanJobPhase]string{
	JobNoJob:                     "noJob",
	JobCleaning:                  "cleaning",
	JobCharging:                  "charging",
	JobEvac:                      "evac",
	JobLowBatteryReturningToDock: "lowBatteryReturningToDock",
	JobDoneReturningToDock:       "doneReturningToDock",
	JobChargingError:             "chargingError",
}

func (p CleanJobPhase) String() string {
	if name, ok := jobPhaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the phase by name.
func (p CleanJobPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a name produced by MarshalText.
func (p *CleanJobPhase) UnmarshalText(text []byte) error {
	for v, name := range jobPhaseNames {
		if name == string(text) {
			*p = v
			return nil
		}
	}
	return fmt.Errorf("unknown job phase %q", text)
}

// Derived is the host-facing view computed from a Status.
type Derived struct {
	Status     RobotStatus   `json:"status"`
	JobPhase   CleanJobPhase `json:"jobPhase"`
	Navigating bool          `json:"navigating"`
	Charging   bool          `json:"charging"`
}

// Derive computes the host-facing view of st.
func Derive(st Status) Derived {
	rs := deriveRobotStatus(st.Cycle, st.Phase)
	jp := deriveJobPhase(rs, st.Phase)
	return Derived{
		Status:     rs,
		JobPhase:   jp,
		Navigating: isNavigating(rs, jp),
		Charging:   st.BatteryPercent < 100 && st.Phase == PhaseCharge,
	}
}

func deriveRobotStatus(cycle MissionCycle, phase MissionPhase) RobotStatus {
	if phase == PhaseStuck {
		return StatusStuck
	}
	switch cycle {
	case CycleNone:
		if phase == PhaseStop {
			return StatusOffBaseNoJob
		}
		return StatusOnBase
	case CycleClean, CycleSpot:
		if phase == PhaseStop {
			return StatusJobPaused
		}
		return StatusClean
	case CycleDock:
		return StatusDockManually
	case CycleEvac:
		return StatusEvac
	case CycleTrain:
		return StatusTrain
	default:
		return StatusOffBaseNoJob
	}
}

func deriveJobPhase(rs RobotStatus, phase MissionPhase) CleanJobPhase {
	switch rs {
	case StatusEvac:
		return JobEvac
	case StatusDockManually:
		return JobDoneReturningToDock
	case StatusClean:
		switch phase {
		case PhaseCharge:
			return JobCharging
		case PhaseEvac:
			return JobEvac
		case PhaseDockingMidMission:
			return JobLowBatteryReturningToDock
		case PhaseDockingAfterMission, PhaseUserSentHome:
			return JobDoneReturningToDock
		case PhaseChargingError:
			return JobChargingError
		default:
			return JobCleaning
		}
	default:
		return JobNoJob
	}
}

func isNavigating(rs RobotStatus, jp CleanJobPhase) bool {
	switch rs {
	case StatusClean, StatusDockManually, StatusTrain:
	default:
		return false
	}
	switch jp {
	case JobCleaning, JobLowBatteryReturningToDock, JobDoneReturningToDock:
		return true
	default:
		return false
	}
}
