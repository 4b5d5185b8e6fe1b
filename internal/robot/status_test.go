package robot

import (
	"testing"
)

func TestClassify_CommonFields(t *testing.T) {
	s := snapshotOf(t, `{
		"name": "Downstairs",
		"sku": "R980020",
		"batPct": 87,
		"childLock": true,
		"chrgLrPtrn": 2,
		"pmapLearningAllowed": true,
		"softwareVer": "lewis+3.2.10",
		"otaDownloadProgress": 40,
		"cleanMissionStatus": {"cycle": "clean", "phase": "run", "error": 17, "notReady": 3},
		"bin": {"present": true, "full": false}
	}`)

	st, unexpected := Classify(mustModel(t, FamilyVacuum), s)

	if len(unexpected) != 0 {
		t.Errorf("Classify() unexpected = %v, want none", unexpected)
	}
	if st.Name != "Downstairs" || st.SKU != "R980020" {
		t.Errorf("Classify() name/sku = %q/%q", st.Name, st.SKU)
	}
	if st.Cycle != CycleClean {
		t.Errorf("Cycle = %q, want %q", st.Cycle, CycleClean)
	}
	if st.Phase != PhaseRun {
		t.Errorf("Phase = %q, want %q", st.Phase, PhaseRun)
	}
	if st.BatteryPercent != 87 {
		t.Errorf("BatteryPercent = %d, want 87", st.BatteryPercent)
	}
	if !st.ChildLock {
		t.Error("ChildLock = false, want true")
	}
	if st.ChargeRingPattern != RingNone {
		t.Errorf("ChargeRingPattern = %d, want %d", st.ChargeRingPattern, RingNone)
	}
	if st.ErrorCode != 17 || st.NotReadyCode != 3 {
		t.Errorf("ErrorCode/NotReadyCode = %d/%d, want 17/3", st.ErrorCode, st.NotReadyCode)
	}
	if !st.CanLearnMaps {
		t.Error("CanLearnMaps = false, want true")
	}
	if st.SoftwareVersion != "lewis+3.2.10" {
		t.Errorf("SoftwareVersion = %q", st.SoftwareVersion)
	}
	if st.OTAProgress != 40 {
		t.Errorf("OTAProgress = %d, want 40", st.OTAProgress)
	}
	if st.Vacuum == nil {
		t.Fatal("Vacuum = nil, want sub-status")
	}
	if st.Mop != nil {
		t.Errorf("Mop = %+v, want nil for vacuum", st.Mop)
	}
}

func TestClassify_MissionDefaults(t *testing.T) {
	st, unexpected := Classify(mustModel(t, FamilyVacuum), snapshotOf(t, `{"batPct": 50}`))

	if st.Cycle != CycleNone {
		t.Errorf("Cycle = %q, want %q", st.Cycle, CycleNone)
	}
	if st.Phase != PhaseStop {
		t.Errorf("Phase = %q, want %q", st.Phase, PhaseStop)
	}
	if len(unexpected) != 0 {
		t.Errorf("unexpected = %v, want none", unexpected)
	}
}

func TestClassify_UnexpectedValues(t *testing.T) {
	tests := []struct {
		name      string
		report    string
		wantCycle MissionCycle
		wantPhase MissionPhase
		want      []UnexpectedValue
	}{
		{
			name:      "unknown cycle",
			report:    `{"cleanMissionStatus": {"cycle": "quick", "phase": "run"}}`,
			wantCycle: CycleUnknown,
			wantPhase: PhaseRun,
			want:      []UnexpectedValue{{Field: "MissionCycle", Value: "quick"}},
		},
		{
			name:      "unknown phase",
			report:    `{"cleanMissionStatus": {"cycle": "clean", "phase": "dance"}}`,
			wantCycle: CycleClean,
			wantPhase: PhaseUnknown,
			want:      []UnexpectedValue{{Field: "MissionPhase", Value: "dance"}},
		},
		{
			name:      "both unknown",
			report:    `{"cleanMissionStatus": {"cycle": "x", "phase": "y"}}`,
			wantCycle: CycleUnknown,
			wantPhase: PhaseUnknown,
			want: []UnexpectedValue{
				{Field: "MissionCycle", Value: "x"},
				{Field: "MissionPhase", Value: "y"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, got := Classify(mustModel(t, FamilyMop), snapshotOf(t, tt.report))
			if st.Cycle != tt.wantCycle {
				t.Errorf("Cycle = %q, want %q", st.Cycle, tt.wantCycle)
			}
			if st.Phase != tt.wantPhase {
				t.Errorf("Phase = %q, want %q", st.Phase, tt.wantPhase)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("unexpected = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("unexpected[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestClassify_LastJobStartCommand(t *testing.T) {
	tests := []struct {
		name    string
		report  string
		wantSet bool
	}{
		{"start", `{"lastCommand": {"command": "start", "time": 1, "initiator": "localApp", "regions": [1]}}`, true},
		{"dock", `{"lastCommand": {"command": "dock", "time": 1}}`, false},
		{"absent", `{}`, false},
		{"null", `{"lastCommand": null}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, _ := Classify(mustModel(t, FamilyVacuum), snapshotOf(t, tt.report))
			if got := st.LastJobStartCommand != nil; got != tt.wantSet {
				t.Errorf("LastJobStartCommand set = %v, want %v (%s)", got, tt.wantSet, st.LastJobStartCommand)
			}
		})
	}
}

func TestClassify_TolerantOfWrongTypes(t *testing.T) {
	st, _ := Classify(mustModel(t, FamilyVacuum), snapshotOf(t, `{"name": 42, "batPct": 61}`))
	if st.BatteryPercent != 61 {
		t.Errorf("BatteryPercent = %d, want 61 despite bad name", st.BatteryPercent)
	}
}

// End-to-end: bin status follows successive merges with no extra gating.
func TestClassify_BinFollowsMerges(t *testing.T) {
	doc := snapshotOf(t, `{"bin": {"present": true, "full": false}}`)
	m := mustModel(t, FamilyVacuum)

	st, _ := Classify(m, doc)
	if st.Vacuum.Bin != BinOK {
		t.Fatalf("Bin = %q, want %q", st.Vacuum.Bin, BinOK)
	}

	doc = snapshotOf(t, `{"bin": {"present": true, "full": false}}`, `{"bin": {"present": true, "full": true}}`)
	st, _ = Classify(m, doc)
	if st.Vacuum.Bin != BinFull {
		t.Errorf("Bin = %q, want %q", st.Vacuum.Bin, BinFull)
	}
}
