package robot

import "encoding/json"

// reportedState mirrors the parts of state.reported the classifier reads.
// Pointer fields distinguish "absent" from a zero value.
type reportedState struct {
	Name                string              `json:"name"`
	SKU                 string              `json:"sku"`
	BatPct              int                 `json:"batPct"`
	ChildLock           bool                `json:"childLock"`
	ChrgLrPtrn          int                 `json:"chrgLrPtrn"`
	CleanMissionStatus  *cleanMissionStatus `json:"cleanMissionStatus"`
	PmapLearningAllowed bool                `json:"pmapLearningAllowed"`
	OtaDownloadProgress int                 `json:"otaDownloadProgress"`
	SoftwareVer         string              `json:"softwareVer"`
	LastCommand         json.RawMessage     `json:"lastCommand"`
}

type cleanMissionStatus struct {
	Cycle    *string `json:"cycle"`
	Phase    *string `json:"phase"`
	Error    int     `json:"error"`
	NotReady int     `json:"notReady"`
}

type lastCommand struct {
	Command string `json:"command"`
}

type reportedVacuum struct {
	Bin          *bin  `json:"bin"`
	BinPause     bool  `json:"binPause"`
	EvacAllowed  *bool `json:"evacAllowed"`
	NoAutoPasses bool  `json:"noAutoPasses"`
	TwoPass      bool  `json:"twoPass"`
}

type bin struct {
	Present bool `json:"present"`
	Full    bool `json:"full"`
}

type reportedMop struct {
	MopReady    *mopReady   `json:"mopReady"`
	TankPresent bool        `json:"tankPresent"`
	LidOpen     bool        `json:"lidOpen"`
	TankLvl     int         `json:"tankLvl"`
	Dock        *dock       `json:"dock"`
	DetectedPad *string     `json:"detectedPad"`
	PadWetness  *padWetness `json:"padWetness"`
	RankOverlap *int        `json:"rankOverlap"`
}

type mopReady struct {
	TankPresent bool `json:"tankPresent"`
	LidClosed   bool `json:"lidClosed"`
}

type dock struct {
	TankLvl *int `json:"tankLvl"`
}

type padWetness struct {
	Disposable *int `json:"disposable"`
	Reusable   *int `json:"reusable"`
}
