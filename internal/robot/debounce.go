package robot

import "time"

// Debouncer picks the debounce window for each classification.
//
// Robots briefly report "run" right after docking into "charge". A run
// report within TransientWindow of the latest dock-to-charge transition
// gets the long window so the flap never reaches observers.
type Debouncer struct {
	Normal          time.Duration
	Transient       time.Duration
	TransientWindow time.Duration

	previous         MissionPhase
	lastDockToCharge time.Time
}

// NewDebouncer returns a Debouncer with the firmware-observed defaults.
func NewDebouncer() *Debouncer {
	return &Debouncer{
		Normal:          500 * time.Millisecond,
		Transient:       10 * time.Second,
		TransientWindow: time.Second,
	}
}

// Observe records phase at now and returns how long to wait before
// emitting the status.
func (d *Debouncer) Observe(phase MissionPhase, now time.Time) time.Duration {
	if phase == PhaseCharge && d.previous.ReturningToDock() {
		d.lastDockToCharge = now
	}
	d.previous = phase

	if phase == PhaseRun && !d.lastDockToCharge.IsZero() && now.Sub(d.lastDockToCharge) <= d.TransientWindow {
		return d.Transient
	}
	return d.Normal
}

// Reset forgets phase history. Sessions call it on every new connection.
func (d *Debouncer) Reset() {
	d.previous = ""
	d.lastDockToCharge = time.Time{}
}
