package telemetry

import (
	"time"

	"github.com/nerrad567/robotlan-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/robotlan-core/internal/session"
)

// PointWriter writes one time-series point. *influxdb.Client satisfies it.
type PointWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time)
}

// InfluxSink records status and connection events as points.
type InfluxSink struct {
	w PointWriter
}

// NewInfluxSink writes through w.
func NewInfluxSink(w PointWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// Handle writes the point for one event. Unexpected values are not
// recorded. A nil sink drops everything.
func (s *InfluxSink) Handle(ev session.Event) {
	if s == nil {
		return
	}
	tags := map[string]string{"robot_id": ev.RobotID()}

	switch e := ev.(type) {
	case session.ConnectionChanged:
		tags["phase"] = e.State.Phase.String()
		s.w.WritePoint(influxdb.MeasurementConnection, tags, map[string]any{
			"connected": e.State.Phase == session.PhaseConnected,
			"reason":    e.State.Reason.String(),
			"message":   e.State.Message,
		}, e.Time)

	case session.StatusChanged:
		st := e.Status
		fields := map[string]any{
			"battery_percent": st.BatteryPercent,
			"cycle":           string(st.Cycle),
			"phase":           string(st.Phase),
			"status":          e.Derived.Status.String(),
			"job_phase":       e.Derived.JobPhase.String(),
			"charging":        e.Derived.Charging,
			"error_code":      st.ErrorCode,
			"not_ready_code":  st.NotReadyCode,
		}
		if st.Vacuum != nil {
			fields["bin"] = string(st.Vacuum.Bin)
		}
		if st.Mop != nil {
			fields["tank"] = string(st.Mop.Tank)
			fields["tank_level"] = st.Mop.TankLevel
		}
		s.w.WritePoint(influxdb.MeasurementStatus, tags, fields, e.Time)
	}
}
