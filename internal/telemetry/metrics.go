package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/robotlan-core/internal/robot"
	"github.com/nerrad567/robotlan-core/internal/session"
)

const namespace = "robotlan"

// Metrics collects per-robot Prometheus metrics from session events.
type Metrics struct {
	connected       *prometheus.GaugeVec
	phase           *prometheus.GaugeVec
	battery         *prometheus.GaugeVec
	binFull         *prometheus.GaugeVec
	tankLevel       *prometheus.GaugeVec
	lastStatus      *prometheus.GaugeVec
	statusChanges   *prometheus.CounterVec
	connectAttempts *prometheus.CounterVec
	connectFailures *prometheus.CounterVec
	unexpected      *prometheus.CounterVec
	sweepDuration   prometheus.Histogram
	sweepFound      prometheus.Gauge
}

// NewMetrics creates the collectors. Register them with MustRegister.
func NewMetrics() *Metrics {
	robotLabel := []string{"robot_id"}
	return &Metrics{
		connected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "robot_connected",
			Help:      "1 if the robot session is connected",
		}, robotLabel),
		phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "robot_connection_phase",
			Help:      "1 for the robot's current connection phase",
		}, []string{"robot_id", "phase"}),
		battery: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "robot_battery_percent",
			Help:      "Battery charge reported by the robot",
		}, robotLabel),
		binFull: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "robot_bin_full",
			Help:      "1 if the robot's bin is full",
		}, robotLabel),
		tankLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "robot_tank_level_percent",
			Help:      "Water tank level reported by the robot",
		}, robotLabel),
		lastStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "robot_last_status_timestamp_seconds",
			Help:      "Time of the last status change (epoch seconds)",
		}, robotLabel),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "robot_status_changes_total",
			Help:      "Status changes emitted per robot",
		}, robotLabel),
		connectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "robot_connect_attempts_total",
			Help:      "Connection attempts per robot",
		}, robotLabel),
		connectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "robot_connect_failures_total",
			Help:      "Failed connection attempts by reason",
		}, []string{"robot_id", "reason"}),
		unexpected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "robot_unexpected_values_total",
			Help:      "Unrecognised enumerated values by field",
		}, []string{"robot_id", "field"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_sweep_duration_seconds",
			Help:      "Duration of discovery sweeps",
			Buckets:   []float64{0.5, 1, 2, 4, 6, 8, 12},
		}),
		sweepFound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "discovery_robots_found",
			Help:      "Robots that answered the last discovery sweep",
		}),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.connected, m.phase, m.battery, m.binFull, m.tankLevel, m.lastStatus,
		m.statusChanges, m.connectAttempts, m.connectFailures, m.unexpected,
		m.sweepDuration, m.sweepFound,
	}
}

var phases = []session.Phase{
	session.PhaseDisconnected,
	session.PhaseConnecting,
	session.PhaseConnected,
	session.PhaseCannotConnect,
	session.PhaseFatalError,
}

// Handle updates metrics from one event.
func (m *Metrics) Handle(ev session.Event) {
	id := ev.RobotID()
	switch e := ev.(type) {
	case session.ConnectionChanged:
		m.observeConnection(id, e.State)
	case session.StatusChanged:
		m.observeStatus(id, e.Status, e.Time)
	case session.UnexpectedValue:
		m.unexpected.WithLabelValues(id, e.Field).Inc()
	}
}

func (m *Metrics) observeConnection(id string, st session.ConnectionState) {
	for _, p := range phases {
		v := 0.0
		if p == st.Phase {
			v = 1
		}
		m.phase.WithLabelValues(id, p.String()).Set(v)
	}
	m.connected.WithLabelValues(id).Set(boolGauge(st.Phase == session.PhaseConnected))

	switch st.Phase {
	case session.PhaseConnecting:
		m.connectAttempts.WithLabelValues(id).Inc()
	case session.PhaseCannotConnect:
		if !st.Disabled() {
			m.connectFailures.WithLabelValues(id, st.Reason.String()).Inc()
		}
	}
}

func (m *Metrics) observeStatus(id string, st robot.Status, at time.Time) {
	m.statusChanges.WithLabelValues(id).Inc()
	m.lastStatus.WithLabelValues(id).Set(float64(at.Unix()))
	m.battery.WithLabelValues(id).Set(float64(st.BatteryPercent))
	if st.Vacuum != nil {
		m.binFull.WithLabelValues(id).Set(boolGauge(st.Vacuum.Bin == robot.BinFull))
	}
	if st.Mop != nil {
		m.tankLevel.WithLabelValues(id).Set(float64(st.Mop.TankLevel))
	}
}

// ObserveSweep records one discovery sweep.
func (m *Metrics) ObserveSweep(d time.Duration, found int) {
	m.sweepDuration.Observe(d.Seconds())
	m.sweepFound.Set(float64(found))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
