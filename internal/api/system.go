package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/robotlan-core/internal/session"
)

// SystemMetrics represents the /system response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	Robots        RobotMetrics   `json:"robots"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// RobotMetrics counts registered robots by connection phase.
type RobotMetrics struct {
	Total     int            `json:"total"`
	Connected int            `json:"connected"`
	Disabled  int            `json:"disabled"`
	ByPhase   map[string]int `json:"by_phase"`
}

// handleSystem returns runtime and robot summary statistics.
func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Robots: RobotMetrics{ByPhase: make(map[string]int)},
	}

	for _, sess := range s.coord.Sessions() {
		st := sess.State()
		metrics.Robots.Total++
		metrics.Robots.ByPhase[st.Phase.String()]++
		if st.Phase == session.PhaseConnected {
			metrics.Robots.Connected++
		}
		if st.Disabled() {
			metrics.Robots.Disabled++
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
