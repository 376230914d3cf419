// Package observability aggregates gateway metrics for the reporter
// worker and the admin debug surfaces.
package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
)

// GatewayStats is a point-in-time snapshot of the delivery pipeline.
type GatewayStats struct {
	ActiveConnections int    `json:"active_connections"`
	Delivered         uint64 `json:"delivered"`
	Queued            uint64 `json:"queued"`
	Drained           uint64 `json:"drained"`
	Broadcasts        uint64 `json:"broadcasts"`
	DroppedFrames     uint64 `json:"dropped_frames"`
	HandshakeRejects  uint64 `json:"handshake_rejects"`
	AllocMemMb        uint64 `json:"alloc_mem_mb"`
	NumGC             uint32 `json:"num_gc"`
}

// MonitoringManager collects counters from the dispatcher and transport.
// Counters are atomic so hot paths never block on the snapshot lock.
type MonitoringManager struct {
	log         *slog.Logger
	mu          sync.RWMutex
	latestStats GatewayStats

	delivered        uint64
	queued           uint64
	drained          uint64
	broadcasts       uint64
	droppedFrames    uint64
	handshakeRejects uint64
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log}
}

func (m *MonitoringManager) AddDelivered()       { atomic.AddUint64(&m.delivered, 1) }
func (m *MonitoringManager) AddQueued()          { atomic.AddUint64(&m.queued, 1) }
func (m *MonitoringManager) AddDrained(n uint64) { atomic.AddUint64(&m.drained, n) }
func (m *MonitoringManager) AddBroadcast()       { atomic.AddUint64(&m.broadcasts, 1) }
func (m *MonitoringManager) AddDroppedFrame()    { atomic.AddUint64(&m.droppedFrames, 1) }
func (m *MonitoringManager) AddHandshakeReject() { atomic.AddUint64(&m.handshakeRejects, 1) }

// Refresh recomputes the snapshot, folding in the live connection count
// provided by the registry and the Go runtime memory figures.
func (m *MonitoringManager) Refresh(activeConnections int) GatewayStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := GatewayStats{
		ActiveConnections: activeConnections,
		Delivered:         atomic.LoadUint64(&m.delivered),
		Queued:            atomic.LoadUint64(&m.queued),
		Drained:           atomic.LoadUint64(&m.drained),
		Broadcasts:        atomic.LoadUint64(&m.broadcasts),
		DroppedFrames:     atomic.LoadUint64(&m.droppedFrames),
		HandshakeRejects:  atomic.LoadUint64(&m.handshakeRejects),
		AllocMemMb:        mem.Alloc / 1024 / 1024,
		NumGC:             mem.NumGC,
	}

	m.mu.Lock()
	m.latestStats = stats
	m.mu.Unlock()
	return stats
}

// GetLatest returns the last computed snapshot without recomputing.
func (m *MonitoringManager) GetLatest() GatewayStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latestStats
}
