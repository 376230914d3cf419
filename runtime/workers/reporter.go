package workers

import (
	"context"
	"log/slog"
	"time"

	"tradegate/observability"
	"tradegate/runtime"
)

// ReporterWorker periodically refreshes the monitoring snapshot and logs
// the delivery pipeline figures.
type ReporterWorker struct {
	monitoring *observability.MonitoringManager
	registry   *runtime.ConnectionRegistry
	interval   time.Duration
	log        *slog.Logger
}

func NewReporterWorker(
	monitoring *observability.MonitoringManager,
	registry *runtime.ConnectionRegistry,
	interval time.Duration,
	log *slog.Logger,
) *ReporterWorker {
	return &ReporterWorker{monitoring: monitoring, registry: registry, interval: interval, log: log}
}

func (w *ReporterWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.report()
			return nil
		case <-ticker.C:
			w.report()
		}
	}
}

func (w *ReporterWorker) report() {
	stats := w.monitoring.Refresh(w.registry.Count())
	w.log.Info("Gateway stats",
		"connections", stats.ActiveConnections,
		"delivered", stats.Delivered,
		"queued", stats.Queued,
		"drained", stats.Drained,
		"broadcasts", stats.Broadcasts,
		"dropped", stats.DroppedFrames,
		"rejects", stats.HandshakeRejects,
		"alloc_mb", stats.AllocMemMb,
	)
}
