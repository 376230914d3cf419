package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	_ "github.com/shirou/gopsutil"
	"github.com/shirou/gopsutil/process"
)

// HealthMonitoringWorker samples the gateway's own process and warns when
// resource usage crosses the configured thresholds. Long-lived socket
// servers leak quietly; this surfaces it before the OOM killer does.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	metricInterval time.Duration
	cpuThreshold   float64
	ramThreshold   float32
}

func NewHealthMonitoringWorker(
	log *slog.Logger,
	metricInterval time.Duration,
	cpuThreshold float64,
	ramThreshold float32,
) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		log:            log,
		metricInterval: metricInterval,
		cpuThreshold:   cpuThreshold,
		ramThreshold:   ramThreshold,
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			cpu, err := self.CPUPercent()
			if err != nil {
				w.log.Error("Error while finding process cpu usage", "err", err)
				continue
			}
			ram, err := self.MemoryPercent()
			if err != nil {
				w.log.Error("Error while finding process ram usage", "err", err)
				continue
			}

			w.log.Debug("Process metrics", "cpu", cpu, "ram", ram)
			if cpu > w.cpuThreshold {
				w.log.Warn("CPU usage above threshold", "cpu", cpu, "threshold", w.cpuThreshold)
			}
			if ram > w.ramThreshold {
				w.log.Warn("RAM usage above threshold", "ram", ram, "threshold", w.ramThreshold)
			}
		}
	}
}
