// Package metrics logs system resource usage during an import run. Long
// imports are memory- and I/O-bound; periodic snapshots make it visible
// when the node cache should be switched to disk mode.
package metrics

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Collector periodically collects and logs system metrics
type Collector struct {
	interval time.Duration
	logger   *zap.Logger
	proc     *process.Process
}

// NewCollector creates a new metrics collector
func NewCollector(interval time.Duration, logger *zap.Logger) *Collector {
	if interval < time.Second {
		interval = 30 * time.Second
	}
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &Collector{
		interval: interval,
		logger:   logger,
		proc:     proc,
	}
}

// Start begins periodic collection. Returns when the context is cancelled.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Metrics collection stopped")
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

func (c *Collector) collect() {
	fields := make([]zap.Field, 0, 4)

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		fields = append(fields, zap.Float64("cpu_percent", percents[0]))
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fields = append(fields,
			zap.Float64("mem_used_gb", float64(vm.Used)/(1024*1024*1024)),
			zap.Float64("mem_percent", vm.UsedPercent))
	}
	if c.proc != nil {
		if info, err := c.proc.MemoryInfo(); err == nil && info != nil {
			fields = append(fields, zap.Float64("process_rss_gb", float64(info.RSS)/(1024*1024*1024)))
		}
	}

	c.logger.Info("System metrics", fields...)
}
