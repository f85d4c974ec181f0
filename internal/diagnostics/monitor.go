package diagnostics

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// ResourceSnapshot captures process resource state at a point in time.
type ResourceSnapshot struct {
	Timestamp      time.Time     `json:"timestamp"`
	OpenFDs        int           `json:"open_fds"`
	MaxFDs         int           `json:"max_fds"`
	FDUsagePercent float64       `json:"fd_usage_percent"`
	Goroutines     int           `json:"goroutines"`
	HeapAllocMB    float64       `json:"heap_alloc_mb"`
	HeapInUseMB    float64       `json:"heap_in_use_mb"`
	StackInUseMB   float64       `json:"stack_in_use_mb"`
	GCPauseNS      uint64        `json:"gc_pause_ns"`
	NumGC          uint32        `json:"num_gc"`
	ProcessUptime  time.Duration `json:"process_uptime"`
	FailedChecks   int64         `json:"failed_checks"`
}

// ResourceTrend captures resource usage trends over time.
type ResourceTrend struct {
	FDGrowthRate        float64  // FDs per hour
	GoroutineGrowthRate float64  // Goroutines per hour
	MemoryGrowthRate    float64  // MB per hour
	IsHealthy           bool
	Warnings            []string
}

// HealthWarning represents a single health concern.
type HealthWarning struct {
	Level   string  // "warning" or "critical"
	Type    string  // "fd", "goroutine", "memory"
	Message string
	Value   float64
	Limit   float64
}

// MonitorOptions configures a ResourceMonitor. Zero thresholds disable the
// corresponding health check.
type MonitorOptions struct {
	Interval           time.Duration
	HistorySize        int
	FDThresholdPercent int
	GoroutineThreshold int
	MemoryThresholdMB  int
	Logger             *slog.Logger
}

// ResourceMonitor samples resource usage on an interval and keeps a bounded
// history for crash dumps.
type ResourceMonitor struct {
	opts MonitorOptions

	history []ResourceSnapshot
	mu      sync.RWMutex

	failedChecks atomic.Int64

	stopCh  chan struct{}
	stopped atomic.Bool
	started time.Time
}

// NewResourceMonitor creates a new resource monitor.
func NewResourceMonitor(opts MonitorOptions) *ResourceMonitor {
	if opts.HistorySize <= 0 {
		opts.HistorySize = 120
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}

	return &ResourceMonitor{
		opts:    opts,
		history: make([]ResourceSnapshot, 0, opts.HistorySize),
		stopCh:  make(chan struct{}),
		started: time.Now(),
	}
}

// Start begins periodic sampling until ctx is done or Stop is called.
func (m *ResourceMonitor) Start(ctx context.Context) {
	go func() {
		m.recordSnapshot(m.TakeSnapshot())

		ticker := time.NewTicker(m.opts.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.recordSnapshot(m.TakeSnapshot())
				m.logWarnings(m.CheckHealth())
			}
		}
	}()
}

func (m *ResourceMonitor) logWarnings(warnings []HealthWarning) {
	if m.opts.Logger == nil {
		return
	}
	for _, w := range warnings {
		m.opts.Logger.Warn("resource warning",
			"type", w.Type,
			"level", w.Level,
			"value", w.Value,
			"limit", w.Limit,
			"message", w.Message,
		)
	}
}

// Stop halts the sampling loop. It is safe to call more than once.
func (m *ResourceMonitor) Stop() {
	if m.stopped.CompareAndSwap(false, true) {
		close(m.stopCh)
	}
}

// TakeSnapshot captures current resource state without recording it.
func (m *ResourceMonitor) TakeSnapshot() ResourceSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	openFDs, maxFDs := CountFDs()
	fdPercent := 0.0
	if maxFDs > 0 {
		fdPercent = float64(openFDs) / float64(maxFDs) * 100
	}

	return ResourceSnapshot{
		Timestamp:      time.Now(),
		OpenFDs:        openFDs,
		MaxFDs:         maxFDs,
		FDUsagePercent: fdPercent,
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocMB:    float64(memStats.HeapAlloc) / 1024 / 1024,
		HeapInUseMB:    float64(memStats.HeapInuse) / 1024 / 1024,
		StackInUseMB:   float64(memStats.StackInuse) / 1024 / 1024,
		GCPauseNS:      memStats.PauseNs[(memStats.NumGC+255)%256],
		NumGC:          memStats.NumGC,
		ProcessUptime:  time.Since(m.started),
		FailedChecks:   m.failedChecks.Load(),
	}
}

// Record takes a snapshot and appends it to the history.
func (m *ResourceMonitor) Record() ResourceSnapshot {
	s := m.TakeSnapshot()
	m.recordSnapshot(s)
	return s
}

func (m *ResourceMonitor) recordSnapshot(s ResourceSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append(m.history, s)
	if len(m.history) > m.opts.HistorySize {
		m.history = m.history[len(m.history)-m.opts.HistorySize:]
	}
}

// RecordFailedCheck counts a failed check reported by the triage engine.
func (m *ResourceMonitor) RecordFailedCheck() {
	m.failedChecks.Add(1)
}

// FailedChecks returns how many failed checks were recorded.
func (m *ResourceMonitor) FailedChecks() int64 {
	return m.failedChecks.Load()
}

// GetHistory returns a copy of the recorded snapshots, oldest first.
func (m *ResourceMonitor) GetHistory() []ResourceSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]ResourceSnapshot, len(m.history))
	copy(result, m.history)
	return result
}

// GetLatest returns the most recent snapshot.
func (m *ResourceMonitor) GetLatest() (ResourceSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.history) == 0 {
		return ResourceSnapshot{}, false
	}
	return m.history[len(m.history)-1], true
}

// GetTrend analyzes the recorded history for leaks.
func (m *ResourceMonitor) GetTrend() ResourceTrend {
	return trendOf(m.GetHistory())
}

func trendOf(history []ResourceSnapshot) ResourceTrend {
	if len(history) < 2 {
		return ResourceTrend{IsHealthy: true}
	}

	first := history[0]
	last := history[len(history)-1]
	duration := last.Timestamp.Sub(first.Timestamp).Hours()

	// Under 36 seconds of history says nothing about rates.
	if duration < 0.01 {
		return ResourceTrend{IsHealthy: true}
	}

	trend := ResourceTrend{
		FDGrowthRate:        float64(last.OpenFDs-first.OpenFDs) / duration,
		GoroutineGrowthRate: float64(last.Goroutines-first.Goroutines) / duration,
		MemoryGrowthRate:    (last.HeapAllocMB - first.HeapAllocMB) / duration,
		IsHealthy:           true,
	}

	if trend.FDGrowthRate > 10 {
		trend.IsHealthy = false
		trend.Warnings = append(trend.Warnings,
			fmt.Sprintf("FD count growing at %.1f/hour (potential leak)", trend.FDGrowthRate))
	}
	if trend.GoroutineGrowthRate > 100 {
		trend.IsHealthy = false
		trend.Warnings = append(trend.Warnings,
			fmt.Sprintf("Goroutine count growing at %.1f/hour (potential leak)", trend.GoroutineGrowthRate))
	}
	if trend.MemoryGrowthRate > 100 {
		trend.IsHealthy = false
		trend.Warnings = append(trend.Warnings,
			fmt.Sprintf("Memory growing at %.1f MB/hour", trend.MemoryGrowthRate))
	}

	return trend
}

// CheckHealth returns warnings for thresholds exceeded by the latest
// snapshot, taking a fresh one if nothing was recorded yet.
func (m *ResourceMonitor) CheckHealth() []HealthWarning {
	snapshot, ok := m.GetLatest()
	if !ok {
		snapshot = m.TakeSnapshot()
	}
	return m.healthOf(snapshot)
}

func (m *ResourceMonitor) healthOf(snapshot ResourceSnapshot) []HealthWarning {
	var warnings []HealthWarning

	if t := m.opts.FDThresholdPercent; t > 0 && snapshot.FDUsagePercent > float64(t) {
		level := "warning"
		if snapshot.FDUsagePercent > 90 {
			level = "critical"
		}
		warnings = append(warnings, HealthWarning{
			Level:   level,
			Type:    "fd",
			Message: fmt.Sprintf("FD usage at %.1f%% (threshold: %d%%)", snapshot.FDUsagePercent, t),
			Value:   snapshot.FDUsagePercent,
			Limit:   float64(t),
		})
	}

	if t := m.opts.GoroutineThreshold; t > 0 && snapshot.Goroutines > t {
		level := "warning"
		if snapshot.Goroutines > t*2 {
			level = "critical"
		}
		warnings = append(warnings, HealthWarning{
			Level:   level,
			Type:    "goroutine",
			Message: fmt.Sprintf("Goroutine count at %d (threshold: %d)", snapshot.Goroutines, t),
			Value:   float64(snapshot.Goroutines),
			Limit:   float64(t),
		})
	}

	if t := m.opts.MemoryThresholdMB; t > 0 && snapshot.HeapAllocMB > float64(t) {
		level := "warning"
		if snapshot.HeapAllocMB > float64(t)*1.5 {
			level = "critical"
		}
		warnings = append(warnings, HealthWarning{
			Level:   level,
			Type:    "memory",
			Message: fmt.Sprintf("Heap usage at %.1f MB (threshold: %d MB)", snapshot.HeapAllocMB, t),
			Value:   snapshot.HeapAllocMB,
			Limit:   float64(t),
		})
	}

	return warnings
}

// Uptime returns the time since the monitor was created.
func (m *ResourceMonitor) Uptime() time.Duration {
	return time.Since(m.started)
}
