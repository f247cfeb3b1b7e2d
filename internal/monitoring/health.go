package monitoring

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/isdelr/skill-loop-be/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

// hostSample is one reading of host resource usage.
type hostSample struct {
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
	UptimeSeconds uint64
}

// HealthMonitor samples host usage in the background and reports it with a live database check.
type HealthMonitor struct {
	db       pinger
	diskPath string
	sample   func(ctx context.Context, diskPath string) (hostSample, error)
	interval time.Duration
	done     chan struct{}

	mu   sync.RWMutex
	last *hostSample
}

// NewHealthMonitor creates a monitor. diskPath selects the filesystem whose usage is reported.
func NewHealthMonitor(db pinger, diskPath string) *HealthMonitor {
	if diskPath == "" {
		diskPath = string(os.PathSeparator)
	}
	return &HealthMonitor{
		db:       db,
		diskPath: diskPath,
		sample:   sampleHost,
		interval: 15 * time.Second,
		done:     make(chan struct{}),
	}
}

// Run refreshes the host sample until Stop is called.
func (m *HealthMonitor) Run() {
	log.Info().Msg("Starting background health sampler...")
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.refresh(context.Background())
	for {
		select {
		case <-m.done:
			log.Info().Msg("Stopping background health sampler.")
			return
		case <-ticker.C:
			m.refresh(context.Background())
		}
	}
}

// Stop halts the sampler.
func (m *HealthMonitor) Stop() {
	close(m.done)
}

func (m *HealthMonitor) refresh(ctx context.Context) *hostSample {
	s, err := m.sample(ctx, m.diskPath)
	if err != nil {
		log.Warn().Err(err).Msg("HealthMonitor: Could not sample host usage")
		return nil
	}
	m.mu.Lock()
	m.last = &s
	m.mu.Unlock()
	return &s
}

// Health returns the latest host sample, taking one if none exists yet, and pings the database.
func (m *HealthMonitor) Health(ctx context.Context) models.SystemHealth {
	m.mu.RLock()
	s := m.last
	m.mu.RUnlock()
	if s == nil {
		s = m.refresh(ctx)
	}

	health := models.SystemHealth{Database: "ok"}
	if err := m.db.PingContext(ctx); err != nil {
		log.Error().Err(err).Msg("HealthMonitor: Database ping failed")
		health.Database = "unreachable"
	}
	if s != nil {
		health.CPUPercent = s.CPUPercent
		health.MemoryPercent = s.MemoryPercent
		health.DiskPercent = s.DiskPercent
		health.UptimeSeconds = s.UptimeSeconds
	}
	return health
}

func sampleHost(ctx context.Context, diskPath string) (hostSample, error) {
	var s hostSample

	percents, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
	if err != nil {
		return s, err
	}
	if len(percents) > 0 {
		s.CPUPercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return s, err
	}
	s.MemoryPercent = vm.UsedPercent

	usage, err := disk.UsageWithContext(ctx, diskPath)
	if err != nil {
		return s, err
	}
	s.DiskPercent = usage.UsedPercent

	s.UptimeSeconds, err = host.UptimeWithContext(ctx)
	return s, err
}
