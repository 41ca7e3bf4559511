// Package health probes upstream reachability. Probes are direct pings that
// bypass the circuit breakers: the status surface must observe an upstream's
// recovery before the breaker's reset window admits live traffic again.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/vasanthk84/oi-analyzer/models"
	"github.com/vasanthk84/oi-analyzer/services/upstreams"
	"go.uber.org/zap"
)

const defaultProbeTimeout = 2 * time.Second

// Monitor probes the registered upstreams and keeps the last result per
// upstream so status surfaces can answer without re-probing.
type Monitor struct {
	registry *upstreams.Registry
	logger   *zap.Logger
	timeout  time.Duration

	mu   sync.RWMutex
	last map[string]models.UpstreamStatus
}

// NewMonitor creates a monitor over the registry. Each probe is bounded by
// timeout independently; zero selects the 2s default.
func NewMonitor(registry *upstreams.Registry, logger *zap.Logger, timeout time.Duration) *Monitor {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}

	return &Monitor{
		registry: registry,
		logger:   logger,
		timeout:  timeout,
		last:     make(map[string]models.UpstreamStatus),
	}
}

// Probe pings one upstream by name
func (m *Monitor) Probe(ctx context.Context, name string) (models.UpstreamStatus, error) {
	client, err := m.registry.Get(name)
	if err != nil {
		return models.UpstreamStatus{}, err
	}

	status := m.probe(ctx, client)
	m.remember(status)
	return status, nil
}

// ProbeAll pings every registered upstream concurrently, in registration
// order, each under its own timeout. A hung upstream delays the result by at
// most the probe timeout and never hides the others.
func (m *Monitor) ProbeAll(ctx context.Context) []models.UpstreamStatus {
	clients := m.registry.All()
	statuses := make([]models.UpstreamStatus, len(clients))

	var wg sync.WaitGroup
	for i, client := range clients {
		wg.Add(1)
		go func(i int, client upstreams.Client) {
			defer wg.Done()
			statuses[i] = m.probe(ctx, client)
		}(i, client)
	}
	wg.Wait()

	for _, status := range statuses {
		m.remember(status)
	}
	return statuses
}

// Ready reports whether the gateway can serve traffic: true when at least
// one enabled upstream answers its probe.
func (m *Monitor) Ready(ctx context.Context) (bool, []models.UpstreamStatus) {
	statuses := m.ProbeAll(ctx)
	for _, status := range statuses {
		if status.Available {
			return true, statuses
		}
	}
	return false, statuses
}

// LastKnown returns the most recent probe result per upstream, in
// registration order. Upstreams never probed are omitted.
func (m *Monitor) LastKnown() []models.UpstreamStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]models.UpstreamStatus, 0, len(m.last))
	for _, name := range m.registry.Names() {
		if status, ok := m.last[name]; ok {
			statuses = append(statuses, status)
		}
	}
	return statuses
}

// StartProbeWorker probes all upstreams on the interval until stopCh closes.
// Run it in its own goroutine.
func (m *Monitor) StartProbeWorker(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("started upstream probe worker", zap.Duration("interval", interval))

	for {
		select {
		case <-ticker.C:
			for _, status := range m.ProbeAll(context.Background()) {
				if !status.Available {
					m.logger.Warn("upstream probe failed",
						zap.String("upstream", status.Name),
						zap.String("error", status.Error))
				}
			}
		case <-stopCh:
			m.logger.Info("stopping upstream probe worker")
			return
		}
	}
}

func (m *Monitor) probe(ctx context.Context, client upstreams.Client) models.UpstreamStatus {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	err := client.Ping(probeCtx)
	latency := time.Since(start)

	status := models.UpstreamStatus{
		Name:      client.Name(),
		Available: err == nil,
		LatencyMs: latency.Milliseconds(),
		CheckedAt: time.Now(),
	}
	if err != nil {
		status.Error = err.Error()
	}

	return status
}

func (m *Monitor) remember(status models.UpstreamStatus) {
	m.mu.Lock()
	m.last[status.Name] = status
	m.mu.Unlock()
}
