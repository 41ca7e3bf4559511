package models

import "time"

// UpstreamStatus is the probe result for one upstream
type UpstreamStatus struct {
	Name         string    `json:"name"`
	Available    bool      `json:"available"`
	BreakerState string    `json:"breaker_state"`
	LatencyMs    int64     `json:"latency_ms"`
	Error        string    `json:"error,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

// FeatureFlags are the UI-facing feature switches. All execution-side flags
// are gated on the execution-capable upstream being enabled and reachable.
type FeatureFlags struct {
	Analytics          bool `json:"analytics"`
	Execution          bool `json:"execution"`
	PositionManagement bool `json:"position_management"`
	RiskManagement     bool `json:"risk_management"`
	AutoTrading        bool `json:"auto_trading"`
}

// SystemStatus is the full status view: per-upstream availability, the
// currently active routing choice for positions, and the derived feature set.
type SystemStatus struct {
	Upstreams     []UpstreamStatus `json:"upstreams"`
	ActiveRouting string           `json:"active_routing"`
	Features      FeatureFlags     `json:"features"`
	GeneratedAt   time.Time        `json:"generated_at"`
}
