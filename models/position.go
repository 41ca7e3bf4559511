package models

import (
	"time"
)

// PositionStatus represents the lifecycle state of a position
type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "open"
	PositionStatusClosed PositionStatus = "closed"
)

// SnapshotSource identifies which source actually served a positions snapshot
type SnapshotSource string

const (
	SourcePrimary  SnapshotSource = "primary"
	SourceFallback SnapshotSource = "fallback"
	SourceCache    SnapshotSource = "cache"
	SourceNone     SnapshotSource = "none"
)

// Reliability qualifies how trustworthy a snapshot is
type Reliability string

const (
	ReliabilityLive     Reliability = "live"
	ReliabilityDegraded Reliability = "degraded"
	ReliabilityNone     Reliability = "none"
)

// Position is the canonical position record, independent of which upstream
// produced it. Quantity is signed: positive = long, negative = short. MTM is
// always computed locally as (last_price - average_price) * quantity; the
// upstream-reported P&L fields are never trusted because they have been
// observed inconsistent between sources.
type Position struct {
	Symbol       string         `json:"symbol"`
	Quantity     float64        `json:"quantity"`
	AveragePrice float64        `json:"average_price"`
	LastPrice    float64        `json:"last_price"`
	MTM          float64        `json:"mtm"`
	Product      string         `json:"product,omitempty"`
	Exchange     string         `json:"exchange,omitempty"`
	Status       PositionStatus `json:"status"`
	ExitPrice    *float64       `json:"exit_price,omitempty"`
	ClosedAt     *time.Time     `json:"closed_at,omitempty"`
}

// IsShort reports whether the position is a short position
func (p Position) IsShort() bool {
	return p.Quantity < 0
}

// PositionsSnapshot is an ordered set of normalized positions plus the
// metadata callers need to judge it: where it came from, how reliable it is,
// and when it was captured. TotalMTM is always the sum of the constituent
// MTMs — use NewPositionsSnapshot so it can never be supplied independently.
type PositionsSnapshot struct {
	Positions   []Position     `json:"data"`
	TotalMTM    float64        `json:"total_mtm"`
	Source      SnapshotSource `json:"source"`
	Reliability Reliability    `json:"reliability"`
	CapturedAt  time.Time      `json:"captured_at"`
}

// NewPositionsSnapshot builds a snapshot, summing TotalMTM from the positions
func NewPositionsSnapshot(positions []Position, source SnapshotSource, reliability Reliability) PositionsSnapshot {
	if positions == nil {
		positions = []Position{}
	}
	total := 0.0
	for _, p := range positions {
		total += p.MTM
	}
	return PositionsSnapshot{
		Positions:   positions,
		TotalMTM:    total,
		Source:      source,
		Reliability: reliability,
		CapturedAt:  time.Now(),
	}
}

// EmptySnapshot is the explicit "nothing available" result: empty positions,
// zero total, source none. Returned instead of an error shape so the caller
// always has a well-formed snapshot to render.
func EmptySnapshot() PositionsSnapshot {
	return NewPositionsSnapshot(nil, SourceNone, ReliabilityNone)
}

// Age returns how long ago the snapshot was captured
func (s PositionsSnapshot) Age() time.Duration {
	return time.Since(s.CapturedAt)
}

// IsEmpty reports whether the snapshot carries no positions
func (s PositionsSnapshot) IsEmpty() bool {
	return len(s.Positions) == 0
}

// WithSource returns a copy of the snapshot re-tagged with a new source and
// reliability, keeping positions, total and capture time intact. Used when a
// cached snapshot is served as a degraded result.
func (s PositionsSnapshot) WithSource(source SnapshotSource, reliability Reliability) PositionsSnapshot {
	s.Source = source
	s.Reliability = reliability
	return s
}
