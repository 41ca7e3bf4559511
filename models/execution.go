package models

import "time"

// ExecutionProfile selects the risk profile for a strangle order
type ExecutionProfile string

const (
	ProfileConservative ExecutionProfile = "conservative"
	ProfileBalanced     ExecutionProfile = "balanced"
	ProfileAggressive   ExecutionProfile = "aggressive"
)

// ExecutionRequest describes a short strangle to be placed: one call leg and
// one put leg at the given strikes, Quantity per leg.
type ExecutionRequest struct {
	CallStrike float64          `json:"call_strike" validate:"required,gt=0"`
	PutStrike  float64          `json:"put_strike" validate:"required,gt=0"`
	Quantity   int              `json:"quantity" validate:"required,gt=0"`
	Profile    ExecutionProfile `json:"profile,omitempty" validate:"omitempty,oneof=conservative balanced aggressive"`
	AutoTrade  bool             `json:"auto_trade"`
}

// LegOrder is the per-leg outcome of an execution
type LegOrder struct {
	Symbol    string  `json:"symbol"`
	OrderID   string  `json:"order_id"`
	FillPrice float64 `json:"fill_price"`
}

// ExecutionResult is the canonical outcome of an execution-side operation,
// independent of which upstream carried it out.
type ExecutionResult struct {
	Success     bool       `json:"success"`
	Message     string     `json:"message"`
	Orders      []LegOrder `json:"orders,omitempty"`
	ExecutedAt  time.Time  `json:"executed_at"`
	ErrorDetail string     `json:"error_detail,omitempty"`
}

// CloseRequest asks the execution upstream to close (part of) one position
type CloseRequest struct {
	Symbol   string `json:"symbol" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

// CloseAllResult reports a close-all sweep
type CloseAllResult struct {
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	ClosedCount int       `json:"closed_count"`
	ExecutedAt  time.Time `json:"executed_at"`
}
