// Package normalize maps each upstream's native positions payload into the
// canonical models.Position shape. The analytics backend and the executor
// backend disagree on key names (tradingsymbol vs tradingSymbol/symbol, qty
// vs quantity, avg vs average_price, ltp vs last_price) and on their
// reported P&L, so all field mapping lives here in one table and MTM is
// recomputed locally rather than read off the wire.
//
// Every conversion is pure and total: missing fields fall back through an
// ordered list of alternate keys and then to zero values, and the result is
// always a well-formed Position, never an error.
package normalize

import (
	"github.com/vasanthk84/oi-analyzer/models"
)

// AnalyticsPosition is the raw position shape served by the analytics
// backend's GET /positions. Kite-convention keys, one name per field.
type AnalyticsPosition struct {
	Tradingsymbol string  `json:"tradingsymbol"`
	Quantity      float64 `json:"quantity"`
	AveragePrice  float64 `json:"average_price"`
	LastPrice     float64 `json:"last_price"`
	PnL           float64 `json:"pnl"`
	Product       string  `json:"product"`
	Exchange      string  `json:"exchange"`
}

// ExecutorPosition is the raw position shape served by the executor
// backend's GET /api/positions. The executor has shipped two generations of
// key names, so every field is a pointer pair resolved in order.
type ExecutorPosition struct {
	TradingSymbol *string  `json:"tradingSymbol"`
	Symbol        *string  `json:"symbol"`
	Qty           *float64 `json:"qty"`
	Quantity      *float64 `json:"quantity"`
	Avg           *float64 `json:"avg"`
	AveragePrice  *float64 `json:"average_price"`
	LTP           *float64 `json:"ltp"`
	LastPrice     *float64 `json:"last_price"`
	PnL           *float64 `json:"pnl"`
	Product       string   `json:"product"`
	Exchange      string   `json:"exchange"`
}

// MTM computes mark-to-market P&L from fills. Always used instead of the
// upstream pnl field: the two backends have been observed to disagree on
// realized vs unrealized accounting, so the wire value is ignored.
func MTM(quantity, averagePrice, lastPrice float64) float64 {
	return (lastPrice - averagePrice) * quantity
}

// PositionFromAnalytics converts a single analytics-shaped position.
func PositionFromAnalytics(raw AnalyticsPosition) models.Position {
	return models.Position{
		Symbol:       raw.Tradingsymbol,
		Quantity:     raw.Quantity,
		AveragePrice: raw.AveragePrice,
		LastPrice:    raw.LastPrice,
		MTM:          MTM(raw.Quantity, raw.AveragePrice, raw.LastPrice),
		Product:      raw.Product,
		Exchange:     raw.Exchange,
		Status:       statusFor(raw.Quantity),
	}
}

// PositionFromExecutor converts a single executor-shaped position, resolving
// each alternate key pair in its documented order.
func PositionFromExecutor(raw ExecutorPosition) models.Position {
	quantity := firstFloat(raw.Qty, raw.Quantity)
	averagePrice := firstFloat(raw.Avg, raw.AveragePrice)
	lastPrice := firstFloat(raw.LTP, raw.LastPrice)

	return models.Position{
		Symbol:       firstString(raw.TradingSymbol, raw.Symbol),
		Quantity:     quantity,
		AveragePrice: averagePrice,
		LastPrice:    lastPrice,
		MTM:          MTM(quantity, averagePrice, lastPrice),
		Product:      raw.Product,
		Exchange:     raw.Exchange,
		Status:       statusFor(quantity),
	}
}

// PositionsFromAnalytics converts an analytics positions list. A nil input
// yields an empty, non-nil slice.
func PositionsFromAnalytics(raws []AnalyticsPosition) []models.Position {
	positions := make([]models.Position, 0, len(raws))
	for _, raw := range raws {
		positions = append(positions, PositionFromAnalytics(raw))
	}
	return positions
}

// PositionsFromExecutor converts an executor positions list. A nil input
// yields an empty, non-nil slice.
func PositionsFromExecutor(raws []ExecutorPosition) []models.Position {
	positions := make([]models.Position, 0, len(raws))
	for _, raw := range raws {
		positions = append(positions, PositionFromExecutor(raw))
	}
	return positions
}

func statusFor(quantity float64) models.PositionStatus {
	if quantity == 0 {
		return models.PositionStatusClosed
	}
	return models.PositionStatusOpen
}

// firstString returns the first non-nil, non-empty candidate, else "".
func firstString(candidates ...*string) string {
	for _, c := range candidates {
		if c != nil && *c != "" {
			return *c
		}
	}
	return ""
}

// firstFloat returns the first non-nil candidate, else 0.
func firstFloat(candidates ...*float64) float64 {
	for _, c := range candidates {
		if c != nil {
			return *c
		}
	}
	return 0
}
