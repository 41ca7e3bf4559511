package models

// AnalysisMetrics carries the option-chain aggregates from the analytics upstream
type AnalysisMetrics struct {
	MaxPain    float64 `json:"max_pain"`
	PCR        float64 `json:"pcr"`
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
}

// StrangleIntel is the recommended short strangle derived by the analytics upstream
type StrangleIntel struct {
	RecommendedCall float64 `json:"rec_call"`
	RecommendedPut  float64 `json:"rec_put"`
	EstimatedCredit float64 `json:"est_credit"`
	RangeWidth      float64 `json:"range_width"`
}

// StraddleIntel is the ATM straddle view from the analytics upstream
type StraddleIntel struct {
	ATMStrike      float64 `json:"atm_strike"`
	Cost           float64 `json:"cost"`
	UpperBreakeven float64 `json:"upper_be"`
	LowerBreakeven float64 `json:"lower_be"`
	SafetyPct      float64 `json:"safety_pct"`
}

// ChartData carries the per-strike OI and volume arrays for chart rendering.
// Arrays are index-aligned with Strikes.
type ChartData struct {
	Strikes []float64 `json:"strikes"`
	CallOI  []int64   `json:"ce_oi"`
	PutOI   []int64   `json:"pe_oi"`
	CallVol []int64   `json:"ce_vol"`
	PutVol  []int64   `json:"pe_vol"`
}

// AnalysisReport is the full analytics payload served to the UI. The shape
// mirrors the analytics upstream's /analyze response; the gateway types it at
// the boundary but does not recompute any of the analytics math.
type AnalysisReport struct {
	Timestamp    string          `json:"timestamp"`
	IsMarketOpen bool            `json:"is_market_open"`
	Spot         float64         `json:"nifty_spot"`
	Expiry       string          `json:"expiry"`
	Metrics      AnalysisMetrics `json:"metrics"`
	Strangle     StrangleIntel   `json:"strangle_intel"`
	Straddle     StraddleIntel   `json:"straddle_intel"`
	Chart        ChartData       `json:"chart_data"`
}

// HistoricalEntry is one day of historical analysis context
type HistoricalEntry struct {
	Date     string  `json:"date"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	VIX      float64 `json:"vix,omitempty"`
	DayRange float64 `json:"day_range,omitempty"`
}

// HistoricalAnalysis is the analytics upstream's /historical_analysis payload
type HistoricalAnalysis struct {
	Days    int               `json:"days"`
	Entries []HistoricalEntry `json:"entries"`
}

// OHLCRow is one daily bar pushed to the analytics upstream's OHLC store
type OHLCRow struct {
	Date  string  `json:"date" validate:"required"`
	Open  float64 `json:"open" validate:"required"`
	High  float64 `json:"high" validate:"required"`
	Low   float64 `json:"low" validate:"required"`
	Close float64 `json:"close" validate:"required"`
	VIX   float64 `json:"vix,omitempty"`
}
