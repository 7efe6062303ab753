// Package domain holds the shared value types passed between modules.
package domain

import "time"

// Action is the direction of a trade decision.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// RiskMode is the operating posture of the risk engine.
type RiskMode string

const (
	ModeNormal     RiskMode = "NORMAL"
	ModeAggressive RiskMode = "AGGRESSIVE"
	ModeSafety     RiskMode = "SAFETY"
)

// Position is a ledger row: a held asset with its money-weighted entry price.
type Position struct {
	Symbol     string    `json:"symbol"`
	Amount     float64   `json:"amount"`
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
}

// MarketData is a per-symbol snapshot from the market feed.
// A zero-valued MarketData stands in for a symbol whose fetch failed.
type MarketData struct {
	Symbol    string  `json:"symbol" msgpack:"symbol"`
	Price     float64 `json:"price" msgpack:"price"`
	Volume24h float64 `json:"volume_24h" msgpack:"volume_24h"`
	Change24h float64 `json:"change_24h" msgpack:"change_24h"` // percent
}

// MarketContext is the numeric analysis summary fed to the decision oracle.
type MarketContext struct {
	VolatilityScore float64  `json:"volatility_score"`
	VolumeScore     float64  `json:"volume_score"`
	RSI14           *float64 `json:"rsi_14,omitempty"` // nil when history is too short
}

// OracleDecision is the raw verdict returned by the decision oracle
// before risk adjustment.
type OracleDecision struct {
	Action          Action  `json:"action"`
	Confidence      float64 `json:"confidence"`
	PotentialProfit float64 `json:"potential_profit"`
	Reason          string  `json:"reason"`
}

// TradeDecision is a fully formed decision ready for execution.
// Amount is a quote-currency notional; the executor converts it to base
// units at the execution price.
type TradeDecision struct {
	Symbol          string  `json:"symbol"`
	Action          Action  `json:"action"`
	Confidence      float64 `json:"confidence"`
	PotentialProfit float64 `json:"potential_profit"`
	Price           float64 `json:"price"`
	Amount          float64 `json:"amount"`
	Reason          string  `json:"reason"`
}

// RiskAssessment is the outcome of a drawdown evaluation.
// Emergency is true only on the evaluation that performed the
// transition into SAFETY mode.
type RiskAssessment struct {
	Mode            RiskMode `json:"mode"`
	DrawdownPercent float64  `json:"drawdown_percent"`
	Emergency       bool     `json:"emergency"`
}

// RiskReport summarizes portfolio health for logging and the status API.
type RiskReport struct {
	PortfolioValue float64  `json:"portfolio_value"`
	SharpeRatio    float64  `json:"sharpe_ratio"`
	Volatility     float64  `json:"volatility"`
	RiskPositions  []string `json:"risk_positions"` // symbols over the mode ceiling
	MissingData    []string `json:"missing_data"`   // held symbols with no usable price
	Mode           RiskMode `json:"mode"`
}
