package model

import "time"

// SignalKind classifies the outcome of an evaluation.
type SignalKind string

const (
	SignalBuy  SignalKind = "BUY"
	SignalSell SignalKind = "SELL"
	SignalNone SignalKind = "NONE"
)

// SignalDetails holds the indicator values the decision was based on.
type SignalDetails struct {
	LastSMA50     float64
	PrevSMA50     float64
	LastSMA200    float64
	PrevSMA200    float64
	LastRSI       float64
	LastVolume    float64
	LastAvgVolume float64
	GoldenCross   bool
	DeathCross    bool
}

// SignalResult is the final output of the strategy engine for one symbol.
type SignalResult struct {
	Symbol  string
	Kind    SignalKind
	Price   float64
	Date    time.Time
	Reason  string
	Details SignalDetails
}

// Fired reports whether the result is a BUY or SELL signal.
func (r *SignalResult) Fired() bool {
	return r != nil && (r.Kind == SignalBuy || r.Kind == SignalSell)
}
