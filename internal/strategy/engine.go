package strategy

import (
	"errors"
	"fmt"

	"CrossSentinel/internal/calculator"
	"CrossSentinel/internal/model"
)

// ErrInsufficientData is returned when the series cannot seat every indicator.
var ErrInsufficientData = calculator.ErrInsufficientData

// IsInsufficient reports whether err means "not enough history".
func IsInsufficient(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

// Params configures the triple-confirmation strategy.
type Params struct {
	FastWindow        int
	SlowWindow        int
	RSIWindow         int
	VolumeWindow      int
	MomentumThreshold float64
}

// DefaultParams returns SMA 50/200, RSI 14, volume 10 and a momentum threshold of 50.
func DefaultParams() Params {
	return Params{
		FastWindow:        50,
		SlowWindow:        200,
		RSIWindow:         calculator.DefaultRSIWindow,
		VolumeWindow:      10,
		MomentumThreshold: 50,
	}
}

// MinBars is the shortest series the strategy can evaluate: the slow
// average plus one bar to compare against.
func (p Params) MinBars() int {
	return p.SlowWindow + 1
}

// Evaluator applies the strategy to candle series. It holds no mutable
// state and is safe for concurrent use.
type Evaluator struct {
	params Params
}

// NewEvaluator creates an Evaluator with the given parameters.
func NewEvaluator(p Params) *Evaluator {
	return &Evaluator{params: p}
}

// Params returns the evaluator's parameters.
func (e *Evaluator) Params() Params { return e.params }

var defaultEvaluator = NewEvaluator(DefaultParams())

// Evaluate runs the strategy with default parameters.
func Evaluate(series *model.CandleSeries) (*model.SignalResult, error) {
	return defaultEvaluator.Evaluate(series)
}

// Evaluate computes the indicators for series and classifies its latest bar.
// It returns ErrInsufficientData when the history is too short and an error
// wrapping model.ErrMalformedInput when the series is invalid.
func (e *Evaluator) Evaluate(series *model.CandleSeries) (*model.SignalResult, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}
	p := e.params
	if series.Len() < p.MinBars() {
		return nil, ErrInsufficientData
	}

	closes := series.Closes()
	volumes := series.Volumes()

	fast, err := calculator.SMA(closes, p.FastWindow)
	if err != nil {
		return nil, fmt.Errorf("sma%d: %w", p.FastWindow, err)
	}
	slow, err := calculator.SMA(closes, p.SlowWindow)
	if err != nil {
		return nil, fmt.Errorf("sma%d: %w", p.SlowWindow, err)
	}
	rsi, err := calculator.RSI(closes, p.RSIWindow)
	if err != nil {
		return nil, fmt.Errorf("rsi%d: %w", p.RSIWindow, err)
	}
	avgVol, err := calculator.AverageVolume(volumes, p.VolumeWindow)
	if err != nil {
		return nil, fmt.Errorf("avg volume%d: %w", p.VolumeWindow, err)
	}

	last := series.Len() - 1
	prev := last - 1

	d, ok := extract(fast, slow, rsi, avgVol, last, prev)
	if !ok {
		return nil, ErrInsufficientData
	}
	d.LastVolume = volumes[last]
	d.GoldenCross, d.DeathCross = crossovers(d.PrevSMA50, d.PrevSMA200, d.LastSMA50, d.LastSMA200)

	bar := series.Last()
	result := &model.SignalResult{
		Symbol:  series.Symbol,
		Kind:    model.SignalNone,
		Price:   bar.Close,
		Date:    bar.Time,
		Reason:  "Strategy conditions not met",
		Details: d,
	}

	switch kind := decide(d, p.MomentumThreshold); kind {
	case model.SignalBuy:
		result.Kind = kind
		result.Reason = fmt.Sprintf("Golden Cross (SMA%d/%d), RSI (%.2f) > %g, Volume > Avg. Volume",
			p.FastWindow, p.SlowWindow, d.LastRSI, p.MomentumThreshold)
	case model.SignalSell:
		result.Kind = kind
		result.Reason = fmt.Sprintf("Death Cross (SMA%d/%d), RSI (%.2f) < %g, Volume > Avg. Volume",
			p.FastWindow, p.SlowWindow, d.LastRSI, p.MomentumThreshold)
	}
	return result, nil
}

// extract reads the latest and previous indicator values. It reports false
// when any of them is undefined.
func extract(fast, slow, rsi, avgVol calculator.Series, last, prev int) (model.SignalDetails, bool) {
	var d model.SignalDetails
	var oks [6]bool
	d.LastSMA50, oks[0] = fast.At(last)
	d.PrevSMA50, oks[1] = fast.At(prev)
	d.LastSMA200, oks[2] = slow.At(last)
	d.PrevSMA200, oks[3] = slow.At(prev)
	d.LastRSI, oks[4] = rsi.At(last)
	d.LastAvgVolume, oks[5] = avgVol.At(last)
	for _, ok := range oks {
		if !ok {
			return d, false
		}
	}
	return d, true
}
