package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMalformedInput marks a candle series that violates the caller contract.
var ErrMalformedInput = errors.New("malformed input")

// OHLCV represents a single daily candlestick bar.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// CandleSeries holds the daily bars of one symbol, oldest first.
type CandleSeries struct {
	Symbol string
	Bars   []OHLCV
}

// Len returns the number of bars.
func (s *CandleSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Closes projects the close prices, index-aligned with Bars.
func (s *CandleSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Volumes projects the volumes, index-aligned with Bars.
func (s *CandleSeries) Volumes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Volume
	}
	return out
}

// Last returns the most recent bar. The series must not be empty.
func (s *CandleSeries) Last() OHLCV {
	return s.Bars[len(s.Bars)-1]
}

// Validate checks ordering and numeric sanity of every bar.
func (s *CandleSeries) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil series", ErrMalformedInput)
	}
	for i, b := range s.Bars {
		for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return fmt.Errorf("%w: %s bar %d has invalid value %v", ErrMalformedInput, s.Symbol, i, v)
			}
		}
		if i > 0 && !b.Time.After(s.Bars[i-1].Time) {
			return fmt.Errorf("%w: %s bar %d at %s is not after %s", ErrMalformedInput, s.Symbol, i,
				b.Time.Format("2006-01-02"), s.Bars[i-1].Time.Format("2006-01-02"))
		}
	}
	return nil
}
