package collector

import (
	"context"
	"errors"
	"time"

	"CrossSentinel/internal/model"
)

var (
	// ErrNotFound is returned when the data source does not know the symbol.
	ErrNotFound = errors.New("symbol not found")
	// ErrUpstream wraps transport and server failures of the data source.
	ErrUpstream = errors.New("upstream unavailable")
)

// Fetcher defines the interface for fetching daily market data.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, symbol string, start, end time.Time) (*model.CandleSeries, error)
	Name() string
}

// Lookback returns the [start, end] window covering the given number of
// years up to now.
func Lookback(now time.Time, years int) (start, end time.Time) {
	return now.AddDate(-years, 0, 0), now
}
