package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
)

const chartOK = `{"chart":{"result":[{"timestamp":[1700172800,1700000000,1700086400,1700172800],
"indicators":{"quote":[{"open":[12,10,null,12.5],"high":[13,11,null,13.5],"low":[11,9,null,11.5],
"close":[12.2,10.5,null,12.7],"volume":[300,100,null,350]}]}}],"error":null}}`

const chartNotFound = `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`

func newTestYahoo(t *testing.T, h http.HandlerFunc) *YahooFetcher {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	log, _ := test.NewNullLogger()
	return NewYahooFetcher(YahooConfig{
		BaseURL:    srv.URL,
		Timeout:    5 * time.Second,
		RetryCount: 2,
		RetryWait:  time.Millisecond,
	}, log)
}

func TestYahooFetchDailyBars(t *testing.T) {
	var gotPath, gotInterval, gotPeriod1 string
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInterval = r.URL.Query().Get("interval")
		gotPeriod1 = r.URL.Query().Get("period1")
		fmt.Fprint(w, chartOK)
	})

	start := time.Unix(1690000000, 0)
	series, err := f.FetchDailyBars(context.Background(), "AAPL", start, time.Unix(1700200000, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/v8/finance/chart/AAPL" {
		t.Errorf("expected chart path, got %s", gotPath)
	}
	if gotInterval != "1d" || gotPeriod1 != "1690000000" {
		t.Errorf("expected interval=1d period1=1690000000, got %s %s", gotInterval, gotPeriod1)
	}

	// null bar dropped, sorted ascending, duplicated live bar collapsed
	if series.Len() != 2 {
		t.Fatalf("expected 2 bars, got %d", series.Len())
	}
	if series.Bars[0].Close != 10.5 || series.Bars[1].Close != 12.7 {
		t.Errorf("unexpected bars: %+v", series.Bars)
	}
	if series.Bars[1].Volume != 350 {
		t.Errorf("expected later duplicate to win, got volume %v", series.Bars[1].Volume)
	}
	if err := series.Validate(); err != nil {
		t.Errorf("expected valid series, got %v", err)
	}
	if series.Symbol != "AAPL" {
		t.Errorf("expected symbol AAPL, got %s", series.Symbol)
	}
}

func TestYahooSymbolMap(t *testing.T) {
	var gotPath string
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, chartOK)
	})

	if _, err := f.FetchDailyBars(context.Background(), "SPX500", time.Unix(0, 0), time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/v8/finance/chart/^GSPC" {
		t.Errorf("expected mapped ticker, got %s", gotPath)
	}
}

func TestYahooNotFound(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http 404", http.StatusNotFound, chartNotFound},
		{"chart error", http.StatusOK, chartNotFound},
		{"empty result", http.StatusOK, `{"chart":{"result":[],"error":null}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			_, err := f.FetchDailyBars(context.Background(), "NOPE", time.Unix(0, 0), time.Now())
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestYahooUpstreamFailures(t *testing.T) {
	t.Run("server error is retried", func(t *testing.T) {
		var hits int32
		f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := f.FetchDailyBars(context.Background(), "AAPL", time.Unix(0, 0), time.Now())
		if !errors.Is(err, ErrUpstream) {
			t.Errorf("expected ErrUpstream, got %v", err)
		}
		if atomic.LoadInt32(&hits) < 2 {
			t.Errorf("expected retries, got %d requests", hits)
		}
	})

	t.Run("undecodable body", func(t *testing.T) {
		f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "<html>rate limited</html>")
		})
		_, err := f.FetchDailyBars(context.Background(), "AAPL", time.Unix(0, 0), time.Now())
		if !errors.Is(err, ErrUpstream) {
			t.Errorf("expected ErrUpstream, got %v", err)
		}
	})

	t.Run("api error other than not found", func(t *testing.T) {
		f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Bad Request","description":"Invalid input"}}}`)
		})
		_, err := f.FetchDailyBars(context.Background(), "AAPL", time.Unix(0, 0), time.Now())
		if !errors.Is(err, ErrUpstream) || errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrUpstream only, got %v", err)
		}
	})
}

func TestYahooCancelledContext(t *testing.T) {
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartOK)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.FetchDailyBars(ctx, "AAPL", time.Unix(0, 0), time.Now()); err == nil {
		t.Error("expected error for cancelled context")
	}
}
