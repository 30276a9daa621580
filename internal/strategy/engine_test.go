package strategy

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"CrossSentinel/internal/calculator"
	"CrossSentinel/internal/model"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func seriesFrom(symbol string, closes, volumes []float64) *model.CandleSeries {
	bars := make([]model.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = model.OHLCV{
			Time:   day0.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: volumes[i],
		}
	}
	return &model.CandleSeries{Symbol: symbol, Bars: bars}
}

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// crossoverCloses builds 209 closes whose SMA50 sits below SMA200 at the
// last bar. A low outlier at index 159 leaves the SMA50 window on the next
// bar, so appending a close near 100 produces a golden cross.
func crossoverCloses() []float64 {
	closes := flat(159, 100)
	closes = append(closes, 90)
	for k := 0; k < 49; k++ {
		c := 100.0 - 0.001*float64(k)
		if k%2 == 0 {
			c += 0.5
		} else {
			c -= 0.5
		}
		closes = append(closes, c)
	}
	return closes
}

// withRSI appends a final close chosen by bisection so that RSI(14) at the
// last bar equals target.
func withRSI(t *testing.T, closes []float64, target float64) []float64 {
	t.Helper()
	last := closes[len(closes)-1]
	lo, hi := last-20, last+20
	buf := append(append([]float64(nil), closes...), 0)
	for i := 0; i < 200; i++ {
		mid := (lo + hi) / 2
		buf[len(buf)-1] = mid
		rsi, err := calculator.RSI(buf, calculator.DefaultRSIWindow)
		if err != nil {
			t.Fatalf("rsi: %v", err)
		}
		v, _ := rsi.Last()
		if v < target {
			lo = mid
		} else {
			hi = mid
		}
	}
	buf[len(buf)-1] = (lo + hi) / 2
	return buf
}

func mirror(closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i, c := range closes {
		out[i] = 200 - c
	}
	return out
}

// participationVolumes returns n volumes where the last is 1.5x its own
// 10-bar average: (9*1700 + 2700) / 10 = 1800, 2700 / 1800 = 1.5.
func participationVolumes(n int) []float64 {
	v := flat(n, 1700)
	v[n-1] = 2700
	return v
}

func TestEvaluate_InsufficientHistory(t *testing.T) {
	for _, n := range []int{0, 1, 50, 200} {
		s := seriesFrom("NEW", flat(n, 100), flat(n, 1000))
		res, err := Evaluate(s)
		if !IsInsufficient(err) {
			t.Errorf("n=%d: expected insufficient data, got res=%v err=%v", n, res, err)
		}
	}
}

func TestEvaluate_FlatSeriesHasNoSignal(t *testing.T) {
	s := seriesFrom("FLAT", flat(250, 100), flat(250, 1000))
	res, err := Evaluate(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != model.SignalNone {
		t.Errorf("expected no signal, got %s", res.Kind)
	}
	if res.Details.GoldenCross || res.Details.DeathCross {
		t.Errorf("flat series cannot cross: %+v", res.Details)
	}
	if res.Details.LastSMA50 != 100 || res.Details.LastSMA200 != 100 {
		t.Errorf("expected both averages at 100, got %+v", res.Details)
	}
	if res.Details.LastRSI != 100 {
		t.Errorf("flat series has no losses, RSI should be 100, got %.4f", res.Details.LastRSI)
	}
}

func TestEvaluate_GoldenCrossBuy(t *testing.T) {
	closes := withRSI(t, crossoverCloses(), 62)
	if len(closes) != 210 {
		t.Fatalf("expected 210 bars, got %d", len(closes))
	}
	s := seriesFrom("ACME", closes, participationVolumes(len(closes)))

	res, err := Evaluate(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != model.SignalBuy {
		t.Fatalf("expected BUY, got %s (%+v)", res.Kind, res.Details)
	}
	d := res.Details
	if !d.GoldenCross || d.DeathCross {
		t.Errorf("expected golden cross only, got %+v", d)
	}
	if math.Abs(d.LastRSI-62) > 1e-6 {
		t.Errorf("expected RSI 62, got %.6f", d.LastRSI)
	}
	if math.Abs(d.LastVolume/d.LastAvgVolume-1.5) > 1e-9 {
		t.Errorf("expected volume 1.5x average, got %.0f vs %.0f", d.LastVolume, d.LastAvgVolume)
	}
	for _, want := range []string{"Golden Cross", "RSI (62.00) > 50", "Volume > Avg. Volume"} {
		if !strings.Contains(res.Reason, want) {
			t.Errorf("reason %q does not mention %q", res.Reason, want)
		}
	}
	if res.Symbol != "ACME" || res.Price != closes[209] || !res.Date.Equal(day0.AddDate(0, 0, 209)) {
		t.Errorf("unexpected reference fields: %s %.4f %s", res.Symbol, res.Price, res.Date)
	}
}

func TestEvaluate_GoldenCrossWeakMomentum(t *testing.T) {
	closes := withRSI(t, crossoverCloses(), 45)
	s := seriesFrom("ACME", closes, participationVolumes(len(closes)))

	res, err := Evaluate(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Details.GoldenCross {
		t.Fatalf("fixture should still cross: %+v", res.Details)
	}
	if res.Kind != model.SignalNone {
		t.Errorf("expected no signal with RSI 45, got %s", res.Kind)
	}
	if math.Abs(res.Details.LastRSI-45) > 1e-6 {
		t.Errorf("expected RSI 45, got %.6f", res.Details.LastRSI)
	}
	if res.Reason == "" || strings.Contains(res.Reason, "Golden Cross") {
		t.Errorf("unexpected reason for no-signal: %q", res.Reason)
	}
}

func TestEvaluate_GoldenCrossQuietVolume(t *testing.T) {
	closes := withRSI(t, crossoverCloses(), 62)
	s := seriesFrom("ACME", closes, flat(len(closes), 1700))

	res, err := Evaluate(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != model.SignalNone {
		t.Errorf("volume equal to its average must not confirm, got %s", res.Kind)
	}
}

func TestEvaluate_DeathCrossSell(t *testing.T) {
	closes := mirror(withRSI(t, crossoverCloses(), 62))
	s := seriesFrom("ACME", closes, participationVolumes(len(closes)))

	res, err := Evaluate(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != model.SignalSell {
		t.Fatalf("expected SELL, got %s (%+v)", res.Kind, res.Details)
	}
	if !res.Details.DeathCross || res.Details.GoldenCross {
		t.Errorf("expected death cross only, got %+v", res.Details)
	}
	if math.Abs(res.Details.LastRSI-38) > 1e-6 {
		t.Errorf("mirrored RSI should be 38, got %.6f", res.Details.LastRSI)
	}
	if !strings.Contains(res.Reason, "Death Cross") || !strings.Contains(res.Reason, "< 50") {
		t.Errorf("unexpected reason %q", res.Reason)
	}
}

func TestEvaluate_ConfigurableThreshold(t *testing.T) {
	closes := withRSI(t, crossoverCloses(), 62)
	s := seriesFrom("ACME", closes, participationVolumes(len(closes)))

	p := DefaultParams()
	p.MomentumThreshold = 65
	res, err := NewEvaluator(p).Evaluate(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != model.SignalNone {
		t.Errorf("RSI 62 should not clear a threshold of 65, got %s", res.Kind)
	}
}

func TestEvaluate_UndefinedAtBoundary(t *testing.T) {
	// Every series is computable, but the fast average is not yet defined
	// on the previous bar.
	p := Params{FastWindow: 4, SlowWindow: 3, RSIWindow: 3, VolumeWindow: 4, MomentumThreshold: 50}
	s := seriesFrom("EDGE", []float64{1, 2, 3, 4}, []float64{1, 1, 1, 1})
	if _, err := NewEvaluator(p).Evaluate(s); !IsInsufficient(err) {
		t.Errorf("expected insufficient data, got %v", err)
	}
}

func TestEvaluate_MalformedInput(t *testing.T) {
	s := seriesFrom("BAD", flat(250, 100), flat(250, 1000))
	s.Bars[120].Close = math.NaN()
	if _, err := Evaluate(s); !errors.Is(err, model.ErrMalformedInput) {
		t.Errorf("expected malformed input for NaN close, got %v", err)
	}

	s = seriesFrom("BAD", flat(250, 100), flat(250, 1000))
	s.Bars[10].Time = s.Bars[9].Time
	_, err := Evaluate(s)
	if !errors.Is(err, model.ErrMalformedInput) {
		t.Errorf("expected malformed input for duplicate timestamp, got %v", err)
	}
	if IsInsufficient(err) {
		t.Error("malformed input must be distinct from insufficient data")
	}
}

func TestCrossovers_MutuallyExclusive(t *testing.T) {
	tests := []struct {
		name                               string
		prevFast, prevSlow, lastFast, last float64
		golden, death                      bool
	}{
		{"cross up", 9, 10, 11, 10, true, false},
		{"touch then above", 10, 10, 11, 10, true, false},
		{"cross down", 11, 10, 9, 10, false, true},
		{"touch then below", 10, 10, 9, 10, false, true},
		{"stay above", 11, 10, 12, 10, false, false},
		{"stay below", 9, 10, 8, 10, false, false},
		{"equal both bars", 10, 10, 10, 10, false, false},
		{"above to equal", 11, 10, 10, 10, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, d := crossovers(tt.prevFast, tt.prevSlow, tt.lastFast, tt.last)
			if g != tt.golden || d != tt.death {
				t.Errorf("got golden=%v death=%v, want %v %v", g, d, tt.golden, tt.death)
			}
		})
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10000; i++ {
		v := func() float64 { return float64(rng.Intn(5)) }
		if g, d := crossovers(v(), v(), v(), v()); g && d {
			t.Fatal("golden and death cross reported together")
		}
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name string
		d    model.SignalDetails
		want model.SignalKind
	}{
		{"buy", model.SignalDetails{GoldenCross: true, LastRSI: 62, LastVolume: 150, LastAvgVolume: 100}, model.SignalBuy},
		{"buy weak rsi", model.SignalDetails{GoldenCross: true, LastRSI: 45, LastVolume: 150, LastAvgVolume: 100}, model.SignalNone},
		{"buy rsi at threshold", model.SignalDetails{GoldenCross: true, LastRSI: 50, LastVolume: 150, LastAvgVolume: 100}, model.SignalNone},
		{"buy low volume", model.SignalDetails{GoldenCross: true, LastRSI: 62, LastVolume: 90, LastAvgVolume: 100}, model.SignalNone},
		{"sell", model.SignalDetails{DeathCross: true, LastRSI: 40, LastVolume: 150, LastAvgVolume: 100}, model.SignalSell},
		{"sell strong rsi", model.SignalDetails{DeathCross: true, LastRSI: 55, LastVolume: 150, LastAvgVolume: 100}, model.SignalNone},
		{"sell equal volume", model.SignalDetails{DeathCross: true, LastRSI: 40, LastVolume: 100, LastAvgVolume: 100}, model.SignalNone},
		{"no cross", model.SignalDetails{LastRSI: 80, LastVolume: 500, LastAvgVolume: 100}, model.SignalNone},
	}
	for _, tt := range tests {
		if got := decide(tt.d, 50); got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestEvaluate_ConcurrentUse(t *testing.T) {
	closes := withRSI(t, crossoverCloses(), 62)
	s := seriesFrom("ACME", closes, participationVolumes(len(closes)))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := Evaluate(s)
			if err != nil {
				errs <- err
				return
			}
			if res.Kind != model.SignalBuy {
				errs <- errors.New("expected BUY from concurrent evaluation")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
