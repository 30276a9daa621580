package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"CrossSentinel/internal/collector"
	"CrossSentinel/internal/metrics"
	"CrossSentinel/internal/model"
	"CrossSentinel/internal/notifier"
	"CrossSentinel/internal/strategy"
)

// Status classifies the outcome of one symbol in a batch.
type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped" // unknown symbol or too little history
	StatusFailed  Status = "failed"  // upstream or malformed data
)

// Outcome is the per-symbol record of a batch run.
type Outcome struct {
	Symbol string
	Status Status
	Result *model.SignalResult // set when Status is StatusOK
	Err    error               // set otherwise
}

// Report holds the outcomes of a batch in symbol order.
type Report struct {
	Outcomes       []Outcome
	Started        time.Time
	Duration       time.Duration
	NotifyFailures int
}

// Signals returns the firing results in symbol order.
func (r *Report) Signals() []*model.SignalResult {
	var out []*model.SignalResult
	for _, o := range r.Outcomes {
		if o.Status == StatusOK && o.Result.Fired() {
			out = append(out, o.Result)
		}
	}
	return out
}

// Count returns the number of outcomes with the given status.
func (r *Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Err joins the errors of failed outcomes, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			errs = append(errs, fmt.Errorf("%s: %w", o.Symbol, o.Err))
		}
	}
	return errors.Join(errs...)
}

// Options configures a Runner. Notifier and Metrics are optional.
type Options struct {
	Fetcher       collector.Fetcher
	Evaluator     *strategy.Evaluator
	Notifier      notifier.Notifier
	Metrics       *metrics.Metrics
	Log           logrus.FieldLogger
	Concurrency   int
	LookbackYears int
}

// Runner evaluates a symbol universe and notifies firing signals.
type Runner struct {
	fetcher     collector.Fetcher
	evaluator   *strategy.Evaluator
	notifier    notifier.Notifier
	metrics     *metrics.Metrics
	log         logrus.FieldLogger
	concurrency int
	lookback    int
	now         func() time.Time
}

// New creates a Runner.
func New(opts Options) *Runner {
	if opts.Evaluator == nil {
		opts.Evaluator = strategy.NewEvaluator(strategy.DefaultParams())
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.LookbackYears < 1 {
		opts.LookbackYears = 3
	}
	return &Runner{
		fetcher:     opts.Fetcher,
		evaluator:   opts.Evaluator,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		log:         opts.Log,
		concurrency: opts.Concurrency,
		lookback:    opts.LookbackYears,
		now:         time.Now,
	}
}

// Run evaluates every symbol, then sends one notification per firing
// result in symbol order. A failing symbol never stops the batch.
func (r *Runner) Run(ctx context.Context, symbols []string) *Report {
	report := &Report{Started: r.now()}
	r.log.WithFields(logrus.Fields{"symbols": len(symbols), "source": r.fetcher.Name()}).Info("batch started")

	report.Outcomes = r.evaluateAll(ctx, symbols)

	for _, res := range report.Signals() {
		if r.notifier == nil {
			break
		}
		if err := r.notifier.Send(ctx, notifier.FormatSignal(res)); err != nil {
			report.NotifyFailures++
			if r.metrics != nil {
				r.metrics.ObserveNotificationFailure()
			}
			r.log.WithError(err).WithField("symbol", res.Symbol).Error("send notification")
		}
	}

	report.Duration = r.now().Sub(report.Started)
	if r.metrics != nil {
		r.metrics.ObserveBatch(report.Started, report.Duration, report.Count(StatusFailed))
	}
	r.log.WithFields(logrus.Fields{
		"ok":       report.Count(StatusOK),
		"skipped":  report.Count(StatusSkipped),
		"failed":   report.Count(StatusFailed),
		"signals":  len(report.Signals()),
		"duration": report.Duration.Round(time.Millisecond),
	}).Info("batch finished")
	return report
}

// Analyze evaluates a single symbol without notifying.
func (r *Runner) Analyze(ctx context.Context, symbol string) Outcome {
	return r.evaluateAll(ctx, []string{symbol})[0]
}

func (r *Runner) evaluateAll(ctx context.Context, symbols []string) []Outcome {
	outcomes := make([]Outcome, len(symbols))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, symbol := range symbols {
		g.Go(func() error {
			o := r.evaluate(ctx, symbol)
			r.record(o)
			outcomes[i] = o
			return nil
		})
	}
	g.Wait()

	return outcomes
}

func (r *Runner) evaluate(ctx context.Context, symbol string) Outcome {
	start, end := collector.Lookback(r.now(), r.lookback)
	series, err := r.fetcher.FetchDailyBars(ctx, symbol, start, end)
	switch {
	case errors.Is(err, collector.ErrNotFound):
		return Outcome{Symbol: symbol, Status: StatusSkipped, Err: err}
	case err != nil:
		return Outcome{Symbol: symbol, Status: StatusFailed, Err: fmt.Errorf("fetch: %w", err)}
	}

	res, err := r.evaluator.Evaluate(series)
	switch {
	case strategy.IsInsufficient(err):
		return Outcome{Symbol: symbol, Status: StatusSkipped, Err: fmt.Errorf("%d bars: %w", series.Len(), err)}
	case err != nil:
		return Outcome{Symbol: symbol, Status: StatusFailed, Err: fmt.Errorf("evaluate: %w", err)}
	}
	res.Symbol = symbol
	return Outcome{Symbol: symbol, Status: StatusOK, Result: res}
}

func (r *Runner) record(o Outcome) {
	if r.metrics != nil {
		r.metrics.ObserveOutcome(string(o.Status))
		if o.Status == StatusOK && o.Result.Fired() {
			r.metrics.ObserveSignal(string(o.Result.Kind))
		}
	}

	entry := r.log.WithFields(logrus.Fields{"symbol": o.Symbol, "status": o.Status})
	switch o.Status {
	case StatusSkipped:
		entry.WithError(o.Err).Warn("symbol skipped")
	case StatusFailed:
		entry.WithError(o.Err).Error("symbol failed")
	default:
		entry = entry.WithFields(DetailFields(o.Result.Details)).WithField("reason", o.Result.Reason)
		if o.Result.Fired() {
			entry.WithField("kind", o.Result.Kind).Info("signal found")
		} else {
			entry.Info("no signal")
		}
	}
}

// DetailFields flattens the indicator breakdown into log fields.
func DetailFields(d model.SignalDetails) logrus.Fields {
	return logrus.Fields{
		"sma50":        d.LastSMA50,
		"sma50_prev":   d.PrevSMA50,
		"sma200":       d.LastSMA200,
		"sma200_prev":  d.PrevSMA200,
		"rsi":          d.LastRSI,
		"volume":       d.LastVolume,
		"avg_volume":   d.LastAvgVolume,
		"golden_cross": d.GoldenCross,
		"death_cross":  d.DeathCross,
	}
}
