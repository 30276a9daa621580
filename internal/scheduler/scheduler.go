package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"CrossSentinel/internal/notifier"
	"CrossSentinel/internal/runner"
)

// Scheduler runs the batch on a cron schedule and answers bot commands.
type Scheduler struct {
	cron    *cron.Cron
	runner  *runner.Runner
	symbols []string
	log     logrus.FieldLogger
	ctx     context.Context
	running atomic.Bool
}

// NewScheduler creates a new Scheduler. Overlapping cron runs are skipped.
func NewScheduler(ctx context.Context, r *runner.Runner, symbols []string, log logrus.FieldLogger) *Scheduler {
	log = log.WithField("component", "scheduler")
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log))),
		),
		runner:  r,
		symbols: symbols,
		log:     log,
		ctx:     ctx,
	}
}

// Register adds the batch task on the given cron spec (seconds field first).
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() { s.RunNow() }); err != nil {
		return fmt.Errorf("register batch task: %w", err)
	}
	s.log.WithField("cron", spec).Info("batch task registered")
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for a running batch to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunNow executes the batch immediately. It returns nil without running
// when another batch is still in progress.
func (s *Scheduler) RunNow() *runner.Report {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("batch already running, skipped")
		return nil
	}
	defer s.running.Store(false)
	return s.runner.Run(s.ctx, s.symbols)
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	// Telegram appends the bot name in groups: /run@CrossSentinelBot
	name, _, _ := strings.Cut(fields[0], "@")

	switch strings.ToLower(name) {
	case "/run":
		report := s.RunNow()
		if report == nil {
			return "⏳ Ya hay un análisis en curso."
		}
		return formatSummary(report)
	case "/analyze":
		if len(fields) < 2 {
			return "Uso: /analyze SYMBOL"
		}
		return s.analyze(ctx, strings.ToUpper(fields[1]))
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) analyze(ctx context.Context, symbol string) string {
	o := s.runner.Analyze(ctx, symbol)
	switch o.Status {
	case runner.StatusOK:
		return notifier.FormatAnalysis(o.Result)
	case runner.StatusSkipped:
		return fmt.Sprintf("⚠️ %s: sin datos suficientes (%v)", symbol, o.Err)
	default:
		return fmt.Sprintf("❌ %s: error al analizar (%v)", symbol, o.Err)
	}
}

func formatSummary(r *runner.Report) string {
	return fmt.Sprintf("📊 Análisis completado: %d activos, %d señales, %d omitidos, %d errores.",
		len(r.Outcomes), len(r.Signals()), r.Count(runner.StatusSkipped), r.Count(runner.StatusFailed))
}
