package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"CrossSentinel/internal/collector"
	"CrossSentinel/internal/config"
	"CrossSentinel/internal/logging"
	"CrossSentinel/internal/metrics"
	"CrossSentinel/internal/notifier"
	"CrossSentinel/internal/runner"
	"CrossSentinel/internal/strategy"
)

// app holds the wired components shared by all commands.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	telegram *notifier.TelegramNotifier // nil without credentials
	runner   *runner.Runner
	closers  []func() error
}

func newApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(config.ResolvePath(cfgPath))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	log := logging.New(cfg.Log.Level)
	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	fetcher := a.newFetcher()
	log.WithField("source", fetcher.Name()).Info("data source ready")

	var n notifier.Notifier
	if tc := a.telegramConfig(); tc.Enabled() {
		a.telegram = notifier.NewTelegramNotifier(tc, log)
		n = notifier.WithRetry(a.telegram, 3, log)
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID not set, signals will only be logged")
		n = &notifier.LogNotifier{Log: log}
	}

	a.runner = runner.New(runner.Options{
		Fetcher:       fetcher,
		Evaluator:     strategy.NewEvaluator(cfg.StrategyParams()),
		Notifier:      n,
		Metrics:       a.metrics,
		Log:           log,
		Concurrency:   cfg.Runner.Concurrency,
		LookbackYears: cfg.DataSource.LookbackYears,
	})
	return a, nil
}

func (a *app) newFetcher() collector.Fetcher {
	yahoo := collector.NewYahooFetcher(collector.YahooConfig{
		Proxy:             a.cfg.Proxy,
		Timeout:           a.cfg.DataSource.Timeout,
		RequestsPerSecond: a.cfg.DataSource.RequestsPerSecond,
		RetryCount:        3,
	}, a.log)

	path := a.cfg.Cache.SQLitePath
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			a.log.WithError(err).Warn("create cache directory failed, running without cache")
			return yahoo
		}
	}
	cached, err := collector.NewCachedFetcher(yahoo, path, a.cfg.Cache.TTL, a.log)
	if err != nil {
		a.log.WithError(err).Warn("init candle cache failed, running without cache")
		return yahoo
	}
	a.closers = append(a.closers, cached.Close)
	return cached
}

func (a *app) telegramConfig() notifier.TelegramConfig {
	return notifier.TelegramConfig{
		BotToken: a.cfg.Telegram.BotToken,
		ChatID:   a.cfg.Telegram.ChatID,
		Proxy:    a.cfg.Proxy,
	}
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.WithError(err).Warn("close")
		}
	}
}
