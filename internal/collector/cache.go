package collector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"CrossSentinel/internal/model"
)

// CachedFetcher wraps a Fetcher and keeps fetched candles in SQLite so that
// repeated runs within the TTL do not hit the upstream source.
type CachedFetcher struct {
	next Fetcher
	db   *sql.DB
	ttl  time.Duration
	log  logrus.FieldLogger
	mu   sync.Mutex
	now  func() time.Time
}

// NewCachedFetcher opens (or creates) the SQLite database at dbPath and runs migrations.
func NewCachedFetcher(next Fetcher, dbPath string, ttl time.Duration, log logrus.FieldLogger) (*CachedFetcher, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so the analyze command can read while serve writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	c := &CachedFetcher{
		next: next,
		db:   db,
		ttl:  ttl,
		log:  log.WithField("source", "cache"),
		now:  time.Now,
	}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	c.log.WithField("path", dbPath).Info("candle cache opened")
	return c, nil
}

func (c *CachedFetcher) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS candles (
			symbol TEXT    NOT NULL,
			ts     INTEGER NOT NULL,
			open   REAL,
			high   REAL,
			low    REAL,
			close  REAL,
			volume REAL,
			PRIMARY KEY (symbol, ts)
		)`,
		`CREATE TABLE IF NOT EXISTS fetches (
			symbol     TEXT PRIMARY KEY,
			fetched_at INTEGER NOT NULL,
			start_ts   INTEGER NOT NULL,
			end_day    TEXT    NOT NULL
		)`,
	}

	for _, s := range stmts {
		if _, err := c.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:30], err)
		}
	}
	return nil
}

func (c *CachedFetcher) Name() string { return c.next.Name() + "+cache" }

// Close closes the underlying database.
func (c *CachedFetcher) Close() error { return c.db.Close() }

// FetchDailyBars serves the request from the cache when a fetch covering the
// same end day is younger than the TTL, otherwise it asks the wrapped fetcher
// and stores the result. Cache failures never fail the request.
func (c *CachedFetcher) FetchDailyBars(ctx context.Context, symbol string, start, end time.Time) (*model.CandleSeries, error) {
	entry := c.log.WithField("symbol", symbol)

	series, hit, err := c.lookup(ctx, symbol, start, end)
	switch {
	case err != nil:
		entry.WithError(err).Warn("cache lookup failed, fetching upstream")
	case hit:
		entry.WithField("bars", series.Len()).Debug("cache hit")
		return series, nil
	}

	series, err = c.next.FetchDailyBars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if err := c.store(ctx, symbol, series, start, end); err != nil {
		entry.WithError(err).Warn("cache store failed")
	}
	return series, nil
}

func endDay(t time.Time) string { return t.UTC().Format("2006-01-02") }

func (c *CachedFetcher) lookup(ctx context.Context, symbol string, start, end time.Time) (*model.CandleSeries, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var fetchedAt, cachedStart int64
	var day string
	err := c.db.QueryRowContext(ctx,
		`SELECT fetched_at, start_ts, end_day FROM fetches WHERE symbol = ?`, symbol,
	).Scan(&fetchedAt, &cachedStart, &day)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query fetches: %w", err)
	}

	fresh := c.now().Sub(time.Unix(fetchedAt, 0)) < c.ttl
	if !fresh || cachedStart > start.Unix() || day != endDay(end) {
		return nil, false, nil
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT ts, open, high, low, close, volume FROM candles
		 WHERE symbol = ? AND ts >= ? AND ts <= ? ORDER BY ts`,
		symbol, start.Unix(), end.Unix())
	if err != nil {
		return nil, false, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	series := &model.CandleSeries{Symbol: symbol}
	for rows.Next() {
		var ts int64
		var b model.OHLCV
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, false, fmt.Errorf("scan candle: %w", err)
		}
		b.Time = time.Unix(ts, 0).UTC()
		series.Bars = append(series.Bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return series, true, nil
}

func (c *CachedFetcher) store(ctx context.Context, symbol string, series *model.CandleSeries, start, end time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM candles WHERE symbol = ?`, symbol); err != nil {
		return fmt.Errorf("clear candles: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO candles (symbol, ts, open, high, low, close, volume) VALUES (?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range series.Bars {
		if _, err := stmt.ExecContext(ctx, symbol, b.Time.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("insert candle: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO fetches (symbol, fetched_at, start_ts, end_day) VALUES (?,?,?,?)
		 ON CONFLICT(symbol) DO UPDATE SET
		   fetched_at = excluded.fetched_at, start_ts = excluded.start_ts, end_day = excluded.end_day`,
		symbol, c.now().Unix(), start.Unix(), endDay(end)); err != nil {
		return fmt.Errorf("upsert fetch: %w", err)
	}
	return tx.Commit()
}
