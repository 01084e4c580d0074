package database

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/core/config"
	pkgError "github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/error"
	"gorm.io/gorm"
)

// ErrNoPool is returned when no pool could be opened at all.
var ErrNoPool = errors.New("database pool not available")

// Opener builds a fresh pool. It is called once at start and again every
// time the current pool is judged unhealthy.
type Opener func() (*gorm.DB, error)

// Settings controls timeouts and the retry policy of a Client.
type Settings struct {
	QueryTimeout time.Duration
	ProbeTimeout time.Duration
	SlowQuery    time.Duration
	MaxRetries   int
	BackoffUnit  time.Duration
}

func SettingsFromConfig(cfg config.DatabaseConfig) Settings {
	return Settings{
		QueryTimeout: cfg.QueryTimeout,
		ProbeTimeout: cfg.ProbeTimeout,
		SlowQuery:    cfg.SlowQuery,
		MaxRetries:   cfg.MaxRetries,
		BackoffUnit:  cfg.RetryBackoffUnit,
	}
}

func (s Settings) withDefaults() Settings {
	if s.QueryTimeout <= 0 {
		s.QueryTimeout = 10 * time.Second
	}
	if s.ProbeTimeout <= 0 {
		s.ProbeTimeout = 2 * time.Second
	}
	if s.SlowQuery <= 0 {
		s.SlowQuery = time.Second
	}
	if s.MaxRetries < 0 {
		s.MaxRetries = 0
	}
	if s.BackoffUnit <= 0 {
		s.BackoffUnit = 500 * time.Millisecond
	}
	return s
}

// PoolStats is a snapshot of the current pool occupancy.
type PoolStats struct {
	Open        int   `json:"open"`
	InUse       int   `json:"in_use"`
	Idle        int   `json:"idle"`
	WaitCount   int64 `json:"wait_count"`
	WaitMs      int64 `json:"wait_ms"`
	Recreations int64 `json:"recreations"`
}

// Client is the process-wide data access entry point. The underlying pool
// can be swapped at any time; callers never hold on to a *gorm.DB beyond a
// single Do callback.
type Client struct {
	current     atomic.Pointer[gorm.DB]
	open        Opener
	settings    Settings
	recreations atomic.Int64
}

// NewClient opens the configured database and wraps it in a resilient Client.
func NewClient(cfg config.DatabaseConfig) (*Client, error) {
	return NewClientWithOpener(func() (*gorm.DB, error) { return Open(cfg) }, SettingsFromConfig(cfg))
}

func NewClientWithOpener(open Opener, settings Settings) (*Client, error) {
	c := &Client{open: open, settings: settings.withDefaults()}
	db, err := open()
	if err != nil {
		return nil, err
	}
	c.current.Store(db)
	return c, nil
}

// DB returns the current pool. Intended for schema migrations and wiring;
// request paths should go through Do.
func (c *Client) DB() *gorm.DB {
	return c.current.Load()
}

// Do runs fn against the current pool with a per-attempt timeout. Transient
// failures are retried up to MaxRetries times with a linear backoff of
// attempt x BackoffUnit. Before each retry the pool is probed and replaced
// if the probe fails or the previous error was connection-class.
func (c *Client) Do(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	var lastErr error
	for attempt := 0; attempt <= c.settings.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, time.Duration(attempt)*c.settings.BackoffUnit); err != nil {
				return lastErr
			}
			if probeErr := c.Probe(ctx); probeErr != nil || IsConnectionError(lastErr) {
				c.recreate(op, probeErr, lastErr)
			}
		}

		db := c.current.Load()
		if db == nil {
			c.recreate(op, ErrNoPool, lastErr)
			if db = c.current.Load(); db == nil {
				lastErr = ErrNoPool
				continue
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.settings.QueryTimeout)
		start := time.Now()
		err := fn(db.WithContext(attemptCtx))
		elapsed := time.Since(start)
		cancel()

		c.observe(op, db, attempt, elapsed, err)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil || !IsRetryable(err) {
			return err
		}
		if attempt < c.settings.MaxRetries {
			logrus.WithFields(logrus.Fields{
				"op":      op,
				"attempt": attempt + 1,
			}).WithError(err).Warn("[DB] transient failure, retrying")
		}
	}
	return &pkgError.TransientInfraError{Op: op, Err: lastErr}
}

// Probe runs a lightweight health query against the current pool.
func (c *Client) Probe(ctx context.Context) error {
	db := c.current.Load()
	if db == nil {
		return ErrNoPool
	}
	probeCtx, cancel := context.WithTimeout(ctx, c.settings.ProbeTimeout)
	defer cancel()
	return db.WithContext(probeCtx).Exec("SELECT 1").Error
}

// Stats returns the occupancy of the current pool.
func (c *Client) Stats() PoolStats {
	stats := PoolStats{Recreations: c.recreations.Load()}
	db := c.current.Load()
	if db == nil {
		return stats
	}
	sqlDB, err := db.DB()
	if err != nil {
		return stats
	}
	s := sqlDB.Stats()
	stats.Open = s.OpenConnections
	stats.InUse = s.InUse
	stats.Idle = s.Idle
	stats.WaitCount = s.WaitCount
	stats.WaitMs = s.WaitDuration.Milliseconds()
	return stats
}

// Close releases the current pool.
func (c *Client) Close() error {
	db := c.current.Swap(nil)
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// recreate swaps in a fresh pool. Concurrent callers may each open one;
// the last swap wins and every replaced pool is closed on its own after
// in-flight work had time to finish.
func (c *Client) recreate(op string, probeErr, cause error) {
	fresh, err := c.open()
	if err != nil {
		logrus.WithField("op", op).WithError(err).Error("[DB] failed to recreate connection pool")
		return
	}
	old := c.current.Swap(fresh)
	c.recreations.Add(1)

	entry := logrus.WithField("op", op)
	if probeErr != nil {
		entry = entry.WithField("probe_error", probeErr.Error())
	}
	if cause != nil {
		entry = entry.WithField("cause", cause.Error())
	}
	entry.Warn("[DB] connection pool recreated")

	if old != nil {
		grace := c.settings.QueryTimeout
		time.AfterFunc(grace, func() {
			if sqlDB, err := old.DB(); err == nil {
				_ = sqlDB.Close()
			}
		})
	}
}

func (c *Client) observe(op string, db *gorm.DB, attempt int, elapsed time.Duration, err error) {
	fields := logrus.Fields{
		"op":          op,
		"attempt":     attempt + 1,
		"duration_ms": elapsed.Milliseconds(),
	}
	if sqlDB, dbErr := db.DB(); dbErr == nil {
		s := sqlDB.Stats()
		fields["pool_open"] = s.OpenConnections
		fields["pool_active"] = s.InUse
		fields["pool_idle"] = s.Idle
		fields["pool_waiting"] = s.WaitCount
	}
	entry := logrus.WithFields(fields)
	if err != nil {
		entry = entry.WithError(err)
	}
	if elapsed >= c.settings.SlowQuery {
		entry.Warn("[DB] slow query")
		return
	}
	entry.Debug("[DB] query")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
