package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zoobzio/clockz"

	"github.com/zoobzio/utilz"
)

// Connection defaults.
const (
	DefaultMaxRetries       = 3
	DefaultRetryDelay       = time.Second
	DefaultHealthCheckQuery = "SELECT 1"
)

// Pool is a Querier that can start transactions and be closed.
// *pgxpool.Pool and pgxmock.PgxPoolIface satisfy it.
type Pool interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// ConnectionFactory opens a new pool.
type ConnectionFactory func(ctx context.Context) (Pool, error)

// PoolFactory returns a ConnectionFactory that opens a pgxpool for dsn.
func PoolFactory(dsn string) ConnectionFactory {
	return func(ctx context.Context) (Pool, error) {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return pool, nil
	}
}

// ConnectOptions configures Connect. Zero values select the defaults.
type ConnectOptions struct {
	// Logger records failed attempts. Nothing is logged when nil.
	Logger *slog.Logger
	// Clock drives the retry delay. Defaults to the real clock.
	Clock clockz.Clock
	// HealthCheckQuery runs after each successful open. Defaults to
	// DefaultHealthCheckQuery.
	HealthCheckQuery string
	// MaxRetries is the total number of attempts.
	MaxRetries int
	// RetryDelay is the wait after the first failure. It doubles after
	// every further failure.
	RetryDelay time.Duration
	// SkipHealthCheck disables the health check query.
	SkipHealthCheck bool
}

func (o ConnectOptions) withDefaults() (ConnectOptions, error) {
	if o.MaxRetries < 0 {
		return o, invalidArgument("max_retries must be at least 1, got %d", o.MaxRetries)
	}
	if o.RetryDelay < 0 {
		return o, invalidArgument("retry_delay must be positive, got %s", o.RetryDelay)
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.HealthCheckQuery == "" {
		o.HealthCheckQuery = DefaultHealthCheckQuery
	}
	return o, nil
}

// ManagedConnection owns a healthy pool until Close is called.
type ManagedConnection struct {
	pool   Pool
	logger *slog.Logger
	closed atomic.Bool
}

// Connect opens a pool through factory. Failed opens and failed health checks
// are retried with exponential backoff; after the last attempt the error
// names the attempt count and the last cause.
func Connect(ctx context.Context, factory ConnectionFactory, opts ConnectOptions) (*ManagedConnection, error) {
	if factory == nil {
		return nil, invalidArgument("connection_factory must be callable")
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	logger := loggerOrDiscard(opts.Logger)

	var attempt atomic.Int64
	open := utilz.Apply("open", func(ctx context.Context, _ struct{}) (Pool, error) {
		n := attempt.Add(1)
		pool, err := factory(ctx)
		if err != nil {
			logger.WarnContext(ctx, fmt.Sprintf("Connection attempt %d/%d failed: %v", n, opts.MaxRetries, err))
			return nil, err
		}
		if !opts.SkipHealthCheck {
			if _, err := pool.Exec(ctx, opts.HealthCheckQuery); err != nil {
				logger.WarnContext(ctx, fmt.Sprintf("Health check failed on attempt %d: %v", n, err))
				pool.Close()
				return nil, err
			}
		}
		logger.DebugContext(ctx, fmt.Sprintf("Database connection established on attempt %d", n))
		return pool, nil
	})

	backoff := utilz.NewBackoff("managed-db-connection", open, opts.MaxRetries, opts.RetryDelay)
	if opts.Clock != nil {
		backoff.WithClock(opts.Clock)
	}

	pool, err := backoff.Process(ctx, struct{}{})
	if err != nil {
		cause := err
		var wrapped *utilz.Error[struct{}]
		if errors.As(err, &wrapped) {
			cause = wrapped.Err
		}
		logger.ErrorContext(ctx, fmt.Sprintf("All connection attempts failed. Last error: %v", cause))
		return nil, fmt.Errorf("Failed to establish database connection after %d attempts. Last error: %w", //nolint:stylecheck
			attempt.Load(), cause)
	}
	return &ManagedConnection{pool: pool, logger: logger}, nil
}

// WithConnection connects, runs fn with the pool and always closes it.
func WithConnection(ctx context.Context, factory ConnectionFactory, opts ConnectOptions, fn func(context.Context, Pool) error) error {
	conn, err := Connect(ctx, factory, opts)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, conn.Pool())
}

// Pool returns the underlying pool.
func (m *ManagedConnection) Pool() Pool {
	return m.pool
}

// WithTx runs fn in a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise. A panic in fn rolls the
// transaction back before it propagates.
func (m *ManagedConnection) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				m.logger.ErrorContext(ctx, "rollback failed", "error", rbErr)
			}
			panic(r)
		}
	}()
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			m.logger.ErrorContext(ctx, "rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close closes the pool. Further calls do nothing.
func (m *ManagedConnection) Close() {
	if m.closed.Swap(true) {
		return
	}
	m.pool.Close()
	m.logger.Debug("Connection closed successfully")
}
