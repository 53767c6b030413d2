package uow

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/campusvault/internal/common"
	"github.com/dmitrijs2005/campusvault/internal/dbx"
	"github.com/dmitrijs2005/campusvault/internal/logging"
	"github.com/dmitrijs2005/campusvault/internal/server/repositories/repomanager"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 20 * time.Millisecond
)

// SQLTransactor runs units of work in database transactions, re-running the
// whole unit on optimistic version conflicts and serialization failures.
type SQLTransactor struct {
	db          *sql.DB
	manager     repomanager.RepositoryManager
	logger      logging.Logger
	maxAttempts uint64
	backoff     time.Duration
	txOptions   *sql.TxOptions
}

type Option func(*SQLTransactor)

// WithMaxAttempts bounds how many times a conflicting unit of work runs.
func WithMaxAttempts(n int) Option {
	return func(t *SQLTransactor) {
		if n > 0 {
			t.maxAttempts = uint64(n)
		}
	}
}

// WithBackoff sets the base of the jittered exponential backoff.
func WithBackoff(d time.Duration) Option {
	return func(t *SQLTransactor) {
		if d > 0 {
			t.backoff = d
		}
	}
}

func WithTxOptions(opts *sql.TxOptions) Option {
	return func(t *SQLTransactor) { t.txOptions = opts }
}

func NewSQLTransactor(db *sql.DB, manager repomanager.RepositoryManager, logger logging.Logger, opts ...Option) *SQLTransactor {
	t := &SQLTransactor{
		db:          db,
		manager:     manager,
		logger:      logger.With("module", "uow"),
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *SQLTransactor) bind(tx dbx.DBTX) *Repos {
	return &Repos{
		Users:         t.manager.Users(tx),
		RefreshTokens: t.manager.RefreshTokens(tx),
		Wallets:       t.manager.Wallets(tx),
		Plans:         t.manager.Plans(tx),
		Subscriptions: t.manager.Subscriptions(tx),
		Files:         t.manager.Files(tx),
		Cashflow:      t.manager.Cashflow(tx),
		Summary:       t.manager.Summary(tx),
		Payments:      t.manager.Payments(tx),
	}
}

func (t *SQLTransactor) Do(ctx context.Context, name string, fn Func) error {
	b := retry.WithMaxRetries(t.maxAttempts-1, retry.WithJitterPercent(25, retry.NewExponential(t.backoff)))

	var (
		committed *Repos
		attempt   int
	)
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		t.logger.Debug(ctx, "unit of work started", "op", name, "attempt", attempt)

		var repos *Repos
		err := dbx.WithTx(ctx, t.db, t.txOptions, func(ctx context.Context, tx dbx.DBTX) error {
			repos = t.bind(tx)
			return fn(ctx, repos)
		})
		if err != nil {
			if dbx.IsRetryable(err) {
				t.logger.Debug(ctx, "unit of work conflicted", "op", name, "attempt", attempt, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		committed = repos
		return nil
	})
	if err != nil {
		t.logAbort(ctx, name, attempt, err)
		return err
	}

	t.logger.Debug(ctx, "unit of work committed", "op", name, "attempt", attempt)
	committed.RunHooks(ctx)
	return nil
}

func (t *SQLTransactor) logAbort(ctx context.Context, name string, attempt int, err error) {
	if isExpected(err) {
		t.logger.Debug(ctx, "unit of work aborted", "op", name, "attempt", attempt, "error", err)
		return
	}
	t.logger.Error(ctx, "unit of work aborted", "op", name, "attempt", attempt, "error", err)
}

// isExpected separates business outcomes (insufficient funds, quota, ...)
// from faults worth an error log line.
func isExpected(err error) bool {
	switch common.KindOf(err) {
	case common.KindInternal, common.KindExternalService:
		return errors.Is(err, context.Canceled)
	}
	return true
}
