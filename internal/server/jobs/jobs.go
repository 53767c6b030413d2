package jobs

import (
	"context"
	"time"

	"github.com/dmitrijs2005/campusvault/internal/logging"
	"github.com/dmitrijs2005/campusvault/internal/server/models"
)

type SummaryRefresher interface {
	Refresh(ctx context.Context) (*models.FinancialSummary, error)
}

type PendingReconciler interface {
	ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type TokenPurger interface {
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

// SummaryRefresh recomputes the aggregate from the full cash-flow history,
// repairing any drift left by a failed synchronous recompute.
func SummaryRefresh(spec string, r SummaryRefresher) Job {
	return Job{
		Name:    "summary_refresh",
		Spec:    spec,
		Timeout: time.Minute,
		Run: func(ctx context.Context) error {
			_, err := r.Refresh(ctx)
			return err
		},
	}
}

// Reconcile confirms charges still pending after olderThan.
func Reconcile(spec string, olderThan time.Duration, batch int, r PendingReconciler, l logging.Logger) Job {
	return Job{
		Name:    "reconcile_pending",
		Spec:    spec,
		Timeout: 5 * time.Minute,
		Run: func(ctx context.Context) error {
			n, err := r.ReconcilePending(ctx, olderThan, batch)
			if err != nil {
				return err
			}
			if n > 0 {
				l.Info(ctx, "reconciled pending charges", "settled", n)
			}
			return nil
		},
	}
}

func TokenPurge(spec string, p TokenPurger, l logging.Logger) Job {
	return Job{
		Name:    "purge_refresh_tokens",
		Spec:    spec,
		Timeout: time.Minute,
		Run: func(ctx context.Context) error {
			n, err := p.PurgeExpiredTokens(ctx)
			if err != nil {
				return err
			}
			l.Debug(ctx, "purged refresh tokens", "count", n)
			return nil
		},
	}
}
