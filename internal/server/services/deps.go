// Package services contains server-side business logic: the operations
// exposed over HTTP, each run as one or more units of work over the
// ledger, quota and cash-flow repositories.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/campusvault/internal/common"
	"github.com/dmitrijs2005/campusvault/internal/logging"
	"github.com/dmitrijs2005/campusvault/internal/server/blob"
	"github.com/dmitrijs2005/campusvault/internal/server/finance"
	"github.com/dmitrijs2005/campusvault/internal/server/gateway"
	"github.com/dmitrijs2005/campusvault/internal/server/ledger"
	"github.com/dmitrijs2005/campusvault/internal/server/notify"
	"github.com/dmitrijs2005/campusvault/internal/server/quota"
	"github.com/dmitrijs2005/campusvault/internal/server/uow"
)

// Deps are the collaborators shared by all services.
type Deps struct {
	Tx       uow.Transactor
	Ledger   *ledger.Ledger
	Quota    *quota.Tracker
	Finance  *finance.Aggregator
	Gateway  gateway.Gateway
	Blobs    blob.Store
	Notifier notify.Notifier
	Log      logging.Logger
	Now      func() time.Time

	// Currency is used for new wallets and when a request names none.
	Currency string
	// CallbackURL is handed to the gateway for charge redirects and
	// transfer notifications.
	CallbackURL string
}

func (d *Deps) defaults() {
	if d.Ledger == nil {
		d.Ledger = ledger.New()
	}
	if d.Quota == nil {
		d.Quota = quota.DefaultTracker()
	}
	if d.Finance == nil {
		d.Finance = finance.NewAggregator()
	}
	if d.Log == nil {
		d.Log = logging.Nop()
	}
	if d.Notifier == nil {
		d.Notifier = notify.NewLogNotifier(d.Log)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Currency == "" {
		d.Currency = "INR"
	}
}

// notifyAfterCommit queues n for delivery once r commits. Failures are
// logged only.
func (d *Deps) notifyAfterCommit(r *uow.Repos, n notify.Notification) {
	r.AfterCommit(func(ctx context.Context) {
		if err := d.Notifier.Notify(ctx, n); err != nil {
			d.Log.Warn(ctx, "notification failed", "user_id", n.UserID, "template", n.Template, "error", err)
		}
	})
}

// reference builds a gateway idempotency key: prefix, timestamp, owner.
func (d *Deps) reference(prefix, owner string) string {
	return fmt.Sprintf("%s-%d-%s", prefix, d.Now().UnixNano(), owner)
}

// outcome converts err into the typed error returned to callers.
func outcome(err error) error {
	if err == nil {
		return nil
	}
	return common.AsError(err)
}
