// Package uow runs multi-step operations as a single unit of work: every
// write inside it commits together or not at all.
package uow

import (
	"context"

	"github.com/dmitrijs2005/campusvault/internal/server/repositories/cashflow"
	"github.com/dmitrijs2005/campusvault/internal/server/repositories/files"
	"github.com/dmitrijs2005/campusvault/internal/server/repositories/payments"
	"github.com/dmitrijs2005/campusvault/internal/server/repositories/plans"
	"github.com/dmitrijs2005/campusvault/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/campusvault/internal/server/repositories/subscriptions"
	"github.com/dmitrijs2005/campusvault/internal/server/repositories/summary"
	"github.com/dmitrijs2005/campusvault/internal/server/repositories/users"
	"github.com/dmitrijs2005/campusvault/internal/server/repositories/wallets"
)

// Repos is the set of repositories bound to one unit of work.
type Repos struct {
	Users         users.Repository
	RefreshTokens refreshtokens.Repository
	Wallets       wallets.Repository
	Plans         plans.Repository
	Subscriptions subscriptions.Repository
	Files         files.Repository
	Cashflow      cashflow.Repository
	Summary       summary.Repository
	Payments      payments.Repository

	hooks []func(ctx context.Context)
}

// AfterCommit registers fn to run once the unit of work has committed.
// Hooks of aborted attempts are discarded.
func (r *Repos) AfterCommit(fn func(ctx context.Context)) {
	r.hooks = append(r.hooks, fn)
}

// RunHooks runs the registered after-commit hooks in order. Transactor
// implementations call it after a successful commit.
func (r *Repos) RunHooks(ctx context.Context) {
	for _, h := range r.hooks {
		h(ctx)
	}
}

// Func is the body of a unit of work.
type Func func(ctx context.Context, r *Repos) error

// Transactor executes units of work. name identifies the operation in logs.
type Transactor interface {
	Do(ctx context.Context, name string, fn Func) error
}
