package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/campusvault/internal/dbx"
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

// RepositoryManager vends repositories bound to a DB handle or transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Wallets(db dbx.DBTX) wallets.Repository
	Plans(db dbx.DBTX) plans.Repository
	Subscriptions(db dbx.DBTX) subscriptions.Repository
	Files(db dbx.DBTX) files.Repository
	Cashflow(db dbx.DBTX) cashflow.Repository
	Summary(db dbx.DBTX) summary.Repository
	Payments(db dbx.DBTX) payments.Repository
}
