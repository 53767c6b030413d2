// Package cashflow persists platform money movements: inflows (purchases,
// wallet funding) and outflows (payouts, withdrawals).
package cashflow

import (
	"context"

	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/shopspring/decimal"
)

type Repository interface {
	InsertInflow(ctx context.Context, in *models.InflowAmount) error
	InsertOutflow(ctx context.Context, out *models.OutflowAmount) error
	GetOutflowByReference(ctx context.Context, reference string) (*models.OutflowAmount, error)

	// TransitionOutflow moves a pending outflow to a terminal status. An
	// outflow that is no longer pending yields common.ErrAlreadyProcessed.
	TransitionOutflow(ctx context.Context, reference string, to models.OutflowStatus) error

	SumInflows(ctx context.Context) (decimal.Decimal, error)
	// SumOutflows excludes failed outflows.
	SumOutflows(ctx context.Context) (decimal.Decimal, error)
}
