// Package payments persists wallet funding transactions tracked through
// the payment gateway.
package payments

import (
	"context"
	"time"

	"github.com/dmitrijs2005/campusvault/internal/server/models"
)

type Repository interface {
	// Create yields common.ErrorAlreadyExists for a reused reference.
	Create(ctx context.Context, p *models.PaymentTransaction) error
	GetByReference(ctx context.Context, reference string) (*models.PaymentTransaction, error)

	// Transition moves a pending transaction to a terminal status exactly
	// once; common.ErrAlreadyProcessed otherwise.
	Transition(ctx context.Context, reference string, to models.PaymentStatus) error

	// ListPendingBefore returns up to limit pending transactions created
	// before the given time, oldest first.
	ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]*models.PaymentTransaction, error)
}
