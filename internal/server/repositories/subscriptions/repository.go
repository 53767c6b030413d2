// Package subscriptions persists storage purchases (quota grants).
package subscriptions

import (
	"context"

	"github.com/dmitrijs2005/campusvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.StoragePurchase) error
	GetByID(ctx context.Context, id string) (*models.StoragePurchase, error)
	GetByUserAndPlan(ctx context.Context, userID, planID string) (*models.StoragePurchase, error)
	ListByUser(ctx context.Context, userID string) ([]*models.StoragePurchase, error)

	// Update is version-guarded like wallets.Repository.Update.
	Update(ctx context.Context, s *models.StoragePurchase) error
}
