// Package plans reads the storage plan catalog.
package plans

import (
	"context"

	"github.com/dmitrijs2005/campusvault/internal/server/models"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*models.StoragePlan, error)
	ListActive(ctx context.Context) ([]*models.StoragePlan, error)
	// Upsert creates or replaces a catalog entry.
	Upsert(ctx context.Context, p *models.StoragePlan) error
}
