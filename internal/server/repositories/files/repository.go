// Package files persists uploaded file metadata.
package files

import (
	"context"

	"github.com/dmitrijs2005/campusvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, f *models.File) error
	GetByID(ctx context.Context, id string) (*models.File, error)
	ListByUser(ctx context.Context, userID string) ([]*models.File, error)
	// Delete returns common.ErrorNotFound if no row was removed.
	Delete(ctx context.Context, id string) error
}
