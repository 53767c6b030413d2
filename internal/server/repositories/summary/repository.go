// Package summary stores the single-row platform financial aggregate.
package summary

import (
	"context"

	"github.com/dmitrijs2005/campusvault/internal/server/models"
)

type Repository interface {
	// Get returns common.ErrorNotFound until the first Upsert.
	Get(ctx context.Context) (*models.FinancialSummary, error)
	Upsert(ctx context.Context, s *models.FinancialSummary) error
	// Lock holds the summary row until the surrounding transaction ends,
	// creating it if needed. Recomputes serialize on it.
	Lock(ctx context.Context) error
}
