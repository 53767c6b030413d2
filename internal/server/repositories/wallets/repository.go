// Package wallets persists wallets and their ledger entries.
package wallets

import (
	"context"

	"github.com/dmitrijs2005/campusvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, w *models.Wallet) error
	GetByUserID(ctx context.Context, userID string) (*models.Wallet, error)
	GetByID(ctx context.Context, id string) (*models.Wallet, error)

	// Update writes the balance if the stored version still equals
	// w.Version, then bumps w.Version. A stale version yields
	// common.ErrVersionConflict.
	Update(ctx context.Context, w *models.Wallet) error

	InsertEntry(ctx context.Context, e *models.WalletEntry) error
	GetEntry(ctx context.Context, id string) (*models.WalletEntry, error)
	ListEntries(ctx context.Context, walletID string) ([]*models.WalletEntry, error)

	// UpdateEntryStatus moves an entry from one status to another. If the
	// entry is no longer in from, common.ErrAlreadyProcessed is returned.
	UpdateEntryStatus(ctx context.Context, id string, from, to models.EntryStatus) error
}
