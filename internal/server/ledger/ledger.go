// Package ledger applies balance mutations to wallets and records each one
// as a wallet entry. The balance always equals completed deposits minus
// withdrawals that have not failed.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/campusvault/internal/common"
	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/dmitrijs2005/campusvault/internal/server/repositories/wallets"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Ledger struct {
	now func() time.Time
}

func New() *Ledger {
	return &Ledger{now: time.Now}
}

// NewWithClock is New with a custom time source.
func NewWithClock(now func() time.Time) *Ledger {
	return &Ledger{now: now}
}

// Deposit credits amount and returns the completed deposit entry.
func (l *Ledger) Deposit(w *models.Wallet, amount decimal.Decimal, description string) (*models.WalletEntry, error) {
	if !amount.IsPositive() {
		return nil, invalidAmount(amount)
	}
	w.Balance = w.Balance.Add(amount)
	return l.entry(w, models.EntryDeposit, models.EntryCompleted, amount, description), nil
}

// Withdraw debits amount and returns a pending withdrawal entry that is
// settled later by the payout confirmation.
func (l *Ledger) Withdraw(w *models.Wallet, amount decimal.Decimal, description string) (*models.WalletEntry, error) {
	if err := debit(w, amount); err != nil {
		return nil, err
	}
	return l.entry(w, models.EntryWithdrawal, models.EntryPending, amount, description), nil
}

// ChargeForPurchase debits amount for an in-platform purchase; the entry is
// completed immediately.
func (l *Ledger) ChargeForPurchase(w *models.Wallet, amount decimal.Decimal, description string) (*models.WalletEntry, error) {
	if err := debit(w, amount); err != nil {
		return nil, err
	}
	return l.entry(w, models.EntryWithdrawal, models.EntryCompleted, amount, description), nil
}

// Settle moves a pending withdrawal to completed or failed. Failing it
// refunds the amount to the wallet.
func (l *Ledger) Settle(w *models.Wallet, e *models.WalletEntry, status models.EntryStatus) error {
	if e.WalletID != w.ID {
		return common.Validation("entry does not belong to wallet")
	}
	if e.Type != models.EntryWithdrawal || e.Status != models.EntryPending {
		return common.ErrAlreadyProcessed
	}
	switch status {
	case models.EntryCompleted:
	case models.EntryFailed:
		w.Balance = w.Balance.Add(e.Amount)
	default:
		return common.Validation(fmt.Sprintf("cannot settle entry as %q", status))
	}
	e.Status = status
	e.UpdatedAt = l.now()
	return nil
}

// Save writes the mutated wallet (version-guarded) and inserts the new
// entry in the caller's unit of work.
func (l *Ledger) Save(ctx context.Context, repo wallets.Repository, w *models.Wallet, e *models.WalletEntry) error {
	if err := repo.Update(ctx, w); err != nil {
		return fmt.Errorf("update wallet: %w", err)
	}
	if err := repo.InsertEntry(ctx, e); err != nil {
		return fmt.Errorf("insert wallet entry: %w", err)
	}
	return nil
}

// SaveSettlement writes the wallet and the entry status transition.
func (l *Ledger) SaveSettlement(ctx context.Context, repo wallets.Repository, w *models.Wallet, e *models.WalletEntry) error {
	if err := repo.UpdateEntryStatus(ctx, e.ID, models.EntryPending, e.Status); err != nil {
		return fmt.Errorf("settle wallet entry: %w", err)
	}
	if err := repo.Update(ctx, w); err != nil {
		return fmt.Errorf("update wallet: %w", err)
	}
	return nil
}

// Verify checks the balance invariant of w against its full entry history.
func Verify(w *models.Wallet, entries []*models.WalletEntry) error {
	expected := decimal.Zero
	for _, e := range entries {
		switch {
		case e.Type == models.EntryDeposit && e.Status == models.EntryCompleted:
			expected = expected.Add(e.Amount)
		case e.Type == models.EntryWithdrawal && e.Status != models.EntryFailed:
			expected = expected.Sub(e.Amount)
		}
	}
	if !expected.Equal(w.Balance) {
		return fmt.Errorf("wallet %s: balance %s, entries add up to %s", w.ID, w.Balance, expected)
	}
	if w.Balance.IsNegative() {
		return fmt.Errorf("wallet %s: negative balance %s", w.ID, w.Balance)
	}
	return nil
}

func debit(w *models.Wallet, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalidAmount(amount)
	}
	if w.Balance.LessThan(amount) {
		return common.NewError(common.KindInsufficientFunds,
			fmt.Sprintf("balance %s is less than %s", w.Balance.StringFixed(2), amount.StringFixed(2)),
			common.ErrInsufficientFunds)
	}
	w.Balance = w.Balance.Sub(amount)
	return nil
}

func invalidAmount(amount decimal.Decimal) error {
	return common.NewError(common.KindInvalidAmount,
		fmt.Sprintf("amount must be positive, got %s", amount), common.ErrInvalidAmount)
}

func (l *Ledger) entry(w *models.Wallet, typ models.EntryType, status models.EntryStatus, amount decimal.Decimal, description string) *models.WalletEntry {
	now := l.now()
	return &models.WalletEntry{
		ID:          uuid.NewString(),
		WalletID:    w.ID,
		Type:        typ,
		Amount:      amount,
		Description: description,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
