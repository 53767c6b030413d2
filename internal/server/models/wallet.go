package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is a user's account balance. Version guards concurrent updates.
type Wallet struct {
	ID        string
	UserID    string
	Balance   decimal.Decimal
	Currency  string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type EntryType string

const (
	EntryDeposit    EntryType = "deposit"
	EntryWithdrawal EntryType = "withdrawal"
)

type EntryStatus string

const (
	EntryPending   EntryStatus = "pending"
	EntryCompleted EntryStatus = "completed"
	EntryFailed    EntryStatus = "failed"
)

// WalletEntry is one line of a wallet's history.
type WalletEntry struct {
	ID          string
	WalletID    string
	Type        EntryType
	Amount      decimal.Decimal
	Description string
	Status      EntryStatus
	Reference   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
