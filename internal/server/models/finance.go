package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InflowAmount is money received by the platform.
type InflowAmount struct {
	ID          string
	Amount      decimal.Decimal
	Description string
	UserID      string
	Reference   string
	CreatedAt   time.Time
}

type OutflowStatus string

const (
	OutflowPending   OutflowStatus = "pending"
	OutflowCompleted OutflowStatus = "completed"
	OutflowFailed    OutflowStatus = "failed"
)

// OutflowAmount is money paid out through the gateway. WalletEntryID links
// a user withdrawal to its ledger entry and is empty for platform payouts.
type OutflowAmount struct {
	ID            string
	Amount        decimal.Decimal
	Description   string
	Account       string
	BankCode      string
	Reference     string
	GatewayID     string
	Status        OutflowStatus
	WalletEntryID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FinancialSummary is the cached platform-wide aggregate.
type FinancialSummary struct {
	TotalInflow  decimal.Decimal
	TotalOutflow decimal.Decimal
	NetBalance   decimal.Decimal
	LastUpdated  time.Time
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// PaymentTransaction tracks a wallet funding attempt through the gateway.
type PaymentTransaction struct {
	ID          string
	UserID      string
	Reference   string
	Amount      decimal.Decimal
	Currency    string
	Status      PaymentStatus
	Gateway     string
	GatewayID   string
	PaymentLink string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
