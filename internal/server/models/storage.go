package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StoragePlan is a purchasable quota package.
type StoragePlan struct {
	ID       string
	Name     string
	Bytes    int64
	Price    decimal.Decimal
	Currency string
	Active   bool
}

type QuotaStatus string

const (
	QuotaActive    QuotaStatus = "active"
	QuotaLow       QuotaStatus = "low"
	QuotaExhausted QuotaStatus = "exhausted"
)

// StoragePurchase is a user's subscription to a plan: the quota granted and
// how much of it is in use.
type StoragePurchase struct {
	ID           string
	UserID       string
	PlanID       string
	TotalStorage int64
	UsedStorage  int64
	Status       QuotaStatus
	AmountPaid   decimal.Decimal
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Remaining returns the unused bytes, never negative.
func (s *StoragePurchase) Remaining() int64 {
	if r := s.TotalStorage - s.UsedStorage; r > 0 {
		return r
	}
	return 0
}

// File is the metadata of an uploaded object; content lives in blob storage.
type File struct {
	ID             string
	UserID         string
	SubscriptionID string
	Name           string
	ContentType    string
	Size           int64
	StoragePath    string
	CreatedAt      time.Time
}
