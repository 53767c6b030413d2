// Package quota tracks per-user storage subscriptions: how much was granted,
// how much is used and the status derived from the two.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/campusvault/internal/common"
	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/dmitrijs2005/campusvault/internal/server/repositories/subscriptions"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tracker applies quota mutations inside the caller's unit of work. Upload
// and purchase paths may judge "low" differently.
type Tracker struct {
	upload   Policy
	purchase Policy
	now      func() time.Time
}

func NewTracker(upload, purchase Policy) *Tracker {
	return &Tracker{upload: upload, purchase: purchase, now: time.Now}
}

// DefaultTracker uses a 10 MiB remaining threshold for uploads and an
// 80% usage ratio for purchases.
func DefaultTracker() *Tracker {
	return NewTracker(RemainingBytesPolicy{Threshold: DefaultLowRemaining}, UsageRatioPolicy{Ratio: DefaultLowRatio})
}

// Reserve takes size bytes from the user's usable subscription with the
// most room left.
func (t *Tracker) Reserve(ctx context.Context, repo subscriptions.Repository, userID string, size int64) (*models.StoragePurchase, error) {
	if size <= 0 {
		return nil, common.Validation("size must be positive")
	}
	subs, err := repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var best *models.StoragePurchase
	for _, s := range subs {
		if s.Status != models.QuotaActive && s.Status != models.QuotaLow {
			continue
		}
		if best == nil || s.Remaining() > best.Remaining() {
			best = s
		}
	}
	if best == nil {
		return nil, common.NewError(common.KindNoActivePlan, "no active storage plan", common.ErrNoActivePlan)
	}
	if t.upload.Status(best.UsedStorage, best.TotalStorage) == models.QuotaExhausted {
		return nil, common.NewError(common.KindQuotaExhausted, "storage quota exhausted", common.ErrQuotaExhausted)
	}
	if size > best.Remaining() {
		return nil, common.NewError(common.KindInsufficientQuota,
			fmt.Sprintf("need %d bytes, %d available", size, best.Remaining()), common.ErrInsufficientQuota)
	}

	best.UsedStorage += size
	best.Status = t.upload.Status(best.UsedStorage, best.TotalStorage)
	if err := t.write(ctx, repo, best); err != nil {
		return nil, err
	}
	return best, nil
}

// Release returns size bytes to a subscription; usage never drops below 0.
func (t *Tracker) Release(ctx context.Context, repo subscriptions.Repository, subscriptionID string, size int64) (*models.StoragePurchase, error) {
	s, err := repo.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	s.UsedStorage -= size
	if s.UsedStorage < 0 {
		s.UsedStorage = 0
	}
	s.Status = t.upload.Status(s.UsedStorage, s.TotalStorage)
	if err := t.write(ctx, repo, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Grant adds bytes and paid amount to the user's subscription of planID,
// creating it with zero usage on the first purchase.
func (t *Tracker) Grant(ctx context.Context, repo subscriptions.Repository, userID, planID string, bytes int64, amount decimal.Decimal) (*models.StoragePurchase, error) {
	if bytes <= 0 {
		return nil, common.Validation("granted bytes must be positive")
	}

	s, err := repo.GetByUserAndPlan(ctx, userID, planID)
	switch {
	case err == nil:
		s.TotalStorage += bytes
		s.AmountPaid = s.AmountPaid.Add(amount)
		s.Status = t.purchase.Status(s.UsedStorage, s.TotalStorage)
		if err := t.write(ctx, repo, s); err != nil {
			return nil, err
		}
		return s, nil
	case common.KindOf(err) == common.KindNotFound:
		s = &models.StoragePurchase{
			ID:           uuid.NewString(),
			UserID:       userID,
			PlanID:       planID,
			TotalStorage: bytes,
			AmountPaid:   amount,
			Version:      1,
		}
		s.Status = t.purchase.Status(0, bytes)
		if err := Validate(s); err != nil {
			return nil, err
		}
		if err := repo.Create(ctx, s); err != nil {
			return nil, fmt.Errorf("create subscription: %w", err)
		}
		return s, nil
	default:
		return nil, err
	}
}

// Status reports what the upload policy makes of s right now.
func (t *Tracker) Status(s *models.StoragePurchase) models.QuotaStatus {
	return t.upload.Status(s.UsedStorage, s.TotalStorage)
}

// Validate enforces 0 <= used <= total.
func Validate(s *models.StoragePurchase) error {
	if s.UsedStorage < 0 || s.TotalStorage < 0 || s.UsedStorage > s.TotalStorage {
		return fmt.Errorf("subscription %s: used %d outside [0, %d]: %w",
			s.ID, s.UsedStorage, s.TotalStorage, common.ErrorInternal)
	}
	return nil
}

func (t *Tracker) write(ctx context.Context, repo subscriptions.Repository, s *models.StoragePurchase) error {
	if err := Validate(s); err != nil {
		return err
	}
	if err := repo.Update(ctx, s); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}
