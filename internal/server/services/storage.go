package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/campusvault/internal/common"
	"github.com/dmitrijs2005/campusvault/internal/server/access"
	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/dmitrijs2005/campusvault/internal/server/notify"
	"github.com/dmitrijs2005/campusvault/internal/server/uow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Purchase steps, in order. A fault hook may fail the unit of work after
// any of them.
const (
	stepCharged    = "charged"
	stepInflow     = "inflow_recorded"
	stepGranted    = "quota_granted"
	stepRecomputed = "summary_recomputed"
)

type PurchaseResult struct {
	Subscription *models.StoragePurchase
	Entry        *models.WalletEntry
	Amount       decimal.Decimal
	Wallet       *models.Wallet
}

type StorageService struct {
	d     Deps
	fault func(step string) error
}

func NewStorageService(d Deps) *StorageService {
	d.defaults()
	return &StorageService{d: d}
}

// Price returns what totalBytes of plan cost, pro rata to the plan size.
func Price(plan *models.StoragePlan, totalBytes int64) decimal.Decimal {
	if totalBytes == plan.Bytes || plan.Bytes <= 0 {
		return plan.Price
	}
	return plan.Price.Mul(decimal.NewFromInt(totalBytes)).Div(decimal.NewFromInt(plan.Bytes)).Round(2)
}

// PurchaseStorage charges the wallet, records the inflow, grants quota and
// refreshes the aggregate in one unit of work. totalBytes 0 buys the plan
// as listed.
func (s *StorageService) PurchaseStorage(ctx context.Context, p *access.Principal, userID, planID string, totalBytes int64) (*PurchaseResult, error) {
	if err := access.AuthorizeOwner(p, userID, access.StoragePurchase); err != nil {
		return nil, err
	}
	if totalBytes < 0 {
		return nil, common.Validation("total bytes must not be negative")
	}

	var res *PurchaseResult
	err := s.d.Tx.Do(ctx, "purchase_storage", func(ctx context.Context, r *uow.Repos) error {
		plan, err := r.Plans.GetByID(ctx, planID)
		if errors.Is(err, common.ErrorNotFound) {
			return common.NotFound("storage plan not found")
		}
		if err != nil {
			return err
		}
		if !plan.Active {
			return common.Validation("storage plan is not available")
		}
		bytes := totalBytes
		if bytes == 0 {
			bytes = plan.Bytes
		}
		amount := Price(plan, bytes)

		w, err := r.Wallets.GetByUserID(ctx, userID)
		if err != nil {
			return err
		}
		if !strings.EqualFold(w.Currency, plan.Currency) {
			return common.Validation(fmt.Sprintf("plan is priced in %s, wallet holds %s", plan.Currency, w.Currency))
		}

		desc := fmt.Sprintf("storage purchase: %s", plan.Name)
		e, err := s.d.Ledger.ChargeForPurchase(w, amount, desc)
		if err != nil {
			return err
		}
		e.Reference = s.d.reference("PUR", userID)
		if err := s.d.Ledger.Save(ctx, r.Wallets, w, e); err != nil {
			return err
		}
		if err := s.step(stepCharged); err != nil {
			return err
		}

		if err := r.Cashflow.InsertInflow(ctx, &models.InflowAmount{
			ID:          uuid.NewString(),
			Amount:      amount,
			Description: desc,
			UserID:      userID,
			Reference:   e.Reference,
			CreatedAt:   s.d.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("error recording inflow: %w", err)
		}
		if err := s.step(stepInflow); err != nil {
			return err
		}

		sub, err := s.d.Quota.Grant(ctx, r.Subscriptions, userID, plan.ID, bytes, amount)
		if err != nil {
			return err
		}
		if err := s.step(stepGranted); err != nil {
			return err
		}

		if _, err := s.d.Finance.Recompute(ctx, r.Cashflow, r.Summary); err != nil {
			return err
		}
		if err := s.step(stepRecomputed); err != nil {
			return err
		}

		s.d.notifyAfterCommit(r, notify.Notification{
			UserID:   userID,
			Subject:  "Storage purchased",
			Message:  fmt.Sprintf("You bought %d bytes of %s for %s %s.", bytes, plan.Name, amount.StringFixed(2), w.Currency),
			Template: notify.TemplateStoragePurchased,
		})
		res = &PurchaseResult{Subscription: sub, Entry: e, Amount: amount, Wallet: w}
		return nil
	})
	if err != nil {
		return nil, outcome(err)
	}
	return res, nil
}

func (s *StorageService) step(name string) error {
	if s.fault == nil {
		return nil
	}
	return s.fault(name)
}

func (s *StorageService) ListPlans(ctx context.Context) ([]*models.StoragePlan, error) {
	var out []*models.StoragePlan
	err := s.d.Tx.Do(ctx, "list_plans", func(ctx context.Context, r *uow.Repos) error {
		var err error
		out, err = r.Plans.ListActive(ctx)
		return err
	})
	if err != nil {
		return nil, outcome(err)
	}
	return out, nil
}

// ListSubscriptions returns the user's subscriptions. Status is recomputed
// with the upload policy, which may differ from the stored status a
// purchase left behind; the rows are not rewritten.
func (s *StorageService) ListSubscriptions(ctx context.Context, p *access.Principal, userID string) ([]*models.StoragePurchase, error) {
	if err := access.AuthorizeOwner(p, userID); err != nil {
		return nil, err
	}
	var out []*models.StoragePurchase
	err := s.d.Tx.Do(ctx, "list_subscriptions", func(ctx context.Context, r *uow.Repos) error {
		var err error
		out, err = r.Subscriptions.ListByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, outcome(err)
	}
	for _, sub := range out {
		sub.Status = s.d.Quota.Status(sub)
	}
	return out, nil
}

func (s *StorageService) UpsertPlan(ctx context.Context, p *access.Principal, plan *models.StoragePlan) error {
	if err := access.Authorize(p, access.PlansManage); err != nil {
		return err
	}
	plan.ID = strings.TrimSpace(plan.ID)
	switch {
	case plan.ID == "" || plan.Name == "":
		return common.Validation("plan id and name are required")
	case plan.Bytes <= 0:
		return common.Validation("plan size must be positive")
	case !plan.Price.IsPositive():
		return common.NewError(common.KindInvalidAmount, "plan price must be positive", common.ErrInvalidAmount)
	}
	if plan.Currency == "" {
		plan.Currency = s.d.Currency
	}
	err := s.d.Tx.Do(ctx, "upsert_plan", func(ctx context.Context, r *uow.Repos) error {
		return r.Plans.Upsert(ctx, plan)
	})
	return outcome(err)
}
