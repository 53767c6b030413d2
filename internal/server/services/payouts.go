package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/campusvault/internal/common"
	"github.com/dmitrijs2005/campusvault/internal/server/access"
	"github.com/dmitrijs2005/campusvault/internal/server/gateway"
	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/dmitrijs2005/campusvault/internal/server/notify"
	"github.com/dmitrijs2005/campusvault/internal/server/uow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayoutService pays platform money out through the gateway and applies
// transfer confirmations to outflows and linked wallet withdrawals.
type PayoutService struct {
	d Deps
}

func NewPayoutService(d Deps) *PayoutService {
	d.defaults()
	return &PayoutService{d: d}
}

// RecordPayout starts a transfer and records it as a pending outflow.
// A gateway failure leaves nothing written.
func (s *PayoutService) RecordPayout(ctx context.Context, p *access.Principal, amount decimal.Decimal, account, bankCode, description string) (*models.OutflowAmount, error) {
	if err := access.Authorize(p, access.PayoutsCreate); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, common.NewError(common.KindInvalidAmount, "amount must be positive", common.ErrInvalidAmount)
	}
	if strings.TrimSpace(account) == "" || strings.TrimSpace(bankCode) == "" {
		return nil, common.Validation("account and bank code are required")
	}

	ref := s.d.reference("PAY", p.UserID)
	tr, err := s.d.Gateway.InitiateTransfer(ctx, gateway.TransferRequest{
		Reference:   ref,
		Amount:      amount,
		Currency:    s.d.Currency,
		Account:     account,
		BankCode:    bankCode,
		Description: description,
		CallbackURL: s.d.CallbackURL,
	})
	if err != nil {
		return nil, outcome(err)
	}

	status := models.OutflowPending
	if tr.Status == models.OutflowFailed {
		status = models.OutflowFailed
	}
	out := &models.OutflowAmount{
		ID:          uuid.NewString(),
		Amount:      amount,
		Description: description,
		Account:     account,
		BankCode:    bankCode,
		Reference:   ref,
		GatewayID:   tr.GatewayID,
		Status:      status,
		CreatedAt:   s.d.Now().UTC(),
	}
	err = s.d.Tx.Do(ctx, "record_payout", func(ctx context.Context, r *uow.Repos) error {
		if err := r.Cashflow.InsertOutflow(ctx, out); err != nil {
			return fmt.Errorf("error recording outflow: %w", err)
		}
		_, err := s.d.Finance.Recompute(ctx, r.Cashflow, r.Summary)
		return err
	})
	if err != nil {
		s.d.Log.Error(ctx, "transfer initiated but not recorded", "reference", ref, "gateway_id", tr.GatewayID, "error", err)
		return nil, outcome(err)
	}
	return out, nil
}

// HandleTransferWebhook applies a signed transfer notification. Unknown
// references and already settled outflows are logged and acknowledged.
func (s *PayoutService) HandleTransferWebhook(ctx context.Context, body []byte, signature string) error {
	if err := s.d.Gateway.VerifyWebhook(body, signature); err != nil {
		return common.Unauthorized("invalid webhook signature")
	}
	ev, err := gateway.ParseEvent(body)
	if err != nil {
		return common.Validation(err.Error())
	}
	status, ok := ev.TransferStatus()
	if !ok {
		s.d.Log.Info(ctx, "ignoring webhook event", "event", ev.Type)
		return nil
	}

	err = s.SettleTransfer(ctx, ev.Reference, status)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrorNotFound):
		s.d.Log.Warn(ctx, "transfer webhook for unknown reference", "reference", ev.Reference, "event", ev.Type)
		return nil
	case errors.Is(err, common.ErrAlreadyProcessed):
		s.d.Log.Info(ctx, "transfer webhook for settled outflow", "reference", ev.Reference, "event", ev.Type)
		return nil
	default:
		return outcome(err)
	}
}

// SettleTransfer moves the outflow for reference from pending to status
// exactly once, settles a linked wallet withdrawal and refreshes the
// aggregate. A second call returns common.ErrAlreadyProcessed.
func (s *PayoutService) SettleTransfer(ctx context.Context, reference string, status models.OutflowStatus) error {
	return s.d.Tx.Do(ctx, "settle_transfer", func(ctx context.Context, r *uow.Repos) error {
		out, err := r.Cashflow.GetOutflowByReference(ctx, reference)
		if err != nil {
			return err
		}
		if err := r.Cashflow.TransitionOutflow(ctx, reference, status); err != nil {
			return err
		}

		if out.WalletEntryID != "" {
			entryStatus := models.EntryCompleted
			if status == models.OutflowFailed {
				entryStatus = models.EntryFailed
			}
			w, err := settleEntry(ctx, s.d.Ledger, r, out.WalletEntryID, entryStatus)
			if err != nil {
				return fmt.Errorf("settle withdrawal %s: %w", reference, err)
			}
			s.d.notifyAfterCommit(r, notify.Notification{
				UserID:   w.UserID,
				Subject:  "Withdrawal " + string(status),
				Message:  fmt.Sprintf("Your withdrawal of %s %s is %s.", out.Amount.StringFixed(2), w.Currency, status),
				Template: notify.TemplateWithdrawal,
			})
		}

		_, err = s.d.Finance.Recompute(ctx, r.Cashflow, r.Summary)
		return err
	})
}
