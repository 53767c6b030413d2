package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/campusvault/internal/common"
	"github.com/dmitrijs2005/campusvault/internal/server/access"
	"github.com/dmitrijs2005/campusvault/internal/server/gateway"
	"github.com/dmitrijs2005/campusvault/internal/server/ledger"
	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/dmitrijs2005/campusvault/internal/server/notify"
	"github.com/dmitrijs2005/campusvault/internal/server/uow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WalletView struct {
	Wallet  *models.Wallet
	Entries []*models.WalletEntry
}

type FundingResult struct {
	Transaction *models.PaymentTransaction
	PaymentLink string
}

type WithdrawalResult struct {
	Reference string
	Entry     *models.WalletEntry
	Outflow   *models.OutflowAmount
}

type WalletService struct {
	d Deps
}

func NewWalletService(d Deps) *WalletService {
	d.defaults()
	return &WalletService{d: d}
}

func (s *WalletService) GetWallet(ctx context.Context, p *access.Principal, userID string) (*WalletView, error) {
	if err := access.AuthorizeOwner(p, userID); err != nil {
		return nil, err
	}
	var v WalletView
	err := s.d.Tx.Do(ctx, "get_wallet", func(ctx context.Context, r *uow.Repos) error {
		w, err := r.Wallets.GetByUserID(ctx, userID)
		if errors.Is(err, common.ErrorNotFound) {
			return common.NotFound("wallet not found")
		}
		if err != nil {
			return err
		}
		entries, err := r.Wallets.ListEntries(ctx, w.ID)
		if err != nil {
			return err
		}
		if err := ledger.Verify(w, entries); err != nil {
			s.d.Log.Error(ctx, "wallet out of balance", "wallet_id", w.ID, "error", err)
		}
		v = WalletView{Wallet: w, Entries: entries}
		return nil
	})
	if err != nil {
		return nil, outcome(err)
	}
	return &v, nil
}

// FundWallet opens a gateway charge and records it as a pending
// transaction. The wallet is credited only once the charge is confirmed.
func (s *WalletService) FundWallet(ctx context.Context, p *access.Principal, userID string, amount decimal.Decimal, currency string) (*FundingResult, error) {
	if err := access.AuthorizeOwner(p, userID, access.WalletFund); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, common.NewError(common.KindInvalidAmount, "amount must be positive", common.ErrInvalidAmount)
	}
	if currency == "" {
		currency = s.d.Currency
	}

	var email string
	err := s.d.Tx.Do(ctx, "fund_wallet_check", func(ctx context.Context, r *uow.Repos) error {
		u, err := r.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		w, err := r.Wallets.GetByUserID(ctx, userID)
		if err != nil {
			return err
		}
		if !strings.EqualFold(w.Currency, currency) {
			return common.Validation(fmt.Sprintf("wallet holds %s, not %s", w.Currency, currency))
		}
		email = u.Email
		return nil
	})
	if err != nil {
		return nil, outcome(err)
	}

	ref := s.d.reference("FND", userID)
	charge, err := s.d.Gateway.InitiateCharge(ctx, gateway.ChargeRequest{
		Reference:   ref,
		Amount:      amount,
		Currency:    currency,
		Customer:    gateway.Customer{UserID: userID, Email: email},
		Description: "wallet funding",
		CallbackURL: s.d.CallbackURL,
	})
	if err != nil {
		return nil, outcome(err)
	}

	now := s.d.Now().UTC()
	txn := &models.PaymentTransaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Reference:   ref,
		Amount:      amount,
		Currency:    currency,
		Status:      models.PaymentPending,
		Gateway:     s.d.Gateway.Name(),
		GatewayID:   charge.GatewayID,
		PaymentLink: charge.PaymentLink,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.d.Tx.Do(ctx, "fund_wallet", func(ctx context.Context, r *uow.Repos) error {
		return r.Payments.Create(ctx, txn)
	})
	if err != nil {
		// The charge exists at the gateway without a local record; the
		// reference ties the two together for manual reconciliation.
		s.d.Log.Error(ctx, "charge opened but not recorded", "reference", ref, "gateway_id", charge.GatewayID, "error", err)
		return nil, outcome(err)
	}
	return &FundingResult{Transaction: txn, PaymentLink: charge.PaymentLink}, nil
}

// ConfirmFunding asks the gateway about a pending transaction and settles
// it. Confirming an already settled transaction is a no-op.
func (s *WalletService) ConfirmFunding(ctx context.Context, reference string) (*models.PaymentTransaction, error) {
	txn, err := s.payment(ctx, reference)
	if err != nil {
		return nil, outcome(err)
	}
	if txn.Status != models.PaymentPending {
		return txn, nil
	}

	charge, err := s.d.Gateway.VerifyCharge(ctx, txn.GatewayID)
	if err != nil {
		return nil, outcome(err)
	}
	if charge.Status == models.PaymentPending {
		return txn, nil
	}
	if err := s.settle(ctx, reference, charge.Status, charge.Amount); err != nil && !errors.Is(err, common.ErrAlreadyProcessed) {
		return nil, outcome(err)
	}
	txn, err = s.payment(ctx, reference)
	return txn, outcome(err)
}

// HandleChargeWebhook applies a signed charge notification. Unknown
// references, settled transactions and irrelevant events are acknowledged
// without effect; only internal failures are returned so the gateway
// redelivers.
func (s *WalletService) HandleChargeWebhook(ctx context.Context, body []byte, signature string) error {
	if err := s.d.Gateway.VerifyWebhook(body, signature); err != nil {
		return common.Unauthorized("invalid webhook signature")
	}
	ev, err := gateway.ParseEvent(body)
	if err != nil {
		return common.Validation(err.Error())
	}
	if ev.FailedAttempt() {
		s.d.Log.Info(ctx, "charge attempt failed, funding stays pending", "reference", ev.Reference, "gateway_id", ev.GatewayID)
		return nil
	}
	status, ok := ev.ChargeStatus()
	if !ok {
		s.d.Log.Info(ctx, "ignoring webhook event", "event", ev.Type)
		return nil
	}

	err = s.settle(ctx, ev.Reference, status, ev.Amount)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrorNotFound):
		s.d.Log.Warn(ctx, "charge webhook for unknown reference", "reference", ev.Reference, "event", ev.Type)
		return nil
	case errors.Is(err, common.ErrAlreadyProcessed):
		s.d.Log.Info(ctx, "charge webhook for settled transaction", "reference", ev.Reference, "event", ev.Type)
		return nil
	case common.KindOf(err) == common.KindValidation:
		s.d.Log.Warn(ctx, "charge webhook rejected", "reference", ev.Reference, "error", err)
		return nil
	default:
		return outcome(err)
	}
}

// ReconcilePending confirms pending transactions older than olderThan and
// reports how many reached a terminal status.
func (s *WalletService) ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	var pending []*models.PaymentTransaction
	err := s.d.Tx.Do(ctx, "list_pending_payments", func(ctx context.Context, r *uow.Repos) error {
		var err error
		pending, err = r.Payments.ListPendingBefore(ctx, s.d.Now().Add(-olderThan), limit)
		return err
	})
	if err != nil {
		return 0, outcome(err)
	}

	settled := 0
	for _, p := range pending {
		txn, err := s.ConfirmFunding(ctx, p.Reference)
		if err != nil {
			s.d.Log.Warn(ctx, "reconcile failed", "reference", p.Reference, "error", err)
			continue
		}
		if txn.Status != models.PaymentPending {
			settled++
		}
	}
	return settled, nil
}

// settle moves a pending transaction to status exactly once and, if it
// completed, credits the wallet and records the inflow. A non-zero amount
// must match the recorded one.
func (s *WalletService) settle(ctx context.Context, reference string, status models.PaymentStatus, amount decimal.Decimal) error {
	return s.d.Tx.Do(ctx, "settle_funding", func(ctx context.Context, r *uow.Repos) error {
		txn, err := r.Payments.GetByReference(ctx, reference)
		if err != nil {
			return err
		}
		if txn.Status != models.PaymentPending {
			return common.ErrAlreadyProcessed
		}
		if status == models.PaymentCompleted && !amount.IsZero() && !amount.Equal(txn.Amount) {
			return common.Validation(fmt.Sprintf("gateway amount %s does not match %s", amount, txn.Amount))
		}
		if err := r.Payments.Transition(ctx, reference, status); err != nil {
			return err
		}
		if status != models.PaymentCompleted {
			return nil
		}

		w, err := r.Wallets.GetByUserID(ctx, txn.UserID)
		if err != nil {
			return err
		}
		e, err := s.d.Ledger.Deposit(w, txn.Amount, "wallet funding")
		if err != nil {
			return err
		}
		e.Reference = reference
		if err := s.d.Ledger.Save(ctx, r.Wallets, w, e); err != nil {
			return err
		}
		if err := r.Cashflow.InsertInflow(ctx, &models.InflowAmount{
			ID:          uuid.NewString(),
			Amount:      txn.Amount,
			Description: "wallet funding",
			UserID:      txn.UserID,
			Reference:   reference,
			CreatedAt:   s.d.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("error recording inflow: %w", err)
		}
		if _, err := s.d.Finance.Recompute(ctx, r.Cashflow, r.Summary); err != nil {
			return err
		}
		s.d.notifyAfterCommit(r, notify.Notification{
			UserID:   txn.UserID,
			Subject:  "Wallet funded",
			Message:  fmt.Sprintf("Your wallet received %s %s.", txn.Amount.StringFixed(2), txn.Currency),
			Template: notify.TemplateWalletFunded,
		})
		return nil
	})
}

func (s *WalletService) payment(ctx context.Context, reference string) (*models.PaymentTransaction, error) {
	var txn *models.PaymentTransaction
	err := s.d.Tx.Do(ctx, "get_payment", func(ctx context.Context, r *uow.Repos) error {
		var err error
		txn, err = r.Payments.GetByReference(ctx, reference)
		if errors.Is(err, common.ErrorNotFound) {
			return common.NotFound("transaction not found")
		}
		return err
	})
	return txn, err
}

// WithdrawFromWallet debits the wallet with a pending entry, then asks the
// gateway to pay out. If the gateway refuses, the entry is settled as
// failed and the amount refunded.
func (s *WalletService) WithdrawFromWallet(ctx context.Context, p *access.Principal, userID string, amount decimal.Decimal, account, bankCode string) (*WithdrawalResult, error) {
	if err := access.AuthorizeOwner(p, userID, access.WalletWithdraw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(account) == "" || strings.TrimSpace(bankCode) == "" {
		return nil, common.Validation("account and bank code are required")
	}

	ref := s.d.reference("PAY", userID)
	var entry *models.WalletEntry
	var currency string
	err := s.d.Tx.Do(ctx, "withdraw_debit", func(ctx context.Context, r *uow.Repos) error {
		w, err := r.Wallets.GetByUserID(ctx, userID)
		if err != nil {
			return err
		}
		e, err := s.d.Ledger.Withdraw(w, amount, "withdrawal to "+account)
		if err != nil {
			return err
		}
		e.Reference = ref
		if err := s.d.Ledger.Save(ctx, r.Wallets, w, e); err != nil {
			return err
		}
		entry, currency = e, w.Currency
		return nil
	})
	if err != nil {
		return nil, outcome(err)
	}

	tr, err := s.d.Gateway.InitiateTransfer(ctx, gateway.TransferRequest{
		Reference:   ref,
		Amount:      amount,
		Currency:    currency,
		Account:     account,
		BankCode:    bankCode,
		Description: "wallet withdrawal",
		CallbackURL: s.d.CallbackURL,
	})
	if err == nil && tr.Status == models.OutflowFailed {
		err = common.ExternalService("transfer rejected", nil)
	}
	if err != nil {
		if cerr := s.refund(ctx, entry.ID); cerr != nil {
			s.d.Log.Error(ctx, "failed to refund withdrawal", "reference", ref, "entry_id", entry.ID, "error", cerr)
		}
		return nil, outcome(err)
	}

	out := &models.OutflowAmount{
		ID:            uuid.NewString(),
		Amount:        amount,
		Description:   "wallet withdrawal",
		Account:       account,
		BankCode:      bankCode,
		Reference:     ref,
		GatewayID:     tr.GatewayID,
		Status:        models.OutflowPending,
		WalletEntryID: entry.ID,
		CreatedAt:     s.d.Now().UTC(),
	}
	err = s.d.Tx.Do(ctx, "withdraw_record", func(ctx context.Context, r *uow.Repos) error {
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
	return &WithdrawalResult{Reference: ref, Entry: entry, Outflow: out}, nil
}

func (s *WalletService) refund(ctx context.Context, entryID string) error {
	return s.d.Tx.Do(context.WithoutCancel(ctx), "withdraw_refund", func(ctx context.Context, r *uow.Repos) error {
		_, err := settleEntry(ctx, s.d.Ledger, r, entryID, models.EntryFailed)
		return err
	})
}

// settleEntry settles a pending withdrawal entry inside r and returns the
// updated wallet.
func settleEntry(ctx context.Context, l *ledger.Ledger, r *uow.Repos, entryID string, status models.EntryStatus) (*models.Wallet, error) {
	e, err := r.Wallets.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	w, err := r.Wallets.GetByID(ctx, e.WalletID)
	if err != nil {
		return nil, err
	}
	if err := l.Settle(w, e, status); err != nil {
		return nil, err
	}
	if err := l.SaveSettlement(ctx, r.Wallets, w, e); err != nil {
		return nil, err
	}
	return w, nil
}
