// Package gateway talks to the external payment provider: charges that
// fund wallets, transfers that pay money out, and the webhooks that
// confirm both.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/campusvault/internal/common"
	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/shopspring/decimal"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

type Customer struct {
	UserID string
	Email  string
}

// ChargeRequest asks the provider to collect money. Reference is the
// idempotency key.
type ChargeRequest struct {
	Reference   string
	Amount      decimal.Decimal
	Currency    string
	Customer    Customer
	Description string
	CallbackURL string
}

type Charge struct {
	GatewayID   string
	Reference   string
	Amount      decimal.Decimal
	Status      models.PaymentStatus
	PaymentLink string
}

type TransferRequest struct {
	Reference   string
	Amount      decimal.Decimal
	Currency    string
	Account     string
	BankCode    string
	Description string
	CallbackURL string
}

type Transfer struct {
	GatewayID string
	Status    models.OutflowStatus
}

// Gateway is a payment provider client. Implementations must honor ctx
// deadlines even when the underlying SDK does not.
type Gateway interface {
	Name() string
	InitiateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	// VerifyCharge looks a charge up by its provider id.
	VerifyCharge(ctx context.Context, gatewayID string) (*Charge, error)
	InitiateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error)
	// VerifyWebhook checks the signature of a raw webhook body.
	VerifyWebhook(body []byte, signature string) error
}

// call runs fn with a deadline. The SDK call keeps running in the
// background after a timeout; its result is discarded.
func call[T any](ctx context.Context, timeout time.Duration, op string, fn func() (T, error)) (T, error) {
	var zero T
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		return zero, common.ExternalService(op+" timed out", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return zero, common.ExternalService(op+" failed", r.err)
		}
		return r.v, nil
	}
}

// toMinor converts an amount to the currency's minor unit (paise, cents).
func toMinor(amount decimal.Decimal) (int64, error) {
	minor := amount.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, common.Validation(fmt.Sprintf("amount %s has more than two decimal places", amount))
	}
	return minor.IntPart(), nil
}

func fromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
