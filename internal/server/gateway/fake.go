package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/google/uuid"
)

// Fake is an in-process gateway for tests and local runs. Charges stay
// pending until Settle is called.
type Fake struct {
	mu        sync.Mutex
	charges   map[string]*Charge
	transfers map[string]TransferRequest

	Secret      string
	Delay       time.Duration
	ChargeErr   error
	TransferErr error
	Timeout     time.Duration
}

func NewFake(secret string) *Fake {
	return &Fake{
		charges:   map[string]*Charge{},
		transfers: map[string]TransferRequest{},
		Secret:    secret,
		Timeout:   time.Second,
	}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) wait() {
	if f.Delay > 0 {
		time.Sleep(f.Delay)
	}
}

func (f *Fake) InitiateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	return call(ctx, f.Timeout, "fake charge", func() (*Charge, error) {
		f.wait()
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.ChargeErr != nil {
			return nil, f.ChargeErr
		}
		id := "plink_" + uuid.NewString()
		c := &Charge{
			GatewayID:   id,
			Reference:   req.Reference,
			Amount:      req.Amount,
			Status:      models.PaymentPending,
			PaymentLink: fmt.Sprintf("https://pay.example.test/%s", id),
		}
		f.charges[id] = c
		cp := *c
		return &cp, nil
	})
}

func (f *Fake) VerifyCharge(ctx context.Context, gatewayID string) (*Charge, error) {
	return call(ctx, f.Timeout, "fake verify", func() (*Charge, error) {
		f.wait()
		f.mu.Lock()
		defer f.mu.Unlock()
		c, ok := f.charges[gatewayID]
		if !ok {
			return nil, fmt.Errorf("charge %s not found", gatewayID)
		}
		cp := *c
		return &cp, nil
	})
}

// Settle moves a charge to a terminal status as if the payer acted.
func (f *Fake) Settle(gatewayID string, status models.PaymentStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.charges[gatewayID]; ok {
		c.Status = status
	}
}

func (f *Fake) InitiateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	return call(ctx, f.Timeout, "fake transfer", func() (*Transfer, error) {
		f.wait()
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.TransferErr != nil {
			return nil, f.TransferErr
		}
		id := "trf_" + uuid.NewString()
		f.transfers[id] = req
		return &Transfer{GatewayID: id, Status: models.OutflowPending}, nil
	})
}

// Transfers reports how many transfers were initiated.
func (f *Fake) Transfers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transfers)
}

func (f *Fake) VerifyWebhook(_ []byte, signature string) error {
	if f.Secret != "" && signature != f.Secret {
		return ErrInvalidSignature
	}
	return nil
}
