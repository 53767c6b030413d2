package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

type paymentLinkAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Fetch(id string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type transferAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayConfig holds credentials and limits for the Razorpay client.
type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Timeout       time.Duration
}

// Razorpay collects money through payment links and pays out with Route
// transfers to linked accounts.
type Razorpay struct {
	links         paymentLinkAPI
	transfers     transferAPI
	webhookSecret string
	timeout       time.Duration
}

func NewRazorpay(cfg RazorpayConfig) *Razorpay {
	client := razorpay.NewClient(cfg.KeyID, cfg.KeySecret)
	return &Razorpay{
		links:         client.PaymentLink,
		transfers:     client.Transfer,
		webhookSecret: cfg.WebhookSecret,
		timeout:       cfg.Timeout,
	}
}

func (r *Razorpay) Name() string { return "razorpay" }

func (r *Razorpay) InitiateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	amount, err := toMinor(req.Amount)
	if err != nil {
		return nil, err
	}
	data := map[string]interface{}{
		"amount":       amount,
		"currency":     req.Currency,
		"reference_id": req.Reference,
		"description":  req.Description,
		"customer": map[string]interface{}{
			"email": req.Customer.Email,
		},
		"notify": map[string]interface{}{
			"email": req.Customer.Email != "",
		},
		"notes": map[string]interface{}{
			"user_id":   req.Customer.UserID,
			"reference": req.Reference,
		},
	}
	if req.CallbackURL != "" {
		data["callback_url"] = req.CallbackURL
		data["callback_method"] = "get"
	}

	body, err := call(ctx, r.timeout, "razorpay payment link create", func() (map[string]interface{}, error) {
		return r.links.Create(data, nil)
	})
	if err != nil {
		return nil, err
	}
	c := chargeFromLink(body)
	if c.Reference == "" {
		c.Reference = req.Reference
	}
	return c, nil
}

func (r *Razorpay) VerifyCharge(ctx context.Context, gatewayID string) (*Charge, error) {
	body, err := call(ctx, r.timeout, "razorpay payment link fetch", func() (map[string]interface{}, error) {
		return r.links.Fetch(gatewayID, nil, nil)
	})
	if err != nil {
		return nil, err
	}
	return chargeFromLink(body), nil
}

func (r *Razorpay) InitiateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	amount, err := toMinor(req.Amount)
	if err != nil {
		return nil, err
	}
	data := map[string]interface{}{
		"account":  req.Account,
		"amount":   amount,
		"currency": req.Currency,
		"notes": map[string]interface{}{
			"reference":   req.Reference,
			"bank_code":   req.BankCode,
			"description": req.Description,
		},
	}

	body, err := call(ctx, r.timeout, "razorpay transfer create", func() (map[string]interface{}, error) {
		return r.transfers.Create(data, nil)
	})
	if err != nil {
		return nil, err
	}
	return &Transfer{
		GatewayID: str(body["id"]),
		Status:    transferStatus(str(body["status"])),
	}, nil
}

func (r *Razorpay) VerifyWebhook(body []byte, signature string) error {
	if r.webhookSecret == "" || signature == "" {
		return ErrInvalidSignature
	}
	if !utils.VerifyWebhookSignature(string(body), signature, r.webhookSecret) {
		return ErrInvalidSignature
	}
	return nil
}

func chargeFromLink(body map[string]interface{}) *Charge {
	c := &Charge{
		GatewayID:   str(body["id"]),
		Reference:   str(body["reference_id"]),
		PaymentLink: str(body["short_url"]),
		Status:      linkStatus(str(body["status"])),
	}
	if n, ok := body["amount"].(float64); ok {
		c.Amount = fromMinor(int64(n))
	}
	return c
}

func linkStatus(s string) models.PaymentStatus {
	switch s {
	case "paid":
		return models.PaymentCompleted
	case "expired", "cancelled":
		return models.PaymentFailed
	default:
		return models.PaymentPending
	}
}

func transferStatus(s string) models.OutflowStatus {
	switch s {
	case "processed":
		return models.OutflowCompleted
	case "failed", "reversed":
		return models.OutflowFailed
	default:
		return models.OutflowPending
	}
}

func str(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
