package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/shopspring/decimal"
)

const (
	EventTransferCompleted = "transfer.completed"
	EventTransferSuccess   = "transfer.success"
	EventTransferProcessed = "transfer.processed"
	EventTransferFailed    = "transfer.failed"
	EventTransferReversed  = "transfer.reversed"

	EventPaymentCaptured      = "payment.captured"
	EventChargeSuccess        = "charge.success"
	EventPaymentLinkPaid      = "payment_link.paid"
	EventPaymentLinkExpired   = "payment_link.expired"
	EventPaymentLinkCancelled = "payment_link.cancelled"
	EventPaymentFailed        = "payment.failed"
)

// Event is a provider webhook reduced to what the platform acts on.
type Event struct {
	Type      string
	Reference string
	GatewayID string
	Amount    decimal.Decimal
}

// TransferStatus maps a transfer event to the outflow status it settles
// to. ok is false for events that are not about transfers.
func (e *Event) TransferStatus() (status models.OutflowStatus, ok bool) {
	switch e.Type {
	case EventTransferCompleted, EventTransferSuccess, EventTransferProcessed:
		return models.OutflowCompleted, true
	case EventTransferFailed, EventTransferReversed:
		return models.OutflowFailed, true
	}
	return "", false
}

// ChargeStatus maps a charge event to the terminal status of the funding.
// A failed attempt is not terminal: the link stays payable until it is
// paid, expires or is cancelled.
func (e *Event) ChargeStatus() (status models.PaymentStatus, ok bool) {
	switch e.Type {
	case EventPaymentCaptured, EventChargeSuccess, EventPaymentLinkPaid:
		return models.PaymentCompleted, true
	case EventPaymentLinkExpired, EventPaymentLinkCancelled:
		return models.PaymentFailed, true
	}
	return "", false
}

// FailedAttempt reports whether the event is a declined attempt on a
// charge that can still be paid.
func (e *Event) FailedAttempt() bool {
	return e.Type == EventPaymentFailed
}

type entity struct {
	ID          string `json:"id"`
	ReferenceID string `json:"reference_id"`
	Amount      int64  `json:"amount"`
	// Razorpay sends empty notes as [] and filled ones as an object.
	Notes json.RawMessage `json:"notes"`
}

// note returns notes[key], or "" when notes is not an object.
func (e entity) note(key string) string {
	var notes map[string]any
	if len(e.Notes) == 0 || json.Unmarshal(e.Notes, &notes) != nil {
		return ""
	}
	v, _ := notes[key].(string)
	return v
}

type envelope struct {
	Event string `json:"event"`
	// Flat form: {"event": ..., "data": {"reference": ..., "id": ..., "amount": "12.50"}}
	Data *struct {
		ID        string          `json:"id"`
		Reference string          `json:"reference"`
		Amount    decimal.Decimal `json:"amount"`
	} `json:"data"`
	// Razorpay form: {"event": ..., "payload": {"transfer": {"entity": {...}}}}
	Payload map[string]struct {
		Entity entity `json:"entity"`
	} `json:"payload"`
}

// ParseEvent decodes a webhook body in either the flat provider-neutral
// form or the Razorpay payload form.
func ParseEvent(body []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("decode webhook: missing event type")
	}

	ev := &Event{Type: env.Event}
	if env.Data != nil {
		ev.Reference = env.Data.Reference
		ev.GatewayID = env.Data.ID
		ev.Amount = env.Data.Amount
		return ev, nil
	}

	// A payment_link.paid body carries both payment_link and payment; the
	// link holds our reference.
	for _, key := range []string{"payment_link", "transfer", "payment"} {
		p, ok := env.Payload[key]
		if !ok {
			continue
		}
		e := p.Entity
		ev.GatewayID = e.ID
		ev.Amount = fromMinor(e.Amount)
		ev.Reference = e.ReferenceID
		if ev.Reference == "" {
			ev.Reference = e.note("reference")
		}
		break
	}
	return ev, nil
}
