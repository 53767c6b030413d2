// Package notify delivers best-effort user notifications after a unit of
// work has committed. Delivery failures are logged and never propagate.
package notify

import (
	"context"

	"github.com/dmitrijs2005/campusvault/internal/logging"
)

type Template string

const (
	TemplateWalletFunded     Template = "wallet_funded"
	TemplateWithdrawal       Template = "withdrawal"
	TemplateStoragePurchased Template = "storage_purchased"
	TemplateQuotaLow         Template = "quota_low"
	TemplateFileUploaded     Template = "file_uploaded"
	TemplatePayout           Template = "payout"
)

type Notification struct {
	UserID   string
	Subject  string
	Message  string
	Template Template
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log instead of sending them.
type LogNotifier struct {
	log logging.Logger
}

func NewLogNotifier(log logging.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	l.log.Info(ctx, "notification", "user_id", n.UserID, "template", n.Template, "subject", n.Subject)
	return nil
}
