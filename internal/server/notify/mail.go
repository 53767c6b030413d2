package notify

import (
	"context"
	"fmt"
	"html"

	"gopkg.in/gomail.v2"
)

type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailLookup resolves a user id to a delivery address.
type EmailLookup func(ctx context.Context, userID string) (string, error)

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type MailNotifier struct {
	from   string
	lookup EmailLookup
	sender mailSender
}

func NewMailNotifier(cfg MailConfig, lookup EmailLookup) *MailNotifier {
	return &MailNotifier{
		from:   cfg.From,
		lookup: lookup,
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (m *MailNotifier) Notify(ctx context.Context, n Notification) error {
	to, err := m.lookup(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("resolve email for %s: %w", n.UserID, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", n.Subject)
	msg.SetBody("text/plain", n.Message)
	msg.AddAlternative("text/html", renderHTML(n))

	if err := m.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

var headings = map[Template]string{
	TemplateWalletFunded:     "Wallet funded",
	TemplateWithdrawal:       "Withdrawal update",
	TemplateStoragePurchased: "Storage purchased",
	TemplateQuotaLow:         "Storage running low",
	TemplateFileUploaded:     "File uploaded",
	TemplatePayout:           "Payout update",
}

func renderHTML(n Notification) string {
	h, ok := headings[n.Template]
	if !ok {
		h = n.Subject
	}
	return fmt.Sprintf("<h2>%s</h2>\n<p>%s</p>\n", html.EscapeString(h), html.EscapeString(n.Message))
}
