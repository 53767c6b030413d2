package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeSender struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

func TestMailNotifier_Sends(t *testing.T) {
	s := &fakeSender{}
	m := NewMailNotifier(MailConfig{From: "vault@campus.test"}, func(_ context.Context, id string) (string, error) {
		return id + "@campus.test", nil
	})
	m.sender = s

	err := m.Notify(context.Background(), Notification{
		UserID: "u1", Subject: "Funded", Message: "Your wallet received 500.00 INR", Template: TemplateWalletFunded,
	})
	require.NoError(t, err)
	require.Len(t, s.sent, 1)
	assert.Equal(t, []string{"u1@campus.test"}, s.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Funded"}, s.sent[0].GetHeader("Subject"))
}

func TestMailNotifier_LookupError(t *testing.T) {
	s := &fakeSender{}
	m := NewMailNotifier(MailConfig{}, func(context.Context, string) (string, error) {
		return "", errors.New("no such user")
	})
	m.sender = s

	assert.Error(t, m.Notify(context.Background(), Notification{UserID: "ghost"}))
	assert.Empty(t, s.sent)
}

func TestRenderHTML_Escapes(t *testing.T) {
	out := renderHTML(Notification{Template: TemplateQuotaLow, Message: "<b>9 MiB</b> left"})
	assert.Contains(t, out, "Storage running low")
	assert.Contains(t, out, "&lt;b&gt;9 MiB&lt;/b&gt; left")
}
