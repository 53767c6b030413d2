package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dmitrijs2005/campusvault/internal/common"
	"github.com/dmitrijs2005/campusvault/internal/server/access"
	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transferWebhook(event, reference string) []byte {
	return []byte(fmt.Sprintf(`{"event":%q,"data":{"reference":%q}}`, event, reference))
}

func TestRecordPayout(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.seedUser(t, "admin", access.Admin, "0")

	out, err := e.payouts.RecordPayout(ctx, admin, d("1200.50"), "acc_vendor", "ICIC", "cloud hosting")
	require.NoError(t, err)
	assert.Equal(t, models.OutflowPending, out.Status)
	assert.Regexp(t, `^PAY-\d+-admin$`, out.Reference)
	assert.Empty(t, out.WalletEntryID)

	_, sum := e.sums(t)
	assert.True(t, d("1200.50").Equal(sum))
	assert.True(t, d("-1200.50").Equal(e.summary(t).NetBalance))
}

func TestRecordPayout_AdminOnly(t *testing.T) {
	e := newEnv(t)
	student := e.seedUser(t, "u1", access.Student, "0")

	_, err := e.payouts.RecordPayout(context.Background(), student, d("10"), "acc", "ICIC", "x")
	assert.Equal(t, common.KindPermission, common.KindOf(err))
	_, err = e.payouts.RecordPayout(context.Background(), nil, d("10"), "acc", "ICIC", "x")
	assert.Equal(t, common.KindUnauthorized, common.KindOf(err))
	assert.Equal(t, 0, e.gw.Transfers())
}

func TestRecordPayout_Validation(t *testing.T) {
	e := newEnv(t)
	admin := e.seedUser(t, "admin", access.Admin, "0")

	_, err := e.payouts.RecordPayout(context.Background(), admin, d("-1"), "acc", "ICIC", "x")
	assert.Equal(t, common.KindInvalidAmount, common.KindOf(err))
	_, err = e.payouts.RecordPayout(context.Background(), admin, d("1"), " ", "ICIC", "x")
	assert.Equal(t, common.KindValidation, common.KindOf(err))
}

func TestRecordPayout_GatewayFailureWritesNothing(t *testing.T) {
	e := newEnv(t)
	admin := e.seedUser(t, "admin", access.Admin, "0")
	e.gw.TransferErr = errors.New("gateway down")

	_, err := e.payouts.RecordPayout(context.Background(), admin, d("10"), "acc", "ICIC", "x")
	assert.Equal(t, common.KindExternalService, common.KindOf(err))

	_, out := e.sums(t)
	assert.True(t, out.IsZero())
	assert.Nil(t, e.summary(t))
}

func TestHandleTransferWebhook_Idempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.seedUser(t, "admin", access.Admin, "0")
	out, err := e.payouts.RecordPayout(ctx, admin, d("75"), "acc", "ICIC", "stipend")
	require.NoError(t, err)

	body := transferWebhook("transfer.completed", out.Reference)
	for i := 0; i < 3; i++ {
		require.NoError(t, e.payouts.HandleTransferWebhook(ctx, body, webhookSecret))
	}
	assert.Equal(t, models.OutflowCompleted, e.outflow(t, out.Reference).Status)

	// A later failure event cannot reopen a settled outflow.
	require.NoError(t, e.payouts.HandleTransferWebhook(ctx, transferWebhook("transfer.failed", out.Reference), webhookSecret))
	assert.Equal(t, models.OutflowCompleted, e.outflow(t, out.Reference).Status)

	err = e.payouts.SettleTransfer(ctx, out.Reference, models.OutflowFailed)
	assert.ErrorIs(t, err, common.ErrAlreadyProcessed)
}

func TestHandleTransferWebhook_FailedExcludedFromTotals(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.seedUser(t, "admin", access.Admin, "0")
	out, err := e.payouts.RecordPayout(ctx, admin, d("75"), "acc", "ICIC", "stipend")
	require.NoError(t, err)

	require.NoError(t, e.payouts.HandleTransferWebhook(ctx, transferWebhook("transfer.reversed", out.Reference), webhookSecret))
	assert.Equal(t, models.OutflowFailed, e.outflow(t, out.Reference).Status)
	assert.True(t, e.summary(t).TotalOutflow.IsZero())
}

func TestHandleTransferWebhook_Acks(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.payouts.HandleTransferWebhook(ctx, transferWebhook("transfer.completed", "PAY-1-ghost"), webhookSecret))
	require.NoError(t, e.payouts.HandleTransferWebhook(ctx, transferWebhook("payment.captured", "PAY-1-ghost"), webhookSecret))

	err := e.payouts.HandleTransferWebhook(ctx, transferWebhook("transfer.completed", "PAY-1-ghost"), "forged")
	assert.Equal(t, common.KindUnauthorized, common.KindOf(err))

	err = e.payouts.HandleTransferWebhook(ctx, []byte(`{"data":{}}`), webhookSecret)
	assert.Equal(t, common.KindValidation, common.KindOf(err))
}
