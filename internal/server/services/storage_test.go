package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/campusvault/internal/common"
	"github.com/dmitrijs2005/campusvault/internal/server/access"
	"github.com/dmitrijs2005/campusvault/internal/server/ledger"
	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/dmitrijs2005/campusvault/internal/server/quota"
	"github.com/dmitrijs2005/campusvault/internal/server/uow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchaseStorage_HappyPath(t *testing.T) {
	e := newEnv(t)
	p := e.seedUser(t, "u1", access.Student, "1000")
	e.seedPlan(t, "basic", gib, "500")

	res, err := e.storage.PurchaseStorage(context.Background(), p, "u1", "basic", 0)
	require.NoError(t, err)
	assert.True(t, d("500").Equal(res.Amount))
	assert.Equal(t, int64(gib), res.Subscription.TotalStorage)
	assert.Equal(t, models.QuotaActive, res.Subscription.Status)
	assert.Equal(t, models.EntryCompleted, res.Entry.Status)

	w, entries := e.wallet(t, "u1")
	assert.True(t, d("500").Equal(w.Balance), w.Balance.String())
	require.NoError(t, ledger.Verify(w, entries))

	in, _ := e.sums(t)
	assert.True(t, d("500").Equal(in))
	sum := e.summary(t)
	require.NotNil(t, sum)
	assert.True(t, d("500").Equal(sum.NetBalance))
}

func TestPurchaseStorage_AccumulatesIntoSubscription(t *testing.T) {
	e := newEnv(t)
	p := e.seedUser(t, "u1", access.Student, "1000")
	e.seedPlan(t, "basic", gib, "300")

	_, err := e.storage.PurchaseStorage(context.Background(), p, "u1", "basic", 0)
	require.NoError(t, err)
	res, err := e.storage.PurchaseStorage(context.Background(), p, "u1", "basic", 0)
	require.NoError(t, err)

	assert.Equal(t, int64(2*gib), res.Subscription.TotalStorage)
	assert.True(t, d("600").Equal(res.Subscription.AmountPaid))
	assert.Len(t, e.subscriptions(t, "u1"), 1)
	assert.True(t, d("400").Equal(e.balance(t, "u1")))
}

func TestPurchaseStorage_InsufficientFunds(t *testing.T) {
	e := newEnv(t)
	p := e.seedUser(t, "u1", access.Student, "1000")
	e.seedPlan(t, "pro", gib, "1500")

	_, err := e.storage.PurchaseStorage(context.Background(), p, "u1", "pro", 0)
	require.Error(t, err)
	assert.Equal(t, common.KindInsufficientFunds, common.KindOf(err))
	assert.True(t, errors.Is(err, common.ErrInsufficientFunds))

	assert.True(t, d("1000").Equal(e.balance(t, "u1")))
	in, _ := e.sums(t)
	assert.True(t, in.IsZero())
	assert.Nil(t, e.summary(t))
	assert.Empty(t, e.subscriptions(t, "u1"))
}

func TestPurchaseStorage_FailureBetweenStepsRollsBack(t *testing.T) {
	for _, step := range []string{stepCharged, stepInflow, stepGranted, stepRecomputed} {
		t.Run(step, func(t *testing.T) {
			e := newEnv(t)
			p := e.seedUser(t, "u1", access.Student, "1000")
			e.seedPlan(t, "basic", gib, "500")
			e.storage.fault = func(s string) error {
				if s == step {
					return errors.New("injected failure")
				}
				return nil
			}

			_, err := e.storage.PurchaseStorage(context.Background(), p, "u1", "basic", 0)
			require.Error(t, err)
			assert.Equal(t, common.KindInternal, common.KindOf(err))

			w, entries := e.wallet(t, "u1")
			assert.True(t, d("1000").Equal(w.Balance), w.Balance.String())
			assert.Len(t, entries, 1)
			in, _ := e.sums(t)
			assert.True(t, in.IsZero())
			assert.Empty(t, e.subscriptions(t, "u1"))
			assert.Nil(t, e.summary(t))
			assert.Empty(t, e.notifier.templates())
		})
	}
}

func TestPurchaseStorage_ProRata(t *testing.T) {
	e := newEnv(t)
	p := e.seedUser(t, "u1", access.Student, "1000")
	e.seedPlan(t, "basic", gib, "500")

	res, err := e.storage.PurchaseStorage(context.Background(), p, "u1", "basic", gib/4)
	require.NoError(t, err)
	assert.True(t, d("125").Equal(res.Amount))
	assert.Equal(t, int64(gib/4), res.Subscription.TotalStorage)
}

func TestPrice(t *testing.T) {
	plan := &models.StoragePlan{Bytes: 3, Price: d("10")}
	assert.True(t, d("10").Equal(Price(plan, 3)))
	assert.True(t, d("3.33").Equal(Price(plan, 1)))
	assert.True(t, d("20").Equal(Price(plan, 6)))
}

func TestPurchaseStorage_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.seedUser(t, "u1", access.Student, "1000")
	e.seedUser(t, "u2", access.Student, "1000")
	e.seedPlan(t, "basic", gib, "500")
	e.do(t, func(ctx context.Context, r *uow.Repos) error {
		return r.Plans.Upsert(ctx, &models.StoragePlan{ID: "retired", Name: "retired", Bytes: gib, Price: d("1"), Currency: "INR"})
	})

	_, err := e.storage.PurchaseStorage(ctx, p, "u1", "missing", 0)
	assert.Equal(t, common.KindNotFound, common.KindOf(err))

	_, err = e.storage.PurchaseStorage(ctx, p, "u1", "retired", 0)
	assert.Equal(t, common.KindValidation, common.KindOf(err))

	_, err = e.storage.PurchaseStorage(ctx, p, "u2", "basic", 0)
	assert.Equal(t, common.KindPermission, common.KindOf(err))

	_, err = e.storage.PurchaseStorage(ctx, p, "u1", "basic", -1)
	assert.Equal(t, common.KindValidation, common.KindOf(err))
}

func TestPlansCatalog(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	student := e.seedUser(t, "u1", access.Student, "0")
	admin := e.seedUser(t, "a1", access.Admin, "0")

	plan := &models.StoragePlan{ID: "team", Name: "Team", Bytes: 10 * gib, Price: d("900"), Active: true}
	assert.Equal(t, common.KindPermission, common.KindOf(e.storage.UpsertPlan(ctx, student, plan)))
	require.NoError(t, e.storage.UpsertPlan(ctx, admin, plan))
	assert.Equal(t, "INR", plan.Currency)

	bad := &models.StoragePlan{ID: "free", Name: "Free", Bytes: gib, Active: true}
	assert.Equal(t, common.KindInvalidAmount, common.KindOf(e.storage.UpsertPlan(ctx, admin, bad)))

	plans, err := e.storage.ListPlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "team", plans[0].ID)

	subs, err := e.storage.ListSubscriptions(ctx, student, "u1")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestListSubscriptions_UploadPolicyStatus(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	student := e.seedUser(t, "u1", access.Student, "0")

	// 5 MiB free is active by usage ratio but low by remaining bytes.
	e.do(t, func(ctx context.Context, r *uow.Repos) error {
		return r.Subscriptions.Create(ctx, &models.StoragePurchase{
			ID: "sub-u1", UserID: "u1", PlanID: "seeded",
			TotalStorage: 5 * quota.MiB, Status: models.QuotaActive,
			AmountPaid: decimal.Zero, Version: 1,
		})
	})

	subs, err := e.storage.ListSubscriptions(ctx, student, "u1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, models.QuotaLow, subs[0].Status)

	e.do(t, func(ctx context.Context, r *uow.Repos) error {
		stored, err := r.Subscriptions.GetByID(ctx, "sub-u1")
		require.NoError(t, err)
		assert.Equal(t, models.QuotaActive, stored.Status)
		return nil
	})

	other := e.seedUser(t, "u2", access.Student, "0")
	_, err = e.storage.ListSubscriptions(ctx, other, "u1")
	assert.Equal(t, common.KindPermission, common.KindOf(err))
}
