package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dmitrijs2005/campusvault/internal/common"
	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/dmitrijs2005/campusvault/internal/server/uow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ uow.Transactor = (*Store)(nil)

func seedWallet(t *testing.T, s *Store, balance int64) {
	t.Helper()
	require.NoError(t, s.Do(context.Background(), "seed", func(ctx context.Context, r *uow.Repos) error {
		return r.Wallets.Create(ctx, &models.Wallet{ID: "w1", UserID: "u1", Balance: decimal.NewFromInt(balance), Currency: "INR", Version: 1})
	}))
}

func balance(t *testing.T, s *Store) decimal.Decimal {
	t.Helper()
	var b decimal.Decimal
	require.NoError(t, s.Do(context.Background(), "read", func(ctx context.Context, r *uow.Repos) error {
		w, err := r.Wallets.GetByID(ctx, "w1")
		if err != nil {
			return err
		}
		b = w.Balance
		return nil
	}))
	return b
}

func TestDo_ErrorDiscardsWrites(t *testing.T) {
	s := NewStore()
	seedWallet(t, s, 100)

	boom := errors.New("boom")
	err := s.Do(context.Background(), "op", func(ctx context.Context, r *uow.Repos) error {
		w, _ := r.Wallets.GetByID(ctx, "w1")
		w.Balance = decimal.Zero
		require.NoError(t, r.Wallets.Update(ctx, w))
		require.NoError(t, r.Cashflow.InsertInflow(ctx, &models.InflowAmount{ID: "i1", Amount: decimal.NewFromInt(1)}))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.True(t, balance(t, s).Equal(decimal.NewFromInt(100)))

	_ = s.Do(context.Background(), "check", func(ctx context.Context, r *uow.Repos) error {
		sum, _ := r.Cashflow.SumInflows(ctx)
		assert.True(t, sum.IsZero())
		return nil
	})
}

func TestDo_PanicDiscardsWritesAndPropagates(t *testing.T) {
	s := NewStore()
	seedWallet(t, s, 100)

	func() {
		defer func() { require.NotNil(t, recover()) }()
		_ = s.Do(context.Background(), "op", func(ctx context.Context, r *uow.Repos) error {
			w, _ := r.Wallets.GetByID(ctx, "w1")
			w.Balance = decimal.Zero
			_ = r.Wallets.Update(ctx, w)
			panic("kaput")
		})
	}()

	assert.True(t, balance(t, s).Equal(decimal.NewFromInt(100)), "store must stay usable and unchanged")
}

func TestDo_HooksRunAfterCommitOnly(t *testing.T) {
	s := NewStore()
	var ran []string

	_ = s.Do(context.Background(), "ok", func(ctx context.Context, r *uow.Repos) error {
		r.AfterCommit(func(context.Context) { ran = append(ran, "ok") })
		return nil
	})
	_ = s.Do(context.Background(), "fail", func(ctx context.Context, r *uow.Repos) error {
		r.AfterCommit(func(context.Context) { ran = append(ran, "fail") })
		return errors.New("x")
	})
	assert.Equal(t, []string{"ok"}, ran)
}

func TestDo_HookMayStartAnotherUnit(t *testing.T) {
	s := NewStore()
	seedWallet(t, s, 1)

	err := s.Do(context.Background(), "outer", func(ctx context.Context, r *uow.Repos) error {
		r.AfterCommit(func(ctx context.Context) {
			_ = s.Do(ctx, "inner", func(ctx context.Context, r *uow.Repos) error { return nil })
		})
		return nil
	})
	require.NoError(t, err)
}

func TestDo_CanceledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Do(ctx, "op", func(context.Context, *uow.Repos) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestWallet_VersionGuard(t *testing.T) {
	s := NewStore()
	seedWallet(t, s, 10)

	_ = s.Do(context.Background(), "op", func(ctx context.Context, r *uow.Repos) error {
		a, _ := r.Wallets.GetByID(ctx, "w1")
		b, _ := r.Wallets.GetByID(ctx, "w1")
		require.NoError(t, r.Wallets.Update(ctx, a))
		assert.ErrorIs(t, r.Wallets.Update(ctx, b), common.ErrVersionConflict)
		return nil
	})
}

func TestDo_SerializesConcurrentUnits(t *testing.T) {
	s := NewStore()
	seedWallet(t, s, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Do(context.Background(), "inc", func(ctx context.Context, r *uow.Repos) error {
				w, err := r.Wallets.GetByID(ctx, "w1")
				if err != nil {
					return err
				}
				w.Balance = w.Balance.Add(decimal.NewFromInt(1))
				return r.Wallets.Update(ctx, w)
			})
		}()
	}
	wg.Wait()

	assert.True(t, balance(t, s).Equal(decimal.NewFromInt(50)))
}

func TestOutflowAndPaymentTransitions(t *testing.T) {
	s := NewStore()
	_ = s.Do(context.Background(), "op", func(ctx context.Context, r *uow.Repos) error {
		require.NoError(t, r.Cashflow.InsertOutflow(ctx, &models.OutflowAmount{Reference: "PAY-1", Amount: decimal.NewFromInt(5), Status: models.OutflowPending}))
		require.NoError(t, r.Cashflow.TransitionOutflow(ctx, "PAY-1", models.OutflowFailed))
		assert.ErrorIs(t, r.Cashflow.TransitionOutflow(ctx, "PAY-1", models.OutflowCompleted), common.ErrAlreadyProcessed)

		sum, _ := r.Cashflow.SumOutflows(ctx)
		assert.True(t, sum.IsZero(), "failed outflows are excluded")

		require.NoError(t, r.Payments.Create(ctx, &models.PaymentTransaction{Reference: "FND-1", Status: models.PaymentPending}))
		assert.ErrorIs(t, r.Payments.Create(ctx, &models.PaymentTransaction{Reference: "FND-1"}), common.ErrorAlreadyExists)
		require.NoError(t, r.Payments.Transition(ctx, "FND-1", models.PaymentCompleted))
		assert.ErrorIs(t, r.Payments.Transition(ctx, "FND-1", models.PaymentCompleted), common.ErrAlreadyProcessed)
		return nil
	})
}
