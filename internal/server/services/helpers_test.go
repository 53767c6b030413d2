package services

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/campusvault/internal/server/access"
	"github.com/dmitrijs2005/campusvault/internal/server/finance"
	"github.com/dmitrijs2005/campusvault/internal/server/gateway"
	"github.com/dmitrijs2005/campusvault/internal/server/ledger"
	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/dmitrijs2005/campusvault/internal/server/notify"
	"github.com/dmitrijs2005/campusvault/internal/server/quota"
	"github.com/dmitrijs2005/campusvault/internal/server/repositories/files"
	"github.com/dmitrijs2005/campusvault/internal/server/repositories/memory"
	"github.com/dmitrijs2005/campusvault/internal/server/uow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const webhookSecret = "whsec_test"

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// discardBlobs accepts any content without keeping it.
type discardBlobs struct {
	mu      sync.Mutex
	objects map[string]int64
	deleted []string
}

func newDiscardBlobs() *discardBlobs { return &discardBlobs{objects: map[string]int64{}} }

func (b *discardBlobs) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	n, err := io.Copy(io.Discard, body)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = n
	return key, nil
}

func (b *discardBlobs) Delete(_ context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, path)
	b.deleted = append(b.deleted, path)
	return nil
}

func (b *discardBlobs) PresignGet(_ context.Context, path string) (string, error) {
	return "https://blobs.test/" + path, nil
}

func (b *discardBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

// zeros is a seekable stream of n zero bytes.
type zeros struct {
	n, off int64
}

func (z *zeros) Read(p []byte) (int, error) {
	if z.off >= z.n {
		return 0, io.EOF
	}
	if rem := z.n - z.off; int64(len(p)) > rem {
		p = p[:rem]
	}
	clear(p)
	z.off += int64(len(p))
	return len(p), nil
}

func (z *zeros) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		z.off = offset
	case io.SeekCurrent:
		z.off += offset
	case io.SeekEnd:
		z.off = z.n + offset
	}
	return z.off, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) templates() []notify.Template {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Template
	for _, m := range n.sent {
		out = append(out, m.Template)
	}
	return out
}

// wrapTx lets a test replace repositories of every unit of work.
type wrapTx struct {
	inner uow.Transactor
	wrap  func(r *uow.Repos)
}

func (w wrapTx) Do(ctx context.Context, name string, fn uow.Func) error {
	return w.inner.Do(ctx, name, func(ctx context.Context, r *uow.Repos) error {
		w.wrap(r)
		return fn(ctx, r)
	})
}

type failingFiles struct {
	files.Repository
	err error
}

func (f failingFiles) Create(context.Context, *models.File) error { return f.err }

type env struct {
	store    *memory.Store
	gw       *gateway.Fake
	blobs    *discardBlobs
	notifier *recordingNotifier
	deps     Deps

	users   *UserService
	files   *FileService
	storage *StorageService
	wallets *WalletService
	payouts *PayoutService
	finance *FinanceService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	var tick atomic.Int64
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	now := func() time.Time { return base.Add(time.Duration(tick.Add(1)) * time.Millisecond) }

	e := &env{
		store:    memory.NewStore(),
		gw:       gateway.NewFake(webhookSecret),
		blobs:    newDiscardBlobs(),
		notifier: &recordingNotifier{},
	}
	e.deps = Deps{
		Tx:       e.store,
		Ledger:   ledger.NewWithClock(now),
		Quota:    quota.DefaultTracker(),
		Finance:  finance.NewAggregatorWithClock(now),
		Gateway:  e.gw,
		Blobs:    e.blobs,
		Notifier: e.notifier,
		Now:      now,
		Currency: "INR",
	}
	e.build()
	return e
}

func (e *env) build() {
	e.users = NewUserService(e.deps, UserConfig{
		JWTSecret:                    []byte("k"),
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
		AdminEmail:                   "admin@campus.test",
	})
	e.files = NewFileService(e.deps)
	e.storage = NewStorageService(e.deps)
	e.wallets = NewWalletService(e.deps)
	e.payouts = NewPayoutService(e.deps)
	e.finance = NewFinanceService(e.deps)
}

func (e *env) do(t *testing.T, fn uow.Func) {
	t.Helper()
	require.NoError(t, e.store.Do(context.Background(), "test", fn))
}

// seedUser creates a user with a wallet holding balance, bypassing
// password hashing.
func (e *env) seedUser(t *testing.T, id string, role access.Role, balance string) *access.Principal {
	t.Helper()
	e.do(t, func(ctx context.Context, r *uow.Repos) error {
		if _, err := r.Users.Create(ctx, &models.User{ID: id, Email: id + "@campus.test", Role: role.Name}); err != nil {
			return err
		}
		return r.Wallets.Create(ctx, &models.Wallet{ID: "w-" + id, UserID: id, Balance: decimal.Zero, Currency: "INR", Version: 1})
	})
	if b := d(balance); b.IsPositive() {
		e.do(t, func(ctx context.Context, r *uow.Repos) error {
			w, err := r.Wallets.GetByUserID(ctx, id)
			if err != nil {
				return err
			}
			entry, err := e.deps.Ledger.Deposit(w, b, "seed")
			if err != nil {
				return err
			}
			return e.deps.Ledger.Save(ctx, r.Wallets, w, entry)
		})
	}
	return &access.Principal{UserID: id, Role: role}
}

func (e *env) seedPlan(t *testing.T, id string, bytes int64, price string) {
	t.Helper()
	e.do(t, func(ctx context.Context, r *uow.Repos) error {
		return r.Plans.Upsert(ctx, &models.StoragePlan{ID: id, Name: id, Bytes: bytes, Price: d(price), Currency: "INR", Active: true})
	})
}

func (e *env) seedSubscription(t *testing.T, userID string, used, total int64) {
	t.Helper()
	e.do(t, func(ctx context.Context, r *uow.Repos) error {
		return r.Subscriptions.Create(ctx, &models.StoragePurchase{
			ID: "sub-" + userID, UserID: userID, PlanID: "seeded",
			TotalStorage: total, UsedStorage: used, Status: e.deps.Quota.Status(&models.StoragePurchase{UsedStorage: used, TotalStorage: total}),
			AmountPaid: decimal.Zero, Version: 1,
		})
	})
}

func (e *env) wallet(t *testing.T, userID string) (*models.Wallet, []*models.WalletEntry) {
	t.Helper()
	var w *models.Wallet
	var entries []*models.WalletEntry
	e.do(t, func(ctx context.Context, r *uow.Repos) error {
		var err error
		if w, err = r.Wallets.GetByUserID(ctx, userID); err != nil {
			return err
		}
		entries, err = r.Wallets.ListEntries(ctx, w.ID)
		return err
	})
	return w, entries
}

func (e *env) balance(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	w, _ := e.wallet(t, userID)
	return w.Balance
}

func (e *env) subscriptions(t *testing.T, userID string) []*models.StoragePurchase {
	t.Helper()
	var out []*models.StoragePurchase
	e.do(t, func(ctx context.Context, r *uow.Repos) error {
		var err error
		out, err = r.Subscriptions.ListByUser(ctx, userID)
		return err
	})
	return out
}

func (e *env) sums(t *testing.T) (in, out decimal.Decimal) {
	t.Helper()
	e.do(t, func(ctx context.Context, r *uow.Repos) error {
		var err error
		if in, err = r.Cashflow.SumInflows(ctx); err != nil {
			return err
		}
		out, err = r.Cashflow.SumOutflows(ctx)
		return err
	})
	return in, out
}

// summary returns the stored aggregate, or nil if none was written yet.
func (e *env) summary(t *testing.T) *models.FinancialSummary {
	t.Helper()
	var s *models.FinancialSummary
	require.NoError(t, e.store.Do(context.Background(), "test", func(ctx context.Context, r *uow.Repos) error {
		got, err := r.Summary.Get(ctx)
		if err == nil {
			s = got
		}
		return nil
	}))
	return s
}

func (e *env) outflow(t *testing.T, reference string) *models.OutflowAmount {
	t.Helper()
	var o *models.OutflowAmount
	e.do(t, func(ctx context.Context, r *uow.Repos) error {
		var err error
		o, err = r.Cashflow.GetOutflowByReference(ctx, reference)
		return err
	})
	return o
}
