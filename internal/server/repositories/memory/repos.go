package memory

import (
	"context"
	"sort"
	"time"

	"github.com/dmitrijs2005/campusvault/internal/common"
	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/shopspring/decimal"
)

type userRepo struct {
	st  *state
	now func() time.Time
}

func (r *userRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	for _, existing := range r.st.users {
		if existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	if u.ID == "" {
		u.ID = r.st.nextID("user")
	}
	u.CreatedAt = r.now()
	c := *u
	r.st.users[u.ID] = &c
	return u, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range r.st.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *userRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	u, ok := r.st.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

type refreshTokenRepo struct {
	st  *state
	now func() time.Time
}

func (r *refreshTokenRepo) Create(_ context.Context, userID, token string, expires time.Time) error {
	r.st.refreshTokens[token] = &models.RefreshToken{
		ID: r.st.nextID("rt"), UserID: userID, Token: token, Expires: expires, CreatedAt: r.now(),
	}
	return nil
}

func (r *refreshTokenRepo) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := r.st.refreshTokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *rt
	return &c, nil
}

func (r *refreshTokenRepo) Delete(_ context.Context, token string) error {
	delete(r.st.refreshTokens, token)
	return nil
}

func (r *refreshTokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for k, rt := range r.st.refreshTokens {
		if rt.Expires.Before(now) {
			delete(r.st.refreshTokens, k)
			n++
		}
	}
	return n, nil
}

type walletRepo struct {
	st  *state
	now func() time.Time
}

func (r *walletRepo) Create(_ context.Context, w *models.Wallet) error {
	for _, existing := range r.st.wallets {
		if existing.UserID == w.UserID {
			return common.ErrorAlreadyExists
		}
	}
	w.CreatedAt, w.UpdatedAt = r.now(), r.now()
	c := *w
	r.st.wallets[w.ID] = &c
	return nil
}

func (r *walletRepo) GetByUserID(_ context.Context, userID string) (*models.Wallet, error) {
	for _, w := range r.st.wallets {
		if w.UserID == userID {
			c := *w
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *walletRepo) GetByID(_ context.Context, id string) (*models.Wallet, error) {
	w, ok := r.st.wallets[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *w
	return &c, nil
}

func (r *walletRepo) Update(_ context.Context, w *models.Wallet) error {
	stored, ok := r.st.wallets[w.ID]
	if !ok || stored.Version != w.Version {
		return common.ErrVersionConflict
	}
	w.Version++
	w.UpdatedAt = r.now()
	c := *w
	r.st.wallets[w.ID] = &c
	return nil
}

func (r *walletRepo) InsertEntry(_ context.Context, e *models.WalletEntry) error {
	if _, ok := r.st.entries[e.ID]; ok {
		return common.ErrorAlreadyExists
	}
	c := *e
	c.UpdatedAt = c.CreatedAt
	r.st.entries[e.ID] = &c
	r.st.entryOrder = append(r.st.entryOrder, e.ID)
	return nil
}

func (r *walletRepo) GetEntry(_ context.Context, id string) (*models.WalletEntry, error) {
	e, ok := r.st.entries[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *e
	return &c, nil
}

func (r *walletRepo) ListEntries(_ context.Context, walletID string) ([]*models.WalletEntry, error) {
	var out []*models.WalletEntry
	for _, id := range r.st.entryOrder {
		if e := r.st.entries[id]; e.WalletID == walletID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *walletRepo) UpdateEntryStatus(_ context.Context, id string, from, to models.EntryStatus) error {
	e, ok := r.st.entries[id]
	if !ok || e.Status != from {
		return common.ErrAlreadyProcessed
	}
	e.Status = to
	e.UpdatedAt = r.now()
	return nil
}

type planRepo struct {
	st *state
}

func (r *planRepo) GetByID(_ context.Context, id string) (*models.StoragePlan, error) {
	p, ok := r.st.plans[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *p
	return &c, nil
}

func (r *planRepo) ListActive(_ context.Context) ([]*models.StoragePlan, error) {
	var out []*models.StoragePlan
	for _, p := range r.st.plans {
		if p.Active {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bytes < out[j].Bytes })
	return out, nil
}

func (r *planRepo) Upsert(_ context.Context, p *models.StoragePlan) error {
	c := *p
	r.st.plans[p.ID] = &c
	return nil
}

type subscriptionRepo struct {
	st  *state
	now func() time.Time
}

func (r *subscriptionRepo) Create(_ context.Context, s *models.StoragePurchase) error {
	for _, existing := range r.st.subs {
		if existing.UserID == s.UserID && existing.PlanID == s.PlanID {
			return common.ErrVersionConflict
		}
	}
	s.CreatedAt, s.UpdatedAt = r.now(), r.now()
	c := *s
	r.st.subs[s.ID] = &c
	r.st.subOrder = append(r.st.subOrder, s.ID)
	return nil
}

func (r *subscriptionRepo) GetByID(_ context.Context, id string) (*models.StoragePurchase, error) {
	s, ok := r.st.subs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *s
	return &c, nil
}

func (r *subscriptionRepo) GetByUserAndPlan(_ context.Context, userID, planID string) (*models.StoragePurchase, error) {
	for _, id := range r.st.subOrder {
		if s := r.st.subs[id]; s.UserID == userID && s.PlanID == planID {
			c := *s
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *subscriptionRepo) ListByUser(_ context.Context, userID string) ([]*models.StoragePurchase, error) {
	var out []*models.StoragePurchase
	for _, id := range r.st.subOrder {
		if s := r.st.subs[id]; s.UserID == userID {
			c := *s
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *subscriptionRepo) Update(_ context.Context, s *models.StoragePurchase) error {
	stored, ok := r.st.subs[s.ID]
	if !ok || stored.Version != s.Version {
		return common.ErrVersionConflict
	}
	s.Version++
	s.UpdatedAt = r.now()
	c := *s
	r.st.subs[s.ID] = &c
	return nil
}

type fileRepo struct {
	st *state
}

func (r *fileRepo) Create(_ context.Context, f *models.File) error {
	if _, ok := r.st.files[f.ID]; ok {
		return common.ErrorAlreadyExists
	}
	c := *f
	r.st.files[f.ID] = &c
	return nil
}

func (r *fileRepo) GetByID(_ context.Context, id string) (*models.File, error) {
	f, ok := r.st.files[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *f
	return &c, nil
}

func (r *fileRepo) ListByUser(_ context.Context, userID string) ([]*models.File, error) {
	var out []*models.File
	for _, f := range r.st.files {
		if f.UserID == userID {
			c := *f
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fileRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.st.files[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.st.files, id)
	return nil
}

type cashflowRepo struct {
	st  *state
	now func() time.Time
}

func (r *cashflowRepo) InsertInflow(_ context.Context, in *models.InflowAmount) error {
	c := *in
	r.st.inflows = append(r.st.inflows, &c)
	return nil
}

func (r *cashflowRepo) InsertOutflow(_ context.Context, out *models.OutflowAmount) error {
	if _, ok := r.st.outflows[out.Reference]; ok {
		return common.ErrorAlreadyExists
	}
	c := *out
	c.UpdatedAt = c.CreatedAt
	r.st.outflows[out.Reference] = &c
	return nil
}

func (r *cashflowRepo) GetOutflowByReference(_ context.Context, reference string) (*models.OutflowAmount, error) {
	o, ok := r.st.outflows[reference]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *o
	return &c, nil
}

func (r *cashflowRepo) TransitionOutflow(_ context.Context, reference string, to models.OutflowStatus) error {
	o, ok := r.st.outflows[reference]
	if !ok || o.Status != models.OutflowPending {
		return common.ErrAlreadyProcessed
	}
	o.Status = to
	o.UpdatedAt = r.now()
	return nil
}

func (r *cashflowRepo) SumInflows(_ context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, in := range r.st.inflows {
		total = total.Add(in.Amount)
	}
	return total, nil
}

func (r *cashflowRepo) SumOutflows(_ context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, o := range r.st.outflows {
		if o.Status != models.OutflowFailed {
			total = total.Add(o.Amount)
		}
	}
	return total, nil
}

type summaryRepo struct {
	st *state
}

func (r *summaryRepo) Get(_ context.Context) (*models.FinancialSummary, error) {
	if r.st.summary == nil {
		return nil, common.ErrorNotFound
	}
	c := *r.st.summary
	return &c, nil
}

// Lock is a no-op: units of work on the memory store never overlap.
func (r *summaryRepo) Lock(_ context.Context) error { return nil }

func (r *summaryRepo) Upsert(_ context.Context, s *models.FinancialSummary) error {
	c := *s
	r.st.summary = &c
	return nil
}

type paymentRepo struct {
	st  *state
	now func() time.Time
}

func (r *paymentRepo) Create(_ context.Context, p *models.PaymentTransaction) error {
	if _, ok := r.st.payments[p.Reference]; ok {
		return common.ErrorAlreadyExists
	}
	c := *p
	c.UpdatedAt = c.CreatedAt
	r.st.payments[p.Reference] = &c
	return nil
}

func (r *paymentRepo) GetByReference(_ context.Context, reference string) (*models.PaymentTransaction, error) {
	p, ok := r.st.payments[reference]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *p
	return &c, nil
}

func (r *paymentRepo) Transition(_ context.Context, reference string, to models.PaymentStatus) error {
	p, ok := r.st.payments[reference]
	if !ok || p.Status != models.PaymentPending {
		return common.ErrAlreadyProcessed
	}
	p.Status = to
	p.UpdatedAt = r.now()
	return nil
}

func (r *paymentRepo) ListPendingBefore(_ context.Context, before time.Time, limit int) ([]*models.PaymentTransaction, error) {
	var out []*models.PaymentTransaction
	for _, p := range r.st.payments {
		if p.Status == models.PaymentPending && p.CreatedAt.Before(before) {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
