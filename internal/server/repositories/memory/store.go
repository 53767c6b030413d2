// Package memory is an in-process implementation of every repository and
// of uow.Transactor. Units of work are serialized; each one works on a deep
// copy of the state that replaces the committed state only on success.
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/dmitrijs2005/campusvault/internal/server/uow"
)

type state struct {
	users         map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	wallets       map[string]*models.Wallet
	entries       map[string]*models.WalletEntry
	entryOrder    []string
	plans         map[string]*models.StoragePlan
	subs          map[string]*models.StoragePurchase
	subOrder      []string
	files         map[string]*models.File
	inflows       []*models.InflowAmount
	outflows      map[string]*models.OutflowAmount
	summary       *models.FinancialSummary
	payments      map[string]*models.PaymentTransaction
	seq           int64
}

func newState() *state {
	return &state{
		users:         map[string]*models.User{},
		refreshTokens: map[string]*models.RefreshToken{},
		wallets:       map[string]*models.Wallet{},
		entries:       map[string]*models.WalletEntry{},
		plans:         map[string]*models.StoragePlan{},
		subs:          map[string]*models.StoragePurchase{},
		files:         map[string]*models.File{},
		outflows:      map[string]*models.OutflowAmount{},
		payments:      map[string]*models.PaymentTransaction{},
	}
}

func cloneMap[T any](m map[string]*T) map[string]*T {
	out := make(map[string]*T, len(m))
	for k, v := range m {
		c := *v
		out[k] = &c
	}
	return out
}

func (s *state) clone() *state {
	c := &state{
		users:         cloneMap(s.users),
		refreshTokens: cloneMap(s.refreshTokens),
		wallets:       cloneMap(s.wallets),
		entries:       cloneMap(s.entries),
		entryOrder:    append([]string(nil), s.entryOrder...),
		plans:         cloneMap(s.plans),
		subs:          cloneMap(s.subs),
		subOrder:      append([]string(nil), s.subOrder...),
		files:         cloneMap(s.files),
		outflows:      cloneMap(s.outflows),
		payments:      cloneMap(s.payments),
		seq:           s.seq,
	}
	c.inflows = make([]*models.InflowAmount, len(s.inflows))
	for i, in := range s.inflows {
		v := *in
		c.inflows[i] = &v
	}
	if s.summary != nil {
		v := *s.summary
		c.summary = &v
	}
	return c
}

func (s *state) nextID(prefix string) string {
	s.seq++
	return prefix + "-" + strconv.FormatInt(s.seq, 10)
}

// Store is safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{state: newState(), now: time.Now}
}

func (s *Store) repos(st *state) *uow.Repos {
	return &uow.Repos{
		Users:         &userRepo{st: st, now: s.now},
		RefreshTokens: &refreshTokenRepo{st: st, now: s.now},
		Wallets:       &walletRepo{st: st, now: s.now},
		Plans:         &planRepo{st: st},
		Subscriptions: &subscriptionRepo{st: st, now: s.now},
		Files:         &fileRepo{st: st},
		Cashflow:      &cashflowRepo{st: st, now: s.now},
		Summary:       &summaryRepo{st: st},
		Payments:      &paymentRepo{st: st, now: s.now},
	}
}

// Do runs fn against a private copy of the state and publishes it only if
// fn succeeds. Panics discard the copy and propagate. After-commit hooks
// run outside the store lock.
func (s *Store) Do(ctx context.Context, name string, fn uow.Func) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, err := s.run(ctx, fn)
	if err != nil {
		return err
	}
	r.RunHooks(ctx)
	return nil
}

func (s *Store) run(ctx context.Context, fn uow.Func) (*uow.Repos, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	r := s.repos(working)
	if err := fn(ctx, r); err != nil {
		return nil, err
	}
	s.state = working
	return r, nil
}

