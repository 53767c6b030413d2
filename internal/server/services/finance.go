package services

import (
	"context"

	"github.com/dmitrijs2005/campusvault/internal/server/access"
	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/dmitrijs2005/campusvault/internal/server/uow"
)

type FinanceService struct {
	d Deps
}

func NewFinanceService(d Deps) *FinanceService {
	d.defaults()
	return &FinanceService{d: d}
}

// Summary returns the cached platform aggregate, building it on first use.
func (s *FinanceService) Summary(ctx context.Context, p *access.Principal) (*models.FinancialSummary, error) {
	if err := access.Authorize(p, access.FinanceRead); err != nil {
		return nil, err
	}
	var sum *models.FinancialSummary
	err := s.d.Tx.Do(ctx, "finance_summary", func(ctx context.Context, r *uow.Repos) error {
		var err error
		sum, err = s.d.Finance.Get(ctx, r.Cashflow, r.Summary)
		return err
	})
	if err != nil {
		return nil, outcome(err)
	}
	return sum, nil
}

// Refresh recomputes the aggregate from the full cash-flow history.
func (s *FinanceService) Refresh(ctx context.Context) (*models.FinancialSummary, error) {
	var sum *models.FinancialSummary
	err := s.d.Tx.Do(ctx, "finance_refresh", func(ctx context.Context, r *uow.Repos) error {
		var err error
		sum, err = s.d.Finance.Recompute(ctx, r.Cashflow, r.Summary)
		return err
	})
	if err != nil {
		return nil, outcome(err)
	}
	return sum, nil
}
