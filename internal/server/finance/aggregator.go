// Package finance maintains the platform-wide inflow/outflow aggregate.
package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/campusvault/internal/common"
	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/dmitrijs2005/campusvault/internal/server/repositories/cashflow"
	"github.com/dmitrijs2005/campusvault/internal/server/repositories/summary"
)

type Aggregator struct {
	now func() time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{now: time.Now}
}

func NewAggregatorWithClock(now func() time.Time) *Aggregator {
	return &Aggregator{now: now}
}

// Recompute rebuilds the summary from the full cash-flow history. Running
// it twice over unchanged history yields the same totals.
//
// Outflows whose transfer failed or was reversed are left out of
// TotalOutflow: the money never left the platform. Every other outflow,
// pending ones included, is summed.
//
// The summary row is locked before summing, so concurrent recomputes
// serialize and the last one to commit sees every committed row.
func (a *Aggregator) Recompute(ctx context.Context, flows cashflow.Repository, sums summary.Repository) (*models.FinancialSummary, error) {
	if err := sums.Lock(ctx); err != nil {
		return nil, fmt.Errorf("lock summary: %w", err)
	}
	in, err := flows.SumInflows(ctx)
	if err != nil {
		return nil, fmt.Errorf("sum inflows: %w", err)
	}
	out, err := flows.SumOutflows(ctx)
	if err != nil {
		return nil, fmt.Errorf("sum outflows: %w", err)
	}

	s := &models.FinancialSummary{
		TotalInflow:  in,
		TotalOutflow: out,
		NetBalance:   in.Sub(out),
		LastUpdated:  a.now().UTC(),
	}
	if err := sums.Upsert(ctx, s); err != nil {
		return nil, fmt.Errorf("upsert summary: %w", err)
	}
	return s, nil
}

// Get returns the stored summary, computing it on first use.
func (a *Aggregator) Get(ctx context.Context, flows cashflow.Repository, sums summary.Repository) (*models.FinancialSummary, error) {
	s, err := sums.Get(ctx)
	if errors.Is(err, common.ErrorNotFound) {
		return a.Recompute(ctx, flows, sums)
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	return s, nil
}
