package summary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/campusvault/internal/common"
	"github.com/dmitrijs2005/campusvault/internal/dbx"
	"github.com/dmitrijs2005/campusvault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context) (*models.FinancialSummary, error) {
	query := `
		SELECT total_inflow, total_outflow, net_balance, last_updated
		FROM financial_summary
		WHERE id = 1
	`
	s := &models.FinancialSummary{}
	err := r.db.QueryRowContext(ctx, query).Scan(&s.TotalInflow, &s.TotalOutflow, &s.NetBalance, &s.LastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, s *models.FinancialSummary) error {
	query := `
		INSERT INTO financial_summary (id, total_inflow, total_outflow, net_balance, last_updated)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET total_inflow = EXCLUDED.total_inflow,
		    total_outflow = EXCLUDED.total_outflow,
		    net_balance = EXCLUDED.net_balance,
		    last_updated = EXCLUDED.last_updated
	`
	if _, err := r.db.ExecContext(ctx, query, s.TotalInflow, s.TotalOutflow, s.NetBalance, s.LastUpdated); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Lock takes the row lock through an upsert so it works before the first
// summary exists. A concurrent recompute waits here until the holder
// commits, and its SUMs then see the holder's rows.
func (r *PostgresRepository) Lock(ctx context.Context) error {
	query := `
		INSERT INTO financial_summary (id) VALUES (1)
		ON CONFLICT (id) DO UPDATE SET id = financial_summary.id
	`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
