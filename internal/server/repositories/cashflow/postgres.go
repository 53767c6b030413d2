package cashflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/campusvault/internal/common"
	"github.com/dmitrijs2005/campusvault/internal/dbx"
	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/shopspring/decimal"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) InsertInflow(ctx context.Context, in *models.InflowAmount) error {
	query := `
		INSERT INTO inflow_amounts (id, amount, description, user_id, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, in.ID, in.Amount, in.Description, nullable(in.UserID), in.Reference, in.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) InsertOutflow(ctx context.Context, out *models.OutflowAmount) error {
	query := `
		INSERT INTO outflow_amounts (id, amount, description, account, bank_code, reference, gateway_id, status, wallet_entry_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`
	_, err := r.db.ExecContext(ctx, query, out.ID, out.Amount, out.Description, out.Account, out.BankCode,
		out.Reference, out.GatewayID, string(out.Status), nullable(out.WalletEntryID), out.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetOutflowByReference(ctx context.Context, reference string) (*models.OutflowAmount, error) {
	query := `
		SELECT id, amount, description, account, bank_code, reference, gateway_id, status,
		       COALESCE(wallet_entry_id::text, ''), created_at, updated_at
		FROM outflow_amounts
		WHERE reference = $1
	`
	var (
		o      models.OutflowAmount
		status string
	)
	err := r.db.QueryRowContext(ctx, query, reference).Scan(&o.ID, &o.Amount, &o.Description, &o.Account,
		&o.BankCode, &o.Reference, &o.GatewayID, &status, &o.WalletEntryID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	o.Status = models.OutflowStatus(status)
	return &o, nil
}

func (r *PostgresRepository) TransitionOutflow(ctx context.Context, reference string, to models.OutflowStatus) error {
	query := `
		UPDATE outflow_amounts
		SET status = $2, updated_at = now()
		WHERE reference = $1 AND status = 'pending'
	`
	res, err := r.db.ExecContext(ctx, query, reference, string(to))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrAlreadyProcessed
	}
	return nil
}

func (r *PostgresRepository) SumInflows(ctx context.Context) (decimal.Decimal, error) {
	return r.sum(ctx, `SELECT COALESCE(SUM(amount), 0) FROM inflow_amounts`)
}

func (r *PostgresRepository) SumOutflows(ctx context.Context) (decimal.Decimal, error) {
	return r.sum(ctx, `SELECT COALESCE(SUM(amount), 0) FROM outflow_amounts WHERE status <> 'failed'`)
}

func (r *PostgresRepository) sum(ctx context.Context, query string) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := r.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("db error: %w", err)
	}
	return total, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
