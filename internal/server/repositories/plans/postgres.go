package plans

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

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.StoragePlan, error) {
	query := `
		SELECT id, name, bytes, price, currency, active
		FROM storage_plans
		WHERE id = $1
	`
	p := &models.StoragePlan{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.Bytes, &p.Price, &p.Currency, &p.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) ListActive(ctx context.Context) ([]*models.StoragePlan, error) {
	query := `
		SELECT id, name, bytes, price, currency, active
		FROM storage_plans
		WHERE active
		ORDER BY bytes
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.StoragePlan
	for rows.Next() {
		p := &models.StoragePlan{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Bytes, &p.Price, &p.Currency, &p.Active); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, p *models.StoragePlan) error {
	query := `
		INSERT INTO storage_plans (id, name, bytes, price, currency, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, bytes = EXCLUDED.bytes, price = EXCLUDED.price,
		    currency = EXCLUDED.currency, active = EXCLUDED.active
	`
	if _, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.Bytes, p.Price, p.Currency, p.Active); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
