package subscriptions

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

const selectPurchase = `
		SELECT id, user_id, plan_id, total_storage, used_storage, status, amount_paid, version, created_at, updated_at
		FROM storage_purchases
`

func (r *PostgresRepository) Create(ctx context.Context, s *models.StoragePurchase) error {
	query := `
		INSERT INTO storage_purchases (id, user_id, plan_id, total_storage, used_storage, status, amount_paid, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		s.ID, s.UserID, s.PlanID, s.TotalStorage, s.UsedStorage, string(s.Status), s.AmountPaid, s.Version).
		Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			// concurrent first purchase of the same plan; a retry takes the update path
			return common.ErrVersionConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.StoragePurchase, error) {
	return r.getOne(ctx, selectPurchase+`		WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByUserAndPlan(ctx context.Context, userID, planID string) (*models.StoragePurchase, error) {
	return r.getOne(ctx, selectPurchase+`		WHERE user_id = $1 AND plan_id = $2`, userID, planID)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.StoragePurchase, error) {
	rows, err := r.db.QueryContext(ctx, selectPurchase+`		WHERE user_id = $1
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.StoragePurchase
	for rows.Next() {
		s, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Update(ctx context.Context, s *models.StoragePurchase) error {
	query := `
		UPDATE storage_purchases
		SET total_storage = $1, used_storage = $2, status = $3, amount_paid = $4,
		    version = version + 1, updated_at = now()
		WHERE id = $5 AND version = $6
		RETURNING version, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		s.TotalStorage, s.UsedStorage, string(s.Status), s.AmountPaid, s.ID, s.Version).
		Scan(&s.Version, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrVersionConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.StoragePurchase, error) {
	s, err := scanPurchase(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPurchase(sc scanner) (*models.StoragePurchase, error) {
	var (
		s      models.StoragePurchase
		status string
	)
	err := sc.Scan(&s.ID, &s.UserID, &s.PlanID, &s.TotalStorage, &s.UsedStorage, &status,
		&s.AmountPaid, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = models.QuotaStatus(status)
	return &s, nil
}
