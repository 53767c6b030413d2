package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

func (r *PostgresRepository) Create(ctx context.Context, p *models.PaymentTransaction) error {
	query := `
		INSERT INTO payment_transactions (id, user_id, reference, amount, currency, status, gateway, gateway_id, payment_link, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`
	_, err := r.db.ExecContext(ctx, query, p.ID, p.UserID, p.Reference, p.Amount, p.Currency,
		string(p.Status), p.Gateway, p.GatewayID, p.PaymentLink, p.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const selectPayment = `
		SELECT id, user_id, reference, amount, currency, status, gateway, gateway_id, payment_link, created_at, updated_at
		FROM payment_transactions
`

func (r *PostgresRepository) GetByReference(ctx context.Context, reference string) (*models.PaymentTransaction, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx, selectPayment+`		WHERE reference = $1`, reference))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) Transition(ctx context.Context, reference string, to models.PaymentStatus) error {
	query := `
		UPDATE payment_transactions
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

func (r *PostgresRepository) ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]*models.PaymentTransaction, error) {
	rows, err := r.db.QueryContext(ctx, selectPayment+`		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.PaymentTransaction
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPayment(s scanner) (*models.PaymentTransaction, error) {
	var (
		p      models.PaymentTransaction
		status string
	)
	err := s.Scan(&p.ID, &p.UserID, &p.Reference, &p.Amount, &p.Currency, &status,
		&p.Gateway, &p.GatewayID, &p.PaymentLink, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = models.PaymentStatus(status)
	return &p, nil
}
