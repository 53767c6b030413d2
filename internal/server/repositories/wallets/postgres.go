package wallets

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

func (r *PostgresRepository) Create(ctx context.Context, w *models.Wallet) error {
	query := `
		INSERT INTO wallets (id, user_id, balance, currency, version)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, w.ID, w.UserID, w.Balance, w.Currency, w.Version).
		Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const selectWallet = `
		SELECT id, user_id, balance, currency, version, created_at, updated_at
		FROM wallets
`

func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*models.Wallet, error) {
	return r.get(ctx, selectWallet+`		WHERE user_id = $1`, userID)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Wallet, error) {
	return r.get(ctx, selectWallet+`		WHERE id = $1`, id)
}

func (r *PostgresRepository) get(ctx context.Context, query string, arg any) (*models.Wallet, error) {
	w := &models.Wallet{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&w.ID, &w.UserID, &w.Balance, &w.Currency, &w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return w, nil
}

func (r *PostgresRepository) Update(ctx context.Context, w *models.Wallet) error {
	query := `
		UPDATE wallets
		SET balance = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND version = $3
		RETURNING version, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, w.Balance, w.ID, w.Version).Scan(&w.Version, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrVersionConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) InsertEntry(ctx context.Context, e *models.WalletEntry) error {
	query := `
		INSERT INTO wallet_entries (id, wallet_id, type, amount, description, status, reference, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.WalletID, string(e.Type), e.Amount, e.Description, string(e.Status), e.Reference, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const selectEntry = `
		SELECT id, wallet_id, type, amount, description, status, reference, created_at, updated_at
		FROM wallet_entries
`

func (r *PostgresRepository) GetEntry(ctx context.Context, id string) (*models.WalletEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, selectEntry+`		WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) ListEntries(ctx context.Context, walletID string) ([]*models.WalletEntry, error) {
	rows, err := r.db.QueryContext(ctx, selectEntry+`		WHERE wallet_id = $1
		ORDER BY created_at, id`, walletID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var entries []*models.WalletEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entries, nil
}

func (r *PostgresRepository) UpdateEntryStatus(ctx context.Context, id string, from, to models.EntryStatus) error {
	query := `
		UPDATE wallet_entries
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`
	res, err := r.db.ExecContext(ctx, query, id, string(from), string(to))
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

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*models.WalletEntry, error) {
	var (
		e      models.WalletEntry
		typ    string
		status string
	)
	if err := s.Scan(&e.ID, &e.WalletID, &typ, &e.Amount, &e.Description, &status, &e.Reference, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Type = models.EntryType(typ)
	e.Status = models.EntryStatus(status)
	return &e, nil
}
