package cashflow

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/campusvault/internal/common"
	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestInsertInflow(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectExec(`^INSERT\s+INTO\s+inflow_amounts\b`).
		WithArgs("i1", decimal.NewFromInt(500), "storage purchase", "u1", "", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.InsertInflow(context.Background(), &models.InflowAmount{
		ID: "i1", Amount: decimal.NewFromInt(500), Description: "storage purchase", UserID: "u1", CreatedAt: now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertOutflow_NullEntryAndDuplicate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()
	out := &models.OutflowAmount{
		ID: "o1", Amount: decimal.NewFromInt(75), Account: "123", BankCode: "HDFC",
		Reference: "PAY-1-admin", GatewayID: "trf_1", Status: models.OutflowPending, CreatedAt: now,
	}

	mock.ExpectExec(`^INSERT\s+INTO\s+outflow_amounts\b`).
		WithArgs("o1", decimal.NewFromInt(75), "", "123", "HDFC", "PAY-1-admin", "trf_1", "pending", nil, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.InsertOutflow(context.Background(), out))

	mock.ExpectExec(`INSERT\s+INTO\s+outflow_amounts`).WillReturnError(&pgconn.PgError{Code: "23505"})
	assert.ErrorIs(t, repo.InsertOutflow(context.Background(), out), common.ErrorAlreadyExists)
}

func TestGetOutflowByReference(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	cols := []string{"id", "amount", "description", "account", "bank_code", "reference", "gateway_id", "status", "wallet_entry_id", "created_at", "updated_at"}

	mock.ExpectQuery(`FROM\s+outflow_amounts\s+WHERE\s+reference\s*=\s*\$1$`).
		WithArgs("PAY-1-admin").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("o1", "75", "", "123", "HDFC", "PAY-1-admin", "trf_1", "pending", "", time.Now(), time.Now()))

	o, err := repo.GetOutflowByReference(context.Background(), "PAY-1-admin")
	require.NoError(t, err)
	assert.Equal(t, models.OutflowPending, o.Status)
	assert.Empty(t, o.WalletEntryID)

	mock.ExpectQuery(`FROM\s+outflow_amounts`).WithArgs("nope").WillReturnError(sql.ErrNoRows)
	_, err = repo.GetOutflowByReference(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestTransitionOutflow_OnlyFromPending(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	q := `UPDATE\s+outflow_amounts\s+SET\s+status\s*=\s*\$2.*WHERE\s+reference\s*=\s*\$1\s+AND\s+status\s*=\s*'pending'$`

	mock.ExpectExec(q).WithArgs("PAY-1", "completed").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.TransitionOutflow(context.Background(), "PAY-1", models.OutflowCompleted))

	mock.ExpectExec(q).WithArgs("PAY-1", "completed").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.TransitionOutflow(context.Background(), "PAY-1", models.OutflowCompleted), common.ErrAlreadyProcessed)
}

func TestSums(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT\s+COALESCE\(SUM\(amount\),\s*0\)\s+FROM\s+inflow_amounts$`).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("1234.50"))
	mock.ExpectQuery(`FROM\s+outflow_amounts\s+WHERE\s+status\s*<>\s*'failed'$`).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("0"))

	in, err := repo.SumInflows(context.Background())
	require.NoError(t, err)
	assert.True(t, in.Equal(decimal.RequireFromString("1234.5")))

	out, err := repo.SumOutflows(context.Background())
	require.NoError(t, err)
	assert.True(t, out.IsZero())
}
