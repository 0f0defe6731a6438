package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yadhu-dev/library-automation-api/internal/models"
)

func newTransactionMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTransactionRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newTransactionMock(t)
	defer cleanup()
	repo := NewTransactionRepository(db)

	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	tx := &models.Transaction{StudentID: "IS2524", BookID: "BK001", ActionType: models.TransactionActionIssue}
	err := repo.Create(context.Background(), tx)
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID)
	assert.False(t, tx.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepositoryListFiltered(t *testing.T) {
	db, mock, cleanup := newTransactionMock(t)
	defer cleanup()
	repo := NewTransactionRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "book_id", "action_type", "note", "created_at"}).
		AddRow("t1", "IS2524", "BK001", "issue", "", time.Now())
	mock.ExpectQuery("SELECT t.id, t.student_id, t.book_id").
		WithArgs("IS2524", models.TransactionActionIssue).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(t.id) FROM transactions t")).
		WithArgs("IS2524", models.TransactionActionIssue).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	transactions, total, err := repo.List(context.Background(), models.TransactionFilter{StudentID: "IS2524", Action: models.TransactionActionIssue})
	require.NoError(t, err)
	assert.Len(t, transactions, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepositoryCountSince(t *testing.T) {
	db, mock, cleanup := newTransactionMock(t)
	defer cleanup()
	repo := NewTransactionRepository(db)

	since := time.Now().Add(-24 * time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM transactions WHERE created_at >= $1")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountSince(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
