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

func newLoanMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func loanDetailRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "student_id", "book_id", "issue_date", "return_date", "return_status",
		"book.id", "book.book_id", "book.book_name", "book.author",
		"book.photo_url", "book.total_count", "book.available_count",
		"book.created_at", "book.updated_at",
	})
}

func TestLoanRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newLoanMock(t)
	defer cleanup()
	repo := NewLoanRepository(db)

	mock.ExpectExec("INSERT INTO issued_books").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	loan := &models.Loan{StudentID: "IS2524", BookID: "BK001"}
	err := repo.Create(context.Background(), loan)
	require.NoError(t, err)
	assert.NotEmpty(t, loan.ID)
	assert.Equal(t, models.LoanStatusIssued, loan.ReturnStatus)
	assert.False(t, loan.IssueDate.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoanRepositoryListActiveByStudent(t *testing.T) {
	db, mock, cleanup := newLoanMock(t)
	defer cleanup()
	repo := NewLoanRepository(db)

	now := time.Now()
	rows := loanDetailRows().
		AddRow("l1", "IS2524", "BK001", now, nil, "issued",
			"b1", "BK001", "Signals and Systems", "Oppenheim", nil, 4, 2, now, now)
	mock.ExpectQuery("FROM issued_books i").
		WithArgs("IS2524", models.LoanStatusIssued).
		WillReturnRows(rows)

	loans, err := repo.ListActiveByStudent(context.Background(), "IS2524")
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, "BK001", loans[0].BookID)
	assert.Equal(t, "Signals and Systems", loans[0].Book.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoanRepositoryCountActiveByStudent(t *testing.T) {
	db, mock, cleanup := newLoanMock(t)
	defer cleanup()
	repo := NewLoanRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM issued_books WHERE student_id = $1")).
		WithArgs("IS2524", models.LoanStatusIssued).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountActiveByStudent(context.Background(), "IS2524")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoanRepositoryMarkReturned(t *testing.T) {
	db, mock, cleanup := newLoanMock(t)
	defer cleanup()
	repo := NewLoanRepository(db)

	returnedAt := time.Now()
	mock.ExpectExec("UPDATE issued_books SET return_status").
		WithArgs("l1", models.LoanStatusReturned, returnedAt, models.LoanStatusIssued).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkReturned(context.Background(), "l1", returnedAt)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
