package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yadhu-dev/library-automation-api/internal/models"
)

func newBookMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func bookRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "book_id", "book_name", "author", "photo_url", "total_count", "available_count", "created_at", "updated_at"})
}

func TestBookRepositoryList(t *testing.T) {
	db, mock, cleanup := newBookMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectQuery("SELECT b.id, b.book_id, b.book_name").
		WillReturnRows(bookRows().AddRow("1", "BK001", "Signals and Systems", "Oppenheim", nil, 4, 2, time.Now(), time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(b.id) FROM books b")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	books, total, err := repo.List(context.Background(), models.BookFilter{})
	require.NoError(t, err)
	assert.Len(t, books, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, 2, books[0].AvailableCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryFindByBookID(t *testing.T) {
	db, mock, cleanup := newBookMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM books WHERE book_id = $1")).
		WithArgs("BK001").
		WillReturnRows(bookRows().AddRow("1", "BK001", "Signals and Systems", "Oppenheim", nil, 4, 2, time.Now(), time.Now()))

	book, err := repo.FindByBookID(context.Background(), "BK001")
	require.NoError(t, err)
	assert.Equal(t, "Signals and Systems", book.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryFindByBookIDMissing(t *testing.T) {
	db, mock, cleanup := newBookMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM books WHERE book_id = $1")).
		WithArgs("BK404").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByBookID(context.Background(), "BK404")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositorySetAvailableCount(t *testing.T) {
	db, mock, cleanup := newBookMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE books SET available_count = $2")).
		WithArgs("BK001", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetAvailableCount(context.Background(), "BK001", 1)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryHolders(t *testing.T) {
	db, mock, cleanup := newBookMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	rows := sqlmock.NewRows([]string{"roll_no", "name", "issue_date"}).
		AddRow("IS2524", "Yadhu", time.Now())
	mock.ExpectQuery("SELECT s.roll_no, s.name, i.issue_date").
		WithArgs("BK001").
		WillReturnRows(rows)

	holders, err := repo.Holders(context.Background(), "BK001")
	require.NoError(t, err)
	require.Len(t, holders, 1)
	assert.Equal(t, "IS2524", holders[0].RollNo)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryStats(t *testing.T) {
	db, mock, cleanup := newBookMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	rows := sqlmock.NewRows([]string{"titles", "total_copies", "available_copies"}).
		AddRow(10, 42, 30)
	mock.ExpectQuery(regexp.QuoteMeta("COUNT(*) AS titles")).
		WillReturnRows(rows)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BookStats{Titles: 10, TotalCopies: 42, AvailableCopies: 30}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newBookMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectExec("INSERT INTO books").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	book := &models.Book{BookID: "BK001", Name: "Signals and Systems", Author: "Oppenheim", TotalCount: 4, AvailableCount: 4}
	err := repo.Create(context.Background(), book)
	require.NoError(t, err)
	assert.NotEmpty(t, book.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
