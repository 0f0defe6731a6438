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

func newStudentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "roll_no", "name", "department", "batch", "email", "photo_url", "created_at", "updated_at", "total_loans", "active_loans"}).
		AddRow("1", "IS2524", "Yadhu", "Instrumentation Science", "2025–27", "is2524@univ.edu", nil, time.Now(), time.Now(), 3, 1)
	mock.ExpectQuery("SELECT s.id, s.roll_no, s.name").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(s.id) FROM students s WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, 3, students[0].TotalLoans)
	assert.Equal(t, 1, students[0].ActiveLoans)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListSearch(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "roll_no", "name", "department", "batch", "email", "photo_url", "created_at", "updated_at", "total_loans", "active_loans"})
	mock.ExpectQuery("SELECT s.id, s.roll_no, s.name").
		WithArgs("%is25%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(s.id) FROM students s")).
		WithArgs("%is25%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	students, total, err := repo.List(context.Background(), models.StudentFilter{Search: "IS25"})
	require.NoError(t, err)
	assert.Empty(t, students)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByRollNo(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "roll_no", "name", "department", "batch", "email", "photo_url", "created_at", "updated_at"}).
		AddRow("1", "IS2524", "Yadhu", "Instrumentation Science", "2025–27", "is2524@univ.edu", nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE roll_no = $1")).
		WithArgs("IS2524").
		WillReturnRows(rows)

	student, err := repo.FindByRollNo(context.Background(), "IS2524")
	require.NoError(t, err)
	assert.Equal(t, "Yadhu", student.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByRollNoMissing(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE roll_no = $1")).
		WithArgs("ZZ9999").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByRollNo(context.Background(), "ZZ9999")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryExistsByRollNo(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM students WHERE roll_no = $1")).
		WithArgs("IS2524").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	exists, err := repo.ExistsByRollNo(context.Background(), "IS2524")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM students WHERE roll_no = $1")).
		WithArgs("ZZ9999").
		WillReturnError(sql.ErrNoRows)

	exists, err = repo.ExistsByRollNo(context.Background(), "ZZ9999")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{RollNo: "IS2524", Name: "Yadhu", Department: "Instrumentation Science", Batch: "2025–27", Email: "is2524@univ.edu"}
	err := repo.Create(context.Background(), student)
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
