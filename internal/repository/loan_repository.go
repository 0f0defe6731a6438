package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/yadhu-dev/library-automation-api/internal/models"
)

// loanDetailColumns selects a loan row together with its joined book, using
// the "book." aliases sqlx maps onto LoanDetail.Book.
const loanDetailColumns = `i.id, i.student_id, i.book_id, i.issue_date, i.return_date, i.return_status,
        b.id AS "book.id", b.book_id AS "book.book_id", b.book_name AS "book.book_name", b.author AS "book.author",
        b.photo_url AS "book.photo_url", b.total_count AS "book.total_count", b.available_count AS "book.available_count",
        b.created_at AS "book.created_at", b.updated_at AS "book.updated_at"`

// LoanRepository manages issued-book records.
type LoanRepository struct {
	db *sqlx.DB
}

// NewLoanRepository constructs a LoanRepository.
func NewLoanRepository(db *sqlx.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

// Create inserts a new loan with status issued.
func (r *LoanRepository) Create(ctx context.Context, loan *models.Loan) error {
	if loan.ID == "" {
		loan.ID = uuid.NewString()
	}
	if loan.IssueDate.IsZero() {
		loan.IssueDate = time.Now().UTC()
	}
	if loan.ReturnStatus == "" {
		loan.ReturnStatus = models.LoanStatusIssued
	}
	const query = `INSERT INTO issued_books (id, student_id, book_id, issue_date, return_date, return_status)
        VALUES (:id, :student_id, :book_id, :issue_date, :return_date, :return_status)`
	if _, err := r.db.NamedExecContext(ctx, query, loan); err != nil {
		return fmt.Errorf("create loan: %w", err)
	}
	return nil
}

// ListActiveByStudent returns the student's currently-issued loans joined
// with their books.
func (r *LoanRepository) ListActiveByStudent(ctx context.Context, rollNo string) ([]models.LoanDetail, error) {
	query := fmt.Sprintf(`SELECT %s
        FROM issued_books i
        JOIN books b ON b.book_id = i.book_id
        WHERE i.student_id = $1 AND i.return_status = $2
        ORDER BY i.issue_date`, loanDetailColumns)
	var loans []models.LoanDetail
	if err := r.db.SelectContext(ctx, &loans, query, rollNo, models.LoanStatusIssued); err != nil {
		return nil, fmt.Errorf("list active loans: %w", err)
	}
	return loans, nil
}

// ListByStudent returns the student's entire loan history joined with books.
func (r *LoanRepository) ListByStudent(ctx context.Context, rollNo string) ([]models.LoanDetail, error) {
	query := fmt.Sprintf(`SELECT %s
        FROM issued_books i
        JOIN books b ON b.book_id = i.book_id
        WHERE i.student_id = $1
        ORDER BY i.issue_date DESC`, loanDetailColumns)
	var loans []models.LoanDetail
	if err := r.db.SelectContext(ctx, &loans, query, rollNo); err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	return loans, nil
}

// CountActiveByStudent counts the student's currently-issued loans.
func (r *LoanRepository) CountActiveByStudent(ctx context.Context, rollNo string) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM issued_books WHERE student_id = $1 AND return_status = $2`
	if err := r.db.GetContext(ctx, &count, query, rollNo, models.LoanStatusIssued); err != nil {
		return 0, fmt.Errorf("count active loans: %w", err)
	}
	return count, nil
}

// CountActive counts all currently-issued loans.
func (r *LoanRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM issued_books WHERE return_status = $1`
	if err := r.db.GetContext(ctx, &count, query, models.LoanStatusIssued); err != nil {
		return 0, fmt.Errorf("count active loans: %w", err)
	}
	return count, nil
}

// MarkReturned flips a loan to returned with the given timestamp. The
// transition happens exactly once; a loan already returned is not touched.
func (r *LoanRepository) MarkReturned(ctx context.Context, loanID string, returnedAt time.Time) error {
	const query = `UPDATE issued_books SET return_status = $2, return_date = $3
        WHERE id = $1 AND return_status = $4`
	if _, err := r.db.ExecContext(ctx, query, loanID, models.LoanStatusReturned, returnedAt, models.LoanStatusIssued); err != nil {
		return fmt.Errorf("mark loan returned: %w", err)
	}
	return nil
}
