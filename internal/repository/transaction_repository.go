package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/yadhu-dev/library-automation-api/internal/models"
)

// TransactionRepository appends and lists circulation audit entries. The
// coordinator only ever writes here; listing serves the reporting views.
type TransactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository constructs a TransactionRepository.
func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create appends a transaction entry.
func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO transactions (id, student_id, book_id, action_type, note, created_at)
        VALUES (:id, :student_id, :book_id, :action_type, :note, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tx); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// List returns transactions matching the filter, newest first.
func (r *TransactionRepository) List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int, error) {
	base := "FROM transactions t"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("t.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.BookID != "" {
		conditions = append(conditions, fmt.Sprintf("t.book_id = $%d", len(args)+1))
		args = append(args, filter.BookID)
	}
	if filter.Action != "" {
		conditions = append(conditions, fmt.Sprintf("t.action_type = $%d", len(args)+1))
		args = append(args, filter.Action)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("t.created_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("t.created_at < $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT t.id, t.student_id, t.book_id, t.action_type, t.note, t.created_at
        %s ORDER BY t.created_at DESC LIMIT %d OFFSET %d`, base, size, offset)

	var transactions []models.Transaction
	if err := r.db.SelectContext(ctx, &transactions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(t.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}
	return transactions, total, nil
}

// CountSince counts transactions recorded at or after the given time.
func (r *TransactionRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM transactions WHERE created_at >= $1`
	if err := r.db.GetContext(ctx, &count, query, since); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return count, nil
}
