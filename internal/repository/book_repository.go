package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/yadhu-dev/library-automation-api/internal/models"
)

// BookStats aggregates catalogue counters for the dashboard.
type BookStats struct {
	Titles          int `db:"titles"`
	TotalCopies     int `db:"total_copies"`
	AvailableCopies int `db:"available_copies"`
}

// BookRepository manages persistence for the book catalogue.
type BookRepository struct {
	db *sqlx.DB
}

// NewBookRepository constructs a BookRepository.
func NewBookRepository(db *sqlx.DB) *BookRepository {
	return &BookRepository{db: db}
}

// List returns books matching the search filter.
func (r *BookRepository) List(ctx context.Context, filter models.BookFilter) ([]models.Book, int, error) {
	base := "FROM books b"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(b.book_id) LIKE $%d OR LOWER(b.book_name) LIKE $%d OR LOWER(b.author) LIKE $%d)",
			len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"book_name":  "b.book_name",
		"book_id":    "b.book_id",
		"author":     "b.author",
		"created_at": "b.created_at",
	}
	if sortBy == "" {
		sortBy = "book_name"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "b.book_name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT b.id, b.book_id, b.book_name, b.author, b.photo_url, b.total_count, b.available_count, b.created_at, b.updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var books []models.Book
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(b.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}
	return books, total, nil
}

// FindByBookID fetches a book by its tag identifier.
func (r *BookRepository) FindByBookID(ctx context.Context, bookID string) (*models.Book, error) {
	const query = `SELECT id, book_id, book_name, author, photo_url, total_count, available_count, created_at, updated_at
        FROM books WHERE book_id = $1`
	var book models.Book
	if err := r.db.GetContext(ctx, &book, query, bookID); err != nil {
		return nil, err
	}
	return &book, nil
}

// ExistsByBookID checks whether a book identifier already exists.
func (r *BookRepository) ExistsByBookID(ctx context.Context, bookID string) (bool, error) {
	var exists int
	if err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM books WHERE book_id = $1 LIMIT 1", bookID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check book_id: %w", err)
	}
	return true, nil
}

// Create inserts a new book record.
func (r *BookRepository) Create(ctx context.Context, book *models.Book) error {
	if book.ID == "" {
		book.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = now
	const query = `INSERT INTO books (id, book_id, book_name, author, photo_url, total_count, available_count, created_at, updated_at)
        VALUES (:id, :book_id, :book_name, :author, :photo_url, :total_count, :available_count, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, book); err != nil {
		return fmt.Errorf("create book: %w", err)
	}
	return nil
}

// SetAvailableCount writes an absolute available_count for the book. The
// caller computes the new value from its previously read copy; there is no
// guard against a concurrent writer (see the coordinator's documented race).
func (r *BookRepository) SetAvailableCount(ctx context.Context, bookID string, count int) error {
	const query = `UPDATE books SET available_count = $2, updated_at = $3 WHERE book_id = $1`
	if _, err := r.db.ExecContext(ctx, query, bookID, count, time.Now().UTC()); err != nil {
		return fmt.Errorf("set available_count: %w", err)
	}
	return nil
}

// Holders lists students currently holding copies of the book.
func (r *BookRepository) Holders(ctx context.Context, bookID string) ([]models.BookHolder, error) {
	const query = `SELECT s.roll_no, s.name, i.issue_date
        FROM issued_books i
        JOIN students s ON s.roll_no = i.student_id
        WHERE i.book_id = $1 AND i.return_status = 'issued'
        ORDER BY i.issue_date`
	var holders []models.BookHolder
	if err := r.db.SelectContext(ctx, &holders, query, bookID); err != nil {
		return nil, fmt.Errorf("list holders: %w", err)
	}
	return holders, nil
}

// Stats aggregates catalogue counters for the dashboard.
func (r *BookRepository) Stats(ctx context.Context) (BookStats, error) {
	const query = `SELECT COUNT(*) AS titles,
        COALESCE(SUM(total_count), 0) AS total_copies,
        COALESCE(SUM(available_count), 0) AS available_copies
        FROM books`
	var stats BookStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return BookStats{}, fmt.Errorf("book stats: %w", err)
	}
	return stats, nil
}
