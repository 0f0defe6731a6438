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

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters, each carrying loan
// counters for the registered-students view.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentSummary, int, error) {
	base := "FROM students s"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.name) LIKE $%d OR LOWER(s.roll_no) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"name":       "s.name",
		"roll_no":    "s.roll_no",
		"created_at": "s.created_at",
	}
	if sortBy == "" {
		sortBy = "name"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "s.name"
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

	query := fmt.Sprintf(`SELECT s.id, s.roll_no, s.name, s.department, s.batch, s.email, s.photo_url, s.created_at, s.updated_at,
        (SELECT COUNT(*) FROM issued_books i WHERE i.student_id = s.roll_no) AS total_loans,
        (SELECT COUNT(*) FROM issued_books i WHERE i.student_id = s.roll_no AND i.return_status = 'issued') AS active_loans
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var students []models.StudentSummary
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(s.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByRollNo fetches a student by its roll number.
func (r *StudentRepository) FindByRollNo(ctx context.Context, rollNo string) (*models.Student, error) {
	const query = `SELECT id, roll_no, name, department, batch, email, photo_url, created_at, updated_at
        FROM students WHERE roll_no = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, rollNo); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByRollNo checks whether a roll number is already registered.
func (r *StudentRepository) ExistsByRollNo(ctx context.Context, rollNo string) (bool, error) {
	var exists int
	if err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM students WHERE roll_no = $1 LIMIT 1", rollNo); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check roll_no: %w", err)
	}
	return true, nil
}

// ExistsByEmail checks whether an e-mail is already registered.
func (r *StudentRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists int
	if err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM students WHERE email = $1 LIMIT 1", email); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check email: %w", err)
	}
	return true, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, roll_no, name, department, batch, email, photo_url, created_at, updated_at)
        VALUES (:id, :roll_no, :name, :department, :batch, :email, :photo_url, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Count returns the number of registered students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students"); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return total, nil
}
