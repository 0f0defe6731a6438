package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yadhu-dev/library-automation-api/internal/models"
	appErrors "github.com/yadhu-dev/library-automation-api/pkg/errors"
)

// departmentPrefix maps the leading roll-number code to the department name
// printed on student records.
const (
	departmentPrefix = "IS"
	departmentName   = "Instrumentation Science"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentSummary, int, error)
	FindByRollNo(ctx context.Context, rollNo string) (*models.Student, error)
	ExistsByRollNo(ctx context.Context, rollNo string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
}

type studentLoanRepository interface {
	ListByStudent(ctx context.Context, rollNo string) ([]models.LoanDetail, error)
}

// CreateStudentRequest holds payload for registering students.
type CreateStudentRequest struct {
	RollNo     string `json:"roll_no" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Department string `json:"department"`
	Batch      string `json:"batch"`
	Email      string `json:"email" validate:"required,email"`
	PhotoURL   string `json:"photo_url"`
}

// StudentService handles student registration and profile use-cases.
type StudentService struct {
	repo      studentRepository
	loans     studentLoanRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, loans studentLoanRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, loans: loans, validator: validate, logger: logger}
}

// ClassifyRollNo derives department and batch from a roll number. A roll
// number outside the department prefix leaves both fields blank; a prefixed
// roll number with a non-numeric year code keeps the department but clears
// the batch. Pure derivation, nothing is persisted.
func ClassifyRollNo(rollNo string) models.RollNoClassification {
	rollNo = strings.ToUpper(strings.TrimSpace(rollNo))
	if !strings.HasPrefix(rollNo, departmentPrefix) {
		return models.RollNoClassification{}
	}
	result := models.RollNoClassification{Department: departmentName}
	if len(rollNo) < 4 {
		return result
	}
	year, err := strconv.Atoi(rollNo[2:4])
	if err != nil {
		return result
	}
	result.Batch = fmt.Sprintf("20%02d–%02d", year, (year+2)%100)
	return result
}

// List returns registered students with loan counters and pagination.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentSummary, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return students, pagination, nil
}

// Create registers a new student. Department and batch fall back to the
// roll-number derivation when the caller leaves them blank.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	rollNo := strings.ToUpper(strings.TrimSpace(req.RollNo))
	exists, err := s.repo.ExistsByRollNo(ctx, rollNo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate roll number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "roll number already registered")
	}
	exists, err = s.repo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	}

	department := req.Department
	batch := req.Batch
	if department == "" && batch == "" {
		derived := ClassifyRollNo(rollNo)
		department = derived.Department
		batch = derived.Batch
	}

	student := &models.Student{
		RollNo:     rollNo,
		Name:       req.Name,
		Department: department,
		Batch:      batch,
		Email:      req.Email,
	}
	if req.PhotoURL != "" {
		student.PhotoURL = &req.PhotoURL
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	s.logger.Info("student registered", zap.String("roll_no", student.RollNo))
	return student, nil
}

// Profile returns a student's record with their loan history split into
// currently issued and returned books.
func (s *StudentService) Profile(ctx context.Context, rollNo string) (*models.StudentProfile, error) {
	student, err := s.repo.FindByRollNo(ctx, strings.TrimSpace(rollNo))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	history, err := s.loans.ListByStudent(ctx, student.RollNo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load loan history")
	}
	profile := &models.StudentProfile{Student: *student, Issued: []models.LoanDetail{}, Returned: []models.LoanDetail{}}
	for _, loan := range history {
		if loan.ReturnStatus == models.LoanStatusIssued {
			profile.Issued = append(profile.Issued, loan)
		} else {
			profile.Returned = append(profile.Returned, loan)
		}
	}
	return profile, nil
}
