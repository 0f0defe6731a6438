package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yadhu-dev/library-automation-api/internal/models"
	appErrors "github.com/yadhu-dev/library-automation-api/pkg/errors"
)

type mockStudentRepo struct {
	students map[string]models.Student
	emails   map[string]bool
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentSummary, int, error) {
	summaries := make([]models.StudentSummary, 0, len(m.students))
	for _, s := range m.students {
		summaries = append(summaries, models.StudentSummary{Student: s})
	}
	return summaries, len(summaries), nil
}

func (m *mockStudentRepo) FindByRollNo(ctx context.Context, rollNo string) (*models.Student, error) {
	if s, ok := m.students[rollNo]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByRollNo(ctx context.Context, rollNo string) (bool, error) {
	_, ok := m.students[rollNo]
	return ok, nil
}

func (m *mockStudentRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return m.emails[email], nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.students == nil {
		m.students = make(map[string]models.Student)
	}
	if student.ID == "" {
		student.ID = "generated"
	}
	m.students[student.RollNo] = *student
	return nil
}

type mockStudentLoanRepo struct {
	history map[string][]models.LoanDetail
}

func (m *mockStudentLoanRepo) ListByStudent(ctx context.Context, rollNo string) ([]models.LoanDetail, error) {
	return m.history[rollNo], nil
}

func TestClassifyRollNo(t *testing.T) {
	cases := []struct {
		rollNo     string
		department string
		batch      string
	}{
		{"IS2524", "Instrumentation Science", "2025–27"},
		{"is2310", "Instrumentation Science", "2023–25"},
		{"IS9901", "Instrumentation Science", "2099–01"},
		{"ISxx24", "Instrumentation Science", ""},
		{"IS", "Instrumentation Science", ""},
		{"CS2524", "", ""},
		{"", "", ""},
	}
	for _, tc := range cases {
		got := ClassifyRollNo(tc.rollNo)
		assert.Equal(t, tc.department, got.Department, tc.rollNo)
		assert.Equal(t, tc.batch, got.Batch, tc.rollNo)
	}
}

func TestStudentServiceCreateDerivesClassification(t *testing.T) {
	repo := &mockStudentRepo{emails: map[string]bool{}}
	svc := NewStudentService(repo, &mockStudentLoanRepo{}, validator.New(), zap.NewNop())

	student, err := svc.Create(context.Background(), CreateStudentRequest{
		RollNo: "is2524",
		Name:   "Yadhu",
		Email:  "is2524@univ.edu",
	})
	require.NoError(t, err)
	assert.Equal(t, "IS2524", student.RollNo)
	assert.Equal(t, "Instrumentation Science", student.Department)
	assert.Equal(t, "2025–27", student.Batch)
}

func TestStudentServiceCreateKeepsExplicitFields(t *testing.T) {
	repo := &mockStudentRepo{emails: map[string]bool{}}
	svc := NewStudentService(repo, &mockStudentLoanRepo{}, validator.New(), zap.NewNop())

	student, err := svc.Create(context.Background(), CreateStudentRequest{
		RollNo:     "IS2524",
		Name:       "Yadhu",
		Email:      "is2524@univ.edu",
		Department: "Physics",
		Batch:      "2024–26",
	})
	require.NoError(t, err)
	assert.Equal(t, "Physics", student.Department)
	assert.Equal(t, "2024–26", student.Batch)
}

func TestStudentServiceCreateDuplicateRollNo(t *testing.T) {
	repo := &mockStudentRepo{
		students: map[string]models.Student{"IS2524": {RollNo: "IS2524"}},
		emails:   map[string]bool{},
	}
	svc := NewStudentService(repo, &mockStudentLoanRepo{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateStudentRequest{RollNo: "IS2524", Name: "Yadhu", Email: "other@univ.edu"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCreateDuplicateEmail(t *testing.T) {
	repo := &mockStudentRepo{emails: map[string]bool{"is2524@univ.edu": true}}
	svc := NewStudentService(repo, &mockStudentLoanRepo{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateStudentRequest{RollNo: "IS2525", Name: "Yadhu", Email: "is2524@univ.edu"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceProfileSplitsHistory(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{"IS2524": {RollNo: "IS2524", Name: "Yadhu"}}}
	loans := &mockStudentLoanRepo{history: map[string][]models.LoanDetail{"IS2524": {
		{Loan: models.Loan{ID: "l1", BookID: "BK001", ReturnStatus: models.LoanStatusIssued}},
		{Loan: models.Loan{ID: "l2", BookID: "BK002", ReturnStatus: models.LoanStatusReturned}},
		{Loan: models.Loan{ID: "l3", BookID: "BK001", ReturnStatus: models.LoanStatusReturned}},
	}}}
	svc := NewStudentService(repo, loans, validator.New(), zap.NewNop())

	profile, err := svc.Profile(context.Background(), "IS2524")
	require.NoError(t, err)
	assert.Len(t, profile.Issued, 1)
	assert.Len(t, profile.Returned, 2)
}

func TestStudentServiceProfileNotFound(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{}, &mockStudentLoanRepo{}, validator.New(), zap.NewNop())

	_, err := svc.Profile(context.Background(), "ZZ9999")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
