package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yadhu-dev/library-automation-api/internal/models"
	"github.com/yadhu-dev/library-automation-api/internal/service"
	"github.com/yadhu-dev/library-automation-api/pkg/config"
)

type fakeStudentRepo struct {
	students map[string]*models.Student
}

func (f *fakeStudentRepo) FindByRollNo(_ context.Context, rollNo string) (*models.Student, error) {
	if student, ok := f.students[rollNo]; ok {
		return student, nil
	}
	return nil, sql.ErrNoRows
}

type fakeBookRepo struct {
	books map[string]*models.Book
}

func (f *fakeBookRepo) FindByBookID(_ context.Context, bookID string) (*models.Book, error) {
	if book, ok := f.books[bookID]; ok {
		return book, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeBookRepo) SetAvailableCount(_ context.Context, bookID string, count int) error {
	if book, ok := f.books[bookID]; ok {
		book.AvailableCount = count
	}
	return nil
}

type fakeLoanRepo struct {
	books map[string]*models.Book
	loans []models.LoanDetail
}

func (f *fakeLoanRepo) Create(_ context.Context, loan *models.Loan) error {
	loan.ID = "loan-1"
	detail := models.LoanDetail{Loan: *loan}
	if book, ok := f.books[loan.BookID]; ok {
		detail.Book = *book
	}
	f.loans = append(f.loans, detail)
	return nil
}

func (f *fakeLoanRepo) ListActiveByStudent(_ context.Context, rollNo string) ([]models.LoanDetail, error) {
	var active []models.LoanDetail
	for _, loan := range f.loans {
		if loan.StudentID == rollNo && loan.ReturnStatus == models.LoanStatusIssued {
			active = append(active, loan)
		}
	}
	return active, nil
}

func (f *fakeLoanRepo) CountActiveByStudent(ctx context.Context, rollNo string) (int, error) {
	active, _ := f.ListActiveByStudent(ctx, rollNo)
	return len(active), nil
}

func (f *fakeLoanRepo) MarkReturned(_ context.Context, loanID string, returnedAt time.Time) error {
	for i := range f.loans {
		if f.loans[i].ID == loanID {
			f.loans[i].ReturnStatus = models.LoanStatusReturned
			f.loans[i].ReturnDate = &returnedAt
		}
	}
	return nil
}

type fakeTransactionRepo struct {
	created []models.Transaction
}

func (f *fakeTransactionRepo) Create(_ context.Context, tx *models.Transaction) error {
	f.created = append(f.created, *tx)
	return nil
}

func newCirculationHandlerFixture() (*CirculationHandler, *fakeTransactionRepo) {
	books := map[string]*models.Book{
		"BK001": {BookID: "BK001", Name: "Signals", Author: "Oppenheim", TotalCount: 2, AvailableCount: 2},
	}
	transactions := &fakeTransactionRepo{}
	svc := service.NewCirculationService(
		&fakeStudentRepo{students: map[string]*models.Student{
			"IS2524": {RollNo: "IS2524", Name: "Asha"},
		}},
		&fakeBookRepo{books: books},
		&fakeLoanRepo{books: books},
		transactions,
		config.CirculationConfig{},
		nil,
	)
	return NewCirculationHandler(svc, nil), transactions
}

func performJSON(handler gin.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	handler(c)
	return rec
}

func TestCirculationHandlerIssue(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, transactions := newCirculationHandlerFixture()

	rec := performJSON(handler.Issue, http.MethodPost, "/circulation/issue",
		`{"roll_no":"IS2524","book_id":"BK001"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data struct {
			Student struct {
				RollNo string `json:"roll_no"`
			} `json:"student"`
			Issued []json.RawMessage `json:"issued_books"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "IS2524", envelope.Data.Student.RollNo)
	assert.Len(t, envelope.Data.Issued, 1)
	require.Len(t, transactions.created, 1)
	assert.Equal(t, models.TransactionActionIssue, transactions.created[0].ActionType)
}

func TestCirculationHandlerIssueUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newCirculationHandlerFixture()

	performJSON(handler.Issue, http.MethodPost, "/circulation/issue",
		`{"roll_no":"IS2524","book_id":"BK001"}`)
	performJSON(handler.Issue, http.MethodPost, "/circulation/issue",
		`{"roll_no":"IS2524","book_id":"BK001"}`)
	rec := performJSON(handler.Issue, http.MethodPost, "/circulation/issue",
		`{"roll_no":"IS2524","book_id":"BK001"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "BOOK_UNAVAILABLE", envelope.Error.Code)
}

func TestCirculationHandlerIssueInvalidPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newCirculationHandlerFixture()

	rec := performJSON(handler.Issue, http.MethodPost, "/circulation/issue", `{"roll_no":"IS2524"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCirculationHandlerReturnMismatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newCirculationHandlerFixture()

	rec := performJSON(handler.Return, http.MethodPost, "/circulation/return",
		`{"roll_no":"IS2524","book_id":"BK001"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "BOOK_MISMATCH", envelope.Error.Code)
}

func TestCirculationHandlerClassify(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newCirculationHandlerFixture()

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/circulation/classify?value=BK042", nil)

	handler.Classify(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "book", envelope.Data["kind"])
}
