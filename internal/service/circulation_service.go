package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yadhu-dev/library-automation-api/internal/models"
	"github.com/yadhu-dev/library-automation-api/pkg/config"
	appErrors "github.com/yadhu-dev/library-automation-api/pkg/errors"
)

type circulationStudentRepository interface {
	FindByRollNo(ctx context.Context, rollNo string) (*models.Student, error)
}

type circulationBookRepository interface {
	FindByBookID(ctx context.Context, bookID string) (*models.Book, error)
	SetAvailableCount(ctx context.Context, bookID string, count int) error
}

type circulationLoanRepository interface {
	Create(ctx context.Context, loan *models.Loan) error
	ListActiveByStudent(ctx context.Context, rollNo string) ([]models.LoanDetail, error)
	CountActiveByStudent(ctx context.Context, rollNo string) (int, error)
	MarkReturned(ctx context.Context, loanID string, returnedAt time.Time) error
}

type circulationTransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
}

// IdentifierKind tells whether a scanned identifier belongs to a book or a
// student.
type IdentifierKind string

const (
	IdentifierBook    IdentifierKind = "book"
	IdentifierStudent IdentifierKind = "student"
)

// StudentLookup is the desk view of a student: the record plus the books
// currently out on their account.
type StudentLookup struct {
	Student *models.Student     `json:"student"`
	Issued  []models.LoanDetail `json:"issued_books"`
}

// BookLookup is the desk view of a book. Searched is false when the query was
// too short to run, which the caller must not confuse with a missing book.
type BookLookup struct {
	Searched bool         `json:"searched"`
	Book     *models.Book `json:"book,omitempty"`
}

// CirculationService coordinates issue and return flows across the loan,
// book and transaction tables.
//
// The three writes of an issue (loan insert, availability update, audit
// append) run without an enclosing database transaction; a failure midway
// leaves the earlier writes in place. The availability update is an absolute
// value computed from a prior read, so two concurrent desks can clobber each
// other's count.
type CirculationService struct {
	students     circulationStudentRepository
	books        circulationBookRepository
	loans        circulationLoanRepository
	transactions circulationTransactionRepository
	cfg          config.CirculationConfig
	logger       *zap.Logger
}

// NewCirculationService constructs the coordinator.
func NewCirculationService(
	students circulationStudentRepository,
	books circulationBookRepository,
	loans circulationLoanRepository,
	transactions circulationTransactionRepository,
	cfg config.CirculationConfig,
	logger *zap.Logger,
) *CirculationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxLoansPerStudent <= 0 {
		cfg.MaxLoansPerStudent = 3
	}
	if cfg.MinLookupLength <= 0 {
		cfg.MinLookupLength = 3
	}
	if cfg.BookTagPrefix == "" {
		cfg.BookTagPrefix = "BK"
	}
	return &CirculationService{
		students:     students,
		books:        books,
		loans:        loans,
		transactions: transactions,
		cfg:          cfg,
		logger:       logger,
	}
}

// ClassifyIdentifier routes a scanned identifier by its prefix. Tags starting
// with the book prefix are books; everything else is treated as a roll number.
func (s *CirculationService) ClassifyIdentifier(value string) IdentifierKind {
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(value)), s.cfg.BookTagPrefix) {
		return IdentifierBook
	}
	return IdentifierStudent
}

// LocateStudent loads a student together with their currently issued books.
func (s *CirculationService) LocateStudent(ctx context.Context, rollNo string) (*StudentLookup, error) {
	rollNo = strings.TrimSpace(rollNo)
	if rollNo == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "roll number is required")
	}
	student, err := s.students.FindByRollNo(ctx, rollNo)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	issued, err := s.loans.ListActiveByStudent(ctx, rollNo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load issued books")
	}
	return &StudentLookup{Student: student, Issued: issued}, nil
}

// LocateBook loads a book by its tag. Queries shorter than the configured
// minimum are not run at all and come back with Searched unset.
func (s *CirculationService) LocateBook(ctx context.Context, bookID string) (*BookLookup, error) {
	bookID = strings.TrimSpace(bookID)
	if len(bookID) < s.cfg.MinLookupLength {
		return &BookLookup{Searched: false}, nil
	}
	book, err := s.books.FindByBookID(ctx, bookID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "book not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load book")
	}
	return &BookLookup{Searched: true, Book: book}, nil
}

// Issue lends a book to a student and returns the refreshed issued set.
//
// Preconditions run in a fixed order: the loan cap first, then availability.
// A student at the cap sees the limit error even when the book has no copies
// left.
func (s *CirculationService) Issue(ctx context.Context, rollNo, bookID string) (*StudentLookup, error) {
	rollNo = strings.TrimSpace(rollNo)
	bookID = strings.TrimSpace(bookID)
	if rollNo == "" || bookID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "roll number and book ID are required")
	}

	student, err := s.students.FindByRollNo(ctx, rollNo)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	active, err := s.loans.CountActiveByStudent(ctx, rollNo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count issued books")
	}
	if active >= s.cfg.MaxLoansPerStudent {
		return nil, appErrors.ErrLoanLimitExceeded
	}

	book, err := s.books.FindByBookID(ctx, bookID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "book not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load book")
	}
	if book.AvailableCount <= 0 {
		return nil, appErrors.ErrBookUnavailable
	}

	now := time.Now().UTC()
	loan := &models.Loan{
		StudentID:    rollNo,
		BookID:       book.BookID,
		IssueDate:    now,
		ReturnStatus: models.LoanStatusIssued,
	}
	if err := s.loans.Create(ctx, loan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record loan")
	}
	if err := s.books.SetAvailableCount(ctx, book.BookID, book.AvailableCount-1); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update availability")
	}
	if err := s.transactions.Create(ctx, &models.Transaction{
		StudentID:  rollNo,
		BookID:     book.BookID,
		ActionType: models.TransactionActionIssue,
		CreatedAt:  now,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record transaction")
	}

	s.logger.Info("book issued",
		zap.String("roll_no", rollNo),
		zap.String("book_id", book.BookID),
		zap.Int("remaining", book.AvailableCount-1))

	issued, err := s.loans.ListActiveByStudent(ctx, rollNo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload issued books")
	}
	return &StudentLookup{Student: student, Issued: issued}, nil
}

// Return takes a book back from a student and returns the refreshed issued
// set. The book must match one of the student's currently issued loans.
func (s *CirculationService) Return(ctx context.Context, rollNo, bookID string) (*StudentLookup, error) {
	rollNo = strings.TrimSpace(rollNo)
	bookID = strings.TrimSpace(bookID)
	if rollNo == "" || bookID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "roll number and book ID are required")
	}

	student, err := s.students.FindByRollNo(ctx, rollNo)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	issued, err := s.loans.ListActiveByStudent(ctx, rollNo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load issued books")
	}

	var match *models.LoanDetail
	for i := range issued {
		if issued[i].BookID == bookID {
			match = &issued[i]
			break
		}
	}
	if match == nil {
		return nil, appErrors.ErrBookMismatch
	}

	now := time.Now().UTC()
	if err := s.loans.MarkReturned(ctx, match.ID, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close loan")
	}
	// The new count comes from the book row joined into the issued set, not
	// from a fresh read.
	if err := s.books.SetAvailableCount(ctx, match.BookID, match.Book.AvailableCount+1); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update availability")
	}
	if err := s.transactions.Create(ctx, &models.Transaction{
		StudentID:  rollNo,
		BookID:     match.BookID,
		ActionType: models.TransactionActionReturn,
		CreatedAt:  now,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record transaction")
	}

	s.logger.Info("book returned",
		zap.String("roll_no", rollNo),
		zap.String("book_id", match.BookID))

	refreshed, err := s.loans.ListActiveByStudent(ctx, rollNo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload issued books")
	}
	return &StudentLookup{Student: student, Issued: refreshed}, nil
}
