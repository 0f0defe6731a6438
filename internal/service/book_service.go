package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yadhu-dev/library-automation-api/internal/models"
	appErrors "github.com/yadhu-dev/library-automation-api/pkg/errors"
)

type bookRepository interface {
	List(ctx context.Context, filter models.BookFilter) ([]models.Book, int, error)
	FindByBookID(ctx context.Context, bookID string) (*models.Book, error)
	ExistsByBookID(ctx context.Context, bookID string) (bool, error)
	Create(ctx context.Context, book *models.Book) error
	Holders(ctx context.Context, bookID string) ([]models.BookHolder, error)
}

// CreateBookRequest holds payload for adding catalogue entries.
type CreateBookRequest struct {
	BookID     string `json:"book_id" validate:"required"`
	Name       string `json:"book_name" validate:"required"`
	Author     string `json:"author" validate:"required"`
	PhotoURL   string `json:"photo_url"`
	TotalCount int    `json:"total_count" validate:"required,min=1"`
}

// BookService handles catalogue use-cases.
type BookService struct {
	repo      bookRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBookService constructs the book service.
func NewBookService(repo bookRepository, validate *validator.Validate, logger *zap.Logger) *BookService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookService{repo: repo, validator: validate, logger: logger}
}

// List returns catalogue entries and pagination metadata.
func (s *BookService) List(ctx context.Context, filter models.BookFilter) ([]models.Book, *models.Pagination, error) {
	books, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list books")
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
	return books, pagination, nil
}

// Create adds a catalogue entry. New titles start with every copy available.
func (s *BookService) Create(ctx context.Context, req CreateBookRequest) (*models.Book, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid book payload")
	}

	bookID := strings.ToUpper(strings.TrimSpace(req.BookID))
	exists, err := s.repo.ExistsByBookID(ctx, bookID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate book ID")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "book ID already in catalogue")
	}

	book := &models.Book{
		BookID:         bookID,
		Name:           req.Name,
		Author:         req.Author,
		TotalCount:     req.TotalCount,
		AvailableCount: req.TotalCount,
	}
	if req.PhotoURL != "" {
		book.PhotoURL = &req.PhotoURL
	}
	if err := s.repo.Create(ctx, book); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create book")
	}

	s.logger.Info("book added", zap.String("book_id", book.BookID), zap.Int("copies", book.TotalCount))
	return book, nil
}

// Detail returns a book together with the students currently holding copies.
func (s *BookService) Detail(ctx context.Context, bookID string) (*models.BookDetail, error) {
	book, err := s.repo.FindByBookID(ctx, strings.TrimSpace(bookID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "book not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load book")
	}
	holders, err := s.repo.Holders(ctx, book.BookID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load holders")
	}
	return &models.BookDetail{Book: *book, Holders: holders}, nil
}
