package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/yadhu-dev/library-automation-api/internal/models"
	appErrors "github.com/yadhu-dev/library-automation-api/pkg/errors"
)

type transactionRepository interface {
	List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int, error)
}

// TransactionService serves the audit log views.
type TransactionService struct {
	repo   transactionRepository
	logger *zap.Logger
}

// NewTransactionService constructs the transaction service.
func NewTransactionService(repo transactionRepository, logger *zap.Logger) *TransactionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionService{repo: repo, logger: logger}
}

// List returns audit entries newest first with pagination metadata.
func (s *TransactionService) List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, *models.Pagination, error) {
	transactions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transactions")
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
	return transactions, pagination, nil
}
