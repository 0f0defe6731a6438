package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yadhu-dev/library-automation-api/internal/repository"
	appErrors "github.com/yadhu-dev/library-automation-api/pkg/errors"
)

type dashboardStudentRepository interface {
	Count(ctx context.Context) (int, error)
}

type dashboardBookRepository interface {
	Stats(ctx context.Context) (repository.BookStats, error)
}

type dashboardLoanRepository interface {
	CountActive(ctx context.Context) (int, error)
}

type dashboardTransactionRepository interface {
	CountSince(ctx context.Context, since time.Time) (int, error)
}

// DashboardSummary is the front-desk overview payload.
type DashboardSummary struct {
	Students          int       `json:"students"`
	BookTitles        int       `json:"book_titles"`
	TotalCopies       int       `json:"total_copies"`
	AvailableCopies   int       `json:"available_copies"`
	ActiveLoans       int       `json:"active_loans"`
	TransactionsToday int       `json:"transactions_today"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// DashboardService composes the overview counters, serving them from cache
// when possible.
type DashboardService struct {
	students     dashboardStudentRepository
	books        dashboardBookRepository
	loans        dashboardLoanRepository
	transactions dashboardTransactionRepository
	cache        *CacheService
	cacheTTL     time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// NewDashboardService constructs the dashboard service.
func NewDashboardService(
	students dashboardStudentRepository,
	books dashboardBookRepository,
	loans dashboardLoanRepository,
	transactions dashboardTransactionRepository,
	cache *CacheService,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *DashboardService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		students:     students,
		books:        books,
		loans:        loans,
		transactions: transactions,
		cache:        cache,
		cacheTTL:     cacheTTL,
		logger:       logger,
		now:          time.Now,
	}
}

const dashboardCacheKey = "dash:summary"

// Summary returns the overview counters and whether they came from cache.
func (s *DashboardService) Summary(ctx context.Context) (*DashboardSummary, bool, error) {
	if s.cache != nil {
		var cached DashboardSummary
		hit, err := s.cache.Get(ctx, dashboardCacheKey, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	summary, err := s.compose(ctx)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, summary, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return summary, false, nil
}

// Invalidate drops the cached summary. Called after circulation writes.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, dashboardCacheKey); err != nil {
		s.logger.Warn("dashboard cache invalidate failed", zap.Error(err))
	}
}

func (s *DashboardService) compose(ctx context.Context) (*DashboardSummary, error) {
	studentCount, err := s.students.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	bookStats, err := s.books.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load book stats")
	}
	activeLoans, err := s.loans.CountActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active loans")
	}

	now := s.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	transactionsToday, err := s.transactions.CountSince(ctx, midnight)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count transactions")
	}

	return &DashboardSummary{
		Students:          studentCount,
		BookTitles:        bookStats.Titles,
		TotalCopies:       bookStats.TotalCopies,
		AvailableCopies:   bookStats.AvailableCopies,
		ActiveLoans:       activeLoans,
		TransactionsToday: transactionsToday,
		GeneratedAt:       now,
	}, nil
}
