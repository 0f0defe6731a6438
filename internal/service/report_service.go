package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/yadhu-dev/library-automation-api/internal/models"
	appErrors "github.com/yadhu-dev/library-automation-api/pkg/errors"
	"github.com/yadhu-dev/library-automation-api/pkg/export"
	"github.com/yadhu-dev/library-automation-api/pkg/jobs"
	"github.com/yadhu-dev/library-automation-api/pkg/storage"
)

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	FindByID(ctx context.Context, id string) (*models.ReportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkFinished(ctx context.Context, id, resultPath string, finishedAt time.Time) error
	MarkFailed(ctx context.Context, id, message string, finishedAt time.Time) error
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type reportTransactionSource interface {
	List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int, error)
}

type reportLoanSource interface {
	ListByStudent(ctx context.Context, rollNo string) ([]models.LoanDetail, error)
}

// CreateReportRequest holds payload for requesting an export.
type CreateReportRequest struct {
	Type      models.ReportType   `json:"type"`
	Format    models.ReportFormat `json:"format"`
	StudentID string              `json:"student_id,omitempty"`
	From      *time.Time          `json:"from,omitempty"`
	To        *time.Time          `json:"to,omitempty"`
}

// ReportStatusResponse exposes job state to clients.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}

// ReportDownload aggregates resolved download data.
type ReportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ReportFormat
	ExpiresAt time.Time
}

// ReportServiceConfig governs result retention and cleanup.
type ReportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	DownloadPath    string
}

// ReportService orchestrates asynchronous CSV/PDF exports of the circulation
// records.
type ReportService struct {
	repo   reportJobStore
	queue  jobDispatcher
	store  *storage.LocalStorage
	signer *storage.SignedURLSigner
	logger *zap.Logger
	cfg    ReportServiceConfig
}

// NewReportService constructs the report service.
func NewReportService(repo reportJobStore, queue jobDispatcher, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.DownloadPath == "" {
		cfg.DownloadPath = "/api/v1/reports/download"
	}
	return &ReportService{repo: repo, queue: queue, store: store, signer: signer, logger: logger, cfg: cfg}
}

// CreateJob validates the request, persists the job and enqueues processing.
func (s *ReportService) CreateJob(ctx context.Context, req CreateReportRequest, actorID string) (*ReportStatusResponse, error) {
	switch req.Type {
	case models.ReportTypeTransactions:
	case models.ReportTypeLoanHistory:
		if req.StudentID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required for loan history reports")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report type")
	}
	if req.Format != models.ReportFormatCSV && req.Format != models.ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}

	job := &models.ReportJob{
		Type: req.Type,
		Params: models.ReportJobParams{
			Format:    req.Format,
			StudentID: req.StudentID,
			From:      req.From,
			To:        req.To,
		},
		Status:    models.ReportStatusQueued,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		if markErr := s.repo.MarkFailed(ctx, job.ID, "failed to enqueue job", time.Now().UTC()); markErr != nil {
			s.logger.Warn("failed to mark unqueued job", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}
	return &ReportStatusResponse{ID: job.ID, Status: job.Status}, nil
}

// Status exposes job metadata, attaching a signed download URL once finished.
func (s *ReportService) Status(ctx context.Context, id string) (*ReportStatusResponse, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}

	resp := &ReportStatusResponse{ID: job.ID, Status: job.Status}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	if job.Status == models.ReportStatusFinished && job.ResultPath != nil && s.signer != nil {
		token, _, err := s.signer.Generate(job.ID, *job.ResultPath)
		if err != nil {
			s.logger.Warn("failed to sign download token", zap.String("job_id", job.ID), zap.Error(err))
		} else {
			url := fmt.Sprintf("%s/%s", s.cfg.DownloadPath, token)
			resp.ResultURL = &url
		}
	}
	return resp, nil
}

// ResolveDownload validates a signed token and opens the stored artifact.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	jobID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if job.Status != models.ReportStatusFinished || job.ResultPath == nil || *job.ResultPath != relPath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report not ready")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ReportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ReportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *ReportService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	expired, err := s.repo.ListFinishedBefore(ctx, cutoff, 100)
	if err != nil {
		s.logger.Warn("cleanup list failed", zap.Error(err))
		return
	}
	for _, job := range expired {
		if job.ResultPath == nil {
			continue
		}
		if err := s.store.Delete(*job.ResultPath); err != nil {
			s.logger.Warn("cleanup delete failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	if _, err := s.store.CleanupOlderThan(s.cfg.ResultTTL); err != nil {
		s.logger.Warn("filesystem cleanup failed", zap.Error(err))
	}
}

// ReportWorker renders queued report jobs and stores the artifacts.
type ReportWorker struct {
	repo         reportJobStore
	transactions reportTransactionSource
	loans        reportLoanSource
	store        *storage.LocalStorage
	csv          *export.CSVExporter
	pdf          *export.PDFExporter
	logger       *zap.Logger
}

// NewReportWorker constructs a worker.
func NewReportWorker(repo reportJobStore, transactions reportTransactionSource, loans reportLoanSource, store *storage.LocalStorage, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportWorker{
		repo:         repo,
		transactions: transactions,
		loans:        loans,
		store:        store,
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
		logger:       logger,
	}
}

// Handle processes a queue job end to end.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.FindByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if err := w.repo.MarkProcessing(ctx, job.ID); err != nil {
		return err
	}

	dataset, title, err := w.buildDataset(ctx, record)
	if err != nil {
		if markErr := w.repo.MarkFailed(ctx, job.ID, err.Error(), time.Now().UTC()); markErr != nil {
			w.logger.Warn("failed to mark job failed", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return err
	}

	var payload []byte
	switch record.Params.Format {
	case models.ReportFormatPDF:
		payload, err = w.pdf.Render(dataset, title)
	default:
		payload, err = w.csv.Render(dataset)
	}
	if err != nil {
		if markErr := w.repo.MarkFailed(ctx, job.ID, err.Error(), time.Now().UTC()); markErr != nil {
			w.logger.Warn("failed to mark job failed", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return err
	}

	relPath := fmt.Sprintf("reports/%s.%s", record.ID, record.Params.Format)
	if _, err := w.store.Save(relPath, payload); err != nil {
		if markErr := w.repo.MarkFailed(ctx, job.ID, err.Error(), time.Now().UTC()); markErr != nil {
			w.logger.Warn("failed to mark job failed", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return err
	}
	if err := w.repo.MarkFinished(ctx, job.ID, relPath, time.Now().UTC()); err != nil {
		w.logger.Warn("failed to mark job finished", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	return nil
}

func (w *ReportWorker) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeTransactions:
		return w.transactionsDataset(ctx, job)
	case models.ReportTypeLoanHistory:
		return w.loanHistoryDataset(ctx, job)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %q", job.Type)
	}
}

func (w *ReportWorker) transactionsDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	filter := models.TransactionFilter{
		StudentID: job.Params.StudentID,
		From:      job.Params.From,
		To:        job.Params.To,
		Page:      1,
		PageSize:  100,
	}
	rows := []map[string]string{}
	for {
		transactions, total, err := w.transactions.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, "", err
		}
		for _, tx := range transactions {
			rows = append(rows, map[string]string{
				"Roll No": tx.StudentID,
				"Book ID": tx.BookID,
				"Action":  tx.ActionType,
				"Date":    tx.CreatedAt.Format("2006-01-02 15:04"),
			})
		}
		if len(rows) >= total || len(transactions) == 0 {
			break
		}
		filter.Page++
	}
	return export.Dataset{
		Headers: []string{"Roll No", "Book ID", "Action", "Date"},
		Rows:    rows,
	}, "Transaction Log", nil
}

func (w *ReportWorker) loanHistoryDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	loans, err := w.loans.ListByStudent(ctx, job.Params.StudentID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := make([]map[string]string, 0, len(loans))
	for _, loan := range loans {
		returned := ""
		if loan.ReturnDate != nil {
			returned = loan.ReturnDate.Format("2006-01-02")
		}
		rows = append(rows, map[string]string{
			"Book ID":  loan.BookID,
			"Title":    loan.Book.Name,
			"Author":   loan.Book.Author,
			"Issued":   loan.IssueDate.Format("2006-01-02"),
			"Returned": returned,
			"Status":   loan.ReturnStatus,
		})
	}
	title := fmt.Sprintf("Loan History %s", job.Params.StudentID)
	return export.Dataset{
		Headers: []string{"Book ID", "Title", "Author", "Issued", "Returned", "Status"},
		Rows:    rows,
	}, title, nil
}
