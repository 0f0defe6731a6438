package service

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yadhu-dev/library-automation-api/internal/models"
	appErrors "github.com/yadhu-dev/library-automation-api/pkg/errors"
	"github.com/yadhu-dev/library-automation-api/pkg/jobs"
	"github.com/yadhu-dev/library-automation-api/pkg/storage"
)

type mockReportStore struct {
	jobs map[string]models.ReportJob
}

func (m *mockReportStore) Create(ctx context.Context, job *models.ReportJob) error {
	if m.jobs == nil {
		m.jobs = make(map[string]models.ReportJob)
	}
	if job.ID == "" {
		job.ID = "job-1"
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *mockReportStore) FindByID(ctx context.Context, id string) (*models.ReportJob, error) {
	if j, ok := m.jobs[id]; ok {
		return &j, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReportStore) MarkProcessing(ctx context.Context, id string) error {
	j := m.jobs[id]
	j.Status = models.ReportStatusProcessing
	m.jobs[id] = j
	return nil
}

func (m *mockReportStore) MarkFinished(ctx context.Context, id, resultPath string, finishedAt time.Time) error {
	j := m.jobs[id]
	j.Status = models.ReportStatusFinished
	j.ResultPath = &resultPath
	j.FinishedAt = &finishedAt
	m.jobs[id] = j
	return nil
}

func (m *mockReportStore) MarkFailed(ctx context.Context, id, message string, finishedAt time.Time) error {
	j := m.jobs[id]
	j.Status = models.ReportStatusFailed
	j.ErrorMessage = &message
	j.FinishedAt = &finishedAt
	m.jobs[id] = j
	return nil
}

func (m *mockReportStore) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	return nil, nil
}

type mockDispatcher struct {
	enqueued []jobs.Job
	fail     bool
}

func (m *mockDispatcher) Enqueue(job jobs.Job) error {
	if m.fail {
		return assert.AnError
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

type mockTransactionSource struct {
	transactions []models.Transaction
}

func (m *mockTransactionSource) List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int, error) {
	return m.transactions, len(m.transactions), nil
}

type mockLoanSource struct {
	loans []models.LoanDetail
}

func (m *mockLoanSource) ListByStudent(ctx context.Context, rollNo string) ([]models.LoanDetail, error) {
	return m.loans, nil
}

func newReportFixture(t *testing.T) (*ReportService, *ReportWorker, *mockReportStore, *mockDispatcher, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := &mockReportStore{}
	dispatcher := &mockDispatcher{}
	signer := storage.NewSignedURLSigner("report-secret", time.Hour)
	svc := NewReportService(repo, dispatcher, store, signer, zap.NewNop(), ReportServiceConfig{})
	worker := NewReportWorker(repo,
		&mockTransactionSource{transactions: []models.Transaction{
			{StudentID: "IS2524", BookID: "BK001", ActionType: models.TransactionActionIssue, CreatedAt: time.Now()},
		}},
		&mockLoanSource{loans: []models.LoanDetail{
			{Loan: models.Loan{BookID: "BK001", IssueDate: time.Now(), ReturnStatus: models.LoanStatusIssued},
				Book: models.Book{BookID: "BK001", Name: "Signals and Systems", Author: "Oppenheim"}},
		}},
		store, zap.NewNop())
	return svc, worker, repo, dispatcher, store
}

func TestReportCreateJobEnqueues(t *testing.T) {
	svc, _, repo, dispatcher, _ := newReportFixture(t)

	resp, err := svc.CreateJob(context.Background(), CreateReportRequest{
		Type:   models.ReportTypeTransactions,
		Format: models.ReportFormatCSV,
	}, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	require.Len(t, dispatcher.enqueued, 1)
	assert.Equal(t, resp.ID, dispatcher.enqueued[0].ID)
	assert.Contains(t, repo.jobs, resp.ID)
}

func TestReportCreateJobValidation(t *testing.T) {
	svc, _, _, _, _ := newReportFixture(t)

	_, err := svc.CreateJob(context.Background(), CreateReportRequest{
		Type:   models.ReportTypeLoanHistory,
		Format: models.ReportFormatCSV,
	}, "u1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateJob(context.Background(), CreateReportRequest{
		Type:   models.ReportTypeTransactions,
		Format: "xlsx",
	}, "u1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportCreateJobEnqueueFailureMarksFailed(t *testing.T) {
	svc, _, repo, dispatcher, _ := newReportFixture(t)
	dispatcher.fail = true

	_, err := svc.CreateJob(context.Background(), CreateReportRequest{
		Type:   models.ReportTypeTransactions,
		Format: models.ReportFormatCSV,
	}, "u1")
	require.Error(t, err)
	assert.Equal(t, models.ReportStatusFailed, repo.jobs["job-1"].Status)
}

func TestReportWorkerRendersAndStores(t *testing.T) {
	svc, worker, repo, _, _ := newReportFixture(t)

	resp, err := svc.CreateJob(context.Background(), CreateReportRequest{
		Type:   models.ReportTypeTransactions,
		Format: models.ReportFormatCSV,
	}, "u1")
	require.NoError(t, err)

	err = worker.Handle(context.Background(), jobs.Job{ID: resp.ID})
	require.NoError(t, err)

	stored := repo.jobs[resp.ID]
	assert.Equal(t, models.ReportStatusFinished, stored.Status)
	require.NotNil(t, stored.ResultPath)
	assert.Equal(t, filepath.Join("reports", resp.ID+".csv"), filepath.Clean(*stored.ResultPath))

	status, err := svc.Status(context.Background(), resp.ID)
	require.NoError(t, err)
	require.NotNil(t, status.ResultURL)
	assert.True(t, strings.HasPrefix(*status.ResultURL, "/api/v1/reports/download/"))
}

func TestReportResolveDownload(t *testing.T) {
	svc, worker, _, _, _ := newReportFixture(t)

	resp, err := svc.CreateJob(context.Background(), CreateReportRequest{
		Type:      models.ReportTypeLoanHistory,
		Format:    models.ReportFormatCSV,
		StudentID: "IS2524",
	}, "u1")
	require.NoError(t, err)
	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: resp.ID}))

	status, err := svc.Status(context.Background(), resp.ID)
	require.NoError(t, err)
	require.NotNil(t, status.ResultURL)
	token := strings.TrimPrefix(*status.ResultURL, "/api/v1/reports/download/")

	download, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, resp.ID+".csv", download.Filename)

	raw, err := os.ReadFile(download.File.Name())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "BK001")
}

func TestReportResolveDownloadBadToken(t *testing.T) {
	svc, _, _, _, _ := newReportFixture(t)

	_, err := svc.ResolveDownload(context.Background(), "garbage")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
