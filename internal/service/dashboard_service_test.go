package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yadhu-dev/library-automation-api/internal/repository"
	appErrors "github.com/yadhu-dev/library-automation-api/pkg/errors"
)

type mockDashStudents struct{ count int }

func (m *mockDashStudents) Count(ctx context.Context) (int, error) { return m.count, nil }

type mockDashBooks struct{ stats repository.BookStats }

func (m *mockDashBooks) Stats(ctx context.Context) (repository.BookStats, error) {
	return m.stats, nil
}

type mockDashLoans struct{ active int }

func (m *mockDashLoans) CountActive(ctx context.Context) (int, error) { return m.active, nil }

type mockDashTransactions struct {
	count     int
	lastSince time.Time
}

func (m *mockDashTransactions) CountSince(ctx context.Context, since time.Time) (int, error) {
	m.lastSince = since
	return m.count, nil
}

type memoryCacheRepo struct {
	values map[string][]byte
	sets   int
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if raw, ok := m.values[key]; ok {
		return json.Unmarshal(raw, dest)
	}
	return appErrors.ErrCacheMiss
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.values == nil {
		m.values = make(map[string][]byte)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	m.sets++
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.values = nil
	return nil
}

func TestDashboardSummary(t *testing.T) {
	transactions := &mockDashTransactions{count: 7}
	svc := NewDashboardService(
		&mockDashStudents{count: 120},
		&mockDashBooks{stats: repository.BookStats{Titles: 40, TotalCopies: 160, AvailableCopies: 130}},
		&mockDashLoans{active: 30},
		transactions,
		nil,
		time.Minute,
		zap.NewNop(),
	)

	summary, cached, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 120, summary.Students)
	assert.Equal(t, 40, summary.BookTitles)
	assert.Equal(t, 30, summary.ActiveLoans)
	assert.Equal(t, 7, summary.TransactionsToday)
	assert.Equal(t, 0, transactions.lastSince.Hour())
}

func TestDashboardSummaryCached(t *testing.T) {
	repo := &memoryCacheRepo{}
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	svc := NewDashboardService(
		&mockDashStudents{count: 120},
		&mockDashBooks{},
		&mockDashLoans{},
		&mockDashTransactions{},
		cache,
		time.Minute,
		zap.NewNop(),
	)

	_, cached, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)

	_, cached, err = svc.Summary(context.Background())
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 1, repo.sets)

	svc.Invalidate(context.Background())
	_, cached, err = svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
}
