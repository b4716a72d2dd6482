package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/classly/scheduling-engine/pkg/errors"
)

type mockCacheRepository struct {
	store    map[string]string
	getErr   error
	setErr   error
	setCalls int
	deleted  []string
}

func newMockCacheRepository() *mockCacheRepository {
	return &mockCacheRepository{store: make(map[string]string)}
}

func (m *mockCacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	value, ok := m.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*dest.(*string) = value
	return nil
}

func (m *mockCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.setCalls++
	if m.setErr != nil {
		return m.setErr
	}
	m.store[key] = value.(string)
	return nil
}

func (m *mockCacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deleted = append(m.deleted, pattern)
	return nil
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := newMockCacheRepository()
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)

	svc.Set(context.Background(), "k", "v")

	var got string
	hit, err := svc.Get(context.Background(), "k", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "v", got)
}

func TestCacheServiceMissIsNotAnError(t *testing.T) {
	repo := newMockCacheRepository()
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)

	var got string
	hit, err := svc.Get(context.Background(), "absent", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheServiceSwallowsBackendFailures(t *testing.T) {
	repo := newMockCacheRepository()
	repo.getErr = assert.AnError
	repo.setErr = assert.AnError
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)

	var got string
	hit, err := svc.Get(context.Background(), "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	svc.Set(context.Background(), "k", "v")
	assert.Equal(t, 1, repo.setCalls)
}

func TestCacheServiceDisabledSkipsBackend(t *testing.T) {
	repo := newMockCacheRepository()
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), false)

	assert.False(t, svc.Enabled())

	svc.Set(context.Background(), "k", "v")
	assert.Zero(t, repo.setCalls)

	var got string
	hit, err := svc.Get(context.Background(), "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheServiceNilReceiverIsSafe(t *testing.T) {
	var svc *CacheService
	assert.False(t, svc.Enabled())

	var got string
	hit, err := svc.Get(context.Background(), "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)
	svc.Set(context.Background(), "k", "v")
}

func TestCacheServiceInvalidatePattern(t *testing.T) {
	repo := newMockCacheRepository()
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)

	svc.InvalidatePattern(context.Background(), "scheduling:content:*")
	assert.Equal(t, []string{"scheduling:content:*"}, repo.deleted)
}
