package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faixamestre/dojo-hub/internal/domain/belt"
	"github.com/faixamestre/dojo-hub/internal/domain/shared"
	"github.com/faixamestre/dojo-hub/internal/domain/student"
)

// memKV stores JSON like Redis does.
type memKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	failing bool
	gets    int
}

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

var errRedisDown = errors.New("connection refused")

func (m *memKV) Get(_ context.Context, key string, dest any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.failing {
		return errRedisDown
	}
	b, ok := m.data[key]
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(b, dest)
}

func (m *memKV) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errRedisDown
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = b
	return nil
}

func (m *memKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errRedisDown
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memKV) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

type fakeRepo struct {
	student.Repository
	students map[string]*student.Student
	reads    int
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*student.Student, error) {
	f.reads++
	s, ok := f.students[id]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeRepo) Create(_ context.Context, s *student.Student) error {
	f.students[s.ID] = s
	return nil
}

func (f *fakeRepo) Update(_ context.Context, s *student.Student) error {
	f.students[s.ID] = s
	return nil
}

func (f *fakeRepo) Deactivate(_ context.Context, id string) error {
	f.students[id].Status = student.StatusInactive
	return nil
}

type fakePromotions struct {
	student.PromotionRepository
	err error
}

func (f *fakePromotions) ApplyPromotion(context.Context, *student.PromotionRecord, *time.Time) error {
	return f.err
}

func sampleStudent() *student.Student {
	last := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	return &student.Student{
		ID:                "Ana1234",
		Name:              "Ana Souza",
		DateOfBirth:       time.Date(2000, 5, 17, 0, 0, 0, 0, time.UTC),
		Category:          belt.CategoryAdult,
		CurrentRank:       belt.Rank{Color: belt.Blue},
		JoinDate:          time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC),
		LastPromotionDate: &last,
		Status:            student.StatusActive,
	}
}

func TestCachedStudentRepository_ReadThrough(t *testing.T) {
	kv := newMemKV()
	repo := &fakeRepo{students: map[string]*student.Student{"Ana1234": sampleStudent()}}
	cached := NewCachedStudentRepository(repo, kv, time.Minute, nil)
	ctx := context.Background()

	first, err := cached.GetByID(ctx, "Ana1234")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.reads)
	assert.True(t, kv.has(StudentKey("ana1234")))

	second, err := cached.GetByID(ctx, "Ana1234")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.reads, "second read should be served from cache")
	assert.Equal(t, first, second)
	assert.True(t, second.LastPromotionDate.Equal(*first.LastPromotionDate))
}

func TestCachedStudentRepository_NotFoundPassesThrough(t *testing.T) {
	cached := NewCachedStudentRepository(&fakeRepo{students: map[string]*student.Student{}}, newMemKV(), 0, nil)

	_, err := cached.GetByID(context.Background(), "Nobody1000")
	assert.ErrorIs(t, err, shared.ErrStudentNotFound)
}

func TestCachedStudentRepository_WritesInvalidate(t *testing.T) {
	kv := newMemKV()
	repo := &fakeRepo{students: map[string]*student.Student{}}
	cached := NewCachedStudentRepository(repo, kv, time.Minute, nil)
	ctx := context.Background()

	s := sampleStudent()
	require.NoError(t, cached.Create(ctx, s))
	assert.True(t, kv.has(StudentKey(s.ID)))

	require.NoError(t, cached.Deactivate(ctx, s.ID))
	assert.False(t, kv.has(StudentKey(s.ID)))

	_, err := cached.GetByID(ctx, s.ID)
	require.NoError(t, err)
	require.NoError(t, cached.Update(ctx, s))
	assert.False(t, kv.has(StudentKey(s.ID)))
}

func TestCachedStudentRepository_RedisDownFallsBack(t *testing.T) {
	kv := newMemKV()
	kv.failing = true
	repo := &fakeRepo{students: map[string]*student.Student{"Ana1234": sampleStudent()}}
	cached := NewCachedStudentRepository(repo, kv, time.Minute, nil)

	for i := 0; i < 5; i++ {
		s, err := cached.GetByID(context.Background(), "Ana1234")
		require.NoError(t, err)
		assert.Equal(t, "Ana Souza", s.Name)
	}
	assert.Equal(t, 5, repo.reads)
	assert.Less(t, kv.gets, 5, "breaker should stop calling redis")
}

func TestInvalidatingPromotions(t *testing.T) {
	kv := newMemKV()
	repo := &fakeRepo{students: map[string]*student.Student{"Ana1234": sampleStudent()}}
	cached := NewCachedStudentRepository(repo, kv, time.Minute, nil)
	ctx := context.Background()

	_, err := cached.GetByID(ctx, "Ana1234")
	require.NoError(t, err)

	promos := NewInvalidatingPromotions(&fakePromotions{err: shared.ErrPromotionConflict}, cached)
	err = promos.ApplyPromotion(ctx, &student.PromotionRecord{StudentID: "Ana1234"}, nil)

	assert.ErrorIs(t, err, shared.ErrPromotionConflict)
	assert.False(t, kv.has(StudentKey("Ana1234")))
}

func TestConfigOptions(t *testing.T) {
	opts, err := Config{URL: "redis://:pw@cache:6380/2", PoolSize: 4}.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 4, opts.PoolSize)

	opts, err = DefaultConfig().Options()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)

	_, err = Config{URL: "http://nope"}.Options()
	assert.Error(t, err)
}
