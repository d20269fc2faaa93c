package redis

import (
	"context"
	"errors"
	"time"

	"github.com/faixamestre/dojo-hub/internal/domain/belt"
	"github.com/faixamestre/dojo-hub/internal/domain/student"
	"github.com/faixamestre/dojo-hub/pkg/circuitbreaker"
	"github.com/faixamestre/dojo-hub/pkg/logger"
)

// KeyValue is the part of Cache the student cache needs.
type KeyValue interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// cachedStudent is the stored form; the domain type carries no JSON tags.
type cachedStudent struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	DateOfBirth       time.Time      `json:"date_of_birth"`
	Category          belt.Category  `json:"category"`
	Rank              belt.Rank      `json:"rank"`
	JoinDate          time.Time      `json:"join_date"`
	LastPromotionDate *time.Time     `json:"last_promotion_date,omitempty"`
	Email             string         `json:"email,omitempty"`
	Phone             string         `json:"phone,omitempty"`
	Notes             string         `json:"notes,omitempty"`
	Status            student.Status `json:"status"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func toCached(s *student.Student) cachedStudent {
	return cachedStudent{
		ID:                s.ID,
		Name:              s.Name,
		DateOfBirth:       s.DateOfBirth,
		Category:          s.Category,
		Rank:              s.CurrentRank,
		JoinDate:          s.JoinDate,
		LastPromotionDate: s.LastPromotionDate,
		Email:             s.Email,
		Phone:             s.Phone,
		Notes:             s.Notes,
		Status:            s.Status,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

func (c cachedStudent) toDomain() *student.Student {
	return &student.Student{
		ID:                c.ID,
		Name:              c.Name,
		DateOfBirth:       c.DateOfBirth.UTC(),
		Category:          c.Category,
		CurrentRank:       c.Rank,
		JoinDate:          c.JoinDate.UTC(),
		LastPromotionDate: utcPtr(c.LastPromotionDate),
		Email:             c.Email,
		Phone:             c.Phone,
		Notes:             c.Notes,
		Status:            c.Status,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// ══════════════════════════════════════════════════════════════════════════════
// READ-THROUGH STUDENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// CachedStudentRepository serves GetByID from Redis and falls back to the
// wrapped repository. Every write through it drops the cached entry. Cache
// errors never fail a request; a circuit breaker skips Redis while it is down.
type CachedStudentRepository struct {
	student.Repository

	kv      KeyValue
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
}

// NewCachedStudentRepository wraps repo with a cache.
func NewCachedStudentRepository(repo student.Repository, kv KeyValue, ttl time.Duration, log *logger.Logger) *CachedStudentRepository {
	if ttl <= 0 {
		ttl = TTLStudentCache
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("student_cache"))

	return &CachedStudentRepository{
		Repository: repo,
		kv:         kv,
		ttl:        ttl,
		log:        log,
		breaker: circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("cache breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}),
	}
}

// GetByID tries the cache first.
func (r *CachedStudentRepository) GetByID(ctx context.Context, id string) (*student.Student, error) {
	var c cachedStudent
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		err := r.kv.Get(ctx, StudentKey(id), &c)
		if errors.Is(err, ErrCacheMiss) {
			// A miss is a healthy answer.
			return nil
		}
		return err
	})
	if err == nil && c.ID != "" {
		return c.toDomain(), nil
	}
	if err != nil && !circuitbreaker.IsRejected(err) {
		r.log.Warn("cache read failed", logger.StudentID(id), logger.Err(err))
	}

	s, err := r.Repository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, s)
	return s, nil
}

// Create inserts and caches the new student.
func (r *CachedStudentRepository) Create(ctx context.Context, s *student.Student) error {
	if err := r.Repository.Create(ctx, s); err != nil {
		return err
	}
	r.store(ctx, s)
	return nil
}

// Update writes through and drops the cached entry.
func (r *CachedStudentRepository) Update(ctx context.Context, s *student.Student) error {
	err := r.Repository.Update(ctx, s)
	r.Invalidate(ctx, s.ID)
	return err
}

// Deactivate writes through and drops the cached entry.
func (r *CachedStudentRepository) Deactivate(ctx context.Context, id string) error {
	err := r.Repository.Deactivate(ctx, id)
	r.Invalidate(ctx, id)
	return err
}

// Invalidate drops the cached entry for id.
func (r *CachedStudentRepository) Invalidate(ctx context.Context, id string) {
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.kv.Delete(ctx, StudentKey(id))
	})
	if err != nil && !circuitbreaker.IsRejected(err) {
		r.log.Warn("cache invalidation failed", logger.StudentID(id), logger.Err(err))
	}
}

func (r *CachedStudentRepository) store(ctx context.Context, s *student.Student) {
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.kv.Set(ctx, StudentKey(s.ID), toCached(s), r.ttl)
	})
	if err != nil && !circuitbreaker.IsRejected(err) {
		r.log.Warn("cache write failed", logger.StudentID(s.ID), logger.Err(err))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PROMOTIONS
// ══════════════════════════════════════════════════════════════════════════════

// InvalidatingPromotions drops the cached student after every promotion
// attempt, successful or not, so the next read sees the stored rank.
type InvalidatingPromotions struct {
	student.PromotionRepository
	students *CachedStudentRepository
}

// NewInvalidatingPromotions wraps repo.
func NewInvalidatingPromotions(repo student.PromotionRepository, students *CachedStudentRepository) *InvalidatingPromotions {
	return &InvalidatingPromotions{PromotionRepository: repo, students: students}
}

// ApplyPromotion applies through the wrapped repository.
func (p *InvalidatingPromotions) ApplyPromotion(ctx context.Context, rec *student.PromotionRecord, expectedLast *time.Time) error {
	err := p.PromotionRepository.ApplyPromotion(ctx, rec, expectedLast)
	p.students.Invalidate(ctx, rec.StudentID)
	return err
}
