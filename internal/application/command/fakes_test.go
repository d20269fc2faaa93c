package command

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/faixamestre/dojo-hub/internal/domain/belt"
	"github.com/faixamestre/dojo-hub/internal/domain/shared"
	"github.com/faixamestre/dojo-hub/internal/domain/student"
	"github.com/faixamestre/dojo-hub/pkg/timeutil"
)

var (
	today = time.Date(2030, 6, 15, 0, 0, 0, 0, time.UTC)
	clock = timeutil.FixedClock(today.Add(15 * time.Hour))
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// memStore is an in-memory student, promotion, attendance and payment store.
type memStore struct {
	mu         sync.Mutex
	students   map[string]*student.Student
	promotions []student.PromotionRecord
	attendance []student.AttendanceRecord
	payments   map[[3]any]student.PaymentRecord
	existsHits int
}

func newMemStore(students ...*student.Student) *memStore {
	m := &memStore{
		students: map[string]*student.Student{},
		payments: map[[3]any]student.PaymentRecord{},
	}
	for _, s := range students {
		m.students[strings.ToLower(s.ID)] = s
	}
	return m
}

func (m *memStore) Create(_ context.Context, s *student.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(s.ID)
	if _, ok := m.students[key]; ok {
		return shared.ErrStudentAlreadyExists
	}
	cp := *s
	m.students[key] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*student.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[strings.ToLower(id)]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) Update(_ context.Context, s *student.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[strings.ToLower(s.ID)].Name = s.Name
	return nil
}

func (m *memStore) Deactivate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[strings.ToLower(id)]
	if !ok {
		return shared.ErrStudentNotFound
	}
	if !s.IsActive() {
		return shared.ErrStudentNotActive
	}
	s.Status = student.StatusInactive
	return nil
}

func (m *memStore) List(context.Context, student.ListOptions) ([]*student.Student, error) {
	return nil, nil
}

func (m *memStore) Count(context.Context, student.ListOptions) (int, error) {
	return len(m.students), nil
}

func (m *memStore) Exists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existsHits++
	_, ok := m.students[strings.ToLower(id)]
	return ok, nil
}

func (m *memStore) ApplyPromotion(_ context.Context, rec *student.PromotionRecord, expectedLast *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[strings.ToLower(rec.StudentID)]
	if !ok {
		return shared.ErrStudentNotFound
	}
	if !student.SameLastPromotion(s.LastPromotionDate, expectedLast) {
		return shared.ErrPromotionConflict
	}
	s.Promote(rec.To, rec.Date)
	m.promotions = append(m.promotions, *rec)
	return nil
}

func (m *memStore) ListByStudent(context.Context, string) ([]student.PromotionRecord, error) {
	return m.promotions, nil
}

type attendanceStore struct{ *memStore }

func (a attendanceStore) Create(_ context.Context, rec *student.AttendanceRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attendance = append(a.attendance, *rec)
	return nil
}

func (a attendanceStore) ListByStudent(context.Context, string, time.Time, time.Time) ([]student.AttendanceRecord, error) {
	return a.attendance, nil
}

type paymentStore struct{ *memStore }

func (p paymentStore) Save(_ context.Context, rec *student.PaymentRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payments[[3]any{rec.StudentID, rec.Year, rec.Month}] = *rec
	return nil
}

func (p paymentStore) ListByStudent(context.Context, string) ([]student.PaymentRecord, error) {
	return nil, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *capturePublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func blueAdult() *student.Student {
	last := date(2028, 3, 10)
	return &student.Student{
		ID:                "Ana1234",
		Name:              "Ana Souza",
		DateOfBirth:       date(1995, 5, 17),
		Category:          belt.CategoryAdult,
		CurrentRank:       belt.Rank{Color: belt.Blue},
		JoinDate:          date(2020, 1, 10),
		LastPromotionDate: &last,
		Status:            student.StatusActive,
	}
}
