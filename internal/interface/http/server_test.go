package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/faixamestre/dojo-hub/internal/application/command"
	"github.com/faixamestre/dojo-hub/internal/application/eventhandler"
	"github.com/faixamestre/dojo-hub/internal/application/query"
	"github.com/faixamestre/dojo-hub/internal/domain/belt"
	"github.com/faixamestre/dojo-hub/internal/domain/shared"
	"github.com/faixamestre/dojo-hub/internal/domain/student"
	"github.com/faixamestre/dojo-hub/internal/infrastructure/messaging"
	"github.com/faixamestre/dojo-hub/internal/infrastructure/persistence/projections"
	"github.com/faixamestre/dojo-hub/internal/interface/http/handlers"
	"github.com/faixamestre/dojo-hub/pkg/timeutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var today = time.Date(2030, 6, 15, 0, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY STORE
// ══════════════════════════════════════════════════════════════════════════════

type store struct {
	mu         sync.Mutex
	students   map[string]*student.Student
	promotions []student.PromotionRecord
	attendance []student.AttendanceRecord
	payments   []student.PaymentRecord
	listErr    error
}

func newStore(students ...*student.Student) *store {
	s := &store{students: map[string]*student.Student{}}
	for _, st := range students {
		s.students[strings.ToLower(st.ID)] = st
	}
	return s
}

func (s *store) Create(_ context.Context, st *student.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[strings.ToLower(st.ID)]; ok {
		return shared.ErrStudentAlreadyExists
	}
	cp := *st
	s.students[strings.ToLower(st.ID)] = &cp
	return nil
}

func (s *store) GetByID(_ context.Context, id string) (*student.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[strings.ToLower(id)]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	cp := *st
	return &cp, nil
}

func (s *store) Update(context.Context, *student.Student) error { return nil }

func (s *store) Deactivate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[strings.ToLower(id)]
	if !ok {
		return shared.ErrStudentNotFound
	}
	if !st.IsActive() {
		return shared.ErrStudentNotActive
	}
	st.Status = student.StatusInactive
	return nil
}

func (s *store) matching(opts student.ListOptions) []*student.Student {
	var out []*student.Student
	for _, st := range s.students {
		if !opts.IncludeInactive && !st.IsActive() {
			continue
		}
		if opts.Category != "" && st.Category != opts.Category {
			continue
		}
		cp := *st
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *student.Student) int {
		return strings.Compare(a.Name+a.ID, b.Name+b.ID)
	})
	return out
}

func (s *store) List(_ context.Context, opts student.ListOptions) ([]*student.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	all := s.matching(opts)
	if opts.Offset >= len(all) {
		return nil, nil
	}
	end := len(all)
	if opts.Limit > 0 {
		end = min(end, opts.Offset+opts.Limit)
	}
	return all[opts.Offset:end], nil
}

func (s *store) Count(_ context.Context, opts student.ListOptions) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matching(opts)), nil
}

func (s *store) Exists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.students[strings.ToLower(id)]
	return ok, nil
}

func (s *store) ApplyPromotion(_ context.Context, rec *student.PromotionRecord, expectedLast *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[strings.ToLower(rec.StudentID)]
	if !ok {
		return shared.ErrStudentNotFound
	}
	if !student.SameLastPromotion(st.LastPromotionDate, expectedLast) {
		return shared.ErrPromotionConflict
	}
	st.Promote(rec.To, rec.Date)
	s.promotions = append(s.promotions, *rec)
	return nil
}

func (s *store) ListByStudent(context.Context, string) ([]student.PromotionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.promotions), nil
}

type attendanceStore struct{ *store }

func (a attendanceStore) Create(_ context.Context, rec *student.AttendanceRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attendance = append(a.attendance, *rec)
	return nil
}

func (a attendanceStore) ListByStudent(context.Context, string, time.Time, time.Time) ([]student.AttendanceRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.attendance), nil
}

type paymentStore struct{ *store }

func (p paymentStore) Save(_ context.Context, rec *student.PaymentRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payments = append(p.payments, *rec)
	return nil
}

func (p paymentStore) ListByStudent(context.Context, string) ([]student.PaymentRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.payments), nil
}

func adult(id, name string, color belt.Color, since time.Time) *student.Student {
	return &student.Student{
		ID:                id,
		Name:              name,
		DateOfBirth:       date(1995, 5, 17),
		Category:          belt.CategoryAdult,
		CurrentRank:       belt.Rank{Color: color},
		JoinDate:          date(2015, 1, 10),
		LastPromotionDate: &since,
		Status:            student.StatusActive,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HARNESS
// ══════════════════════════════════════════════════════════════════════════════

type harness struct {
	store  *store
	board  *projections.OfferBoard
	bus    *messaging.InMemoryEventBus
	events []shared.Event
	srv    *Server
}

func newHarness(t *testing.T, cfg Config, students ...*student.Student) *harness {
	t.Helper()

	h := &harness{
		store: newStore(students...),
		board: projections.NewOfferBoard(),
		bus:   messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{}),
	}
	t.Cleanup(func() { _ = h.bus.Close() })
	require.NoError(t, h.bus.SubscribeAll(func(e shared.Event) error {
		h.events = append(h.events, e)
		return nil
	}))
	offers := eventhandler.NewOnPromotionEligibleHandler(h.store, h.board, nil, eventhandler.DefaultPromotionEligibleConfig())
	require.NoError(t, h.bus.Subscribe(shared.EventPromotionEligible, offers.Handle))
	withdraw := eventhandler.NewOnStudentChangedHandler(h.board, nil)
	for _, et := range withdraw.EventTypes() {
		require.NoError(t, h.bus.Subscribe(et, withdraw.Handle))
	}

	clock := timeutil.FixedClock(today.Add(14 * time.Hour))
	loc := time.UTC
	att := attendanceStore{h.store}
	pay := paymentStore{h.store}

	srv, err := NewServer(cfg, Dependencies{
		EnrollStudent:          command.NewEnrollStudentHandler(h.store, h.bus, clock, loc, nil),
		PromoteStudent:         command.NewPromoteStudentHandler(h.store, h.store, h.bus, clock, loc, nil),
		LogAttendance:          command.NewLogAttendanceHandler(h.store, att, h.bus, clock, loc, nil),
		RecordPayment:          command.NewRecordPaymentHandler(h.store, pay, h.bus, nil),
		DeactivateStudent:      command.NewDeactivateStudentHandler(h.store, h.bus, nil),
		GetEligibility:         query.NewGetEligibilityHandler(h.store, clock, loc),
		ListUpcomingPromotions: query.NewListUpcomingPromotionsHandler(h.store, clock, loc, 0),
		GetStudent:             query.NewGetStudentHandler(h.store, h.store, att, pay, clock, loc),
		ListStudents:           query.NewListStudentsHandler(h.store),
		Offers:                 h.board,
		Stats: func() map[string]any {
			return map[string]any{"events": h.bus.Metrics()}
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	h.srv = srv
	return h
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	return cfg
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	Meta      *ResponseMeta   `json:"meta"`
	RequestID string          `json:"request_id"`
}

func (h *harness) do(t *testing.T, method, path, body string, header ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestGetEligibility(t *testing.T) {
	h := newHarness(t, testConfig(), adult("Ana1234", "Ana Souza", belt.Blue, date(2028, 3, 10)))

	rec, env := h.do(t, http.MethodGet, "/api/v1/students/ana1234/eligibility", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.RequestID)
	assert.Equal(t, env.RequestID, rec.Header().Get("X-Request-ID"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")

	var dto query.EligibilityDTO
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	assert.True(t, dto.Verdict.Eligible)
	require.NotNil(t, dto.Verdict.NextRank)
	assert.Equal(t, belt.Purple, dto.Verdict.NextRank.Color)
	assert.Equal(t, 27, dto.MonthsInGrade)

	// Two months after the last promotion nothing is offered yet.
	rec, env = h.do(t, http.MethodGet, "/api/v1/students/Ana1234/eligibility?as_of=2028-05-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	assert.False(t, dto.Verdict.Eligible)
	assert.Nil(t, dto.Verdict.NextRank)
}

func TestGetEligibility_Errors(t *testing.T) {
	h := newHarness(t, testConfig())

	rec, env := h.do(t, http.MethodGet, "/api/v1/students/Nobody1000/eligibility", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Code)
	assert.Equal(t, "student not found", env.Error.Message)

	rec, env = h.do(t, http.MethodGet, "/api/v1/students/Nobody1000/eligibility?as_of=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", env.Error.Code)
}

func TestEnrollStudent(t *testing.T) {
	h := newHarness(t, testConfig())

	body := `{"name":"Bruno Lima","date_of_birth":"1990-01-20","category":"adulto","belt":"white","join_date":"2030-06-01"}`
	rec, env := h.do(t, http.MethodPost, "/api/v1/students", body, "X-Request-ID", "req-enroll")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var view query.StudentView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "/api/v1/students/"+view.ID, rec.Header().Get("Location"))
	assert.Equal(t, belt.CategoryAdult, view.Category)
	assert.Equal(t, "2030-06-01", view.JoinDate)
	assert.Equal(t, "req-enroll", env.RequestID)

	require.Len(t, h.events, 1)
	assert.Equal(t, shared.EventStudentEnrolled, h.events[0].EventType())
	meta, ok := h.events[0].(interface{ Meta() shared.BaseEvent })
	require.True(t, ok)
	assert.Equal(t, "req-enroll", meta.Meta().CorrelationID)
}

func TestEnrollStudent_BadRequests(t *testing.T) {
	h := newHarness(t, testConfig())

	tests := []struct {
		name string
		body string
		code string
	}{
		{"empty body", "", "invalid_request"},
		{"unknown field", `{"name":"X","nickname":"y"}`, "invalid_request"},
		{"missing birth date", `{"name":"Bruno","category":"adult","belt":"white"}`, "invalid_request"},
		{"bad date", `{"name":"Bruno","date_of_birth":"20/13/1990","category":"adult","belt":"white"}`, "invalid_request"},
		{"missing name", `{"date_of_birth":"1990-01-20","category":"adult","belt":"white"}`, "validation_error"},
		{"unknown category", `{"name":"Bruno","date_of_birth":"1990-01-20","category":"elder","belt":"white"}`, "validation_error"},
		{"promoted before joining", `{"name":"Bruno","date_of_birth":"1990-01-20","category":"adult","belt":"blue","join_date":"2030-06-01","last_promotion_date":"2029-01-01"}`, "validation_error"},
		{"promoted in the future", `{"name":"Bruno","date_of_birth":"1990-01-20","category":"adult","belt":"blue","last_promotion_date":"2031-01-01"}`, "validation_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := h.do(t, http.MethodPost, "/api/v1/students", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
	assert.Empty(t, h.events)
}

func TestPromoteStudent(t *testing.T) {
	h := newHarness(t, testConfig(), adult("Ana1234", "Ana Souza", belt.Blue, date(2028, 3, 10)))

	rec, env := h.do(t, http.MethodPost, "/api/v1/students/Ana1234/promotions",
		`{"belt":"purple","confirmed":true,"confirmed_by":"Professor Carlos"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Promotion student.PromotionRecord `json:"promotion"`
		Student   query.StudentView       `json:"student"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, belt.Purple, resp.Promotion.To.Color)
	assert.Equal(t, belt.Blue, resp.Promotion.From.Color)
	assert.Equal(t, "purple", resp.Student.Belt)
	require.NotNil(t, resp.Student.LastPromotionDate)
	assert.Equal(t, "2030-06-15", *resp.Student.LastPromotionDate)

	st, err := h.store.GetByID(context.Background(), "Ana1234")
	require.NoError(t, err)
	assert.Equal(t, belt.Purple, st.CurrentRank.Color)
	require.Len(t, h.events, 1)
	assert.Equal(t, shared.EventStudentPromoted, h.events[0].EventType())

	// The same request again: the fresh promotion makes the student ineligible.
	rec, env = h.do(t, http.MethodPost, "/api/v1/students/Ana1234/promotions",
		`{"belt":"brown","confirmed":true}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "not_eligible", env.Error.Code)
	assert.NotEmpty(t, env.Error.Details)
}

func TestPromoteStudent_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"not confirmed", "/api/v1/students/Ana1234/promotions", `{"belt":"purple"}`, http.StatusBadRequest, "confirmation_required"},
		{"wrong rank", "/api/v1/students/Ana1234/promotions", `{"belt":"brown","confirmed":true}`, http.StatusUnprocessableEntity, "rank_mismatch"},
		{"inactive", "/api/v1/students/Old1000/promotions", `{"belt":"purple","confirmed":true}`, http.StatusConflict, "student_inactive"},
		{"unknown student", "/api/v1/students/Nobody1000/promotions", `{"belt":"purple","confirmed":true}`, http.StatusNotFound, "not_found"},
		{"missing belt", "/api/v1/students/Ana1234/promotions", `{"confirmed":true}`, http.StatusBadRequest, "validation_error"},
		{"future date", "/api/v1/students/Ana1234/promotions", `{"belt":"purple","confirmed":true,"promotion_date":"2033-01-01"}`, http.StatusBadRequest, "validation_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			old := adult("Old1000", "Old Timer", belt.Blue, date(2020, 1, 1))
			old.Status = student.StatusInactive
			h := newHarness(t, testConfig(), adult("Ana1234", "Ana Souza", belt.Blue, date(2028, 3, 10)), old)

			rec, env := h.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.Empty(t, h.store.promotions)
			assert.Empty(t, h.events)
		})
	}
}

func TestListUpcomingPromotions(t *testing.T) {
	h := newHarness(t, testConfig(),
		adult("Ana1234", "Ana Souza", belt.Blue, date(2028, 3, 10)),
		adult("Bia1234", "Bia Rocha", belt.Purple, date(2030, 1, 1)),
		adult("Caio1234", "Caio Dias", belt.White, date(2029, 1, 1)),
	)

	rec, env := h.do(t, http.MethodGet, "/api/v1/promotions/upcoming?limit=10&category=adult", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var dto query.UpcomingPromotionsDTO
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	require.Len(t, dto.Promotions, 2)
	assert.Equal(t, "Ana1234", dto.Promotions[0].StudentID)
	assert.Equal(t, "Caio1234", dto.Promotions[1].StudentID)
	assert.Equal(t, 2, env.Meta.TotalCount)

	rec, _ = h.do(t, http.MethodGet, "/api/v1/promotions/upcoming?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = h.do(t, http.MethodGet, "/api/v1/promotions/upcoming?category=elder", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListUpcomingPromotions_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.EnableUpcoming = false
	h := newHarness(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/promotions/upcoming", nil)
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRepositoryFailureIsHidden(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.listErr = errors.New("pq: connection reset by peer")

	rec, env := h.do(t, http.MethodGet, "/api/v1/promotions/upcoming", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", env.Error.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestListStudents(t *testing.T) {
	old := adult("Old1000", "Old Timer", belt.Blue, date(2020, 1, 1))
	old.Status = student.StatusInactive
	h := newHarness(t, testConfig(),
		adult("Ana1234", "Ana Souza", belt.Blue, date(2028, 3, 10)),
		adult("Bia1234", "Bia Rocha", belt.Purple, date(2030, 1, 1)),
		old,
	)

	rec, env := h.do(t, http.MethodGet, "/api/v1/students?page_size=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var views []query.StudentView
	require.NoError(t, json.Unmarshal(env.Data, &views))
	require.Len(t, views, 1)
	assert.Equal(t, "Ana1234", views[0].ID)
	assert.Equal(t, 2, env.Meta.TotalCount)
	assert.True(t, env.Meta.HasMore)

	_, env = h.do(t, http.MethodGet, "/api/v1/students?include_inactive=true", "")
	assert.Equal(t, 3, env.Meta.TotalCount)

	rec, _ = h.do(t, http.MethodGet, "/api/v1/students?page=two", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOffers(t *testing.T) {
	h := newHarness(t, testConfig(),
		adult("Ana1234", "Ana Souza", belt.Blue, date(2028, 3, 10)),
		adult("Bia1234", "Bia Rocha", belt.White, date(2030, 1, 1)),
	)
	require.NoError(t, h.bus.Publish(shared.NewPromotionEligibleEvent("Ana1234", "blue", "purple", "eligible for Purple belt", today)))
	require.NoError(t, h.bus.Publish(shared.NewPromotionEligibleEvent("Bia1234", "white", "blue", "eligible for Blue belt", today)))

	rec, env := h.do(t, http.MethodGet, "/api/v1/promotions/offers?page_size=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var offers []projections.Offer
	require.NoError(t, json.Unmarshal(env.Data, &offers))
	require.Len(t, offers, 2)
	assert.Equal(t, 2, env.Meta.TotalCount)
	assert.False(t, env.Meta.HasMore)

	rec, _ = h.do(t, http.MethodPost, "/api/v1/students/Ana1234/promotions",
		`{"belt":"purple","confirmed":true,"confirmed_by":"sensei"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	_, env = h.do(t, http.MethodGet, "/api/v1/promotions/offers", "")
	require.NoError(t, json.Unmarshal(env.Data, &offers))
	require.Len(t, offers, 1)
	assert.Equal(t, "Bia1234", offers[0].StudentID)
	assert.Equal(t, "Bia Rocha", offers[0].Name)

	rec, _ = h.do(t, http.MethodGet, "/api/v1/promotions/offers?page=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStudentCard_AttendanceAndPayments(t *testing.T) {
	h := newHarness(t, testConfig(), adult("Ana1234", "Ana Souza", belt.Blue, date(2028, 3, 10)))

	rec, _ := h.do(t, http.MethodPost, "/api/v1/students/Ana1234/attendance", `{"date":"2030-06-14","class_name":"Fundamentos"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec, _ = h.do(t, http.MethodPost, "/api/v1/students/Ana1234/attendance", `{"attended":false}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, _ = h.do(t, http.MethodPost, "/api/v1/students/Ana1234/payments",
		`{"month":6,"year":2030,"amount_cents":25000,"status":"pago","payment_date":"2030-06-05"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env := h.do(t, http.MethodPost, "/api/v1/students/Ana1234/payments", `{"month":13,"year":2030,"status":"paid"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)

	rec, env = h.do(t, http.MethodGet, "/api/v1/students/Ana1234?attendance_days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var card query.StudentDTO
	require.NoError(t, json.Unmarshal(env.Data, &card))
	assert.Equal(t, "Ana Souza", card.Student.Name)
	assert.Equal(t, student.AttendanceSummary{Attended: 1, Missed: 1}, card.Attendance)
	require.Len(t, card.Payments, 1)
	assert.Equal(t, student.PaymentStatus("paid"), card.Payments[0].Status)
	require.NotNil(t, card.Eligibility)
	assert.True(t, card.Eligibility.Verdict.Eligible)
}

func TestDeactivateStudent(t *testing.T) {
	h := newHarness(t, testConfig(), adult("Ana1234", "Ana Souza", belt.Blue, date(2028, 3, 10)))

	rec, _ := h.do(t, http.MethodDelete, "/api/v1/students/Ana1234", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := h.do(t, http.MethodDelete, "/api/v1/students/Ana1234", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "student_inactive", env.Error.Code)

	rec, env = h.do(t, http.MethodPost, "/api/v1/students/Ana1234/attendance", `{}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "student_inactive", env.Error.Code)
}

func TestAPIKeyGuardsWrites(t *testing.T) {
	hash, err := handlers.HashAPIKey("front-desk-key")
	require.NoError(t, err)

	cfg := testConfig()
	cfg.APIKeyHashes = []string{hash}
	h := newHarness(t, cfg, adult("Ana1234", "Ana Souza", belt.Blue, date(2028, 3, 10)))

	rec, env := h.do(t, http.MethodPost, "/api/v1/students/Ana1234/attendance", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing_api_key", env.Error.Code)

	rec, env = h.do(t, http.MethodPost, "/api/v1/students/Ana1234/attendance", `{}`, "X-API-Key", "guess")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_api_key", env.Error.Code)

	rec, _ = h.do(t, http.MethodPost, "/api/v1/students/Ana1234/attendance", `{}`, "Authorization", "Bearer front-desk-key")
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Reads stay open.
	rec, _ = h.do(t, http.MethodGet, "/api/v1/students/Ana1234/eligibility", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewServer_RejectsPlaintextKey(t *testing.T) {
	cfg := testConfig()
	cfg.APIKeyHashes = []string{"front-desk-key"}
	_, err := NewServer(cfg, Dependencies{})
	assert.Error(t, err)
}

func TestHealthEndpoints(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddCheck("postgres", func(context.Context) error { return nil })
	checker.AddOptionalCheck("redis", func(context.Context) error { return errors.New("dial tcp: refused") })

	srv, err := NewServer(testConfig(), Dependencies{HealthChecker: checker})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	h := &harness{srv: srv}

	rec, _ := h.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = h.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code, "an optional check must not fail readiness")

	rec, _ = h.do(t, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := h.do(t, http.MethodGet, "/api/v1/students", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Equal(t, "not_implemented", env.Error.Code)
}

func TestStats(t *testing.T) {
	h := newHarness(t, testConfig(), adult("Ana1234", "Ana Souza", belt.Blue, date(2028, 3, 10)))
	h.do(t, http.MethodDelete, "/api/v1/students/Ana1234", "")

	rec, env := h.do(t, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		Events messaging.EventBusMetricsSnapshot `json:"events"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(1), stats.Events.Published[shared.EventStudentDeactivated])
}

func TestRecoveryMiddleware(t *testing.T) {
	srv, err := NewServer(testConfig(), Dependencies{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	h := srv.requestIDMiddleware(srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_server_error")
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	defer rl.Stop()

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))

	rl.Stop()
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 1
	h := newHarness(t, cfg)

	rec, _ := h.do(t, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, env := h.do(t, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limit_exceeded", env.Error.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}
