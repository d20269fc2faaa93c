package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/faixamestre/dojo-hub/internal/application/command"
	"github.com/faixamestre/dojo-hub/internal/application/query"
	"github.com/faixamestre/dojo-hub/internal/domain/belt"
	"github.com/faixamestre/dojo-hub/internal/domain/shared"
	"github.com/faixamestre/dojo-hub/internal/domain/student"
	"github.com/faixamestre/dojo-hub/pkg/logger"
	"github.com/faixamestre/dojo-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"name":    "Dojo Hub API",
		"version": s.config.Version,
		"endpoints": map[string]string{
			"health":   "/health",
			"students": "/api/v1/students",
			"upcoming": "/api/v1/promotions/upcoming",
			"stats":    "/api/v1/stats",
		},
	})
}

// handleHealth reports every check; 503 when any failed.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]any{
			"status": "healthy",
			"uptime": s.Uptime().String(),
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

// handleReady fails only when a required dependency is down.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSONErrorWithDetails(w, r, http.StatusServiceUnavailable, "not_ready", "Service is not ready", status.Message)
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// handleGetStats handles GET /api/v1/stats
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"server": map[string]any{
			"uptime":  s.Uptime().String(),
			"running": s.IsRunning(),
			"version": s.config.Version,
		},
	}
	if s.deps.Stats != nil {
		for k, v := range s.deps.Stats() {
			stats[k] = v
		}
	}
	writeJSON(w, r, http.StatusOK, stats)
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListStudents handles GET /api/v1/students
func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListStudents == nil {
		writeNotConfigured(w, r)
		return
	}

	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	pageSize, err := queryInt(r, "page_size", shared.DefaultPageSize)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	category, err := queryCategory(r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}

	result, err := s.deps.ListStudents.Handle(r.Context(), query.ListStudentsQuery{
		Page:            page,
		PageSize:        pageSize,
		Category:        category,
		IncludeInactive: queryBool(r, "include_inactive"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result.Students, &ResponseMeta{
		TotalCount: result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		HasMore:    result.Page*result.PageSize < result.Total,
	})
}

// handleGetStudent handles GET /api/v1/students/{id}
func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetStudent == nil {
		writeNotConfigured(w, r)
		return
	}

	days, err := queryInt(r, "attendance_days", 0)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}

	result, err := s.deps.GetStudent.Handle(r.Context(), query.GetStudentQuery{
		StudentID:      r.PathValue("id"),
		AttendanceDays: max(days, 0),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// enrollStudentRequest is the body of POST /api/v1/students.
type enrollStudentRequest struct {
	Name              string `json:"name"`
	DateOfBirth       string `json:"date_of_birth"`
	Category          string `json:"category"`
	Belt              string `json:"belt"`
	Stripes           int    `json:"stripes"`
	JoinDate          string `json:"join_date"`
	LastPromotionDate string `json:"last_promotion_date"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	Notes             string `json:"notes"`
}

// handleEnrollStudent handles POST /api/v1/students
func (s *Server) handleEnrollStudent(w http.ResponseWriter, r *http.Request) {
	if s.deps.EnrollStudent == nil {
		writeNotConfigured(w, r)
		return
	}

	var req enrollStudentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}

	dob, err := requiredDate("date_of_birth", req.DateOfBirth)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	joined, err := optionalDate("join_date", req.JoinDate)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	lastPromotion, err := optionalDate("last_promotion_date", req.LastPromotionDate)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}

	cmd := command.EnrollStudentCommand{
		Name:              req.Name,
		DateOfBirth:       dob,
		Category:          req.Category,
		Belt:              req.Belt,
		Stripes:           req.Stripes,
		LastPromotionDate: lastPromotion,
		Email:             req.Email,
		Phone:             req.Phone,
		Notes:             req.Notes,
		CorrelationID:     getRequestID(r.Context()),
	}
	if joined != nil {
		cmd.JoinDate = *joined
	}

	result, err := s.deps.EnrollStudent.Handle(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/students/"+result.Student.ID)
	writeJSON(w, r, http.StatusCreated, query.NewStudentView(result.Student))
}

// handleDeactivateStudent handles DELETE /api/v1/students/{id}. Records
// are kept; the student leaves the roster and scans.
func (s *Server) handleDeactivateStudent(w http.ResponseWriter, r *http.Request) {
	if s.deps.DeactivateStudent == nil {
		writeNotConfigured(w, r)
		return
	}

	id := r.PathValue("id")
	err := s.deps.DeactivateStudent.Handle(r.Context(), command.DeactivateStudentCommand{
		StudentID:     id,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"id": id, "status": "inactive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// ELIGIBILITY & PROMOTION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetEligibility handles GET /api/v1/students/{id}/eligibility?as_of=
func (s *Server) handleGetEligibility(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetEligibility == nil {
		writeNotConfigured(w, r)
		return
	}

	asOf, err := queryDate(r, "as_of")
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}

	result, err := s.deps.GetEligibility.Handle(r.Context(), query.GetEligibilityQuery{
		StudentID: r.PathValue("id"),
		AsOf:      asOf,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleListUpcoming handles GET /api/v1/promotions/upcoming
func (s *Server) handleListUpcoming(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListUpcomingPromotions == nil {
		writeNotConfigured(w, r)
		return
	}

	asOf, err := queryDate(r, "as_of")
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	if limit < 0 {
		writeBadRequest(w, r, errors.New("limit cannot be negative"))
		return
	}
	category, err := queryCategory(r)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}

	result, err := s.deps.ListUpcomingPromotions.Handle(r.Context(), query.ListUpcomingPromotionsQuery{
		AsOf:     asOf,
		Limit:    limit,
		Category: category,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: len(result.Promotions)})
}

// handleListOffers pages through the offer board, oldest offer first.
func (s *Server) handleListOffers(w http.ResponseWriter, r *http.Request) {
	if s.deps.Offers == nil {
		writeNotConfigured(w, r)
		return
	}

	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	pageSize, err := queryInt(r, "page_size", shared.DefaultPageSize)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	if page < 1 || pageSize < 1 || pageSize > shared.MaxPageSize {
		writeBadRequest(w, r, fmt.Errorf("page must be >= 1 and page_size between 1 and %d", shared.MaxPageSize))
		return
	}

	total := s.deps.Offers.Count()
	offers := s.deps.Offers.List((page-1)*pageSize, pageSize)
	writeJSONWithMeta(w, r, http.StatusOK, offers, &ResponseMeta{
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		HasMore:    page*pageSize < total,
	})
}

// promoteStudentRequest is the body of POST /api/v1/students/{id}/promotions.
type promoteStudentRequest struct {
	Belt          string `json:"belt"`
	Stripes       int    `json:"stripes"`
	PromotionDate string `json:"promotion_date"`
	Confirmed     bool   `json:"confirmed"`
	ConfirmedBy   string `json:"confirmed_by"`
	Notes         string `json:"notes"`
}

// promotionResponse is returned after a committed promotion.
type promotionResponse struct {
	Promotion student.PromotionRecord `json:"promotion"`
	Student   query.StudentView       `json:"student"`
}

// handlePromoteStudent handles POST /api/v1/students/{id}/promotions
func (s *Server) handlePromoteStudent(w http.ResponseWriter, r *http.Request) {
	if s.deps.PromoteStudent == nil {
		writeNotConfigured(w, r)
		return
	}

	var req promoteStudentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	date, err := optionalDate("promotion_date", req.PromotionDate)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}

	cmd := command.PromoteStudentCommand{
		StudentID:       r.PathValue("id"),
		AcceptedBelt:    req.Belt,
		AcceptedStripes: req.Stripes,
		Confirmed:       req.Confirmed,
		ConfirmedBy:     req.ConfirmedBy,
		Notes:           req.Notes,
		CorrelationID:   getRequestID(r.Context()),
	}
	if date != nil {
		cmd.PromotionDate = *date
	}

	result, err := s.deps.PromoteStudent.Handle(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, promotionResponse{
		Promotion: result.Promotion,
		Student:   query.NewStudentView(result.Student),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE & PAYMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type logAttendanceRequest struct {
	Date      string `json:"date"`
	Attended  *bool  `json:"attended"`
	ClassName string `json:"class_name"`
}

// handleLogAttendance handles POST /api/v1/students/{id}/attendance.
// "attended" defaults to true.
func (s *Server) handleLogAttendance(w http.ResponseWriter, r *http.Request) {
	if s.deps.LogAttendance == nil {
		writeNotConfigured(w, r)
		return
	}

	var req logAttendanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	date, err := optionalDate("date", req.Date)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}

	cmd := command.LogAttendanceCommand{
		StudentID:     r.PathValue("id"),
		Attended:      req.Attended == nil || *req.Attended,
		ClassName:     req.ClassName,
		CorrelationID: getRequestID(r.Context()),
	}
	if date != nil {
		cmd.Date = *date
	}

	record, err := s.deps.LogAttendance.Handle(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, record)
}

type recordPaymentRequest struct {
	Month       int    `json:"month"`
	Year        int    `json:"year"`
	AmountCents int64  `json:"amount_cents"`
	Status      string `json:"status"`
	PaymentDate string `json:"payment_date"`
}

// handleRecordPayment handles POST /api/v1/students/{id}/payments
func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecordPayment == nil {
		writeNotConfigured(w, r)
		return
	}

	var req recordPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}
	paid, err := optionalDate("payment_date", req.PaymentDate)
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}

	record, err := s.deps.RecordPayment.Handle(r.Context(), command.RecordPaymentCommand{
		StudentID:     r.PathValue("id"),
		Month:         req.Month,
		Year:          req.Year,
		AmountCents:   req.AmountCents,
		Status:        req.Status,
		PaymentDate:   paid,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, record)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST & ERROR HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func requiredDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%s is required", field)
	}
	t, err := timeutil.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", field, err)
	}
	return t, nil
}

func optionalDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := requiredDate(field, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func queryCategory(r *http.Request) (belt.Category, error) {
	value := r.URL.Query().Get("category")
	if value == "" {
		return "", nil
	}
	return belt.ParseCategory(value)
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, err error) {
	writeJSONErrorWithDetails(w, r, http.StatusBadRequest, "invalid_request", "Invalid request", err.Error())
}

func writeNotConfigured(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Endpoint not configured")
}

// errorMapping ties a sentinel to its HTTP answer. Order matters: specific
// promotion errors share kinds with broader classes checked later.
var errorMapping = []struct {
	target error
	status int
	code   string
}{
	{shared.ErrPromotionNotConfirmed, http.StatusBadRequest, "confirmation_required"},
	{shared.ErrNotEligible, http.StatusUnprocessableEntity, "not_eligible"},
	{shared.ErrRankMismatch, http.StatusUnprocessableEntity, "rank_mismatch"},
	{shared.ErrPromotionConflict, http.StatusConflict, "promotion_conflict"},
	{shared.ErrStudentNotActive, http.StatusConflict, "student_inactive"},
}

// writeError maps application errors to status codes. Unknown errors are
// logged and hidden behind a generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	for _, m := range errorMapping {
		if errors.Is(err, m.target) {
			status, code = m.status, m.code
			break
		}
	}
	if status == http.StatusInternalServerError {
		switch {
		case shared.IsNotFound(err):
			status, code = http.StatusNotFound, "not_found"
		case shared.IsValidation(err):
			status, code = http.StatusBadRequest, "validation_error"
		case shared.IsAlreadyExists(err):
			status, code = http.StatusConflict, "already_exists"
		case shared.IsConflict(err):
			status, code = http.StatusConflict, "conflict"
		case errors.Is(err, context.DeadlineExceeded):
			status, code = http.StatusGatewayTimeout, "timeout"
		case errors.Is(err, context.Canceled):
			status, code = http.StatusServiceUnavailable, "request_cancelled"
		}
	}

	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", logger.Err(err), logger.String("path", r.URL.Path))
	} else {
		log.Debug("request rejected", logger.Err(err), logger.Int("status", status))
	}

	if status == http.StatusInternalServerError {
		writeJSONError(w, r, status, code, "An unexpected error occurred")
		return
	}

	message := err.Error()
	var de *shared.DomainError
	if errors.As(err, &de) {
		message = de.Message
	}
	writeJSONErrorWithDetails(w, r, status, code, message, err.Error())
}
