package student

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faixamestre/dojo-hub/internal/domain/shared"
)

func TestNewAttendanceRecord(t *testing.T) {
	rec, err := NewAttendanceRecord("a1", "Ana1234", time.Date(2024, time.May, 3, 19, 30, 0, 0, time.UTC), true, " Fundamentals ")
	require.NoError(t, err)
	assert.Equal(t, day(2024, time.May, 3), rec.Date)
	assert.Equal(t, "Fundamentals", rec.ClassName)

	_, err = NewAttendanceRecord("a2", "", day(2024, time.May, 3), true, "")
	assert.ErrorIs(t, err, shared.ErrInvalidStudentID)

	_, err = NewAttendanceRecord("a3", "Ana1234", time.Time{}, true, "")
	assert.ErrorIs(t, err, shared.ErrInvalidAttendanceDate)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]AttendanceRecord{{Attended: true}, {Attended: false}, {Attended: true}})
	assert.Equal(t, AttendanceSummary{Attended: 2, Missed: 1}, s)
}

func TestParsePaymentStatus(t *testing.T) {
	for in, want := range map[string]PaymentStatus{
		"paid":     PaymentPaid,
		"Pago":     PaymentPaid,
		"PENDENTE": PaymentPending,
		"overdue":  PaymentOverdue,
		"Atrasado": PaymentOverdue,
	} {
		got, err := ParsePaymentStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParsePaymentStatus("refunded")
	assert.ErrorIs(t, err, shared.ErrInvalidPaymentStatus)
}

func TestNewPaymentRecord(t *testing.T) {
	base := NewPaymentRecordParams{
		ID:        "p1",
		StudentID: "Ana1234",
		Month:     5,
		Year:      2024,
		Amount:    15000,
		Status:    PaymentPending,
	}

	rec, err := NewPaymentRecord(base)
	require.NoError(t, err)
	assert.Nil(t, rec.PaymentDate)
	assert.Equal(t, "150.00", rec.Amount.String())

	paid := base
	paid.Status = PaymentPaid
	rec, err = NewPaymentRecord(paid)
	require.NoError(t, err)
	assert.NotNil(t, rec.PaymentDate)

	when := time.Date(2024, time.May, 10, 8, 0, 0, 0, time.UTC)
	paid.PaymentDate = &when
	rec, err = NewPaymentRecord(paid)
	require.NoError(t, err)
	assert.Equal(t, day(2024, time.May, 10), *rec.PaymentDate)

	tests := []struct {
		name   string
		mutate func(p *NewPaymentRecordParams)
		want   error
	}{
		{"month zero", func(p *NewPaymentRecordParams) { p.Month = 0 }, shared.ErrInvalidPaymentPeriod},
		{"month thirteen", func(p *NewPaymentRecordParams) { p.Month = 13 }, shared.ErrInvalidPaymentPeriod},
		{"negative amount", func(p *NewPaymentRecordParams) { p.Amount = -1 }, shared.ErrInvalidPaymentAmount},
		{"unknown status", func(p *NewPaymentRecordParams) { p.Status = "refunded" }, shared.ErrInvalidPaymentStatus},
		{"missing student", func(p *NewPaymentRecordParams) { p.StudentID = "" }, shared.ErrInvalidStudentID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			_, err := NewPaymentRecord(p)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, shared.IsValidation(err))
		})
	}
}
