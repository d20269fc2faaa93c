package student

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faixamestre/dojo-hub/internal/domain/belt"
	"github.com/faixamestre/dojo-hub/internal/domain/shared"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validParams() NewStudentParams {
	return NewStudentParams{
		ID:          "Maria1234",
		Name:        "  Maria Souza ",
		DateOfBirth: day(1998, time.April, 2),
		Category:    belt.CategoryAdult,
		Rank:        belt.Rank{Color: belt.White},
		JoinDate:    day(2024, time.January, 8),
		Email:       " maria@example.com ",
	}
}

func TestNewStudent(t *testing.T) {
	s, err := NewStudent(validParams())
	require.NoError(t, err)

	assert.Equal(t, "Maria Souza", s.Name)
	assert.Equal(t, "maria@example.com", s.Email)
	assert.Equal(t, StatusActive, s.Status)
	assert.Nil(t, s.LastPromotionDate)
	assert.True(t, s.IsActive())

	p := validParams()
	joined := p.JoinDate.Add(15 * time.Hour)
	p.LastPromotionDate = &joined
	s, err = NewStudent(p)
	require.NoError(t, err, "promotion on the join day")
	assert.Equal(t, p.JoinDate, *s.LastPromotionDate)

	assert.True(t, shared.IsValidation(ErrInvalidLastPromotionDate))
}

func TestNewStudent_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *NewStudentParams)
		want   error
	}{
		{"missing id", func(p *NewStudentParams) { p.ID = "" }, shared.ErrInvalidStudentID},
		{"blank name", func(p *NewStudentParams) { p.Name = "   " }, ErrInvalidName},
		{"long name", func(p *NewStudentParams) { p.Name = strings.Repeat("a", 121) }, ErrInvalidName},
		{"unknown category", func(p *NewStudentParams) { p.Category = "senior" }, shared.ErrInvalidCategory},
		{"belt off path", func(p *NewStudentParams) { p.Rank = belt.Rank{Color: belt.Grey} }, shared.ErrInvalidBelt},
		{"negative stripes", func(p *NewStudentParams) { p.Rank.Stripes = -1 }, ErrInvalidStripes},
		{"missing join date", func(p *NewStudentParams) { p.JoinDate = time.Time{} }, ErrInvalidJoinDate},
		{"born after joining", func(p *NewStudentParams) { p.DateOfBirth = day(2025, time.January, 1) }, ErrInvalidDateOfBirth},
		{"promoted before joining", func(p *NewStudentParams) {
			last := day(2023, time.December, 20)
			p.LastPromotionDate = &last
		}, ErrInvalidLastPromotionDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			_, err := NewStudent(p)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestStudent_EngineViewIsDetached(t *testing.T) {
	p := validParams()
	last := day(2024, time.May, 10)
	p.LastPromotionDate = &last
	s, err := NewStudent(p)
	require.NoError(t, err)

	view := s.EngineView()
	*view.LastPromotionDate = day(2000, time.January, 1)

	assert.Equal(t, day(2024, time.May, 10), *s.LastPromotionDate)
}

func TestStudent_Eligibility(t *testing.T) {
	s, err := NewStudent(validParams())
	require.NoError(t, err)

	asOf := day(2024, time.April, 8)
	v := s.Eligibility(asOf)
	require.True(t, v.Eligible)
	assert.Equal(t, belt.Rank{Color: belt.Blue}, *v.NextRank)
	assert.Equal(t, 3, s.MonthsInGrade(asOf))
	assert.Equal(t, 26, s.Age(asOf))
}

func TestStudent_PromoteAndDeactivate(t *testing.T) {
	s, err := NewStudent(validParams())
	require.NoError(t, err)

	s.Promote(belt.Rank{Color: belt.Blue}, time.Date(2024, time.April, 8, 15, 30, 0, 0, time.UTC))
	assert.Equal(t, belt.Rank{Color: belt.Blue}, s.CurrentRank)
	require.NotNil(t, s.LastPromotionDate)
	assert.Equal(t, day(2024, time.April, 8), *s.LastPromotionDate)

	require.NoError(t, s.Deactivate())
	assert.Equal(t, StatusInactive, s.Status)
	assert.True(t, errors.Is(s.Deactivate(), shared.ErrStudentNotActive))
}

func TestSameLastPromotion(t *testing.T) {
	a := day(2024, time.March, 1)
	b := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	c := day(2024, time.March, 2)

	assert.True(t, SameLastPromotion(nil, nil))
	assert.True(t, SameLastPromotion(&a, &b))
	assert.False(t, SameLastPromotion(&a, &c))
	assert.False(t, SameLastPromotion(&a, nil))
	assert.False(t, SameLastPromotion(nil, &a))
}

func TestGenerateID(t *testing.T) {
	pattern := regexp.MustCompile(`^Maria[1-9][0-9]{3}$`)
	never := func(context.Context, string) (bool, error) { return false, nil }

	id, err := GenerateID(context.Background(), "  mARIA da Silva", never)
	require.NoError(t, err)
	assert.Regexp(t, pattern, id)
}

func TestGenerateID_RetriesTakenIDs(t *testing.T) {
	calls := 0
	takenTwice := func(context.Context, string) (bool, error) {
		calls++
		return calls <= 2, nil
	}

	id, err := GenerateID(context.Background(), "João", takenTwice)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, strings.HasPrefix(id, "João"))
}

func TestGenerateID_BlankNameFallsBackToUUID(t *testing.T) {
	id, err := GenerateID(context.Background(), "   ", func(context.Context, string) (bool, error) {
		t.Fatal("lookup should not run for a blank name")
		return false, nil
	})
	require.NoError(t, err)
	assert.Len(t, id, 36)
}

func TestGenerateID_LookupError(t *testing.T) {
	boom := errors.New("db down")
	_, err := GenerateID(context.Background(), "Ana", func(context.Context, string) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestFirstName(t *testing.T) {
	assert.Equal(t, "Ana", FirstName("ana clara"))
	assert.Equal(t, "Élise", FirstName("ÉLISE"))
	assert.Equal(t, "", FirstName(" "))
}
