package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)

	for _, in := range []string{"2024-03-09", " 2024-03-09 ", "09/03/2024"} {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "2024-3-9", "03/09/24", "2024-02-30", "tomorrow"} {
		_, err := ParseDate(in)
		assert.Error(t, err, in)
	}
}

func TestToday_UsesLocation(t *testing.T) {
	// 01:30 UTC is still the previous evening three hours west.
	clock := FixedClock(time.Date(2030, 6, 15, 1, 30, 0, 0, time.UTC))
	west := time.FixedZone("UTC-3", -3*60*60)

	assert.Equal(t, time.Date(2030, 6, 14, 0, 0, 0, 0, time.UTC), Today(clock, west))
	assert.Equal(t, time.Date(2030, 6, 15, 0, 0, 0, 0, time.UTC), Today(clock, nil))
}

func TestDateIn(t *testing.T) {
	east := time.FixedZone("UTC+9", 9*60*60)
	got := DateIn(time.Date(2030, 12, 31, 20, 0, 0, 0, time.UTC), east)

	assert.Equal(t, time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())
}

func TestLoadLocation_FallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, LoadLocation(""))
	assert.Equal(t, time.UTC, LoadLocation("Not/AZone"))
	assert.Equal(t, "UTC", LoadLocation("UTC").String())
}

func TestFormatDateStr(t *testing.T) {
	assert.Equal(t, "2030-01-05", FormatDateStr(time.Date(2030, 1, 5, 23, 59, 0, 0, time.UTC)))
}
