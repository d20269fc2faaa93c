package projections

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBoard(start time.Time) (*OfferBoard, *time.Time) {
	b := NewOfferBoard()
	now := start
	b.now = func() time.Time { return now }
	return b, &now
}

func TestOfferBoard_Upsert(t *testing.T) {
	start := time.Date(2030, 6, 15, 6, 0, 0, 0, time.UTC)
	b, now := newTestBoard(start)

	isNew := b.Upsert(Offer{StudentID: "Ana1234", CurrentRank: "blue", NextRank: "purple", Reason: "eligible for Purple belt"})
	assert.True(t, isNew)

	*now = start.Add(24 * time.Hour)
	isNew = b.Upsert(Offer{StudentID: "Ana1234", CurrentRank: "blue", NextRank: "purple", Reason: "eligible for Purple belt", Name: "Ana"})
	assert.False(t, isNew, "same offer again is not new")

	got, ok := b.Get("Ana1234")
	require.True(t, ok)
	assert.Equal(t, start, got.OfferedAt, "repeat keeps the first sighting")
	assert.Equal(t, "Ana", got.Name)

	isNew = b.Upsert(Offer{StudentID: "Ana1234", CurrentRank: "purple", NextRank: "brown"})
	assert.True(t, isNew, "a different rank replaces the offer")

	got, _ = b.Get("Ana1234")
	assert.Equal(t, "brown", got.NextRank)
	assert.Equal(t, *now, got.OfferedAt)
	assert.Equal(t, 1, b.Count())
	assert.Equal(t, int64(3), b.GetVersion())
}

func TestOfferBoard_Withdraw(t *testing.T) {
	b, _ := newTestBoard(time.Date(2030, 6, 15, 0, 0, 0, 0, time.UTC))
	b.Upsert(Offer{StudentID: "Bia0001", NextRank: "blue"})

	assert.True(t, b.Withdraw("Bia0001"))
	assert.False(t, b.Withdraw("Bia0001"))
	_, ok := b.Get("Bia0001")
	assert.False(t, ok)
	assert.Zero(t, b.Count())
}

func TestOfferBoard_List(t *testing.T) {
	start := time.Date(2030, 6, 15, 0, 0, 0, 0, time.UTC)
	b, now := newTestBoard(start)

	b.Upsert(Offer{StudentID: "Caio0003", NextRank: "blue"})
	b.Upsert(Offer{StudentID: "Ana0001", NextRank: "blue"})
	*now = start.Add(time.Hour)
	b.Upsert(Offer{StudentID: "Bia0002", NextRank: "blue"})

	ids := func(offers []Offer) []string {
		out := make([]string, len(offers))
		for i, o := range offers {
			out[i] = o.StudentID
		}
		return out
	}

	assert.Equal(t, []string{"Ana0001", "Caio0003", "Bia0002"}, ids(b.List(0, 0)))
	assert.Equal(t, []string{"Caio0003"}, ids(b.List(1, 1)))
	assert.Empty(t, b.List(5, 10))
	assert.NotNil(t, b.List(5, 10))
}

func TestOfferBoard_Concurrent(t *testing.T) {
	b := NewOfferBoard()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("S%04d", i%5)
			b.Upsert(Offer{StudentID: id, NextRank: "blue"})
			_ = b.List(0, 0)
			if i%3 == 0 {
				b.Withdraw(id)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, b.Count(), 5)
}
