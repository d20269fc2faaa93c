// Package projections holds in-memory read models rebuilt from domain events.
package projections

import (
	"sort"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// OFFER BOARD
// ══════════════════════════════════════════════════════════════════════════════

// OfferBoard is the front desk's list of students the eligibility scan found
// ready for promotion. It holds at most one offer per student; a confirmed
// promotion or a deactivation withdraws it.
//
// The board lives in process memory and starts empty. The next scan fills it.
type OfferBoard struct {
	mu          sync.RWMutex
	offers      map[string]*Offer
	version     int64
	lastUpdated time.Time
	now         func() time.Time
}

// Offer is one pending promotion.
type Offer struct {
	StudentID   string    `json:"student_id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	CurrentRank string    `json:"current_rank"`
	NextRank    string    `json:"next_rank"`
	Reason      string    `json:"reason"`
	AsOf        time.Time `json:"as_of"`

	// OfferedAt is when the board first saw this exact offer. A repeat scan
	// that finds the same next rank keeps the original time.
	OfferedAt time.Time `json:"offered_at"`
}

// NewOfferBoard creates an empty board.
func NewOfferBoard() *OfferBoard {
	return &OfferBoard{
		offers:      make(map[string]*Offer),
		lastUpdated: time.Now().UTC(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITES
// ══════════════════════════════════════════════════════════════════════════════

// Upsert records an offer and reports whether it is new to the board. An offer
// for a different next rank replaces the previous one and counts as new.
func (b *OfferBoard) Upsert(o Offer) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	existing, ok := b.offers[o.StudentID]
	if ok && existing.NextRank == o.NextRank && existing.CurrentRank == o.CurrentRank {
		existing.AsOf = o.AsOf
		existing.Reason = o.Reason
		if o.Name != "" {
			existing.Name = o.Name
		}
		b.touch(now)
		return false
	}

	if o.OfferedAt.IsZero() {
		o.OfferedAt = now
	}
	b.offers[o.StudentID] = &o
	b.touch(now)
	return true
}

// Withdraw drops the student's offer. It reports whether one was present.
func (b *OfferBoard) Withdraw(studentID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.offers[studentID]; !ok {
		return false
	}
	delete(b.offers, studentID)
	b.touch(b.now())
	return true
}

func (b *OfferBoard) touch(now time.Time) {
	b.version++
	b.lastUpdated = now
}

// ══════════════════════════════════════════════════════════════════════════════
// READS
// ══════════════════════════════════════════════════════════════════════════════

// Get returns a copy of the student's offer.
func (b *OfferBoard) Get(studentID string) (Offer, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	o, ok := b.offers[studentID]
	if !ok {
		return Offer{}, false
	}
	return *o, true
}

// List returns offers oldest first, ties broken by student ID. A non-positive
// limit returns everything from offset on.
func (b *OfferBoard) List(offset, limit int) []Offer {
	b.mu.RLock()
	all := make([]Offer, 0, len(b.offers))
	for _, o := range b.offers {
		all = append(all, *o)
	}
	b.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].OfferedAt.Equal(all[j].OfferedAt) {
			return all[i].OfferedAt.Before(all[j].OfferedAt)
		}
		return all[i].StudentID < all[j].StudentID
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []Offer{}
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

// Count returns the number of pending offers.
func (b *OfferBoard) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.offers)
}

// GetVersion increases on every change.
func (b *OfferBoard) GetVersion() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// GetLastUpdated returns the time of the last change.
func (b *OfferBoard) GetLastUpdated() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastUpdated
}
