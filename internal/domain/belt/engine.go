package belt

import (
	"fmt"
	"time"
)

// Reasons reported by Evaluate when a student cannot advance. Eligible
// verdicts carry a formatted reason naming the rank offered.
const (
	ReasonNoPath      = "no progression path for category"
	ReasonOffPath     = "current belt not on progression path"
	ReasonTerminal    = "already at highest rank on path or criteria unmet"
	ReasonJuvenileAge = "juvenile students must be 16 to advance to Blue belt"
	ReasonAdultAge    = "adult students must be 18 to advance to Blue belt"
)

const (
	juvenileMinAge = 16
	adultMinAge    = 18
)

// Student is the snapshot of a student record the engine needs.
// LastPromotionDate is nil until the first promotion.
type Student struct {
	DateOfBirth       time.Time
	Category          Category
	CurrentRank       Rank
	JoinDate          time.Time
	LastPromotionDate *time.Time
}

// Anchor is the date time-in-grade counts from.
func (s Student) Anchor() time.Time {
	if s.LastPromotionDate != nil {
		return *s.LastPromotionDate
	}
	return s.JoinDate
}

// Verdict is the outcome of an evaluation. NextRank is set only when Eligible.
// Reason is always populated.
type Verdict struct {
	Eligible bool   `json:"eligible"`
	NextRank *Rank  `json:"next_rank,omitempty"`
	Reason   string `json:"reason"`
}

func eligible(next Rank, reason string) Verdict {
	return Verdict{Eligible: true, NextRank: &next, Reason: reason}
}

func ineligible(reason string) Verdict {
	return Verdict{Reason: reason}
}

// Evaluate decides whether s may advance as of asOf. It never fails: a bad
// category or an off-path belt produce a non-eligible verdict that says why.
//
// Checks run in a fixed order and the first decisive one wins: path lookup,
// position on the path, Kids stripes, minimum time at the color, age gates
// for leaving White, next color, Black degrees.
func Evaluate(s Student, asOf time.Time) Verdict {
	path, ok := Path(s.Category)
	if !ok {
		return ineligible(ReasonNoPath)
	}

	idx := indexOf(s.Category, s.CurrentRank.Color)
	if idx < 0 {
		return ineligible(ReasonOffPath)
	}

	rank := s.CurrentRank
	months := MonthsInGrade(s.Anchor(), asOf)
	minMonths, hasMin := MinimumMonths(rank.Color)

	if s.Category == CategoryKids && rank.Stripes < MaxKidsStripes {
		base := float64(DefaultStripeBaseMonths) / MaxKidsStripes
		if hasMin {
			base = float64(minMonths) / MaxKidsStripes
		}
		if float64(months) >= base*float64(rank.Stripes+1) {
			next := Rank{Color: rank.Color, Stripes: rank.Stripes + 1}
			return eligible(next, fmt.Sprintf("eligible for stripe %d on %s belt", next.Stripes, rank.Color.Title()))
		}
	}

	if hasMin && months < minMonths {
		return ineligible(fmt.Sprintf("must accumulate %d months at current belt, has %d", minMonths, months))
	}

	if rank.Color == White {
		switch s.Category {
		case CategoryJuvenile:
			if AgeAt(s.DateOfBirth, asOf) < juvenileMinAge {
				return ineligible(ReasonJuvenileAge)
			}
		case CategoryAdult:
			if AgeAt(s.DateOfBirth, asOf) < adultMinAge {
				return ineligible(ReasonAdultAge)
			}
		}
	}

	if idx < len(path)-1 {
		next := Rank{Color: path[idx+1]}
		return eligible(next, fmt.Sprintf("eligible for %s belt", next.Color.Title()))
	}

	if rank.Color == Black && months >= BlackDegreeMonths*(rank.Stripes+1) {
		next := Rank{Color: Black, Stripes: rank.Stripes + 1}
		return eligible(next, fmt.Sprintf("eligible for degree %d on Black belt", next.Stripes))
	}

	return ineligible(ReasonTerminal)
}

// NextRank returns the rank Evaluate offers, or false when s is not eligible.
func NextRank(s Student, asOf time.Time) (Rank, bool) {
	v := Evaluate(s, asOf)
	if !v.Eligible || v.NextRank == nil {
		return Rank{}, false
	}
	return *v.NextRank, true
}

// MonthsInGrade counts calendar months between anchor and asOf from year and
// month alone. Day of month is ignored, so the 31st to the 1st is one month.
func MonthsInGrade(anchor, asOf time.Time) int {
	return (asOf.Year()-anchor.Year())*12 + int(asOf.Month()) - int(anchor.Month())
}

// AgeAt returns the age in years of someone born on dob, as of asOf. The
// elapsed time is laid onto 1970-01-01 and the year read back, so leap days
// between the two dates can shift the result by a day near birthdays.
func AgeAt(dob, asOf time.Time) int {
	elapsed := civilDate(asOf).Sub(civilDate(dob))
	age := time.Unix(0, 0).UTC().Add(elapsed).Year() - 1970
	if age < 0 {
		return -age
	}
	return age
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
