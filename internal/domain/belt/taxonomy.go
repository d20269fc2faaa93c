// Package belt holds the academy's rank taxonomy and the eligibility engine
// that decides when a student may receive a stripe or a new belt color.
// The package is pure: no I/O, no clock access, no shared mutable state.
package belt

import (
	"fmt"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATEGORY
// ══════════════════════════════════════════════════════════════════════════════

// Category is the cohort a student trains in. It selects the progression path
// and the age rules that apply.
type Category string

const (
	CategoryKids     Category = "kids"
	CategoryJuvenile Category = "juvenile"
	CategoryAdult    Category = "adult"
	CategoryMaster   Category = "master"
)

// Categories returns every known category in display order.
func Categories() []Category {
	return []Category{CategoryKids, CategoryJuvenile, CategoryAdult, CategoryMaster}
}

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	switch c {
	case CategoryKids, CategoryJuvenile, CategoryAdult, CategoryMaster:
		return true
	default:
		return false
	}
}

// String returns the canonical lowercase name.
func (c Category) String() string {
	return string(c)
}

// ParseCategory accepts the canonical names (any case) and the Portuguese
// labels used on academy paperwork.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kids", "infantil":
		return CategoryKids, nil
	case "juvenile", "juvenil":
		return CategoryJuvenile, nil
	case "adult", "adulto":
		return CategoryAdult, nil
	case "master", "mestre":
		return CategoryMaster, nil
	default:
		return "", fmt.Errorf("unknown category %q", s)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BELT COLOR
// ══════════════════════════════════════════════════════════════════════════════

// Color is a belt color. Colors have no global order; they are ordered only
// inside a category's progression path.
type Color string

const (
	White  Color = "white"
	Grey   Color = "grey"
	Yellow Color = "yellow"
	Orange Color = "orange"
	Green  Color = "green"
	Blue   Color = "blue"
	Purple Color = "purple"
	Brown  Color = "brown"
	Black  Color = "black"
)

// IsValid reports whether c is one of the known belt colors.
func (c Color) IsValid() bool {
	switch c {
	case White, Grey, Yellow, Orange, Green, Blue, Purple, Brown, Black:
		return true
	default:
		return false
	}
}

// String returns the canonical lowercase name.
func (c Color) String() string {
	return string(c)
}

// Title returns the capitalised name used in human-readable reasons.
func (c Color) Title() string {
	if c == "" {
		return ""
	}
	return strings.ToUpper(string(c[:1])) + string(c[1:])
}

// ParseColor accepts the canonical names (any case, "gray" included) and the
// Portuguese labels.
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "branca":
		return White, nil
	case "grey", "gray", "cinza":
		return Grey, nil
	case "yellow", "amarela":
		return Yellow, nil
	case "orange", "laranja":
		return Orange, nil
	case "green", "verde":
		return Green, nil
	case "blue", "azul":
		return Blue, nil
	case "purple", "roxa":
		return Purple, nil
	case "brown", "marrom":
		return Brown, nil
	case "black", "preta":
		return Black, nil
	default:
		return "", fmt.Errorf("unknown belt color %q", s)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RANK
// ══════════════════════════════════════════════════════════════════════════════

// Rank is a belt color plus the stripes earned on it. On Kids color grades
// stripes cap at 4; on Black they count degrees and are uncapped.
type Rank struct {
	Color   Color `json:"color"`
	Stripes int   `json:"stripes"`
}

// String renders the rank as "blue" or "white+2".
func (r Rank) String() string {
	if r.Stripes == 0 {
		return r.Color.String()
	}
	return fmt.Sprintf("%s+%d", r.Color, r.Stripes)
}

// ══════════════════════════════════════════════════════════════════════════════
// TABLES
// ══════════════════════════════════════════════════════════════════════════════

// MaxKidsStripes is the number of stripes a Kids grade holds before the next color.
const MaxKidsStripes = 4

// DefaultStripeBaseMonths replaces a missing minimum when stripe spacing is computed.
const DefaultStripeBaseMonths = 12

// BlackDegreeMonths is the time on Black between consecutive degrees.
const BlackDegreeMonths = 36

// Path returns the ordered belt colors for a category. The returned slice is a
// copy. ok is false for an unknown category.
func Path(c Category) (path []Color, ok bool) {
	var p []Color
	switch c {
	case CategoryKids:
		p = []Color{White, Grey, Yellow, Orange, Green}
	case CategoryJuvenile:
		p = []Color{White, Blue, Purple}
	case CategoryAdult:
		p = []Color{White, Blue, Purple, Brown, Black}
	case CategoryMaster:
		p = []Color{Black}
	default:
		return nil, false
	}
	return p, true
}

// MinimumMonths returns the time a student must hold a color before moving to
// the next one. ok is false when no minimum is enforced (Black, unknown).
func MinimumMonths(c Color) (months int, ok bool) {
	switch c {
	case White:
		return 3, true
	case Grey, Yellow, Orange:
		return 6, true
	case Green, Brown:
		return 12, true
	case Blue:
		return 24, true
	case Purple:
		return 18, true
	default:
		return 0, false
	}
}

// OnPath reports whether color appears on the category's path.
func OnPath(c Category, color Color) bool {
	return indexOf(c, color) >= 0
}

func indexOf(c Category, color Color) int {
	path, ok := Path(c)
	if !ok {
		return -1
	}
	for i, p := range path {
		if p == color {
			return i
		}
	}
	return -1
}
