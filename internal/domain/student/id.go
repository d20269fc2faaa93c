package student

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// maxIDAttempts bounds the retries before GenerateID falls back to a UUID.
const maxIDAttempts = 50

// IDTaken reports whether an ID is in use. Comparison is case-insensitive.
type IDTaken func(ctx context.Context, id string) (bool, error)

// GenerateID builds a short access ID from the student's first name and a
// four digit number, e.g. "Maria4821". A blank name gets a UUID.
func GenerateID(ctx context.Context, name string, taken IDTaken) (string, error) {
	first := FirstName(name)
	if first == "" {
		return uuid.NewString(), nil
	}

	for i := 0; i < maxIDAttempts; i++ {
		id := fmt.Sprintf("%s%d", first, 1000+rand.IntN(9000))
		used, err := taken(ctx, id)
		if err != nil {
			return "", err
		}
		if !used {
			return id, nil
		}
	}
	return uuid.NewString(), nil
}

// FirstName returns the first word of name with an upper-case initial and
// the rest lower-case.
func FirstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	word := strings.ToLower(fields[0])
	r, size := utf8.DecodeRuneInString(word)
	return string(unicode.ToUpper(r)) + word[size:]
}
