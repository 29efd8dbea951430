package ids

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/width"
)

var (
	// ErrNoIdentifier is returned when an address is built without any identifier.
	ErrNoIdentifier = errors.New("address requires at least one identifier")

	// ErrInvalidAci is returned when a string is not a valid account identifier.
	ErrInvalidAci = errors.New("invalid account identifier")

	// ErrInvalidPni is returned when a string is not a valid phone number identity.
	ErrInvalidPni = errors.New("invalid phone number identity")

	// ErrInvalidE164 is returned when a string is not an E.164 phone number.
	ErrInvalidE164 = errors.New("invalid E.164 phone number")
)

// Aci is the stable account identifier of a recipient.
// It survives phone number changes. The string form is a lowercase UUID.
type Aci string

// ParseAci validates s and returns its canonical lowercase form.
func ParseAci(s string) (Aci, error) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAci, s)
	}
	if u == uuid.Nil {
		return "", fmt.Errorf("%w: nil uuid", ErrInvalidAci)
	}
	return Aci(u.String()), nil
}

// MustParseAci is ParseAci for constants and tests. Panics on invalid input.
func MustParseAci(s string) Aci {
	a, err := ParseAci(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Aci) String() string { return string(a) }

// Ptr returns a pointer to a copy of a.
func (a Aci) Ptr() *Aci { return &a }

// Pni is the phone number identity: stable for as long as the account owns
// its current phone number, and handed over together with the number.
type Pni string

// ParsePni accepts a bare UUID or the "PNI:" prefixed form.
func ParsePni(s string) (Pni, error) {
	raw := strings.TrimSpace(s)
	if len(raw) > 4 && strings.EqualFold(raw[:4], "PNI:") {
		raw = raw[4:]
	}
	u, err := uuid.Parse(raw)
	if err != nil || u == uuid.Nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidPni, s)
	}
	return Pni(u.String()), nil
}

func (p Pni) String() string { return "PNI:" + string(p) }

// E164 is a normalized phone number: "+" followed by up to 15 digits.
type E164 string

// ParseE164 normalizes s into E.164 form. Full-width digits are folded,
// and common separators (spaces, dashes, dots, parentheses) are dropped.
func ParseE164(s string) (E164, error) {
	folded := width.Narrow.String(strings.TrimSpace(s))
	var b strings.Builder
	for i, r := range folded {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidE164, s)
		}
	}
	out := b.String()
	if !strings.HasPrefix(out, "+") {
		return "", fmt.Errorf("%w: %q: missing leading +", ErrInvalidE164, s)
	}
	digits := out[1:]
	if len(digits) < 2 || len(digits) > 15 || digits[0] == '0' {
		return "", fmt.Errorf("%w: %q", ErrInvalidE164, s)
	}
	return E164(out), nil
}

// MustParseE164 is ParseE164 for constants and tests. Panics on invalid input.
func MustParseE164(s string) E164 {
	p, err := ParseE164(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p E164) String() string { return string(p) }

// Ptr returns a pointer to a copy of p.
func (p E164) Ptr() *E164 { return &p }

// EqualAci reports whether two optional account identifiers are equal.
func EqualAci(a, b *Aci) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// EqualE164 reports whether two optional phone numbers are equal.
func EqualE164(a, b *E164) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
