package harness

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/recon/internal/ids"
)

// aliases resolves u<n>, p<n> and n<n> names and renders identifiers back.
type aliases struct {
	names map[string]string // literal -> alias
}

func newAliases() *aliases {
	return &aliases{names: map[string]string{}}
}

func aliasIndex(s string, prefix byte) (int, bool) {
	if len(s) < 2 || s[0] != prefix {
		return 0, false
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (a *aliases) aci(s string) (ids.Aci, error) {
	if n, ok := aliasIndex(s, 'u'); ok {
		aci, err := ids.ParseAci(fmt.Sprintf("00000000-0000-4000-8000-%012d", n))
		if err != nil {
			return "", err
		}
		a.names[aci.String()] = s
		return aci, nil
	}
	return ids.ParseAci(s)
}

func (a *aliases) phone(s string) (ids.E164, error) {
	if n, ok := aliasIndex(s, 'p'); ok {
		phone, err := ids.ParseE164(fmt.Sprintf("+1650555%04d", n))
		if err != nil {
			return "", err
		}
		a.names[phone.String()] = s
		return phone, nil
	}
	return ids.ParseE164(s)
}

func (a *aliases) pni(s string) (ids.Pni, error) {
	if n, ok := aliasIndex(s, 'n'); ok {
		pni, err := ids.ParsePni(fmt.Sprintf("00000000-0000-4000-9000-%012d", n))
		if err != nil {
			return "", err
		}
		a.names[string(pni)] = s
		return pni, nil
	}
	return ids.ParsePni(s)
}

// identity parses the optional parts of id.
func (a *aliases) identity(id Identity) (*ids.Aci, *ids.E164, *ids.Pni, error) {
	var (
		aci   *ids.Aci
		phone *ids.E164
		pni   *ids.Pni
	)
	if id.Aci != "" {
		v, err := a.aci(id.Aci)
		if err != nil {
			return nil, nil, nil, err
		}
		aci = &v
	}
	if id.Phone != "" {
		v, err := a.phone(id.Phone)
		if err != nil {
			return nil, nil, nil, err
		}
		phone = &v
	}
	if id.Pni != "" {
		v, err := a.pni(id.Pni)
		if err != nil {
			return nil, nil, nil, err
		}
		pni = &v
	}
	return aci, phone, pni, nil
}

func (a *aliases) name(literal string) string {
	if n, ok := a.names[literal]; ok {
		return n
	}
	return literal
}

func (a *aliases) aciName(aci *ids.Aci) string {
	if aci == nil {
		return "null"
	}
	return a.name(aci.String())
}

func (a *aliases) phoneName(phone *ids.E164) string {
	if phone == nil {
		return "null"
	}
	return a.name(phone.String())
}

func (a *aliases) pair(aci *ids.Aci, phone *ids.E164) string {
	return "{" + a.aciName(aci) + ", " + a.phoneName(phone) + "}"
}

// replace substitutes every known literal in s with its alias. Longer
// literals go first so no literal is clobbered by a prefix of another.
func (a *aliases) replace(s string) string {
	literals := make([]string, 0, len(a.names))
	for lit := range a.names {
		literals = append(literals, lit)
	}
	sort.Slice(literals, func(i, j int) bool {
		if len(literals[i]) != len(literals[j]) {
			return len(literals[i]) > len(literals[j])
		}
		return literals[i] < literals[j]
	})
	pairs := make([]string, 0, 2*len(literals))
	for _, lit := range literals {
		pairs = append(pairs, lit, a.names[lit])
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
