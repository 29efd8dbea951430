package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/recon/internal/ids"
	"github.com/roach88/recon/internal/store"
)

// Aci returns a deterministic, valid ACI for small test indexes.
func Aci(n int) ids.Aci {
	return ids.MustParseAci(fmt.Sprintf("00000000-0000-4000-8000-%012d", n))
}

// Phone returns a deterministic E.164 number for small test indexes.
func Phone(n int) ids.E164 {
	return ids.MustParseE164(fmt.Sprintf("+1650555%04d", n))
}

// NewStore opens an empty store under t.TempDir and closes it on cleanup.
func NewStore(t testing.TB) *store.Store {
	t.Helper()
	return OpenStoreAt(t, filepath.Join(t.TempDir(), "recon.db"))
}

// OpenStoreAt opens a store at path and closes it on cleanup. Two stores
// opened on the same path behave like two processes sharing one database.
func OpenStoreAt(t testing.TB, path string) *store.Store {
	t.Helper()
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// MustWrite runs fn in a write transaction and fails the test on error.
func MustWrite(t testing.TB, s *store.Store, fn func(tx *store.WriteTx) error) {
	t.Helper()
	require.NoError(t, s.Write(context.Background(), fn))
}

// MustRead runs fn in a read transaction and fails the test on error.
func MustRead(t testing.TB, s *store.Store, fn func(tx *store.ReadTx) error) {
	t.Helper()
	require.NoError(t, s.Read(context.Background(), fn))
}

// Recipients returns every recipient row in row order.
func Recipients(t testing.TB, s *store.Store) []store.Recipient {
	t.Helper()
	var out []store.Recipient
	MustRead(t, s, func(tx *store.ReadTx) error {
		var err error
		out, err = tx.AllRecipients(context.Background())
		return err
	})
	return out
}

// RecipientPairs renders each row as "{aci, phone}" with "null" for empty
// slots, for compact assertions.
func RecipientPairs(t testing.TB, s *store.Store) []string {
	t.Helper()
	rows := Recipients(t, s)
	pairs := make([]string, 0, len(rows))
	for _, r := range rows {
		pairs = append(pairs, FormatPair(r.Aci, r.Phone))
	}
	return pairs
}

// FormatPair renders an identifier pair as "{aci, phone}".
func FormatPair(aci *ids.Aci, phone *ids.E164) string {
	a, p := "null", "null"
	if aci != nil {
		a = string(*aci)
	}
	if phone != nil {
		p = string(*phone)
	}
	return "{" + a + ", " + p + "}"
}

// AssertUniqueIdentifiers fails the test if two rows share an ACI or a
// phone number.
func AssertUniqueIdentifiers(t testing.TB, s *store.Store) {
	t.Helper()
	acis := map[ids.Aci]string{}
	phones := map[ids.E164]string{}
	var dupes []string
	for _, r := range Recipients(t, s) {
		if r.Aci != nil {
			if prev, ok := acis[*r.Aci]; ok {
				dupes = append(dupes, fmt.Sprintf("aci %s on %s and %s", *r.Aci, prev, r.UniqueID))
			}
			acis[*r.Aci] = r.UniqueID
		}
		if r.Phone != nil {
			if prev, ok := phones[*r.Phone]; ok {
				dupes = append(dupes, fmt.Sprintf("phone %s on %s and %s", *r.Phone, prev, r.UniqueID))
			}
			phones[*r.Phone] = r.UniqueID
		}
		if r.Aci == nil && r.Phone == nil {
			dupes = append(dupes, fmt.Sprintf("row %s has no identifier", r.UniqueID))
		}
	}
	require.Empty(t, dupes, strings.Join(dupes, "\n"))
}
