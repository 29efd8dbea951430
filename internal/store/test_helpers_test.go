package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/recon/internal/ids"
)

const (
	testAci1   = ids.Aci("00000000-0000-4000-8000-000000000001")
	testAci2   = ids.Aci("00000000-0000-4000-8000-000000000002")
	testPhone1 = ids.E164("+16505550101")
	testPhone2 = ids.E164("+16505550102")
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// write runs fn in a write transaction and fails the test on error.
func write(t *testing.T, s *Store, fn func(tx *WriteTx) error) {
	t.Helper()
	require.NoError(t, s.Write(context.Background(), fn))
}

// read runs fn in a read transaction and fails the test on error.
func read(t *testing.T, s *Store, fn func(tx *ReadTx) error) {
	t.Helper()
	require.NoError(t, s.Read(context.Background(), fn))
}

func aciPtr(a ids.Aci) *ids.Aci { return &a }
func phonePtr(p ids.E164) *ids.E164 { return &p }
