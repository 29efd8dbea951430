package directory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recon/internal/ids"
	"github.com/roach88/recon/internal/recipient"
	"github.com/roach88/recon/internal/store"
	"github.com/roach88/recon/internal/testutil"
)

var (
	u1 = testutil.Aci(1)
	u2 = testutil.Aci(2)
	u3 = testutil.Aci(3)
	p1 = testutil.Phone(1)
	p2 = testutil.Phone(2)
	p3 = testutil.Phone(3)
)

func TestLoadResults(t *testing.T) {
	results, err := LoadResults(filepath.Join("testdata", "results.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []Result{
		{Aci: u1, Phone: p1, Trust: ids.TrustHigh},
		{Aci: u2, Phone: p2, Trust: ids.TrustLow},
	}, results)
}

func TestLoadResults_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown field", "results:\n  - aci: x\n    phone: y\n    typo: 1\n", "failed to parse YAML"},
		{"bad aci", "results:\n  - aci: nope\n    phone: \"+16505550001\"\n", "results[0]"},
		{"bad phone", "results:\n  - aci: 00000000-0000-4000-8000-000000000001\n    phone: \"12\"\n", "results[0]"},
		{"bad trust", "results:\n  - aci: 00000000-0000-4000-8000-000000000001\n    phone: \"+16505550001\"\n    trust: medium\n", "invalid trust level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResults([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadResults_MissingFile(t *testing.T) {
	_, err := LoadResults(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestApply_MergesEachResult(t *testing.T) {
	s := testutil.NewStore(t)
	a := NewApplier(s, recipient.NewMerger(nil), testutil.NewDeterministicClock())

	report, err := a.Apply(context.Background(), []Result{
		{Aci: u1, Phone: p1, Trust: ids.TrustHigh},
		{Aci: u2, Phone: p2, Trust: ids.TrustHigh},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Applied)
	assert.Empty(t, report.Failures)

	assert.Equal(t, []string{
		testutil.FormatPair(u1.Ptr(), p1.Ptr()),
		testutil.FormatPair(u2.Ptr(), p2.Ptr()),
	}, testutil.RecipientPairs(t, s))
	for _, r := range testutil.Recipients(t, s) {
		assert.Equal(t, []uint32{recipient.PrimaryDeviceID}, r.DeviceIDs)
		assert.True(t, r.IsRegistered())
	}
}

func TestApply_FailureDoesNotStopOthers(t *testing.T) {
	s := testutil.NewStore(t)
	boom := errors.New("boom")
	failing := recipient.ListenerFunc(func(_ context.Context, _ *store.WriteTx, m recipient.MergedRecipient) error {
		if m.Aci == u2 {
			return boom
		}
		return nil
	})
	a := NewApplier(s, recipient.NewMerger(nil, failing), nil)

	report, err := a.Apply(context.Background(), []Result{
		{Aci: u1, Phone: p1, Trust: ids.TrustHigh},
		{Aci: u2, Phone: p2, Trust: ids.TrustHigh},
		{Aci: u3, Phone: p3, Trust: ids.TrustHigh},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Applied)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, u2, report.Failures[0].Result.Aci)
	assert.ErrorIs(t, report.Failures[0].Err, boom)

	assert.Equal(t, []string{
		testutil.FormatPair(u1.Ptr(), p1.Ptr()),
		testutil.FormatPair(u3.Ptr(), p3.Ptr()),
	}, testutil.RecipientPairs(t, s), "the failed merge rolled back alone")
}

func TestApply_StopsOnCancelledContext(t *testing.T) {
	s := testutil.NewStore(t)
	a := NewApplier(s, recipient.NewMerger(nil), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := a.Apply(ctx, []Result{{Aci: u1, Phone: p1, Trust: ids.TrustHigh}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, report.Applied)
}

func TestRefresh_MarksMissingPhonesUnregistered(t *testing.T) {
	s := testutil.NewStore(t)
	clock := testutil.NewDeterministicClock()
	a := NewApplier(s, recipient.NewMerger(nil), clock)
	ctx := context.Background()

	_, err := a.Apply(ctx, []Result{{Aci: u2, Phone: p2, Trust: ids.TrustHigh}})
	require.NoError(t, err)

	lookup := StaticLookup{
		{Aci: u1, Phone: p1, Trust: ids.TrustHigh},
		{Aci: u3, Phone: p3, Trust: ids.TrustHigh},
	}
	report, err := a.Refresh(ctx, lookup, []ids.E164{p1, p2})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Applied, "only asked-for phones are answered")
	assert.Equal(t, 1, report.Unregistered)

	var rec *store.Recipient
	testutil.MustRead(t, s, func(tx *store.ReadTx) error {
		var err error
		rec, err = tx.RecipientByPhone(ctx, p2)
		return err
	})
	require.NotNil(t, rec)
	assert.False(t, rec.IsRegistered())
	assert.Empty(t, rec.DeviceIDs)

	report, err = a.Refresh(ctx, lookup, []ids.E164{p2})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Unregistered, "already unregistered rows are left alone")
}

type failingLookup struct{}

func (failingLookup) Lookup(context.Context, []ids.E164) ([]Result, error) {
	return nil, errors.New("directory unavailable")
}

func TestRefresh_LookupError(t *testing.T) {
	s := testutil.NewStore(t)
	a := NewApplier(s, recipient.NewMerger(nil), nil)

	_, err := a.Refresh(context.Background(), failingLookup{}, []ids.E164{p1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory lookup")
}

// countingLookup records the batches it was asked for.
type countingLookup struct {
	StaticLookup
	mu      sync.Mutex
	batches [][]ids.E164
}

func (c *countingLookup) Lookup(ctx context.Context, phones []ids.E164) ([]Result, error) {
	c.mu.Lock()
	c.batches = append(c.batches, phones)
	c.mu.Unlock()
	return c.StaticLookup.Lookup(ctx, phones)
}

func TestRefresh_BatchesLookups(t *testing.T) {
	s := testutil.NewStore(t)
	a := NewApplier(s, recipient.NewMerger(nil), nil)
	a.LookupBatch = 2
	a.ConcurrentLookups = 2

	lookup := &countingLookup{StaticLookup: StaticLookup{
		{Aci: u3, Phone: p3, Trust: ids.TrustHigh},
		{Aci: u1, Phone: p1, Trust: ids.TrustHigh},
	}}
	report, err := a.Refresh(context.Background(), lookup, []ids.E164{p1, p2, p3})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Applied)
	assert.Len(t, lookup.batches, 2)

	assert.Equal(t, []string{
		testutil.FormatPair(u1.Ptr(), p1.Ptr()),
		testutil.FormatPair(u3.Ptr(), p3.Ptr()),
	}, testutil.RecipientPairs(t, s), "answers apply in the order phones were given")
}
