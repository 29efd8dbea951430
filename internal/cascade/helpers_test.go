package cascade

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/recon/internal/authormerge"
	"github.com/roach88/recon/internal/ids"
	"github.com/roach88/recon/internal/recipient"
	"github.com/roach88/recon/internal/store"
	"github.com/roach88/recon/internal/testutil"
)

var (
	u1 = testutil.Aci(1)
	u2 = testutil.Aci(2)
	p1 = testutil.Phone(1)
	p2 = testutil.Phone(2)
)

// fullMerger wires every listener the way the app container does.
func fullMerger(local *recipient.LocalIdentifiers, clock Clock) *recipient.Merger {
	return recipient.NewMerger(local,
		NewThreadMerger(clock, DefaultThreadPairMergers()...),
		NewGroupMemberDeduplicator(),
		NewPhoneNumberChangeNotifier(clock),
		NewProfileMerger(),
		NewAuthorMergeListener(authormerge.NewHelper()),
	)
}

func mergeHigh(t *testing.T, s *store.Store, m *recipient.Merger, aci ids.Aci, phone ids.E164) {
	t.Helper()
	testutil.MustWrite(t, s, func(tx *store.WriteTx) error {
		_, err := m.MergeHigh(context.Background(), tx, aci, phone)
		return err
	})
}

func insertRecipient(t *testing.T, s *store.Store, r store.Recipient) {
	t.Helper()
	testutil.MustWrite(t, s, func(tx *store.WriteTx) error {
		return tx.InsertRecipient(context.Background(), &r)
	})
}

func insertThread(t *testing.T, s *store.Store, th store.Thread) store.Thread {
	t.Helper()
	testutil.MustWrite(t, s, func(tx *store.WriteTx) error {
		return tx.InsertThread(context.Background(), &th)
	})
	return th
}

func insertMember(t *testing.T, s *store.Store, m store.GroupMember) {
	t.Helper()
	testutil.MustWrite(t, s, func(tx *store.WriteTx) error {
		return tx.InsertGroupMember(context.Background(), &m)
	})
}

func contactThreads(t *testing.T, s *store.Store) []store.Thread {
	t.Helper()
	var out []store.Thread
	testutil.MustRead(t, s, func(tx *store.ReadTx) error {
		all, err := tx.AllThreads(context.Background())
		for _, th := range all {
			if !th.IsGroup() {
				out = append(out, th)
			}
		}
		return err
	})
	return out
}

func interactions(t *testing.T, s *store.Store, threadID string) []store.Interaction {
	t.Helper()
	var out []store.Interaction
	testutil.MustRead(t, s, func(tx *store.ReadTx) error {
		var err error
		out, err = tx.InteractionsForThread(context.Background(), threadID)
		return err
	})
	return out
}

func memberPairs(t *testing.T, s *store.Store, groupThreadID string) []string {
	t.Helper()
	var pairs []string
	testutil.MustRead(t, s, func(tx *store.ReadTx) error {
		members, err := tx.GroupMembers(context.Background(), groupThreadID)
		require.NoError(t, err)
		for _, m := range members {
			pairs = append(pairs, testutil.FormatPair(m.Aci, m.Phone))
		}
		return nil
	})
	return pairs
}

// applyPair runs one ThreadPairMerger in its own transaction.
func applyPair(t *testing.T, s *store.Store, pm ThreadPairMerger, pair ThreadPair) {
	t.Helper()
	testutil.MustWrite(t, s, func(tx *store.WriteTx) error {
		return pm.MergeThreadPair(context.Background(), tx, pair)
	})
}
