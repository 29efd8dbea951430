package cascade

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recon/internal/recipient"
	"github.com/roach88/recon/internal/store"
	"github.com/roach88/recon/internal/testutil"
)

func insertProfile(t *testing.T, s *store.Store, p store.UserProfile) store.UserProfile {
	t.Helper()
	testutil.MustWrite(t, s, func(tx *store.WriteTx) error {
		return tx.InsertProfile(context.Background(), &p)
	})
	return p
}

func learn(t *testing.T, s *store.Store, l recipient.Listener, m recipient.MergedRecipient) {
	t.Helper()
	testutil.MustWrite(t, s, func(tx *store.WriteTx) error {
		return l.DidLearnAssociation(context.Background(), tx, m)
	})
}

func profiles(t *testing.T, s *store.Store) []store.UserProfile {
	t.Helper()
	var out []store.UserProfile
	testutil.MustRead(t, s, func(tx *store.ReadTx) error {
		var err error
		out, err = tx.AllProfiles(context.Background())
		return err
	})
	return out
}

func TestProfileMerger_CreatesCanonical(t *testing.T) {
	s := testutil.NewStore(t)

	learn(t, s, NewProfileMerger(), recipient.MergedRecipient{Aci: u1, NewPhone: p1.Ptr()})

	all := profiles(t, s)
	require.Len(t, all, 1)
	assert.Equal(t, u1, *all[0].Aci)
	assert.Equal(t, p1, *all[0].Phone)
}

func TestProfileMerger_FoldsPhoneOnlyProfile(t *testing.T) {
	s := testutil.NewStore(t)
	insertProfile(t, s, store.UserProfile{Aci: u1.Ptr(), GivenName: ""})
	insertProfile(t, s, store.UserProfile{Phone: p1.Ptr(), ProfileKey: []byte{9}, GivenName: "Ada"})

	learn(t, s, NewProfileMerger(), recipient.MergedRecipient{Aci: u1, NewPhone: p1.Ptr()})

	all := profiles(t, s)
	require.Len(t, all, 1)
	assert.Equal(t, u1, *all[0].Aci)
	assert.Equal(t, p1, *all[0].Phone)
	assert.Equal(t, []byte{9}, all[0].ProfileKey)
	assert.Equal(t, "Ada", all[0].GivenName)
}

func TestProfileMerger_AciKeyTakesPrecedence(t *testing.T) {
	s := testutil.NewStore(t)
	insertProfile(t, s, store.UserProfile{Aci: u1.Ptr(), ProfileKey: []byte{1}})
	insertProfile(t, s, store.UserProfile{Phone: p1.Ptr(), ProfileKey: []byte{2}})

	learn(t, s, NewProfileMerger(), recipient.MergedRecipient{Aci: u1, NewPhone: p1.Ptr()})

	all := profiles(t, s)
	require.Len(t, all, 1)
	assert.Equal(t, []byte{1}, all[0].ProfileKey)
}

func TestProfileMerger_RekeysPhoneOnlyProfile(t *testing.T) {
	s := testutil.NewStore(t)
	original := insertProfile(t, s, store.UserProfile{Phone: p1.Ptr(), ProfileKey: []byte{2}})

	learn(t, s, NewProfileMerger(), recipient.MergedRecipient{Aci: u1, NewPhone: p1.Ptr()})

	all := profiles(t, s)
	require.Len(t, all, 1)
	assert.Equal(t, original.ID, all[0].ID)
	assert.Equal(t, u1, *all[0].Aci)
}

func TestProfileMerger_StripsDonorPhone(t *testing.T) {
	s := testutil.NewStore(t)
	insertProfile(t, s, store.UserProfile{Aci: u2.Ptr(), Phone: p1.Ptr(), ProfileKey: []byte{7}})

	learn(t, s, NewProfileMerger(), recipient.MergedRecipient{Aci: u1, NewPhone: p1.Ptr()})

	all := profiles(t, s)
	require.Len(t, all, 2)
	assert.Equal(t, u2, *all[0].Aci)
	assert.Nil(t, all[0].Phone)
	assert.Equal(t, []byte{7}, all[0].ProfileKey, "donor keeps its own key")
	assert.Equal(t, u1, *all[1].Aci)
	assert.Equal(t, p1, *all[1].Phone)
	assert.Nil(t, all[1].ProfileKey)
}
