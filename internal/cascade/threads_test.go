package cascade

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recon/internal/store"
	"github.com/roach88/recon/internal/testutil"
)

func TestThreadMerger_CollapsesSplitThreads(t *testing.T) {
	s := testutil.NewStore(t)
	clock := testutil.NewDeterministicClock()
	m := fullMerger(nil, clock)
	ctx := context.Background()

	insertRecipient(t, s, store.Recipient{Aci: u1.Ptr()})
	insertRecipient(t, s, store.Recipient{Phone: p1.Ptr()})
	aciThread := insertThread(t, s, store.Thread{ContactAci: u1.Ptr(), ShouldBeVisible: true})
	phoneThread := insertThread(t, s, store.Thread{ContactPhone: p1.Ptr(), ShouldBeVisible: true})
	testutil.MustWrite(t, s, func(tx *store.WriteTx) error {
		return tx.InsertInteraction(ctx, &store.Interaction{ThreadUniqueID: phoneThread.UniqueID, Kind: store.InteractionMessage, Body: "hi", Timestamp: time.UnixMilli(1)})
	})

	mergeHigh(t, s, m, u1, p1)

	threads := contactThreads(t, s)
	require.Len(t, threads, 1)
	survivor := threads[0]
	assert.Equal(t, aciThread.UniqueID, survivor.UniqueID, "aci thread survives")
	assert.Equal(t, u1, *survivor.ContactAci)
	assert.Equal(t, p1, *survivor.ContactPhone)

	msgs := interactions(t, s, survivor.UniqueID)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Body)
	assert.Equal(t, store.InteractionThreadMerge, msgs[1].Kind)
	assert.Equal(t, testutil.Epoch.UnixMilli(), msgs[1].Timestamp.UnixMilli())
	assert.Empty(t, interactions(t, s, phoneThread.UniqueID))
}

func TestThreadMerger_NoMergeMessageForHiddenThread(t *testing.T) {
	s := testutil.NewStore(t)
	m := fullMerger(nil, testutil.NewDeterministicClock())

	insertRecipient(t, s, store.Recipient{Aci: u1.Ptr()})
	insertRecipient(t, s, store.Recipient{Phone: p1.Ptr()})
	aciThread := insertThread(t, s, store.Thread{ContactAci: u1.Ptr(), ShouldBeVisible: false})
	insertThread(t, s, store.Thread{ContactPhone: p1.Ptr(), ShouldBeVisible: true})

	mergeHigh(t, s, m, u1, p1)

	threads := contactThreads(t, s)
	require.Len(t, threads, 1)
	assert.Equal(t, aciThread.UniqueID, threads[0].UniqueID)
	assert.True(t, threads[0].ShouldBeVisible, "visibility carries over")
	assert.Empty(t, interactions(t, s, aciThread.UniqueID))
}

func TestThreadMerger_RekeysLonePhoneThread(t *testing.T) {
	s := testutil.NewStore(t)
	m := fullMerger(nil, testutil.NewDeterministicClock())

	insertRecipient(t, s, store.Recipient{Phone: p1.Ptr()})
	phoneThread := insertThread(t, s, store.Thread{ContactPhone: p1.Ptr(), ShouldBeVisible: true})

	mergeHigh(t, s, m, u1, p1)

	threads := contactThreads(t, s)
	require.Len(t, threads, 1)
	assert.Equal(t, phoneThread.UniqueID, threads[0].UniqueID)
	assert.Equal(t, u1, *threads[0].ContactAci)
	assert.Empty(t, interactions(t, s, phoneThread.UniqueID))
}

func TestThreadMerger_ExpungesPhoneFromDonorThread(t *testing.T) {
	s := testutil.NewStore(t)
	m := fullMerger(nil, testutil.NewDeterministicClock())

	mergeHigh(t, s, m, u2, p1)
	donorThread := insertThread(t, s, store.Thread{ContactAci: u2.Ptr(), ContactPhone: p1.Ptr(), ShouldBeVisible: true})

	mergeHigh(t, s, m, u1, p1)

	threads := contactThreads(t, s)
	require.Len(t, threads, 1, "no thread is created for the new aci")
	assert.Equal(t, donorThread.UniqueID, threads[0].UniqueID)
	assert.Equal(t, u2, *threads[0].ContactAci)
	assert.Nil(t, threads[0].ContactPhone)
}

func TestThreadMerger_RunsReconcilersThroughMerge(t *testing.T) {
	s := testutil.NewStore(t)
	m := fullMerger(nil, testutil.NewDeterministicClock())
	ctx := context.Background()

	insertRecipient(t, s, store.Recipient{Aci: u1.Ptr()})
	insertRecipient(t, s, store.Recipient{Phone: p1.Ptr()})
	aciThread := insertThread(t, s, store.Thread{ContactAci: u1.Ptr(), ShouldBeVisible: true})
	phoneThread := insertThread(t, s, store.Thread{ContactPhone: p1.Ptr(), ShouldBeVisible: true})
	testutil.MustWrite(t, s, func(tx *store.WriteTx) error {
		require.NoError(t, tx.SetPinnedThreadIDs(ctx, []string{"x", phoneThread.UniqueID, "y"}))
		require.NoError(t, tx.UpsertThreadAssociatedData(ctx, store.ThreadAssociatedData{ThreadUniqueID: phoneThread.UniqueID, IsArchived: true, MutedUntil: 10, AudioPlaybackRate: 2}))
		require.NoError(t, tx.UpsertDisappearingMessagesConfiguration(ctx, store.DisappearingMessagesConfiguration{ThreadUniqueID: aciThread.UniqueID, Enabled: true, DurationSeconds: 5, TimerVersion: 1}))
		require.NoError(t, tx.UpsertDisappearingMessagesConfiguration(ctx, store.DisappearingMessagesConfiguration{ThreadUniqueID: phoneThread.UniqueID, Enabled: true, DurationSeconds: 3, TimerVersion: 4}))
		require.NoError(t, tx.SetThreadReplyInfo(ctx, aciThread.UniqueID, store.ThreadReplyInfo{AuthorAci: u1, Timestamp: 1}))
		return tx.SetThreadReplyInfo(ctx, phoneThread.UniqueID, store.ThreadReplyInfo{AuthorAci: u2, Timestamp: 2})
	})

	mergeHigh(t, s, m, u1, p1)

	testutil.MustRead(t, s, func(tx *store.ReadTx) error {
		pinned, err := tx.PinnedThreadIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"x", aciThread.UniqueID, "y"}, pinned)

		tad, err := tx.ThreadAssociatedDataOrDefault(ctx, aciThread.UniqueID)
		require.NoError(t, err)
		assert.True(t, tad.IsArchived)
		assert.Equal(t, uint64(10), tad.MutedUntil)
		assert.Equal(t, 2.0, tad.AudioPlaybackRate)

		dm, err := tx.DisappearingMessagesConfigurationOrDefault(ctx, aciThread.UniqueID)
		require.NoError(t, err)
		assert.True(t, dm.Enabled)
		assert.Equal(t, uint32(3), dm.DurationSeconds)
		assert.Equal(t, uint32(4), dm.TimerVersion)

		info, err := tx.ThreadReplyInfo(ctx, aciThread.UniqueID)
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, u1, info.AuthorAci)

		gone, err := tx.ThreadReplyInfo(ctx, phoneThread.UniqueID)
		require.NoError(t, err)
		assert.Nil(t, gone)
		return nil
	})
}

func TestThreadMerger_NoThreadsIsNoop(t *testing.T) {
	s := testutil.NewStore(t)
	m := fullMerger(nil, testutil.NewDeterministicClock())

	mergeHigh(t, s, m, u1, p1)

	assert.Empty(t, contactThreads(t, s))
}
