package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThread_ContactLookups(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := Thread{ContactAci: aciPtr(testAci1), ShouldBeVisible: true}
	second := Thread{ContactPhone: phonePtr(testPhone1)}
	group := Thread{GroupID: []byte{0xAB, 0xCD}, ShouldBeVisible: true}
	write(t, s, func(tx *WriteTx) error {
		require.NoError(t, tx.InsertThread(ctx, &first))
		require.NoError(t, tx.InsertThread(ctx, &second))
		return tx.InsertThread(ctx, &group)
	})

	read(t, s, func(tx *ReadTx) error {
		byAci, err := tx.ContactThreadsByAci(ctx, testAci1)
		require.NoError(t, err)
		require.Len(t, byAci, 1)
		assert.Equal(t, first.UniqueID, byAci[0].UniqueID)
		assert.False(t, byAci[0].IsGroup())
		assert.False(t, byAci[0].CreatedAt.IsZero())

		byPhone, err := tx.ContactThreadsByPhone(ctx, testPhone1)
		require.NoError(t, err)
		require.Len(t, byPhone, 1)
		assert.Equal(t, second.UniqueID, byPhone[0].UniqueID)

		g, err := tx.GroupThread(ctx, []byte{0xAB, 0xCD})
		require.NoError(t, err)
		require.NotNil(t, g)
		assert.True(t, g.IsGroup())

		missing, err := tx.ThreadByUniqueID(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)
		return nil
	})
}

func TestThread_Update(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	th := Thread{ContactPhone: phonePtr(testPhone1), CreatedAt: time.UnixMilli(1000)}
	write(t, s, func(tx *WriteTx) error { return tx.InsertThread(ctx, &th) })

	th.ContactAci = aciPtr(testAci1)
	th.ContactPhone = phonePtr(testPhone2)
	th.ShouldBeVisible = true
	write(t, s, func(tx *WriteTx) error { return tx.UpdateThread(ctx, th) })

	read(t, s, func(tx *ReadTx) error {
		got, err := tx.ThreadByUniqueID(ctx, th.UniqueID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, testAci1, *got.ContactAci)
		assert.Equal(t, testPhone2, *got.ContactPhone)
		assert.True(t, got.ShouldBeVisible)
		assert.Equal(t, int64(1000), got.CreatedAt.UnixMilli())
		return nil
	})
}

func TestThread_RemoveClearsPerThreadState(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	keep := Thread{ContactAci: aciPtr(testAci2)}
	gone := Thread{ContactAci: aciPtr(testAci1)}
	write(t, s, func(tx *WriteTx) error {
		require.NoError(t, tx.InsertThread(ctx, &keep))
		require.NoError(t, tx.InsertThread(ctx, &gone))
		require.NoError(t, tx.UpsertThreadAssociatedData(ctx, ThreadAssociatedData{ThreadUniqueID: gone.UniqueID, IsArchived: true, AudioPlaybackRate: 1}))
		require.NoError(t, tx.UpsertDisappearingMessagesConfiguration(ctx, DisappearingMessagesConfiguration{ThreadUniqueID: gone.UniqueID, Enabled: true, DurationSeconds: 60, TimerVersion: 2}))
		require.NoError(t, tx.SetThreadReplyInfo(ctx, gone.UniqueID, ThreadReplyInfo{AuthorAci: testAci1, Timestamp: 5}))
		return tx.SetPinnedThreadIDs(ctx, []string{keep.UniqueID, gone.UniqueID})
	})

	write(t, s, func(tx *WriteTx) error { return tx.RemoveThread(ctx, gone.UniqueID) })

	read(t, s, func(tx *ReadTx) error {
		th, err := tx.ThreadByUniqueID(ctx, gone.UniqueID)
		require.NoError(t, err)
		assert.Nil(t, th)

		tad, err := tx.ThreadAssociatedData(ctx, gone.UniqueID)
		require.NoError(t, err)
		assert.Nil(t, tad)

		dm, err := tx.DisappearingMessagesConfiguration(ctx, gone.UniqueID)
		require.NoError(t, err)
		assert.Nil(t, dm)

		info, err := tx.ThreadReplyInfo(ctx, gone.UniqueID)
		require.NoError(t, err)
		assert.Nil(t, info)

		pinned, err := tx.PinnedThreadIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{keep.UniqueID}, pinned)
		return nil
	})
}

func TestInteractions_Move(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	write(t, s, func(tx *WriteTx) error {
		for _, body := range []string{"a", "b"} {
			require.NoError(t, tx.InsertInteraction(ctx, &Interaction{ThreadUniqueID: "from", Kind: InteractionMessage, Body: body, Timestamp: time.UnixMilli(1)}))
		}
		return tx.InsertInteraction(ctx, &Interaction{ThreadUniqueID: "into", Kind: InteractionMessage, Body: "c", Timestamp: time.UnixMilli(2)})
	})

	var moved int64
	write(t, s, func(tx *WriteTx) error {
		var err error
		moved, err = tx.MoveInteractions(ctx, "from", "into")
		return err
	})
	assert.Equal(t, int64(2), moved)

	read(t, s, func(tx *ReadTx) error {
		into, err := tx.InteractionsForThread(ctx, "into")
		require.NoError(t, err)
		require.Len(t, into, 3)
		assert.Equal(t, []string{"a", "b", "c"}, []string{into[0].Body, into[1].Body, into[2].Body})

		from, err := tx.InteractionsForThread(ctx, "from")
		require.NoError(t, err)
		assert.Empty(t, from)
		return nil
	})
}
