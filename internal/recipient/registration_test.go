package recipient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recon/internal/store"
	"github.com/roach88/recon/internal/testutil"
)

func TestRegistration_RoundTrip(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()
	rec := insert(t, s, store.Recipient{Aci: u1.Ptr(), DeviceIDs: []uint32{PrimaryDeviceID, 3}})
	at := time.UnixMilli(1_700_000_000_123)

	testutil.MustWrite(t, s, func(tx *store.WriteTx) error {
		var err error
		rec, err = MarkUnregistered(ctx, tx, rec, at)
		require.NoError(t, err)

		// A second report keeps the first timestamp.
		rec, err = MarkUnregistered(ctx, tx, rec, at.Add(time.Hour))
		return err
	})
	assert.False(t, rec.IsRegistered())
	assert.Equal(t, at.UnixMilli(), rec.UnregisteredAt.UnixMilli())
	assert.Empty(t, rec.DeviceIDs)

	testutil.MustWrite(t, s, func(tx *store.WriteTx) error {
		var err error
		rec, err = MarkRegistered(ctx, tx, rec, PrimaryDeviceID)
		return err
	})

	testutil.MustRead(t, s, func(tx *store.ReadTx) error {
		got, err := tx.RecipientByAci(ctx, u1)
		require.NoError(t, err)
		assert.True(t, got.IsRegistered())
		assert.Equal(t, []uint32{PrimaryDeviceID}, got.DeviceIDs)
		return nil
	})
}

func TestMarkRegistered_AddsDevice(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()
	rec := insert(t, s, store.Recipient{Aci: u1.Ptr(), DeviceIDs: []uint32{PrimaryDeviceID}})

	testutil.MustWrite(t, s, func(tx *store.WriteTx) error {
		var err error
		rec, err = MarkRegistered(ctx, tx, rec, 4)
		return err
	})
	assert.Equal(t, []uint32{PrimaryDeviceID, 4}, rec.DeviceIDs)
}

func TestLocalIdentifiers_Contains(t *testing.T) {
	var none *LocalIdentifiers
	assert.False(t, none.ContainsAci(u1))
	assert.False(t, none.ContainsPhone(p1))

	local := &LocalIdentifiers{Aci: u1, Phone: p1.Ptr()}
	assert.True(t, local.ContainsAci(u1))
	assert.False(t, local.ContainsAci(u2))
	assert.True(t, local.ContainsPhone(p1))
	assert.False(t, local.ContainsPhone(p2))
}
