package recipient

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/roach88/recon/internal/store"
)

// PrimaryDeviceID is the device index of an account's primary device.
const PrimaryDeviceID uint32 = 1

// MarkRegistered clears the unregistration timestamp of rec and records
// deviceID as known. It writes only if something changed.
func MarkRegistered(ctx context.Context, tx *store.WriteTx, rec store.Recipient, deviceID uint32) (store.Recipient, error) {
	if rec.IsRegistered() && slices.Contains(rec.DeviceIDs, deviceID) {
		return rec, nil
	}
	updated := clone(rec)
	updated.UnregisteredAt = nil
	updated.DeviceIDs = unionDeviceIDs(updated.DeviceIDs, []uint32{deviceID})
	if err := tx.UpdateRecipient(ctx, updated); err != nil {
		return store.Recipient{}, fmt.Errorf("mark registered: %w", err)
	}
	return updated, nil
}

// MarkUnregistered records that rec was reported unregistered at the given
// time and forgets its devices. A row already unregistered keeps its
// original timestamp.
func MarkUnregistered(ctx context.Context, tx *store.WriteTx, rec store.Recipient, at time.Time) (store.Recipient, error) {
	if !rec.IsRegistered() {
		return rec, nil
	}
	updated := clone(rec)
	at = at.Truncate(time.Millisecond)
	updated.UnregisteredAt = &at
	updated.DeviceIDs = []uint32{}
	if err := tx.UpdateRecipient(ctx, updated); err != nil {
		return store.Recipient{}, fmt.Errorf("mark unregistered: %w", err)
	}
	return updated, nil
}
