package cascade

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/recon/internal/store"
)

// PinnedThreadReconciler keeps a pinned slot for the surviving thread.
//
// If From was pinned and Into was not, Into takes From's position in the
// pinned list. If both were pinned, Into keeps its own slot.
type PinnedThreadReconciler struct{}

// MergeThreadPair implements ThreadPairMerger.
func (PinnedThreadReconciler) MergeThreadPair(ctx context.Context, tx *store.WriteTx, pair ThreadPair) error {
	pinned, err := tx.PinnedThreadIDs(ctx)
	if err != nil {
		return err
	}
	fromIdx := slices.Index(pinned, pair.From.UniqueID)
	if fromIdx < 0 {
		return nil
	}

	intoPinned := slices.Contains(pinned, pair.Into.UniqueID)
	pinned = slices.Delete(pinned, fromIdx, fromIdx+1)
	if !intoPinned {
		pinned = slices.Insert(pinned, fromIdx, pair.Into.UniqueID)
	}
	return tx.SetPinnedThreadIDs(ctx, pinned)
}

// DisappearingMessagesReconciler combines the message timers of both threads.
//
// The shorter of two enabled durations wins; a single enabled timer wins
// over a disabled one; two disabled timers stay disabled. The timer version
// is the larger of the two.
type DisappearingMessagesReconciler struct{}

// MergeThreadPair implements ThreadPairMerger.
func (DisappearingMessagesReconciler) MergeThreadPair(ctx context.Context, tx *store.WriteTx, pair ThreadPair) error {
	fromStored, err := tx.DisappearingMessagesConfiguration(ctx, pair.From.UniqueID)
	if err != nil {
		return err
	}
	intoStored, err := tx.DisappearingMessagesConfiguration(ctx, pair.Into.UniqueID)
	if err != nil {
		return err
	}
	if fromStored == nil && intoStored == nil {
		return nil
	}

	from := store.DefaultDisappearingMessagesConfiguration(pair.From.UniqueID)
	if fromStored != nil {
		from = *fromStored
	}
	into := store.DefaultDisappearingMessagesConfiguration(pair.Into.UniqueID)
	if intoStored != nil {
		into = *intoStored
	}

	merged := MergeDisappearingMessages(into, from)
	if intoStored != nil && merged == *intoStored {
		return nil
	}
	return tx.UpsertDisappearingMessagesConfiguration(ctx, merged)
}

// MergeDisappearingMessages returns the combined timer, keyed by into's thread.
func MergeDisappearingMessages(into, from store.DisappearingMessagesConfiguration) store.DisappearingMessagesConfiguration {
	merged := store.DisappearingMessagesConfiguration{
		ThreadUniqueID: into.ThreadUniqueID,
		TimerVersion:   max(into.TimerVersion, from.TimerVersion),
	}
	switch {
	case into.Enabled && from.Enabled:
		merged.Enabled = true
		merged.DurationSeconds = min(into.DurationSeconds, from.DurationSeconds)
	case into.Enabled:
		merged.Enabled = true
		merged.DurationSeconds = into.DurationSeconds
	case from.Enabled:
		merged.Enabled = true
		merged.DurationSeconds = from.DurationSeconds
	}
	return merged
}

// AssociatedDataReconciler copies the phone-number thread's settings
// (archived, marked-unread, muted-until, playback rate) onto the survivor.
// If From has no settings row the survivor's settings are unchanged.
type AssociatedDataReconciler struct{}

// MergeThreadPair implements ThreadPairMerger.
func (AssociatedDataReconciler) MergeThreadPair(ctx context.Context, tx *store.WriteTx, pair ThreadPair) error {
	from, err := tx.ThreadAssociatedData(ctx, pair.From.UniqueID)
	if err != nil {
		return err
	}
	if from == nil {
		return nil
	}
	merged := *from
	merged.ThreadUniqueID = pair.Into.UniqueID
	if err := tx.UpsertThreadAssociatedData(ctx, merged); err != nil {
		return fmt.Errorf("associated data: %w", err)
	}
	return nil
}

// ReplyInfoReconciler keeps only the survivor's draft reply reference.
// From's reference cannot be attributed after the merge and is dropped.
type ReplyInfoReconciler struct{}

// MergeThreadPair implements ThreadPairMerger.
func (ReplyInfoReconciler) MergeThreadPair(ctx context.Context, tx *store.WriteTx, pair ThreadPair) error {
	return tx.RemoveThreadReplyInfo(ctx, pair.From.UniqueID)
}
