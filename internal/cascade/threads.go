package cascade

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/recon/internal/ids"
	"github.com/roach88/recon/internal/recipient"
	"github.com/roach88/recon/internal/store"
)

// ThreadPair names two contact threads being collapsed. Into survives.
type ThreadPair struct {
	From store.Thread
	Into store.Thread
}

// ThreadPairMerger moves one kind of per-thread state from pair.From to
// pair.Into. It runs before From is deleted.
type ThreadPairMerger interface {
	MergeThreadPair(ctx context.Context, tx *store.WriteTx, pair ThreadPair) error
}

// DefaultThreadPairMergers returns every per-thread reconciler.
func DefaultThreadPairMergers() []ThreadPairMerger {
	return []ThreadPairMerger{
		PinnedThreadReconciler{},
		DisappearingMessagesReconciler{},
		AssociatedDataReconciler{},
		ReplyInfoReconciler{},
	}
}

// ThreadMerger collapses contact threads that now belong to one recipient
// and re-keys the survivor to the recipient's canonical identity.
type ThreadMerger struct {
	clock   Clock
	mergers []ThreadPairMerger
}

// NewThreadMerger returns a ThreadMerger. A nil clock uses SystemClock.
func NewThreadMerger(clock Clock, mergers ...ThreadPairMerger) *ThreadMerger {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ThreadMerger{clock: clock, mergers: mergers}
}

// DidLearnAssociation implements recipient.Listener.
func (tm *ThreadMerger) DidLearnAssociation(ctx context.Context, tx *store.WriteTx, m recipient.MergedRecipient) error {
	threads, err := tx.ContactThreadsByAci(ctx, m.Aci)
	if err != nil {
		return fmt.Errorf("thread merger: %w", err)
	}

	if m.NewPhone != nil {
		phoneThreads, err := tx.ContactThreadsByPhone(ctx, *m.NewPhone)
		if err != nil {
			return fmt.Errorf("thread merger: %w", err)
		}
		for _, th := range phoneThreads {
			if containsThread(threads, th.UniqueID) {
				continue
			}
			if th.ContactAci != nil && *th.ContactAci != m.Aci {
				// The number moved away from this thread's contact.
				th.ContactPhone = nil
				if err := tx.UpdateThread(ctx, th); err != nil {
					return fmt.Errorf("thread merger: expunge phone: %w", err)
				}
				continue
			}
			threads = append(threads, th)
		}
	}

	if len(threads) == 0 {
		return nil
	}

	// Collapse from the back so the first thread keyed by ACI survives.
	for i := len(threads) - 1; i > 0; i-- {
		pair := ThreadPair{From: threads[i], Into: threads[i-1]}
		merged, err := tm.mergePair(ctx, tx, pair)
		if err != nil {
			return err
		}
		threads[i-1] = merged
	}

	survivor := threads[0]
	if ids.EqualAci(survivor.ContactAci, &m.Aci) && ids.EqualE164(survivor.ContactPhone, m.NewPhone) {
		return nil
	}
	survivor.ContactAci = m.Aci.Ptr()
	survivor.ContactPhone = m.NewPhone
	if err := tx.UpdateThread(ctx, survivor); err != nil {
		return fmt.Errorf("thread merger: re-key survivor: %w", err)
	}
	return nil
}

func (tm *ThreadMerger) mergePair(ctx context.Context, tx *store.WriteTx, pair ThreadPair) (store.Thread, error) {
	for _, pm := range tm.mergers {
		if err := pm.MergeThreadPair(ctx, tx, pair); err != nil {
			return store.Thread{}, fmt.Errorf("thread merger: %T: %w", pm, err)
		}
	}

	moved, err := tx.MoveInteractions(ctx, pair.From.UniqueID, pair.Into.UniqueID)
	if err != nil {
		return store.Thread{}, fmt.Errorf("thread merger: %w", err)
	}

	into := pair.Into
	if pair.From.ShouldBeVisible && pair.Into.ShouldBeVisible {
		info := store.Interaction{
			ThreadUniqueID: into.UniqueID,
			Kind:           store.InteractionThreadMerge,
			Body:           threadMergeBody(pair.From),
			Timestamp:      tm.clock.Now(),
		}
		if err := tx.InsertInteraction(ctx, &info); err != nil {
			return store.Thread{}, fmt.Errorf("thread merger: %w", err)
		}
	}

	if err := tx.RemoveThread(ctx, pair.From.UniqueID); err != nil {
		return store.Thread{}, fmt.Errorf("thread merger: %w", err)
	}

	if pair.From.ShouldBeVisible && !into.ShouldBeVisible {
		into.ShouldBeVisible = true
		if err := tx.UpdateThread(ctx, into); err != nil {
			return store.Thread{}, fmt.Errorf("thread merger: %w", err)
		}
	}

	slog.Info("merged threads",
		"from", pair.From.UniqueID,
		"into", into.UniqueID,
		"moved_interactions", moved,
	)
	return into, nil
}

func threadMergeBody(from store.Thread) string {
	if from.ContactPhone != nil {
		return "merged conversation with " + from.ContactPhone.String()
	}
	return "merged conversation"
}

func containsThread(threads []store.Thread, uniqueID string) bool {
	for _, th := range threads {
		if th.UniqueID == uniqueID {
			return true
		}
	}
	return false
}
