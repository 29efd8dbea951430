package cascade

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/recon/internal/recipient"
	"github.com/roach88/recon/internal/store"
)

// PhoneNumberChangeNotifier inserts a "phone number changed" info message
// when a known contact's number changes to a different number.
//
// The message goes into the contact's threads and into every visible,
// non-archived group thread the contact is a member of. Changes of the
// local account's own number are not announced.
type PhoneNumberChangeNotifier struct {
	clock Clock
}

// NewPhoneNumberChangeNotifier returns a notifier. A nil clock uses SystemClock.
func NewPhoneNumberChangeNotifier(clock Clock) *PhoneNumberChangeNotifier {
	if clock == nil {
		clock = SystemClock{}
	}
	return &PhoneNumberChangeNotifier{clock: clock}
}

// DidLearnAssociation implements recipient.Listener.
func (n *PhoneNumberChangeNotifier) DidLearnAssociation(ctx context.Context, tx *store.WriteTx, m recipient.MergedRecipient) error {
	if !m.PhoneNumberChanged() || m.IsLocalRecipient {
		return nil
	}

	var targets []string
	contactThreads, err := tx.ContactThreadsByAci(ctx, m.Aci)
	if err != nil {
		return fmt.Errorf("phone number change: %w", err)
	}
	for _, th := range contactThreads {
		targets = append(targets, th.UniqueID)
	}

	groupIDs, err := tx.GroupThreadIDsContaining(ctx, &m.Aci, nil)
	if err != nil {
		return fmt.Errorf("phone number change: %w", err)
	}
	for _, groupID := range groupIDs {
		th, err := tx.ThreadByUniqueID(ctx, groupID)
		if err != nil {
			return fmt.Errorf("phone number change: %w", err)
		}
		if th == nil || !th.ShouldBeVisible {
			continue
		}
		tad, err := tx.ThreadAssociatedDataOrDefault(ctx, groupID)
		if err != nil {
			return fmt.Errorf("phone number change: %w", err)
		}
		if tad.IsArchived {
			continue
		}
		targets = append(targets, groupID)
	}

	body := fmt.Sprintf("%s changed their phone number from %s to %s", m.Aci, *m.OldPhone, *m.NewPhone)
	for _, threadID := range targets {
		info := store.Interaction{
			ThreadUniqueID: threadID,
			Kind:           store.InteractionPhoneNumberChanged,
			Body:           body,
			Timestamp:      n.clock.Now(),
		}
		if err := tx.InsertInteraction(ctx, &info); err != nil {
			return fmt.Errorf("phone number change: %w", err)
		}
	}

	slog.Info("announced phone number change", "aci", m.Aci, "threads", len(targets))
	return nil
}
