package cascade

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/recon/internal/ids"
	"github.com/roach88/recon/internal/recipient"
	"github.com/roach88/recon/internal/store"
)

// ProfileMerger keeps one canonical profile row per ACI.
//
// The canonical row is keyed by the ACI and created if absent. A phone-only
// profile for the new number is folded into it (or re-keyed to the ACI if no
// canonical row exists). A profile holding the number under another ACI
// loses the number. The profile key is taken from the ACI row first, then
// from the phone row.
type ProfileMerger struct{}

// NewProfileMerger returns a ProfileMerger.
func NewProfileMerger() *ProfileMerger {
	return &ProfileMerger{}
}

// DidLearnAssociation implements recipient.Listener.
func (pm *ProfileMerger) DidLearnAssociation(ctx context.Context, tx *store.WriteTx, m recipient.MergedRecipient) error {
	canonical, err := tx.ProfileByAci(ctx, m.Aci)
	if err != nil {
		return fmt.Errorf("profile merger: %w", err)
	}

	var folded *store.UserProfile
	if m.NewPhone != nil {
		phoneProfile, err := tx.ProfileByPhone(ctx, *m.NewPhone)
		if err != nil {
			return fmt.Errorf("profile merger: %w", err)
		}
		if phoneProfile != nil && (canonical == nil || phoneProfile.ID != canonical.ID) {
			switch {
			case phoneProfile.Aci != nil:
				phoneProfile.Phone = nil
				if err := tx.UpdateProfile(ctx, *phoneProfile); err != nil {
					return fmt.Errorf("profile merger: strip donor phone: %w", err)
				}
			case canonical == nil:
				canonical = phoneProfile
			default:
				if err := tx.DeleteProfile(ctx, phoneProfile.ID); err != nil {
					return fmt.Errorf("profile merger: fold phone profile: %w", err)
				}
				folded = phoneProfile
			}
		}
	}

	if canonical == nil {
		p := store.UserProfile{Aci: m.Aci.Ptr(), Phone: m.NewPhone}
		if err := tx.InsertProfile(ctx, &p); err != nil {
			return fmt.Errorf("profile merger: create canonical: %w", err)
		}
		return nil
	}

	updated := *canonical
	updated.Aci = m.Aci.Ptr()
	updated.Phone = m.NewPhone
	if folded != nil {
		if updated.ProfileKey == nil {
			updated.ProfileKey = folded.ProfileKey
		}
		if updated.GivenName == "" && updated.FamilyName == "" {
			updated.GivenName = folded.GivenName
			updated.FamilyName = folded.FamilyName
		}
		slog.Debug("folded phone-only profile", "aci", m.Aci, "removed", folded.ID)
	}

	if profileEqual(updated, *canonical) {
		return nil
	}
	if err := tx.UpdateProfile(ctx, updated); err != nil {
		return fmt.Errorf("profile merger: update canonical: %w", err)
	}
	return nil
}

func profileEqual(a, b store.UserProfile) bool {
	return ids.EqualAci(a.Aci, b.Aci) &&
		ids.EqualE164(a.Phone, b.Phone) &&
		string(a.ProfileKey) == string(b.ProfileKey) &&
		a.GivenName == b.GivenName &&
		a.FamilyName == b.FamilyName
}
