package cascade

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/recon/internal/ids"
	"github.com/roach88/recon/internal/recipient"
	"github.com/roach88/recon/internal/store"
)

// GroupMemberDeduplicator keeps one member row per recipient in every group
// touched by a learned association.
//
// In each affected group: rows holding the new number under a different ACI
// lose the number; a phone-only row is folded into the ACI's row when both
// exist, or becomes the ACI's row otherwise; the ACI's row takes the new
// number.
type GroupMemberDeduplicator struct{}

// NewGroupMemberDeduplicator returns a GroupMemberDeduplicator.
func NewGroupMemberDeduplicator() *GroupMemberDeduplicator {
	return &GroupMemberDeduplicator{}
}

// DidLearnAssociation implements recipient.Listener.
func (d *GroupMemberDeduplicator) DidLearnAssociation(ctx context.Context, tx *store.WriteTx, m recipient.MergedRecipient) error {
	if m.NewPhone == nil {
		return nil
	}
	return d.Deduplicate(ctx, tx, m.Aci, *m.NewPhone)
}

// Deduplicate reconciles every group containing aci or phone.
func (d *GroupMemberDeduplicator) Deduplicate(ctx context.Context, tx *store.WriteTx, aci ids.Aci, phone ids.E164) error {
	groupIDs, err := tx.GroupThreadIDsContaining(ctx, &aci, &phone)
	if err != nil {
		return fmt.Errorf("group member dedupe: %w", err)
	}
	for _, groupID := range groupIDs {
		if err := d.dedupeGroup(ctx, tx, groupID, aci, phone); err != nil {
			return fmt.Errorf("group member dedupe %s: %w", groupID, err)
		}
	}
	return nil
}

func (d *GroupMemberDeduplicator) dedupeGroup(ctx context.Context, tx *store.WriteTx, groupID string, aci ids.Aci, phone ids.E164) error {
	members, err := tx.GroupMembers(ctx, groupID)
	if err != nil {
		return err
	}

	var aciMember, phoneOnly *store.GroupMember
	var donors []store.GroupMember
	for i := range members {
		mem := &members[i]
		switch {
		case mem.Aci != nil && *mem.Aci == aci:
			aciMember = mem
		case mem.Phone != nil && *mem.Phone == phone && mem.Aci == nil:
			phoneOnly = mem
		case mem.Phone != nil && *mem.Phone == phone:
			donors = append(donors, *mem)
		}
	}

	for _, donor := range donors {
		donor.Phone = nil
		if err := tx.UpdateGroupMember(ctx, donor); err != nil {
			return err
		}
	}

	if phoneOnly != nil {
		if aciMember == nil {
			phoneOnly.Aci = aci.Ptr()
			return tx.UpdateGroupMember(ctx, *phoneOnly)
		}
		if err := tx.DeleteGroupMember(ctx, phoneOnly.ID); err != nil {
			return err
		}
		aciMember.LastInteractionAt = max(aciMember.LastInteractionAt, phoneOnly.LastInteractionAt)
		slog.Info("removed duplicate group member", "group", groupID, "aci", aci, "phone", phone)
	}

	if aciMember == nil {
		return nil
	}
	if ids.EqualE164(aciMember.Phone, &phone) && phoneOnly == nil {
		return nil
	}
	aciMember.Phone = phone.Ptr()
	return tx.UpdateGroupMember(ctx, *aciMember)
}
