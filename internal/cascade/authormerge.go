package cascade

import (
	"context"
	"fmt"

	"github.com/roach88/recon/internal/authormerge"
	"github.com/roach88/recon/internal/recipient"
	"github.com/roach88/recon/internal/store"
)

// AuthorMergeListener bumps the author-merge version whenever a number is
// attached to an ACI, so a rebuild in progress restarts.
type AuthorMergeListener struct {
	helper *authormerge.Helper
}

// NewAuthorMergeListener returns a listener bumping helper's version.
func NewAuthorMergeListener(helper *authormerge.Helper) *AuthorMergeListener {
	return &AuthorMergeListener{helper: helper}
}

// DidLearnAssociation implements recipient.Listener.
func (l *AuthorMergeListener) DidLearnAssociation(ctx context.Context, tx *store.WriteTx, m recipient.MergedRecipient) error {
	if m.NewPhone == nil {
		return nil
	}
	if _, err := l.helper.BumpVersion(ctx, tx); err != nil {
		return fmt.Errorf("author merge listener: %w", err)
	}
	return nil
}

// GroupMemberBackfill returns a rebuild step that walks recipients in
// batches and deduplicates group rosters for every row holding both
// identifiers. It repairs rosters written before the association was known.
func GroupMemberBackfill(d *GroupMemberDeduplicator, batchSize int) authormerge.StepFunc {
	if batchSize <= 0 {
		batchSize = 100
	}
	return func(ctx context.Context, tx *store.WriteTx, fromRowID int64) (int64, bool, error) {
		page, err := tx.RecipientsAfter(ctx, fromRowID, batchSize)
		if err != nil {
			return 0, false, err
		}
		if len(page) == 0 {
			return fromRowID, true, nil
		}
		for _, rec := range page {
			if rec.Aci == nil || rec.Phone == nil {
				continue
			}
			if err := d.Deduplicate(ctx, tx, *rec.Aci, *rec.Phone); err != nil {
				return 0, false, err
			}
		}
		return page[len(page)-1].ID, false, nil
	}
}
