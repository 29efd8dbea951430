package recipient

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/recon/internal/ids"
	"github.com/roach88/recon/internal/store"
)

// MergedRecipient describes an association the store just learned.
//
// OldPhone is the phone number the ACI's row held before the merge (nil if
// the ACI had no row or no number). NewPhone is the number now attached.
// OldRecipient is a snapshot of the ACI's row before mutation, nil when the
// row did not exist. NewRecipient is the canonical row after the merge.
type MergedRecipient struct {
	Aci              ids.Aci
	OldPhone         *ids.E164
	NewPhone         *ids.E164
	IsLocalRecipient bool
	OldRecipient     *store.Recipient
	NewRecipient     store.Recipient
}

// PhoneNumberChanged reports whether a known number became a different one.
func (m MergedRecipient) PhoneNumberChanged() bool {
	return m.OldPhone != nil && m.NewPhone != nil && *m.OldPhone != *m.NewPhone
}

// Listener is notified of every learned association inside the merge's
// write transaction. Returning an error aborts the merge.
type Listener interface {
	DidLearnAssociation(ctx context.Context, tx *store.WriteTx, m MergedRecipient) error
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context, tx *store.WriteTx, m MergedRecipient) error

// DidLearnAssociation calls f.
func (f ListenerFunc) DidLearnAssociation(ctx context.Context, tx *store.WriteTx, m MergedRecipient) error {
	return f(ctx, tx, m)
}

// Merger applies identifier observations to the recipient table.
//
// Listeners run in the order they were given to NewMerger. A Merger holds no
// mutable state and is safe for concurrent use; serialization comes from the
// store's write transactions.
type Merger struct {
	local     *LocalIdentifiers
	listeners []Listener
}

// NewMerger returns a Merger that tags events for local and notifies listeners.
// local may be nil before registration.
func NewMerger(local *LocalIdentifiers, listeners ...Listener) *Merger {
	return &Merger{local: local, listeners: slices.Clone(listeners)}
}

// Listeners returns the registered listeners in invocation order.
func (m *Merger) Listeners() []Listener {
	return slices.Clone(m.listeners)
}

// MergeHigh merges an association confirmed by an authoritative source.
func (m *Merger) MergeHigh(ctx context.Context, tx *store.WriteTx, aci ids.Aci, phone ids.E164) (store.Recipient, error) {
	return m.Merge(ctx, tx, ids.TrustHigh, ids.BothAddress(aci, phone))
}

// MergeLow merges a best-effort association. It never moves a phone number
// away from another row.
func (m *Merger) MergeLow(ctx context.Context, tx *store.WriteTx, aci ids.Aci, phone ids.E164) (store.Recipient, error) {
	return m.Merge(ctx, tx, ids.TrustLow, ids.BothAddress(aci, phone))
}

// Merge applies one observation and returns the canonical row for it.
//
// Merge panics if addr holds no identifier.
func (m *Merger) Merge(ctx context.Context, tx *store.WriteTx, trust ids.Trust, addr ids.Address) (store.Recipient, error) {
	switch addr.Kind() {
	case ids.KindAciOnly, ids.KindPhoneOnly:
		return m.FetchOrCreate(ctx, tx, addr)
	case ids.KindBoth:
		aci, _ := addr.Aci()
		phone, _ := addr.Phone()
		if trust == ids.TrustHigh {
			return m.mergeHighTrust(ctx, tx, aci, phone)
		}
		return m.mergeLowTrust(ctx, tx, aci, phone)
	default:
		panic("recipient: merge called without an identifier")
	}
}

// FetchOrCreate returns the row holding the single identifier of addr,
// inserting a partial row if none exists. For a Both address it looks up by
// ACI and creates an ACI-only row; it never links the two.
func (m *Merger) FetchOrCreate(ctx context.Context, tx *store.WriteTx, addr ids.Address) (store.Recipient, error) {
	if aci, ok := addr.Aci(); ok {
		existing, err := tx.RecipientByAci(ctx, aci)
		if err != nil {
			return store.Recipient{}, fmt.Errorf("fetch or create: %w", err)
		}
		if existing != nil {
			return *existing, nil
		}
		return m.insert(ctx, tx, &store.Recipient{Aci: aci.Ptr()})
	}

	phone, ok := addr.Phone()
	if !ok {
		panic("recipient: fetch or create called without an identifier")
	}
	existing, err := tx.RecipientByPhone(ctx, phone)
	if err != nil {
		return store.Recipient{}, fmt.Errorf("fetch or create: %w", err)
	}
	if existing != nil {
		return *existing, nil
	}
	return m.insert(ctx, tx, &store.Recipient{Phone: phone.Ptr()})
}

// AssociatePni records that pni was issued for phone. The pni is moved off
// any other row holding it; the phone row is created if needed.
func (m *Merger) AssociatePni(ctx context.Context, tx *store.WriteTx, phone ids.E164, pni ids.Pni) (store.Recipient, error) {
	rec, err := m.FetchOrCreate(ctx, tx, ids.PhoneAddress(phone))
	if err != nil {
		return store.Recipient{}, err
	}
	if rec.Pni != nil && *rec.Pni == pni {
		return rec, nil
	}

	holder, err := tx.RecipientByPni(ctx, pni)
	if err != nil {
		return store.Recipient{}, fmt.Errorf("associate pni: %w", err)
	}
	if holder != nil {
		cleared := clone(*holder)
		cleared.Pni = nil
		if err := tx.UpdateRecipient(ctx, cleared); err != nil {
			return store.Recipient{}, fmt.Errorf("associate pni: clear %s: %w", holder.UniqueID, err)
		}
	}

	updated := clone(rec)
	updated.Pni = &pni
	if err := tx.UpdateRecipient(ctx, updated); err != nil {
		return store.Recipient{}, fmt.Errorf("associate pni: %w", err)
	}
	return updated, nil
}

func (m *Merger) mergeHighTrust(ctx context.Context, tx *store.WriteTx, aci ids.Aci, phone ids.E164) (store.Recipient, error) {
	aciRow, phoneRow, err := lookupPair(ctx, tx, aci, phone)
	if err != nil {
		return store.Recipient{}, err
	}

	if aciRow != nil && phoneRow != nil && aciRow.ID == phoneRow.ID {
		return *aciRow, nil
	}

	switch {
	case aciRow == nil && phoneRow == nil:
		rec, err := m.insert(ctx, tx, &store.Recipient{Aci: aci.Ptr(), Phone: phone.Ptr()})
		if err != nil {
			return store.Recipient{}, err
		}
		return rec, m.notify(ctx, tx, aci, nil, rec)

	case aciRow == nil:
		if phoneRow.Aci == nil {
			// Phone-only row: it becomes the ACI's row.
			updated := clone(*phoneRow)
			updated.Aci = aci.Ptr()
			if err := tx.UpdateRecipient(ctx, updated); err != nil {
				return store.Recipient{}, fmt.Errorf("merge high: attach aci: %w", err)
			}
			slog.Info("attached aci to phone-only recipient", "aci", aci, "phone", phone, "recipient", updated.UniqueID)
			return updated, m.notify(ctx, tx, aci, nil, updated)
		}

		pni, err := m.stealPhone(ctx, tx, *phoneRow)
		if err != nil {
			return store.Recipient{}, err
		}
		rec, err := m.insert(ctx, tx, &store.Recipient{Aci: aci.Ptr(), Phone: phone.Ptr(), Pni: pni})
		if err != nil {
			return store.Recipient{}, err
		}
		return rec, m.notify(ctx, tx, aci, nil, rec)

	default:
		old := clone(*aciRow)
		updated := clone(*aciRow)

		var pni *ids.Pni
		if phoneRow != nil {
			if phoneRow.Aci == nil {
				// Fold the phone-only row into the ACI row.
				if err := tx.DeleteRecipient(ctx, phoneRow.ID); err != nil {
					return store.Recipient{}, fmt.Errorf("merge high: fold phone row: %w", err)
				}
				updated.DeviceIDs = unionDeviceIDs(updated.DeviceIDs, phoneRow.DeviceIDs)
				pni = phoneRow.Pni
				slog.Info("folded phone-only recipient", "aci", aci, "phone", phone, "removed", phoneRow.UniqueID)
			} else {
				pni, err = m.stealPhone(ctx, tx, *phoneRow)
				if err != nil {
					return store.Recipient{}, err
				}
			}
		}

		if !ids.EqualE164(updated.Phone, phone.Ptr()) {
			// A pni belongs to the number it was issued with.
			updated.Pni = nil
		}
		updated.Phone = phone.Ptr()
		if pni != nil {
			updated.Pni = pni
		}
		if err := tx.UpdateRecipient(ctx, updated); err != nil {
			return store.Recipient{}, fmt.Errorf("merge high: set phone: %w", err)
		}
		return updated, m.notify(ctx, tx, aci, &old, updated)
	}
}

func (m *Merger) mergeLowTrust(ctx context.Context, tx *store.WriteTx, aci ids.Aci, phone ids.E164) (store.Recipient, error) {
	aciRow, phoneRow, err := lookupPair(ctx, tx, aci, phone)
	if err != nil {
		return store.Recipient{}, err
	}

	if aciRow != nil && phoneRow != nil && aciRow.ID == phoneRow.ID {
		return *aciRow, nil
	}

	if aciRow != nil && aciRow.Phone == nil && phoneRow == nil {
		old := clone(*aciRow)
		updated := clone(*aciRow)
		updated.Phone = phone.Ptr()
		if err := tx.UpdateRecipient(ctx, updated); err != nil {
			return store.Recipient{}, fmt.Errorf("merge low: attach phone: %w", err)
		}
		return updated, m.notify(ctx, tx, aci, &old, updated)
	}

	slog.Debug("low trust merge ignored phone number", "aci", aci, "phone", phone)
	return m.FetchOrCreate(ctx, tx, ids.AciAddress(aci))
}

// stealPhone clears the phone number (and its pni) from donor and returns
// the pni it carried.
func (m *Merger) stealPhone(ctx context.Context, tx *store.WriteTx, donor store.Recipient) (*ids.Pni, error) {
	updated := clone(donor)
	pni := updated.Pni
	updated.Phone = nil
	updated.Pni = nil
	if err := tx.UpdateRecipient(ctx, updated); err != nil {
		return nil, fmt.Errorf("steal phone from %s: %w", donor.UniqueID, err)
	}
	slog.Info("stole phone number", "donor", donor.UniqueID, "donor_aci", donor.Aci, "phone", donor.Phone)
	return pni, nil
}

func (m *Merger) insert(ctx context.Context, tx *store.WriteTx, rec *store.Recipient) (store.Recipient, error) {
	if err := tx.InsertRecipient(ctx, rec); err != nil {
		return store.Recipient{}, fmt.Errorf("create recipient %s: %w", rec.Address(), err)
	}
	slog.Debug("created recipient", "recipient", rec.UniqueID, "address", rec.Address().String())
	return *rec, nil
}

func (m *Merger) notify(ctx context.Context, tx *store.WriteTx, aci ids.Aci, old *store.Recipient, rec store.Recipient) error {
	event := MergedRecipient{
		Aci:              aci,
		NewPhone:         rec.Phone,
		IsLocalRecipient: m.local.ContainsAci(aci),
		OldRecipient:     old,
		NewRecipient:     rec,
	}
	if old != nil {
		event.OldPhone = old.Phone
	}

	slog.Info("learned association",
		"aci", aci,
		"old_phone", event.OldPhone,
		"new_phone", event.NewPhone,
		"local", event.IsLocalRecipient,
	)

	for _, l := range m.listeners {
		if err := l.DidLearnAssociation(ctx, tx, event); err != nil {
			return fmt.Errorf("association listener %T: %w", l, err)
		}
	}
	return nil
}

func lookupPair(ctx context.Context, tx *store.WriteTx, aci ids.Aci, phone ids.E164) (*store.Recipient, *store.Recipient, error) {
	aciRow, err := tx.RecipientByAci(ctx, aci)
	if err != nil {
		return nil, nil, fmt.Errorf("merge: %w", err)
	}
	phoneRow, err := tx.RecipientByPhone(ctx, phone)
	if err != nil {
		return nil, nil, fmt.Errorf("merge: %w", err)
	}
	return aciRow, phoneRow, nil
}

// clone copies r so mutations of the copy never reach a shared snapshot.
func clone(r store.Recipient) store.Recipient {
	out := r
	if r.Aci != nil {
		out.Aci = r.Aci.Ptr()
	}
	if r.Phone != nil {
		out.Phone = r.Phone.Ptr()
	}
	if r.Pni != nil {
		p := *r.Pni
		out.Pni = &p
	}
	if r.UnregisteredAt != nil {
		at := *r.UnregisteredAt
		out.UnregisteredAt = &at
	}
	out.DeviceIDs = slices.Clone(r.DeviceIDs)
	return out
}

func unionDeviceIDs(a, b []uint32) []uint32 {
	out := slices.Clone(a)
	for _, id := range b {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
