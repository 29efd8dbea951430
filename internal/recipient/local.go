package recipient

import "github.com/roach88/recon/internal/ids"

// LocalIdentifiers holds the identifiers of the account this store belongs to.
type LocalIdentifiers struct {
	Aci   ids.Aci
	Phone *ids.E164
	Pni   *ids.Pni
}

// ContainsAci reports whether aci is the local account's ACI.
// A nil receiver contains nothing.
func (l *LocalIdentifiers) ContainsAci(aci ids.Aci) bool {
	return l != nil && l.Aci != "" && l.Aci == aci
}

// ContainsPhone reports whether phone is the local account's number.
func (l *LocalIdentifiers) ContainsPhone(phone ids.E164) bool {
	return l != nil && l.Phone != nil && *l.Phone == phone
}

// Contains reports whether any identifier of addr belongs to the local account.
func (l *LocalIdentifiers) Contains(addr ids.Address) bool {
	if aci, ok := addr.Aci(); ok && l.ContainsAci(aci) {
		return true
	}
	if phone, ok := addr.Phone(); ok && l.ContainsPhone(phone) {
		return true
	}
	return false
}
