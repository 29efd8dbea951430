package blocking

import (
	"encoding/hex"
	"maps"
	"slices"

	"github.com/roach88/recon/internal/ids"
)

// GroupRecord is the last-known metadata of a blocked group.
type GroupRecord struct {
	Title    string `json:"title,omitempty"`
	Revision uint32 `json:"revision,omitempty"`
}

// State is the blocked-contacts snapshot.
//
// Mutations set the dirty bit when they change a set. The change token only
// moves when the snapshot is persisted.
type State struct {
	blockedAcis   map[ids.Aci]struct{}
	blockedPhones map[ids.E164]struct{}
	blockedGroups map[string]GroupRecord
	changeToken   uint64
	isDirty       bool
}

// NewState returns an empty, clean state at token 0.
func NewState() State {
	return State{
		blockedAcis:   map[ids.Aci]struct{}{},
		blockedPhones: map[ids.E164]struct{}{},
		blockedGroups: map[string]GroupRecord{},
	}
}

// ChangeToken returns the token of the last persisted snapshot.
func (s *State) ChangeToken() uint64 { return s.changeToken }

// IsDirty reports whether the state has unpersisted changes.
func (s *State) IsDirty() bool { return s.isDirty }

// AddAci blocks aci. Returns false if it was already blocked.
func (s *State) AddAci(aci ids.Aci) bool {
	if _, ok := s.blockedAcis[aci]; ok {
		return false
	}
	s.blockedAcis[aci] = struct{}{}
	s.isDirty = true
	return true
}

// RemoveAci unblocks aci. Returns false if it was not blocked.
func (s *State) RemoveAci(aci ids.Aci) bool {
	if _, ok := s.blockedAcis[aci]; !ok {
		return false
	}
	delete(s.blockedAcis, aci)
	s.isDirty = true
	return true
}

// AddPhone blocks phone. Returns false if it was already blocked.
func (s *State) AddPhone(phone ids.E164) bool {
	if _, ok := s.blockedPhones[phone]; ok {
		return false
	}
	s.blockedPhones[phone] = struct{}{}
	s.isDirty = true
	return true
}

// RemovePhone unblocks phone. Returns false if it was not blocked.
func (s *State) RemovePhone(phone ids.E164) bool {
	if _, ok := s.blockedPhones[phone]; !ok {
		return false
	}
	delete(s.blockedPhones, phone)
	s.isDirty = true
	return true
}

// AddGroup blocks groupID, storing record. Returns false if it was already
// blocked; the stored record is not replaced.
func (s *State) AddGroup(groupID []byte, record GroupRecord) bool {
	key := hex.EncodeToString(groupID)
	if _, ok := s.blockedGroups[key]; ok {
		return false
	}
	s.blockedGroups[key] = record
	s.isDirty = true
	return true
}

// RemoveGroup unblocks groupID. Returns false if it was not blocked.
func (s *State) RemoveGroup(groupID []byte) bool {
	key := hex.EncodeToString(groupID)
	if _, ok := s.blockedGroups[key]; !ok {
		return false
	}
	delete(s.blockedGroups, key)
	s.isDirty = true
	return true
}

// Replace swaps in new sets. The state becomes dirty only if they differ.
// Group records of already-blocked groups are kept.
func (s *State) Replace(acis []ids.Aci, phones []ids.E164, groupIDs [][]byte) bool {
	newAcis := make(map[ids.Aci]struct{}, len(acis))
	for _, a := range acis {
		newAcis[a] = struct{}{}
	}
	newPhones := make(map[ids.E164]struct{}, len(phones))
	for _, p := range phones {
		newPhones[p] = struct{}{}
	}
	newGroups := make(map[string]GroupRecord, len(groupIDs))
	for _, g := range groupIDs {
		key := hex.EncodeToString(g)
		newGroups[key] = s.blockedGroups[key]
	}

	if maps.Equal(newAcis, s.blockedAcis) &&
		maps.Equal(newPhones, s.blockedPhones) &&
		sameKeys(newGroups, s.blockedGroups) {
		return false
	}
	s.blockedAcis = newAcis
	s.blockedPhones = newPhones
	s.blockedGroups = newGroups
	s.isDirty = true
	return true
}

// IsAciBlocked reports whether aci is blocked.
func (s *State) IsAciBlocked(aci ids.Aci) bool {
	_, ok := s.blockedAcis[aci]
	return ok
}

// IsPhoneBlocked reports whether phone is blocked.
func (s *State) IsPhoneBlocked(phone ids.E164) bool {
	_, ok := s.blockedPhones[phone]
	return ok
}

// IsGroupBlocked reports whether groupID is blocked.
func (s *State) IsGroupBlocked(groupID []byte) bool {
	_, ok := s.blockedGroups[hex.EncodeToString(groupID)]
	return ok
}

// Acis returns the blocked ACIs, sorted.
func (s *State) Acis() []ids.Aci {
	return slices.Sorted(maps.Keys(s.blockedAcis))
}

// Phones returns the blocked phone numbers, sorted.
func (s *State) Phones() []ids.E164 {
	return slices.Sorted(maps.Keys(s.blockedPhones))
}

// GroupIDs returns the blocked group ids, sorted by hex encoding.
func (s *State) GroupIDs() [][]byte {
	keys := slices.Sorted(maps.Keys(s.blockedGroups))
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		id, err := hex.DecodeString(k)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Group returns the stored record for groupID.
func (s *State) Group(groupID []byte) (GroupRecord, bool) {
	r, ok := s.blockedGroups[hex.EncodeToString(groupID)]
	return r, ok
}

func (s *State) clone() State {
	return State{
		blockedAcis:   maps.Clone(s.blockedAcis),
		blockedPhones: maps.Clone(s.blockedPhones),
		blockedGroups: maps.Clone(s.blockedGroups),
		changeToken:   s.changeToken,
		isDirty:       s.isDirty,
	}
}

func sameKeys(a, b map[string]GroupRecord) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
