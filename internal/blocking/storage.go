package blocking

import (
	"context"
	"fmt"

	"github.com/roach88/recon/internal/ids"
	"github.com/roach88/recon/internal/store"
)

const (
	stateCollection  = "kOWSBlockingManager_BlockingManagerStateCollection"
	legacyCollection = "kOWSBlockingManager_BlockedPhoneNumbersCollection"

	blockedAcisKey           = "blockedAcis"
	blockedPhonesKey         = "blockedPhoneNumbers"
	blockedGroupsKey         = "blockedGroups"
	changeTokenKey           = "changeToken"
	lastSyncedChangeTokenKey = "lastSyncedChangeToken"

	legacyPhonesKey = "kOWSBlockingManager_BlockedPhoneNumbersKey"
	legacyAcisKey   = "kOWSBlockingManager_BlockedUUIDsKey"
	legacyGroupsKey = "kOWSBlockingManager_BlockedGroupMapKey"
)

var (
	stateKV  = store.NewKeyValueStore(stateCollection)
	legacyKV = store.NewKeyValueStore(legacyCollection)
)

// persistedState is what loadState returns.
type persistedState struct {
	state      State
	lastSynced uint64
	migrated   bool
}

// persistedChangeToken reads the token visible to tx. ok is false if the
// snapshot was never written in the current format.
func persistedChangeToken(ctx context.Context, tx *store.ReadTx) (token uint64, ok bool, err error) {
	ok, err = stateKV.Has(ctx, tx, changeTokenKey)
	if err != nil || !ok {
		return 0, ok, err
	}
	token, err = stateKV.GetUint64(ctx, tx, changeTokenKey)
	return token, true, err
}

// loadState reads the snapshot, falling back to the legacy keys when the
// current format is absent. A migrated state is dirty so the next write
// transaction persists it.
func loadState(ctx context.Context, tx *store.ReadTx) (persistedState, error) {
	token, ok, err := persistedChangeToken(ctx, tx)
	if err != nil {
		return persistedState{}, fmt.Errorf("load blocking state: %w", err)
	}
	if !ok {
		return loadLegacyState(ctx, tx)
	}

	s := NewState()
	s.changeToken = token

	var acis []ids.Aci
	if _, err := stateKV.GetJSON(ctx, tx, blockedAcisKey, &acis); err != nil {
		return persistedState{}, fmt.Errorf("load blocking state: %w", err)
	}
	var phones []ids.E164
	if _, err := stateKV.GetJSON(ctx, tx, blockedPhonesKey, &phones); err != nil {
		return persistedState{}, fmt.Errorf("load blocking state: %w", err)
	}
	groups := map[string]GroupRecord{}
	if _, err := stateKV.GetJSON(ctx, tx, blockedGroupsKey, &groups); err != nil {
		return persistedState{}, fmt.Errorf("load blocking state: %w", err)
	}
	lastSynced, err := stateKV.GetUint64(ctx, tx, lastSyncedChangeTokenKey)
	if err != nil {
		return persistedState{}, fmt.Errorf("load blocking state: %w", err)
	}

	for _, a := range acis {
		s.blockedAcis[a] = struct{}{}
	}
	for _, p := range phones {
		s.blockedPhones[p] = struct{}{}
	}
	for k, r := range groups {
		s.blockedGroups[k] = r
	}
	return persistedState{state: s, lastSynced: lastSynced}, nil
}

func loadLegacyState(ctx context.Context, tx *store.ReadTx) (persistedState, error) {
	s := NewState()

	var phones, acis []string
	hasPhones, err := legacyKV.GetJSON(ctx, tx, legacyPhonesKey, &phones)
	if err != nil {
		return persistedState{}, fmt.Errorf("load legacy blocking state: %w", err)
	}
	hasAcis, err := legacyKV.GetJSON(ctx, tx, legacyAcisKey, &acis)
	if err != nil {
		return persistedState{}, fmt.Errorf("load legacy blocking state: %w", err)
	}
	groups := map[string]GroupRecord{}
	hasGroups, err := legacyKV.GetJSON(ctx, tx, legacyGroupsKey, &groups)
	if err != nil {
		return persistedState{}, fmt.Errorf("load legacy blocking state: %w", err)
	}

	if !hasPhones && !hasAcis && !hasGroups {
		return persistedState{state: s}, nil
	}

	// Legacy entries were not validated when written; skip what no longer parses.
	for _, raw := range phones {
		if p, err := ids.ParseE164(raw); err == nil {
			s.blockedPhones[p] = struct{}{}
		}
	}
	for _, raw := range acis {
		if a, err := ids.ParseAci(raw); err == nil {
			s.blockedAcis[a] = struct{}{}
		}
	}
	for k, r := range groups {
		s.blockedGroups[k] = r
	}
	s.isDirty = true
	return persistedState{state: s, migrated: true}, nil
}

// writeState persists the sets of s with the given token.
func writeState(ctx context.Context, tx *store.WriteTx, s *State, token uint64) error {
	if err := stateKV.SetJSON(ctx, tx, blockedAcisKey, s.Acis()); err != nil {
		return err
	}
	if err := stateKV.SetJSON(ctx, tx, blockedPhonesKey, s.Phones()); err != nil {
		return err
	}
	if err := stateKV.SetJSON(ctx, tx, blockedGroupsKey, s.blockedGroups); err != nil {
		return err
	}
	return stateKV.SetUint64(ctx, tx, changeTokenKey, token)
}

func writeLastSynced(ctx context.Context, tx *store.WriteTx, token uint64) error {
	return stateKV.SetUint64(ctx, tx, lastSyncedChangeTokenKey, token)
}
