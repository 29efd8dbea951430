package blocking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/recon/internal/ids"
	"github.com/roach88/recon/internal/store"
)

// StorageServiceNotifier is told about locally initiated block changes so
// they can be backed up. It is called after the change commits.
type StorageServiceNotifier interface {
	RecordPendingUpdates(addresses []ids.Address, groupIDs [][]byte)
}

type noopNotifier struct{}

func (noopNotifier) RecordPendingUpdates([]ids.Address, [][]byte) {}

// Manager is the process-wide blocked-contacts cache.
//
// The in-memory State is reloaded whenever the change token persisted by
// another Manager (possibly in another process) is ahead of the local one.
// Every accessor reloads first. All methods are safe for concurrent use.
type Manager struct {
	notifier StorageServiceNotifier

	mu         sync.Mutex
	state      State
	loaded     bool
	lastSynced uint64
	migrated   bool
}

// NewManager returns an unloaded Manager. A nil notifier is ignored.
func NewManager(notifier StorageServiceNotifier) *Manager {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Manager{notifier: notifier, state: NewState()}
}

// ReloadIfNecessary loads the persisted snapshot if none is loaded yet or if
// the persisted change token exceeds the in-memory one. Otherwise it is a
// no-op.
func (m *Manager) ReloadIfNecessary(ctx context.Context, tx *store.ReadTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reloadIfNecessaryLocked(ctx, tx)
}

func (m *Manager) reloadIfNecessaryLocked(ctx context.Context, tx *store.ReadTx) error {
	if m.loaded {
		token, ok, err := persistedChangeToken(ctx, tx)
		if err != nil {
			return fmt.Errorf("reload blocking state: %w", err)
		}
		if !ok || token <= m.state.changeToken {
			return nil
		}
		// Only a legacy migration leaves the cache dirty between calls, and
		// whoever persisted the newer snapshot migrated the same keys.
		if m.state.isDirty {
			slog.Warn("discarding unpersisted blocking state for newer snapshot",
				"memory_token", m.state.changeToken,
				"persisted_token", token,
			)
		}
	}

	loaded, err := loadState(ctx, tx)
	if err != nil {
		return err
	}
	slog.Debug("loaded blocking state",
		"token", loaded.state.changeToken,
		"acis", len(loaded.state.blockedAcis),
		"phones", len(loaded.state.blockedPhones),
		"groups", len(loaded.state.blockedGroups),
		"migrated", loaded.migrated,
	)
	m.state = loaded.state
	m.lastSynced = loaded.lastSynced
	m.migrated = m.migrated || loaded.migrated
	m.loaded = true
	return nil
}

// PersistIfNecessary writes the snapshot if it is dirty, advancing the
// change token past both the in-memory and the persisted value. Returns
// whether it wrote.
func (m *Manager) PersistIfNecessary(ctx context.Context, tx *store.WriteTx) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.reloadIfNecessaryLocked(ctx, tx.Reader()); err != nil {
		return false, err
	}
	return m.persistIfNecessaryLocked(ctx, tx)
}

func (m *Manager) persistIfNecessaryLocked(ctx context.Context, tx *store.WriteTx) (bool, error) {
	if !m.state.isDirty {
		return false, nil
	}
	persisted, _, err := persistedChangeToken(ctx, tx.Reader())
	if err != nil {
		return false, fmt.Errorf("persist blocking state: %w", err)
	}
	token := max(m.state.changeToken, persisted) + 1
	if err := writeState(ctx, tx, &m.state, token); err != nil {
		return false, fmt.Errorf("persist blocking state: %w", err)
	}
	if m.migrated {
		if err := legacyKV.RemoveAll(ctx, tx); err != nil {
			return false, fmt.Errorf("remove legacy blocking state: %w", err)
		}
	}

	m.state.changeToken = token
	m.state.isDirty = false
	tx.AddRollbackHook(m.invalidate)
	slog.Info("persisted blocking state", "token", token)
	return true, nil
}

// invalidate forces the next access to reload from the store. Used when a
// transaction that mutated the cache rolls back.
func (m *Manager) invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = false
	m.state = NewState()
}

// mutate applies fn to the loaded state and persists it if fn changed it.
// Locally initiated changes are reported to the notifier after commit.
func (m *Manager) mutate(ctx context.Context, tx *store.WriteTx, local bool, addresses []ids.Address, groupIDs [][]byte, fn func(s *State) bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.reloadIfNecessaryLocked(ctx, tx.Reader()); err != nil {
		return false, err
	}
	if !fn(&m.state) {
		return false, nil
	}
	tx.AddRollbackHook(m.invalidate)
	if _, err := m.persistIfNecessaryLocked(ctx, tx); err != nil {
		return false, err
	}
	if local {
		notifier := m.notifier
		tx.AddCommitHook(func() { notifier.RecordPendingUpdates(addresses, groupIDs) })
	}
	return true, nil
}

// AddBlockedAci blocks aci. Returns whether the set changed.
func (m *Manager) AddBlockedAci(ctx context.Context, tx *store.WriteTx, aci ids.Aci, locallyInitiated bool) (bool, error) {
	return m.mutate(ctx, tx, locallyInitiated, []ids.Address{ids.AciAddress(aci)}, nil, func(s *State) bool {
		return s.AddAci(aci)
	})
}

// RemoveBlockedAci unblocks aci. Returns whether something was removed.
func (m *Manager) RemoveBlockedAci(ctx context.Context, tx *store.WriteTx, aci ids.Aci, locallyInitiated bool) (bool, error) {
	return m.mutate(ctx, tx, locallyInitiated, []ids.Address{ids.AciAddress(aci)}, nil, func(s *State) bool {
		return s.RemoveAci(aci)
	})
}

// AddBlockedPhone blocks phone. Returns whether the set changed.
func (m *Manager) AddBlockedPhone(ctx context.Context, tx *store.WriteTx, phone ids.E164, locallyInitiated bool) (bool, error) {
	return m.mutate(ctx, tx, locallyInitiated, []ids.Address{ids.PhoneAddress(phone)}, nil, func(s *State) bool {
		return s.AddPhone(phone)
	})
}

// RemoveBlockedPhone unblocks phone. Returns whether something was removed.
func (m *Manager) RemoveBlockedPhone(ctx context.Context, tx *store.WriteTx, phone ids.E164, locallyInitiated bool) (bool, error) {
	return m.mutate(ctx, tx, locallyInitiated, []ids.Address{ids.PhoneAddress(phone)}, nil, func(s *State) bool {
		return s.RemovePhone(phone)
	})
}

// AddBlockedAddress blocks every identifier of addr.
func (m *Manager) AddBlockedAddress(ctx context.Context, tx *store.WriteTx, addr ids.Address, locallyInitiated bool) (bool, error) {
	return m.mutate(ctx, tx, locallyInitiated, []ids.Address{addr}, nil, func(s *State) bool {
		changed := false
		if aci, ok := addr.Aci(); ok {
			changed = s.AddAci(aci) || changed
		}
		if phone, ok := addr.Phone(); ok {
			changed = s.AddPhone(phone) || changed
		}
		return changed
	})
}

// RemoveBlockedAddress unblocks every identifier of addr.
func (m *Manager) RemoveBlockedAddress(ctx context.Context, tx *store.WriteTx, addr ids.Address, locallyInitiated bool) (bool, error) {
	return m.mutate(ctx, tx, locallyInitiated, []ids.Address{addr}, nil, func(s *State) bool {
		changed := false
		if aci, ok := addr.Aci(); ok {
			changed = s.RemoveAci(aci) || changed
		}
		if phone, ok := addr.Phone(); ok {
			changed = s.RemovePhone(phone) || changed
		}
		return changed
	})
}

// AddBlockedGroup blocks groupID. Returns whether the set changed.
func (m *Manager) AddBlockedGroup(ctx context.Context, tx *store.WriteTx, groupID []byte, record GroupRecord, locallyInitiated bool) (bool, error) {
	return m.mutate(ctx, tx, locallyInitiated, nil, [][]byte{groupID}, func(s *State) bool {
		return s.AddGroup(groupID, record)
	})
}

// RemoveBlockedGroup unblocks groupID. Returns whether something was removed.
func (m *Manager) RemoveBlockedGroup(ctx context.Context, tx *store.WriteTx, groupID []byte, locallyInitiated bool) (bool, error) {
	return m.mutate(ctx, tx, locallyInitiated, nil, [][]byte{groupID}, func(s *State) bool {
		return s.RemoveGroup(groupID)
	})
}

// ProcessIncomingSync replaces the blocked sets with those sent by a linked
// device. Afterwards both devices agree, so the last-synced token is set to
// the current token. Returns whether the sets changed.
func (m *Manager) ProcessIncomingSync(ctx context.Context, tx *store.WriteTx, acis []ids.Aci, phones []ids.E164, groupIDs [][]byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.reloadIfNecessaryLocked(ctx, tx.Reader()); err != nil {
		return false, err
	}
	changed := m.state.Replace(acis, phones, groupIDs)
	tx.AddRollbackHook(m.invalidate)
	if _, err := m.persistIfNecessaryLocked(ctx, tx); err != nil {
		return false, err
	}
	if err := writeLastSynced(ctx, tx, m.state.changeToken); err != nil {
		return false, fmt.Errorf("process incoming sync: %w", err)
	}
	m.lastSynced = m.state.changeToken
	m.migrated = false
	slog.Info("processed incoming block sync", "changed", changed, "token", m.state.changeToken)
	return changed, nil
}

// NeedsSync reports whether linked devices must be sent the blocked sets:
// the snapshot changed since the last sync, or it was migrated from the
// legacy format.
func (m *Manager) NeedsSync(ctx context.Context, tx *store.ReadTx) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.reloadIfNecessaryLocked(ctx, tx); err != nil {
		return false, err
	}
	return m.state.changeToken != m.lastSynced || m.migrated, nil
}

// SyncSnapshot is the payload for an outbound sync message.
type SyncSnapshot struct {
	Acis        []ids.Aci
	Phones      []ids.E164
	GroupIDs    [][]byte
	ChangeToken uint64
}

// Snapshot persists pending changes and returns the sets to send.
func (m *Manager) Snapshot(ctx context.Context, tx *store.WriteTx) (SyncSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.reloadIfNecessaryLocked(ctx, tx.Reader()); err != nil {
		return SyncSnapshot{}, err
	}
	if _, err := m.persistIfNecessaryLocked(ctx, tx); err != nil {
		return SyncSnapshot{}, err
	}
	return SyncSnapshot{
		Acis:        m.state.Acis(),
		Phones:      m.state.Phones(),
		GroupIDs:    m.state.GroupIDs(),
		ChangeToken: m.state.changeToken,
	}, nil
}

// DidSendSync records that linked devices received the snapshot at token.
func (m *Manager) DidSendSync(ctx context.Context, tx *store.WriteTx, token uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := writeLastSynced(ctx, tx, token); err != nil {
		return fmt.Errorf("record sent sync: %w", err)
	}
	m.lastSynced = token
	m.migrated = false
	tx.AddRollbackHook(m.invalidate)
	return nil
}

// IsRecipientBlocked reports whether any identifier of addr is blocked.
func (m *Manager) IsRecipientBlocked(ctx context.Context, tx *store.ReadTx, addr ids.Address) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.reloadIfNecessaryLocked(ctx, tx); err != nil {
		return false, err
	}
	if aci, ok := addr.Aci(); ok && m.state.IsAciBlocked(aci) {
		return true, nil
	}
	if phone, ok := addr.Phone(); ok && m.state.IsPhoneBlocked(phone) {
		return true, nil
	}
	return false, nil
}

// IsGroupBlocked reports whether groupID is blocked.
func (m *Manager) IsGroupBlocked(ctx context.Context, tx *store.ReadTx, groupID []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.reloadIfNecessaryLocked(ctx, tx); err != nil {
		return false, err
	}
	return m.state.IsGroupBlocked(groupID), nil
}

// State returns a copy of the current snapshot after reloading.
func (m *Manager) State(ctx context.Context, tx *store.ReadTx) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.reloadIfNecessaryLocked(ctx, tx); err != nil {
		return State{}, err
	}
	return m.state.clone(), nil
}
