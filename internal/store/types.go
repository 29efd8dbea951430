package store

import (
	"time"

	"github.com/roach88/recon/internal/ids"
)

// Recipient is one canonical row of the recipients table.
//
// Invariant: no two rows share a non-nil Aci, Phone or Pni. A row may hold
// only one identifier (a "partial" row).
type Recipient struct {
	ID             int64
	UniqueID       string
	Aci            *ids.Aci
	Phone          *ids.E164
	Pni            *ids.Pni
	DeviceIDs      []uint32
	UnregisteredAt *time.Time
}

// Address returns the identifiers of r as a tagged variant.
// A row always holds at least one of Aci or Phone.
func (r Recipient) Address() ids.Address {
	addr, _ := ids.NewAddress(r.Aci, r.Phone)
	return addr
}

// IsRegistered reports whether r has no unregistration timestamp.
func (r Recipient) IsRegistered() bool {
	return r.UnregisteredAt == nil
}

// Thread is a conversation. Contact threads are keyed by identity; group
// threads carry a GroupID and no contact identity.
type Thread struct {
	ID              int64
	UniqueID        string
	ContactAci      *ids.Aci
	ContactPhone    *ids.E164
	GroupID         []byte
	ShouldBeVisible bool
	CreatedAt       time.Time
}

// IsGroup reports whether t is a group thread.
func (t Thread) IsGroup() bool {
	return t.GroupID != nil
}

// GroupMember is one member row of a group roster.
type GroupMember struct {
	ID                int64
	GroupThreadID     string
	Aci               *ids.Aci
	Phone             *ids.E164
	LastInteractionAt int64
}

// UserProfile holds profile data fetched for a recipient.
type UserProfile struct {
	ID         int64
	Aci        *ids.Aci
	Phone      *ids.E164
	ProfileKey []byte
	GivenName  string
	FamilyName string
}

// ThreadAssociatedData holds per-thread user settings.
type ThreadAssociatedData struct {
	ThreadUniqueID    string
	IsArchived        bool
	IsMarkedUnread    bool
	MutedUntil        uint64 // ms since epoch, 0 = not muted
	AudioPlaybackRate float64
}

// DefaultThreadAssociatedData returns the value used when no row exists.
func DefaultThreadAssociatedData(threadUniqueID string) ThreadAssociatedData {
	return ThreadAssociatedData{ThreadUniqueID: threadUniqueID, AudioPlaybackRate: 1}
}

// DisappearingMessagesConfiguration is the per-thread message timer.
type DisappearingMessagesConfiguration struct {
	ThreadUniqueID  string
	Enabled         bool
	DurationSeconds uint32
	TimerVersion    uint32
}

// DefaultDisappearingMessagesConfiguration returns a disabled timer at version 1.
func DefaultDisappearingMessagesConfiguration(threadUniqueID string) DisappearingMessagesConfiguration {
	return DisappearingMessagesConfiguration{ThreadUniqueID: threadUniqueID, TimerVersion: 1}
}

// InteractionKind names the type of a stored interaction.
type InteractionKind string

const (
	// InteractionPhoneNumberChanged records that a contact changed numbers.
	InteractionPhoneNumberChanged InteractionKind = "phone_number_changed"
	// InteractionThreadMerge records that two conversations were combined.
	InteractionThreadMerge InteractionKind = "thread_merge"
	// InteractionMessage is a regular message.
	InteractionMessage InteractionKind = "message"
)

// Interaction is a message or system event in a thread.
type Interaction struct {
	ID             int64
	UniqueID       string
	ThreadUniqueID string
	Kind           InteractionKind
	Body           string
	Timestamp      time.Time
}

// ThreadReplyInfo is the draft quoted-reply reference of a thread.
type ThreadReplyInfo struct {
	AuthorAci ids.Aci `json:"author"`
	Timestamp uint64  `json:"timestamp"`
}
