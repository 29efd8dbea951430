// Package cascade propagates learned recipient associations into the
// aggregates keyed by recipient identity.
//
// Each type here implements recipient.Listener and owns one aggregate
// family: contact threads (ThreadMerger and its ThreadPairMergers), group
// rosters (GroupMemberDeduplicator), info messages
// (PhoneNumberChangeNotifier), profiles (ProfileMerger) and the author-merge
// version (AuthorMergeListener). Listeners run inside the merge's write
// transaction and never depend on each other's ordering.
package cascade
