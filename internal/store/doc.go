// Package store provides SQLite-backed storage for recipients and the
// aggregates keyed by recipient identity.
//
// Tables:
//   - recipients: canonical rows, UNIQUE on aci, phone_number and pni
//   - threads: contact and group conversations (no identity uniqueness)
//   - group_members: group rosters, UNIQUE per (group, aci) and (group, phone)
//   - user_profiles: fetched profiles, UNIQUE on aci and phone_number
//   - thread_associated_data, disappearing_messages_configurations: 1:1 per thread
//   - interactions: messages and system events
//   - key_value: namespaced blobs (pinned threads, reply info, blocking state)
//
// # Transactions
//
// All access goes through Store.Read or Store.Write. The callback receives a
// ReadTx or WriteTx; returning an error from a Write callback rolls back
// every statement issued inside it. The pool holds a single connection, so
// transactions are serialized within a process and must not be nested.
//
// Lookups of a single row by identifier return (nil, nil) when no row
// matches.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes (e.g. an extension process)
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
