// Package recipient reconciles observed identifier associations into
// canonical recipient rows.
//
// A Merger receives an observation (trust level plus an ACI, a phone number
// or both) inside a store write transaction and applies the minimal set of
// row inserts, updates and deletes that leave the store consistent: no two
// rows share an ACI, no two rows share a phone number. When the observation
// teaches the store a new ACI/phone association, the Merger emits one
// MergedRecipient event to every registered Listener within the same
// transaction, so the cascade into threads, groups and profiles commits or
// rolls back with the merge itself.
package recipient
