// Package ids defines recipient identifiers and the observation vocabulary
// used by the merger.
//
// A recipient is known by up to two independently sourced identifiers:
//   - Aci: the stable account identifier
//   - E164: the phone number
//
// Address is a tagged variant over {aci-only, phone-only, both}. The merge
// decision table switches on Address.Kind rather than testing two nullable
// fields, so every combination is handled explicitly.
//
// Pni (phone number identity) travels with a phone number: when a number
// moves to another account, its Pni moves with it.
package ids
