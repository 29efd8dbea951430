// Package blocking keeps the set of blocked ACIs, phone numbers and groups.
//
// The snapshot lives in the key-value store under a change token. Each
// mutation persists immediately inside the caller's write transaction and
// advances the token; readers in other processes notice the larger token and
// reload. Changes made on this device are handed to a StorageServiceNotifier
// once their transaction commits.
package blocking
