// Package harness runs recipient-merge scenarios written in YAML and
// compares what they did against assertions and golden snapshots.
//
// # Scenario Format
//
//	name: stolen-number
//	description: "u1 takes p2 from u2"
//	local:
//	  aci: u1
//	setup:
//	  recipients:
//	    - { aci: u1, phone: p1 }
//	    - { aci: u2, phone: p2 }
//	  threads:
//	    - { aci: u2, phone: p2, visible: true }
//	    - group: "01"
//	      visible: true
//	      members:
//	        - { aci: u2, phone: p2 }
//	steps:
//	  - { aci: u1, phone: p2, trust: high }
//	assertions:
//	  - type: recipients
//	    pairs: ["{u1, p2}", "{u2, null}"]
//	  - type: event_count
//	    count: 1
//
// Identifiers may be literal (a UUID, an E.164 number) or short aliases:
// u<n> for an ACI, p<n> for a phone number and n<n> for a PNI. Snapshots
// render identifiers back through the same aliases.
//
// # Assertion Types
//
//	recipients         exact "{aci, phone}" pairs in row order
//	members            roster pairs, sorted, of the group thread with id group
//	event_count        number of learned associations across all steps
//	thread_count       number of remaining threads
//	interaction_count  number of interactions of kind (all kinds if empty)
//
// # Golden Files
//
// RunWithGolden stores the snapshot under testdata/golden/<name>.golden.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness
