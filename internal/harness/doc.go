// Package harness runs reconciliation scenarios written in YAML.
//
// A scenario supplies two record sets, optional pipeline settings and the
// outcome it expects. The harness runs the full pipeline (build, compare,
// propose, apply) against a fresh in-memory SQLite store and checks the
// outcome.
//
// # Scenario Format
//
//	name: ann_anne
//	description: "A one-letter edit stays below the auto-resolve bar"
//	a:
//	  records:
//	    - {id: 1, name: Ann}
//	b:
//	  records:
//	    - {id: 1, name: Anne}
//	resolve:
//	  strategy: balanced
//	expect:
//	  row_changes: 1
//	  actions: {manual: 1}
//	  applied: true
//	assertions:
//	  - type: row_change
//	    key: [1]
//	    field: name
//	    kind: modified
//	  - type: final_state
//	    where: {id: 1}
//	    expect: {name: Ann}
//
// Either side may name a source instead of inline records; relative
// locations resolve against the scenario file's directory. An optional
// target section seeds the store dataset with records other than A's.
//
// # Assertion Types
//
//   - schema_change: a schema entry for field with the given kind exists
//   - row_change: a row entry for key (and field) with the given kind exists
//   - action: the plan resolves key (and field) with the given action kind
//   - action_status: the apply result for key (and field) has the given status
//   - final_state: exactly one final record matches where, and it holds expect
//   - final_count: the final dataset holds count records
//
// # Deterministic Testing
//
// Every run uses a fixed clock (testutil.Epoch), sequential run and backup
// ids and an in-memory store, so RunWithGolden snapshots are byte-identical
// across runs.
package harness
