// Package harness runs YAML conformance scenarios against the engine.
//
// # Scenario Format
//
//	name: capacity_one
//	description: "The second registration for a single seat fails"
//	refund_on_accept: false
//	setup:
//	  - op: init
//	    as: "@principal"
//	    args: { owner: "@principal" }
//	flow:
//	  - op: register_to_course
//	    as: "@alice"
//	    args: { course: Algorithms }
//	    expect:
//	      case: ok
//	  - op: register_to_course
//	    as: "@bob"
//	    args: { course: Algorithms }
//	    expect:
//	      case: CourseCapacityFull
//	assertions:
//	  - type: trace_count
//	    op: register_to_course
//	    count: 2
//	  - type: final_state
//	    table: courses
//	    key: Algorithms
//	    expect: { roster: ["@alice"] }
//
// Accounts are handles ("@alice") or hex ids; courses are names or hex ids.
// Results and stored records are shown with the same labels the scenario
// used, so expectations never spell out hashes.
//
// # Assertion Types
//
//   - trace_contains: an op appears in the trace with matching args
//   - trace_order: ops appear in the given order
//   - trace_count: an op is invoked exactly N times
//   - final_state: a stored record matches (or is absent)
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory SQLite store with a manual
// clock (testutil.Epoch unless the scenario sets start) and sequential op
// ids, so traces are identical across runs and can be compared against
// golden files.
package harness
