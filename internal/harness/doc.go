// Package harness runs fan-out scenarios against CUE-declared host kinds.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: where_inplace
//	description: "where in place rebinds every array"
//	specs:
//	  - particles.cue
//	run_id: fixed-run        # optional, makes step ids reproducible
//	host:
//	  kind: Particles
//	  arrays: { p1: [0, 1, 2, 3], p2: [1, 2, 3, 4] }
//	  meta: { units: m }
//	steps:
//	  - op: where
//	    inplace: accessor
//	    mask: [true, false, true, false]
//	    expect:
//	      same_as: host
//	      arrays: { p1: [0, 2], p2: [1, 3] }
//	      inplace_after: false
//	  - op: at
//	    index: [1]
//	    expect:
//	      record: { p1: 2, p2: 3 }
//	assertions:
//	  - type: trace_count
//	    op: where
//	    count: 1
//
// # Steps
//
// Each step runs one op on a binding (on, default "host") and may bind the
// returned host under a new name (as). The ops are where, index_by,
// slice_by, at, copy, sever, qsort, qsort_on, clip_on, set_attributes,
// set_item and inspect. inplace selects the write mode for the step:
// "accessor" writes through the attribute setters, "store" copies into the
// existing storage.
//
// Errors are classified by ErrorCode; a step that sets expect.error must
// fail with that code.
//
// # Assertion Types
//
//   - trace_contains: some step matches op (and on/outcome if given)
//   - trace_order: ops first appear in the given order
//   - trace_count: exactly count recorded steps match, counted in the store
//   - final_state: a binding's columns after the last step
//
// # Deterministic Testing
//
// Step numbers come from testutil.StepClock and snapshots are canonical
// JSON, so the trace of a scenario is byte-identical across runs and can be
// compared with golden files. Step ids additionally depend on the run id;
// set run_id to make them reproducible too.
package harness
