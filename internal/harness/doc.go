// Package harness runs suite scenarios against an in-memory SQLite warehouse.
//
// A scenario pairs a suite file with a small data set and the statuses the
// compiled query must produce. The harness compiles the suite for SQLite,
// loads the data, executes the query, interprets the result and checks the
// expectations. It exercises compiler, warehouse and interpreter together,
// the same way the run command does.
//
// # Scenario Format
//
//	name: products_round_trip
//	description: "Null and pair checks on three records"
//	suite: ../suites/products.yaml
//	data:
//	  columns: [MATERIAL_NUMBER, A, B]
//	  rows:
//	    - [M1, null, b]
//	    - [M2, a, b]
//	expect:
//	  exp_e88b66_d3ab: {M1: FAIL, M2: PASS}
//	assertions:
//	  - type: unexpected_count
//	    id: derived_missing_basics
//	    count: 1
//	  - type: failed_records
//	    count: 1
//
// The suite path is relative to the scenario file. data.relation defaults to
// the suite's source relation.
//
// # Assertion Types
//
//   - unexpected_count: failing rows of a target, or failing records of a
//     derived column
//   - failed_records: records failing any status column
//   - list_members: the record keys selected by a derived list
//   - warning_contains: some interpreter or compiler warning contains text
//
// # Deterministic Output
//
// Result rows are ordered by record key before expectations are checked, and
// golden snapshots (golden/<scenario>.golden next to the scenario file) list
// status columns in query order.
package harness
