// Package harness runs flow scenarios against a fresh token table.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: bitcoin_value_flow
//	description: "What this scenario validates"
//	table: crypto_values          # optional
//	not_found: return_not_found   # optional: fail_fast | return_not_found
//	unique_keys: false            # optional
//	normalize_keys: false         # optional
//	steps:
//	  - action: add
//	    token: bitcoin
//	    value: 7000
//	  - action: query
//	    token: bitcoin
//	    expect:
//	      value: 7000
//	  - action: query
//	    token: dogecoin
//	    expect:
//	      error: not_found
//	assertions:
//	  - type: final_state
//	    token: bitcoin
//	    value: 7000
//	  - type: row_count
//	    token: bitcoin
//	    count: 1
//
// A step without expect must succeed. Error kinds are not_found,
// duplicate_key, storage and error (anything else).
//
// # Assertion Types
//
//   - final_state: the token reads as value
//   - row_count: the token has exactly count rows
//
// # Deterministic Testing
//
// All scenarios execute with a deterministic clock and flow IDs
// (testutil.DeterministicClock, testutil.SequentialIDGenerator) in an
// in-memory SQLite database, so the same scenario always produces a
// byte-identical trace for golden comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/bitcoin.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
