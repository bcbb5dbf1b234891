// Package harness runs teamsync scenarios end to end against an in-memory
// store and local auth.
//
// A scenario is a YAML list of steps (sign in, sign out, create or join a
// team, expect). After every step the harness settles the runtime and the
// store, then records a StateFrame with what the service publishes. The
// resulting trace is deterministic: document IDs, anonymous UIDs and the
// clock are fixed per run, so traces can be compared with golden files.
//
// Scenario files look like:
//
//	name: create-and-join
//	description: Ann creates a team, Bob joins it
//	steps:
//	  - action: sign_in
//	    uid: u1
//	    name: Ann
//	  - action: create_team
//	    name: Red
//	  - action: expect
//	    expect:
//	      team: $last_team
//	      teams: [Red]
package harness
