// Package team is the workshop domain service: users sign in, get a
// default profile on first sign-in, list each other, and create or join
// teams.
//
// All published state comes from three reactive bindings on one runtime:
// the auth state with the signed-in user's profile, the users listing and
// the teams listing. The listings only exist while someone is signed in.
package team
