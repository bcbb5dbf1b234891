package team

import "errors"

var (
	// ErrInvalidTeamName is returned for a blank team name.
	ErrInvalidTeamName = errors.New("team name must not be empty")

	// ErrInvalidTeamID is returned when joining without a team ID.
	ErrInvalidTeamID = errors.New("team id must not be empty")
)
