package team

import "github.com/roach88/teamsync/internal/backend"

// User is a profile document in the users collection, keyed by UID.
type User struct {
	UID      string `json:"uid"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoURL"`
	// Team is the ID of the joined team, empty if none.
	Team string `json:"team"`
}

// Team is a document in the teams collection. ID is the document ID and
// is not stored in the document body.
type Team struct {
	ID   string `json:"-"`
	Name string `json:"name"`
}

// AnonymousName is the profile name of principals without a display name.
const AnonymousName = "Anonymous"

// DefaultProfile is the profile written on a principal's first sign-in.
func DefaultProfile(p *backend.Principal) User {
	name := p.DisplayName
	if name == "" {
		name = AnonymousName
	}
	return User{
		UID:      p.UID,
		Name:     name,
		PhotoURL: p.PhotoURL,
		Team:     "",
	}
}
