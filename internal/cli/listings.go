package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/teamsync/internal/team"
)

// UsersOutput is the users command's payload.
type UsersOutput struct {
	Users []team.User `json:"users"`
}

func (o UsersOutput) Text() string {
	if len(o.Users) == 0 {
		return "no users"
	}
	var sb strings.Builder
	for i, u := range o.Users {
		if i > 0 {
			sb.WriteByte('\n')
		}
		t := u.Team
		if t == "" {
			t = "-"
		}
		fmt.Fprintf(&sb, "%s\t%s\t%s", u.UID, u.Name, t)
	}
	return sb.String()
}

// TeamsOutput is the teams command's payload.
type TeamsOutput struct {
	Teams []TeamEntry `json:"teams"`
}

// TeamEntry is a team with its document ID.
type TeamEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (o TeamsOutput) Text() string {
	if len(o.Teams) == 0 {
		return "no teams"
	}
	var sb strings.Builder
	for i, t := range o.Teams {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s\t%s", t.ID, t.Name)
	}
	return sb.String()
}

func teamEntries(teams []team.Team) []TeamEntry {
	out := make([]TeamEntry, 0, len(teams))
	for _, t := range teams {
		out = append(out, TeamEntry{ID: t.ID, Name: t.Name})
	}
	return out
}

func usersOrEmpty(users []team.User) []team.User {
	if users == nil {
		return []team.User{}
	}
	return users
}

// NewUsersCommand creates the users command.
func NewUsersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.close()
			return newFormatter(rootOpts, cmd).Success(UsersOutput{Users: usersOrEmpty(s.svc.Users())})
		},
	}
	opts.addFlags(cmd)
	return cmd
}

// NewTeamsCommand creates the teams command.
func NewTeamsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "teams",
		Short: "List teams by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.close()
			return newFormatter(rootOpts, cmd).Success(TeamsOutput{Teams: teamEntries(s.svc.Teams())})
		},
	}
	opts.addFlags(cmd)
	return cmd
}
