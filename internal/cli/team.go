package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/teamsync/internal/team"
)

// TeamCreateOutput is the team create command's payload.
type TeamCreateOutput struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (o TeamCreateOutput) Text() string { return o.ID }

// TeamJoinOutput is the team join command's payload.
type TeamJoinOutput struct {
	UID  string `json:"uid"`
	Team string `json:"team"`
}

func (o TeamJoinOutput) Text() string { return fmt.Sprintf("%s joined %s", o.UID, o.Team) }

// NewTeamCommand creates the team command group.
func NewTeamCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "team",
		Short: "Create or join teams",
	}
	cmd.PersistentFlags().StringVar(&opts.Token, "token", "", "ID token (defaults to $"+TokenEnv+")")

	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a team and join it",
		Long: `Create a team and join it. The name is trimmed; the new team ID is
printed.

Example:
  teamsync team create "Red Team" --token $TEAMSYNC_TOKEN`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.close()

			id, err := s.svc.CreateTeam(cmd.Context(), args[0])
			if err != nil {
				return teamError("failed to create team", err)
			}
			return newFormatter(rootOpts, cmd).Success(TeamCreateOutput{ID: id, Name: team.NormalizeName(args[0])})
		},
	}

	join := &cobra.Command{
		Use:   "join <team-id>",
		Short: "Join a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.svc.JoinTeam(cmd.Context(), args[0]); err != nil {
				return teamError("failed to join team", err)
			}
			return newFormatter(rootOpts, cmd).Success(TeamJoinOutput{UID: s.svc.Principal().UID, Team: args[0]})
		},
	}

	cmd.AddCommand(create, join)
	return cmd
}
