package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// WhoamiOutput is the whoami command's payload.
type WhoamiOutput struct {
	UID       string `json:"uid"`
	Name      string `json:"name"`
	PhotoURL  string `json:"photoURL,omitempty"`
	Team      string `json:"team,omitempty"`
	Email     string `json:"email,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Anonymous bool   `json:"anonymous,omitempty"`
}

func (o WhoamiOutput) Text() string {
	team := o.Team
	if team == "" {
		team = "-"
	}
	return fmt.Sprintf("%s %s (team: %s)", o.UID, o.Name, team)
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Sign in and print your profile",
		Long: `Sign in with an ID token and print the profile. A first sign-in
creates the default profile.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.close()

			p := s.svc.Principal()
			u := s.svc.CurrentUser()
			if p == nil || u == nil {
				return NewExitError(ExitFailure, "no profile after sign in")
			}
			return newFormatter(rootOpts, cmd).Success(WhoamiOutput{
				UID:       p.UID,
				Name:      u.Name,
				PhotoURL:  u.PhotoURL,
				Team:      u.Team,
				Email:     p.Email,
				Provider:  p.ProviderID,
				Anonymous: p.IsAnonymous,
			})
		},
	}
	opts.addFlags(cmd)
	return cmd
}
