package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// ConfigOutput is the config command's payload.
type ConfigOutput struct {
	Database        string `json:"database"`
	AuthIssuer      string `json:"auth_issuer"`
	UsersCollection string `json:"users_collection"`
	TeamsCollection string `json:"teams_collection"`
	LogLevel        string `json:"log_level"`
	TokenTTL        string `json:"token_ttl"`

	yaml []byte
}

func (o ConfigOutput) Text() string { return strings.TrimRight(string(o.yaml), "\n") }

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration (secret redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config.Redacted()
			raw, err := cfg.Marshal()
			if err != nil {
				return WrapExitError(ExitFailure, "failed to render config", err)
			}
			return newFormatter(rootOpts, cmd).Success(ConfigOutput{
				Database:        cfg.Database,
				AuthIssuer:      cfg.AuthIssuer,
				UsersCollection: cfg.UsersCollection,
				TeamsCollection: cfg.TeamsCollection,
				LogLevel:        cfg.LogLevel,
				TokenTTL:        cfg.TokenTTL.String(),
				yaml:            raw,
			})
		},
	}
}
