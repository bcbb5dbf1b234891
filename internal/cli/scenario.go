package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/teamsync/internal/harness"
)

// ScenarioOutput is the scenario command's payload.
type ScenarioOutput struct {
	Name   string               `json:"name"`
	Pass   bool                 `json:"pass"`
	Trace  []harness.StateFrame `json:"trace"`
	Errors []string             `json:"errors,omitempty"`

	trace []byte
}

func (o ScenarioOutput) Text() string {
	status := "PASS"
	if !o.Pass {
		status = "FAIL"
	}
	return fmt.Sprintf("%s%s %s (%d steps)", o.trace, status, o.Name, len(o.Trace))
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario <file.yaml>",
		Short: "Run a scenario against an in-memory backend",
		Long: `Run a scenario file against a fresh in-memory store and print the
state trace.

Exit codes:
  0 - Scenario passed
  1 - A step or expectation failed
  2 - Command error (unreadable or invalid scenario)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario, err := harness.LoadScenario(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load scenario", err).WithErrCode(ErrCodeInvalidInput)
			}

			result, err := harness.Run(cmd.Context(), scenario)
			if err != nil {
				return WrapExitError(ExitFailure, "scenario did not run", err).WithErrCode(ErrCodeScenario)
			}
			trace, err := harness.MarshalTrace(scenario.Name, result)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to render trace", err)
			}

			f := newFormatter(rootOpts, cmd)
			out := ScenarioOutput{
				Name:   scenario.Name,
				Pass:   result.Pass,
				Trace:  result.Trace,
				Errors: result.Errors,
				trace:  trace,
			}
			if !rootOpts.Verbose {
				out.trace = nil
			}
			if err := f.Success(out); err != nil {
				return err
			}
			for _, msg := range result.Errors {
				f.VerboseLog("  %s", msg)
			}

			if !result.Pass {
				return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed: %d errors", scenario.Name, len(result.Errors))).
					WithErrCode(ErrCodeScenario)
			}
			return nil
		},
	}
	return cmd
}
