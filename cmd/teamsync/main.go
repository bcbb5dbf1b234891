// Command teamsync is the CLI for the team roster service.
package main

import (
	"context"
	"os"

	"github.com/roach88/teamsync/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	err := root.ExecuteContext(context.Background())
	if err != nil {
		// JSON errors go to stdout with the rest of the envelope.
		format, _ := root.PersistentFlags().GetString("format")
		f := &cli.OutputFormatter{Format: format, Writer: os.Stderr}
		if format == "json" {
			f.Writer = os.Stdout
		}
		_ = f.Report(err)
	}
	os.Exit(cli.GetExitCode(err))
}
