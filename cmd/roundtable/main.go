// Command roundtable runs multi-agent discussions from the command line and
// serves the HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// NewRootCommand assembles the command tree.
func NewRootCommand() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "roundtable",
		Short:         "Multi-agent round table discussions",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before reading the environment")

	cmd.AddCommand(
		newRunCommand(&envFile),
		newValidateCommand(&envFile),
		newTemplatesCommand(&envFile),
		newServeCommand(&envFile),
	)

	return cmd
}
