// Package commands implements the covec command line.
package commands

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var verbose bool

// Execute runs the root command.
func Execute(ctx context.Context, version string) error {
	return newRootCommand(version).ExecuteContext(ctx)
}

func newRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "covec",
		Short: "Compile and evaluate Cove constraints",
		Long: `covec compiles the constraints declared in a YAML manifest.

Every sub-expression whose inputs are known while compiling is folded to
a constant; the rest is deferred to a native program that is evaluated
against data.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log compile and evaluation detail")

	root.AddCommand(newCompileCommand())
	root.AddCommand(newEvalCommand())
	root.AddCommand(newReplCommand())

	return root
}
