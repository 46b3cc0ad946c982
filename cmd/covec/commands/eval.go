package commands

import (
	"fmt"

	"github.com/ezachrisen/cove/engine"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newEvalCommand() *cobra.Command {
	var (
		file     string
		data     string
		failures bool
		stop     bool
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate the constraints in a manifest against data",
		Long: `Compile a manifest and evaluate every root rule against a YAML data file.

The data file maps input names to values. Values are converted to the
types the rules declare; enum values may be given by name.`,
		Example: `  covec eval -f constraints.yaml -d order.yaml

  # Print only the failure messages
  covec eval -f constraints.yaml -d order.yaml --failures`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := loadProject(file)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			e, err := p.compile(ctx)
			if err != nil {
				printCompileErrors(out, err)
				return err
			}
			vals, err := loadData(data, p.elementTypes(), p.enums)
			if err != nil {
				return err
			}

			var opts []engine.EvalOption
			if stop {
				opts = append(opts, engine.StopIfParentNegative(true))
			}

			failed := 0
			for _, r := range p.rules {
				res, err := e.Eval(ctx, r.ID, vals, opts...)
				if err != nil {
					return err
				}
				if !res.Pass {
					failed++
				}
				if !failures {
					fmt.Fprintln(out, res.String())
					continue
				}
				for _, f := range res.Failures() {
					fmt.Fprintf(out, "%s: %s\n", f.Path, f.Message)
				}
			}
			if failed > 0 {
				return errors.Errorf("%d of %d rules failed", failed, len(p.rules))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "manifest file")
	cmd.Flags().StringVarP(&data, "data", "d", "", "YAML data file")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("data")
	cmd.Flags().BoolVar(&failures, "failures", false, "print only failure messages")
	cmd.Flags().BoolVar(&stop, "stop-if-parent-negative", false, "skip the children of failing rules")

	return cmd
}
