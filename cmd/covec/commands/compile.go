package commands

import (
	"fmt"
	"io"

	"github.com/ezachrisen/cove/compiler"
	"github.com/ezachrisen/cove/engine"
	"github.com/ezachrisen/cove/native"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newCompileCommand() *cobra.Command {
	var (
		file string
		tree bool
	)

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile the constraints in a manifest",
		Long: `Compile every constraint and message in a manifest.

All failures are reported together, ordered by rule path. On success the
rules are printed with their compiled programs.`,
		Example: `  # Compile and list the rules
  covec compile -f constraints.yaml

  # Also print the native tree of every deferred program
  covec compile -f constraints.yaml --tree`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(file)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := p.compile(cmd.Context()); err != nil {
				printCompileErrors(out, err)
				return err
			}
			for _, r := range p.rules {
				fmt.Fprintln(out, r.String())
				if tree {
					if err := printPrograms(out, r); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "manifest file")
	_ = cmd.MarkFlagRequired("file")
	cmd.Flags().BoolVar(&tree, "tree", false, "print the native tree of every deferred program")

	return cmd
}

func printCompileErrors(w io.Writer, err error) {
	var list compiler.ErrorList
	if errors.As(err, &list) {
		fmt.Fprintln(w, list.String())
	}
}

// printPrograms writes each rule's program: its value when constant,
// otherwise its native tree.
func printPrograms(w io.Writer, root *engine.Rule) error {
	return engine.ApplyToRule(root, func(r *engine.Rule) error {
		p := r.Program
		switch {
		case p == nil:
		case p.Constant():
			_, err := fmt.Fprintf(w, "%s = %s\n", r.ID, p.Value)
			return err
		default:
			_, err := fmt.Fprintf(w, "%s : %s\n%s\n", r.ID, p.Type, native.Tree(p.Native))
			return err
		}
		return nil
	})
}
