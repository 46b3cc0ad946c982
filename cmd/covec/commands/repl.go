package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/ezachrisen/cove"
	"github.com/ezachrisen/cove/compiler"
	"github.com/ezachrisen/cove/enums"
	"github.com/ezachrisen/cove/native"
	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const historyFile = ".covec_history"

func newReplCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Compile expressions interactively",
		Long: `Compile expressions against ad hoc bindings and show what folds.

  let x: int        bind x to a runtime value of type int
  let y = x + 1     bind y to an expression; constants fold into later lines
  :env              list the bindings
  :tree             toggle printing the native tree of deferred programs
  :quit             leave`,
		Example: `  covec repl
  covec repl -f constraints.yaml   # use the manifest's enums`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := enums.New()
			if file != "" {
				p, err := loadProject(file)
				if err != nil {
					return err
				}
				reg = p.enums
			}
			s, err := newSession(reg)
			if err != nil {
				return err
			}
			return repl(cmd.Context(), s, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "manifest whose enums are known")

	return cmd
}

func repl(ctx context.Context, s *session, out io.Writer) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	var histPath string
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}
	defer func() {
		if histPath == "" {
			return
		}
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for ctx.Err() == nil {
		line, err := ln.Prompt("cove> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) == ":quit" {
			return nil
		}
		ln.AppendHistory(line)

		res, err := s.exec(line)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			continue
		}
		if res != "" {
			fmt.Fprintln(out, res)
		}
	}
	return nil
}

// session holds the bindings of a repl.
type session struct {
	c    *compiler.Compiler
	env  *compiler.Env
	tree bool
}

func newSession(reg *enums.Registry) (*session, error) {
	c, err := compiler.New(compiler.WithEnums(reg), compiler.WithLogger(log.Logger))
	if err != nil {
		return nil, err
	}
	return &session{c: c}, nil
}

// exec runs one line and returns what to print.
func (s *session) exec(line string) (string, error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return "", nil
	case line == ":env":
		return s.bindings(), nil
	case line == ":tree":
		s.tree = !s.tree
		if s.tree {
			return "tree on", nil
		}
		return "tree off", nil
	case strings.HasPrefix(line, "let "):
		return s.let(strings.TrimSpace(strings.TrimPrefix(line, "let ")))
	}

	p, err := s.c.Compile(line, s.env)
	if err != nil {
		return "", err
	}
	return s.show(p), nil
}

// let binds "name: type" or "name = expr".
func (s *session) let(def string) (string, error) {
	if name, typ, ok := strings.Cut(def, ":"); ok && !strings.Contains(name, "=") {
		name = strings.TrimSpace(name)
		if !identifier(name) {
			return "", errors.Errorf("let: %q is not an identifier", name)
		}
		t, err := cove.ParseType(typ)
		if err != nil {
			return "", errors.Wrap(err, "let")
		}
		s.env = s.env.Type(name, t)
		return fmt.Sprintf("%s : %s", name, t), nil
	}

	name, src, ok := strings.Cut(def, "=")
	if !ok {
		return "", errors.New("let: want name: type or name = expression")
	}
	name = strings.TrimSpace(name)
	if !identifier(name) {
		return "", errors.Errorf("let: %q is not an identifier", name)
	}
	p, err := s.c.Compile(src, s.env)
	if err != nil {
		return "", err
	}
	if p.Constant() {
		s.env = s.env.Const(name, p.Value)
	} else {
		s.env = s.env.Type(name, p.Type)
	}
	return name + " = " + s.show(p), nil
}

func (s *session) show(p *compiler.Program) string {
	if p.Constant() {
		return fmt.Sprintf("%s : %s", p.Value, p.Type)
	}
	free := make([]string, len(p.Free))
	for i, b := range p.Free {
		free[i] = b.Name
	}
	out := fmt.Sprintf("%s : %s  (reads %s)", native.Format(p.Native), p.Type, strings.Join(free, ", "))
	if s.tree {
		out += "\n" + native.Tree(p.Native)
	}
	return out
}

func (s *session) bindings() string {
	names := s.env.Names()
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, n := range names {
		b, _ := s.env.Lookup(n)
		if b.Constant {
			lines = append(lines, fmt.Sprintf("%s = %s", n, b.Value))
		} else {
			lines = append(lines, fmt.Sprintf("%s : %s", n, b.Type))
		}
	}
	return strings.Join(lines, "\n")
}

func identifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r != '_' && !unicode.IsLetter(r) && (i == 0 || !unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}
