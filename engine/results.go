package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ezachrisen/cove/value"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Result of evaluating a rule.
type Result struct {
	// The Rule that was evaluated
	Rule *Rule

	// Path of rule IDs from the root, separated by /.
	Path string

	// Whether the rule is true.
	// The default is TRUE.
	// Pass is the result of rolling up all child rules and evaluating the
	// rule's own expression. All child rules and the rule's expression must be
	// true for Pass to be true.
	Pass bool

	// Whether evaluating the rule expression yielded a TRUE logical value.
	// The default is TRUE.
	// The result will not be affected by the results of the child rules.
	// If no rule expression is supplied for a rule, the result will be TRUE.
	ExpressionPass bool

	// The raw result of evaluating the expression.
	// This value is never affected by child rules.
	Value value.Value

	// Message is the rule's failure message, set when the expression is
	// false.
	Message string

	// Results of evaluating the child rules.
	Results map[string]*Result

	// The evaluation options used
	EvalOptions EvalOptions

	// Number of rules evaluated, including this one. This may be larger
	// than the number of results if passing or failing rules are
	// discarded.
	Evaluated int
}

// Failure is a rule whose expression was false.
type Failure struct {
	Path    string
	Message string
}

// Failures lists the rules in the result tree whose expressions were
// false, ordered by path.
func (u *Result) Failures() []Failure {
	var out []Failure
	stack := []*Result{u}
	for len(stack) > 0 {
		r := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !r.ExpressionPass {
			out = append(out, Failure{Path: r.Path, Message: r.Message})
		}
		for _, c := range r.Results {
			stack = append(stack, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// String produces a list of rules (including child rules) executed and the result of the evaluation.
func (u *Result) String() string {

	tw := table.NewWriter()
	tw.SetTitle("\nCOVE RESULT SUMMARY\n")
	tw.AppendHeader(table.Row{"\nRule", "Pass/\nFail", "Expr.\nPass/\nFail", "Chil-\ndren", "Output\nValue", "\nMessage",
		"Stop If\nParent Neg.", "Stop First\nPos. Child", "Stop First\nNeg. Child", "Discard\nPass", "Discard\nFail"})
	rows := u.resultsToRows(0)

	for _, r := range rows {
		tw.AppendRow(r)
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 6, WidthMax: 40}})
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)
	return tw.Render()
}

func boolString(b bool) string {
	switch b {
	case true:
		return "PASS"
	default:
		return "FAIL"
	}
}

func yes(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

// resultsToRows transforms the Results data to a list of rows
// for inclusion in a table.Writer table.
func (u *Result) resultsToRows(n int) []table.Row {
	rows := []table.Row{}
	indent := strings.Repeat("  ", n)

	val := ""
	if u.Rule.Program != nil {
		val = u.Value.String()
	}

	row := table.Row{
		fmt.Sprintf("%s%s", indent, u.Rule.ID),
		boolString(u.Pass),
		boolString(u.ExpressionPass),
		fmt.Sprintf("%d", len(u.Results)),
		val,
		u.Message,
		yes(u.EvalOptions.StopIfParentNegative),
		yes(u.EvalOptions.StopFirstPositiveChild),
		yes(u.EvalOptions.StopFirstNegativeChild),
		yes(u.EvalOptions.DiscardPass),
		yes(u.EvalOptions.DiscardFail),
	}

	rows = append(rows, row)
	for _, k := range u.Rule.childKeys() {
		if cd, ok := u.Results[k]; ok {
			rows = append(rows, cd.resultsToRows(n+1)...)
		}
	}
	return rows
}
