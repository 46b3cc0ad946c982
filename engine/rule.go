package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ezachrisen/cove"
	"github.com/ezachrisen/cove/compiler"
	"github.com/ezachrisen/cove/schema"
	"github.com/ezachrisen/cove/value"
	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Rule is a constraint and its child constraints.
//
// The expression must yield a boolean to be a check; a rule whose
// expression yields another value always passes and reports the value.
// A rule with no expression passes and only groups its children.
type Rule struct {
	// A rule identifer. (required)
	// No two child rules of a parent can have the same identifier.
	ID string `json:"id"`

	// The constraint expression.
	Expr string `json:"expr,omitempty"`

	// Message is the failure message template. Each {expr} in it is an
	// expression whose value is inserted as text.
	Message string `json:"message,omitempty"`

	// Target is where the constraint is attached; it is reported in
	// results and decides how a schema is derived from descriptors.
	Target schema.Target `json:"target,omitempty"`

	// This is bound to the identifier this as a compile-time constant,
	// typically the argument of a parameterized constraint. A null This
	// leaves the identifier unbound.
	This value.Value `json:"-"`

	// Schema declares the runtime inputs. A rule without a schema uses
	// its parent's.
	Schema *cove.Schema `json:"schema,omitempty"`

	// A set of child rules.
	Rules map[string]*Rule `json:"rules,omitempty"`

	// Reference to any object, returned unchanged in the results.
	Meta any `json:"-"`

	// Program is the compiled expression, set by Engine.Compile.
	Program *compiler.Program `json:"-"`

	// Msg is the compiled message, set by Engine.Compile.
	Msg *compiler.Message `json:"-"`

	// Options applied when this rule and its children are evaluated.
	EvalOpts []EvalOption `json:"-"`

	// Child rule IDs in evaluation order.
	sortedKeys []string
}

const (
	// idPathSeparator joins rule IDs into a path.
	idPathSeparator = "/"

	bannedIDCharacters = idPathSeparator
)

// NewRule initializes a rule with the ID and expression.
func NewRule(id string, expr string) *Rule {
	return &Rule{
		ID:    id,
		Expr:  expr,
		Rules: map[string]*Rule{},
	}
}

// Add adds child rules. A child with the ID of an existing child
// replaces it.
func (r *Rule) Add(children ...*Rule) error {
	for _, c := range children {
		if c == nil {
			return fmt.Errorf("rule %s: nil child rule", r.ID)
		}
		if err := checkID(c.ID); err != nil {
			return err
		}
		if r.Rules == nil {
			r.Rules = map[string]*Rule{}
		}
		r.Rules[c.ID] = c
	}
	r.sortedKeys = nil
	return nil
}

func checkID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("rule ID is required")
	}
	if strings.ContainsAny(id, bannedIDCharacters) {
		return fmt.Errorf("rule ID is invalid (%s), cannot contain any of '%s'", id, bannedIDCharacters)
	}
	return nil
}

// FindChild returns the descendant at the path of IDs below r, such as
// "b/c1".
func (r *Rule) FindChild(path string) (*Rule, bool) {
	cur := r
	for _, id := range strings.Split(path, idPathSeparator) {
		next, ok := cur.Rules[id]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// FindRule returns the rule with the id in the rule or any of its
// children recursively, and a list of the parent rules in order, starting
// with the root of the rule tree and ending with the immediate parent of
// the rule with the id.
func (r *Rule) FindRule(id string) (rule *Rule, ancestors []*Rule) {
	if r == nil {
		return nil, nil
	}
	if r.ID == id {
		return r, nil
	}
	for _, k := range r.childKeys() {
		if found, p := r.Rules[k].FindRule(id); found != nil {
			return found, append([]*Rule{r}, p...)
		}
	}
	return nil, nil
}

// ApplyToRule applies the function f to the rule r and its children recursively.
func ApplyToRule(r *Rule, f func(r *Rule) error) error {
	if err := f(r); err != nil {
		return err
	}
	for _, k := range r.childKeys() {
		if err := ApplyToRule(r.Rules[k], f); err != nil {
			return err
		}
	}
	return nil
}

// childKeys returns the child IDs in evaluation order: the order set
// when the rule was compiled, or sorted by ID.
func (r *Rule) childKeys() []string {
	if len(r.sortedKeys) == len(r.Rules) {
		return r.sortedKeys
	}
	keys := make([]string, 0, len(r.Rules))
	for k := range r.Rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *Rule) sortChildren(less func(a, b *Rule) bool) {
	keys := make([]string, 0, len(r.Rules))
	for k := range r.Rules {
		keys = append(keys, k)
	}
	if less == nil {
		sort.Strings(keys)
	} else {
		sort.Slice(keys, func(i, j int) bool {
			return less(r.Rules[keys[i]], r.Rules[keys[j]])
		})
	}
	r.sortedKeys = keys
}

// SortRulesAlpha orders rules alphabetically by ID.
func SortRulesAlpha(a, b *Rule) bool {
	return a.ID < b.ID
}

// SortRulesAlphaDesc orders rules alphabetically by ID, descending.
func SortRulesAlphaDesc(a, b *Rule) bool {
	return a.ID > b.ID
}

// String returns a list of all the rules in hierarchy, with
// child rules sorted in evaluation order.
func (r *Rule) String() string {
	tw := table.NewWriter()
	tw.SetTitle("\nCOVE RULES\n")
	tw.AppendHeader(table.Row{"\nRule", "\nTarget", "\nSchema", "\nExpression", "\nCompiled", "\nMessage"})

	maxWidthOfExpressionColumn := 40
	rows, maxExprLength := r.rulesToRows(0)
	for _, row := range rows {
		tw.AppendRow(row)
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, WidthMax: maxWidthOfExpressionColumn},
		{Number: 5, WidthMax: maxWidthOfExpressionColumn},
		{Number: 6, WidthMax: maxWidthOfExpressionColumn},
	})

	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	// Only add the row separator if the expression is wide enough to wrap.
	if maxExprLength > maxWidthOfExpressionColumn {
		style.Options.SeparateRows = true
	}
	tw.SetStyle(style)
	return tw.Render()
}

func (r *Rule) rulesToRows(n int) ([]table.Row, int) {
	indent := strings.Repeat("  ", n)

	schemaID, compiled := "", ""
	if r.Schema != nil {
		schemaID = r.Schema.ID
	}
	if r.Program != nil {
		compiled = r.Program.String()
	}

	rows := []table.Row{{
		indent + r.ID,
		r.Target.String(),
		schemaID,
		r.Expr,
		compiled,
		r.Message,
	}}
	maxExprLength := max(len(r.Expr), len(compiled))

	for _, k := range r.childKeys() {
		cr, maxLen := r.Rules[k].rulesToRows(n + 1)
		maxExprLength = max(maxExprLength, maxLen)
		rows = append(rows, cr...)
	}
	return rows, maxExprLength
}

// Tree returns the rule hierarchy showing only rule IDs, children in
// evaluation order.
func (r *Rule) Tree() string {
	if r == nil {
		return ""
	}
	lw := list.NewWriter()
	lw.SetStyle(list.StyleConnectedLight)

	type item struct {
		r     *Rule
		level int
	}
	level := 0
	stack := []item{{r: r}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for ; level < it.level; level++ {
			lw.Indent()
		}
		for ; level > it.level; level-- {
			lw.UnIndent()
		}
		lw.AppendItem(it.r.ID)

		keys := it.r.childKeys()
		for i := len(keys) - 1; i >= 0; i-- {
			stack = append(stack, item{r: it.r.Rules[keys[i]], level: it.level + 1})
		}
	}
	return lw.Render()
}
