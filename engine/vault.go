package engine

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ezachrisen/cove"
	"github.com/ezachrisen/cove/value"
	"github.com/pkg/errors"
)

// Vault holds a compiled rule tree that can be changed while it is being
// evaluated. A change is compiled against the schema it inherits before
// it is published; a change that fails to compile leaves the tree as it
// was. Evaluations keep the tree they started with.
type Vault struct {
	e *Engine

	// Serializes writers; readers only load root.
	mu   sync.Mutex
	root atomic.Pointer[Rule]
}

// NewVault compiles root and stores it in a vault. If root is nil, an
// empty rule with the ID "root" is used.
func NewVault(ctx context.Context, e *Engine, root *Rule) (*Vault, error) {
	if root == nil {
		root = NewRule("root", "")
	}
	if err := checkID(root.ID); err != nil {
		return nil, err
	}
	jobs, err := plan(nil, root, "", nil, defaultEvalOptions())
	if err != nil {
		return nil, err
	}
	if err := e.compileJobs(ctx, jobs); err != nil {
		return nil, errors.Wrap(err, "compiling the vault root")
	}
	v := &Vault{e: e}
	v.root.Store(root)
	return v, nil
}

// Rule returns the current root. The tree must not be modified.
func (v *Vault) Rule() *Rule {
	return v.root.Load()
}

// Eval evaluates the current tree against the data.
func (v *Vault) Eval(ctx context.Context, data map[string]value.Value, opts ...EvalOption) (*Result, error) {
	o := defaultEvalOptions()
	applyEvalOptions(&o, opts...)
	return v.e.eval(ctx, data, v.root.Load(), "", 0, o)
}

type mutationOp uint8

const (
	opAdd mutationOp = iota
	opReplace
	opDelete
	opMove
)

// Mutation is a change to the tree in a vault. Rules are addressed by
// their path from the root, such as "root/b/b1".
type Mutation struct {
	op   mutationOp
	path string
	rule *Rule
	to   string
}

// Add adds r as a child of the rule at parent. A child with the same ID
// is replaced.
func Add(parent string, r *Rule) Mutation {
	return Mutation{op: opAdd, path: parent, rule: r}
}

// Replace replaces the rule at path with r, which must have the same ID.
func Replace(path string, r *Rule) Mutation {
	return Mutation{op: opReplace, path: path, rule: r}
}

// Delete removes the rule at path and its children.
func Delete(path string) Mutation {
	return Mutation{op: opDelete, path: path}
}

// Move makes the rule at path a child of the rule at parent. The rule
// is compiled again against the schema it inherits there.
func Move(path, parent string) Mutation {
	return Mutation{op: opMove, path: path, to: parent}
}

func (m Mutation) String() string {
	switch m.op {
	case opAdd:
		if m.rule == nil {
			return "add to " + m.path
		}
		return fmt.Sprintf("add %s to %s", m.rule.ID, m.path)
	case opReplace:
		return "replace " + m.path
	case opDelete:
		return "delete " + m.path
	}
	return fmt.Sprintf("move %s to %s", m.path, m.to)
}

// Mutate applies the changes in order and publishes the result. If any
// change fails, none is published.
func (v *Vault) Mutate(ctx context.Context, ms ...Mutation) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	root := v.root.Load()
	for _, m := range ms {
		var err error
		if root, err = v.apply(ctx, root, m); err != nil {
			return errors.Wrap(err, m.String())
		}
	}
	v.root.Store(root)
	v.e.log.Debug().Int("mutations", len(ms)).Msg("vault updated")
	return nil
}

func (v *Vault) apply(ctx context.Context, root *Rule, m Mutation) (*Rule, error) {
	switch m.op {
	case opAdd:
		if m.rule == nil {
			return nil, fmt.Errorf("nil rule")
		}
		return v.attach(ctx, root, m.path, m.rule)

	case opReplace:
		parent, id, err := splitPath(m.path)
		if err != nil {
			return nil, err
		}
		if m.rule == nil || m.rule.ID != id {
			return nil, fmt.Errorf("the replacement must have the ID %s", id)
		}
		if _, ok := find(root, m.path); !ok {
			return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, m.path)
		}
		return v.attach(ctx, root, parent, m.rule)

	case opDelete:
		return detach(root, m.path)

	case opMove:
		r, ok := find(root, m.path)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, m.path)
		}
		if m.to == m.path || strings.HasPrefix(m.to, m.path+idPathSeparator) {
			return nil, fmt.Errorf("cannot move a rule below itself")
		}
		rest, err := detach(root, m.path)
		if err != nil {
			return nil, err
		}
		// The moved rules are shared with the published tree, so they
		// are copied before being compiled again.
		return v.attach(ctx, rest, m.to, deepCopy(r))
	}
	return nil, fmt.Errorf("unknown mutation")
}

// attach compiles r as a child of the rule at parent and returns a new
// root holding it.
func (v *Vault) attach(ctx context.Context, root *Rule, parent string, r *Rule) (*Rule, error) {
	if err := checkID(r.ID); err != nil {
		return nil, err
	}
	s, o, err := inherited(root, parent)
	if err != nil {
		return nil, err
	}
	jobs, err := plan(nil, r, parent, s, o)
	if err != nil {
		return nil, err
	}
	if err := v.e.compileJobs(ctx, jobs); err != nil {
		return nil, err
	}
	return edit(root, parent, func(p *Rule) {
		p.Rules[r.ID] = r
		p.sortChildren(o.SortFunc)
	})
}

func detach(root *Rule, path string) (*Rule, error) {
	parent, id, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	if _, ok := find(root, path); !ok {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, path)
	}
	return edit(root, parent, func(p *Rule) {
		delete(p.Rules, id)
		p.sortedKeys = slices.DeleteFunc(p.sortedKeys, func(k string) bool { return k == id })
	})
}

// splitPath splits a path into its parent path and the last ID. The root
// has no parent.
func splitPath(path string) (string, string, error) {
	i := strings.LastIndex(path, idPathSeparator)
	if i < 0 {
		return "", "", fmt.Errorf("the root rule %q cannot be changed", path)
	}
	return path[:i], path[i+1:], nil
}

// find returns the rule at path, which starts with the root's ID.
func find(root *Rule, path string) (*Rule, bool) {
	id, rest, nested := strings.Cut(path, idPathSeparator)
	if id != root.ID {
		return nil, false
	}
	if !nested {
		return root, true
	}
	return root.FindChild(rest)
}

// inherited returns the schema and options seen by the children of the
// rule at path.
func inherited(root *Rule, path string) (*cove.Schema, EvalOptions, error) {
	o := defaultEvalOptions()
	var s *cove.Schema
	if _, ok := find(root, path); !ok {
		return nil, o, fmt.Errorf("%w: %s", ErrRuleNotFound, path)
	}
	cur := root
	for i, id := range strings.Split(path, idPathSeparator) {
		if i > 0 {
			cur = cur.Rules[id]
		}
		applyEvalOptions(&o, cur.EvalOpts...)
		if cur.Schema != nil {
			s = cur.Schema
		}
	}
	return s, o, nil
}

// edit returns a copy of root in which the rules on the path to the rule
// at path are copied and f has changed the last of them. Rules off the
// path are shared with root.
func edit(root *Rule, path string, f func(r *Rule)) (*Rule, error) {
	ids := strings.Split(path, idPathSeparator)
	if ids[0] != root.ID {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, path)
	}
	nr := root.shallowCopy()
	cur := nr
	for _, id := range ids[1:] {
		c, ok := cur.Rules[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, path)
		}
		cc := c.shallowCopy()
		cur.Rules[id] = cc
		cur = cc
	}
	f(cur)
	return nr, nil
}

// shallowCopy copies r so that its children can be changed. The
// children themselves are shared.
func (r *Rule) shallowCopy() *Rule {
	c := *r
	c.Rules = maps.Clone(r.Rules)
	if c.Rules == nil {
		c.Rules = map[string]*Rule{}
	}
	c.sortedKeys = slices.Clone(r.sortedKeys)
	return &c
}

func deepCopy(r *Rule) *Rule {
	c := r.shallowCopy()
	for k, child := range c.Rules {
		c.Rules[k] = deepCopy(child)
	}
	return c
}
