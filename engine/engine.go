// Package engine compiles and evaluates trees of constraints.
//
// A rule holds a constraint expression, a failure message and child
// rules. Compile builds every expression in a set of rule trees
// concurrently and reports every failure at once; Eval runs the compiled
// programs against data and returns a tree of results.
package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ezachrisen/cove"
	"github.com/ezachrisen/cove/compiler"
	"github.com/ezachrisen/cove/native"
	"github.com/ezachrisen/cove/runtime"
	"github.com/ezachrisen/cove/value"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Evaluator runs native expressions. *runtime.Evaluator implements it.
type Evaluator interface {
	Eval(ctx context.Context, x native.Expr, vars map[string]value.Value) (value.Value, error)
}

type Engine struct {

	// The rules map holds the compiled root rules
	rules map[string]*Rule

	// Mutex for the rules map
	mu sync.RWMutex

	compiler  *compiler.Compiler
	evaluator Evaluator

	// Options used by the engine during compilation and evaluation
	opts EngineOptions
	log  zerolog.Logger
}

var ErrRuleNotFound = stderrors.New("rule not found")

// New initializes a new engine.
func New(opts ...EngineOption) (*Engine, error) {
	o := defaultEngineOptions()
	applyEngineOptions(&o, opts...)

	copts := o.CompilerOptions
	if o.Enums != nil {
		copts = append([]compiler.Option{compiler.WithEnums(o.Enums)}, copts...)
	}
	c, err := compiler.New(copts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating compiler")
	}

	ev := o.Evaluator
	if ev == nil {
		ev = runtime.New(o.Enums, runtime.WithLogger(o.Logger))
	}

	return &Engine{
		rules:     map[string]*Rule{},
		compiler:  c,
		evaluator: ev,
		opts:      o,
		log:       o.Logger,
	}, nil
}

// Compiler returns the compiler the engine builds rules with.
func (e *Engine) Compiler() *compiler.Compiler {
	return e.compiler
}

// job is one rule to compile, with the environment it sees.
type job struct {
	rule *Rule
	path string
	env  *compiler.Env
}

// Compile compiles the rules and their children and adds them to the
// engine, replacing root rules with the same IDs. If a rule does not
// have a schema, it inherits its parent's schema.
//
// Every expression is compiled, even after a failure. If any fail, no
// rule is added and the error is a compiler.ErrorList sorted by rule
// path.
func (e *Engine) Compile(ctx context.Context, rules ...*Rule) error {
	start := time.Now()

	var jobs []job
	for _, r := range rules {
		if r == nil {
			return fmt.Errorf("nil rule")
		}
		if err := checkID(r.ID); err != nil {
			return errors.Wrapf(err, "rule with expression %q", r.Expr)
		}
		var err error
		jobs, err = plan(jobs, r, "", nil, defaultEvalOptions())
		if err != nil {
			return err
		}
	}

	if err := e.compileJobs(ctx, jobs); err != nil {
		e.log.Info().Int("rules", len(jobs)).Dur("took", time.Since(start)).Err(err).Msg("compile failed")
		return err
	}

	e.mu.Lock()
	for _, r := range rules {
		e.rules[r.ID] = r
	}
	e.mu.Unlock()
	e.log.Info().Int("rules", len(jobs)).Dur("took", time.Since(start)).Msg("compiled")
	return nil
}

// compileJobs compiles every job, at most Concurrency at a time. A
// failure does not stop the others; all are returned as a sorted
// compiler.ErrorList.
func (e *Engine) compileJobs(ctx context.Context, jobs []job) error {
	var (
		mu   sync.Mutex
		list compiler.ErrorList
	)
	fail := func(path, src string, err error) {
		mu.Lock()
		list.Add(compiler.Path(path), src, err)
		mu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)
	if e.opts.Concurrency > 0 {
		g.SetLimit(e.opts.Concurrency)
	}
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			e.compileRule(j, fail)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if len(list) > 0 {
		list.Sort()
		return list
	}
	return nil
}

// plan lists the rules of the tree rooted at r, children in evaluation
// order, each with the schema it inherits.
func plan(jobs []job, r *Rule, parentPath string, s *cove.Schema, o EvalOptions) ([]job, error) {
	applyEvalOptions(&o, r.EvalOpts...)
	if r.Schema != nil {
		s = r.Schema
	}

	env := compiler.NewEnv(s)
	if !r.This.IsNull() {
		env = env.Const(cove.ThisKey, r.This)
	}

	path := makeChildRuleID(parentPath, r.ID)
	jobs = append(jobs, job{rule: r, path: path, env: env})

	r.sortChildren(o.SortFunc)
	for _, k := range r.sortedKeys {
		c := r.Rules[k]
		if c == nil {
			return nil, fmt.Errorf("rule %s: nil child rule %s", path, k)
		}
		if err := checkID(c.ID); err != nil {
			return nil, errors.Wrapf(err, "child of rule %s", path)
		}
		var err error
		if jobs, err = plan(jobs, c, path, s, o); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

func (e *Engine) compileRule(j job, fail func(path, src string, err error)) {
	r := j.rule
	log := e.log.With().Str("rule", j.path).Logger()

	r.Program, r.Msg = nil, nil
	if strings.TrimSpace(r.Expr) != "" {
		p, err := e.compiler.Compile(r.Expr, j.env)
		if err != nil {
			fail(j.path, r.Expr, err)
			return
		}
		r.Program = p
		log.Debug().Stringer("program", p).Bool("constant", p.Constant()).Msg("compiled expression")
	}
	if r.Message != "" {
		m, err := e.compiler.CompileMessage(r.Message, j.env)
		if err != nil {
			fail(j.path+"#message", r.Message, err)
			return
		}
		r.Msg = m
	}
}

// Rule returns the root rule with the id.
// The rule is shared with the engine and must not be modified.
func (e *Engine) Rule(id string) (*Rule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.rules[id]
	return r, ok
}

// RuleWithPath returns the rule at the path of rule IDs separated by /.
// For example, given this hierarchy of rule IDs:
//
//	rule1
//	  b
//	  c
//	    c1
//
// c1 has the path rule1/c/c1.
func (e *Engine) RuleWithPath(path string) (*Rule, bool) {
	if strings.TrimSpace(path) == "" {
		return nil, false
	}
	root, rest, nested := strings.Cut(path, idPathSeparator)
	r, ok := e.Rule(root)
	if !ok || !nested {
		return r, ok
	}
	return r.FindChild(rest)
}

// RuleCount is the number of root rules in the engine.
func (e *Engine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// Eval evaluates the root rule with the id against the data and
// returns the results of the rule and its children.
func (e *Engine) Eval(ctx context.Context, id string, data map[string]value.Value, opts ...EvalOption) (*Result, error) {
	r, ok := e.Rule(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	o := defaultEvalOptions()
	applyEvalOptions(&o, opts...)
	return e.eval(ctx, data, r, "", 0, o)
}

// Recursively evaluate the rule and its children
func (e *Engine) eval(ctx context.Context, data map[string]value.Value, rule *Rule, parentPath string, n int, opt EvalOptions) (*Result, error) {
	if n > opt.MaxDepth {
		return nil, nil
	}
	applyEvalOptions(&opt, rule.EvalOpts...)

	path := makeChildRuleID(parentPath, rule.ID)
	pr := &Result{
		Rule:           rule,
		Path:           path,
		Pass:           true,
		ExpressionPass: true,
		Results:        make(map[string]*Result, len(rule.Rules)),
		EvalOptions:    opt,
		Evaluated:      1,
	}

	if rule.Program != nil {
		v, err := e.evaluator.Eval(ctx, rule.Program.Expr(), data)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluating rule %s", path)
		}
		pr.Value = v
		if v.Kind() == cove.BoolKind {
			pr.ExpressionPass = v.AsBool()
		}
	}

	if !pr.ExpressionPass {
		pr.Pass = false
		if rule.Msg != nil {
			msg, err := e.message(ctx, rule.Msg, data)
			if err != nil {
				return nil, errors.Wrapf(err, "formatting message of rule %s", path)
			}
			pr.Message = msg
		}
		if opt.StopIfParentNegative {
			return pr, nil
		}
	}

	for _, k := range rule.childKeys() {
		res, err := e.eval(ctx, data, rule.Rules[k], path, n+1, opt)
		if err != nil {
			return nil, err
		}
		if res == nil {
			continue
		}
		pr.Evaluated += res.Evaluated
		if !res.Pass {
			pr.Pass = false
		}
		if (res.Pass && !opt.DiscardPass) || (!res.Pass && !opt.DiscardFail) {
			pr.Results[k] = res
		}
		if opt.StopFirstPositiveChild && res.Pass {
			break
		}
		if opt.StopFirstNegativeChild && !res.Pass {
			break
		}
	}
	return pr, nil
}

// message expands a failure message with the runtime values of its keys.
func (e *Engine) message(ctx context.Context, m *compiler.Message, data map[string]value.Value) (string, error) {
	if m.Constant() {
		return m.Expand(nil), nil
	}
	vals := make(map[string]string, len(m.Args))
	for _, a := range m.Args {
		v, err := e.evaluator.Eval(ctx, a.Program.Expr(), data)
		if err != nil {
			return "", errors.Wrapf(err, "message key {%s}", a.Key)
		}
		vals[a.Key] = value.ToString(v, e.opts.Enums).AsString()
	}
	return m.Expand(vals), nil
}

func makeChildRuleID(parentID string, childID string) string {
	if parentID == "" {
		return childID
	}

	return parentID + idPathSeparator + childID
}
