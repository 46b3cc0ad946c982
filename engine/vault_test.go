package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ezachrisen/cove"
	"github.com/ezachrisen/cove/engine"
	"github.com/ezachrisen/cove/value"
	"github.com/matryer/is"
)

func newVault(t *testing.T) *engine.Vault {
	t.Helper()
	v, err := engine.NewVault(context.Background(), newEngine(t), makeRule())
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestVaultMutations(t *testing.T) {
	ctx := context.Background()

	cases := map[string]struct {
		mutations []engine.Mutation
		expected  map[string]bool
	}{
		"add": {
			mutations: []engine.Mutation{engine.Add("rule1/D", engine.NewRule("d4", "false"))},
			expected:  merge(expectedDefault, map[string]bool{"d4": false}),
		},
		"add nested": {
			mutations: []engine.Mutation{
				engine.Add("rule1", engine.NewRule("F", "true")),
				engine.Add("rule1/F", engine.NewRule("f1", "1 < 2")),
			},
			expected: merge(expectedDefault, map[string]bool{"F": true, "f1": true}),
		},
		"replace": {
			mutations: []engine.Mutation{engine.Replace("rule1/B/b2", engine.NewRule("b2", "true"))},
			expected:  merge(expectedDefault, map[string]bool{"b2": true}),
		},
		"delete": {
			mutations: []engine.Mutation{engine.Delete("rule1/B/b4")},
			expected:  deleteKeys(expectedDefault, "b4", "b4-1", "b4-2"),
		},
		"move": {
			mutations: []engine.Mutation{engine.Move("rule1/B/b4", "rule1/E")},
			expected:  expectedDefault,
		},
	}

	for k, c := range cases {
		c := c
		t.Run(k, func(t *testing.T) {
			is := is.New(t)
			v := newVault(t)
			before := v.Rule()

			is.NoErr(v.Mutate(ctx, c.mutations...))
			res, err := v.Eval(ctx, nil)
			is.NoErr(err)
			is.NoErr(match(flattenResultsExprResult(res), c.expected))

			// the earlier tree is unchanged
			is.Equal(before.Rules["B"].Rules["b4"].ID, "b4")
			is.Equal(before.Rules["B"].Rules["b2"].Expr, "false")
			_, ok := before.Rules["D"].Rules["d4"]
			is.True(!ok)
		})
	}
}

func TestVaultMovedRuleLocation(t *testing.T) {
	is := is.New(t)
	v := newVault(t)
	is.NoErr(v.Mutate(context.Background(), engine.Move("rule1/B/b4", "rule1/E")))

	_, ok := v.Rule().FindChild("B/b4")
	is.True(!ok)
	r, ok := v.Rule().FindChild("E/b4/b4-1")
	is.True(ok)
	is.Equal(r.Expr, "true")
}

func TestVaultRejectedMutations(t *testing.T) {
	ctx := context.Background()

	cases := map[string]struct {
		mutations []engine.Mutation
		notFound  bool
	}{
		"missing parent":      {mutations: []engine.Mutation{engine.Add("rule1/X", engine.NewRule("x", "true"))}, notFound: true},
		"missing rule":        {mutations: []engine.Mutation{engine.Delete("rule1/X")}, notFound: true},
		"wrong root":          {mutations: []engine.Mutation{engine.Delete("other/B")}, notFound: true},
		"delete root":         {mutations: []engine.Mutation{engine.Delete("rule1")}},
		"replace with new id": {mutations: []engine.Mutation{engine.Replace("rule1/B", engine.NewRule("C", "true"))}},
		"move below itself":   {mutations: []engine.Mutation{engine.Move("rule1/B", "rule1/B/b4")}},
		"compile error":       {mutations: []engine.Mutation{engine.Add("rule1", engine.NewRule("bad", "1 +"))}},
		"second fails": {
			mutations: []engine.Mutation{
				engine.Delete("rule1/B"),
				engine.Delete("rule1/B"),
			},
			notFound: true,
		},
	}

	for k, c := range cases {
		c := c
		t.Run(k, func(t *testing.T) {
			is := is.New(t)
			v := newVault(t)
			before := v.Rule()

			err := v.Mutate(ctx, c.mutations...)
			is.True(err != nil)
			is.Equal(errors.Is(err, engine.ErrRuleNotFound), c.notFound)
			is.True(v.Rule() == before) // nothing published
		})
	}
}

func TestVaultRecompilesMovedRules(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	root := &engine.Rule{
		ID: "root",
		Rules: map[string]*engine.Rule{
			"ints": {
				ID:     "ints",
				Schema: &cove.Schema{Elements: []cove.DataElement{{Name: cove.InputKey, Type: cove.Int{}}}},
				Rules: map[string]*engine.Rule{
					"positive": {ID: "positive", Expr: "input > 0"},
				},
			},
			"strings": {
				ID:     "strings",
				Schema: &cove.Schema{Elements: []cove.DataElement{{Name: cove.InputKey, Type: cove.String{}}}},
			},
		},
	}
	v, err := engine.NewVault(ctx, newEngine(t), root)
	is.NoErr(err)

	// input > 0 has no overload for a string input
	err = v.Mutate(ctx, engine.Move("root/ints/positive", "root/strings"))
	is.True(err != nil)

	is.NoErr(v.Mutate(ctx, engine.Add("root/strings", engine.NewRule("long", "input.size() > 3"))))
	r, ok := v.Rule().FindChild("strings/long")
	is.True(ok)
	is.Equal(r.Program.String(), "greater_int_int(size_string(input), 3)")
}

func TestVaultConcurrentEval(t *testing.T) {
	ctx := context.Background()
	v := newVault(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				res, err := v.Eval(ctx, map[string]value.Value{})
				if err != nil {
					t.Error(err)
					return
				}
				if res.Rule.ID != "rule1" {
					t.Errorf("unexpected root %s", res.Rule.ID)
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		var err error
		if i%2 == 0 {
			err = v.Mutate(ctx, engine.Move("rule1/B/b4", "rule1/E"))
		} else {
			err = v.Mutate(ctx, engine.Move("rule1/E/b4", "rule1/B"))
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()
}

func merge(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
