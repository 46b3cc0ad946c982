package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ezachrisen/cove"
	"github.com/ezachrisen/cove/compiler"
	"github.com/ezachrisen/cove/enums"
	"github.com/ezachrisen/cove/runtime"
	"github.com/ezachrisen/cove/value"
	"github.com/matryer/is"
)

var types = map[string]cove.Type{
	"x": cove.Int{},
	"y": cove.Int{},
	"u": cove.UInt{},
	"s": cove.String{},
	"l": cove.List{ValueType: cove.Int{}},
	"m": cove.Map{KeyType: cove.String{}, ValueType: cove.Int{}},
	"d": cove.Dyn{},
}

func data() map[string]value.Value {
	return map[string]value.Value{
		"x": value.Int(3),
		"y": value.Int(0),
		"u": value.Uint(7),
		"s": value.String("héllo"),
		"l": value.List(value.Int(1), value.Int(2), value.Int(3)),
		"m": value.MustMap(
			value.Entry{Key: value.String("a"), Value: value.Int(1)},
			value.Entry{Key: value.String("b"), Value: value.Int(2)},
		),
		"d": value.Int(5),
	}
}

// envs returns an environment where every variable is a runtime input,
// and one where every variable is the constant from data.
func envs() (deferred, folded *compiler.Env) {
	d := data()
	for name, t := range types {
		deferred = deferred.Type(name, t)
		folded = folded.Const(name, d[name])
	}
	return deferred, folded
}

// TestNoDrift checks that an expression evaluated at runtime produces
// the value it folds to when its inputs are known at compile time.
func TestNoDrift(t *testing.T) {
	cases := []string{
		`x + 1`,
		`x * 2 - u`,
		`x + u`,
		`s.size()`,
		`size(l) == x`,
		`string(x) + s`,
		`int(string(x)) == x`,
		`x in l`,
		`"a" in m`,
		`m["b"] * x`,
		`l[1] + l[2]`,
		`s.startsWith("hé") && s.endsWith("o")`,
		`s.matches("^h.*o$")`,
		`x > 1 ? s : "none"`,
		`x < 1 ? s : "none"`,
		`false || x > 2`,
		`x > 5 && s == "héllo"`,
		`x / y == 1 || s == "héllo"`,
		`x / y == 1 && s == "nope"`,
		`l.map(i, i * x)`,
		`l.filter(i, i >= x - 1)`,
		`m.filter(k, m[k] > 1)`,
		`m.map(p, p[1] + x)`,
		`l.all(i, i <= x)`,
		`l.exists(i, i == x)`,
		`l.existsOne(i, i > x - 2)`,
		`l.existsOne(i, i > x - 1)`,
		`l.all(i, v, v > i)`,
		`m.exists(k, v, k == "b" && v == 2)`,
		`[x, 1, 2][0]`,
		`{"k": x}.k`,
		`{"k": x, "j": s}`,
		`[l, [x]]`,
		`d + 1`,
		`[1].map(a, [x].map(a, a))`,
		`abs(x - 10)`,
		`max(l)`,
		`min(x, 2)`,
		`double(x) / 2.0`,
		`bool(s)`,
		`!(x == 3)`,
		`int(enum(x, "test.Color")) + 1`,
		`enum(u, "test.Color") == enum(7, "test.Color")`,
		`enum(x * 1099511627776, "test.Color") == null`,
	}

	deferredEnv, foldedEnv := envs()
	c, err := compiler.New()
	if err != nil {
		t.Fatal(err)
	}
	ev := runtime.New(nil)

	for _, src := range cases {
		src := src
		t.Run(src, func(t *testing.T) {
			is := is.New(t)

			folded, err := c.Compile(src, foldedEnv)
			is.NoErr(err)
			is.True(folded.Constant())

			p, err := c.Compile(src, deferredEnv)
			is.NoErr(err)
			is.True(!p.Constant()) // reads runtime data

			got, err := ev.Eval(context.Background(), p.Native, data())
			is.NoErr(err)
			if !value.Equal(got, folded.Value) {
				t.Errorf("runtime %s, folded %s", got, folded.Value)
			}
		})
	}
}

func TestErrors(t *testing.T) {
	cases := []struct {
		expr     string
		want     error
		overload string
	}{
		{`x / y`, cove.ErrEvaluation, "divide_int_int"},
		{`x % y`, cove.ErrEvaluation, "modulo_int_int"},
		{`l[5]`, cove.ErrEvaluation, "index_list_int"},
		{`m["z"] > 1`, cove.ErrEvaluation, "index_map_dyn"},
		{`x / y == 1 || s == "nope"`, cove.ErrEvaluation, "divide_int_int"},
		{`l.all(i, x / (i - 2) != 0)`, cove.ErrEvaluation, "divide_int_int"},
		{`l.map(i, x / y)`, cove.ErrEvaluation, "divide_int_int"},
	}

	deferredEnv, _ := envs()
	c, err := compiler.New()
	if err != nil {
		t.Fatal(err)
	}
	ev := runtime.New(nil)

	for _, tc := range cases {
		tc := tc
		t.Run(tc.expr, func(t *testing.T) {
			is := is.New(t)
			p, err := c.Compile(tc.expr, deferredEnv)
			is.NoErr(err)
			_, err = ev.Eval(context.Background(), p.Native, data())
			is.True(errors.Is(err, tc.want))
			var re *runtime.Error
			is.True(errors.As(err, &re))
			is.Equal(re.Overload, tc.overload)
		})
	}
}

func TestQuantifiersAbsorbFailures(t *testing.T) {
	is := is.New(t)
	deferredEnv, _ := envs()
	c, err := compiler.New()
	is.NoErr(err)
	ev := runtime.New(nil)

	// item 2 fails, item 3 decides
	p, err := c.Compile(`l.exists(i, x / (i - 2) == 3)`, deferredEnv)
	is.NoErr(err)
	v, err := ev.Eval(context.Background(), p.Native, data())
	is.NoErr(err)
	is.Equal(v, value.Bool(true))

	p, err = c.Compile(`l.all(i, x / (i - 2) > 0)`, deferredEnv)
	is.NoErr(err)
	v, err = ev.Eval(context.Background(), p.Native, data())
	is.NoErr(err)
	is.Equal(v, value.Bool(false)) // item 1 decides before item 2 fails
}

func TestExistsOneStopsAtSecondMatch(t *testing.T) {
	is := is.New(t)
	env := (*compiler.Env)(nil).
		Type("x", cove.Int{}).
		Type("l", cove.List{ValueType: cove.Int{}})
	c, err := compiler.New()
	is.NoErr(err)

	p, err := c.Compile(`l.existsOne(i, x / i > 0)`, env)
	is.NoErr(err)

	vars := map[string]value.Value{
		"x": value.Int(3),
		"l": value.List(value.Int(1), value.Int(2), value.Int(0)),
	}
	v, err := runtime.New(nil).Eval(context.Background(), p.Native, vars)
	is.NoErr(err) // the failing third item is never visited
	is.Equal(v, value.Bool(false))

	vars["l"] = value.List(value.Int(1), value.Int(0))
	_, err = runtime.New(nil).Eval(context.Background(), p.Native, vars)
	is.True(errors.Is(err, cove.ErrEvaluation))
}

func TestUnbound(t *testing.T) {
	is := is.New(t)
	c, err := compiler.New()
	is.NoErr(err)
	p, err := c.Compile(`x + 1`, (*compiler.Env)(nil).Type("x", cove.Int{}))
	is.NoErr(err)

	_, err = runtime.New(nil).Eval(context.Background(), p.Native, nil)
	is.True(errors.Is(err, runtime.ErrUnbound))
}

func TestMessageSelect(t *testing.T) {
	is := is.New(t)
	person := &cove.Message{
		Name: "test.Person",
		Fields: map[string]cove.Type{
			"name": cove.String{},
			"age":  cove.Int{},
		},
	}
	c, err := compiler.New()
	is.NoErr(err)
	p, err := c.Compile(`this.name.size() > 2 && this.age >= 18`, (*compiler.Env)(nil).Type(cove.ThisKey, person))
	is.NoErr(err)

	this := value.MustMap(
		value.Entry{Key: value.String("name"), Value: value.String("Ada")},
		value.Entry{Key: value.String("age"), Value: value.Int(36)},
	)
	v, err := runtime.New(nil).Eval(context.Background(), p.Native, map[string]value.Value{cove.ThisKey: this})
	is.NoErr(err)
	is.Equal(v, value.Bool(true))
}

func TestEnumStrings(t *testing.T) {
	is := is.New(t)
	r := enums.New()
	r.Register(enums.FromNames("test.Color", map[int32]string{0: "RED", 1: "GREEN"}))

	c, err := compiler.New(compiler.WithEnums(r))
	is.NoErr(err)
	p, err := c.Compile(`string(color)`, (*compiler.Env)(nil).Type("color", cove.Enum{Tag: "test.Color"}))
	is.NoErr(err)

	v, err := runtime.New(r).Eval(context.Background(), p.Native, map[string]value.Value{
		"color": value.Enum("test.Color", 1),
	})
	is.NoErr(err)
	is.Equal(v, value.String("GREEN"))
}

func TestEnumConversion(t *testing.T) {
	r := enums.New()
	r.Register(enums.FromNames("test.Color", map[int32]string{0: "RED", 1: "GREEN"}))

	c, err := compiler.New(compiler.WithEnums(r))
	if err != nil {
		t.Fatal(err)
	}
	p, err := c.Compile(`s.enum("test.Color")`, (*compiler.Env)(nil).Type("s", cove.String{}))
	if err != nil {
		t.Fatal(err)
	}
	ev := runtime.New(r)

	cases := map[string]value.Value{
		"GREEN": value.Enum("test.Color", 1),
		"RED":   value.Enum("test.Color", 0),
		"BLUE":  value.Null(),
	}
	for name, expected := range cases {
		name, expected := name, expected
		t.Run(name, func(t *testing.T) {
			is := is.New(t)
			v, err := ev.Eval(context.Background(), p.Native, map[string]value.Value{"s": value.String(name)})
			is.NoErr(err)
			is.Equal(v, expected)
		})
	}
}

func TestDuplicateEnums(t *testing.T) {
	is := is.New(t)
	r := enums.New()
	r.Register(enums.FromNames("test.Color", map[int32]string{0: "RED"}))
	r.Register(enums.FromNames("test.Color", map[int32]string{0: "BLUE"}))

	c, err := compiler.New()
	is.NoErr(err)
	p, err := c.Compile(`string(color)`, (*compiler.Env)(nil).Type("color", cove.Enum{Tag: "test.Color"}))
	is.NoErr(err)

	_, err = runtime.New(r).Eval(context.Background(), p.Native, map[string]value.Value{
		"color": value.Enum("test.Color", 0),
	})
	is.True(errors.Is(err, cove.ErrDuplicateEnum))
}

func TestCanceled(t *testing.T) {
	is := is.New(t)
	c, err := compiler.New()
	is.NoErr(err)
	p, err := c.Compile(`l.map(i, l.map(j, i * j + x))`, (*compiler.Env)(nil).
		Type("x", cove.Int{}).
		Type("l", cove.List{ValueType: cove.Int{}}))
	is.NoErr(err)

	elems := make([]value.Value, 200)
	for i := range elems {
		elems[i] = value.Int(int64(i))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = runtime.New(nil).Eval(ctx, p.Native, map[string]value.Value{
		"x": value.Int(1),
		"l": value.List(elems...),
	})
	is.True(errors.Is(err, context.Canceled))
}

func ExampleEvaluator_Eval() {
	c, _ := compiler.New()
	env := (*compiler.Env)(nil).Type("name", cove.String{})
	p, _ := c.Compile(`name.size() >= 3 && name.startsWith("x-")`, env)

	ev := runtime.New(nil)
	for _, name := range []string{"x-ray", "x-", "why"} {
		v, err := ev.Eval(context.Background(), p.Native, map[string]value.Value{"name": value.String(name)})
		fmt.Println(name, v, err)
	}
	// Output:
	// x-ray true <nil>
	// x- false <nil>
	// why false <nil>
}
