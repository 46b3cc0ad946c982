package functions_test

import (
	"errors"
	"testing"

	"github.com/ezachrisen/cove"
	"github.com/ezachrisen/cove/functions"
	"github.com/ezachrisen/cove/value"
	"github.com/matryer/is"
)

func TestDefaultBuilds(t *testing.T) {
	is := is.New(t)
	r := functions.Default()
	is.True(r.Has("size"))
	is.True(r.Has("_==_"))
	is.True(r.Has("isEmail"))
	is.True(!r.Has("nope"))
}

func TestResolve(t *testing.T) {
	cases := []struct {
		fn     string
		member bool
		args   []cove.Type
		ctx    functions.Context
		id     string
		result cove.Type
	}{
		{"size", false, []cove.Type{cove.String{}}, functions.Both, "size_string", cove.Int{}},
		{"size", true, []cove.Type{cove.List{ValueType: cove.Int{}}}, functions.Both, "size_list", cove.Int{}},
		{"size", false, []cove.Type{cove.Dyn{}}, functions.Both, "size_dyn", cove.Int{}},
		{"_+_", false, []cove.Type{cove.Int{}, cove.Int{}}, functions.Both, "add_int_int", cove.Int{}},
		{"_+_", false, []cove.Type{cove.Int{}, cove.Double{}}, functions.Both, "add_double_double", cove.Double{}},
		{"_+_", false, []cove.Type{cove.Int{}, cove.UInt{}}, functions.Both, "add_int_uint", cove.Int{}},
		{"_==_", false, []cove.Type{cove.Int{}, cove.Double{}}, functions.Both, "equals_int_double", cove.Bool{}},
		{"_==_", false, []cove.Type{cove.String{}, cove.Null{}}, functions.Both, "equals_string_null", cove.Bool{}},
		{"_==_", false, []cove.Type{cove.Dyn{}, cove.Int{}}, functions.Both, "equals_dyn", cove.Bool{}},
		{"_<_", false, []cove.Type{cove.UInt{}, cove.Int{}}, functions.Both, "less_uint_int", cove.Bool{}},
		{"min", false, []cove.Type{cove.Int{}, cove.UInt{}}, functions.Both, "min_double_double", cove.Double{}},
		{"min", false, []cove.Type{cove.List{ValueType: cove.String{}}}, functions.Both, "min_list_list", cove.String{}},
		{"startsWith", true, []cove.Type{cove.String{}, cove.String{}}, functions.Both, "starts_with_string_string", cove.Bool{}},
		{"_[_]", false, []cove.Type{cove.Map{KeyType: cove.String{}, ValueType: cove.Double{}}, cove.String{}}, functions.Both, "index_map_dyn", cove.Double{}},
		{"_?_:_", false, []cove.Type{cove.Bool{}, cove.Int{}, cove.Int{}}, functions.Both, "conditional_dyn_dyn_dyn", cove.Int{}},
		{"dyn", false, []cove.Type{cove.Int{}}, functions.Native, "dyn_dyn", cove.Dyn{}},
		{"isUuid", true, []cove.Type{cove.String{}}, functions.Both, "is_uuid_string", cove.Bool{}},
	}

	for _, c := range cases {
		c := c
		t.Run(c.id, func(t *testing.T) {
			is := is.New(t)
			for _, ctx := range []functions.Context{functions.CompileTime, functions.Native} {
				if c.ctx&ctx == 0 {
					continue
				}
				o, typ, err := functions.Default().Resolve(c.fn, c.member, c.args, ctx)
				is.NoErr(err)
				is.Equal(o.ID, c.id)
				is.True(cove.Equal(typ, c.result))
			}
		})
	}
}

func TestResolveFailures(t *testing.T) {
	is := is.New(t)
	r := functions.Default()

	// startsWith only accepts the member style
	_, _, err := r.Resolve("startsWith", false, []cove.Type{cove.String{}, cove.String{}}, functions.Native)
	is.True(errors.Is(err, cove.ErrNoMatchingOverload))

	// dyn() is never folded
	_, _, err = r.Resolve("dyn", false, []cove.Type{cove.Int{}}, functions.CompileTime)
	is.True(errors.Is(err, cove.ErrNoMatchingOverload))

	_, _, err = r.Resolve("size", false, []cove.Type{cove.Int{}}, functions.Native)
	is.True(errors.Is(err, cove.ErrNoMatchingOverload))
	is.True(err != nil && len(err.Error()) > 0)
}

func TestRejected(t *testing.T) {
	r := functions.Default()
	cases := map[string]struct {
		function string
		member   bool
		args     []cove.Type
		pos      int
		rejected bool
	}{
		"receiver":       {"startsWith", true, []cove.Type{cove.Int{}, cove.String{}}, 0, true},
		"argument":       {"startsWith", true, []cove.Type{cove.String{}, cove.Int{}}, 1, true},
		"each accepted":  {"_==_", false, []cove.Type{cove.String{}, cove.Bytes{}}, 0, false},
		"no such arity":  {"size", false, []cove.Type{cove.Int{}, cove.Int{}}, 0, false},
		"not a number":   {"floor", false, []cove.Type{cove.Bool{}}, 0, true},
	}
	for k, c := range cases {
		c := c
		t.Run(k, func(t *testing.T) {
			is := is.New(t)
			pos, ok := r.Rejected(c.function, c.member, c.args, functions.Native)
			is.Equal(ok, c.rejected)
			is.Equal(pos, c.pos)
		})
	}

	is := is.New(t)
	err := functions.ArgumentError("startsWith", true, 1, cove.ErrNoMatchingOverload)
	is.Equal(err.Error(), "1st argument of startsWith: no matching overload")
	is.True(errors.Is(err, cove.ErrNoMatchingOverload))
	is.Equal(functions.ArgumentError("min", false, 1, cove.ErrNoMatchingOverload).Error(), "2nd argument of min: no matching overload")
}

func TestAmbiguousRegistry(t *testing.T) {
	is := is.New(t)
	eval := func(functions.Runtime, []value.Value) (value.Value, error) { return value.Null(), nil }
	result := func([]cove.Type) cove.Type { return cove.Dyn{} }

	_, err := functions.New(
		&functions.Overload{ID: "f_int_double", Function: "f", Style: functions.Global, Contexts: functions.Both,
			Params: []cove.Kind{cove.IntKind, cove.DoubleKind}, Result: result, Eval: eval},
		&functions.Overload{ID: "f_double_int", Function: "f", Style: functions.Global, Contexts: functions.Both,
			Params: []cove.Kind{cove.DoubleKind, cove.IntKind}, Result: result, Eval: eval},
	)
	is.True(errors.Is(err, cove.ErrAmbiguousOverload))

	_, err = functions.New(
		&functions.Overload{ID: "g", Function: "g", Style: functions.Global, Contexts: functions.Both, Result: result, Eval: eval},
		&functions.Overload{ID: "g", Function: "g", Style: functions.Global, Contexts: functions.Both, Result: result, Eval: eval},
	)
	is.True(errors.Is(err, cove.ErrAmbiguousOverload))
}

func TestCallWidens(t *testing.T) {
	is := is.New(t)
	rt := functions.NewRuntime(nil)
	o, _, err := functions.Default().Resolve("_+_", false, []cove.Type{cove.Int{}, cove.Double{}}, functions.CompileTime)
	is.NoErr(err)

	v, err := o.Call(rt, []value.Value{value.Int(1), value.Double(0.5)})
	is.NoErr(err)
	is.Equal(v.Kind(), cove.DoubleKind)
	is.Equal(v.AsDouble(), 1.5)
}

func TestValidators(t *testing.T) {
	rt := functions.NewRuntime(nil)
	cases := []struct {
		fn   string
		arg  value.Value
		want bool
	}{
		{"isEmail", value.String("user@example.com"), true},
		{"isEmail", value.String("not an email"), false},
		{"isHostname", value.String("example.com"), true},
		{"isHostname", value.String("-bad-.com"), false},
		{"isIpv4", value.String("10.0.0.1"), true},
		{"isIpv4", value.String("::1"), false},
		{"isIpv4", value.Bytes([]byte{10, 0, 0, 1}), true},
		{"isIpv6", value.String("::1"), true},
		{"isIpv6", value.String("10.0.0.1"), false},
		{"isUri", value.String("https://example.com/a?b=c"), true},
		{"isUri", value.String(""), false},
		{"isUuid", value.String("6ba7b810-9dad-11d1-80b4-00c04fd430c8"), true},
		{"isUuid", value.String("6ba7b810"), false},
		{"isEmail", value.Bytes([]byte{0xff, 0xfe}), false},
	}

	for _, c := range cases {
		c := c
		t.Run(c.fn+"/"+c.arg.String(), func(t *testing.T) {
			is := is.New(t)
			o, _, err := functions.Default().Resolve(c.fn, false, []cove.Type{c.arg.Type()}, functions.CompileTime)
			is.NoErr(err)
			v, err := o.Call(rt, []value.Value{c.arg})
			is.NoErr(err)
			is.Equal(v.AsBool(), c.want)
		})
	}
}

func TestMatchesCachesPatterns(t *testing.T) {
	is := is.New(t)
	rt := functions.NewRuntime(nil)
	a, err := rt.Regexp("^a+$")
	is.NoErr(err)
	b, err := rt.Regexp("^a+$")
	is.NoErr(err)
	is.True(a == b)

	_, err = rt.Regexp("(")
	is.True(err != nil)
}
