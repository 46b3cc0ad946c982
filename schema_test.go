package cove_test

import (
	"reflect"
	"testing"

	"github.com/ezachrisen/cove"
	"github.com/matryer/is"
)

func TestString(t *testing.T) {

	cases := map[string]struct {
		typ     cove.Type
		wantStr string
	}{
		"int": {
			typ:     cove.Int{},
			wantStr: "int",
		},
		"map": {
			typ: cove.Map{
				KeyType:   cove.String{},
				ValueType: cove.Int{},
			},
			wantStr: "map[string]int",
		},
		"list": {
			typ: cove.List{
				ValueType: cove.Bytes{},
			},
			wantStr: "[]bytes",
		},
		"untyped list": {
			typ:     cove.List{},
			wantStr: "[]dyn",
		},
		"enum": {
			typ:     cove.Enum{Tag: "acme.Color"},
			wantStr: "enum(acme.Color)",
		},
		"message": {
			typ:     &cove.Message{Name: "acme.Shirt"},
			wantStr: "message(acme.Shirt)",
		},
	}

	for key, c := range cases {
		str := c.typ.String()
		if str != c.wantStr {
			t.Errorf("case %s: wanted '%s', got '%s'", key, c.wantStr, str)
		}
	}
}

func TestParser(t *testing.T) {

	cases := map[string]struct {
		str       string
		wantError bool
		wantType  cove.Type
	}{
		"int": {
			str:      "int",
			wantType: cove.Int{},
		},
		"float": {
			str:      "float",
			wantType: cove.Double{},
		},
		"any": {
			str:      "any",
			wantType: cove.Dyn{},
		},
		"map": {
			str: "map[string]double",
			wantType: cove.Map{
				KeyType:   cove.String{},
				ValueType: cove.Double{},
			},
		},
		"nested map": {
			str: "map[string]map[int][]uint",
			wantType: cove.Map{
				KeyType: cove.String{},
				ValueType: cove.Map{
					KeyType:   cove.Int{},
					ValueType: cove.List{ValueType: cove.UInt{}},
				},
			},
		},
		"list": {
			str: "[]double",
			wantType: cove.List{
				ValueType: cove.Double{},
			},
		},
		"enum": {
			str:      "enum(acme.Color)",
			wantType: cove.Enum{Tag: "acme.Color"},
		},
		"message": {
			str:      "message( acme.Shirt )",
			wantType: &cove.Message{Name: "acme.Shirt"},
		},
		"enum_fail": {
			str:       "enum()",
			wantError: true,
		},
		"list2": {
			str:       "[]",
			wantError: true,
		},
		"list3": {
			str:       "[]xyz",
			wantError: true,
		},
		"map_fail": {
			str:       "map[]float",
			wantError: true,
		},
		"map_fail0": {
			str:       "map[]xyz",
			wantError: true,
		},
		"map_fail_2": {
			str:       "map",
			wantError: true,
		},
		"map_fail_3": {
			str:       "map[string]",
			wantError: true,
		},
	}

	for key, c := range cases {
		typ, err := cove.ParseType(c.str)
		if c.wantError && err != nil {
			continue
		}
		if c.wantError && err == nil {
			t.Errorf("case %s: wanted error", key)
			continue
		}
		if !c.wantError && err != nil {
			t.Errorf("case %s: didn't want error, got: %v", key, err)
			continue
		}
		if reflect.TypeOf(typ) != reflect.TypeOf(c.wantType) {
			t.Errorf("case %s: wanted type %s, got %s", key, c.wantType, typ)
		}

		if c.wantType.String() != typ.String() {
			t.Errorf("case %s: type mismatch.Wanted %+v (%T), got %+v (%T)", key, c.wantType, c.wantType, typ, typ)
		}
	}
}

func TestSchemaLookup(t *testing.T) {
	is := is.New(t)
	s := &cove.Schema{
		ID:   "order",
		Name: "Order checks",
		Elements: []cove.DataElement{
			{Name: cove.InputKey, Type: cove.Map{KeyType: cove.String{}, ValueType: cove.Int{}}},
			{Name: cove.ThisKey, Type: cove.Int{}},
		},
	}

	e, ok := s.Lookup(cove.ThisKey)
	is.True(ok)
	is.Equal(e.Type, cove.Int{})

	_, ok = s.Lookup("missing")
	is.True(!ok)

	is.Equal(s.String(), "order  'Order checks'\n  input (map[string]int)\n  this (int)\n")
}

func TestJoin(t *testing.T) {
	is := is.New(t)
	is.Equal(cove.Join(cove.Int{}, cove.Int{}), cove.Int{})
	is.Equal(cove.Join(cove.Int{}, cove.String{}), cove.Dyn{})
	is.True(cove.Equal(cove.List{}, cove.List{ValueType: cove.Dyn{}}))
	is.True(cove.Equal(&cove.Message{Name: "a.B"}, &cove.Message{Name: "a.B", Fields: map[string]cove.Type{"x": cove.Int{}}}))
	is.True(!cove.Equal(cove.Enum{Tag: "a.B"}, cove.Enum{Tag: "a.C"}))
}
