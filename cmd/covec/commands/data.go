package commands

import (
	"fmt"
	"os"
	"sort"

	"github.com/ezachrisen/cove"
	"github.com/ezachrisen/cove/enums"
	"github.com/ezachrisen/cove/value"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// loadData reads a YAML map of input names to values and converts each
// to its declared type. Undeclared inputs keep the type YAML gives them.
func loadData(path string, types map[string]cove.Type, reg *enums.Registry) (map[string]value.Value, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading data")
	}
	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, errors.Wrapf(err, "parsing data %s", path)
	}

	out := make(map[string]value.Value, len(raw))
	for name, r := range raw {
		t, ok := types[name]
		if !ok {
			log.Warn().Str("input", name).Msg("input is not declared by any rule")
			t = cove.Dyn{}
		}
		v, err := convert(r, t, reg)
		if err != nil {
			return nil, errors.Wrapf(err, "input %s", name)
		}
		out[name] = v
	}
	return out, nil
}

// convert turns a decoded YAML value into a value of type t.
func convert(raw any, t cove.Type, reg *enums.Registry) (value.Value, error) {
	if raw == nil {
		return value.Null(), nil
	}
	switch t := t.(type) {
	case nil, cove.Dyn:
		return infer(raw)

	case cove.List:
		items, ok := raw.([]any)
		if !ok {
			return value.Null(), fmt.Errorf("want a list for %s, got %T", t, raw)
		}
		elems := make([]value.Value, len(items))
		for i, it := range items {
			v, err := convert(it, t.ValueType, reg)
			if err != nil {
				return value.Null(), errors.Wrapf(err, "item %d", i)
			}
			elems[i] = v
		}
		return value.List(elems...), nil

	case cove.Map:
		pairs, err := mapPairs(raw)
		if err != nil {
			return value.Null(), err
		}
		entries := make([]value.Entry, len(pairs))
		for i, p := range pairs {
			k, err := convert(p.key, t.KeyType, reg)
			if err != nil {
				return value.Null(), errors.Wrapf(err, "key %v", p.key)
			}
			v, err := convert(p.val, t.ValueType, reg)
			if err != nil {
				return value.Null(), errors.Wrapf(err, "key %v", p.key)
			}
			entries[i] = value.Entry{Key: k, Value: v}
		}
		return value.Map(entries...)

	case *cove.Message:
		return convertMessage(raw, t, reg)

	case cove.Enum:
		switch x := raw.(type) {
		case string:
			n, ok := reg.EnumNumber(t.Tag, x)
			if !ok {
				return value.Null(), fmt.Errorf("%s has no value %s", t.Tag, x)
			}
			return value.Enum(t.Tag, n), nil
		case int:
			return value.Enum(t.Tag, int32(x)), nil
		}
		return value.Null(), fmt.Errorf("want a name or number for %s, got %T", t, raw)
	}

	v, err := infer(raw)
	if err != nil {
		return value.Null(), err
	}
	if v, err = value.Convert(v, t.Kind()); err != nil {
		return value.Null(), err
	}
	if v.Kind() != t.Kind() {
		return value.Null(), fmt.Errorf("want %s, got %s", t, v.Kind())
	}
	return v, nil
}

// convertMessage builds the map a message type describes. Fields absent
// from the data get their zero value.
func convertMessage(raw any, t *cove.Message, reg *enums.Registry) (value.Value, error) {
	pairs, err := mapPairs(raw)
	if err != nil {
		return value.Null(), err
	}
	given := make(map[string]any, len(pairs))
	for _, p := range pairs {
		name, ok := p.key.(string)
		if !ok {
			return value.Null(), fmt.Errorf("%s: field name %v is not a string", t.Name, p.key)
		}
		if _, ok := t.Field(name); !ok {
			return value.Null(), fmt.Errorf("%s has no field %s", t.Name, name)
		}
		given[name] = p.val
	}

	names := t.FieldNames()
	entries := make([]value.Entry, 0, len(names))
	for _, name := range names {
		ft, _ := t.Field(name)
		v := zero(ft)
		if r, ok := given[name]; ok {
			if v, err = convert(r, ft, reg); err != nil {
				return value.Null(), errors.Wrapf(err, "%s.%s", t.Name, name)
			}
		}
		entries = append(entries, value.Entry{Key: value.String(name), Value: v})
	}
	return value.Map(entries...)
}

// zero is the value of an unset field of type t.
func zero(t cove.Type) value.Value {
	switch t := t.(type) {
	case cove.Bool:
		return value.Bool(false)
	case cove.Int:
		return value.Int(0)
	case cove.UInt:
		return value.Uint(0)
	case cove.Double:
		return value.Double(0)
	case cove.String:
		return value.String("")
	case cove.Bytes:
		return value.Bytes(nil)
	case cove.Enum:
		return value.Enum(t.Tag, 0)
	case cove.List:
		return value.List()
	case cove.Map:
		return value.MustMap()
	}
	return value.Null()
}

// infer converts a decoded YAML value using the type YAML gives it.
func infer(raw any) (value.Value, error) {
	switch x := raw.(type) {
	case nil:
		return value.Null(), nil
	case bool:
		return value.Bool(x), nil
	case int:
		return value.Int(int64(x)), nil
	case int64:
		return value.Int(x), nil
	case uint64:
		return value.Uint(x), nil
	case float64:
		return value.Double(x), nil
	case string:
		return value.String(x), nil
	case []byte:
		return value.Bytes(x), nil
	case []any:
		elems := make([]value.Value, len(x))
		for i, it := range x {
			v, err := infer(it)
			if err != nil {
				return value.Null(), err
			}
			elems[i] = v
		}
		return value.List(elems...), nil
	case map[string]any, map[any]any:
		pairs, err := mapPairs(x)
		if err != nil {
			return value.Null(), err
		}
		entries := make([]value.Entry, len(pairs))
		for i, p := range pairs {
			k, err := infer(p.key)
			if err != nil {
				return value.Null(), err
			}
			v, err := infer(p.val)
			if err != nil {
				return value.Null(), err
			}
			entries[i] = value.Entry{Key: k, Value: v}
		}
		return value.Map(entries...)
	}
	return value.Null(), fmt.Errorf("unsupported YAML value %T", raw)
}

type pair struct {
	key any
	val any
}

// mapPairs lists the entries of a decoded YAML mapping in key order.
func mapPairs(raw any) ([]pair, error) {
	var out []pair
	switch m := raw.(type) {
	case map[string]any:
		for k, v := range m {
			out = append(out, pair{k, v})
		}
	case map[any]any:
		for k, v := range m {
			out = append(out, pair{k, v})
		}
	default:
		return nil, fmt.Errorf("want a mapping, got %T", raw)
	}
	sort.Slice(out, func(i, j int) bool {
		return fmt.Sprint(out[i].key) < fmt.Sprint(out[j].key)
	})
	return out, nil
}
