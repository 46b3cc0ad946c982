package engine_test

import (
	"fmt"

	"github.com/ezachrisen/cove"
	"github.com/ezachrisen/cove/engine"
	"github.com/ezachrisen/cove/value"
)

// -------------------------------------------------- RULE CREATION HELPERS
// Make a nested rule tree of constant expressions:
//
//	rule1   true
//	  B     false
//	    b1  true
//	    b2  false
//	    b3  true
//	    b4  false
//	      b4-1 true
//	      b4-2 false
//	  D     true
//	    d1  true
//	    d2  false
//	    d3  true
//	  E     false
//	    e1  true
//	    e2  false
//	    e3  true
func makeRule() *engine.Rule {
	leaf := func(id string, pass bool) *engine.Rule {
		return &engine.Rule{ID: id, Expr: fmt.Sprint(pass)}
	}
	node := func(id string, pass bool, children ...*engine.Rule) *engine.Rule {
		r := leaf(id, pass)
		r.Rules = map[string]*engine.Rule{}
		for _, c := range children {
			r.Rules[c.ID] = c
		}
		return r
	}
	return node("rule1", true,
		node("D", true, leaf("d1", true), leaf("d2", false), leaf("d3", true)),
		node("B", false,
			leaf("b1", true), leaf("b2", false), leaf("b3", true),
			node("b4", false, leaf("b4-1", true), leaf("b4-2", false)),
		),
		node("E", false, leaf("e1", true), leaf("e2", false), leaf("e3", true)),
	)
}

var orderType = &cove.Message{
	Name: "shop.Order",
	Fields: map[string]cove.Type{
		"id":    cove.String{},
		"total": cove.Double{},
		"items": cove.List{ValueType: cove.Int{}},
		"email": cove.String{},
	},
}

// makeOrderRule returns constraints on an order passed as input.
func makeOrderRule() *engine.Rule {
	return &engine.Rule{
		ID: "order",
		Schema: &cove.Schema{
			ID:       "shop.Order",
			Elements: []cove.DataElement{{Name: cove.InputKey, Type: orderType}},
		},
		Rules: map[string]*engine.Rule{
			"id": {
				ID:      "id",
				Expr:    `input.id.size() > 0`,
				Message: "order id is required",
			},
			"total": {
				ID:      "total",
				Expr:    `input.total >= 0.0`,
				Message: "total {input.total} must not be negative",
			},
			"items": {
				ID:      "items",
				Expr:    `input.items.size() <= this`,
				This:    value.Int(3),
				Message: "at most {this} items, got {input.items.size()}",
				Rules: map[string]*engine.Rule{
					"positive": {
						ID:      "positive",
						Expr:    `input.items.all(i, i > 0)`,
						Message: "item quantities must be positive",
					},
				},
			},
			"email": {
				ID:      "email",
				Expr:    `input.email.isEmail()`,
				Message: "{input.email} is not an email address",
			},
		},
	}
}

func order(id string, total float64, email string, items ...int64) map[string]value.Value {
	elems := make([]value.Value, len(items))
	for i, n := range items {
		elems[i] = value.Int(n)
	}
	return map[string]value.Value{
		cove.InputKey: value.MustMap(
			value.Entry{Key: value.String("id"), Value: value.String(id)},
			value.Entry{Key: value.String("total"), Value: value.Double(total)},
			value.Entry{Key: value.String("items"), Value: value.List(elems...)},
			value.Entry{Key: value.String("email"), Value: value.String(email)},
		),
	}
}

// --------------------------------------------------
// Functions to manipulate and compare rule evaluation results
// and expected results

// flattenResultsExprResult takes a hierarchy of Result objects and flattens it
// to a map of rule ID to expression pass/fail.
func flattenResultsExprResult(result *engine.Result) map[string]bool {
	m := map[string]bool{}
	m[result.Rule.ID] = result.ExpressionPass
	for _, r := range result.Results {
		for k, v := range flattenResultsExprResult(r) {
			m[k] = v
		}
	}
	return m
}

// flattenResultsRuleResult is like flattenResultsExprResult, reporting
// the rolled up pass/fail of each rule.
func flattenResultsRuleResult(result *engine.Result) map[string]bool {
	m := map[string]bool{}
	m[result.Rule.ID] = result.Pass
	for _, r := range result.Results {
		for k, v := range flattenResultsRuleResult(r) {
			m[k] = v
		}
	}
	return m
}

// match compares the results to expected results.
// Call one of the flatten functions on the *engine.Result first.
func match(result map[string]bool, expected map[string]bool) error {
	for k, v := range result {
		ev, ok := expected[k]
		if !ok {
			return fmt.Errorf("received result for rule %s ( %v ); no result was expected", k, v)
		}

		if v != ev {
			return fmt.Errorf("result mismatch: rule %s: got %v, wanted %v", k, v, ev)
		}
	}

	for k := range expected {
		if _, ok := result[k]; !ok {
			return fmt.Errorf("expected result for rule %s: no result found", k)
		}
	}

	return nil
}

// deleteKeys removes entries from an expected results map
func deleteKeys(m map[string]bool, keys ...string) map[string]bool {
	n := make(map[string]bool, len(m))
	for k, v := range m {
		n[k] = v
	}
	for _, k := range keys {
		delete(n, k)
	}
	return n
}
