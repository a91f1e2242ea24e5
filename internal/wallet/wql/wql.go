// Package wql parses and evaluates the wallet query language: the JSON
// predicate format every wallet backend accepts for tag searches.
//
//	{}                                  matches every record
//	{"tag": "v"}                        equality
//	{"tag": {"$gt": "v"}}               $neq $gt $gte $lt $lte $like $in
//	{"$and": [..]} {"$or": [..]} {"$not": {..}}
//
// Several keys in one object are an implicit conjunction. Values are strings
// and all ordering is byte-wise lexicographic. Atoms only match records that
// carry the tag.
package wql

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidQuery is returned for malformed WQL documents.
var ErrInvalidQuery = errors.New("invalid wql query")

// Op is a comparison operator.
type Op string

const (
	OpEq   Op = "$eq"
	OpNeq  Op = "$neq"
	OpGt   Op = "$gt"
	OpGte  Op = "$gte"
	OpLt   Op = "$lt"
	OpLte  Op = "$lte"
	OpLike Op = "$like"
	OpIn   Op = "$in"
)

// Expr is a parsed WQL node: Cmp, And, Or or Not.
type Expr interface {
	isExpr()
}

// Cmp compares a single tag against Value (or Values for $in).
type Cmp struct {
	Op     Op
	Tag    string
	Value  string
	Values []string
}

// And matches when every operand matches. An empty And matches everything.
type And struct {
	Exprs []Expr
}

// Or matches when any operand matches. An empty Or matches nothing.
type Or struct {
	Exprs []Expr
}

// Not negates its operand.
type Not struct {
	Expr Expr
}

func (Cmp) isExpr() {}
func (And) isExpr() {}
func (Or) isExpr()  {}
func (Not) isExpr() {}

// Parse decodes a WQL document. Empty input is treated as {}.
func Parse(raw []byte) (Expr, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return And{}, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return parseObject(obj)
}

func parseObject(obj map[string]json.RawMessage) (Expr, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	exprs := make([]Expr, 0, len(keys))
	for _, k := range keys {
		raw := obj[k]
		switch k {
		case "$and", "$or":
			subs, err := parseList(k, raw)
			if err != nil {
				return nil, err
			}
			if k == "$and" {
				exprs = append(exprs, And{Exprs: subs})
			} else {
				exprs = append(exprs, Or{Exprs: subs})
			}
		case "$not":
			var sub map[string]json.RawMessage
			if err := json.Unmarshal(raw, &sub); err != nil || sub == nil {
				return nil, fmt.Errorf("%w: $not expects an object", ErrInvalidQuery)
			}
			inner, err := parseObject(sub)
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, Not{Expr: inner})
		default:
			if strings.HasPrefix(k, "$") {
				return nil, fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, k)
			}
			cmp, err := parseTag(k, raw)
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, cmp)
		}
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return And{Exprs: exprs}, nil
}

func parseList(op string, raw json.RawMessage) ([]Expr, error) {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %s expects an array of objects", ErrInvalidQuery, op)
	}
	out := make([]Expr, 0, len(items))
	for _, item := range items {
		e, err := parseObject(item)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func parseTag(tag string, raw json.RawMessage) (Expr, error) {
	var value string
	if err := json.Unmarshal(raw, &value); err == nil {
		return Cmp{Op: OpEq, Tag: tag, Value: value}, nil
	}

	var ops map[string]json.RawMessage
	if err := json.Unmarshal(raw, &ops); err != nil || len(ops) != 1 {
		return nil, fmt.Errorf("%w: tag %q expects a string or a single-operator object", ErrInvalidQuery, tag)
	}
	for name, operand := range ops {
		op := Op(name)
		switch op {
		case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpLike:
			if err := json.Unmarshal(operand, &value); err != nil {
				return nil, fmt.Errorf("%w: %s on %q expects a string", ErrInvalidQuery, op, tag)
			}
			return Cmp{Op: op, Tag: tag, Value: value}, nil
		case OpIn:
			var values []string
			if err := json.Unmarshal(operand, &values); err != nil {
				return nil, fmt.Errorf("%w: $in on %q expects an array of strings", ErrInvalidQuery, tag)
			}
			return Cmp{Op: OpIn, Tag: tag, Values: values}, nil
		default:
			return nil, fmt.Errorf("%w: unknown operator %q on %q", ErrInvalidQuery, name, tag)
		}
	}
	return nil, fmt.Errorf("%w: empty operator object on %q", ErrInvalidQuery, tag)
}
