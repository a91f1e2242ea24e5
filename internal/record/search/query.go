// Package search builds tag queries over records and compiles them to the
// wallet's JSON predicate format (WQL).
//
//	q := search.And(
//		search.Equal(record.TagState, "Connected"),
//		search.After(record.TagCreatedAt, cutoff),
//	)
//
// Compilation is deterministic: the same tree always produces the same bytes.
// All comparisons are byte-wise on tag values, which is why timestamp tags use
// record.TimeLayout.
package search

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"agentwallet/internal/record"
)

// ErrInvalidQuery reports a query tree that cannot be compiled.
var ErrInvalidQuery = errors.New("invalid search query")

// Query is a node in a search expression tree. Build one with the functions
// in this package.
type Query interface {
	node() (any, error)
}

type op string

const (
	opEq   op = "$eq"
	opNeq  op = "$neq"
	opGt   op = "$gt"
	opGte  op = "$gte"
	opLt   op = "$lt"
	opLte  op = "$lte"
	opLike op = "$like"
	opIn   op = "$in"
)

type cmp struct {
	op     op
	tag    string
	value  string
	values []string
}

type and []Query
type or []Query
type not struct{ q Query }

// Equal matches records whose tag equals value.
func Equal(tag, value string) Query { return cmp{op: opEq, tag: tag, value: value} }

// NotEqual matches records carrying tag with any other value.
func NotEqual(tag, value string) Query { return cmp{op: opNeq, tag: tag, value: value} }

func Greater(tag, value string) Query        { return cmp{op: opGt, tag: tag, value: value} }
func GreaterOrEqual(tag, value string) Query { return cmp{op: opGte, tag: tag, value: value} }
func Less(tag, value string) Query           { return cmp{op: opLt, tag: tag, value: value} }
func LessOrEqual(tag, value string) Query    { return cmp{op: opLte, tag: tag, value: value} }

// Like matches a case-sensitive SQL-style pattern: % for any run, _ for one
// character.
func Like(tag, pattern string) Query { return cmp{op: opLike, tag: tag, value: pattern} }

// In matches records whose tag is one of values.
func In(tag string, values ...string) Query { return cmp{op: opIn, tag: tag, values: values} }

// After matches timestamp tags strictly later than t.
func After(tag string, t time.Time) Query { return Greater(tag, record.FormatTime(t)) }

// Before matches timestamp tags strictly earlier than t.
func Before(tag string, t time.Time) Query { return Less(tag, record.FormatTime(t)) }

// And matches when every operand matches.
func And(qs ...Query) Query { return and(qs) }

// Or matches when any operand matches. Or with no operands matches nothing.
func Or(qs ...Query) Query { return or(qs) }

func Not(q Query) Query { return not{q: q} }

// All matches every record of the searched type.
func All() Query { return and(nil) }

// Compile renders q as a WQL document. A nil q is All.
func Compile(q Query) (json.RawMessage, error) {
	if q == nil {
		q = All()
	}
	n, err := q.node()
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return b, nil
}

func (c cmp) node() (any, error) {
	switch {
	case c.tag == "":
		return nil, fmt.Errorf("%w: empty tag name", ErrInvalidQuery)
	case strings.HasPrefix(c.tag, "$"):
		return nil, fmt.Errorf("%w: tag %q uses the reserved $ prefix", ErrInvalidQuery, c.tag)
	}
	switch c.op {
	case opEq:
		return map[string]string{c.tag: c.value}, nil
	case opIn:
		if len(c.values) == 0 {
			return nil, fmt.Errorf("%w: $in on %q needs at least one value", ErrInvalidQuery, c.tag)
		}
		return map[string]map[string][]string{c.tag: {string(opIn): c.values}}, nil
	default:
		return map[string]map[string]string{c.tag: {string(c.op): c.value}}, nil
	}
}

func (a and) node() (any, error) {
	if len(a) == 0 {
		return map[string]any{}, nil
	}
	subs, err := nodes(a)
	if err != nil {
		return nil, err
	}
	return map[string][]any{"$and": subs}, nil
}

func (o or) node() (any, error) {
	subs, err := nodes(o)
	if err != nil {
		return nil, err
	}
	return map[string][]any{"$or": subs}, nil
}

func (n not) node() (any, error) {
	if n.q == nil {
		return nil, fmt.Errorf("%w: nil operand to Not", ErrInvalidQuery)
	}
	inner, err := n.q.node()
	if err != nil {
		return nil, err
	}
	return map[string]any{"$not": inner}, nil
}

func nodes(qs []Query) ([]any, error) {
	out := make([]any, 0, len(qs))
	for _, q := range qs {
		if q == nil {
			return nil, fmt.Errorf("%w: nil operand", ErrInvalidQuery)
		}
		n, err := q.node()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
