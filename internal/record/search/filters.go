package search

import (
	"fmt"
	"strings"
	"time"

	"agentwallet/internal/wallet"
)

// ParseFilters builds a conjunction from "name=value" pairs: equal pairs
// compare tag values, after and before pairs take an RFC 3339 time and
// compare timestamp tags. No pairs at all is All.
func ParseFilters(equal, after, before []string) (Query, error) {
	var qs []Query
	for _, pair := range equal {
		name, value, err := splitPair(pair)
		if err != nil {
			return nil, err
		}
		qs = append(qs, Equal(name, value))
	}
	for _, set := range []struct {
		pairs []string
		build func(string, time.Time) Query
	}{{after, After}, {before, Before}} {
		for _, pair := range set.pairs {
			name, value, err := splitPair(pair)
			if err != nil {
				return nil, err
			}
			t, err := time.Parse(time.RFC3339Nano, value)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not an RFC 3339 time", ErrInvalidQuery, value)
			}
			qs = append(qs, set.build(name, t))
		}
	}
	if len(qs) == 1 {
		return qs[0], nil
	}
	return And(qs...), nil
}

// ParseSort turns "tag" and "-tag" (descending) into sort fields.
func ParseSort(fields []string) []wallet.SortField {
	out := make([]wallet.SortField, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if name, ok := strings.CutPrefix(f, "-"); ok {
			out = append(out, wallet.SortField{Tag: name, Descending: true})
			continue
		}
		out = append(out, wallet.SortField{Tag: f})
	}
	return out
}

func splitPair(pair string) (string, string, error) {
	name, value, ok := strings.Cut(pair, "=")
	if !ok || name == "" {
		return "", "", fmt.Errorf("%w: expected name=value, got %q", ErrInvalidQuery, pair)
	}
	return name, value, nil
}
