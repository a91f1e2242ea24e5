package wql

import (
	"slices"
	"sort"

	"agentwallet/internal/wallet"
)

// Match evaluates e against a record's tag set.
func Match(e Expr, tags map[string]string) bool {
	switch n := e.(type) {
	case Cmp:
		v, ok := tags[n.Tag]
		if !ok {
			return false
		}
		switch n.Op {
		case OpEq:
			return v == n.Value
		case OpNeq:
			return v != n.Value
		case OpGt:
			return v > n.Value
		case OpGte:
			return v >= n.Value
		case OpLt:
			return v < n.Value
		case OpLte:
			return v <= n.Value
		case OpLike:
			return Like(v, n.Value)
		case OpIn:
			return slices.Contains(n.Values, v)
		}
		return false
	case And:
		for _, sub := range n.Exprs {
			if !Match(sub, tags) {
				return false
			}
		}
		return true
	case Or:
		for _, sub := range n.Exprs {
			if Match(sub, tags) {
				return true
			}
		}
		return false
	case Not:
		return !Match(n.Expr, tags)
	}
	return false
}

// Like reports whether s matches an SQL LIKE pattern: % matches any run of
// characters, _ matches exactly one. Matching is case-sensitive.
func Like(s, pattern string) bool {
	str, pat := []rune(s), []rune(pattern)
	// match[j] is whether pat[:i] matches str[:j] for the current i.
	match := make([]bool, len(str)+1)
	match[0] = true
	for _, p := range pat {
		next := make([]bool, len(str)+1)
		switch p {
		case '%':
			seen := false
			for j := 0; j <= len(str); j++ {
				seen = seen || match[j]
				next[j] = seen
			}
		default:
			for j := 1; j <= len(str); j++ {
				next[j] = match[j-1] && (p == '_' || p == str[j-1])
			}
		}
		match = next
	}
	return match[len(str)]
}

// Select filters, sorts and pages items in process. Backends without a native
// query engine use it so results are identical across storage types.
func Select(items []wallet.Item, e Expr, opts wallet.SearchOptions) []wallet.Item {
	out := make([]wallet.Item, 0, len(items))
	for _, item := range items {
		if Match(e, item.Tags) {
			out = append(out, item)
		}
	}
	Sort(out, opts.Sort)
	return Page(out, opts.Skip, opts.EffectiveLimit())
}

// Sort orders items by the given tag fields. Missing tags sort last; ties
// break by item id ascending.
func Sort(items []wallet.Item, fields []wallet.SortField) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		for _, f := range fields {
			av, aok := a.Tags[f.Tag]
			bv, bok := b.Tags[f.Tag]
			switch {
			case aok && !bok:
				return true
			case !aok && bok:
				return false
			case !aok && !bok, av == bv:
				continue
			}
			if f.Descending {
				return av > bv
			}
			return av < bv
		}
		return a.ID < b.ID
	})
}

// Page applies skip and limit to an already ordered slice.
func Page(items []wallet.Item, skip, limit int) []wallet.Item {
	if skip >= len(items) {
		return []wallet.Item{}
	}
	if skip > 0 {
		items = items[skip:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
