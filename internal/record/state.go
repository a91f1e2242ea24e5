package record

import (
	"fmt"

	dErrors "agentwallet/pkg/domain-errors"
)

type transition[S, T comparable] struct {
	trigger T
	from    []S
	to      S
}

// transitions is an ordered rule table; the first rule matching both the
// trigger and the current state fires.
type transitions[S, T comparable] []transition[S, T]

func (ts transitions[S, T]) next(current S, trigger T) (S, bool) {
	for _, t := range ts {
		if t.trigger != trigger {
			continue
		}
		for _, s := range t.from {
			if s == current {
				return t.to, true
			}
		}
	}
	return current, false
}

func invalidTransition(typeName string, state fmt.Stringer, trigger any) error {
	return dErrors.New(dErrors.CodeInvalidState,
		fmt.Sprintf("%s: trigger %v not allowed in state %s", typeName, trigger, state))
}

// parseState resolves the canonical name of a state enum.
func parseState[S ~int](names []string, kind, v string) (S, error) {
	for i, n := range names {
		if n == v {
			return S(i), nil
		}
	}
	return 0, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown %s state %q", kind, v))
}

func stateName[S ~int](names []string, s S) string {
	if int(s) < 0 || int(s) >= len(names) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return names[s]
}
