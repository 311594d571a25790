package condition

// Gate evaluates condition strings for a single entity type.
type Gate interface {
	// Matches reports whether entity satisfies condition.
	Matches(entity any, condition string) (bool, error)
	// Filter returns the members of entities that satisfy condition, in input order.
	Filter(entities []any, condition string) ([]any, error)
}

// PredicateFunc decides whether a single entity satisfies a condition.
type PredicateFunc func(entity any, condition string) (bool, error)

// Predicate adapts a PredicateFunc into a Gate. Filter applies the
// predicate to each member in turn.
func Predicate(fn PredicateFunc) Gate {
	return predicateGate(fn)
}

type predicateGate PredicateFunc

func (p predicateGate) Matches(entity any, condition string) (bool, error) {
	return p(entity, condition)
}

func (p predicateGate) Filter(entities []any, condition string) ([]any, error) {
	return filterWith(entities, condition, p.Matches)
}

func filterWith(entities []any, condition string, match func(any, string) (bool, error)) ([]any, error) {
	matched := make([]any, 0, len(entities))
	for _, e := range entities {
		ok, err := match(e, condition)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, e)
		}
	}
	return matched, nil
}
