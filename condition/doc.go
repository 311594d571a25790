// Package condition evaluates filter conditions against entities.
//
// A Gate answers two questions for one entity type: does an entity match
// a condition, and which members of a sequence match it. Gates are
// resolved through a Registry that creates at most one Gate per type, so
// compiled conditions are shared by every processor working on that type.
//
// The default factory compiles conditions with expr-lang/expr:
//
//	gates := condition.NewRegistry(condition.NewExprFactory())
//	gate, _ := condition.For[*Order](gates)
//	ok, err := gate.Matches(order, `Status == "open" && Total > 100`)
package condition
