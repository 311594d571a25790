// Package pipeline is the entity-processing engine: processors, their
// response state machine, and pipelines that chain processors together.
//
// A Processor receives data, an optional condition string and a Context,
// and returns a Response whose State tells the caller what happened. A
// Pipeline is itself a Processor that runs its children in registration
// order, stopping, continuing or failing according to each child's state.
//
// Single-entity processors work on a value of type E. Collection processors
// work on []E and use their condition as a filter: members that do not
// match are held back from the hook and, unless disabled, appended to the
// hook output afterwards.
//
//	gates := condition.NewRegistry(condition.NewExprFactory())
//
//	upper := pipeline.NewProcessor("upper", func(ctx context.Context, u *User, _ *pipeline.Context, r *pipeline.Response[*User]) (*pipeline.Response[*User], error) {
//	    u.Name = strings.ToUpper(u.Name)
//	    return r.OK(u), nil
//	})
//
//	p := pipeline.NewPipeline[*User]("users", pipeline.WithGates(gates))
//	_ = p.AddProcessor(upper, "Active == true")
//	_ = p.Init()
//	resp, err := p.Execute(ctx, user, "", pipeline.NewContext())
//
// Only FatalError and UnhandledError escape a pipeline as a Go error. Every
// other outcome is reported through the returned Response.
package pipeline
