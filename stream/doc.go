// Package stream provides lazy, pull-based operators over entity streams.
//
// A Stream does no work until it is pulled with Collect. Each stage pulls
// from the one before it on demand, so a slow consumer throttles the
// source without extra flow control. Producers use streams to run
// entities through a pipeline one at a time, in batches, or with a bounded
// set of workers, and the kafka source uses one to drain a topic.
//
//	entities := stream.FromSlice(fetched)
//	processed := stream.Parallel(entities, 4, runPipeline)
//	kept := stream.Filter(processed, survived)
//	out, err := stream.Collect(ctx, kept)
package stream
