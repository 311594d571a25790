// Package kafka publishes pipeline entities as events on a Kafka topic and
// reads them back.
//
// Sink implements source.DataSink: a consumer at the end of a pipeline
// emits one Event per entity, keyed by the entity key, with the operation
// as event type ("entity.created", "entity.deleted", ...). Source
// implements source.DataSource over the same topic so a producer can feed
// a pipeline from the event stream.
//
//	comp := kafka.NewComponent(kafka.Config{Enabled: true, Brokers: brokers, Topic: "entities"}, log)
//	_ = registry.Register(comp)
//	...
//	sink := kafka.NewSink(comp.Writer(), "entity-cleanup", func(e *demo.Entity) string { return e.ID }, log)
//	publish := source.NewConsumer[*demo.Entity]("publish", sink, source.ParseOperation)
package kafka
