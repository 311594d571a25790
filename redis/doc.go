// Package redis stores pipeline entities in Redis as JSON strings.
//
// Store implements source.KeyedSource and source.DataSink, so it can feed
// an EntityProducer and back a Consumer:
//
//	client, _ := redis.New(redis.Config{Enabled: true, Addr: "localhost:6379"}, log)
//	store := redis.NewStore(client, func(e *demo.Entity) string { return e.ID }, gates)
//	producer := source.NewEntityProducer[string, *demo.Entity](store, cleanup)
//	consumer := source.NewConsumer("save", store, source.ParseOperation)
//
// Fetch scans the key prefix and filters the decoded entities with the
// query condition. Writes run in a WATCH transaction.
package redis
