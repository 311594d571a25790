// Package source connects pipelines to the data they read and write.
//
// A DataSource fetches the input of a Producer, which runs the batch
// through a collection pipeline; an EntityProducer does the same one
// entity at a time through a KeyedSource. On the write side a Consumer is
// itself a processor: it reads the Operation stored under OperationKey in
// the pipeline Context and hands the data to a DataSink.
//
//	store := source.NewMemoryStore(gates, func(u *User) string { return u.ID })
//	save := source.NewConsumer[*User]("save", store, source.ParseOperation)
//	_ = p.AddProcessor(save, "Active == true")
//	resp, err := p.Execute(ctx, user, "", source.WithOperation(nil, source.Upsert))
//
// Storage adapters for redis, gorm and kafka live in their own modules and
// implement the same interfaces.
package source
