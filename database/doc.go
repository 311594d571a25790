// Package database stores pipeline entities as gorm models.
//
// Store implements source.KeyedSource and source.DataSink over a model
// type; Fetch queries are SQL WHERE clauses:
//
//	comp := database.NewComponent(database.Config{Enabled: true, DSN: "file:entities.db", AutoMigrate: true}, log,
//	    database.WithModels(&Record{}))
//	_ = registry.Register(comp)
//	...
//	store := database.NewStore(comp.DB(), "id", func(r *Record) string { return r.ID })
//	producer := source.NewProducer[*Record](store, batch)
//	records, err := producer.Read(ctx, "active = 'ACTIVE'", nil)
//
// Writes of a batch run in one transaction and leave the table unchanged
// when any entity fails the operation's existence check.
package database
