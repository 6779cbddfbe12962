// Package mongo implements store.Store on MongoDB using the official v2
// driver. Jobs and worker records live in two collections keyed by their
// string IDs.
//
// A claim is an UpdateOne whose filter matches both _id and state, so the
// database decides which of several racing workers wins.
//
// BSON dates have millisecond precision; timestamps are truncated on
// write.
//
//	client, _ := mongo.Connect(options.Client().ApplyURI(uri))
//	s := mongostore.New(client.Database("queuectl"))
//	if err := s.Migrate(ctx); err != nil { ... }
package mongo
