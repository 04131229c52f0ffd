// Package rest exposes the retrieval gateway over HTTP.
//
// Routes:
//
//	GET    /api/storages                       list shards
//	POST   /api/storages                       create a shard
//	GET    /api/storages/:storage/images/:id   shard-scoped lookup
//	DELETE /api/storages/:storage/images/:id   delete
//	GET    /api/images/:id                     cross-shard lookup
//	GET    /api/images                         list everything
//	POST   /api/images                         ingest (multipart)
//	GET    /healthz
//	GET    /metrics
//
// The handlers do no business logic; they parse the request, call the
// gateway and translate its error taxonomy onto HTTP statuses.
package rest
