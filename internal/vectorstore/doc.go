// Package vectorstore stores ticket embeddings and answers nearest-neighbour
// queries over them.
//
// A Store manages named indexes described by an IndexDescriptor. Every index
// uses brute-force (FLAT) search over FLOAT32 vectors with cosine distance;
// distances lie in [0, 2] and 0 means identical direction.
//
// # Backends
//
//   - RedisStore: RediSearch FT.CREATE / HSET / FT.SEARCH over go-redis.
//     Points are hashes at "<prefix>:<id>" holding the text and a
//     little-endian float32 blob.
//   - ChromemStore: embedded chromem-go collections, optionally persisted.
//   - QdrantStore: Qdrant collections over gRPC with exact search.
//
// NewStore picks one from configuration.
//
// # Errors
//
// All operations return *errkind.Error values of kind Store:
//
//   - index_exists: CreateIndex on an existing index
//   - index_not_found: any other operation on a missing index
//   - malformed_vector: wrong vector length, or k < 1
//   - connection_failure: the backend is unreachable or replied unexpectedly
//   - timeout_exceeded: the context deadline passed
//
// Insert with an existing id overwrites the stored text and vector.
//
// # Observability
//
// Each operation opens an OpenTelemetry span named "<backend>.<op>" and
// updates the ticketdup_vectorstore_operations_total and
// ticketdup_vectorstore_operation_duration_seconds Prometheus metrics.
package vectorstore
