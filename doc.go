// Package livepers defines the core types and contracts of a persistence and caching layer
// that sits between live, mutable domain entities and a pluggable storage back-end.
// Entities may be owned by this node ("local") or by another node ("remote"); local entities
// are kept in a process-wide live cache and written back at the end of each request, remote
// entities are reached through a forwarding handle that lives only for the request.
//
// The root package holds identifiers, the entity model and its serialization contract,
// the collaborator interfaces (reference resolver, location resolver, write-back wrapper,
// request scope), the Backend storage boundary and shared helpers (errors, logging, retry,
// configuration). The Persistence Service lives in package persistence; concrete back-ends
// live in subpackages such as inmemory, fs, redis, cassandra, aws_s3 and postgres.
package livepers

// Consistency model
//
// The live cache is the single authoritative copy of a locally owned entity on this node.
// There is no eviction: an entity stays resident until it is explicitly deleted. Writes are
// best-effort and non-transactional; a failed write or delete is logged and reported as an
// event, the in-memory state is not rolled back and the service does not retry the operation.
