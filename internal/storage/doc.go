// Package storage implements the persistent node and relationship tables
// behind the query engine: columnar node groups, packed CSR adjacency,
// primary-key indexing, and the bulk-copy write path.
//
// # Architecture
//
// The package follows a layered design:
//
//	┌─────────────────────────────────────┐
//	│          Execution Layer            │
//	│   (scans, extend, copy operators)   │
//	└─────────────────────────────────────┘
//	                 │
//	                 ▼
//	┌─────────────────────────────────────┐
//	│             Manager                 │
//	│   (table registry, WAL, caching)    │
//	└─────────────────────────────────────┘
//	                 │
//	    ┌────────────┼────────────┐
//	    ▼            ▼            ▼
//	┌────────┐  ┌─────────┐  ┌─────────┐
//	│  Node  │  │   Rel   │  │ Primary │
//	│ Tables │  │ Tables  │  │Key Index│
//	└────────┘  └─────────┘  └─────────┘
//
// # Node tables
//
// Rows are partitioned into node groups of fixed capacity. Within a group
// each property is a column chunk of the property's physical type plus a
// null chunk. A group is either in-memory (being built by a bulk copy) or
// flushed persistent; flushed groups that are not resident are loaded
// through an mmap-backed reader with an LRU cache in front.
//
// # Relationship tables
//
// For each direction (FWD/BWD), rels are stored per bound-node group as a
// packed CSR: a header of per-node offsets and lengths plus contiguous data
// chunks. Bulk ingest leaves an intentional gap after each node's list so
// later single-rel insertions can land without rewriting the chunk.
//
// # Bulk copy
//
// CopyNode accumulates rows into a shared node group under a mutex,
// appends each full group to the table, finalizes it (min/max stats),
// inserts its primary keys under the index lock, and writes its chunks to
// disk, zstd-compressing a fixed-width chunk when that makes it smaller.
// RelBatchInsert routes tuples through a partitioner keyed by bound-node
// group, then builds each partition's CSR and flushes partitions in
// parallel. Both paths start by logging a WAL record for the table.
//
// # Concurrency
//
// The shared node group and the partitioner are mutex-guarded. The
// primary-key index holds its own lock for one chunk's inserts and for each
// lookup. Read paths take a table's mutex only to find a group and read
// chunk data without a lock; SET overwrites values in flushed chunks in
// place.
package storage
