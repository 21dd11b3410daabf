// Package engine is the embedded database's top layer: it opens a
// database directory, wires the catalog, storage, and CSV layers into the
// parse/bind/plan/execute pipeline, and exposes the Connection surface
// clients query through.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│            Connection               │
//	│    (query text → Result, warnings)  │
//	└─────────────────────────────────────┘
//	                 │
//	                 ▼
//	┌─────────────────────────────────────┐
//	│             Database                │
//	│  (catalog file, worker pool, log)   │
//	└─────────────────────────────────────┘
//	       │          │          │
//	       ▼          ▼          ▼
//	┌──────────┐ ┌─────────┐ ┌──────────┐
//	│  parser/ │ │ planner/│ │ storage/ │
//	│  binder  │ │  exec   │ │ csvload  │
//	└──────────┘ └─────────┘ └──────────┘
//
// # Query lifecycle
//
// Connection.Query tokenizes and parses the text, binds it against the
// catalog, plans it with storage-backed cardinalities, lowers the plan to
// an operator tree, and drains that tree on a pool worker. Errors keep
// their taxonomy kind end to end and are rendered to a user-facing
// message only here, at the query boundary.
//
// # Concurrency
//
// A fixed-size worker pool drains query pipelines; each query owns its
// result vectors, so workers share nothing but the storage layer, which
// guards its own state. Cancellation rides the per-query execution
// context: interrupting it unwinds the pipeline between batches.
package engine
