package types

// Shared sizing constants referenced throughout the storage and
// execution layers.
const (
	// DefaultVectorCapacity bounds how many positions an unflat Vector may
	// hold at once.
	DefaultVectorCapacity = 2048

	// NodeGroupSize is the fixed row capacity of one node group.
	NodeGroupSize = 1 << 18 // 262144

	// PackedCSRDensity controls the gap policy on bulk ingest: a node's
	// final slot count is ceil(length / PackedCSRDensity), and 1 for a node
	// with no rels.
	PackedCSRDensity = 0.8

	// ParallelBlockSize is the target byte size of one CSV ingestion block
	//.
	ParallelBlockSize = 4 << 20 // 4 MiB

	// StringPrefixLen is how many bytes of a variable-length value are
	// stored inline before falling back to the overflow buffer pointer
	// entry.
	StringPrefixLen = 12
)
