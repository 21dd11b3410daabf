package exec

// Operator is one node of the physical plan tree: a
// pull-based pipeline stage that, on each Next call, either fills chunk
// with the next batch and returns true, or returns false once exhausted.
// Schema names chunk's columns in order once populated.
type Operator interface {
	Next(ctx *ExecContext, chunk *DataChunk) (bool, error)
	Schema() []string
}
