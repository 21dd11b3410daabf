// Package exec implements the vectorized, pull-based physical operators:
// a logical plan (internal/planner) compiles into a tree
// of Operators, each exposing Next(ctx, chunk) (bool, error) and writing
// into the value vectors (internal/types) of the DataChunk it was handed.
package exec
