package exec

import (
	"github.com/cespare/xxhash/v2"
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/types"
)

// HashJoin is the HASH_JOIN operator: the build side
// materializes (key, payload) rows into a factorized table keyed by the
// join node id; the probe side hashes and emits matched rows, preserving
// factorization. Keys hash through
// cespare/xxhash for fast non-cryptographic hashing of fixed-width keys
type HashJoin struct {
	build Operator
	probe Operator
	key   string // the shared join column name on both sides

	built bool
	table map[uint64][]builtRow

	buildSchema []string
	buildTypes  []types.LogicalType
}

type builtRow struct {
	chunk *DataChunk
	pos   uint32
}

func NewHashJoin(build, probe Operator, key string) *HashJoin {
	return &HashJoin{build: build, probe: probe, key: key}
}

func (h *HashJoin) Schema() []string {
	return append(append([]string{}, h.probe.Schema()...), buildOnlyColumns(h.build.Schema(), h.key)...)
}

func buildOnlyColumns(buildSchema []string, key string) []string {
	var out []string
	for _, c := range buildSchema {
		if c != key {
			out = append(out, c)
		}
	}
	return out
}

func (h *HashJoin) materializeBuild(ctx *ExecContext) error {
	h.table = map[uint64][]builtRow{}
	h.buildSchema = h.build.Schema()
	for {
		chunk := &DataChunk{}
		ok, err := h.build.Next(ctx, chunk)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if h.buildTypes == nil {
			h.buildTypes = make([]types.LogicalType, len(chunk.Vectors))
			for i, v := range chunk.Vectors {
				h.buildTypes[i] = v.Type
			}
		}
		keyVec := chunk.Vector(h.key)
		if keyVec == nil {
			return cyqerr.Newf(cyqerr.KindRuntime, "HASH_JOIN: build side missing key column %q", h.key)
		}
		for i := 0; i < chunk.Selection.Count; i++ {
			pos := chunk.Selection.At(i)
			if keyVec.IsNull(pos) {
				continue // NULL join keys never match, three-valued-logic equality
			}
			h.table[hashID(uint64(keyVec.GetInt64(pos)))] = append(h.table[hashID(uint64(keyVec.GetInt64(pos)))], builtRow{chunk: chunk, pos: pos})
		}
	}
	h.built = true
	return nil
}

func hashID(id uint64) uint64 {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(id >> (8 * i))
	}
	return xxhash.Sum64(b[:])
}

func (h *HashJoin) Next(ctx *ExecContext, out *DataChunk) (bool, error) {
	if !h.built {
		if err := h.materializeBuild(ctx); err != nil {
			return false, err
		}
	}
	if ctx.Interrupted() {
		return false, cyqerr.Newf(cyqerr.KindRuntime, "query interrupted")
	}

	for {
		probeChunk := &DataChunk{}
		ok, err := h.probe.Next(ctx, probeChunk)
		if err != nil || !ok {
			return ok, err
		}
		probeKeyVec := probeChunk.Vector(h.key)
		if probeKeyVec == nil {
			return false, cyqerr.Newf(cyqerr.KindRuntime, "HASH_JOIN: probe side missing key column %q", h.key)
		}

		schema := h.Schema()
		types_ := make([]types.LogicalType, len(schema))
		for i, v := range probeChunk.Vectors {
			types_[i] = v.Type
		}
		buildCols := buildOnlyColumns(h.buildSchema, h.key)
		buildColIdx := make([]int, len(buildCols))
		for i, c := range buildCols {
			for j, bc := range h.buildSchema {
				if bc == c {
					buildColIdx[i] = j
				}
			}
			types_[len(probeChunk.Vectors)+i] = h.buildTypes[buildColIdx[i]]
		}

		fresh := NewDataChunk(schema, types_, types.DefaultVectorCapacity)
		n := 0
		for i := 0; i < probeChunk.Selection.Count && n < types.DefaultVectorCapacity; i++ {
			pos := probeChunk.Selection.At(i)
			if probeKeyVec.IsNull(pos) {
				continue
			}
			matches := h.table[hashID(uint64(probeKeyVec.GetInt64(pos)))]
			for _, m := range matches {
				if n >= types.DefaultVectorCapacity {
					break
				}
				for c := range probeChunk.Schema {
					if err := copyValue(probeChunk.Vectors[c], pos, fresh.Vectors[c], uint32(n)); err != nil {
						return false, err
					}
				}
				for bi, srcIdx := range buildColIdx {
					if err := copyValue(m.chunk.Vectors[srcIdx], m.pos, fresh.Vectors[len(probeChunk.Vectors)+bi], uint32(n)); err != nil {
						return false, err
					}
				}
				n++
			}
		}
		if n == 0 {
			continue
		}
		fresh.Selection = types.NewSequentialSelection(n)
		fresh.Count = n
		*out = *fresh
		return true, nil
	}
}
