// Package types defines the logical/physical type system and the columnar
// value vectors that every downstream component (cast, exec, storage)
// operates on. The vector is the unit of data flow across the operator
// pipeline: a columnar batch of up to DefaultVectorCapacity values of
// one logical type, with a null bitmap and an optional selection vector.
package types

import "fmt"

// Kind tags a LogicalType's variant. Numeric widths, temporal resolutions
// and nested shapes are all represented by one closed enum rather than a
// type hierarchy; casting dispatches over Kind through a table
// (a flat tag is what lets internal/cast dispatch through a table keyed by
// Kind instead of per-type specializations).
type Kind uint8

const (
	BOOL Kind = iota
	INT8
	INT16
	INT32
	INT64
	INT128
	UINT8
	UINT16
	UINT32
	UINT64
	FLOAT
	DOUBLE
	DECIMAL
	DATE
	TIMESTAMP
	INTERVAL
	STRING
	BLOB
	UUID
	SERIAL
	INTERNAL_ID
	LIST
	ARRAY
	MAP
	STRUCT
	UNION
	NODE
	REL
)

// TimestampResolution distinguishes the TIMESTAMP variants: SEC/MS/NS/TZ.
type TimestampResolution uint8

const (
	TimestampSec TimestampResolution = iota
	TimestampMs
	TimestampNs
	TimestampTz
)

// PhysicalType is the fixed-width-or-not storage representation backing a
// LogicalType; every logical type maps to exactly one.
type PhysicalType uint8

const (
	PhysBool PhysicalType = iota
	PhysInt8
	PhysInt16
	PhysInt32
	PhysInt64
	PhysInt128
	PhysUint8
	PhysUint16
	PhysUint32
	PhysUint64
	PhysFloat
	PhysDouble
	PhysVarLen // {length, prefix, inline-or-overflow-pointer}
	PhysListEntry
	PhysStruct // no own buffer; children hold the data
)

// StructField names and types one field of a STRUCT/UNION logical type.
type StructField struct {
	Name string
	Type LogicalType
}

// LogicalType is a tagged variant covering every supported logical type
// 3. Composite shapes (LIST/ARRAY/MAP/STRUCT/UNION/NODE/REL) carry their
// children inline so the type itself is immutable and cheaply copyable.
type LogicalType struct {
	Kind Kind

	// DECIMAL
	Precision, Scale uint8

	// TIMESTAMP
	TsRes TimestampResolution

	// LIST/ARRAY: element type. ARRAY additionally fixes Length.
	Elem   *LogicalType
	Length uint32 // ARRAY(T,N): N

	// MAP: key/value types.
	Key   *LogicalType
	Value *LogicalType

	// STRUCT/UNION: named fields, in declaration order. A UNION's first
	// field is implicitly the synthesized tag; callers use UnionTagField.
	Fields []StructField

	// NODE/REL: the catalog table name this type is scoped to.
	Table string
}

// Scalar constructors for the fixed-width kinds, so callers write
// types.Int64() instead of spelling out the LogicalType literal.
func Bool() LogicalType       { return LogicalType{Kind: BOOL} }
func Int8() LogicalType       { return LogicalType{Kind: INT8} }
func Int16() LogicalType      { return LogicalType{Kind: INT16} }
func Int32() LogicalType      { return LogicalType{Kind: INT32} }
func Int64() LogicalType      { return LogicalType{Kind: INT64} }
func Int128() LogicalType     { return LogicalType{Kind: INT128} }
func UInt8() LogicalType      { return LogicalType{Kind: UINT8} }
func UInt16() LogicalType     { return LogicalType{Kind: UINT16} }
func UInt32() LogicalType     { return LogicalType{Kind: UINT32} }
func UInt64() LogicalType     { return LogicalType{Kind: UINT64} }
func Float() LogicalType      { return LogicalType{Kind: FLOAT} }
func Double() LogicalType     { return LogicalType{Kind: DOUBLE} }
func Date() LogicalType       { return LogicalType{Kind: DATE} }
func Str() LogicalType        { return LogicalType{Kind: STRING} }
func Blob() LogicalType       { return LogicalType{Kind: BLOB} }
func UUIDType() LogicalType   { return LogicalType{Kind: UUID} }
func Serial() LogicalType     { return LogicalType{Kind: SERIAL} }
func InternalID() LogicalType { return LogicalType{Kind: INTERNAL_ID} }
func Interval() LogicalType   { return LogicalType{Kind: INTERVAL} }

func Timestamp(res TimestampResolution) LogicalType {
	return LogicalType{Kind: TIMESTAMP, TsRes: res}
}

func Decimal(precision, scale uint8) LogicalType {
	return LogicalType{Kind: DECIMAL, Precision: precision, Scale: scale}
}

func ListOf(elem LogicalType) LogicalType {
	return LogicalType{Kind: LIST, Elem: &elem}
}

func ArrayOf(elem LogicalType, n uint32) LogicalType {
	return LogicalType{Kind: ARRAY, Elem: &elem, Length: n}
}

func MapOf(key, value LogicalType) LogicalType {
	return LogicalType{Kind: MAP, Key: &key, Value: &value}
}

func StructOf(fields ...StructField) LogicalType {
	return LogicalType{Kind: STRUCT, Fields: fields}
}

func UnionOf(fields ...StructField) LogicalType {
	return LogicalType{Kind: UNION, Fields: fields}
}

func NodeType(table string) LogicalType { return LogicalType{Kind: NODE, Table: table} }
func RelType(table string) LogicalType  { return LogicalType{Kind: REL, Table: table} }

// Physical returns the PhysicalType backing t
func (t LogicalType) Physical() PhysicalType {
	switch t.Kind {
	case BOOL:
		return PhysBool
	case INT8:
		return PhysInt8
	case INT16:
		return PhysInt16
	case INT32, DATE:
		return PhysInt32
	case INT64, TIMESTAMP, SERIAL, INTERNAL_ID:
		return PhysInt64
	case INT128, DECIMAL, INTERVAL:
		return PhysInt128
	case UINT8:
		return PhysUint8
	case UINT16:
		return PhysUint16
	case UINT32:
		return PhysUint32
	case UINT64:
		return PhysUint64
	case FLOAT:
		return PhysFloat
	case DOUBLE:
		return PhysDouble
	case STRING, BLOB, UUID:
		return PhysVarLen
	case LIST, MAP:
		return PhysListEntry
	case ARRAY, STRUCT, UNION, NODE, REL:
		return PhysStruct
	default:
		return PhysInt64
	}
}

// Width reports the fixed byte width of t's physical representation, or 0
// for variable-length / struct-like physical types whose storage lives in
// child vectors or an overflow buffer.
func (t LogicalType) Width() int {
	switch t.Physical() {
	case PhysBool, PhysInt8, PhysUint8:
		return 1
	case PhysInt16, PhysUint16:
		return 2
	case PhysInt32, PhysUint32, PhysFloat:
		return 4
	case PhysInt64, PhysUint64, PhysDouble:
		return 8
	case PhysInt128:
		return 16
	case PhysVarLen:
		return 16 // {length:4, prefix:4, pointer:8} inline entry
	case PhysListEntry:
		return 8 // {offset:4, size:4}
	default:
		return 0
	}
}

// IsNumeric reports whether t participates in arithmetic widening
// (implicit casts exist only among numeric types, widening).
func (t LogicalType) IsNumeric() bool {
	switch t.Kind {
	case INT8, INT16, INT32, INT64, INT128, UINT8, UINT16, UINT32, UINT64, FLOAT, DOUBLE, DECIMAL:
		return true
	default:
		return false
	}
}

// Equal reports structural equality, recursing into composite shapes.
func (t LogicalType) Equal(o LogicalType) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case DECIMAL:
		return t.Precision == o.Precision && t.Scale == o.Scale
	case TIMESTAMP:
		return t.TsRes == o.TsRes
	case LIST:
		return t.Elem.Equal(*o.Elem)
	case ARRAY:
		return t.Length == o.Length && t.Elem.Equal(*o.Elem)
	case MAP:
		return t.Key.Equal(*o.Key) && t.Value.Equal(*o.Value)
	case STRUCT, UNION:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if t.Fields[i].Name != o.Fields[i].Name || !t.Fields[i].Type.Equal(o.Fields[i].Type) {
				return false
			}
		}
		return true
	case NODE, REL:
		return t.Table == o.Table
	default:
		return true
	}
}

func (t LogicalType) String() string {
	switch t.Kind {
	case DECIMAL:
		return fmt.Sprintf("DECIMAL(%d,%d)", t.Precision, t.Scale)
	case TIMESTAMP:
		return "TIMESTAMP"
	case LIST:
		return fmt.Sprintf("%s[]", t.Elem.String())
	case ARRAY:
		return fmt.Sprintf("%s[%d]", t.Elem.String(), t.Length)
	case MAP:
		return fmt.Sprintf("MAP(%s,%s)", t.Key.String(), t.Value.String())
	case STRUCT:
		return "STRUCT"
	case UNION:
		return "UNION"
	case NODE:
		return fmt.Sprintf("NODE(%s)", t.Table)
	case REL:
		return fmt.Sprintf("REL(%s)", t.Table)
	default:
		return kindNames[t.Kind]
	}
}

var kindNames = map[Kind]string{
	BOOL: "BOOL", INT8: "INT8", INT16: "INT16", INT32: "INT32", INT64: "INT64",
	INT128: "INT128", UINT8: "UINT8", UINT16: "UINT16", UINT32: "UINT32", UINT64: "UINT64",
	FLOAT: "FLOAT", DOUBLE: "DOUBLE", DATE: "DATE", INTERVAL: "INTERVAL",
	STRING: "STRING", BLOB: "BLOB", UUID: "UUID", SERIAL: "SERIAL",
	INTERNAL_ID: "INTERNAL_ID",
}

// ANY_LABEL is the sentinel label id meaning "unconstrained".
const ANY_LABEL int32 = -1
