package types

import "math/big"

// Int128 is a 128-bit signed integer, the physical representation behind
// the INT128 and DECIMAL logical types.
type Int128 struct {
	Hi int64
	Lo uint64
}

// Int128FromInt64 widens a signed 64-bit value.
func Int128FromInt64(v int64) Int128 {
	hi := int64(0)
	if v < 0 {
		hi = -1
	}
	return Int128{Hi: hi, Lo: uint64(v)}
}

// BigInt converts to a math/big.Int for arithmetic and formatting that
// doesn't warrant hand-rolled 128-bit routines.
func (v Int128) BigInt() *big.Int {
	lo := new(big.Int).SetUint64(v.Lo)
	hi := big.NewInt(v.Hi)
	hi.Lsh(hi, 64)
	return hi.Add(hi, lo)
}

// Int128FromBigInt narrows a big.Int into Int128, reporting overflow.
func Int128FromBigInt(b *big.Int) (Int128, bool) {
	min := new(big.Int).Lsh(big.NewInt(1), 127)
	min.Neg(min)
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	if b.Cmp(min) < 0 || b.Cmp(max) > 0 {
		return Int128{}, false
	}
	mask := new(big.Int).SetUint64(^uint64(0))
	lo := new(big.Int).And(b, mask)
	hi := new(big.Int).Rsh(b, 64)
	return Int128{Hi: hi.Int64(), Lo: lo.Uint64()}, true
}

func (v Int128) String() string { return v.BigInt().String() }

func (v Int128) Cmp(o Int128) int { return v.BigInt().Cmp(o.BigInt()) }
