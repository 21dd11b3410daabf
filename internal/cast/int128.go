package cast

import (
	"math/big"
	"strings"

	"github.com/dreamware/cyq/internal/types"
)

// bigIntParser performs the strict base-10 parse with range check all
// integer casts share, reused for INT128/DECIMAL where
// strconv's 64-bit ParseInt isn't wide enough.
type bigIntParser struct{}

func (bigIntParser) parse(t string) (types.Int128, bool) {
	if t == "" {
		return types.Int128{}, false
	}
	neg := false
	rest := t
	if rest[0] == '+' || rest[0] == '-' {
		neg = rest[0] == '-'
		rest = rest[1:]
	}
	if rest == "" {
		return types.Int128{}, false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return types.Int128{}, false
		}
	}
	b, ok := new(big.Int).SetString(rest, 10)
	if !ok {
		return types.Int128{}, false
	}
	if neg {
		b.Neg(b)
	}
	v, ok := types.Int128FromBigInt(b)
	if !ok {
		return types.Int128{}, false
	}
	return v, true
}

// parseDecimal parses a DECIMAL(precision,scale) literal such as "12.340"
// into its Int128 scaled representation (value * 10^scale) for the
// DECIMAL(precision,scale) type.
func parseDecimal(t string, precision, scale uint8) (types.Int128, bool) {
	neg := strings.HasPrefix(t, "-")
	if neg || strings.HasPrefix(t, "+") {
		t = t[1:]
	}
	intPart, fracPart := t, ""
	if i := strings.IndexByte(t, '.'); i >= 0 {
		intPart, fracPart = t[:i], t[i+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > int(scale) {
		return types.Int128{}, false // truncation of precision is a cast failure
	}
	for len(fracPart) < int(scale) {
		fracPart += "0"
	}
	digits := intPart + fracPart
	for _, r := range digits {
		if r < '0' || r > '9' {
			return types.Int128{}, false
		}
	}
	b, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return types.Int128{}, false
	}
	if neg {
		b.Neg(b)
	}
	return types.Int128FromBigInt(b)
}
