package cast

import (
	"strings"

	"github.com/dreamware/cyq/internal/types"
)

// castBlob converts \xAB escapes and raw bytes to opaque bytes.
func castBlob(vec *types.Vector, pos uint32, text string, _ Options) error {
	out, ok := decodeBlob(text)
	if !ok {
		return conversionErr("BLOB", text)
	}
	vec.AppendBytes(pos, out)
	return nil
}

func decodeBlob(text string) ([]byte, bool) {
	out := make([]byte, 0, len(text))
	i := 0
	for i < len(text) {
		if text[i] == '\\' && i+3 < len(text) && (text[i+1] == 'x' || text[i+1] == 'X') {
			hi, ok1 := hexDigit(text[i+2])
			lo, ok2 := hexDigit(text[i+3])
			if !ok1 || !ok2 {
				return nil, false
			}
			out = append(out, byte(hi<<4|lo))
			i += 4
			continue
		}
		out = append(out, text[i])
		i++
	}
	return out, true
}

func hexDigit(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	default:
		return 0, false
	}
}

// FormatBlob is the canonical printer the round-trip tests exercise:
// every non-printable byte is escaped \xAB.
func FormatBlob(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		if c < 0x20 || c >= 0x7f {
			sb.WriteString("\\x")
			sb.WriteByte(hexChar(c >> 4))
			sb.WriteByte(hexChar(c & 0xf))
		} else {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func hexChar(n byte) byte {
	if n < 10 {
		return '0' + n
	}
	return 'a' + (n - 10)
}
