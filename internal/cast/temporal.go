package cast

import (
	"strconv"
	"strings"
	"time"

	"github.com/dreamware/cyq/internal/types"
)

const epochDay = "1970-01-01"

var dateEpoch = mustParseDate(epochDay)

func mustParseDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// castDate parses "YYYY-MM-DD"
func castDate(vec *types.Vector, pos uint32, text string, _ Options) error {
	t := strings.TrimSpace(text)
	parsed, err := time.Parse("2006-01-02", t)
	if err != nil {
		return conversionErr("DATE", text)
	}
	days := int32(parsed.Sub(dateEpoch).Hours() / 24)
	vec.SetDate(pos, days)
	return nil
}

// timestampLayouts covers "YYYY-MM-DD[ T]HH:MM:SS[.fraction][±HH:MM]" per
// the timestamp grammar, tried in order since Go's time.Parse wants an exact
// layout and the source format allows several optional suffixes.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func castTimestamp(vec *types.Vector, pos uint32, text string, _ Options) error {
	t := strings.TrimSpace(text)
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, t)
		if err == nil {
			unit := timestampUnit(vec.Type.TsRes)
			since := parsed.Sub(time.Unix(0, 0).UTC())
			vec.SetTimestamp(pos, int64(since/unit))
			return nil
		}
	}
	return conversionErr("TIMESTAMP", text)
}

func timestampUnit(res types.TimestampResolution) time.Duration {
	switch res {
	case types.TimestampSec:
		return time.Second
	case types.TimestampMs:
		return time.Millisecond
	case types.TimestampNs:
		return time.Nanosecond
	default: // TimestampTz stores microseconds; plain TIMESTAMP binds to TimestampSec
		return time.Microsecond
	}
}

// castInterval parses whitespace-separated "N unit" pairs such as
// "3 years 2 months 1 day" (year, month, week, day, hour, minute, second,
// millisecond, microsecond; singular or plural). ISO-8601 ("P3Y2M1D") and
// Go duration ("1h30m") forms are not accepted.
func castInterval(vec *types.Vector, pos uint32, text string, _ Options) error {
	t := strings.TrimSpace(text)
	iv, ok := parseIntervalText(t)
	if !ok {
		return conversionErr("INTERVAL", text)
	}
	vec.SetInterval(pos, iv)
	return nil
}

func parseIntervalText(t string) (types.IntervalValue, bool) {
	fields := strings.Fields(t)
	if len(fields) == 0 {
		return types.IntervalValue{}, false
	}
	var iv types.IntervalValue
	matchedAny := false
	for i := 0; i+1 < len(fields); i += 2 {
		n, err := strconv.Atoi(fields[i])
		if err != nil {
			return types.IntervalValue{}, false
		}
		unit := strings.ToLower(strings.TrimSuffix(fields[i+1], "s"))
		switch unit {
		case "year":
			iv.Months += int32(n) * 12
		case "month":
			iv.Months += int32(n)
		case "week":
			iv.Days += int32(n) * 7
		case "day":
			iv.Days += int32(n)
		case "hour":
			iv.Micros += int64(n) * int64(time.Hour/time.Microsecond)
		case "minute":
			iv.Micros += int64(n) * int64(time.Minute/time.Microsecond)
		case "second":
			iv.Micros += int64(n) * int64(time.Second/time.Microsecond)
		case "millisecond":
			iv.Micros += int64(n) * int64(time.Millisecond/time.Microsecond)
		case "microsecond", "micro":
			iv.Micros += int64(n)
		default:
			return types.IntervalValue{}, false
		}
		matchedAny = true
	}
	if !matchedAny {
		return types.IntervalValue{}, false
	}
	return iv, true
}
