package table

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// NormalizeKey converts a join key value to a canonical string so keys read
// from different sources compare equal: int64(10), float64(10), "10" and
// "10.0" all become "10", and "10.50" matches float64(10.5).
//
// The empty string means "no key"; callers must never match on it.
func NormalizeKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(t)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return s
		}
		if isWhole(f) {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'g', -1, 64)
	case []byte:
		return NormalizeKey(string(t))
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case float64:
		if math.IsNaN(t) {
			return ""
		}
		if isWhole(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		var b strings.Builder
		appendCanonicalValue(&b, v)
		return strings.TrimSpace(b.String())
	}
}

func isWhole(f float64) bool {
	return !math.IsInf(f, 0) && f == math.Trunc(f) && math.Abs(f) < 1<<53
}
