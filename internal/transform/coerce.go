package transform

import (
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// timeLayouts are tried in order before falling back to cast's wider list.
// Layouts without a zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
	"2006/01/02",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
	"1/2/2006",
}

// toTime parses a cell into a time. It returns nil for nulls and anything
// that does not parse.
func toTime(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		if t.IsZero() {
			return nil
		}
		return t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		for _, layout := range timeLayouts {
			if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return ts
			}
		}
		if ts, err := cast.ToTimeInDefaultLocationE(s, time.UTC); err == nil && !ts.IsZero() {
			return ts
		}
		return nil
	default:
		// Numbers are never read as epoch offsets.
		return nil
	}
}

// toFloat coerces a cell to float64. Nulls, NaN, infinities and anything
// unparsable become nil.
func toFloat(v any) any {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
		if v == "" {
			return nil
		}
	}
	if _, ok := v.(time.Time); ok {
		return nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

// floatOr returns the float value of v, or def when v is null.
func floatOr(v any, def float64) float64 {
	if f, ok := toFloat(v).(float64); ok {
		return f
	}
	return def
}
