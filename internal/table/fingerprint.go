package table

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Fingerprint returns a SHA-256 digest of a row's canonical form. Two rows
// have the same fingerprint exactly when every cell is equal after
// canonicalization.
//
// Canonicalization rules:
//   - cells are joined with the ASCII unit separator (0x1f)
//   - nil is encoded as a single NUL byte, so null differs from ""
//   - each cell is prefixed with a one-letter type tag, so int64(1) differs from "1"
//   - string and []byte cells carry a "<len>:" prefix, so separator bytes
//     inside a cell cannot shift cell boundaries
//   - time.Time values are encoded as RFC3339Nano in UTC
func Fingerprint(row []any) [sha256.Size]byte {
	var b strings.Builder
	b.Grow(len(row) * 16)
	for i, v := range row {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		if v == nil {
			b.WriteByte('\x00')
			continue
		}
		b.WriteByte(typeTag(v))
		switch t := v.(type) {
		case string:
			b.WriteString(strconv.Itoa(len(t)))
			b.WriteByte(':')
		case []byte:
			b.WriteString(strconv.Itoa(len(t)))
			b.WriteByte(':')
		}
		appendCanonicalValue(&b, v)
	}
	return sha256.Sum256([]byte(b.String()))
}

func typeTag(v any) byte {
	switch v.(type) {
	case string, []byte:
		return 's'
	case bool:
		return 'b'
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return 'i'
	case float32, float64:
		return 'f'
	case time.Time:
		return 't'
	default:
		return '?'
	}
}

// appendCanonicalValue appends a stable representation of v without going
// through fmt for the common types.
func appendCanonicalValue(b *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		b.WriteByte('\x00')
	case string:
		b.WriteString(t)
	case []byte:
		b.Write(t)
	case bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case int:
		b.WriteString(strconv.Itoa(t))
	case int8:
		b.WriteString(strconv.FormatInt(int64(t), 10))
	case int16:
		b.WriteString(strconv.FormatInt(int64(t), 10))
	case int32:
		b.WriteString(strconv.FormatInt(int64(t), 10))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))
	case uint:
		b.WriteString(strconv.FormatUint(uint64(t), 10))
	case uint8:
		b.WriteString(strconv.FormatUint(uint64(t), 10))
	case uint16:
		b.WriteString(strconv.FormatUint(uint64(t), 10))
	case uint32:
		b.WriteString(strconv.FormatUint(uint64(t), 10))
	case uint64:
		b.WriteString(strconv.FormatUint(t, 10))
	case float32:
		b.WriteString(strconv.FormatFloat(float64(t), 'g', -1, 32))
	case float64:
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	case time.Time:
		tt := t
		if !tt.IsZero() {
			tt = tt.UTC()
		}
		b.WriteString(tt.Format(time.RFC3339Nano))
	default:
		b.WriteString(fmt.Sprint(t))
	}
}
