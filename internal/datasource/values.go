package datasource

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// float64Valuer is implemented by pgtype.Numeric and friends.
type float64Valuer interface {
	Float64Value() (pgtype.Float8, error)
}

// normalizeValue maps driver values onto the cell types table.Table allows:
// nil, string, int64, float64, bool and time.Time.
//
// SQL Server returns DECIMAL and MONEY as []byte; they become strings here
// and are coerced to numbers by the transformer like CSV cells are.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string, int64, float64, bool, time.Time:
		return t
	case []byte:
		return string(t)
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return int64(t)
	case float32:
		return float64(t)
	case float64Valuer:
		f, err := t.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", t[0:4], t[4:6], t[6:8], t[8:10], t[10:16])
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
