package sqlite

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// timeLayout is the on-disk format of every timestamp column. Columns are
// declared TEXT so the driver hands the string back untouched. The fraction
// is fixed-width so that string order is time order in ORDER BY.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// rowReader converts Row values into Go types, remembering the first
// conversion failure so a whole entity can be decoded before one error check:
//
//	r := rowReader{row: row}
//	v.ID = r.int64("id")
//	v.Titulo = r.string("titulo")
//	if err := r.err; err != nil { ... }
type rowReader struct {
	row Row
	err error
}

func (r *rowReader) fail(col string, v any) {
	if r.err == nil {
		r.err = fmt.Errorf("sqlite: column %s: unexpected value %T(%v)", col, v, v)
	}
}

func (r *rowReader) int64(col string) int64 {
	switch v := r.row[col].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case nil:
		return 0
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			r.fail(col, v)
		}
		return n
	default:
		r.fail(col, v)
		return 0
	}
}

func (r *rowReader) int(col string) int {
	return int(r.int64(col))
}

func (r *rowReader) bool(col string) bool {
	switch v := r.row[col].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case nil:
		return false
	default:
		r.fail(col, v)
		return false
	}
}

// string treats NULL as "".
func (r *rowReader) string(col string) string {
	switch v := r.row[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		r.fail(col, v)
		return ""
	}
}

func (r *rowReader) time(col string) time.Time {
	switch v := r.row[col].(type) {
	case time.Time:
		return v
	case nil:
		return time.Time{}
	case string:
		t, err := time.Parse(timeLayout, v)
		if err != nil {
			// rows written by hand or by older builds
			if t, err = time.Parse(time.RFC3339Nano, v); err != nil {
				r.fail(col, v)
			}
		}
		return t
	default:
		r.fail(col, v)
		return time.Time{}
	}
}

func (r *rowReader) timePtr(col string) *time.Time {
	if r.row[col] == nil {
		return nil
	}
	t := r.time(col)
	return &t
}

func (r *rowReader) decimal(col string) decimal.Decimal {
	switch v := r.row[col].(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			r.fail(col, v)
		}
		return d
	case float64:
		return decimal.NewFromFloat(v)
	case int64:
		return decimal.NewFromInt(v)
	case nil:
		return decimal.Zero
	default:
		r.fail(col, v)
		return decimal.Zero
	}
}

func (r *rowReader) strings(col string) []string {
	ss, err := decodeStrings(r.string(col))
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("sqlite: column %s: %w", col, err)
	}
	return ss
}

// nullable maps "" to NULL so optional UNIQUE columns (email) accept many
// empty values.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
