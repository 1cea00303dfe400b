package ledger

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ParseAmount reads a credit amount from a decoded JSON field. Integers and
// integral numbers are accepted, as are strings holding a base-10 integer.
// Sign is not checked here.
func ParseAmount(field gjson.Result) (int64, error) {
	switch field.Type {
	case gjson.Number:
		if n, err := strconv.ParseInt(field.Raw, 10, 64); err == nil {
			return n, nil
		}
		f := field.Float()
		// Exact int64 literals were handled above; anything reaching ±2^63 here
		// is outside the range.
		if f != math.Trunc(f) || f >= 0x1p63 || f <= -0x1p63 {
			return 0, ErrAmountNotInteger
		}
		return int64(f), nil
	case gjson.String:
		n, err := strconv.ParseInt(strings.TrimSpace(field.Str), 10, 64)
		if err != nil {
			return 0, ErrAmountNotInteger
		}
		return n, nil
	case gjson.Null:
		if !field.Exists() {
			return 0, ErrMissingFields
		}
		return 0, ErrAmountNotInteger
	default:
		return 0, ErrAmountNotInteger
	}
}
