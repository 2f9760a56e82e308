package category

import (
	"encoding/json"
	"fmt"
	"math"
)

// ParseLabels converts decoded JSON values into labels. Integral numbers
// (including floats such as 3.0) are accepted; anything else, including
// strings, booleans and nulls, is rejected with ErrInvalidInput naming the
// first offending position.
func ParseLabels(values []any) ([]Label, error) {
	out := make([]Label, len(values))
	for i, v := range values {
		l, err := toLabel(v)
		if err != nil {
			return nil, fmt.Errorf("%w: label %d (%v): %v", ErrInvalidInput, i, v, err)
		}
		out[i] = l
	}
	return out, nil
}

func toLabel(v any) (Label, error) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return intLabel(i)
		}
		f, err := t.Float64()
		if err != nil {
			return 0, err
		}
		return floatLabel(f)
	case float64:
		return floatLabel(t)
	case int:
		return intLabel(int64(t))
	case int64:
		return intLabel(t)
	case Label:
		return t, nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

func floatLabel(f float64) (Label, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer")
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, fmt.Errorf("out of range")
	}
	return Label(f), nil
}

func intLabel(i int64) (Label, error) {
	if i < math.MinInt32 || i > math.MaxInt32 {
		return 0, fmt.Errorf("out of range")
	}
	return Label(i), nil
}
