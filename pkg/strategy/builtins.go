package strategy

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Built-in hook identifiers. The set is fixed at compile time and enumerable
// through Registry.List.
const (
	CustomGroupKey = "custom-group-key"
	MonthBucket    = "month-bucket"
	AmountBand     = "amount-band"
)

func builtins() map[string]Fn {
	return map[string]Fn{
		CustomGroupKey: customGroupKey,
		MonthBucket:    monthBucket,
		AmountBand:     amountBand,
	}
}

// customGroupKey derives a normalized group key from a row's "category"
// field, falling back to "type". The key is trimmed and lower-cased so rows
// differing only in casing land in one group.
func customGroupKey(input any) (any, error) {
	row, ok := input.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a row object, got %T", input)
	}
	raw, ok := row["category"]
	if !ok {
		raw, ok = row["type"]
	}
	if !ok {
		return nil, errors.New(`row has neither "category" nor "type"`)
	}
	text, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("group key field must be a string, got %T", raw)
	}
	return strings.ToLower(strings.TrimSpace(text)), nil
}

// monthBucket groups rows by the YYYY-MM prefix of their "date" field.
// RFC 3339 strings, date-only strings, and time.Time values are accepted.
func monthBucket(input any) (any, error) {
	row, ok := input.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a row object, got %T", input)
	}
	raw, ok := row["date"]
	if !ok {
		return nil, errors.New(`row has no "date" field`)
	}

	switch value := raw.(type) {
	case time.Time:
		return value.Format("2006-01"), nil
	case string:
		trimmed := strings.TrimSpace(value)
		for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01"} {
			if parsed, err := time.Parse(layout, trimmed); err == nil {
				return parsed.Format("2006-01"), nil
			}
		}
		return nil, fmt.Errorf("unparseable date %q", value)
	default:
		return nil, fmt.Errorf("date field must be a string or time, got %T", raw)
	}
}

// amountBand buckets a row's "amount" field into small / medium / large.
func amountBand(input any) (any, error) {
	row, ok := input.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a row object, got %T", input)
	}
	raw, ok := row["amount"]
	if !ok {
		return nil, errors.New(`row has no "amount" field`)
	}
	amount, ok := toFloat(raw)
	if !ok {
		return nil, fmt.Errorf("amount field must be numeric, got %T", raw)
	}

	switch {
	case amount < 100:
		return "small", nil
	case amount < 1000:
		return "medium", nil
	default:
		return "large", nil
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
