package bridge

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// maxNestingDepth bounds the recursion into nested "order" objects
const maxNestingDepth = 8

// timestampLayouts are the ISO-8601 forms accepted for timestamps.
// Zone-less values are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// lookupField returns the first value found for any of keys, searching the
// payload itself and then nested "order" objects.
func lookupField(payload map[string]any, keys ...string) (any, bool) {
	current := payload
	for depth := 0; current != nil && depth <= maxNestingDepth; depth++ {
		for _, key := range keys {
			if v, ok := current[key]; ok && v != nil {
				return v, true
			}
		}
		nested, ok := current["order"].(map[string]any)
		if !ok {
			return nil, false
		}
		current = nested
	}
	return nil, false
}

// ExtractOrderID finds the order id in a payload: "orderId", then "id", then
// a nested "order" object, recursively. Integer numbers and numeric strings
// are accepted; the id must be positive.
func ExtractOrderID(payload map[string]any) (int64, bool) {
	current := payload
	for depth := 0; current != nil && depth <= maxNestingDepth; depth++ {
		if id, ok := toInt64(current["orderId"]); ok {
			return id, true
		}
		if id, ok := toInt64(current["id"]); ok {
			return id, true
		}
		nested, ok := current["order"].(map[string]any)
		if !ok {
			return 0, false
		}
		current = nested
	}
	return 0, false
}

func toInt64(v any) (int64, bool) {
	var id int64
	switch n := v.(type) {
	case nil:
		return 0, false
	case json.Number:
		if i, err := n.Int64(); err == nil {
			id = i
		} else if f, err := n.Float64(); err == nil && isIntegral(f) {
			id = int64(f)
		} else {
			return 0, false
		}
	case float64:
		if !isIntegral(n) {
			return 0, false
		}
		id = int64(n)
	case float32:
		if !isIntegral(float64(n)) {
			return 0, false
		}
		id = int64(n)
	case int:
		id = int64(n)
	case int32:
		id = int64(n)
	case int64:
		id = n
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		id = i
	default:
		return 0, false
	}
	if id <= 0 {
		return 0, false
	}
	return id, true
}

func isIntegral(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f == math.Trunc(f) &&
		f >= math.MinInt64 && f < math.MaxInt64
}

// parseTimestamp accepts an ISO-8601 string or a number of epoch milliseconds
func parseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
		return time.Time{}, false
	case json.Number:
		ms, err := t.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms).UTC(), true
	case float64:
		if !isIntegral(t) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(t)).UTC(), true
	case int64:
		return time.UnixMilli(t).UTC(), true
	}
	return time.Time{}, false
}
