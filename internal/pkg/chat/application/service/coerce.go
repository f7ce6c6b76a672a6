package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Ordered-priority coercion for loosely-typed stored values. Records written
// before a schema migration may carry string timestamps, numeric booleans or
// missing identifiers; these helpers normalize them without ever failing.

// coerceString renders v as a string, with nil becoming the empty string.
func coerceString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// coerceISOTime normalizes a timestamp value to an ISO-8601 string. Priority:
// native time, ISO-8601 string, zoned-date-time string, epoch-milliseconds
// numeric string. An unparseable string passes through unchanged; anything
// else falls back to the current time.
func coerceISOTime(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed.UTC().Format(time.RFC3339Nano)
		}
		// Zoned form with a trailing region, e.g. "...+01:00[Europe/Paris]".
		if i := strings.IndexByte(t, '['); i > 0 {
			if parsed, err := time.Parse(time.RFC3339Nano, t[:i]); err == nil {
				return parsed.UTC().Format(time.RFC3339Nano)
			}
		}
		if millis, err := strconv.ParseInt(t, 10, 64); err == nil {
			return time.UnixMilli(millis).UTC().Format(time.RFC3339Nano)
		}
		return t
	case int64:
		return time.UnixMilli(t).UTC().Format(time.RFC3339Nano)
	case float64:
		return time.UnixMilli(int64(t)).UTC().Format(time.RFC3339Nano)
	default:
		return time.Now().UTC().Format(time.RFC3339Nano)
	}
}

// coerceBool normalizes a boolean value: native bool, nonzero number, or the
// strings "true"/"1" (case-insensitive). Everything else is false.
func coerceBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int:
		return b != 0
	case int16:
		return b != 0
	case int32:
		return b != 0
	case int64:
		return b != 0
	case float32:
		return b != 0
	case float64:
		return b != 0
	case string:
		return strings.EqualFold(b, "true") || b == "1"
	default:
		return false
	}
}
