package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

func (f *Field) IsNumeric() bool {
	switch f.Type {
	case TypeNumber, TypeInteger, TypeID, TypeRef:
		return true
	}
	return false
}

func (f *Field) IsTemporal() bool {
	return f.Type == TypeDate || f.Type == TypeTimestamp
}

// AllowsValue reports whether v is a member of an enum field.
func (f *Field) AllowsValue(v string) bool {
	for _, m := range f.Values {
		if m == v {
			return true
		}
	}
	return false
}

// Coerce converts a query-string value to the column's Go type.
// ok is false when the text cannot represent a value of that type.
func (f *Field) Coerce(raw string) (any, bool) {
	switch f.Type {
	case TypeID, TypeRef, TypeInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, false
		}
		return n, true
	case TypeNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, false
		}
		return n, true
	case TypeBoolean:
		b, ok := parseBool(raw)
		if !ok {
			return nil, false
		}
		return b, true
	case TypeDate:
		t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
		if err != nil {
			if ts, ok := parseTimestamp(raw); ok {
				y, m, d := ts.Date()
				return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
			}
			return nil, false
		}
		return t, true
	case TypeTimestamp:
		if t, err := time.Parse(DateLayout, strings.TrimSpace(raw)); err == nil {
			return t, true
		}
		t, ok := parseTimestamp(raw)
		if !ok {
			return nil, false
		}
		return t, true
	default:
		return raw, true
	}
}

// CoerceUpper is Coerce for an inclusive upper bound: a bare date on a timestamp
// column covers the whole day.
func (f *Field) CoerceUpper(raw string) (any, bool) {
	if f.Type == TypeTimestamp {
		if t, err := time.Parse(DateLayout, strings.TrimSpace(raw)); err == nil {
			return t.Add(24*time.Hour - time.Microsecond), true
		}
	}
	return f.Coerce(raw)
}

// Normalize converts a decoded JSON value to the column type. A nil value is kept as nil.
func (f *Field) Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Type {
	case TypeID, TypeRef, TypeInteger:
		switch x := v.(type) {
		case float64:
			if x != math.Trunc(x) {
				return nil, fmt.Errorf("must be an integer")
			}
			return int64(x), nil
		case int64:
			return x, nil
		case int:
			return int64(x), nil
		case string:
			if n, ok := f.Coerce(x); ok {
				return n, nil
			}
		}
		return nil, fmt.Errorf("must be an integer")
	case TypeNumber:
		switch x := v.(type) {
		case float64:
			return x, nil
		case int64:
			return float64(x), nil
		case int:
			return float64(x), nil
		case string:
			if n, ok := f.Coerce(x); ok {
				return n, nil
			}
		}
		return nil, fmt.Errorf("must be a number")
	case TypeBoolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case float64:
			if x == 0 || x == 1 {
				return x == 1, nil
			}
		case string:
			if b, ok := parseBool(x); ok {
				return b, nil
			}
		}
		return nil, fmt.Errorf("must be true or false")
	case TypeDate, TypeTimestamp:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			if t, ok := f.Coerce(x); ok {
				return t, nil
			}
		}
		if f.Type == TypeDate {
			return nil, fmt.Errorf("is not a valid date")
		}
		return nil, fmt.Errorf("is not a valid date-time")
	default:
		switch x := v.(type) {
		case string:
			return x, nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		case bool:
			return strconv.FormatBool(x), nil
		}
		return nil, fmt.Errorf("must be a string")
	}
}

// FromDB maps driver values to their JSON representation.
func (f *Field) FromDB(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		v = string(x)
	}
	switch f.Type {
	case TypeNumber:
		switch x := v.(type) {
		case string:
			if n, err := strconv.ParseFloat(x, 64); err == nil {
				return n
			}
		case int64:
			return float64(x)
		case float32:
			return float64(x)
		}
	case TypeID, TypeRef, TypeInteger:
		switch x := v.(type) {
		case int32:
			return int64(x)
		case int:
			return int64(x)
		case string:
			if n, err := strconv.ParseInt(x, 10, 64); err == nil {
				return n
			}
		}
	case TypeDate:
		if t, ok := v.(time.Time); ok {
			return t.Format(DateLayout)
		}
	case TypeTimestamp:
		if t, ok := v.(time.Time); ok {
			return t.UTC()
		}
	}
	return v
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
