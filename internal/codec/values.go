package codec

import "time"

// The helpers below unpack FromStorage results inside field setters. A nil
// value yields the zero value or a nil pointer.

func Int64(v any) int64 {
	n, _ := v.(int64)
	return n
}

func Int64Ptr(v any) *int64 {
	n, ok := v.(int64)
	if !ok {
		return nil
	}
	return &n
}

func String(v any) string {
	s, _ := v.(string)
	return s
}

func StringPtr(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func Bool(v any) bool {
	b, _ := v.(bool)
	return b
}

func Float64(v any) float64 {
	f, _ := v.(float64)
	return f
}

func Time(v any) time.Time {
	switch ts := v.(type) {
	case time.Time:
		return ts
	case *time.Time:
		if ts != nil {
			return *ts
		}
	}
	return time.Time{}
}

func TimePtr(v any) *time.Time {
	switch ts := v.(type) {
	case *time.Time:
		return ts
	case time.Time:
		return &ts
	}
	return nil
}
