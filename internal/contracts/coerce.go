package contracts

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Правила приведения слабо типизированных полей payload.
// Нераспознанное необязательное значение считается отсутствующим.

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func asFloat(v interface{}) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func floatPtr(v interface{}) *float64 {
	f, ok := asFloat(v)
	if !ok {
		return nil
	}
	return &f
}

// intPtr дробные значения усекаются
func intPtr(v interface{}) *int {
	f, ok := asFloat(v)
	if !ok {
		return nil
	}
	i := int(math.Trunc(f))
	return &i
}

func int64Ptr(v interface{}) *int64 {
	f, ok := asFloat(v)
	if !ok {
		return nil
	}
	i := int64(math.Trunc(f))
	return &i
}

func boolPtr(v interface{}) *bool {
	var b bool
	switch t := v.(type) {
	case bool:
		b = t
	case json.Number, float64:
		f, _ := asFloat(t)
		switch f {
		case 0:
			b = false
		case 1:
			b = true
		default:
			return nil
		}
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		b = parsed
	default:
		return nil
	}
	return &b
}

// timePtr понимает RFC 3339, время без зоны (UTC), дату и epoch в миллисекундах
func timePtr(v interface{}) *time.Time {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				ts = ts.UTC()
				return &ts
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			ts := time.UnixMilli(ms).UTC()
			return &ts
		}
	case json.Number, float64:
		if f, ok := asFloat(t); ok {
			ts := time.UnixMilli(int64(f)).UTC()
			return &ts
		}
	}
	return nil
}

// stringList принимает массив строк или строку через запятую
func stringList(v interface{}) []string {
	var out []string
	switch t := v.(type) {
	case []interface{}:
		for _, item := range t {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, part := range strings.Split(t, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// first возвращает значение первого присутствующего ключа
func first(m map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
