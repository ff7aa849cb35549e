package rest

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// paramErrors копит ошибки разбора query-параметров, чтобы вернуть их одним ответом
type paramErrors []string

func (e *paramErrors) add(name, value, want string) {
	*e = append(*e, fmt.Sprintf("%s: %q is not a valid %s", name, value, want))
}

func (e paramErrors) err() error {
	if len(e) == 0 {
		return nil
	}
	return fmt.Errorf("invalid query parameters: %s", strings.Join(e, "; "))
}

func parseString(q url.Values, key string) string {
	return strings.TrimSpace(q.Get(key))
}

func parseFloat(q url.Values, key string, errs *paramErrors) *float64 {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		errs.add(key, raw, "number")
		return nil
	}
	return &v
}

func parseInt(q url.Values, key string, errs *paramErrors) *int {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		errs.add(key, raw, "integer")
		return nil
	}
	return &v
}

func parseBool(q url.Values, key string, errs *paramErrors) bool {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		errs.add(key, raw, "boolean")
		return false
	}
	return v
}

// intOr значение параметра или def, если он не задан
func intOr(q url.Values, key string, def int, errs *paramErrors) int {
	if v := parseInt(q, key, errs); v != nil {
		return *v
	}
	return def
}
