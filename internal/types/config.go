package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IntOption reads an integer config value, accepting JSON numbers and strings.
func IntOption(config map[string]any, key string, def int) int {
	raw, ok := config[key]
	if !ok {
		return def
	}
	switch v := raw.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// DurationOption reads a duration config value. Numbers are seconds; strings
// may be Go durations ("90s") or plain seconds ("90").
func DurationOption(config map[string]any, key string, def time.Duration) time.Duration {
	raw, ok := config[key]
	if !ok {
		return def
	}
	switch v := raw.(type) {
	case time.Duration:
		return v
	case int:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return def
}

// StringOption reads a string config value.
func StringOption(config map[string]any, key, def string) string {
	raw, ok := config[key]
	if !ok || raw == nil {
		return def
	}
	s := fmt.Sprint(raw)
	if s == "" {
		return def
	}
	return s
}

// StringsOption reads a list of strings. A single string is split on commas.
func StringsOption(config map[string]any, key string) []string {
	raw, ok := config[key]
	if !ok || raw == nil {
		return nil
	}

	var out []string
	switch v := raw.(type) {
	case []string:
		out = append(out, v...)
	case []any:
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
	case string:
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
