package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// parseConfig turns KEY=VALUE pairs into a job config. Values that parse as
// JSON (numbers, booleans, arrays) keep their type; anything else is a string.
func parseConfig(pairs []string) (map[string]any, error) {
	config := make(map[string]any)
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid config %q, expected KEY=VALUE", pair)
		}

		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			config[key] = parsed
		} else {
			config[key] = value
		}
	}
	return config, nil
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
