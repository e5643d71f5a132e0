package types

import (
	"fmt"
	"strconv"
	"strings"
)

// ResourceLimits caps the compute resources of a containerized job run.
type ResourceLimits struct {
	// CPU in millicores (1000m = 1 CPU core)
	// Examples: "500m" (half a core), "2000m" or "2" (2 cores)
	CPU int64 `json:"cpu,omitempty"`

	// Memory in bytes
	// Can be parsed from strings like "256Mi", "1Gi", "512000000" (bytes)
	Memory int64 `json:"memory,omitempty"`
}

// ParseResourceLimits reads the optional "cpu" and "memory" keys of a job config.
func ParseResourceLimits(config map[string]any) (ResourceLimits, error) {
	var limits ResourceLimits

	if raw, ok := config["cpu"]; ok {
		cpu, err := ParseCPU(fmt.Sprint(raw))
		if err != nil {
			return limits, err
		}
		limits.CPU = cpu
	}

	if raw, ok := config["memory"]; ok {
		mem, err := ParseMemory(fmt.Sprint(raw))
		if err != nil {
			return limits, err
		}
		limits.Memory = mem
	}

	return limits, nil
}

// ParseCPU parses a CPU quantity string into millicores
// Supports formats: "500m" (millicores), "1" or "1000m" (1 core), "2.5" (2.5 cores)
func ParseCPU(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}

	if strings.HasSuffix(s, "m") {
		millis := strings.TrimSuffix(s, "m")
		return strconv.ParseInt(millis, 10, 64)
	}

	cores, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid CPU format: %s", s)
	}

	return int64(cores * 1000), nil
}

// ParseMemory parses a memory quantity string into bytes
// Supports formats: "256Mi", "1Gi", "512000000" (bytes), "512M", "1G"
func ParseMemory(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}

	for _, unit := range []struct {
		suffix     string
		multiplier int64
	}{
		{"Ti", 1024 * 1024 * 1024 * 1024},
		{"Gi", 1024 * 1024 * 1024},
		{"Mi", 1024 * 1024},
		{"Ki", 1024},
		{"T", 1000 * 1000 * 1000 * 1000},
		{"G", 1000 * 1000 * 1000},
		{"M", 1000 * 1000},
		{"K", 1000},
	} {
		if strings.HasSuffix(s, unit.suffix) {
			numStr := strings.TrimSuffix(s, unit.suffix)
			num, err := strconv.ParseFloat(numStr, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid memory format: %s", s)
			}
			return int64(num * float64(unit.multiplier)), nil
		}
	}

	bytes, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memory format: %s", s)
	}

	return bytes, nil
}

// FormatMemory formats bytes as a human-readable string
func FormatMemory(bytes int64) string {
	if bytes == 0 {
		return "0"
	}

	const (
		Ki = 1024
		Mi = 1024 * Ki
		Gi = 1024 * Mi
		Ti = 1024 * Gi
	)

	switch {
	case bytes >= Ti:
		return fmt.Sprintf("%.1fTi", float64(bytes)/float64(Ti))
	case bytes >= Gi:
		return fmt.Sprintf("%.1fGi", float64(bytes)/float64(Gi))
	case bytes >= Mi:
		return fmt.Sprintf("%.0fMi", float64(bytes)/float64(Mi))
	case bytes >= Ki:
		return fmt.Sprintf("%.0fKi", float64(bytes)/float64(Ki))
	default:
		return fmt.Sprintf("%d", bytes)
	}
}

// NanoCPUs returns the CPU limit in the unit the Docker API expects
func (rl ResourceLimits) NanoCPUs() int64 {
	return rl.CPU * 1_000_000
}

// IsZero returns true if no limit is specified
func (rl ResourceLimits) IsZero() bool {
	return rl.CPU == 0 && rl.Memory == 0
}
