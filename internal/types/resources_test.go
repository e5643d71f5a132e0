package types

import (
	"testing"
)

func TestParseCPU(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"empty string", "", 0, false},
		{"millicores", "500m", 500, false},
		{"one core", "1", 1000, false},
		{"one core with m", "1000m", 1000, false},
		{"two cores", "2", 2000, false},
		{"half core decimal", "0.5", 500, false},
		{"two and half cores", "2.5", 2500, false},
		{"invalid format", "abc", 0, true},
		{"invalid millicores", "abcm", 0, true},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				got, err := ParseCPU(tt.input)
				if (err != nil) != tt.wantErr {
					t.Errorf("ParseCPU() error = %v, wantErr %v", err, tt.wantErr)
					return
				}
				if got != tt.want {
					t.Errorf("ParseCPU() = %v, want %v", got, tt.want)
				}
			},
		)
	}
}

func TestParseMemory(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"empty string", "", 0, false},
		{"bytes", "1024", 1024, false},
		{"Ki", "1Ki", 1024, false},
		{"Mi", "256Mi", 256 * 1024 * 1024, false},
		{"Gi", "1Gi", 1024 * 1024 * 1024, false},
		{"Ti", "1Ti", 1024 * 1024 * 1024 * 1024, false},
		{"K decimal", "1K", 1000, false},
		{"M decimal", "512M", 512 * 1000 * 1000, false},
		{"G decimal", "2G", 2 * 1000 * 1000 * 1000, false},
		{"T decimal", "1T", 1000 * 1000 * 1000 * 1000, false},
		{"decimal Mi", "1.5Mi", int64(1.5 * 1024 * 1024), false},
		{"invalid format", "abc", 0, true},
		{"invalid unit", "123xyz", 0, true},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				got, err := ParseMemory(tt.input)
				if (err != nil) != tt.wantErr {
					t.Errorf("ParseMemory() error = %v, wantErr %v", err, tt.wantErr)
					return
				}
				if got != tt.want {
					t.Errorf("ParseMemory() = %v, want %v", got, tt.want)
				}
			},
		)
	}
}

func TestFormatMemory(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"zero", 0, "0"},
		{"bytes", 512, "512"},
		{"Ki", 2048, "2Ki"},
		{"Mi", 256 * 1024 * 1024, "256Mi"},
		{"Gi", 2 * 1024 * 1024 * 1024, "2.0Gi"},
		{"Ti", 1024 * 1024 * 1024 * 1024, "1.0Ti"},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				got := FormatMemory(tt.bytes)
				if got != tt.want {
					t.Errorf("FormatMemory() = %v, want %v", got, tt.want)
				}
			},
		)
	}
}

func TestParseResourceLimits(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]any
		want    ResourceLimits
		wantErr bool
	}{
		{"no limits", map[string]any{"pages": 3}, ResourceLimits{}, false},
		{"cpu only", map[string]any{"cpu": "500m"}, ResourceLimits{CPU: 500}, false},
		{"memory only", map[string]any{"memory": "256Mi"}, ResourceLimits{Memory: 256 * 1024 * 1024}, false},
		{"numeric cpu", map[string]any{"cpu": 2}, ResourceLimits{CPU: 2000}, false},
		{"both", map[string]any{"cpu": "1", "memory": "1Gi"}, ResourceLimits{CPU: 1000, Memory: 1024 * 1024 * 1024}, false},
		{"bad memory", map[string]any{"memory": "lots"}, ResourceLimits{}, true},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				got, err := ParseResourceLimits(tt.config)
				if (err != nil) != tt.wantErr {
					t.Fatalf("ParseResourceLimits() error = %v, wantErr %v", err, tt.wantErr)
				}
				if !tt.wantErr && got != tt.want {
					t.Errorf("ParseResourceLimits() = %+v, want %+v", got, tt.want)
				}
			},
		)
	}
}

func TestResourceLimits_NanoCPUs(t *testing.T) {
	limits := ResourceLimits{CPU: 1500}
	if got := limits.NanoCPUs(); got != 1_500_000_000 {
		t.Errorf("NanoCPUs() = %d, want 1500000000", got)
	}
	if !(ResourceLimits{}).IsZero() {
		t.Error("expected empty limits to be zero")
	}
}
