package docker

import (
	"context"
	"testing"
	"time"

	"github.com/danpasecinic/harvester/internal/types"
)

func TestNewClient(t *testing.T) {
	client, err := NewClient()
	if err != nil {
		t.Skipf("Docker not available: %v", err)
	}
	defer func() { _ = client.Close() }()

	if client.cli == nil {
		t.Fatal("expected non-nil underlying docker client")
	}
}

func TestClose(t *testing.T) {
	client, err := NewClient()
	if err != nil {
		t.Skipf("Docker not available: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	// Should not panic on double close
	if err := client.Close(); err != nil {
		t.Errorf("Close() on closed client error = %v", err)
	}
}

func TestRunContainer(t *testing.T) {
	client, err := NewClient()
	if err != nil {
		t.Skipf("Docker not available: %v", err)
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		t.Skipf("Docker daemon not reachable: %v", err)
	}
	if err := client.PullImage(ctx, "alpine:latest"); err != nil {
		t.Skipf("cannot pull alpine: %v", err)
	}

	id, err := client.CreateContainer(
		ctx, ContainerSpec{
			Image:  "alpine:latest",
			Env:    []string{`JOB_CONFIG={"pages":1}`},
			Labels: map[string]string{"harvester.test": "true"},
			Limits: types.ResourceLimits{Memory: 64 * 1024 * 1024},
		},
	)
	if err != nil {
		t.Fatalf("CreateContainer() error = %v", err)
	}
	defer func() { _ = client.RemoveContainer(context.Background(), id) }()

	if err := client.StartContainer(ctx, id); err != nil {
		t.Fatalf("StartContainer() error = %v", err)
	}

	code, err := client.WaitContainer(ctx, id)
	if err != nil {
		t.Fatalf("WaitContainer() error = %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}

	if _, _, err := client.GetContainerLogs(ctx, id, 10); err != nil {
		t.Errorf("GetContainerLogs() error = %v", err)
	}
}
