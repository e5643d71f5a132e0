package jobs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/danpasecinic/harvester/internal/jobs/docker"
	"github.com/danpasecinic/harvester/internal/types"
)

// ErrNoResult is returned when a job container exits without printing a result.
var ErrNoResult = errors.New("container produced no result")

const (
	logTail        = 200
	cleanupTimeout = 30 * time.Second
)

// ContainerRuntime runs one-shot job containers.
type ContainerRuntime interface {
	PullImage(ctx context.Context, imageName string) error
	CreateContainer(ctx context.Context, spec docker.ContainerSpec) (string, error)
	StartContainer(ctx context.Context, containerID string) error
	WaitContainer(ctx context.Context, containerID string) (int64, error)
	GetContainerLogs(ctx context.Context, containerID string, tail int) (string, string, error)
	StopContainer(ctx context.Context, containerID string) error
	RemoveContainer(ctx context.Context, containerID string) error
}

// ContainerJob runs a scraper image for one job type. The job config is passed
// as JSON in JOB_CONFIG and the result is read from the last JSON object the
// container prints on stdout.
type ContainerJob struct {
	runtime      ContainerRuntime
	jobType      string
	defaultImage string
}

// NewContainerJob creates a container-backed job.
func NewContainerJob(runtime ContainerRuntime, jobType, defaultImage string) *ContainerJob {
	return &ContainerJob{
		runtime:      runtime,
		jobType:      jobType,
		defaultImage: defaultImage,
	}
}

// Run pulls the image, runs the container to completion and parses its result.
// Cancelling ctx stops the container.
func (j *ContainerJob) Run(ctx context.Context, config map[string]any) (*types.JobResult, error) {
	imageName := types.StringOption(config, "image", j.defaultImage)
	if imageName == "" {
		return nil, fmt.Errorf("no image configured for job %s", j.jobType)
	}

	limits, err := types.ParseResourceLimits(config)
	if err != nil {
		return nil, fmt.Errorf("invalid resource limits: %w", err)
	}

	payload, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job config: %w", err)
	}

	if err := j.runtime.PullImage(ctx, imageName); err != nil {
		return nil, err
	}

	containerID, err := j.runtime.CreateContainer(
		ctx, docker.ContainerSpec{
			Image: imageName,
			Env: []string{
				"JOB_TYPE=" + j.jobType,
				"JOB_CONFIG=" + string(payload),
			},
			Labels: map[string]string{"harvester.job": j.jobType},
			Limits: limits,
		},
	)
	if err != nil {
		return nil, err
	}
	defer j.remove(containerID)

	if err := j.runtime.StartContainer(ctx, containerID); err != nil {
		return nil, err
	}
	log.Printf("[jobs] job=%s started container=%s image=%s", j.jobType, shortID(containerID), imageName)
	types.ReportProgress(ctx, types.Progress{Percent: 10, Message: "container started"})

	exitCode, err := j.runtime.WaitContainer(ctx, containerID)
	if ctx.Err() != nil {
		j.stop(containerID)
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}

	stdout, stderr, err := j.runtime.GetContainerLogs(ctx, containerID, logTail)
	if err != nil {
		return nil, err
	}

	if exitCode != 0 {
		return nil, fmt.Errorf("container exited with code %d: %s", exitCode, lastLine(stderr, stdout))
	}

	return parseResult(stdout)
}

func (j *ContainerJob) stop(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if err := j.runtime.StopContainer(ctx, containerID); err != nil {
		log.Printf("[jobs] failed to stop container=%s: %v", shortID(containerID), err)
	}
}

func (j *ContainerJob) remove(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if err := j.runtime.RemoveContainer(ctx, containerID); err != nil {
		log.Printf("[jobs] failed to remove container=%s: %v", shortID(containerID), err)
	}
}

// parseResult decodes the last line of output that is a JSON object.
func parseResult(output string) (*types.JobResult, error) {
	var last string
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}") {
			last = line
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read container output: %w", err)
	}
	if last == "" {
		return nil, ErrNoResult
	}

	var result types.JobResult
	if err := json.Unmarshal([]byte(last), &result); err != nil {
		return nil, fmt.Errorf("invalid result line: %w", err)
	}
	return &result, nil
}

func lastLine(outputs ...string) string {
	for _, out := range outputs {
		lines := strings.Split(strings.TrimSpace(out), "\n")
		if last := strings.TrimSpace(lines[len(lines)-1]); last != "" {
			return last
		}
	}
	return "no output"
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
