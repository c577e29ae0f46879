package signer

import (
	"context"
	"encoding/json"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// ContainerState is an out-of-band observation of the signer process.
type ContainerState struct {
	// State is the raw state string, e.g. "running" or "exited".
	State string
	// Running reports whether the container is in the running state.
	Running bool
	// LogLines holds the most recent diagnostic output, captured only when
	// the container is not running.
	LogLines []string
}

// ContainerInspector observes the signer's process state out of band.
type ContainerInspector interface {
	Inspect(ctx context.Context) (*ContainerState, error)
}

// DockerInspector observes the signer's docker compose service. It only
// reads state; lifecycle control lives elsewhere.
type DockerInspector struct {
	service string
	timeout time.Duration
}

// NewDockerInspector creates an inspector for a compose service
func NewDockerInspector(service string, timeout time.Duration) *DockerInspector {
	return &DockerInspector{service: service, timeout: timeout}
}

var composeLogPrefix = regexp.MustCompile(`^[\w.-]+-\d+\s+\|\s*`)

// Inspect queries docker compose for the service state and, when the
// container is down, grabs its last log lines for error extraction.
func (d *DockerInspector) Inspect(ctx context.Context) (*ContainerState, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "docker", "compose", "ps", "--format", "json", d.service).Output()
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return &ContainerState{State: "not created"}, nil
	}

	var info struct {
		State      string `json:"State"`
		StateLower string `json:"state"`
	}
	if err := json.Unmarshal([]byte(trimmed), &info); err != nil {
		return nil, err
	}

	state := strings.ToLower(info.State)
	if state == "" {
		state = strings.ToLower(info.StateLower)
	}

	result := &ContainerState{
		State:   state,
		Running: state == "running",
	}

	if !result.Running {
		// Best effort: recent logs for the error message
		logs, err := exec.CommandContext(ctx, "docker", "compose", "logs", "--no-color", "--tail=3", d.service).CombinedOutput()
		if err == nil {
			for _, line := range strings.Split(string(logs), "\n") {
				line = composeLogPrefix.ReplaceAllString(strings.TrimSpace(line), "")
				if line != "" {
					result.LogLines = append(result.LogLines, line)
				}
			}
		}
	}

	return result, nil
}
