// Package docker drives the dependent inference container through the
// docker CLI. The container is an opaque collaborator: the switcher only
// checks its status, restarts it, and tails its logs.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultCommandTimeout bounds each docker CLI invocation
	DefaultCommandTimeout = 60 * time.Second
)

// RestartError indicates the restart command itself failed
type RestartError struct {
	Container string
	Stderr    string
	Err       error
}

func (e *RestartError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("failed to restart container %s: %s", e.Container, e.Stderr)
	}
	return fmt.Sprintf("failed to restart container %s: %v", e.Container, e.Err)
}

func (e *RestartError) Unwrap() error {
	return e.Err
}

// CommandRunner executes a docker CLI command and returns stdout.
// The production implementation shells out; tests substitute a fake.
type CommandRunner interface {
	Run(ctx context.Context, args ...string) (stdout string, stderr string, err error)
}

// execRunner runs the real docker binary
type execRunner struct {
	binary string
}

func (r *execRunner) Run(ctx context.Context, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, r.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Client wraps container control operations
type Client struct {
	runner         CommandRunner
	commandTimeout time.Duration
}

// Option configures the Client
type Option func(*Client)

// WithRunner substitutes the command runner (for testing)
func WithRunner(r CommandRunner) Option {
	return func(c *Client) {
		c.runner = r
	}
}

// WithCommandTimeout sets the per-command timeout
func WithCommandTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.commandTimeout = d
	}
}

// NewClient creates a docker client
func NewClient(opts ...Option) *Client {
	c := &Client{
		runner:         &execRunner{binary: "docker"},
		commandTimeout: DefaultCommandTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Available reports whether the docker daemon answers at all
func (c *Client) Available(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.commandTimeout)
	defer cancel()

	if _, stderr, err := c.runner.Run(ctx, "info", "--format", "{{.ServerVersion}}"); err != nil {
		return fmt.Errorf("docker is not available: %s", firstNonEmpty(strings.TrimSpace(stderr), err.Error()))
	}
	return nil
}

// IsRunning reports whether a container with the given name is running
func (c *Client) IsRunning(ctx context.Context, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.commandTimeout)
	defer cancel()

	stdout, stderr, err := c.runner.Run(ctx, "ps",
		"--filter", "name=^"+name+"$",
		"--filter", "status=running",
		"--format", "{{.Names}}")
	if err != nil {
		return false, fmt.Errorf("failed to query container status: %s", firstNonEmpty(strings.TrimSpace(stderr), err.Error()))
	}

	for _, line := range strings.Split(stdout, "\n") {
		if strings.TrimSpace(line) == name {
			return true, nil
		}
	}
	return false, nil
}

// Restart issues a restart for the container
func (c *Client) Restart(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, c.commandTimeout)
	defer cancel()

	if _, stderr, err := c.runner.Run(ctx, "restart", name); err != nil {
		return &RestartError{
			Container: name,
			Stderr:    strings.TrimSpace(stderr),
			Err:       err,
		}
	}
	return nil
}

// LogTail returns the container's most recent log lines for diagnostics.
// Best-effort: an error yields an empty tail.
func (c *Client) LogTail(ctx context.Context, name string, lines int) string {
	ctx, cancel := context.WithTimeout(ctx, c.commandTimeout)
	defer cancel()

	stdout, stderr, err := c.runner.Run(ctx, "logs", "--tail", strconv.Itoa(lines), name)
	if err != nil {
		return ""
	}
	// docker logs writes container stderr to our stderr stream
	return strings.TrimRight(stdout+stderr, "\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
