package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// DefaultTimeout bounds a plugin run when the executor is given none.
const DefaultTimeout = 5 * time.Second

// ErrTimeout is returned when a plugin outlives the executor's timeout.
var ErrTimeout = errors.New("plugin execution timed out")

// Executor runs plugins with a timeout.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates an Executor. Non-positive timeouts use DefaultTimeout.
func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{timeout: timeout}
}

// Timeout returns the per-run limit.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Execute runs plugin with req on stdin and decodes its stdout. A Response
// with Success false is returned without error; the error return covers
// failures to run the plugin at all.
func (e *Executor) Execute(ctx context.Context, plugin *Plugin, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request for %s: %w", plugin.Manifest.Name, err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, plugin.Executable)
	cmd.Dir = plugin.Path
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%s after %s: %w", plugin.Manifest.Name, e.timeout, ErrTimeout)
	}
	if err != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return nil, fmt.Errorf("running %s: %w: %s", plugin.Manifest.Name, err, msg)
		}
		return nil, fmt.Errorf("running %s: %w", plugin.Manifest.Name, err)
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("decoding response from %s: %w (stdout: %q)", plugin.Manifest.Name, err, stdout.String())
	}
	return &resp, nil
}
