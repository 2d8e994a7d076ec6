// Package shell implements a tool that runs a shell command with a bounded
// timeout and a denylist of disallowed commands: command, timeout_ms,
// capture_stderr in; stdout, stderr, exit_code, timed_out out.
package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/nrcarlson/mcpcore/internal/logging"
	"github.com/nrcarlson/mcpcore/schema"
	"github.com/nrcarlson/mcpcore/tool"
)

var log = logging.For("tools/shell")

// maxCapturedBytes bounds stdout/stderr kept per call; the rest is dropped
// with a truncation marker.
const maxCapturedBytes = 10000

// Config controls a Tool's defaults and guardrails.
type Config struct {
	DefaultTimeout time.Duration
	MaxTimeout     time.Duration
	// Denied is a list of substrings; any command containing one is refused
	// outright rather than executed.
	Denied []string
}

// DefaultConfig matches the original's defaults: a 5s default timeout
// capped at 30s, with rm -rf / sudo / the classic fork bomb denied.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout: 5 * time.Second,
		MaxTimeout:     30 * time.Second,
		Denied:         []string{"rm -rf", "sudo", ":(){:|:&};:"},
	}
}

// Request is the input for Tool.
type Request struct {
	Command       string `json:"command"`
	TimeoutMS     int64  `json:"timeout_ms,omitempty"`
	CaptureStderr *bool  `json:"capture_stderr,omitempty"`
}

// Result is the output of Tool.
type Result struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
	TimedOut bool   `json:"timed_out"`
}

// Tool runs a command through "sh -c" under a bounded timeout.
type Tool struct {
	cfg Config
}

// New builds a Tool with cfg.
func New(cfg Config) *Tool {
	return &Tool{cfg: cfg}
}

func (t *Tool) Metadata() tool.Metadata {
	return tool.Metadata{
		ID:          "shell",
		Name:        "Shell Command",
		Description: "Executes a shell command with a configurable timeout and returns stdout, stderr, and exit code.",
		Category:    "shell",
		InputSchema: &schema.JSON{
			Type:     schema.Object,
			Required: []string{"command"},
			Properties: map[string]*schema.JSON{
				"command":        {Type: schema.String, Description: "The shell command to execute"},
				"timeout_ms":     {Type: "integer", Description: "Command timeout in milliseconds"},
				"capture_stderr": {Type: "boolean", Description: "Whether to capture stderr separately (default true)"},
			},
		},
	}
}

func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var req Request
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if strings.TrimSpace(req.Command) == "" {
		return nil, fmt.Errorf("missing required parameter: command")
	}

	for _, deny := range t.cfg.Denied {
		if strings.Contains(req.Command, deny) {
			log.Warn("shell command denied", "pattern", deny)
			return json.Marshal(Result{Stderr: "command not allowed for security reasons", ExitCode: 1})
		}
	}

	timeout := t.cfg.DefaultTimeout
	if req.TimeoutMS > 0 {
		timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}
	if timeout > t.cfg.MaxTimeout {
		timeout = t.cfg.MaxTimeout
	}

	captureStderr := true
	if req.CaptureStderr != nil {
		captureStderr = *req.CaptureStderr
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", req.Command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if captureStderr {
		cmd.Stderr = &stderr
	}

	log.Info("running shell command", "command", req.Command, "timeout", timeout)
	err := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		log.Warn("shell command timed out", "command", req.Command, "timeout", timeout)
		return json.Marshal(Result{
			Stdout:   truncate(stdout.String()),
			Stderr:   fmt.Sprintf("command timed out after %s", timeout),
			ExitCode: -1,
			TimedOut: true,
		})
	}

	if cmd.ProcessState == nil {
		return nil, fmt.Errorf("run command: %w", err)
	}

	return json.Marshal(Result{
		Stdout:   truncate(stdout.String()),
		Stderr:   truncate(stderr.String()),
		ExitCode: cmd.ProcessState.ExitCode(),
	})
}

func truncate(s string) string {
	if len(s) <= maxCapturedBytes {
		return s
	}
	return s[:maxCapturedBytes] + "\n... [output truncated] ..."
}
