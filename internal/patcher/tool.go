package patcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTool is the binary-diff tool looked up on PATH when none is configured.
const DefaultTool = "flips"

// Runner applies a binary-diff patch to target, writing the result to output.
type Runner interface {
	Run(ctx context.Context, patchFile, target, output string) error
}

// Tool invokes an external patcher with the contract
// `<tool> -a <patchFile> <targetFile> <outputFile>`.
type Tool struct {
	Path    string
	Timeout time.Duration

	resolved string
}

// NewTool returns a Tool for path. A zero timeout waits forever.
func NewTool(path string, timeout time.Duration) *Tool {
	if path == "" {
		path = DefaultTool
	}
	return &Tool{Path: path, Timeout: timeout}
}

// Probe checks that the tool exists and is executable.
func (t *Tool) Probe() error {
	p, err := exec.LookPath(t.Path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrToolUnavailable, t.Path, err)
	}
	t.resolved = p
	return nil
}

// Resolved returns the path found by Probe, or "" if it has not succeeded.
func (t *Tool) Resolved() string {
	return t.resolved
}

// Run executes the tool as an argument vector; no shell is involved.
func (t *Tool) Run(ctx context.Context, patchFile, target, output string) error {
	if t.resolved == "" {
		if err := t.Probe(); err != nil {
			return err
		}
	}

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, t.resolved, "-a", patchFile, target, output)
	cmd.WaitDelay = time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: timed out after %s", ErrPatchTool, t.Timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("%w: %v", ErrPatchTool, err)
		}
		return fmt.Errorf("%w: %v: %s", ErrPatchTool, err, msg)
	}
	return nil
}
