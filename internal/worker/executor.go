package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultMaxOutput caps the bytes kept from each of stdout and stderr.
const DefaultMaxOutput = 64 << 10

// Executor runs a job command and reports how it ended. A returned error means
// the command could not be run to completion (not found, not startable, timed
// out); the scheduler counts it as a failed attempt.
type Executor interface {
	Execute(ctx context.Context, command string) (ExecResult, error)
}

type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// ShellExecutor runs commands through "sh -c".
type ShellExecutor struct {
	Shell     string
	Timeout   time.Duration
	MaxOutput int
}

func NewShellExecutor(timeout time.Duration) *ShellExecutor {
	return &ShellExecutor{Shell: "sh", Timeout: timeout, MaxOutput: DefaultMaxOutput}
}

func (e *ShellExecutor) Execute(ctx context.Context, command string) (ExecResult, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	shell := e.Shell
	if shell == "" {
		shell = "sh"
	}

	stdout := &cappedBuffer{limit: e.MaxOutput}
	stderr := &cappedBuffer{limit: e.MaxOutput}

	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	res := ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case ctx.Err() != nil:
		res.ExitCode = -1
		return res, fmt.Errorf("command did not finish: %w", ctx.Err())
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		res.ExitCode = -1
		return res, fmt.Errorf("run command: %w", err)
	}
}

// cappedBuffer keeps the first limit bytes written and silently drops the
// rest, so a chatty command cannot exhaust memory or block on a full pipe.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.limit <= 0 {
		return b.buf.Write(p)
	}
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
			b.truncated = true
		} else {
			b.buf.Write(p)
		}
	} else if len(p) > 0 {
		b.truncated = true
	}
	return len(p), nil
}

// String returns the captured output as valid UTF-8. A character split by the
// cap is dropped and any other invalid byte becomes U+FFFD.
func (b *cappedBuffer) String() string {
	out := b.buf.Bytes()
	if b.truncated {
		out = trimPartialRune(out)
	}
	return strings.ToValidUTF8(string(out), "\uFFFD")
}

// trimPartialRune drops a trailing multi-byte sequence that was cut short.
func trimPartialRune(p []byte) []byte {
	for i := len(p) - 1; i >= 0 && i >= len(p)-utf8.UTFMax; i-- {
		if utf8.RuneStart(p[i]) {
			if !utf8.FullRune(p[i:]) {
				return p[:i]
			}
			break
		}
	}
	return p
}
