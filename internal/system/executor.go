package system

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/firefly-engineering/volsync/internal/logging"
)

type osExecutor struct{}

func (e *osExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// CommandError reports a command that exited unsuccessfully.
type CommandError struct {
	Command string // Shell-quoted command line, for display only
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, e.Output)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// CommandLine renders argv as a shell-quoted line for logs and errors.
func CommandLine(name string, args ...string) string {
	return shellquote.Join(append([]string{name}, args...)...)
}

// Run executes a command through executor, bounding it by timeout when positive.
// Failures come back as *CommandError carrying the trimmed output.
func Run(ctx context.Context, executor CommandExecutor, timeout time.Duration, name string, args ...string) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	line := CommandLine(name, args...)
	logging.Debug("running command", "cmd", line)

	out, err := executor.Execute(ctx, name, args...)
	if err != nil {
		return &CommandError{
			Command: line,
			Output:  string(bytes.TrimSpace(out)),
			Err:     err,
		}
	}
	if s := strings.TrimSpace(string(out)); s != "" {
		logging.Debug("command output", "cmd", name, "output", s)
	}
	return nil
}
