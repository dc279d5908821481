package executor

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"
	"time"

	"fleetdeploy/internal/model"
)

// ShellRunner runs commands through the platform shell
type ShellRunner struct {
	Timeout time.Duration
}

// Run executes a command via bash (or powershell on Windows) and
// captures bounded output tails.
func (r ShellRunner) Run(command string) (int, string, string) {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = 30 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx,
			"powershell.exe",
			"-NonInteractive",
			"-NoProfile",
			"-ExecutionPolicy", "Bypass",
			"-Command", command,
		)
	} else {
		cmd = exec.CommandContext(ctx, "/bin/bash", "-c", command)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	rc := 0
	errTail := model.TruncateTail(stderr.String())
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			rc = exitErr.ExitCode()
		} else {
			rc = 1
			errTail = err.Error()
		}
	}
	return rc, model.TruncateTail(stdout.String()), errTail
}
