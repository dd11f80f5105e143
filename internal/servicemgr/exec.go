package servicemgr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// runResult holds the outcome of a finished command.
type runResult struct {
	stdout   string
	exitCode int
}

// run executes name with args under ctx. A non-zero exit is reported in
// the result, not as an error; errors mean the command could not run to
// completion (missing binary, killed on timeout).
func run(ctx context.Context, name string, args ...string) (runResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = nil
	cmd.WaitDelay = execWaitDelay
	configureProcAttr(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := runResult{stdout: strings.TrimSpace(stdout.String())}

	if ctx.Err() != nil {
		return res, fmt.Errorf("%s killed: %w", name, ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.exitCode = exitErr.ExitCode()
		if msg := strings.TrimSpace(stderr.String()); msg != "" && res.stdout == "" {
			res.stdout = msg
		}
		return res, nil
	}
	if err != nil {
		return res, err
	}
	return res, nil
}

// mustSucceed converts a non-zero exit into an error.
func mustSucceed(res runResult, err error) error {
	if err != nil {
		return err
	}
	if res.exitCode != 0 {
		if res.stdout != "" {
			return fmt.Errorf("exit status %d: %s", res.exitCode, res.stdout)
		}
		return fmt.Errorf("exit status %d", res.exitCode)
	}
	return nil
}
