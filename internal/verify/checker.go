package verify

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// buildSuccessMarker is the line the toolchain prints when a package tree
// compiled cleanly. Output without it is a failed check even on exit 0.
const buildSuccessMarker = "[100%] Project compiled successfully."

// Report is the structured result of one digest/build check.
type Report struct {
	Passed bool
	Output string
}

// BuildChecker is the external digest/build capability: given an extracted
// package tree, report pass/fail. Faked in tests.
type BuildChecker interface {
	Check(ctx context.Context, dir string) (*Report, error)
}

// ExecChecker runs the configured toolchain command inside the extracted
// tree. A timeout or non-zero exit is a failed check, not an error.
type ExecChecker struct {
	Command []string
	Timeout time.Duration
}

func (c *ExecChecker) Check(ctx context.Context, dir string) (*Report, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Command[0], c.Command[1:]...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()

	report := &Report{Output: string(out)}
	report.Passed = err == nil && strings.Contains(report.Output, buildSuccessMarker)
	return report, nil
}
