package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// maxStderr caps how much engine output is carried into an error message.
const maxStderr = 512

// Runner executes an external speech engine. stdin, if non-empty, is written
// to the process's standard input. It returns the process's standard output.
//
// Subprocess adapters accept a Runner so tests can exercise their argument
// building and output decoding without the engine installed.
type Runner func(ctx context.Context, stdin string, name string, args ...string) ([]byte, error)

// ExecRunner is the default [Runner]. The process is killed when ctx is done.
// A non-zero exit status is reported together with the tail of stderr.
func ExecRunner(ctx context.Context, stdin string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", name, ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > maxStderr {
			msg = msg[len(msg)-maxStderr:]
		}
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}
