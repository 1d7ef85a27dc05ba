package tools

import (
	"github.com/sloonz/xbprep/lib"

	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Amount of tool output kept for error reports
const outputTail = 64 * 1024

// Write credentials in a temporary MySQL option file, so that they do not show up in the process list.
// The returned cleanup function removes the file. Returns an empty name when there are no credentials.
func writeDefaultsFile(group string, creds xbprep.Credentials) (string, func(), error) {
	if creds.IsZero() {
		return "", func() {}, nil
	}

	data := fmt.Sprintf("[%s]\n", group)
	if creds.User != "" {
		data += fmt.Sprintf("user=%s\n", quoteOptionValue(creds.User))
	}
	if creds.Password != "" {
		data += fmt.Sprintf("password=%s\n", quoteOptionValue(creds.Password))
	}

	f, err := os.CreateTemp("", "xbprep-*.cnf")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() {
		f.Close()
		os.Remove(f.Name())
	}

	if err = f.Chmod(0600); err == nil {
		if _, err = f.WriteString(data); err == nil {
			err = f.Sync()
		}
	}
	if err != nil {
		cleanup()
		return "", nil, err
	}

	return f.Name(), cleanup, nil
}

// Double-quote a MySQL option file value, so that "#", quotes and surrounding spaces are kept
func quoteOptionValue(v string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(v) + `"`
}

// Run the tool, streaming its output on stderr and keeping the end of it for error reports
func runTool(ctx context.Context, log *logrus.Entry, tool string, cmd *exec.Cmd) error {
	tail := xbprep.NewTailBuffer(outputTail)
	cmd.Stdin = nil
	cmd.Stdout = io.MultiWriter(os.Stderr, tail)
	cmd.Stderr = cmd.Stdout

	err := xbprep.RunCommand(log, cmd)
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return &xbprep.ApplyToolError{Tool: tool, ExitCode: -1, Output: tail.String(), Err: ctxErr}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &xbprep.ApplyToolError{Tool: tool, ExitCode: exitErr.ExitCode(), Output: tail.String(), Err: err}
	}

	return &xbprep.ApplyToolError{Tool: tool, ExitCode: -1, Output: tail.String(), Err: err}
}
