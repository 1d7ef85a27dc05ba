package tools

import (
	"github.com/sloonz/xbprep/lib"

	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/gobuffalo/flect"
	"github.com/sirupsen/logrus"
)

var (
	ErrCommandMissing = errors.New("command tool: missing command")
	commandLog        = logrus.WithFields(logrus.Fields{
		"tool": "command",
	})
)

// Delegates redo log application to an external program, called as
//
//	<command> apply <dir> [--redo-only] [--incremental-dir=<inc>]
//
// Options are exported in the environment as XBPREP_OPT_<NAME> (XBPREP_SOPT_<NAME>, JSON-encoded,
// for multi-valued options), credentials as XBPREP_USER and XBPREP_PASSWORD.
type commandTool struct {
	command []string
	env     []string
}

func newCommandTool(options *xbprep.Options) (xbprep.Applier, error) {
	command := options.GetCommand("Command", nil)
	if len(command) == 0 {
		return nil, ErrCommandMissing
	}

	env, err := optionsEnv(options)
	if err != nil {
		return nil, err
	}

	return &commandTool{command: command, env: env}, nil
}

func optionsEnv(options *xbprep.Options) ([]string, error) {
	var env []string
	for k, v := range options.String {
		env = append(env, fmt.Sprintf("XBPREP_OPT_%s=%s", flect.New(k).Underscore().ToUpper().String(), v))
	}
	for k, v := range options.StrSlice {
		jsonVal, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		env = append(env, fmt.Sprintf("XBPREP_SOPT_%s=%s", flect.New(k).Underscore().ToUpper().String(), string(jsonVal)))
	}
	return env, nil
}

func (t *commandTool) args(dir string, opts xbprep.ApplyOptions) []string {
	args := []string{"apply", dir}
	if opts.RedoOnly {
		args = append(args, "--redo-only")
	}
	if opts.IncrementalDir != "" {
		args = append(args, fmt.Sprintf("--incremental-dir=%s", opts.IncrementalDir))
	}
	return args
}

// Part of xbprep.Applier interface
func (t *commandTool) Apply(ctx context.Context, dir string, opts xbprep.ApplyOptions) error {
	cmd := xbprep.BuildCommand(ctx, t.command, t.args(dir, opts)...)
	cmd.Env = append(append(os.Environ(), t.env...),
		"XBPREP_USER="+opts.Credentials.User,
		"XBPREP_PASSWORD="+opts.Credentials.Password)
	return runTool(ctx, commandLog, t.command[0], cmd)
}
