package tools

import (
	"github.com/sloonz/xbprep/lib"

	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

var (
	ErrInnobackupexCommand = errors.New("innobackupex tool: missing or invalid command")
	innobackupexLog        = logrus.WithFields(logrus.Fields{
		"tool": "innobackupex",
	})
)

// Legacy Percona wrapper: innobackupex --apply-log [--redo-only] <dir> [--incremental-dir=<inc>]
type innobackupexTool struct {
	command []string
}

func newInnobackupexTool(options *xbprep.Options) (xbprep.Applier, error) {
	command := options.GetCommand("Command", []string{"innobackupex"})
	if len(command) == 0 {
		return nil, ErrInnobackupexCommand
	}
	return &innobackupexTool{command: command}, nil
}

func (t *innobackupexTool) args(dir, defaultsFile string, opts xbprep.ApplyOptions) []string {
	var args []string
	if defaultsFile != "" {
		// must come first
		args = append(args, fmt.Sprintf("--defaults-extra-file=%s", defaultsFile))
	}

	args = append(args, "--apply-log")
	if opts.RedoOnly {
		args = append(args, "--redo-only")
	}
	args = append(args, dir)
	if opts.IncrementalDir != "" {
		args = append(args, fmt.Sprintf("--incremental-dir=%s", opts.IncrementalDir))
	}
	return args
}

// Part of xbprep.Applier interface
func (t *innobackupexTool) Apply(ctx context.Context, dir string, opts xbprep.ApplyOptions) error {
	defaultsFile, cleanup, err := writeDefaultsFile("xtrabackup", opts.Credentials)
	if err != nil {
		return err
	}
	defer cleanup()

	cmd := xbprep.BuildCommand(ctx, t.command, t.args(dir, defaultsFile, opts)...)
	return runTool(ctx, innobackupexLog, "innobackupex", cmd)
}
