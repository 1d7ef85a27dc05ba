package tools

import (
	"github.com/sloonz/xbprep/lib"

	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

var (
	ErrXtrabackupCommand = errors.New("xtrabackup tool: missing or invalid command")
)

// xtrabackup --prepare [--apply-log-only] --target-dir=<dir> [--incremental-dir=<inc>]
// mariabackup accepts the same arguments, and reads its own option group.
type xtrabackupTool struct {
	name      string
	group     string
	command   []string
	useMemory string
	log       *logrus.Entry
}

func newXtrabackupTool(options *xbprep.Options, name string) (xbprep.Applier, error) {
	command := options.GetCommand("Command", []string{name})
	if len(command) == 0 {
		return nil, ErrXtrabackupCommand
	}

	return &xtrabackupTool{
		name:      name,
		group:     name,
		command:   command,
		useMemory: options.GetString("UseMemory", ""),
		log:       logrus.WithFields(logrus.Fields{"tool": name}),
	}, nil
}

func (t *xtrabackupTool) args(dir, defaultsFile string, opts xbprep.ApplyOptions) []string {
	var args []string
	if defaultsFile != "" {
		// must come first
		args = append(args, fmt.Sprintf("--defaults-extra-file=%s", defaultsFile))
	}

	args = append(args, "--prepare")
	if opts.RedoOnly {
		args = append(args, "--apply-log-only")
	}
	args = append(args, fmt.Sprintf("--target-dir=%s", dir))
	if opts.IncrementalDir != "" {
		args = append(args, fmt.Sprintf("--incremental-dir=%s", opts.IncrementalDir))
	}
	if t.useMemory != "" {
		args = append(args, fmt.Sprintf("--use-memory=%s", t.useMemory))
	}
	return args
}

// Part of xbprep.Applier interface
func (t *xtrabackupTool) Apply(ctx context.Context, dir string, opts xbprep.ApplyOptions) error {
	defaultsFile, cleanup, err := writeDefaultsFile(t.group, opts.Credentials)
	if err != nil {
		return err
	}
	defer cleanup()

	cmd := xbprep.BuildCommand(ctx, t.command, t.args(dir, defaultsFile, opts)...)
	return runTool(ctx, t.log, t.name, cmd)
}
