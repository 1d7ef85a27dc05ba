package xbprep

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNoFullBackup     = errors.New("no full backup found")
	ErrBackupNotFound   = errors.New("backup not found")
	ErrChainBroken      = errors.New("backup chain broken")
	ErrAmbiguousChain   = errors.New("ambiguous backup chain")
	ErrApplyToolFailure = errors.New("apply tool failed")
)

// A required argument is missing or empty
type InvalidArgumentError struct {
	Name string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument: %s must not be empty", e.Name)
}

func (e *InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

type NoFullBackupFoundError struct {
	BaseDir string
}

func (e *NoFullBackupFoundError) Error() string {
	return fmt.Sprintf("cannot prepare backup: no full backup found in %s", e.BaseDir)
}

func (e *NoFullBackupFoundError) Is(target error) bool {
	return target == ErrNoFullBackup
}

// The given directory is not a recognized backup
type BackupNotFoundError struct {
	Dir    string
	Reason string
}

func (e *BackupNotFoundError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s is not a backup", e.Dir)
	}
	return fmt.Sprintf("%s is not a backup: %s", e.Dir, e.Reason)
}

func (e *BackupNotFoundError) Is(target error) bool {
	return target == ErrBackupNotFound
}

// No backup ends at the LSN where Backup starts
type ChainBrokenError struct {
	Backup  Backup
	WantLSN uint64
}

func (e *ChainBrokenError) Error() string {
	return fmt.Sprintf("backup chain broken: no backup ends at LSN %d, required by %s", e.WantLSN, e.Backup.Path)
}

func (e *ChainBrokenError) Is(target error) bool {
	return target == ErrChainBroken
}

// Several backups could precede Backup in its chain
type AmbiguousChainError struct {
	Backup     Backup
	LSN        uint64
	Candidates []Backup
}

func (e *AmbiguousChainError) Error() string {
	paths := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		paths = append(paths, c.Path)
	}
	return fmt.Sprintf("ambiguous backup chain at LSN %d for %s: %s", e.LSN, e.Backup.Path, strings.Join(paths, ", "))
}

func (e *AmbiguousChainError) Is(target error) bool {
	return target == ErrAmbiguousChain
}

// The external apply tool exited with a non-zero status
type ApplyToolError struct {
	Tool     string
	ExitCode int
	Output   string
	Err      error
}

func (e *ApplyToolError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Tool, e.ExitCode)
	if e.Err != nil && e.ExitCode < 0 {
		msg = fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + out
	}
	return msg
}

func (e *ApplyToolError) Is(target error) bool {
	return target == ErrApplyToolFailure
}

func (e *ApplyToolError) Unwrap() error {
	return e.Err
}
