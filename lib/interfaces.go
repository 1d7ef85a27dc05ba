package xbprep

import (
	"context"
	"io"
)

// A catalog knows where backups are stored and how to recognize them
type Catalog interface {
	// Backups of the given kind found under baseDir, sorted from oldest to newest
	ListBackups(baseDir string, kind Kind) ([]Backup, error)

	// Classify a specific directory. Returns a *BackupNotFoundError if dir is not a backup.
	FindBackup(dir string) (Backup, error)
}

// Database credentials handed to the apply tool. Both fields are optional.
type Credentials struct {
	User     string
	Password string
}

func (c Credentials) IsZero() bool {
	return c.User == "" && c.Password == ""
}

type ApplyOptions struct {
	// Roll forward only, without rolling back uncommitted transactions.
	// Required as long as more increments have to be applied on top of the directory.
	RedoOnly bool

	// If not empty, the incremental backup to merge into the target directory
	IncrementalDir string

	Credentials Credentials
}

// An applier runs the redo log application of the external backup tool on a directory.
// Implementations must block until the tool exits, and kill it when ctx is done.
// A non-zero exit must be reported as an *ApplyToolError.
type Applier interface {
	Apply(ctx context.Context, dir string, opts ApplyOptions) error
}

// An archive destination stores packed prepared directories
type Destination interface {
	// List archive names present on the destination
	ListArchives() ([]string, error)

	// Store an archive whose content is `data` under `name`
	SendArchive(name string, data io.Reader) error
}
