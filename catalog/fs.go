package catalog

import (
	"github.com/sloonz/xbprep/lib"

	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gopkg.in/ini.v1"
)

// Name of the file written by the backup tool in every backup directory
const CheckpointsFile = "xtrabackup_checkpoints"

var (
	fsLog = logrus.WithFields(logrus.Fields{
		"catalog": "fs",
	})
)

// Catalog of backups stored on a filesystem, full backups in <base>/<FullSubdir>/ and
// incremental backups in <base>/<IncrementalSubdir>/, one directory per backup
type FSCatalog struct {
	Fs                afero.Fs
	FullSubdir        string
	IncrementalSubdir string
}

func NewFSCatalog(fs afero.Fs) *FSCatalog {
	return &FSCatalog{Fs: fs, FullSubdir: "full", IncrementalSubdir: "incremental"}
}

func (c *FSCatalog) KindDir(baseDir string, kind xbprep.Kind) (string, error) {
	switch kind {
	case xbprep.KindFull:
		return filepath.Join(baseDir, c.FullSubdir), nil
	case xbprep.KindIncremental:
		return filepath.Join(baseDir, c.IncrementalSubdir), nil
	default:
		return "", errors.Errorf("invalid backup kind %v", kind)
	}
}

// Part of xbprep.Catalog interface
func (c *FSCatalog) ListBackups(baseDir string, kind xbprep.Kind) ([]xbprep.Backup, error) {
	dir, err := c.KindDir(baseDir, kind)
	if err != nil {
		return nil, err
	}

	entries, err := afero.ReadDir(c.Fs, dir)
	if err != nil && os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "cannot list %s", dir)
	}

	var backups []xbprep.Backup
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") || strings.HasPrefix(entry.Name(), "_") || !entry.IsDir() {
			continue
		}

		log := fsLog.WithFields(logrus.Fields{"dir": entry.Name()})
		backup, err := c.FindBackup(filepath.Join(dir, entry.Name()))
		if err != nil {
			log.Warnf("skipping: %v", err)
			continue
		}
		if backup.Kind != kind {
			log.Warnf("skipping: %s backup found among %s backups", backup.Kind, kind)
			continue
		}

		backups = append(backups, backup)
	}

	xbprep.SortBackups(backups)
	return backups, nil
}

// Part of xbprep.Catalog interface
func (c *FSCatalog) FindBackup(dir string) (xbprep.Backup, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return xbprep.Backup{}, errors.Wrapf(err, "cannot resolve %s", dir)
	}

	st, err := c.Fs.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return xbprep.Backup{}, &xbprep.BackupNotFoundError{Dir: dir, Reason: "no such directory"}
		}
		return xbprep.Backup{}, errors.Wrapf(err, "cannot stat %s", dir)
	}

	// a backup has a single path, whichever way it has been reached
	if abs, err = c.canonical(abs); err != nil {
		return xbprep.Backup{}, errors.Wrapf(err, "cannot resolve %s", dir)
	}
	if !st.IsDir() {
		return xbprep.Backup{}, &xbprep.BackupNotFoundError{Dir: dir, Reason: "not a directory"}
	}

	data, err := afero.ReadFile(c.Fs, filepath.Join(abs, CheckpointsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return xbprep.Backup{}, &xbprep.BackupNotFoundError{Dir: dir, Reason: "missing " + CheckpointsFile}
		}
		return xbprep.Backup{}, errors.Wrapf(err, "cannot read %s checkpoints", dir)
	}

	cp, err := ParseCheckpoints(data)
	if err != nil {
		return xbprep.Backup{}, &xbprep.BackupNotFoundError{Dir: dir, Reason: err.Error()}
	}

	return xbprep.Backup{Kind: cp.Kind, Path: abs, FromLSN: cp.FromLSN, ToLSN: cp.ToLSN}, nil
}

// Resolve symbolic links on the OS filesystem. Other filesystems have no links to resolve.
func (c *FSCatalog) canonical(abs string) (string, error) {
	if _, ok := c.Fs.(*afero.OsFs); !ok {
		return abs, nil
	}
	return filepath.EvalSymlinks(abs)
}

// Content of an xtrabackup_checkpoints file
type Checkpoints struct {
	BackupType string
	Kind       xbprep.Kind
	FromLSN    uint64
	ToLSN      uint64
	LastLSN    uint64
}

// Parse an xtrabackup_checkpoints file:
//
//	backup_type = incremental
//	from_lsn = 1626007
//	to_lsn = 1641916
//	last_lsn = 1641925
func ParseCheckpoints(data []byte) (Checkpoints, error) {
	f, err := ini.LoadSources(ini.LoadOptions{Insensitive: true, SkipUnrecognizableLines: true}, data)
	if err != nil {
		return Checkpoints{}, errors.Wrap(err, "invalid checkpoints")
	}

	section := f.Section(ini.DefaultSection)
	cp := Checkpoints{BackupType: section.Key("backup_type").String()}
	switch cp.BackupType {
	case "incremental":
		cp.Kind = xbprep.KindIncremental
	case "full-backuped", "full-prepared", "log-applied":
		cp.Kind = xbprep.KindFull
	case "":
		return Checkpoints{}, errors.New("missing backup_type in checkpoints")
	default:
		return Checkpoints{}, errors.Errorf("unknown backup_type %q in checkpoints", cp.BackupType)
	}

	for _, field := range []struct {
		name     string
		value    *uint64
		required bool
	}{
		{"from_lsn", &cp.FromLSN, true},
		{"to_lsn", &cp.ToLSN, true},
		{"last_lsn", &cp.LastLSN, false},
	} {
		if !section.HasKey(field.name) {
			if field.required {
				return Checkpoints{}, errors.Errorf("missing %s in checkpoints", field.name)
			}
			continue
		}
		*field.value, err = section.Key(field.name).Uint64()
		if err != nil {
			return Checkpoints{}, errors.Wrapf(err, "invalid %s in checkpoints", field.name)
		}
	}

	if cp.FromLSN > cp.ToLSN {
		return Checkpoints{}, errors.Errorf("from_lsn %d is greater than to_lsn %d", cp.FromLSN, cp.ToLSN)
	}

	return cp, nil
}
