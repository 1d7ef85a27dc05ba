package destinations

import (
	"github.com/sloonz/xbprep/container"
	"github.com/sloonz/xbprep/lib"

	"errors"
	"io"
	"path"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

var (
	ErrFSPath = errors.New("fs destination: missing path")
	fsLog     = logrus.WithFields(logrus.Fields{
		"destination": "fs",
	})
)

type fsDestination struct {
	fs       afero.Fs
	basePath string
}

func newFSDestination(fs afero.Fs, options *xbprep.Options) (xbprep.Destination, error) {
	basePath := options.String["Path"]
	if basePath == "" {
		return nil, ErrFSPath
	}

	err := fs.MkdirAll(basePath, 0777)
	if err != nil {
		return nil, err
	}

	return &fsDestination{fs: fs, basePath: basePath}, nil
}

// Part of xbprep.Destination interface
func (d *fsDestination) ListArchives() ([]string, error) {
	entries, err := afero.ReadDir(d.fs, d.basePath)
	if err != nil {
		return nil, err
	}

	var res []string
	for _, entry := range entries {
		if isArchiveName(entry.Name()) && !entry.IsDir() {
			res = append(res, entry.Name())
		}
	}

	return res, nil
}

// Part of xbprep.Destination interface
func (d *fsDestination) SendArchive(name string, data io.Reader) error {
	tmpFilename := path.Join(d.basePath, "_tmp-"+name)
	finalFilename := path.Join(d.basePath, name)
	tmpF, err := d.fs.Create(tmpFilename)
	if err != nil {
		return err
	}
	defer d.fs.Remove(tmpFilename) //nolint:errcheck

	fsLog.Printf("writing archive to %s", tmpFilename)
	_, err = io.Copy(tmpF, data)
	if err != nil {
		tmpF.Close()
		return err
	}

	if err = tmpF.Close(); err != nil {
		return err
	}

	fsLog.Printf("moving final archive to %s", finalFilename)
	return d.fs.Rename(tmpFilename, finalFilename)
}

// Temporary files start with "_", hidden files with "."
func isArchiveName(name string) bool {
	return !strings.HasPrefix(name, ".") && !strings.HasPrefix(name, "_") && strings.HasSuffix(name, container.Ext)
}
