package xbprep

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

var fsLog = logrus.WithFields(logrus.Fields{
	"component": "fs",
})

func Exists(fs afero.Fs, path string) (bool, error) {
	_, err := fs.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "cannot stat %s", path)
}

// Recursively remove dir if it exists
func RemoveIfExists(fs afero.Fs, dir string) error {
	exists, err := Exists(fs, dir)
	if err != nil || !exists {
		return err
	}

	fsLog.Printf("directory %s already exists, deleting it recursively", dir)
	return errors.Wrapf(fs.RemoveAll(dir), "cannot remove %s", dir)
}

// Copy the src directory into dstParent, as dstParent/<base name of src>.
// Permissions are preserved, symbolic links are recreated when the filesystem supports them.
func CopyTree(fs afero.Fs, src, dstParent string) (string, error) {
	src = filepath.Clean(src)
	dst := filepath.Join(dstParent, filepath.Base(src))

	err := afero.Walk(fs, src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case info.IsDir():
			return fs.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&os.ModeSymlink != 0:
			return copySymlink(fs, p, target)
		case info.Mode().IsRegular():
			return CopyFile(fs, target, p)
		default:
			fsLog.WithFields(logrus.Fields{"file": p}).Warnf("skipping special file")
			return nil
		}
	})
	if err != nil {
		return dst, errors.Wrapf(err, "cannot copy %s to %s", src, dstParent)
	}

	return dst, nil
}

func copySymlink(fs afero.Fs, src, dst string) error {
	reader, ok := fs.(afero.LinkReader)
	linker, ok2 := fs.(afero.Linker)
	if !ok || !ok2 {
		return errors.Errorf("cannot copy symbolic link %s: unsupported by filesystem", src)
	}

	link, err := reader.ReadlinkIfPossible(src)
	if err != nil {
		return err
	}
	return linker.SymlinkIfPossible(link, dst)
}

// This should really be in the standard library...
func CopyFile(fs afero.Fs, dst, src string) error {
	srcF, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer srcF.Close()

	st, err := srcF.Stat()
	if err != nil {
		return err
	}

	dstF, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, st.Mode().Perm())
	if err != nil {
		return err
	}

	_, err = io.Copy(dstF, srcF)
	if err != nil {
		dstF.Close()
		return err
	}

	return dstF.Close()
}
