package container

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Extension of archive files
const Ext = ".xbpa"

// Write the content of dir as a tar stream. Entry names are relative to dir.
func WriteTree(w io.Writer, fs afero.Fs, dir string) error {
	tw := tar.NewWriter(w)
	dir = filepath.Clean(dir)

	err := afero.Walk(fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil || rel == "." {
			return err
		}

		var link string
		if info.Mode()&os.ModeSymlink != 0 {
			reader, ok := fs.(afero.LinkReader)
			if !ok {
				return errors.Errorf("cannot archive symbolic link %s: unsupported by filesystem", p)
			}
			if link, err = reader.ReadlinkIfPossible(p); err != nil {
				return err
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}

		if err = tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := fs.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "cannot archive %s", dir)
	}

	return tw.Close()
}

// Extract a tar stream written by WriteTree into dir
func ExtractTree(r io.Reader, fs afero.Fs, dir string) error {
	tr := tar.NewReader(r)
	dir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err = fs.MkdirAll(dir, 0777); err != nil {
		return err
	}

	// nothing is written below a symbolic link of the archive
	links := make(map[string]struct{})
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}

		target := filepath.Join(dir, filepath.FromSlash(hdr.Name))
		if !within(dir, target) {
			return fmt.Errorf("invalid archive entry: %s", hdr.Name)
		}
		if link := linkAncestor(links, dir, target); link != "" {
			return fmt.Errorf("invalid archive entry: %s is below symbolic link %s", hdr.Name, link)
		}

		mode := os.FileMode(hdr.Mode).Perm()
		switch hdr.Typeflag {
		case tar.TypeDir:
			err = fs.MkdirAll(target, mode)
		case tar.TypeReg:
			err = extractFile(fs, target, mode, tr)
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) || !within(dir, filepath.Join(filepath.Dir(target), hdr.Linkname)) {
				return fmt.Errorf("invalid archive entry: symbolic link %s points outside of the archive (%s)", hdr.Name, hdr.Linkname)
			}
			linker, ok := fs.(afero.Linker)
			if !ok {
				return errors.Errorf("cannot extract symbolic link %s: unsupported by filesystem", hdr.Name)
			}
			err = linker.SymlinkIfPossible(hdr.Linkname, target)
			links[target] = struct{}{}
		default:
			err = fmt.Errorf("unsupported archive entry type %c: %s", hdr.Typeflag, hdr.Name)
		}
		if err != nil {
			return err
		}
	}
}

// Whether p is dir or below it. Both must be clean.
func within(dir, p string) bool {
	return p == dir || strings.HasPrefix(p, dir+string(filepath.Separator))
}

// First symbolic link extracted so far that target is, or is below
func linkAncestor(links map[string]struct{}, dir, target string) string {
	for p := target; within(dir, p) && p != dir; p = filepath.Dir(p) {
		if _, ok := links[p]; ok {
			return p
		}
	}
	return ""
}

func extractFile(fs afero.Fs, target string, mode os.FileMode, r io.Reader) error {
	if err := fs.MkdirAll(filepath.Dir(target), 0777); err != nil {
		return err
	}

	f, err := fs.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err = io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Archive a prepared directory: tar, compress and (when recipients are given) encrypt it into w
func Pack(w io.Writer, fs afero.Fs, dir string, recipients []age.Recipient, compressionLevel int) error {
	cw, err := NewWriter(w, recipients, filepath.Base(filepath.Clean(dir)), compressionLevel)
	if err != nil {
		return err
	}

	if err = WriteTree(cw, fs, dir); err != nil {
		return err
	}

	return cw.Close()
}

// Reverse of Pack: extract the archive into parentDir/<archived directory name>, returns that path
func Unpack(r io.Reader, fs afero.Fs, parentDir string, identities []age.Identity) (string, error) {
	cr, err := NewReader(r)
	if err != nil {
		return "", err
	}
	defer cr.Close()

	name := cr.Name()
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid archive name: %q", name)
	}

	if err = cr.Unseal(identities); err != nil {
		return "", err
	}

	dir := filepath.Join(parentDir, name)
	return dir, ExtractTree(cr, fs, dir)
}
