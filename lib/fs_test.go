package xbprep

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

func TestCopyTree(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"/b/full1/xtrabackup_checkpoints": "backup_type = full-backuped\n",
		"/b/full1/ibdata1":                "data",
		"/b/full1/db/t1.ibd":              "t1",
		"/b/full1/db/sub/t2.ibd":          "t2",
	}
	for p, content := range files {
		if err := fs.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := afero.WriteFile(fs, p, []byte(content), 0640); err != nil {
			t.Fatal(err)
		}
	}

	dst, err := CopyTree(fs, "/b/full1/", "/out")
	if err != nil {
		t.Fatal(err)
	}
	if dst != "/out/full1" {
		t.Errorf("unexpected destination: %s", dst)
	}

	for p, content := range files {
		target := filepath.Join("/out/full1", p[len("/b/full1/"):])
		data, err := afero.ReadFile(fs, target)
		if err != nil {
			t.Errorf("%s: %v", target, err)
			continue
		}
		if string(data) != content {
			t.Errorf("%s: expected %q, got %q", target, content, string(data))
		}

		st, err := fs.Stat(target)
		if err != nil {
			t.Errorf("%s: %v", target, err)
		} else if st.Mode().Perm() != 0640 {
			t.Errorf("%s: unexpected mode %v", target, st.Mode())
		}
	}

	if _, err = CopyTree(fs, "/b/missing", "/out"); err == nil {
		t.Error("expected an error when copying a missing directory")
	}
}

func TestCopyTreeSymlinks(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "full1")
	if err := os.MkdirAll(src, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "ibdata1"), []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("ibdata1", filepath.Join(src, "link")); err != nil {
		t.Fatal(err)
	}

	dst, err := CopyTree(afero.NewOsFs(), src, filepath.Join(root, "out"))
	if err != nil {
		t.Fatal(err)
	}

	link, err := os.Readlink(filepath.Join(dst, "link"))
	if err != nil || link != "ibdata1" {
		t.Errorf("unexpected link: %q (%v)", link, err)
	}
}

func TestRemoveIfExists(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/out/full1", 0755); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/out/full1/ibdata1", []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := RemoveIfExists(fs, "/out/missing"); err != nil {
		t.Errorf("removing a missing directory: %v", err)
	}

	if err := RemoveIfExists(fs, "/out/full1"); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"/out/full1", "/out/full1/ibdata1"} {
		if exists, err := Exists(fs, p); err != nil || exists {
			t.Errorf("%s still exists (%v)", p, err)
		}
	}
	if exists, _ := Exists(fs, "/out"); !exists {
		t.Error("parent directory has been removed")
	}
}

func TestTailBuffer(t *testing.T) {
	tail := NewTailBuffer(8)
	for _, s := range []string{"hello ", "world", "!"} {
		if _, err := tail.Write([]byte(s)); err != nil {
			t.Fatal(err)
		}
	}
	if tail.String() != "o world!" {
		t.Errorf("unexpected tail: %q", tail.String())
	}
}
