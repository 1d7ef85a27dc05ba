package container

import (
	"archive/tar"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"filippo.io/age"
	"github.com/spf13/afero"
)

var testFiles = map[string]string{
	"xtrabackup_checkpoints": "backup_type = full-prepared\nfrom_lsn = 0\nto_lsn = 200\n",
	"ibdata1":                "innodb system tablespace",
	"db/t1.ibd":              "t1",
	"db/empty/t2.ibd":        "",
}

func writePrepared(t *testing.T, fs afero.Fs, dir string) {
	for name, content := range testFiles {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := fs.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := afero.WriteFile(fs, p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func checkPrepared(t *testing.T, fs afero.Fs, dir string) {
	for name, content := range testFiles {
		p := filepath.Join(dir, filepath.FromSlash(name))
		data, err := afero.ReadFile(fs, p)
		if err != nil {
			t.Errorf("%s: %v", p, err)
		} else if string(data) != content {
			t.Errorf("%s: expected %q, got %q", p, content, string(data))
		}
	}
}

func pack(t *testing.T, recipients []age.Recipient) []byte {
	fs := afero.NewMemMapFs()
	writePrepared(t, fs, "/out/inc2")

	buf := bytes.NewBuffer(nil)
	if err := Pack(buf, fs, "/out/inc2/", recipients, 3); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestPackPlain(t *testing.T) {
	data := pack(t, nil)

	fs := afero.NewMemMapFs()
	dir, err := Unpack(bytes.NewReader(data), fs, "/restore", nil)
	if err != nil {
		t.Fatal(err)
	}
	if dir != "/restore/inc2" {
		t.Errorf("unexpected directory: %s", dir)
	}
	checkPrepared(t, fs, dir)
}

func TestPackEncrypted(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatal(err)
	}
	data := pack(t, []age.Recipient{identity.Recipient()})

	if bytes.Contains(data, []byte("innodb system tablespace")) {
		t.Error("archive content is not encrypted")
	}

	fs := afero.NewMemMapFs()
	dir, err := Unpack(bytes.NewReader(data), fs, "/restore", []age.Identity{identity})
	if err != nil {
		t.Fatal(err)
	}
	checkPrepared(t, fs, dir)

	other, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatal(err)
	}
	if _, err = Unpack(bytes.NewReader(data), afero.NewMemMapFs(), "/restore", []age.Identity{other}); err == nil {
		t.Error("expected an error when unpacking with the wrong identity")
	}

	tampered := bytes.Replace(data, []byte("name=inc2"), []byte("name=inc3"), 1)
	if _, err = Unpack(bytes.NewReader(tampered), afero.NewMemMapFs(), "/restore", []age.Identity{identity}); !errors.Is(err, ErrInvalidHeaderHash) {
		t.Errorf("expected an invalid header hash error, got %v", err)
	}
}

func TestUnpackMismatch(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatal(err)
	}

	_, err = Unpack(bytes.NewReader(pack(t, nil)), afero.NewMemMapFs(), "/restore", []age.Identity{identity})
	if !errors.Is(err, ErrUnexpectedPlain) {
		t.Errorf("expected %v, got %v", ErrUnexpectedPlain, err)
	}

	_, err = Unpack(bytes.NewReader(pack(t, []age.Recipient{identity.Recipient()})), afero.NewMemMapFs(), "/restore", nil)
	if !errors.Is(err, ErrUnexpectedSealed) {
		t.Errorf("expected %v, got %v", ErrUnexpectedSealed, err)
	}
}

func TestReaderHeader(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	w, err := NewWriter(buf, nil, `weird,name\x`, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err = w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if r.Name() != `weird,name\x` || !r.IsPlain() || r.Options.String["Compression"] != "zstd" {
		t.Errorf("unexpected header: %v", r.Options)
	}

	if _, err = NewReader(bytes.NewBufferString("not an archive at all, not even close\n")); !errors.Is(err, ErrInvalidMagicHeader) {
		t.Errorf("expected %v, got %v", ErrInvalidMagicHeader, err)
	}
}

func TestExtractTreeRejectsEscapingEntries(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	tw := tar.NewWriter(buf)
	content := []byte("evil")
	if err := tw.WriteHeader(&tar.Header{Name: "../evil", Mode: 0644, Size: int64(len(content)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	fs := afero.NewMemMapFs()
	if err := ExtractTree(buf, fs, "/restore/inc2"); err == nil {
		t.Error("expected an error for an entry outside of the target directory")
	}
	if exists, _ := afero.Exists(fs, "/restore/evil"); exists {
		t.Error("entry has been extracted outside of the target directory")
	}
}

type tarEntry struct {
	name     string
	typeflag byte
	link     string
	content  string
}

func tarball(t *testing.T, entries []tarEntry) *bytes.Buffer {
	buf := bytes.NewBuffer(nil)
	tw := tar.NewWriter(buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Typeflag: e.typeflag, Linkname: e.link, Mode: 0644, Size: int64(len(e.content))}
		if e.typeflag == tar.TypeDir {
			hdr.Mode = 0755
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(e.content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf
}

func TestExtractTreeSymlinks(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(root, "outside")
	if err := os.MkdirAll(outside, 0755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		entries []tarEntry
		err     bool
	}{
		{
			name: "absolute link",
			entries: []tarEntry{
				{name: "evil", typeflag: tar.TypeSymlink, link: outside},
				{name: "evil/pwned", typeflag: tar.TypeReg, content: "x"},
			},
			err: true,
		},
		{
			name: "relative link leaving the directory",
			entries: []tarEntry{
				{name: "evil", typeflag: tar.TypeSymlink, link: "../../outside"},
				{name: "evil/pwned", typeflag: tar.TypeReg, content: "x"},
			},
			err: true,
		},
		{
			name: "entry below a link",
			entries: []tarEntry{
				{name: "db/", typeflag: tar.TypeDir},
				{name: "alias", typeflag: tar.TypeSymlink, link: "db"},
				{name: "alias/t1.ibd", typeflag: tar.TypeReg, content: "x"},
			},
			err: true,
		},
		{
			name: "file replacing a link",
			entries: []tarEntry{
				{name: "ibdata1", typeflag: tar.TypeReg, content: "data"},
				{name: "alias", typeflag: tar.TypeSymlink, link: "ibdata1"},
				{name: "alias", typeflag: tar.TypeReg, content: "x"},
			},
			err: true,
		},
		{
			name: "link inside the directory",
			entries: []tarEntry{
				{name: "db/", typeflag: tar.TypeDir},
				{name: "db/t1.ibd", typeflag: tar.TypeReg, content: "t1"},
				{name: "t1.ibd", typeflag: tar.TypeSymlink, link: "db/t1.ibd"},
			},
		},
	}

	for i, test := range tests {
		dir := filepath.Join(root, "restore", string(rune('a'+i)), "inc2")
		err := ExtractTree(tarball(t, test.entries), afero.NewOsFs(), dir)
		if test.err && err == nil {
			t.Errorf("%s: expected an error", test.name)
		} else if !test.err && err != nil {
			t.Errorf("%s: %v", test.name, err)
		}

		if _, err = os.Lstat(filepath.Join(outside, "pwned")); !os.IsNotExist(err) {
			t.Fatalf("%s: file written outside of the target directory", test.name)
		}
		if data, err := os.ReadFile(filepath.Join(root, "restore", string(rune('a'+i)), "inc2", "ibdata1")); err == nil && string(data) != "data" {
			t.Errorf("%s: file overwritten through a link: %q", test.name, string(data))
		}
	}

	link, err := os.Readlink(filepath.Join(root, "restore", "e", "inc2", "t1.ibd"))
	if err != nil || link != "db/t1.ibd" {
		t.Errorf("unexpected link: %q (%v)", link, err)
	}
}
