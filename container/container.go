package container

import (
	"github.com/sloonz/xbprep/lib"

	"bufio"
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
	"github.com/klauspost/compress/zstd"
)

var (
	magic                 = "github.com/sloonz/xbprep/v0\n"
	ErrInvalidMagicHeader = errors.New("invalid magic header")
	ErrInvalidHeaderHash  = errors.New("invalid header hash")
	ErrUnexpectedPlain    = errors.New("encountered a plaintext archive, but identities have been provided")
	ErrUnexpectedSealed   = errors.New("encountered an encrypted archive, but no identity has been provided")
)

// Archive layout:
//
//	magic
//	header line (options format: name=<prepared dir>,compression=zstd[,plain=1])
//	zstd(payload)                            if plain
//	age(sha256(magic+header line) + zstd(payload))  otherwise
type Writer struct {
	aw io.WriteCloser
	zw *zstd.Encoder
}

func NewWriter(w io.Writer, recipients []age.Recipient, name string, compressionLevel int) (*Writer, error) {
	hdr := bytes.NewBufferString(magic)
	fmt.Fprintf(hdr, "name=%s,compression=zstd", escapeOption(name))
	if len(recipients) == 0 {
		hdr.WriteString(",plain=1")
	}
	hdr.WriteString("\n")

	if _, err := w.Write(hdr.Bytes()); err != nil {
		return nil, err
	}

	cw := &Writer{}
	payload := w
	if len(recipients) > 0 {
		aw, err := age.Encrypt(w, recipients...)
		if err != nil {
			return nil, err
		}

		hdrHash := sha256.Sum256(hdr.Bytes())
		if _, err = aw.Write(hdrHash[:]); err != nil {
			return nil, err
		}
		cw.aw = aw
		payload = aw
	}

	zw, err := zstd.NewWriter(payload, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
	if err != nil {
		return nil, err
	}
	cw.zw = zw

	return cw, nil
}

func escapeOption(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\\", "\\\\"), ",", "\\,")
}

// Part of io.WriteCloser interface
func (w *Writer) Write(p []byte) (int, error) {
	return w.zw.Write(p)
}

// Part of io.WriteCloser interface
// Flushes remaining compressed data and finalizes encryption; the underlying writer is not closed.
func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil {
		return err
	}

	if w.aw != nil {
		return w.aw.Close()
	}

	return nil
}

// Decoder for the archive format
type Reader struct {
	br      *bufio.Reader
	zr      *zstd.Decoder
	hdrHash [sha256.Size]byte
	Options *xbprep.Options
}

func NewReader(r io.Reader) (*Reader, error) {
	m := make([]byte, len(magic))
	if _, err := io.ReadFull(r, m); err != nil {
		return nil, err
	}
	if string(m) != magic {
		return nil, ErrInvalidMagicHeader
	}

	br := bufio.NewReader(r)
	optionsLine, err := br.ReadString('\n')
	if err != nil {
		return nil, err
	}

	// no presets and no template evaluation: the header is data, not configuration
	opts := xbprep.NewOptions()
	for _, kv := range xbprep.SplitOptions(strings.TrimSpace(optionsLine)) {
		opts.String[kv[0]] = kv[1]
	}

	return &Reader{
		br:      br,
		hdrHash: sha256.Sum256([]byte(magic + optionsLine)),
		Options: opts,
	}, nil
}

// Name of the prepared directory stored in the archive
func (r *Reader) Name() string {
	return r.Options.String["Name"]
}

func (r *Reader) IsPlain() bool {
	return r.Options.String["Plain"] == "1"
}

// Prepares the decryption process. This must be called before any Read() call
func (r *Reader) Unseal(identities []age.Identity) error {
	var payload io.Reader = r.br

	if len(identities) == 0 {
		if !r.IsPlain() {
			return ErrUnexpectedSealed
		}
	} else {
		if r.IsPlain() {
			return ErrUnexpectedPlain
		}

		ar, err := age.Decrypt(r.br, identities...)
		if err != nil {
			return err
		}

		var encryptedHash [sha256.Size]byte
		if _, err = io.ReadFull(ar, encryptedHash[:]); err != nil {
			return err
		}

		if subtle.ConstantTimeCompare(encryptedHash[:], r.hdrHash[:]) == 0 {
			return ErrInvalidHeaderHash
		}
		payload = ar
	}

	zr, err := zstd.NewReader(payload)
	if err != nil {
		return err
	}
	r.zr = zr
	return nil
}

// Part of io.ReadCloser interface
func (r *Reader) Read(p []byte) (int, error) {
	return r.zr.Read(p)
}

// Part of io.ReadCloser interface
func (r *Reader) Close() error {
	if r.zr != nil {
		r.zr.Close()
	}
	return nil
}
