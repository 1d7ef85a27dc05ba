package xbprep

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"filippo.io/age"
	"github.com/sirupsen/logrus"
)

// Build a command from a base command line (as returned by Options.GetCommand) and additional arguments.
// The process is killed when ctx is done.
func BuildCommand(ctx context.Context, command []string, additionalArgs ...string) *exec.Cmd {
	fullArgs := append(append([]string{}, command...), additionalArgs...)
	cmd := exec.CommandContext(ctx, fullArgs[0], fullArgs[1:]...)
	cmd.Stdout = os.Stderr // default stdout to stderr because we don't want other processes to output stuff on our output
	cmd.Stderr = os.Stderr
	return cmd
}

func RunCommand(log *logrus.Entry, cmd *exec.Cmd) error {
	log.Printf("starting: %s", cmd.String())
	return cmd.Run()
}

// Keeps the last Size bytes written to it
type TailBuffer struct {
	Size int

	mu  sync.Mutex
	buf []byte
}

func NewTailBuffer(size int) *TailBuffer {
	return &TailBuffer{Size: size}
}

// Part of io.Writer interface
func (t *TailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if len(t.buf) > t.Size {
		t.buf = append([]byte(nil), t.buf[len(t.buf)-t.Size:]...)
	}
	return len(p), nil
}

func (t *TailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

// Load age identities either from a file (if keyFile argument is provided), or from its content (key argument)
func LoadIdentities(keyFile, key string) ([]age.Identity, error) {
	data, err := keyData(keyFile, key)
	if err != nil {
		return nil, err
	}
	return age.ParseIdentities(bytes.NewBufferString(data))
}

// Load age recipients either from a file (if keyFile argument is provided), or from its content (key argument)
func LoadRecipients(keyFile, key string) ([]age.Recipient, error) {
	data, err := keyData(keyFile, key)
	if err != nil {
		return nil, err
	}
	return age.ParseRecipients(bytes.NewBufferString(data))
}

func keyData(keyFile, key string) (string, error) {
	if keyFile != "" && key != "" {
		return "", fmt.Errorf("must provide one of key file or key, not both")
	}

	if keyFile != "" {
		data, err := os.ReadFile(keyFile)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	return key, nil
}
