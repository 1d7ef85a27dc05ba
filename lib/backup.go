package xbprep

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Kind of a backup. There are only two: a backup is either full or incremental.
type Kind int

const (
	KindFull Kind = iota
	KindIncremental
)

func (k Kind) String() string {
	switch k {
	case KindFull:
		return "full"
	case KindIncremental:
		return "incremental"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Represents a backup directory produced by the backup tool
type Backup struct {
	Kind Kind

	// Location of the backup on disk
	Path string

	// Redo range covered by the backup. For a full backup, FromLSN is the baseline (usually 0).
	FromLSN uint64
	ToLSN   uint64
}

func (b Backup) IsFull() bool {
	return b.Kind == KindFull
}

// Base name of the backup directory
func (b Backup) Name() string {
	return filepath.Base(filepath.Clean(b.Path))
}

func (b Backup) key() string {
	return filepath.Clean(b.Path)
}

func (b Backup) String() string {
	return fmt.Sprintf("%s %s (%d -> %d)", b.Kind, b.Path, b.FromLSN, b.ToLSN)
}

// Compare backups by creation order: by directory name, which the backup tools derive from the
// backup date, then by end LSN
func CompareBackups(a, b Backup) int {
	if c := strings.Compare(a.Name(), b.Name()); c != 0 {
		return c
	}
	switch {
	case a.ToLSN < b.ToLSN:
		return -1
	case a.ToLSN > b.ToLSN:
		return 1
	default:
		return 0
	}
}

// Sorted from least recent to most recent
func SortBackups(backups []Backup) {
	sort.SliceStable(backups, func(i, j int) bool {
		return CompareBackups(backups[i], backups[j]) < 0
	})
}

// A full backup followed by the increments needed to reach a recovery point, in apply order
type Chain []Backup

func (c Chain) Full() Backup {
	return c[0]
}

// The recovery point the chain leads to
func (c Chain) Last() Backup {
	return c[len(c)-1]
}

func (c Chain) Increments() []Backup {
	return c[1:]
}

func (c Chain) IsFullOnly() bool {
	return len(c) == 1
}

// Check the structural invariants of a chain: a full backup first, then contiguous increments
func (c Chain) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("empty backup chain")
	}
	if !c[0].IsFull() {
		return fmt.Errorf("backup chain starts with %v instead of a full backup", c[0])
	}
	for i := 1; i < len(c); i++ {
		if c[i].IsFull() {
			return fmt.Errorf("backup chain contains full backup %v at position %d", c[i], i)
		}
		if c[i].FromLSN != c[i-1].ToLSN {
			return &ChainBrokenError{Backup: c[i], WantLSN: c[i].FromLSN}
		}
	}
	return nil
}

func (c Chain) String() string {
	names := make([]string, 0, len(c))
	for _, b := range c {
		names = append(names, b.Name())
	}
	return strings.Join(names, " -> ")
}
