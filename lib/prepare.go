package xbprep

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Suffix of the marker file left next to a prepared directory until its preparation succeeds
const IncompleteSuffix = ".incomplete"

var prepareLog = logrus.WithFields(logrus.Fields{
	"component": "prepare",
})

type PrepareOptions struct {
	// Directory receiving the prepared copy. Required.
	OutputDir string

	// Directory holding the full and incremental backups. Required.
	BackupBaseDir string

	// Specific backup to prepare. Default: the most recent usable recovery point.
	BackupDir string

	// Credentials given to the apply tool. Default: none, the tool uses its own configuration.
	Username string
	Password string
}

type Result struct {
	// The recovery point that has been prepared
	Target Backup

	// The backups applied, in order
	Chain Chain

	// The prepared directory, ready for copy-back
	Dir string
}

// Advisory instructions to finish the restoration
func (r *Result) RestoreHint() string {
	return fmt.Sprintf("Backup preparation finished. You can now halt mysqld and apply it with something like "+
		"'xtrabackup --copy-back --target-dir=%s && chown -R mysql:mysql /var/lib/mysql'.", r.Dir)
}

// Prepares backups for restoration. A Preparer holds no state besides its collaborators.
// Concurrent preparations into the same output directory are not supported.
type Preparer struct {
	catalog Catalog
	applier Applier
	fs      afero.Fs
}

func NewPreparer(catalog Catalog, applier Applier, fs afero.Fs) *Preparer {
	return &Preparer{catalog: catalog, applier: applier, fs: fs}
}

// Choose the backup to prepare: backupDir if given, otherwise the most recent recovery point.
// An incremental backup is only chosen if it is more recent than the latest full backup.
func (p *Preparer) SelectTarget(baseDir, backupDir string) (Backup, error) {
	if backupDir != "" {
		return p.catalog.FindBackup(backupDir)
	}

	fulls, err := p.catalog.ListBackups(baseDir, KindFull)
	if err != nil {
		return Backup{}, err
	}
	if len(fulls) == 0 {
		return Backup{}, &NoFullBackupFoundError{BaseDir: baseDir}
	}

	incs, err := p.catalog.ListBackups(baseDir, KindIncremental)
	if err != nil {
		return Backup{}, err
	}

	lastFull := fulls[len(fulls)-1]
	if len(incs) == 0 {
		prepareLog.Printf("no incremental backups found, selecting the latest full backup")
		return lastFull, nil
	}

	lastInc := incs[len(incs)-1]
	if lastInc.ToLSN <= lastFull.ToLSN {
		prepareLog.Printf("latest incremental backup %s is not more recent than latest full backup %s, selecting the full backup", lastInc.Name(), lastFull.Name())
		return lastFull, nil
	}

	prepareLog.Printf("selecting the latest incremental backup")
	return lastInc, nil
}

// Build the chain leading to target, using the backups of the catalog
func (p *Preparer) Chain(baseDir string, target Backup) (Chain, error) {
	switch target.Kind {
	case KindFull:
		return Chain{target}, nil
	case KindIncremental:
		fulls, err := p.catalog.ListBackups(baseDir, KindFull)
		if err != nil {
			return nil, err
		}
		incs, err := p.catalog.ListBackups(baseDir, KindIncremental)
		if err != nil {
			return nil, err
		}
		return ResolveChain(target, incs, fulls)
	default:
		return nil, &BackupNotFoundError{Dir: target.Path, Reason: "unknown backup kind " + target.Kind.String()}
	}
}

// Prepare a backup: copy the full backup of the chain into the output directory, then apply the
// redo logs of the chain onto it. On failure the prepared directory is left as is, alongside a
// marker file telling it is unfinished.
func (p *Preparer) Prepare(ctx context.Context, opts PrepareOptions) (*Result, error) {
	if opts.OutputDir == "" {
		return nil, &InvalidArgumentError{Name: "output_dir"}
	}
	if opts.BackupBaseDir == "" {
		return nil, &InvalidArgumentError{Name: "backup_base_dir"}
	}

	target, err := p.SelectTarget(opts.BackupBaseDir, opts.BackupDir)
	if err != nil {
		return nil, err
	}

	chain, err := p.Chain(opts.BackupBaseDir, target)
	if err != nil {
		return nil, err
	}
	if err = chain.Validate(); err != nil {
		return nil, err
	}

	prepareLog.Printf("backup chain: %v", chain)
	s := &stager{
		Preparer: p,
		ctx:      ctx,
		chain:    chain,
		creds:    Credentials{User: opts.Username, Password: opts.Password},
		output:   opts.OutputDir,
		marker:   filepath.Join(opts.OutputDir, chain.Last().Name()+IncompleteSuffix),
	}

	dir, err := s.run()
	if err != nil {
		prepareLog.Warnf("preparation of %s failed in state %s, %s is left unfinished", chain.Last().Name(), s.state(), s.marker)
		return nil, err
	}

	return &Result{Target: target, Chain: chain, Dir: dir}, nil
}

// Last state reached by the prepared directory
type stage string

const (
	stageUnstaged     stage = "unstaged"
	stageCopied       stage = "copied"
	stageRedoApplied  stage = "redo-only applied"
	stageFinalApplied stage = "final applied"
	stageDone         stage = "done"
)

// One run of the staged apply protocol
type stager struct {
	*Preparer
	ctx    context.Context
	chain  Chain
	creds  Credentials
	output string
	marker string
	stage  stage
	redos  int
}

func (s *stager) state() string {
	if s.stage == stageRedoApplied {
		return fmt.Sprintf("%s(%d)", s.stage, s.redos)
	}
	return string(s.stage)
}

func (s *stager) run() (string, error) {
	s.stage = stageUnstaged
	if err := s.mark(); err != nil {
		return "", err
	}

	dir, err := s.copyFull()
	if err != nil {
		return "", err
	}

	s.stage = stageCopied
	if s.chain.IsFullOnly() {
		prepareLog.Printf("preparing full backup in %s", dir)
		if err = s.apply(dir, ApplyOptions{}); err != nil {
			return dir, err
		}
	} else {
		dir, err = s.renameToLast(dir)
		if err != nil {
			return dir, err
		}
		if err = s.applyChain(dir); err != nil {
			return dir, err
		}
	}

	s.stage = stageDone
	return dir, errors.Wrapf(s.fs.Remove(s.marker), "cannot remove %s", s.marker)
}

func (s *stager) mark() error {
	if err := s.fs.MkdirAll(s.output, 0777); err != nil {
		return errors.Wrapf(err, "cannot create %s", s.output)
	}

	content := fmt.Sprintf("started=%s\nchain=%v\n", time.Now().UTC().Format(time.RFC3339), s.chain)
	err := afero.WriteFile(s.fs, s.marker, []byte(content), 0666)
	return errors.Wrapf(err, "cannot write %s", s.marker)
}

func (s *stager) copyFull() (string, error) {
	full := s.chain.Full()
	dest := filepath.Join(s.output, full.Name())
	if err := RemoveIfExists(s.fs, dest); err != nil {
		return "", err
	}

	prepareLog.Printf("copying %s to %s", full.Path, s.output)
	return CopyTree(s.fs, full.Path, s.output)
}

// The prepared directory takes the name of the recovery point it represents
func (s *stager) renameToLast(dir string) (string, error) {
	dest := filepath.Join(s.output, s.chain.Last().Name())
	if dest == dir {
		return dir, nil
	}

	if err := RemoveIfExists(s.fs, dest); err != nil {
		return dir, err
	}

	prepareLog.Printf("renaming %s to %s", dir, dest)
	if err := s.fs.Rename(dir, dest); err != nil {
		return dir, errors.Wrapf(err, "cannot rename %s to %s", dir, dest)
	}
	return dest, nil
}

func (s *stager) applyChain(dir string) error {
	full := s.chain.Full()
	prepareLog.Printf("preparing full backup %d -> %d in %s", full.FromLSN, full.ToLSN, dir)
	if err := s.apply(dir, ApplyOptions{RedoOnly: true}); err != nil {
		return err
	}

	incs := s.chain.Increments()
	for i, inc := range incs {
		last := i == len(incs)-1
		if last {
			prepareLog.Printf("applying the last increment #%d %d -> %d to %s", i+1, inc.FromLSN, inc.ToLSN, dir)
		} else {
			prepareLog.Printf("applying incremental backup #%d %d -> %d to %s", i+1, inc.FromLSN, inc.ToLSN, dir)
		}

		err := s.apply(dir, ApplyOptions{RedoOnly: !last, IncrementalDir: inc.Path})
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *stager) apply(dir string, opts ApplyOptions) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	opts.Credentials = s.creds
	if err := s.applier.Apply(s.ctx, dir, opts); err != nil {
		return err
	}

	if opts.RedoOnly {
		s.stage = stageRedoApplied
		s.redos++
	} else {
		s.stage = stageFinalApplied
	}
	return nil
}
