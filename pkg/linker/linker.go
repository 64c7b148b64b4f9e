package linker

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/charlie0129/mklndir/pkg/matcher"
	"github.com/charlie0129/mklndir/pkg/utils/inode"
	"github.com/charlie0129/mklndir/pkg/utils/progress"
	"github.com/charlie0129/mklndir/pkg/utils/size"
	"github.com/charlie0129/mklndir/pkg/validation"
)

var (
	// ErrCrossDevice marks link attempts that would span two filesystems.
	// A hardlink is a directory entry pointing at an inode, and inode
	// numbers only mean anything within one device, so the OS refuses
	// these with EXDEV. Detected up front by comparing device ids, with
	// EXDEV from the link call as the fallback.
	ErrCrossDevice = errors.New("cannot hardlink across filesystems")

	// ErrTargetOccupied marks directory creation blocked by an existing
	// non-directory entry at the target path.
	ErrTargetOccupied = errors.New("target path is occupied by a non-directory")
)

// Linker mirrors a source directory tree into a target directory, entry by
// entry: directories are recreated, regular files become hardlinks of their
// source inode, everything else is reported and left alone.
//
// The walk is strictly sequential. That guarantees a parent directory is
// always materialized before anything inside it, keeps failure output in a
// stable order, and the bottleneck is metadata syscalls anyway since no
// file data is ever copied.
type Linker struct {
	conf   Config
	logger zerolog.Logger

	// Device ids of both roots, resolved once per run.
	srcDev uint64
	dstDev uint64

	// Counters are atomics only because the progress goroutine reads them
	// while the walk is running.
	entriesVisited atomic.Int64

	dirsCreated  atomic.Int64
	dirsExcluded atomic.Int64
	dirsFailed   atomic.Int64

	filesLinked        atomic.Int64
	filesOverwritten   atomic.Int64
	filesAlreadyLinked atomic.Int64
	filesSkipped       atomic.Int64
	filesExcluded      atomic.Int64
	filesFailed        atomic.Int64

	bytesLinked atomic.Int64

	// Target directories a dry run decided to create. The filesystem never
	// reflects dry-run decisions, so entries below such a directory consult
	// this map to see their parent the way a real run would. Only the walk
	// goroutine touches it.
	dryDirs map[string]struct{}

	failuresMu sync.Mutex
	failures   []Failure
}

func New(config Config, logger zerolog.Logger) *Linker {
	if err := config.Validate(); err != nil {
		panic(err)
	}

	logger = logger.With().Str("component", "linker").Logger()
	if config.DryRun {
		// Every line this component emits carries the marker, so a dry-run
		// transcript cannot be mistaken for a real one.
		logger = logger.With().Bool("dryRun", true).Logger()
	}

	return &Linker{
		conf:    config,
		logger:  logger,
		dryDirs: map[string]struct{}{},
	}
}

// Stats snapshots the running counters for the progress display.
func (l *Linker) Stats() progress.Stats {
	return progress.Stats{
		EntriesVisited: l.entriesVisited.Load(),
		FilesProcessed: l.filesLinked.Load() + l.filesOverwritten.Load(),
		BytesProcessed: l.bytesLinked.Load(),
		Failures:       l.filesFailed.Load() + l.dirsFailed.Load(),
	}
}

// Run walks the source tree once and returns the aggregated report. The
// report is valid even when Run returns an error, so callers can show what
// had been done before the run aborted.
//
// Entry-level problems never abort the run; they are recorded in the report
// and the walk moves on. Only a broken precondition (bad source, unusable
// target root) or a cancelled context ends the walk early.
func (l *Linker) Run(ctx context.Context) (*Report, error) {
	l.resolveRoots()

	if err := validation.EnsureSourceAndTarget(l.conf.SourceRoot, l.conf.TargetRoot); err != nil {
		return l.report(), err
	}

	if err := l.resolveDevices(); err != nil {
		return l.report(), err
	}
	if l.srcDev != l.dstDev {
		// Not fatal: files under the source root can still live on the
		// target's device (mount points inside the tree), so every file
		// gets its own check. This just tells the user early that the run
		// is unlikely to do what they want.
		l.logger.Warn().
			Str("source", l.conf.SourceRoot).
			Str("target", l.conf.TargetRoot).
			Msg("Source and target are on different filesystems, hardlinking will fail")
	}

	if err := l.ensureTargetRoot(); err != nil {
		return l.report(), err
	}

	err := l.walk(ctx)
	return l.report(), err
}

// resolveRoots follows symlinks in the configured roots. The walk below
// the roots uses lstat semantics, so an unresolved symlinked source root
// would classify as a non-directory and the mirror would come out empty.
// A root that does not resolve (typically a target that does not exist
// yet) is kept as given for validation to judge.
func (l *Linker) resolveRoots() {
	if resolved, err := filepath.EvalSymlinks(l.conf.SourceRoot); err == nil {
		l.conf.SourceRoot = resolved
	}
	if resolved, err := filepath.EvalSymlinks(l.conf.TargetRoot); err == nil {
		l.conf.TargetRoot = resolved
	}
}

func (l *Linker) resolveDevices() error {
	srcDev, err := inode.DeviceOf(l.conf.SourceRoot)
	if err != nil {
		return errors.Wrap(err, "failed to resolve source device")
	}
	dstDev, err := inode.DeviceOf(l.conf.TargetRoot)
	if err != nil {
		return errors.Wrap(err, "failed to resolve target device")
	}

	l.srcDev = srcDev
	l.dstDev = dstDev
	return nil
}

// ensureTargetRoot creates the target root when it is missing. Preflight
// validation already made sure an existing target root is a directory. The
// creation counts and is observed like any other directory, under the
// relative path ".".
func (l *Linker) ensureTargetRoot() error {
	_, err := os.Lstat(l.conf.TargetRoot)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to stat target %s", l.conf.TargetRoot)
	}

	l.logger.Debug().Str("path", l.conf.TargetRoot).Msg("Creating target root")
	if !l.conf.DryRun {
		if err := os.MkdirAll(l.conf.TargetRoot, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create target root %s", l.conf.TargetRoot)
		}
	} else {
		l.dryDirs[l.conf.TargetRoot] = struct{}{}
	}
	l.dirsCreated.Add(1)
	l.emit(Entry{
		RelPath:    ".",
		SourcePath: l.conf.SourceRoot,
		TargetPath: l.conf.TargetRoot,
		Kind:       KindDirectory,
	}, Outcome{Kind: OutcomeDirCreated})

	return nil
}

func (l *Linker) walk(ctx context.Context) error {
	return filepath.WalkDir(l.conf.SourceRoot, func(srcPath string, d fs.DirEntry, walkErr error) error {
		if srcPath == l.conf.SourceRoot {
			if walkErr != nil {
				// Losing the root means losing the whole run.
				return errors.Wrapf(walkErr, "failed to read source root %s", srcPath)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		relPath, err := filepath.Rel(l.conf.SourceRoot, srcPath)
		if err != nil {
			return errors.Wrapf(err, "failed to get relative path for %s", srcPath)
		}

		entry := Entry{
			RelPath:    relPath,
			SourcePath: srcPath,
			TargetPath: filepath.Join(l.conf.TargetRoot, relPath),
		}
		if d != nil {
			entry.Kind = KindOf(d.Type())
		}

		if walkErr != nil {
			// An unreadable subdirectory loses that subtree only. WalkDir
			// reports it against the directory itself and then carries on
			// with its siblings.
			l.dirFailed(entry, errors.Wrapf(walkErr, "failed to read directory %s", srcPath))
			return nil
		}

		if l.conf.RateLimiter != nil {
			if err := l.conf.RateLimiter.Wait(ctx); err != nil {
				return errors.Wrap(err, "failed to wait for rate limiter")
			}
		}

		l.entriesVisited.Add(1)

		if matcher.Matches(relPath, l.conf.ExcludePatterns) {
			return l.exclude(entry)
		}

		switch entry.Kind {
		case KindDirectory:
			return l.processDir(entry, d)
		case KindRegular:
			l.processFile(entry, d)
			return nil
		default:
			l.skip(entry, ReasonNotRegular)
			return nil
		}
	})
}

func (l *Linker) exclude(entry Entry) error {
	if entry.Kind == KindDirectory {
		l.dirsExcluded.Add(1)
		l.logger.Debug().Str("path", entry.RelPath).Msg("Excluded directory, skipping subtree")
		l.emit(entry, Outcome{Kind: OutcomeExcluded, Reason: "matched exclude pattern"})
		return fs.SkipDir
	}

	l.filesExcluded.Add(1)
	l.logger.Debug().Str("path", entry.RelPath).Msg("Excluded")
	l.emit(entry, Outcome{Kind: OutcomeExcluded, Reason: "matched exclude pattern"})
	return nil
}

// processDir materializes the directory at the target path. An existing
// target directory counts as success; a non-directory in the way is a
// conflict, resolved by Overwrite or recorded as a failure. Returning
// fs.SkipDir on failure keeps the walk from descending into a subtree whose
// parent could not be created.
func (l *Linker) processDir(entry Entry, d fs.DirEntry) error {
	info, err := l.statTarget(entry.TargetPath)
	if err == nil {
		if info.IsDir() {
			// Merging into existing directories is the whole point of
			// re-running against the same target.
			return nil
		}

		if !l.conf.Overwrite {
			l.dirFailed(entry, errors.Wrapf(ErrTargetOccupied, "%s", entry.TargetPath))
			return fs.SkipDir
		}

		l.logger.Debug().Str("path", entry.TargetPath).Msg("Removing entry occupying directory path")
		if !l.conf.DryRun {
			if err := os.Remove(entry.TargetPath); err != nil {
				l.dirFailed(entry, errors.Wrapf(err, "failed to remove %s", entry.TargetPath))
				return fs.SkipDir
			}
		}
	} else if !os.IsNotExist(err) {
		l.dirFailed(entry, errors.Wrapf(err, "failed to stat %s", entry.TargetPath))
		return fs.SkipDir
	}

	mode := fs.FileMode(0o755)
	if srcInfo, err := d.Info(); err == nil {
		mode = srcInfo.Mode().Perm()
	}

	l.logger.Debug().Str("path", entry.TargetPath).Msg("Creating directory")
	if !l.conf.DryRun {
		// Parents are guaranteed by walk order, so a plain Mkdir is enough.
		if err := os.Mkdir(entry.TargetPath, mode); err != nil {
			l.dirFailed(entry, errors.Wrapf(err, "failed to create directory %s", entry.TargetPath))
			return fs.SkipDir
		}
	} else {
		l.dryDirs[entry.TargetPath] = struct{}{}
	}
	l.dirsCreated.Add(1)
	l.emit(entry, Outcome{Kind: OutcomeDirCreated})

	return nil
}

// statTarget lstats a target path. During a dry run a path whose parent
// directory this run decided to create reports as absent: the real
// filesystem may hold a conflicting entry there (an occupant the dry run
// would have replaced), but after a real run it would be a fresh empty
// directory.
func (l *Linker) statTarget(path string) (os.FileInfo, error) {
	if l.conf.DryRun {
		if _, ok := l.dryDirs[filepath.Dir(path)]; ok {
			return nil, os.ErrNotExist
		}
	}
	return os.Lstat(path)
}

// processFile decides what to do with one regular file. The decision order
// matters: identity is checked before the overwrite policy, so re-running
// with --overwrite never churns links that are already correct.
func (l *Linker) processFile(entry Entry, d fs.DirEntry) {
	srcInfo, err := d.Info()
	if err != nil {
		l.fileFailed(entry, errors.Wrapf(err, "failed to stat source %s", entry.SourcePath))
		return
	}

	srcIdent, ok := inode.FromFileInfo(srcInfo)
	if !ok {
		l.fileFailed(entry, errors.Errorf("no inode information for %s", entry.SourcePath))
		return
	}

	dstInfo, err := l.statTarget(entry.TargetPath)
	switch {
	case err == nil:
		if dstIdent, ok := inode.FromFileInfo(dstInfo); ok && dstIdent == srcIdent {
			l.filesAlreadyLinked.Add(1)
			l.decision().Str("path", entry.RelPath).Msg("Already hardlinked")
			l.emit(entry, Outcome{Kind: OutcomeAlreadyLinked})
			return
		}

		if !l.conf.Overwrite {
			l.skip(entry, ReasonTargetExists)
			return
		}

		if err := l.overwrite(entry, srcInfo, srcIdent); err != nil {
			l.fileFailed(entry, err)
		}

	case os.IsNotExist(err):
		if err := l.link(entry, srcInfo, srcIdent, false); err != nil {
			l.fileFailed(entry, err)
		}

	default:
		l.fileFailed(entry, errors.Wrapf(err, "failed to stat target %s", entry.TargetPath))
	}
}

// link creates the hardlink for entry. The device check runs before the
// syscall so a doomed attempt is reported the same way on dry runs, where
// the syscall never happens.
func (l *Linker) link(entry Entry, srcInfo fs.FileInfo, srcIdent inode.Identity, overwriting bool) error {
	if srcIdent.Dev != l.dstDev {
		return errors.Wrapf(ErrCrossDevice, "%s -> %s", entry.SourcePath, entry.TargetPath)
	}

	if !l.conf.DryRun {
		if err := os.Link(entry.SourcePath, entry.TargetPath); err != nil {
			if inode.IsCrossDevice(err) {
				return errors.Wrapf(ErrCrossDevice, "%s -> %s", entry.SourcePath, entry.TargetPath)
			}
			return errors.Wrapf(err, "failed to hardlink %s -> %s", entry.SourcePath, entry.TargetPath)
		}
	}

	if overwriting {
		l.filesOverwritten.Add(1)
		l.emit(entry, Outcome{Kind: OutcomeOverwritten})
	} else {
		l.filesLinked.Add(1)
		l.emit(entry, Outcome{Kind: OutcomeLinked})
	}
	l.bytesLinked.Add(srcInfo.Size())

	l.decision().Str("source", entry.SourcePath).Str("target", entry.TargetPath).
		Int64("size", srcInfo.Size()).Str("sizeHuman", size.FormatBytes(srcInfo.Size())).
		Msg("Hardlinked")

	return nil
}

// overwrite replaces an unrelated target file with a hardlink. The device
// check runs before the removal so a doomed overwrite does not delete the
// existing target first.
func (l *Linker) overwrite(entry Entry, srcInfo fs.FileInfo, srcIdent inode.Identity) error {
	if srcIdent.Dev != l.dstDev {
		return errors.Wrapf(ErrCrossDevice, "%s -> %s", entry.SourcePath, entry.TargetPath)
	}

	l.logger.Debug().Str("path", entry.TargetPath).Msg("Removing existing target")
	if !l.conf.DryRun {
		if err := os.Remove(entry.TargetPath); err != nil {
			return errors.Wrapf(err, "failed to remove existing target %s", entry.TargetPath)
		}
	}

	return l.link(entry, srcInfo, srcIdent, true)
}

func (l *Linker) skip(entry Entry, reason string) {
	l.filesSkipped.Add(1)
	l.logger.Warn().Str("path", entry.RelPath).Str("kind", entry.Kind.String()).
		Str("reason", reason).Msg("Skipped")
	l.emit(entry, Outcome{Kind: OutcomeSkipped, Reason: reason})
}

func (l *Linker) fileFailed(entry Entry, err error) {
	l.filesFailed.Add(1)
	l.recordFailure(entry, err)
}

func (l *Linker) dirFailed(entry Entry, err error) {
	l.dirsFailed.Add(1)
	l.recordFailure(entry, err)
}

func (l *Linker) recordFailure(entry Entry, err error) {
	l.failuresMu.Lock()
	l.failures = append(l.failures, Failure{Entry: entry, Err: err})
	l.failuresMu.Unlock()

	l.logger.Error().Str("path", entry.RelPath).Err(err).Msg("Failed to process entry")
	l.emit(entry, Outcome{Kind: OutcomeFailed, Err: err})
}

func (l *Linker) emit(entry Entry, outcome Outcome) {
	if l.conf.OnEntry != nil {
		l.conf.OnEntry(entry, outcome)
	}
}

// decision returns the event for per-entry decision lines: Info when the
// run asked for verbose reporting, Debug otherwise.
func (l *Linker) decision() *zerolog.Event {
	if l.conf.Verbose {
		return l.logger.Info()
	}
	return l.logger.Debug()
}

func (l *Linker) report() *Report {
	l.failuresMu.Lock()
	failures := make([]Failure, len(l.failures))
	copy(failures, l.failures)
	l.failuresMu.Unlock()

	return &Report{
		DirsCreated:  l.dirsCreated.Load(),
		DirsExcluded: l.dirsExcluded.Load(),
		DirsFailed:   l.dirsFailed.Load(),

		FilesLinked:        l.filesLinked.Load(),
		FilesOverwritten:   l.filesOverwritten.Load(),
		FilesAlreadyLinked: l.filesAlreadyLinked.Load(),
		FilesSkipped:       l.filesSkipped.Load(),
		FilesExcluded:      l.filesExcluded.Load(),
		FilesFailed:        l.filesFailed.Load(),

		BytesLinked: l.bytesLinked.Load(),

		Failures: failures,
	}
}
