package verifier

import (
	"context"
	"io/fs"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/charlie0129/mklndir/pkg/matcher"
)

// Walker lists the regular files a linking run would have processed and
// sends them to the verification workers. Symlinks and special files are
// never linked, so they are not listed either.
type Walker struct {
	conf   WalkerConfig
	logger zerolog.Logger
}

func NewWalker(config WalkerConfig, logger zerolog.Logger) *Walker {
	if err := config.Validate(); err != nil {
		panic(err)
	}

	return &Walker{
		conf:   config,
		logger: logger.With().Str("component", "walker").Logger(),
	}
}

func (w *Walker) Start(ctx context.Context, entries chan<- Entry) error {
	return filepath.WalkDir(w.conf.SourceRoot, func(srcPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.Wrapf(err, "failed to access %s", srcPath)
		}

		if srcPath == w.conf.SourceRoot {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		relPath, err := filepath.Rel(w.conf.SourceRoot, srcPath)
		if err != nil {
			return errors.Wrapf(err, "failed to get relative path for %s", srcPath)
		}

		if matcher.Matches(relPath, w.conf.ExcludePatterns) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		entry := Entry{
			RelPath:    relPath,
			SourcePath: srcPath,
			TargetPath: filepath.Join(w.conf.TargetRoot, relPath),
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case entries <- entry:
			w.logger.Trace().Str("path", relPath).Msg("Discovered regular file")
			return nil
		}
	})
}
