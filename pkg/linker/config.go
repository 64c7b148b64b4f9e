package linker

import (
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/charlie0129/mklndir/pkg/matcher"
)

// Config carries everything one linking run needs.
type Config struct {
	// SourceRoot is the directory tree to mirror. Must be an absolute path
	// to an existing directory.
	SourceRoot string
	// TargetRoot is the directory the tree is mirrored into. Must be an
	// absolute path; created when absent.
	TargetRoot string

	// Overwrite replaces target files that exist but are not hardlinks of
	// their source counterpart. Destructive, so off by default.
	Overwrite bool
	// DryRun exercises every decision and produces a full report without
	// modifying the filesystem.
	DryRun bool
	// Verbose widens reporting around the run. It never changes what gets
	// linked.
	Verbose bool

	// ExcludePatterns are shell glob patterns matched against each entry's
	// relative path and each of its path components. An excluded directory
	// prunes its whole subtree.
	ExcludePatterns []string

	// RateLimiter, when non-nil, caps how many tree entries are processed
	// per second.
	RateLimiter *rate.Limiter

	// OnEntry, when non-nil, is called in walk order with the outcome of
	// every entry that lands in a report counter: all non-directory
	// entries, plus directories that were created, excluded or failed.
	// Creating the target root itself is observed as a directory event
	// under the relative path ".". OnEntry runs on the walking goroutine,
	// so it must be cheap.
	OnEntry func(Entry, Outcome)
}

func (c *Config) Validate() error {
	if c.SourceRoot == "" {
		return errors.New("source root must not be empty")
	}
	if c.TargetRoot == "" {
		return errors.New("target root must not be empty")
	}
	if !filepath.IsAbs(c.SourceRoot) {
		return errors.Errorf("source root must be absolute: %s", c.SourceRoot)
	}
	if !filepath.IsAbs(c.TargetRoot) {
		return errors.Errorf("target root must be absolute: %s", c.TargetRoot)
	}
	if err := matcher.Validate(c.ExcludePatterns); err != nil {
		return err
	}

	return nil
}
