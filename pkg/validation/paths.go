package validation

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrSourceNotFound     = errors.New("source directory does not exist")
	ErrSourceNotDirectory = errors.New("source is not a directory")
	ErrTargetNotFound     = errors.New("target directory does not exist")
	ErrTargetNotDirectory = errors.New("target exists but is not a directory")
	ErrTargetInsideSource = errors.New("target must not be inside the source tree")
)

// EnsureSourceAndTarget validates the tree roots before a walk starts,
// against the rules every linking run assumes:
//   - Source: must exist and be a directory. Anything else is a hard error,
//     there is no tree to mirror.
//   - Target: may be missing (it gets created), but when it exists it must
//     be a directory. A regular file at the target path is a hard error,
//     not something to silently replace.
//   - Target must not be the source itself or live anywhere under it,
//     otherwise the walk would descend into the tree it is creating.
//
// Both paths are expected to be absolute and cleaned by the caller.
func EnsureSourceAndTarget(source, target string) error {
	srcStat, err := os.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrSourceNotFound, "%s", source)
		}
		return errors.Wrapf(err, "failed to stat source %s", source)
	}
	if !srcStat.IsDir() {
		return errors.Wrapf(ErrSourceNotDirectory, "%s", source)
	}

	if isWithin(source, target) {
		return errors.Wrapf(ErrTargetInsideSource, "%s is inside %s", target, source)
	}

	dstStat, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			// Fine, the target root gets created.
			return nil
		}
		return errors.Wrapf(err, "failed to stat target %s", target)
	}
	if !dstStat.IsDir() {
		return errors.Wrapf(ErrTargetNotDirectory, "%s", target)
	}

	return nil
}

// EnsureTargetExists validates that target is an existing directory. Used by
// operations that only read the target tree and therefore cannot create it.
func EnsureTargetExists(target string) error {
	dstStat, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrTargetNotFound, "%s", target)
		}
		return errors.Wrapf(err, "failed to stat target %s", target)
	}
	if !dstStat.IsDir() {
		return errors.Wrapf(ErrTargetNotDirectory, "%s", target)
	}
	return nil
}

// isWithin reports whether path equals root or sits below it. Purely
// lexical; both arguments must already be absolute and cleaned.
func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
