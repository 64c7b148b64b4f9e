// Package matcher decides which tree entries an exclude pattern list
// applies to. It is purely computational and never touches the filesystem,
// so the same rules can back both linking and verification.
package matcher

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Matches reports whether the entry at relPath is excluded by patterns.
//
// An entry is excluded when its relative path, or any single component of
// it, matches at least one pattern under shell glob rules ('*', '?',
// character classes). Matching components individually is what lets a bare
// name like "__pycache__" exclude that directory wherever it appears in the
// tree. Patterns are ORed together; an empty list excludes nothing.
//
// Malformed patterns never match anything here. Validate rejects them
// before any tree work starts.
func Matches(relPath string, patterns []string) bool {
	if len(patterns) == 0 || relPath == "" || relPath == "." {
		return false
	}

	components := strings.Split(relPath, string(filepath.Separator))

	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, relPath); matched {
			return true
		}
		for _, component := range components {
			if matched, _ := filepath.Match(pattern, component); matched {
				return true
			}
		}
	}

	return false
}

// Validate checks that every pattern is well-formed glob syntax, so a typo
// like an unclosed character class surfaces as an error up front instead of
// silently excluding nothing.
func Validate(patterns []string) error {
	for _, pattern := range patterns {
		if _, err := filepath.Match(pattern, "x"); err != nil {
			return errors.Wrapf(err, "invalid exclude pattern %q", pattern)
		}
	}
	return nil
}
