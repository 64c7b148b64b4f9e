package linker

import (
	"io/fs"
)

// EntryKind classifies a tree entry with lstat semantics: a symlink is
// always KindSymlink, never the kind of whatever it points to.
type EntryKind int

const (
	KindDirectory EntryKind = iota
	KindRegular
	KindSymlink
	KindOther // sockets, FIFOs, device files
)

func (k EntryKind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindRegular:
		return "regular file"
	case KindSymlink:
		return "symlink"
	default:
		return "special file"
	}
}

// KindOf classifies a file mode as reported by Lstat or DirEntry.Type.
func KindOf(mode fs.FileMode) EntryKind {
	switch {
	case mode.IsDir():
		return KindDirectory
	case mode.IsRegular():
		return KindRegular
	case mode&fs.ModeSymlink != 0:
		return KindSymlink
	default:
		return KindOther
	}
}

// Entry is one filesystem entry visited during a walk. The relative path is
// the same under both roots, so TargetPath is always the mirror position of
// SourcePath.
type Entry struct {
	// RelPath is the path of the entry relative to the source root, using
	// the platform separator.
	RelPath string
	// SourcePath is the absolute path of the entry under the source root.
	SourcePath string
	// TargetPath is the absolute path the entry maps to under the target
	// root.
	TargetPath string

	Kind EntryKind
}

// Skip reasons surfaced in logs and outcome records.
const (
	ReasonTargetExists = "target exists"
	ReasonNotRegular   = "not a regular file"
)

// OutcomeKind is the decision reached for a single entry.
type OutcomeKind int

const (
	// OutcomeLinked means a new hardlink was created at the target path.
	OutcomeLinked OutcomeKind = iota
	// OutcomeAlreadyLinked means the target already shares the source inode,
	// so there was nothing to do.
	OutcomeAlreadyLinked
	// OutcomeOverwritten means an unrelated target file was removed and
	// replaced by a hardlink.
	OutcomeOverwritten
	// OutcomeSkipped means the entry was deliberately left alone, with a
	// reason attached.
	OutcomeSkipped
	// OutcomeExcluded means the entry matched an exclude pattern.
	OutcomeExcluded
	// OutcomeFailed means an error prevented the entry from being processed.
	OutcomeFailed
	// OutcomeDirCreated means the directory was materialized at the target
	// path. Directories only ever produce DirCreated, Excluded or Failed.
	OutcomeDirCreated
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeLinked:
		return "linked"
	case OutcomeAlreadyLinked:
		return "already linked"
	case OutcomeOverwritten:
		return "overwritten"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeExcluded:
		return "excluded"
	case OutcomeFailed:
		return "failed"
	case OutcomeDirCreated:
		return "directory created"
	default:
		return "unknown"
	}
}

// Outcome is the decision reached for one entry, delivered to the OnEntry
// callback and folded into the report counters.
type Outcome struct {
	Kind OutcomeKind
	// Reason explains Skipped and Excluded outcomes.
	Reason string
	// Err is set for Failed outcomes.
	Err error
}
