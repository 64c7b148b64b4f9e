package verifier

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/charlie0129/mklndir/pkg/utils/inode"
	"github.com/charlie0129/mklndir/pkg/utils/progress"
)

// ErrVerificationFailed is returned by Start when at least one file did not
// check out. Individual mismatches are logged and collected as they are
// found.
var ErrVerificationFailed = errors.New("some files are not hardlinks of their source, see logs for details")

// Entry is one regular file to check: where it lives under the source root
// and where its hardlink is expected under the target root.
type Entry struct {
	RelPath    string
	SourcePath string
	TargetPath string
}

// Mismatch records one entry that failed verification and why.
type Mismatch struct {
	Entry  Entry
	Reason string
}

// Mismatch reasons.
const (
	ReasonMissing   = "missing from target"
	ReasonNotLinked = "target is not a hardlink of source"
)

// CheckOne verifies a single source/target pair by comparing inode
// identities. No file data is read; two lstat calls decide everything,
// which is what makes verification cheap enough to run after every mirror.
func CheckOne(source, target string) (bool, string, error) {
	srcIdent, err := inode.Of(source)
	if err != nil {
		return false, "", err
	}

	dstIdent, err := inode.Of(target)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return false, ReasonMissing, nil
		}
		return false, "", err
	}

	if srcIdent != dstIdent {
		return false, ReasonNotLinked, nil
	}

	return true, "", nil
}

// Verifier checks that target files are hardlinks of their source
// counterparts, with a pool of concurrent workers. Unlike linking,
// verification is read-only, so running checks in parallel is safe.
type Verifier struct {
	conf   Config
	logger zerolog.Logger

	// Stats
	filesChecked atomic.Int64
	filesMatched atomic.Int64

	mismatchesMu sync.Mutex
	mismatches   []Mismatch
}

func New(config Config, logger zerolog.Logger) *Verifier {
	if err := config.Validate(); err != nil {
		panic(err)
	}

	return &Verifier{
		conf:   config,
		logger: logger.With().Str("component", "verifier").Logger(),
	}
}

func (v *Verifier) Stats() progress.Stats {
	return progress.Stats{
		EntriesVisited: v.filesChecked.Load(),
		FilesProcessed: v.filesMatched.Load(),
		Failures:       int64(len(v.Mismatches())),
	}
}

// Mismatches returns the mismatches collected so far, in no particular
// order since workers race to append.
func (v *Verifier) Mismatches() []Mismatch {
	v.mismatchesMu.Lock()
	defer v.mismatchesMu.Unlock()

	out := make([]Mismatch, len(v.mismatches))
	copy(out, v.mismatches)
	return out
}

// Start consumes entries until the channel is closed and checks each one.
// It returns ErrVerificationFailed if any file did not verify; mismatched
// files never stop the other workers.
func (v *Verifier) Start(
	ctx context.Context,
	entries <-chan Entry,
	fileRateLimiter *rate.Limiter,
) error {
	eg, ctx := errgroup.WithContext(ctx)

	for i := 0; i < v.conf.MaxConcurrentFiles; i++ {
		eg.Go(func() error {
			for entry := range entries {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				if fileRateLimiter != nil {
					if err := fileRateLimiter.Wait(ctx); err != nil {
						return errors.Wrap(err, "failed to wait for file rate limiter")
					}
				}

				v.checkEntry(entry)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return errors.Wrap(err, "failed to verify files")
	}

	if n := len(v.Mismatches()); n > 0 {
		return errors.Wrapf(ErrVerificationFailed, "%d of %d files", n, v.filesChecked.Load())
	}

	return nil
}

func (v *Verifier) checkEntry(entry Entry) {
	v.filesChecked.Add(1)

	ok, reason, err := CheckOne(entry.SourcePath, entry.TargetPath)
	if err != nil {
		// An unreadable entry cannot be pronounced a hardlink, so it counts
		// as a mismatch with the error as the reason.
		v.flag(entry, err.Error())
		return
	}
	if !ok {
		v.flag(entry, reason)
		return
	}

	v.filesMatched.Add(1)
	v.logger.Debug().Str("path", entry.RelPath).Msg("Verified hardlink")
}

func (v *Verifier) flag(entry Entry, reason string) {
	v.mismatchesMu.Lock()
	v.mismatches = append(v.mismatches, Mismatch{Entry: entry, Reason: reason})
	v.mismatchesMu.Unlock()

	v.logger.Warn().Str("path", entry.RelPath).Str("target", entry.TargetPath).
		Str("reason", reason).Msg("Verification mismatch")
}
