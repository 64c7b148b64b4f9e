package verify

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	"github.com/charlie0129/mklndir/pkg/utils/log"
	"github.com/charlie0129/mklndir/pkg/utils/progress"
	"github.com/charlie0129/mklndir/pkg/utils/size"
	"github.com/charlie0129/mklndir/pkg/validation"
	"github.com/charlie0129/mklndir/pkg/verifier"
)

// Verifier config
var (
	maxConcurrentFiles = 16
)

var (
	excludePatterns  []string
	fileRateLimitStr string
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [flags] SOURCE TARGET",
		Short: "Verify that a mirrored tree still hardlinks back to its source",
		Long: `
Walks SOURCE the same way the mirror was made and checks that every regular
file has a hardlink counterpart under TARGET, by comparing inode identities.
No file contents are read. Exits non-zero if any file is missing or has
been replaced by an unrelated copy.
`,
		Args:         cobra.ExactArgs(2),
		RunE:         runVerify,
		SilenceUsage: true,
	}

	f := cmd.Flags()

	f.StringArrayVarP(&excludePatterns, "exclude", "e", nil, "Glob pattern to exclude, matched like the mirroring run (repeatable)")
	f.IntVarP(&maxConcurrentFiles, "concurrent-files", "c", maxConcurrentFiles, "Maximum number of files checked concurrently")
	f.StringVar(&fileRateLimitStr, "file-rate-limit", "", "Limit files checked per second (e.g., 10, 1k)")

	return cmd
}

func runVerify(cmd *cobra.Command, args []string) error {
	var logger zerolog.Logger
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)

	var progressBar *progress.Progress
	progressDone := make(chan struct{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		progressBar = progress.New(os.Stderr, 100*time.Millisecond)
		defer func() {
			cancel()
			<-progressDone
		}()
		go func() {
			defer close(progressDone)
			progressBar.Start(ctx)
		}()
	}

	if progressBar == nil {
		logger = log.GetLogger(os.Stderr, false)
	} else {
		logger = log.GetLogger(progressBar, true)
	}

	sourceRoot, err := filepath.Abs(args[0])
	if err != nil {
		return errors.Wrapf(err, "failed to resolve source path %s", args[0])
	}
	targetRoot, err := filepath.Abs(args[1])
	if err != nil {
		return errors.Wrapf(err, "failed to resolve target path %s", args[1])
	}

	// Follow symlinked roots, like the mirroring run does. The walk uses
	// lstat semantics below the roots, not at them.
	if resolved, err := filepath.EvalSymlinks(sourceRoot); err == nil {
		sourceRoot = resolved
	}
	if resolved, err := filepath.EvalSymlinks(targetRoot); err == nil {
		targetRoot = resolved
	}

	// Verification never creates anything, so both roots must already be in
	// place.
	if err := validation.EnsureSourceAndTarget(sourceRoot, targetRoot); err != nil {
		return err
	}
	if err := validation.EnsureTargetExists(targetRoot); err != nil {
		return err
	}

	walkerConfig := verifier.WalkerConfig{
		SourceRoot:      sourceRoot,
		TargetRoot:      targetRoot,
		ExcludePatterns: excludePatterns,
	}
	if err := walkerConfig.Validate(); err != nil {
		return err
	}

	w := verifier.NewWalker(walkerConfig, logger)
	entries := make(chan verifier.Entry, 4096)
	eg.Go(func() error {
		defer close(entries)
		return w.Start(ctx, entries)
	})

	verifierConfig := verifier.Config{
		MaxConcurrentFiles: maxConcurrentFiles,
	}
	if err := verifierConfig.Validate(); err != nil {
		return err
	}

	fileRateLimit := size.MustParse(fileRateLimitStr)

	eg.Go(func() error {
		var fileRateLimiter *rate.Limiter
		if fileRateLimit > 0 {
			fileRateLimiter = rate.NewLimiter(rate.Limit(fileRateLimit), 1*maxConcurrentFiles)
		}

		v := verifier.New(verifierConfig, logger)
		if progressBar != nil {
			progressBar.SetStatsGetter(v.Stats)
		}

		return v.Start(ctx, entries, fileRateLimiter)
	})

	return eg.Wait()
}
