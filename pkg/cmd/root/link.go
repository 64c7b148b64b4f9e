package root

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	"github.com/charlie0129/mklndir/pkg/configfile"
	"github.com/charlie0129/mklndir/pkg/linker"
	"github.com/charlie0129/mklndir/pkg/utils/log"
	"github.com/charlie0129/mklndir/pkg/utils/progress"
	"github.com/charlie0129/mklndir/pkg/utils/size"
)

func runLink(cmd *cobra.Command, args []string) error {
	var logger zerolog.Logger
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))

	var progressBar *progress.Progress
	progressDone := make(chan struct{})
	if isTerminal {
		progressBar = progress.New(os.Stderr, 100*time.Millisecond)

		// So the progress line is flushed before we return.
		defer func() {
			cancel()
			<-progressDone
		}()

		go func() {
			defer close(progressDone)
			progressBar.Start(ctx)
		}()
	} else {
		close(progressDone)
	}

	var stateLog *os.File
	var stateLogErr error
	if logToStateFile {
		stateLog, stateLogErr = log.StateLogFile()
		if stateLog != nil {
			defer stateLog.Close()
		}
	}

	var extraWriters []io.Writer
	if stateLog != nil {
		extraWriters = append(extraWriters, stateLog)
	}
	if progressBar == nil {
		logger = log.GetLogger(os.Stderr, false, extraWriters...)
	} else {
		logger = log.GetLogger(progressBar, true, extraWriters...)
	}
	if stateLogErr != nil {
		// Worth telling, not worth failing the run over.
		logger.Warn().Err(stateLogErr).Msg("Failed to open state log file")
	}

	sourceRoot, err := filepath.Abs(args[0])
	if err != nil {
		return errors.Wrapf(err, "failed to resolve source path %s", args[0])
	}
	targetRoot, err := filepath.Abs(args[1])
	if err != nil {
		return errors.Wrapf(err, "failed to resolve target path %s", args[1])
	}
	linkerConfig.SourceRoot = sourceRoot
	linkerConfig.TargetRoot = targetRoot
	linkerConfig.Verbose = log.Verbosity > 0

	if err := applyConfigFile(cmd, sourceRoot, logger); err != nil {
		return err
	}

	if err := linkerConfig.Validate(); err != nil {
		return err
	}

	if linkerConfig.DryRun {
		logger.Info().Msg("Dry run, the filesystem will not be modified")
	}

	if interactive && linkerConfig.Overwrite && !linkerConfig.DryRun && !assumeYes {
		confirmed, err := confirmOverwrite(targetRoot)
		if err != nil {
			return err
		}
		if !confirmed {
			logger.Info().Msg("Aborted by user")
			return nil
		}
	}

	linkerConfig.RateLimiter = nil
	if linkRateLimit := size.MustParse(linkRateLimitStr); linkRateLimit > 0 {
		// The walk is sequential, so a burst of 1 is all it can consume.
		linkerConfig.RateLimiter = rate.NewLimiter(rate.Limit(linkRateLimit), 1)
	}

	l := linker.New(linkerConfig, logger)
	if progressBar != nil {
		progressBar.SetStatsGetter(l.Stats)
	}

	report, runErr := l.Run(ctx)

	// Stop the progress line before printing anything below it.
	cancel()
	<-progressDone

	if runErr != nil {
		return runErr
	}

	if showStats || linkerConfig.Verbose {
		renderReport(cmd.OutOrStdout(), report, linkerConfig.DryRun)
	}

	if report.HasFailures() {
		return errors.Errorf("completed with %d failed entries, see logs for details", len(report.Failures))
	}

	logger.Info().
		Int64("filesLinked", report.FilesLinked+report.FilesOverwritten).
		Int64("dirsCreated", report.DirsCreated).
		Str("spaceShared", size.FormatBytes(report.BytesLinked)).
		Msg("Hardlink mirror completed")

	return nil
}

// applyConfigFile merges file values into the flag-bound config. Flags that
// were set explicitly always win; exclude patterns from file and flags are
// combined.
func applyConfigFile(cmd *cobra.Command, sourceRoot string, logger zerolog.Logger) error {
	var fileConf *configfile.File
	var err error

	if configPath != "" {
		fileConf, err = configfile.Load(configPath)
	} else {
		fileConf, err = configfile.Discover(sourceRoot)
	}
	if err != nil {
		return err
	}

	if fileConf == nil {
		linkerConfig.ExcludePatterns = excludePatterns
		return nil
	}

	logger.Debug().Strs("exclude", fileConf.Exclude).Msg("Loaded config file")

	if !cmd.Flags().Changed("overwrite") {
		linkerConfig.Overwrite = fileConf.Overwrite
	}
	if !cmd.Flags().Changed("dry-run") {
		linkerConfig.DryRun = fileConf.DryRun
	}
	linkerConfig.ExcludePatterns = append(fileConf.Exclude, excludePatterns...)

	return nil
}

func confirmOverwrite(targetRoot string) (bool, error) {
	// The prompt reads from stdin, so that is the terminal that matters.
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, errors.New("confirmation requires a terminal, use --yes to proceed")
	}

	confirmed := false
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Conflicting files under %s will be replaced. Continue?", targetRoot),
	}
	if err := survey.AskOne(prompt, &confirmed); err != nil {
		return false, errors.Wrap(err, "failed to read confirmation")
	}

	return confirmed, nil
}

func renderReport(out io.Writer, report *linker.Report, dryRun bool) {
	header := "Summary:"
	if dryRun {
		header = "Summary (dry run, nothing was modified):"
	}

	_, _ = fmt.Fprintf(out, `
%s
    Directories created:   %d
    Directories excluded:  %d
    Files hardlinked:      %d
    Files overwritten:     %d
    Already hardlinked:    %d
    Files skipped:         %d
    Files excluded:        %d
    Failures:              %d
    Space shared:          %s
`, header,
		report.DirsCreated,
		report.DirsExcluded,
		report.FilesLinked,
		report.FilesOverwritten,
		report.FilesAlreadyLinked,
		report.FilesSkipped,
		report.FilesExcluded,
		report.DirsFailed+report.FilesFailed,
		size.FormatBytes(report.BytesLinked),
	)
}
