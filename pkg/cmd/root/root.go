package root

import (
	"github.com/spf13/cobra"

	"github.com/charlie0129/mklndir/pkg/linker"
	"github.com/charlie0129/mklndir/pkg/utils/log"
)

// Build version, overridden by goreleaser through ldflags.
var version = "dev"

// Linker config
var linkerConfig = linker.Config{}

var (
	excludePatterns  []string
	linkRateLimitStr string
	configPath       string
	interactive      bool
	assumeYes        bool
	showStats        bool
	logToStateFile   bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mklndir [flags] SOURCE TARGET",
		Short: "Mirror a directory tree with hardlinks instead of copies",
		Long: `
Recreates the directory hierarchy of SOURCE under TARGET and hardlinks every
regular file into place, so the mirror shares file data with the original
instead of duplicating it.

How entries are handled:
  - Directories are created as needed; existing target directories are
    merged into, never replaced.
  - A target file that already shares its source's inode is left alone, so
    re-running against the same target is cheap and safe.
  - A target file with a different inode is skipped, or replaced when
    --overwrite is set.
  - Symlinks, sockets, FIFOs and device files are reported and skipped.

Hardlinks cannot span filesystems. SOURCE and TARGET must live on the same
device; files that do not are reported as failures.


`,
		Args:         cobra.ExactArgs(2),
		RunE:         runLink,
		SilenceUsage: true,
		Version:      version,
	}

	f := cmd.Flags()

	f.BoolVarP(&linkerConfig.Overwrite, "overwrite", "o", false, "Replace target files that are not hardlinks of their source")
	f.BoolVarP(&linkerConfig.DryRun, "dry-run", "n", false, "Walk and report without modifying the filesystem")
	f.StringArrayVarP(&excludePatterns, "exclude", "e", nil, "Glob pattern to exclude, matched against relative paths and path components (repeatable)")

	f.StringVar(&linkRateLimitStr, "link-rate-limit", "", "Limit tree entries processed per second (e.g., 100, 5k)")
	f.StringVar(&configPath, "config", "", "Config file to use instead of probing SOURCE for .mklndir.toml")

	f.BoolVarP(&interactive, "interactive", "i", false, "Ask for confirmation before a run that may overwrite files")
	f.BoolVarP(&assumeYes, "yes", "y", false, "Assume yes for all confirmation prompts")
	f.BoolVarP(&showStats, "stats", "s", false, "Print the operation summary after the run")
	f.BoolVar(&logToStateFile, "log-file", false, "Also append JSON logs to the user state directory")

	pf := cmd.PersistentFlags()
	pf.CountVarP(&log.Verbosity, "verbose", "v", "Enable verbose output (-v for debug, -vv for trace)")

	return cmd
}
