package verifier

import (
	"github.com/pkg/errors"

	"github.com/charlie0129/mklndir/pkg/matcher"
)

type Config struct {
	MaxConcurrentFiles int
}

func (c Config) Validate() error {
	if c.MaxConcurrentFiles <= 0 {
		return errors.New("max concurrent files must be greater than 0")
	}
	return nil
}

// WalkerConfig configures the file discovery side of a verification run.
// The exclusion rules are the same ones a linking run applies, so the
// checks cover exactly the files linking would have produced.
type WalkerConfig struct {
	SourceRoot      string
	TargetRoot      string
	ExcludePatterns []string
}

func (c WalkerConfig) Validate() error {
	if c.SourceRoot == "" {
		return errors.New("source root must not be empty")
	}
	if c.TargetRoot == "" {
		return errors.New("target root must not be empty")
	}
	return matcher.Validate(c.ExcludePatterns)
}
