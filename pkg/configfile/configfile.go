// Package configfile loads the optional on-disk configuration that seeds a
// run with defaults. Command-line flags always win over file values, and
// exclude patterns from both sources are additive.
package configfile

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// File mirrors the TOML document:
//
//	exclude = ["*.tmp", "__pycache__"]
//	overwrite = false
//	dry_run = false
type File struct {
	Exclude   []string `toml:"exclude"`
	Overwrite bool     `toml:"overwrite"`
	DryRun    bool     `toml:"dry_run"`
}

// Config file names probed in the source root, in order. The dotted name
// wins so a visible one can coexist with it for documentation purposes.
var names = []string{".mklndir.toml", "mklndir.toml"}

// Load reads and decodes one config file. The path must exist; use Discover
// when the file is optional.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open config file %s", path)
	}
	defer f.Close()

	var c File
	if err := toml.NewDecoder(f).Decode(&c); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file %s", path)
	}

	return &c, nil
}

// Discover probes the source root for a config file and loads the first one
// found. No config file at all is not an error; Discover just returns nil.
func Discover(sourceRoot string) (*File, error) {
	for _, name := range names {
		path := filepath.Join(sourceRoot, name)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "failed to stat config file %s", path)
		}
		return Load(path)
	}

	return nil, nil
}
