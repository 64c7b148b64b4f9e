package log

import (
	"io"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
)

var (
	Verbosity int
)

func getLevel(verbosity int) zerolog.Level {
	level := zerolog.InfoLevel

	switch verbosity {
	case 0:
		level = zerolog.InfoLevel
	case 1:
		level = zerolog.DebugLevel
	default:
		level = zerolog.TraceLevel
	}

	return level
}

// GetLogger builds the logger everything hangs off of. Console output is
// prettified when out is a terminal. Extra writers, typically the state log
// file, receive the raw JSON stream regardless of the terminal setting.
func GetLogger(out io.Writer, isTerminal bool, extra ...io.Writer) zerolog.Logger {
	level := getLevel(Verbosity)

	var w io.Writer = out
	if isTerminal {
		w = zerolog.ConsoleWriter{Out: out}
	}
	if len(extra) > 0 {
		w = io.MultiWriter(append([]io.Writer{w}, extra...)...)
	}

	return zerolog.New(w).With().Timestamp().Logger().Level(level)
}

// StateLogFile opens the append-only JSON log under the user state
// directory, usually $XDG_STATE_HOME/mklndir/mklndir.log, creating parent
// directories as needed.
func StateLogFile() (*os.File, error) {
	path, err := xdg.StateFile(filepath.Join("mklndir", "mklndir.log"))
	if err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
