package cli

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// NewLogger creates the CLI logger. Logs go to w, which is stderr so that
// they never mix with command output.
func NewLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}

	var logger zerolog.Logger
	switch format {
	case "json":
		logger = zerolog.New(w).With().Timestamp().Logger()
	case "console":
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q: must be one of %v", format, ValidLogFormats)
	}
	return logger.Level(lvl), nil
}
