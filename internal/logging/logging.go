// Package logging builds the logfmt logger shared by every command and
// component. Components accept a log.Logger and treat nil as "be quiet".
package logging

import (
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// New returns a logfmt logger writing to w, filtered to the named level
// (debug, info, warn, error; anything else means info).
func New(w io.Writer, lvl string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = level.NewFilter(logger, allow(lvl))
	return log.With(logger, "ts", log.DefaultTimestampUTC)
}

// Default returns the stderr logger commands start from.
func Default(lvl string) log.Logger {
	return New(os.Stderr, lvl)
}

// OrNop returns l, or a discard-everything logger when l is nil, so callers
// can log unconditionally.
func OrNop(l log.Logger) log.Logger {
	if l == nil {
		return log.NewNopLogger()
	}
	return l
}

func allow(lvl string) level.Option {
	switch lvl {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}
