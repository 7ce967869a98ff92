// Package logging holds the process-wide zerolog logger, built once at
// startup and used by every handler.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var L = zerolog.New(os.Stdout).With().Timestamp().Logger()

func Init(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	L = zerolog.New(os.Stdout).With().Timestamp().Logger().Level(lvl)
}
