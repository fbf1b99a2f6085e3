// Package logx owns the process-wide zerolog configuration. Everything logs
// through the global zerolog/log logger; Init is called once at startup,
// normally via the autoload side-effect import.
package logx

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config is loaded from LOG_* environment variables.
type Config struct {
	Debug        bool `split_words:"true" default:"false"`
	PrettyFormat bool `split_words:"true" default:"false"`
}

// Init replaces the global logger. The default output is JSON on stdout;
// PrettyFormat switches to the console writer for interactive runs.
func Init(conf Config) {
	out := zerolog.New(os.Stdout)
	if conf.PrettyFormat {
		out = zerolog.New(zerolog.NewConsoleWriter())
	}

	level := zerolog.InfoLevel
	if conf.Debug {
		level = zerolog.DebugLevel
	}

	log.Logger = out.Level(level).With().Timestamp().Caller().Stack().Logger()
}
