package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jrsteele09/go-anon-client/internal/config"
)

// Setup configures the global zerolog logger from the environment config.
// When a log file is configured, output goes to a rotating file instead of stderr.
func Setup(c config.EnvConfig) io.Closer {
	level, err := zerolog.ParseLevel(strings.ToLower(c.GetLogLevel()))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if logFile := c.GetLogFile(); logFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		log.Logger = zerolog.New(rotator).With().Timestamp().Str("app", c.GetAppName()).Logger()
		return rotator
	}

	var out io.Writer = os.Stderr
	if c.GetEnv() == "DEV" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return nopCloser{}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
