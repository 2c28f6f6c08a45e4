// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup initializes the global logger with console output and, when
// filePath is non-empty, a size-rotated log file alongside it.
func Setup(filePath string, debug bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	var out io.Writer = console
	if filePath != "" {
		out = zerolog.MultiLevelWriter(console, &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    20, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	log.Logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
}
