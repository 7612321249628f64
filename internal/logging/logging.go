/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures zerolog for the process.
func Setup(environment string) zerolog.Logger {
	return SetupWithWriter(environment, os.Stderr)
}

// SetupWithWriter configures zerolog to write to out. Production logs are
// JSON; every other environment gets the console format.
func SetupWithWriter(environment string, out io.Writer) zerolog.Logger {
	return setup(environment, out, nil)
}

// SetupWithCapture is Setup plus a JSON copy of every event written to
// capture, whatever the console format.
func SetupWithCapture(environment string, capture io.Writer) zerolog.Logger {
	return setup(environment, os.Stderr, capture)
}

func setup(environment string, out, capture io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level := zerolog.InfoLevel
	if environment == "development" {
		level = zerolog.DebugLevel
	}
	if v := os.Getenv("QPLAN_LOG_LEVEL"); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	writer := out
	if !strings.EqualFold(environment, "production") {
		writer = zerolog.ConsoleWriter{Out: out, NoColor: out != os.Stderr && out != os.Stdout}
	}
	if capture != nil {
		writer = zerolog.MultiLevelWriter(writer, capture)
	}

	logger := zerolog.New(writer).With().Timestamp().Str("service", "queueplanner").Logger().Level(level)
	log.Logger = logger
	return logger
}
