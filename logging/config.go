// Package logging configures the process logger.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "RRES_LOG_LEVEL"
	EnvLogTimestamp = "RRES_LOG_TIMESTAMP"
	EnvLogNoColor   = "RRES_LOG_NOCOLOR"
	EnvLogJSON      = "RRES_LOG_JSON"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

type settings struct {
	level     zerolog.Level
	timestamp bool
	noColor   bool
	json      bool
}

var configureOnce sync.Once

func ConfigureRuntime() zerolog.Logger {
	return Configure(ProfileRuntime)
}

func ConfigureTests() zerolog.Logger {
	return Configure(ProfileTest)
}

// Configure installs the global logger once and returns it.
func Configure(profile Profile) zerolog.Logger {
	configureOnce.Do(func() {
		s := defaultSettings(profile)
		applyEnvOverrides(&s)
		log.Logger = newLogger(os.Stderr, s)
		zerolog.SetGlobalLevel(s.level)
	})
	return log.Logger
}

// newLogger builds a logger writing to w.
func newLogger(w io.Writer, s settings) zerolog.Logger {
	if !s.json {
		w = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    s.noColor,
			TimeFormat: time.RFC3339,
			PartsExclude: func() []string {
				if s.timestamp {
					return nil
				}
				return []string{zerolog.TimestampFieldName}
			}(),
		}
	}
	ctx := zerolog.New(w).Level(s.level).With()
	if s.timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

func defaultSettings(profile Profile) settings {
	switch profile {
	case ProfileTest:
		return settings{level: zerolog.DebugLevel, timestamp: false, noColor: true}
	default:
		return settings{level: zerolog.InfoLevel, timestamp: true}
	}
}

func applyEnvOverrides(s *settings) {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		s.level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		s.timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		s.noColor = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogJSON)); ok {
		s.json = v
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
