package logger

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects where and how much the CLI logs. Logs go to a rotating file
// by default so they never interleave with terminal output.
type Config struct {
	Level  string // trace, debug, info, warn, error
	Format string // "json" or "pretty"
	File   string
	Stderr bool
}

// LoadConfig reads STUDYGEN_LOG_* variables. The log file lives in dataDir.
func LoadConfig(dataDir string) Config {
	cfg := Config{
		Level:  "info",
		Format: "json",
		File:   filepath.Join(dataDir, "studygen.log"),
	}
	if v := os.Getenv("STUDYGEN_LOG_LEVEL"); v != "" {
		cfg.Level = v
	}
	if v := os.Getenv("STUDYGEN_LOG_FORMAT"); v != "" {
		cfg.Format = v
	}
	if v := os.Getenv("STUDYGEN_LOG_FILE"); v != "" {
		cfg.File = v
	}
	if v := os.Getenv("STUDYGEN_LOG_STDERR"); v != "" {
		cfg.Stderr, _ = strconv.ParseBool(v)
	}
	return cfg
}

// Setup builds a logger writing to w.
//   - level: log level string (trace, debug, info, warn, error, fatal, panic)
//   - format: "json" for machine-readable output, "pretty" for a console layout
func Setup(level, format string, w io.Writer) zerolog.Logger {
	writer := w
	if format == "pretty" {
		writer = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(writer).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// Open creates the logger described by cfg. The returned closer releases
// the log file.
func Open(cfg Config) (zerolog.Logger, io.Closer) {
	if cfg.Stderr {
		return Setup(cfg.Level, cfg.Format, os.Stderr), nopCloser{}
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    5, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	return Setup(cfg.Level, cfg.Format, rotator), rotator
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
