package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"sprintline/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds the process logger. Console output is human readable on a TTY
// and JSON otherwise; when cfg.File is set, entries are also written to a
// rotating file. The returned closer releases the file.
func New(cfg config.LogConfig, console *os.File) (zerolog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}
	out := selectOutput(console)
	if strings.TrimSpace(cfg.File) == "" {
		return build(out, level), nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o750); err != nil {
		return build(out, level), nopCloser{}, fmt.Errorf("create log directory: %w", err)
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    orDefault(cfg.MaxSizeMB, 50),
		MaxBackups: orDefault(cfg.MaxBackups, 3),
		Compress:   true,
	}
	return build(zerolog.MultiLevelWriter(out, lj), level), lj, nil
}

// ParseLevel maps a config level to zerolog; empty means info.
func ParseLevel(s string) (zerolog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}

func build(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "sprintline").Logger()
}

func selectOutput(console *os.File) io.Writer {
	if console == nil {
		return io.Discard
	}
	if term.IsTerminal(int(console.Fd())) && os.Getenv("NO_COLOR") == "" {
		return zerolog.ConsoleWriter{Out: console, TimeFormat: time.Kitchen}
	}
	return console
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
