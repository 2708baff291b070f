// Package logger holds the process-wide JSON slog logger and the request
// outcome counters exported on /metrics.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
)

type Level = slog.Level

const (
	LevelTrace   = slog.Level(-8)
	LevelDebug   = slog.LevelDebug
	LevelInfo    = slog.LevelInfo
	LevelWarning = slog.LevelWarn
	LevelError   = slog.LevelError
	LevelFatal   = slog.Level(12)
)

var (
	Logger       *slog.Logger
	sampleRate   atomic.Int32
	programLevel = new(slog.LevelVar)
)

// Counters are incremented whether or not the message was sampled
type Counters struct {
	Errors       atomic.Int64
	Warnings     atomic.Int64
	ServerErrors atomic.Int64 // 5xx responses
	ClientErrors atomic.Int64 // 4xx responses
	BadRequests  atomic.Int64
	NotFound     atomic.Int64
}

var Stats Counters

func init() {
	sampleRate.Store(1)
	programLevel.Set(slog.LevelInfo)
	install(os.Stdout)
}

// Init sets the level and the warning/error sample rate, then installs the
// JSON logger on w as the slog default. A rate of N keeps one message in N.
func Init(level string, rate int, w io.Writer) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	programLevel.Set(lvl)
	sampleRate.Store(int32(max(rate, 1)))

	if w == nil {
		w = os.Stdout
	}
	install(w)
	return nil
}

func install(w io.Writer) {
	Logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: programLevel}))
	slog.SetDefault(Logger)
}

// Component returns the logger tagged with the emitting subsystem
func Component(name string) *slog.Logger {
	return Logger.With("component", name)
}

func SetLevel(level slog.Level) { programLevel.Set(level) }

func GetLevel() slog.Level { return programLevel.Level() }

// ParseLevel accepts trace, debug, info, warn(ing), error and fatal in any
// case. An empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(s) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level: %s", s)
}

func sampled() bool {
	rate := sampleRate.Load()
	return rate <= 1 || rand.IntN(int(rate)) == 0
}

func Debug(msg string, args ...any) { Logger.Debug(msg, args...) }

func Info(msg string, args ...any) { Logger.Info(msg, args...) }

// Warn logs a sampled warning
func Warn(msg string, args ...any) {
	Stats.Warnings.Add(1)
	if sampled() {
		Logger.Warn(msg, args...)
	}
}

// Error logs a sampled error
func Error(msg string, args ...any) {
	Stats.Errors.Add(1)
	if sampled() {
		Logger.Error(msg, args...)
	}
}

// Fatal logs at fatal level and exits the process
func Fatal(msg string, args ...any) {
	Logger.Log(context.Background(), LevelFatal, msg, args...)
	os.Exit(1)
}

// HTTPFailure counts a failed response by status class. Server errors are
// logged at error level; client errors are only counted.
func HTTPFailure(status int, msg string, err error) {
	switch {
	case status >= 500:
		Stats.ServerErrors.Add(1)
		Error(msg, "status", status, "error", err)
	case status >= 400:
		Stats.ClientErrors.Add(1)
		Stats.Warnings.Add(1)
		switch status {
		case http.StatusBadRequest:
			Stats.BadRequests.Add(1)
		case http.StatusNotFound:
			Stats.NotFound.Add(1)
		}
		Debug(msg, "status", status, "error", err)
	}
}
