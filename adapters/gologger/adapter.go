package gologger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	LevelTrace = slog.LevelDebug - 4
	LevelFatal = slog.LevelError + 4
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// SlogLogger exposes a log/slog logger through the glog contracts. Fatal logs
// at LevelFatal and does not exit.
type SlogLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger, ctx: context.Background()}
}

// NewTextLogger writes logfmt-style records at or above level to w.
func NewTextLogger(w io.Writer, level slog.Level) *SlogLogger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// NewJSONLogger writes JSON records at or above level to w.
func NewJSONLogger(w io.Writer, level slog.Level) *SlogLogger {
	return NewSlogLogger(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

// ParseLevel accepts trace and fatal in addition to the slog level names.
func ParseLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "trace":
		return LevelTrace, nil
	case "fatal":
		return LevelFatal, nil
	case "":
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo, fmt.Errorf("gologger: unknown level %q", value)
	}
	return level, nil
}

func (l *SlogLogger) Trace(msg string, args ...any) { l.log(LevelTrace, msg, args) }
func (l *SlogLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args) }
func (l *SlogLogger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args) }
func (l *SlogLogger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args) }
func (l *SlogLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args) }
func (l *SlogLogger) Fatal(msg string, args ...any) { l.log(LevelFatal, msg, args) }

func (l *SlogLogger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	return &SlogLogger{logger: l.logger, ctx: ctx}
}

// WithFields attaches fields in key order so output is stable.
func (l *SlogLogger) WithFields(fields map[string]any) glog.Logger {
	if len(fields) == 0 {
		return l
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return &SlogLogger{logger: l.logger.With(args...), ctx: l.ctx}
}

func (l *SlogLogger) With(args ...any) *SlogLogger {
	return &SlogLogger{logger: l.logger.With(args...), ctx: l.ctx}
}

func (l *SlogLogger) log(level slog.Level, msg string, args []any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Log(l.ctx, level, msg, args...)
}

// SlogProvider hands out named children of one SlogLogger.
type SlogProvider struct {
	base *SlogLogger
}

func NewSlogProvider(base *SlogLogger) *SlogProvider {
	if base == nil {
		base = NewSlogLogger(nil)
	}
	return &SlogProvider{base: base}
}

func (p *SlogProvider) GetLogger(name string) glog.Logger {
	if strings.TrimSpace(name) == "" {
		return p.base
	}
	return p.base.With("logger", name)
}

var (
	_ glog.Logger         = (*SlogLogger)(nil)
	_ glog.LoggerProvider = (*SlogProvider)(nil)
)
