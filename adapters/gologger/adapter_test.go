package gologger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	glog "github.com/goliatone/go-logger/glog"
)

func TestResolveDeterministicFallback(t *testing.T) {
	loggerOnly := &capturingLogger{id: "logger"}
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	var resolvedProvider glog.LoggerProvider
	_, resolved := Resolve("account-settings", provider, loggerOnly)
	got := resolved.(*capturingLogger)
	if got.id != "provider" {
		t.Fatalf("expected provider logger precedence, got %q", got.id)
	}

	resolvedProvider, resolved = Resolve("account-settings", nil, loggerOnly)
	got = resolved.(*capturingLogger)
	if got.id != "logger" {
		t.Fatalf("expected direct logger when provider is nil, got %q", got.id)
	}
	if resolvedProvider == nil {
		t.Fatalf("expected provider wrapper from logger")
	}

	_, resolved = Resolve("account-settings", nil, nil)
	if resolved == nil {
		t.Fatalf("expected nop logger fallback")
	}
}

func TestSlogLogger_WritesFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, slog.LevelDebug)

	logger.WithFields(map[string]any{"operation": "discovery.load", "status": "ok"}).
		Info("discovery.load succeeded", "duration_ms", 12)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record %q: %v", buf.String(), err)
	}
	if record["msg"] != "discovery.load succeeded" || record["level"] != "INFO" {
		t.Fatalf("unexpected record %v", record)
	}
	if record["operation"] != "discovery.load" || record["status"] != "ok" {
		t.Fatalf("expected fields in record, got %v", record)
	}
	if record["duration_ms"] != float64(12) {
		t.Fatalf("expected args in record, got %v", record)
	}
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTextLogger(&buf, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Trace("hidden")
	logger.WithContext(context.Background()).Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected debug and trace to be filtered, got %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("expected warn record, got %q", out)
	}
}

func TestSlogProvider_NamesChildLoggers(t *testing.T) {
	var buf bytes.Buffer
	provider := NewSlogProvider(NewJSONLogger(&buf, slog.LevelInfo))

	provider.GetLogger("account-settings").Error("boom")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record["logger"] != "account-settings" {
		t.Fatalf("expected logger name, got %v", record)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"trace": LevelTrace,
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"fatal": LevelFatal,
	}
	for input, want := range cases {
		got, err := ParseLevel(input)
		if err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
		if got != want {
			t.Fatalf("expected %v for %q, got %v", want, input, got)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected unknown level error")
	}
}

var (
	_ glog.Logger         = (*capturingLogger)(nil)
	_ glog.LoggerProvider = (*capturingProvider)(nil)
)

type capturingProvider struct {
	logger *capturingLogger
}

func (p *capturingProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type capturingLogger struct {
	id string
}

func (l *capturingLogger) Trace(string, ...any) {}
func (l *capturingLogger) Debug(string, ...any) {}
func (l *capturingLogger) Info(string, ...any)  {}
func (l *capturingLogger) Warn(string, ...any)  {}
func (l *capturingLogger) Error(string, ...any) {}
func (l *capturingLogger) Fatal(string, ...any) {}

func (l *capturingLogger) WithContext(context.Context) glog.Logger {
	return l
}
