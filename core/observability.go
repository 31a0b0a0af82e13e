package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	statusSuccess    = "success"
	statusFailure    = "failure"
	statusSuperseded = "superseded"
	statusCanceled   = "canceled"
)

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// telemetry logs and records one line and one counter/histogram pair per
// finished operation. Metric names are "settings.<operation>.total" and
// "settings.<operation>.duration_ms".
type telemetry struct {
	logger          Logger
	metricsRecorder MetricsRecorder
}

func (t telemetry) observe(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	status string,
	err error,
	fields map[string]any,
) {
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	if status == "" {
		status = statusSuccess
		if err != nil {
			status = statusFailure
		}
	}
	elapsed := time.Since(startedAt).Milliseconds()

	contextFields := cloneFields(fields)
	contextFields["operation"] = operation
	contextFields["status"] = status
	contextFields["duration_ms"] = elapsed
	if err != nil {
		contextFields["error"] = err.Error()
	}

	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	if value := strings.TrimSpace(fmt.Sprint(contextFields["error_code"])); value != "" && value != "<nil>" {
		tags["error_code"] = value
	}

	t.recordCounter(ctx, "settings."+operation+".total", 1, tags)
	t.recordHistogram(ctx, "settings."+operation+".duration_ms", float64(elapsed), tags)

	switch status {
	case statusFailure:
		t.log(ctx, "error", operation+" failed", contextFields)
	case statusSuperseded, statusCanceled:
		t.log(ctx, "debug", operation+" "+status, contextFields)
	default:
		t.log(ctx, "info", operation+" succeeded", contextFields)
	}
}

func (t telemetry) debug(ctx context.Context, message string, fields map[string]any) {
	t.log(ctx, "debug", message, fields)
}

func (t telemetry) log(ctx context.Context, level string, message string, fields map[string]any) {
	if t.logger == nil {
		return
	}
	logger := t.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch level {
	case "error":
		logger.Error(message, args...)
	case "debug":
		logger.Debug(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (t telemetry) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if t.metricsRecorder == nil {
		return
	}
	t.metricsRecorder.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (t telemetry) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if t.metricsRecorder == nil {
		return
	}
	t.metricsRecorder.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
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
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	operation = strings.ReplaceAll(operation, " ", "_")
	operation = strings.ReplaceAll(operation, "-", "_")
	return operation
}
