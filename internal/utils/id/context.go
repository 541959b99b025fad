package id

import "context"

type contextKey string

const (
	runKey  contextKey = "finbench_run_id"
	logKey  contextKey = "finbench_log_id"
	taskKey contextKey = "finbench_task_id"
)

// IDs captures the identifiers propagated through one evaluation run.
type IDs struct {
	RunID  string
	LogID  string
	TaskID string
}

// WithRunID stores the current run identifier on the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runKey, runID)
}

// WithLogID stores the log identifier on the context.
func WithLogID(ctx context.Context, logID string) context.Context {
	if logID == "" {
		return ctx
	}
	return context.WithValue(ctx, logKey, logID)
}

// WithTaskID stores the benchmark task being worked on.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	if taskID == "" {
		return ctx
	}
	return context.WithValue(ctx, taskKey, taskID)
}

// RunIDFromContext extracts the run identifier.
func RunIDFromContext(ctx context.Context) string {
	return stringValue(ctx, runKey)
}

// LogIDFromContext extracts the log identifier.
func LogIDFromContext(ctx context.Context) string {
	return stringValue(ctx, logKey)
}

// TaskIDFromContext extracts the benchmark task identifier.
func TaskIDFromContext(ctx context.Context) string {
	return stringValue(ctx, taskKey)
}

// IDsFromContext returns every identifier stored on ctx.
func IDsFromContext(ctx context.Context) IDs {
	return IDs{
		RunID:  RunIDFromContext(ctx),
		LogID:  LogIDFromContext(ctx),
		TaskID: TaskIDFromContext(ctx),
	}
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
