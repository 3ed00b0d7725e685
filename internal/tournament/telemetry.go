package tournament

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Metrics receives engine measurements. internal/telemetry provides the prometheus one.
type Metrics interface {
	RecordOperation(op string, result string, d time.Duration)
	RecordWheelEffect(effect EffectType)
	RecordMove(kind MoveKind)
}

type noopMetrics struct{}

func (noopMetrics) RecordOperation(string, string, time.Duration) {}
func (noopMetrics) RecordWheelEffect(EffectType)                  {}
func (noopMetrics) RecordMove(MoveKind)                            {}

const (
	resultSuccess = "success"
	resultSkipped = "skipped"
	resultFailure = "failure"
)

// withTelemetry wraps an engine operation with a span, metrics, panic recovery and logging.
// op returns whether it applied anything; skipped operations are logged at warn.
func (e *Engine) withTelemetry(ctx context.Context, operation string, attrs []attribute.KeyValue, op func(ctx context.Context) (bool, error)) (applied bool, err error) {
	ctx, span := e.tracer.Start(ctx, "Engine."+operation, trace.WithAttributes(attrs...))
	defer span.End()

	logAttrs := make([]any, 0, len(attrs)+1)
	logAttrs = append(logAttrs, slog.String("operation", operation))
	for _, a := range attrs {
		logAttrs = append(logAttrs, slog.String(string(a.Key), a.Value.Emit()))
	}
	e.logger.InfoContext(ctx, operation+" triggered", logAttrs...)

	start := e.now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operation, r)
			applied = false
		}
		result := resultSuccess
		switch {
		case err != nil:
			result = resultFailure
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			e.logger.ErrorContext(ctx, operation+" failed", append(logAttrs, slog.Any("error", err))...)
		case !applied:
			result = resultSkipped
			e.logger.WarnContext(ctx, operation+" skipped", logAttrs...)
		default:
			e.logger.InfoContext(ctx, operation+" completed", logAttrs...)
		}
		e.metrics.RecordOperation(operation, result, e.now().Sub(start))
	}()

	applied, err = op(ctx)
	if err != nil {
		err = fmt.Errorf("%s: %w", operation, err)
	}
	return applied, err
}
