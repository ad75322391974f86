package otelhelper

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorTypeKey records the Go type of the error that failed a span.
const ErrorTypeKey = "ggrc.error.type"

// SetError fails span with err. attrs are attached to the recorded
// exception event. A context cancellation is recorded but leaves the span
// status unset, since the cycle operation itself keeps running.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if err == nil {
		return
	}

	attrs = append(attrs, attribute.String(ErrorTypeKey, fmt.Sprintf("%T", err)))
	span.RecordError(err, trace.WithAttributes(attrs...))

	if errors.Is(err, context.Canceled) {
		return
	}

	span.SetStatus(codes.Error, err.Error())
}
