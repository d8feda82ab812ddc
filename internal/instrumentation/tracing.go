package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/amurex/inboxtagger/internal/category"
)

// TracerName is the instrumentation scope of every span the service starts.
const TracerName = "github.com/amurex/inboxtagger"

// Span attribute keys.
const (
	AttrUser            = "inboxtagger.user_id"
	AttrStandardColors  = "inboxtagger.standard_colors"
	AttrMessageID       = "gmail.message_id"
	AttrCategory        = "inboxtagger.category"
	AttrModel           = "gen_ai.request.model"
	AttrGoogleService   = "google.service"
	AttrGoogleOperation = "google.operation"
)

// EventMessageLabeled is added to the run span once per labeled message.
const EventMessageLabeled = "message.labeled"

func tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(TracerName)
}

// StartRunSpan starts the root span of one pipeline run.
func StartRunSpan(ctx context.Context, userID string, standardColors bool) (context.Context, trace.Span) {
	return tracer().Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String(AttrUser, userID),
			attribute.Bool(AttrStandardColors, standardColors),
		))
}

// StartLLMSpan starts a client span around one chat completion.
func StartLLMSpan(ctx context.Context, model string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "llm.classify",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String(AttrModel, model)))
}

// StartGoogleAPISpan starts a client span named google.<service>.<operation>.
func StartGoogleAPISpan(ctx context.Context, service, operation string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "google."+service+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrGoogleService, service),
			attribute.String(AttrGoogleOperation, operation),
		))
}

// SetSpanStatus marks span as failed when err is non-nil and as OK otherwise.
func SetSpanStatus(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// MessageLabeled records on the span in ctx that a message was filed under c.
func MessageLabeled(ctx context.Context, messageID string, c category.Category) {
	trace.SpanFromContext(ctx).AddEvent(EventMessageLabeled, trace.WithAttributes(
		attribute.String(AttrMessageID, messageID),
		attribute.String(AttrCategory, c.String()),
	))
}

// TraceID returns the trace id of the span in ctx, or "" without one.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
