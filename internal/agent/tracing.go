package agent

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/arosstale/single-file-agents/internal/telemetry"
)

func startRunSpan(ctx context.Context, runID, dbPath string, budget int) (context.Context, trace.Span) {
	return telemetry.Tracer().Start(ctx, "agent.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("db.path", dbPath),
			attribute.Int("run.budget", budget),
		))
}

func startRoundSpan(ctx context.Context, round int) (context.Context, trace.Span) {
	return telemetry.Tracer().Start(ctx, "agent.round",
		trace.WithAttributes(attribute.Int("round.number", round)))
}

func startToolSpan(ctx context.Context, tool string) (context.Context, trace.Span) {
	return telemetry.Tracer().Start(ctx, "agent.tool",
		trace.WithAttributes(attribute.String("tool.name", tool)))
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
}
