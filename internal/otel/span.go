// Package otel holds span helpers and the attribute keys shared by release components.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys attached to release spans.
const (
	AttrGatewayID  = attribute.Key("gateway.id")
	AttrStageID    = attribute.Key("stage.id")
	AttrTargetID   = attribute.Key("target.id")
	AttrHistoryID  = attribute.Key("history.id")
	AttrStep       = attribute.Key("release.step")
	AttrStrategy   = attribute.Key("distribute.strategy")
	AttrObjectKind = attribute.Key("manifest.kind")
	AttrItemCount  = attribute.Key("result.count")
)

// StartSpan starts a span on tracer. With a nil tracer it returns ctx unchanged
// and a non-recording span, so callers can always End it.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError marks span as failed. The status text stays generic; the error
// itself is attached as a span event. Nil span or error is a no-op.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}

// ReleaseAttrs returns the attributes identifying one (gateway, stage) release.
func ReleaseAttrs(gatewayID, stageID int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrGatewayID.Int64(gatewayID),
		AttrStageID.Int64(stageID),
	}
}
