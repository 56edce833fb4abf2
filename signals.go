package cloak

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for engine events. No event carries original span text.
var (
	SignalEngineCreated    = capitan.NewSignal("cloak.engine.created", "Engine instantiated")
	SignalMaskStart        = capitan.NewSignal("cloak.mask.start", "Mask operation beginning")
	SignalMaskComplete     = capitan.NewSignal("cloak.mask.complete", "Mask operation finished")
	SignalUnmaskStart      = capitan.NewSignal("cloak.unmask.start", "Unmask operation beginning")
	SignalUnmaskComplete   = capitan.NewSignal("cloak.unmask.complete", "Unmask operation finished")
	SignalDetectionFailed  = capitan.NewSignal("cloak.detection.failed", "Detector failed for a node")
	SignalStrategyDegraded = capitan.NewSignal("cloak.strategy.degraded", "Span masked by a fallback strategy")
	SignalSpanDiscarded    = capitan.NewSignal("cloak.span.discarded", "Detected span left unmasked")
)

// Keys for typed event data.
var (
	KeyDocumentID    = capitan.NewStringKey("document_id")
	KeyDocumentType  = capitan.NewStringKey("document_type")
	KeyNodeID        = capitan.NewStringKey("node_id")
	KeyEntityType    = capitan.NewStringKey("entity_type")
	KeyStrategy      = capitan.NewStringKey("strategy")
	KeyReason        = capitan.NewStringKey("reason")
	KeyFallback      = capitan.NewStringKey("fallback")
	KeyNodeCount     = capitan.NewIntKey("node_count")
	KeyConcurrency   = capitan.NewIntKey("concurrency")
	KeyFoundCount    = capitan.NewIntKey("found_count")
	KeyMaskedCount   = capitan.NewIntKey("masked_count")
	KeyDegradedCount = capitan.NewIntKey("degraded_count")
	KeyRestoredCount = capitan.NewIntKey("restored_count")
	KeyDuration      = capitan.NewDurationKey("duration")
	KeyError         = capitan.NewErrorKey("error")
)

// emitEngineCreated emits an event when an engine is created.
func emitEngineCreated(ctx context.Context, documentType string, concurrency int) {
	capitan.Emit(ctx, SignalEngineCreated,
		KeyDocumentType.Field(documentType),
		KeyConcurrency.Field(concurrency),
	)
}

// emitMaskStart emits an event when masking begins.
func emitMaskStart(ctx context.Context, documentID string, nodes int) {
	capitan.Emit(ctx, SignalMaskStart,
		KeyDocumentID.Field(documentID),
		KeyNodeCount.Field(nodes),
	)
}

// emitMaskComplete emits an event when masking finishes.
func emitMaskComplete(ctx context.Context, documentID string, duration time.Duration, found, masked, degraded int, err error) {
	fields := []capitan.Field{
		KeyDocumentID.Field(documentID),
		KeyDuration.Field(duration),
		KeyFoundCount.Field(found),
		KeyMaskedCount.Field(masked),
		KeyDegradedCount.Field(degraded),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalMaskComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalMaskComplete, fields...)
	}
}

// emitUnmaskStart emits an event when unmasking begins.
func emitUnmaskStart(ctx context.Context, documentID string, anchors int) {
	capitan.Emit(ctx, SignalUnmaskStart,
		KeyDocumentID.Field(documentID),
		KeyMaskedCount.Field(anchors),
	)
}

// emitUnmaskComplete emits an event when unmasking finishes.
func emitUnmaskComplete(ctx context.Context, documentID string, duration time.Duration, restored int, err error) {
	fields := []capitan.Field{
		KeyDocumentID.Field(documentID),
		KeyDuration.Field(duration),
		KeyRestoredCount.Field(restored),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalUnmaskComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalUnmaskComplete, fields...)
	}
}

// emitDetectionFailed emits an event when the detector fails for a node.
func emitDetectionFailed(ctx context.Context, nodeID string, err error) {
	capitan.Error(ctx, SignalDetectionFailed,
		KeyNodeID.Field(nodeID),
		KeyError.Field(err),
	)
}

// emitStrategyDegraded emits an event when a span is masked by a fallback.
func emitStrategyDegraded(ctx context.Context, a Anchor) {
	capitan.Emit(ctx, SignalStrategyDegraded,
		KeyNodeID.Field(a.NodeID),
		KeyEntityType.Field(a.EntityType),
		KeyStrategy.Field(string(a.StrategyUsed)),
		KeyFallback.Field(string(a.Metadata.FallbackStrategy)),
	)
}

// emitSpanDiscarded emits an event when a detected span is left unmasked.
func emitSpanDiscarded(ctx context.Context, d DiscardedSpan) {
	capitan.Emit(ctx, SignalSpanDiscarded,
		KeyNodeID.Field(d.NodeID),
		KeyEntityType.Field(d.Span.EntityType),
		KeyReason.Field(string(d.Reason)),
	)
}
