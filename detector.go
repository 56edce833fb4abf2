package cloak

import "context"

// DetectedSpan is a sensitive span located by a Detector in one text node.
// Start and End are byte offsets into the node text, End exclusive.
type DetectedSpan struct {
	EntityType string  `json:"entity_type" yaml:"entity_type" bson:"entity_type"`
	Start      int     `json:"start" yaml:"start" bson:"start"`
	End        int     `json:"end" yaml:"end" bson:"end"`
	Score      float64 `json:"score" yaml:"score" bson:"score"`
}

// Detector locates sensitive spans in text.
//
// Analyze is called once per text node and may be called concurrently for
// different nodes; implementations must not share mutable state between
// calls. Analyze must not retain or modify text.
type Detector interface {
	Analyze(ctx context.Context, text string) ([]DetectedSpan, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, text string) ([]DetectedSpan, error)

// Analyze calls f(ctx, text).
func (f DetectorFunc) Analyze(ctx context.Context, text string) ([]DetectedSpan, error) {
	return f(ctx, text)
}
