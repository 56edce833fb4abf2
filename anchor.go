package cloak

import (
	"cmp"
	"slices"
	"strconv"
)

// Anchor records one replacement performed during a masking run.
//
// Start and End are byte offsets into the node's original text. NodeIndex
// is the node's position in document traversal order; anchors are ordered
// by (NodeIndex, Start).
type Anchor struct {
	NodeID       string         `json:"node_id" yaml:"node_id" bson:"node_id"`
	NodeIndex    int            `json:"node_index" yaml:"node_index" bson:"node_index"`
	Start        int            `json:"start" yaml:"start" bson:"start"`
	End          int            `json:"end" yaml:"end" bson:"end"`
	EntityType   string         `json:"entity_type" yaml:"entity_type" bson:"entity_type"`
	StrategyUsed Kind           `json:"strategy_used" yaml:"strategy_used" bson:"strategy_used"`
	MaskedValue  string         `json:"masked_value" yaml:"masked_value" bson:"masked_value"`
	Metadata     AnchorMetadata `json:"metadata" yaml:"metadata" bson:"metadata"`
}

// AnchorMetadata carries the audit and reversal data of an anchor.
//
// OriginalHash is always present. OriginalText is present only when the
// policy is reversible and the map is not sealed; SealedOriginal holds the
// encrypted original of a sealed map.
type AnchorMetadata struct {
	OriginalText     string  `json:"original_text,omitempty" yaml:"original_text,omitempty" bson:"original_text,omitempty"`
	SealedOriginal   string  `json:"sealed_original,omitempty" yaml:"sealed_original,omitempty" bson:"sealed_original,omitempty"`
	OriginalHash     string  `json:"original_hash" yaml:"original_hash" bson:"original_hash"`
	Confidence       float64 `json:"confidence" yaml:"confidence" bson:"confidence"`
	Degraded         bool    `json:"degraded,omitempty" yaml:"degraded,omitempty" bson:"degraded,omitempty"`
	DegradedReason   string  `json:"degraded_reason,omitempty" yaml:"degraded_reason,omitempty" bson:"degraded_reason,omitempty"`
	FallbackStrategy Kind    `json:"fallback_strategy,omitempty" yaml:"fallback_strategy,omitempty" bson:"fallback_strategy,omitempty"`
}

// Len returns the length of the original span in bytes.
func (a Anchor) Len() int {
	return a.End - a.Start
}

// Reversible reports whether the anchor stores its original text, in
// plaintext or sealed.
func (a Anchor) Reversible() bool {
	return a.Metadata.OriginalText != "" || a.Metadata.SealedOriginal != ""
}

// associatedData binds a sealed original to its anchor.
func (a Anchor) associatedData() []byte {
	b := make([]byte, 0, len(a.NodeID)+len(a.Metadata.OriginalHash)+24)
	b = append(b, a.NodeID...)
	b = append(b, 0)
	b = strconv.AppendInt(b, int64(a.Start), 10)
	b = append(b, 0)
	b = append(b, a.Metadata.OriginalHash...)
	return b
}

// compareAnchors orders anchors by traversal position, then node id, then start.
func compareAnchors(a, b Anchor) int {
	return cmp.Or(
		cmp.Compare(a.NodeIndex, b.NodeIndex),
		cmp.Compare(a.NodeID, b.NodeID),
		cmp.Compare(a.Start, b.Start),
	)
}

// sortAnchors sorts anchors in place. The sort is stable.
func sortAnchors(anchors []Anchor) {
	slices.SortStableFunc(anchors, compareAnchors)
}
