package cloak

// MaskResult is the outcome of a masking run.
//
// EntitiesFound counts every span returned by the detector for nodes that
// were analyzed. EntitiesMasked counts anchors, degraded substitutions
// included, so EntitiesMasked <= EntitiesFound.
type MaskResult[D any] struct {
	Document       D
	CloakMap       *CloakMap
	EntitiesFound  int
	EntitiesMasked int
	Diagnostics    Diagnostics
}

// Diagnostics reports what a masking run recovered from.
type Diagnostics struct {
	Discarded []DiscardedSpan // spans left unmasked, with the reason
	Failures  []NodeFailure   // nodes skipped because detection failed
	Degraded  int             // anchors produced by a fallback strategy
}

// NodeFailure is a node whose detection failed.
type NodeFailure struct {
	NodeID string
	Err    error
}

// UnmaskResult is the outcome of an unmasking run.
type UnmaskResult[D any] struct {
	Document D
	Restored int
}
