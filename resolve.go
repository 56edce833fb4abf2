package cloak

import (
	"cmp"
	"math"
	"slices"
	"unicode/utf8"
)

// DiscardReason explains why a detected span was not masked.
type DiscardReason string

// Discard reasons.
const (
	DiscardOverlap        DiscardReason = "overlap"         // lost overlap resolution to a better span
	DiscardInvalid        DiscardReason = "invalid"         // out of range, reversed or off a rune boundary
	DiscardZeroLength     DiscardReason = "zero_length"     // start == end
	DiscardBelowThreshold DiscardReason = "below_threshold" // score under the policy threshold
	DiscardAllowListed    DiscardReason = "allow_listed"    // text is on the policy allow list
)

// DiscardedSpan is a detected span left unmasked.
type DiscardedSpan struct {
	NodeID string        `json:"node_id"`
	Span   DetectedSpan  `json:"span"`
	Reason DiscardReason `json:"reason"`
}

// resolveSpans filters the spans of one node and removes overlaps.
//
// An end offset past the text is clamped to the text length. Invalid and
// zero-length spans are dropped next, then spans the policy
// excludes. Remaining spans are accepted greedily by descending score; ties
// go to the earlier start, then the longer span, then the entity type. The
// retained spans are returned in ascending start order.
func resolveSpans(nodeID, text string, spans []DetectedSpan, p Policy) ([]DetectedSpan, []DiscardedSpan) {
	var discarded []DiscardedSpan
	discard := func(s DetectedSpan, reason DiscardReason) {
		discarded = append(discarded, DiscardedSpan{NodeID: nodeID, Span: s, Reason: reason})
	}

	candidates := make([]DetectedSpan, 0, len(spans))
	for _, s := range spans {
		// Ends past the text are clamped to it; starts are not.
		if s.End > len(text) && s.Start >= 0 && s.Start < len(text) {
			s.End = len(text)
		}
		switch {
		case !validSpan(text, s):
			discard(s, DiscardInvalid)
		case s.Start == s.End:
			discard(s, DiscardZeroLength)
		case s.Score < p.ThresholdFor(s.EntityType):
			discard(s, DiscardBelowThreshold)
		case p.Allowed(text[s.Start:s.End]):
			discard(s, DiscardAllowListed)
		default:
			candidates = append(candidates, s)
		}
	}

	slices.SortStableFunc(candidates, func(a, b DetectedSpan) int {
		return cmp.Or(
			cmp.Compare(b.Score, a.Score),
			cmp.Compare(a.Start, b.Start),
			cmp.Compare(b.End-b.Start, a.End-a.Start),
			cmp.Compare(a.EntityType, b.EntityType),
		)
	})

	kept := make([]DetectedSpan, 0, len(candidates))
	for _, s := range candidates {
		if overlapsAny(kept, s) {
			discard(s, DiscardOverlap)
			continue
		}
		kept = append(kept, s)
	}

	slices.SortFunc(kept, func(a, b DetectedSpan) int {
		return cmp.Compare(a.Start, b.Start)
	})
	return kept, discarded
}

// validSpan reports whether s addresses whole codepoints of text.
func validSpan(text string, s DetectedSpan) bool {
	if s.EntityType == "" || s.Start < 0 || s.End > len(text) || s.Start > s.End {
		return false
	}
	if math.IsNaN(s.Score) || s.Score < 0 || s.Score > 1 {
		return false
	}
	if s.Start < len(text) && !utf8.RuneStart(text[s.Start]) {
		return false
	}
	if s.End < len(text) && !utf8.RuneStart(text[s.End]) {
		return false
	}
	return true
}

func overlapsAny(kept []DetectedSpan, s DetectedSpan) bool {
	for _, k := range kept {
		if s.Start < k.End && k.Start < s.End {
			return true
		}
	}
	return false
}
