package cloak

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	concurrency int
	abort       bool
	encryptor   Encryptor
	clock       func() time.Time
	version     string
}

// WithConcurrency bounds the number of nodes analyzed in parallel.
// Values below one are ignored. The default is runtime.NumCPU().
func WithConcurrency(n int) Option {
	return func(o *engineOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithAbortOnDetectionError fails the whole run when the detector fails for
// any node. By default the node is skipped and recorded in Diagnostics.
func WithAbortOnDetectionError() Option {
	return func(o *engineOptions) {
		o.abort = true
	}
}

// WithEncryptor seals original text in every CloakMap the engine produces
// and unseals it when unmasking.
func WithEncryptor(enc Encryptor) Option {
	return func(o *engineOptions) {
		o.encryptor = enc
	}
}

// WithClock sets the source of CloakMap timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) {
		if now != nil {
			o.clock = now
		}
	}
}

// WithVersion sets the version written to CloakMaps. It must share the
// major version of Version.
func WithVersion(v string) Option {
	return func(o *engineOptions) {
		o.version = v
	}
}

// Engine masks and unmasks documents of type D.
//
// An Engine holds no per-run state and is safe for concurrent use; any
// number of documents may be masked at once, sharing one Policy.
type Engine[D Document[D]] struct {
	detector Detector
	opts     engineOptions
	typeName string
}

// NewEngine creates an engine that locates spans with detector.
func NewEngine[D Document[D]](detector Detector, opts ...Option) (*Engine[D], error) {
	if detector == nil {
		return nil, fmt.Errorf("%w: detector is nil", ErrDetection)
	}

	o := engineOptions{
		concurrency: runtime.NumCPU(),
		clock:       time.Now,
		version:     Version,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := checkVersion(o.version); err != nil {
		return nil, err
	}

	e := &Engine[D]{
		detector: detector,
		opts:     o,
		typeName: reflect.TypeFor[D]().String(),
	}
	emitEngineCreated(context.Background(), e.typeName, o.concurrency)
	return e, nil
}

// nodeInput is one text node captured before analysis.
type nodeInput struct {
	index int
	id    string
	text  string
}

// nodeOutput is the pure result of masking one node.
type nodeOutput struct {
	text      string
	anchors   []Anchor
	found     int
	discarded []DiscardedSpan
	failure   error
}

// Mask replaces every sensitive span of doc according to policy.
//
// doc is not modified; the result holds a masked clone. Nodes are analyzed
// in parallel and merged in traversal order, so the output does not depend
// on scheduling. Mask either returns a complete result or an error, never a
// partially masked document.
func (e *Engine[D]) Mask(ctx context.Context, doc D, policy Policy) (*MaskResult[D], error) {
	start := time.Now()
	if isNil(doc) {
		return nil, fmt.Errorf("%w: nil document", ErrInvalidDocument)
	}
	docID := documentID(doc)

	result, err := e.mask(ctx, doc, policy, docID)
	if err != nil {
		emitMaskComplete(ctx, docID, time.Since(start), 0, 0, 0, err)
		return nil, err
	}
	emitMaskComplete(ctx, docID, time.Since(start),
		result.EntitiesFound, result.EntitiesMasked, result.Diagnostics.Degraded, nil)
	return result, nil
}

// MaskAll masks docs concurrently with one policy. It fails if any
// document fails; results are in input order.
func (e *Engine[D]) MaskAll(ctx context.Context, docs []D, policy Policy) ([]*MaskResult[D], error) {
	results := make([]*MaskResult[D], len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			r, err := e.Mask(gctx, doc, policy)
			if err != nil {
				return fmt.Errorf("document %d: %w", i, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine[D]) mask(ctx context.Context, doc D, policy Policy, docID string) (*MaskResult[D], error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	// Discover
	work := doc.Clone()
	nodes, err := readNodes(work)
	if err != nil {
		return nil, err
	}
	emitMaskStart(ctx, docID, len(nodes))

	outputs := make([]nodeOutput, len(nodes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.concurrency)
	for i, n := range nodes {
		if n.text == "" {
			outputs[i] = nodeOutput{text: n.text}
			continue
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			spans, err := e.detector.Analyze(gctx, n.text)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				derr := &DetectionError{NodeID: n.id, Cause: err}
				if e.opts.abort {
					return derr
				}
				outputs[i] = nodeOutput{failure: derr}
				return nil
			}
			// Resolve and transform
			outputs[i] = maskNode(n, spans, policy)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Assemble
	result := &MaskResult[D]{}
	anchors := make([]Anchor, 0)
	var failures []error
	analyzed := 0
	for i, out := range outputs {
		n := nodes[i]
		if n.text != "" {
			analyzed++
		}
		if out.failure != nil {
			failures = append(failures, out.failure)
			result.Diagnostics.Failures = append(result.Diagnostics.Failures, NodeFailure{NodeID: n.id, Err: out.failure})
			emitDetectionFailed(ctx, n.id, out.failure)
			continue
		}

		result.EntitiesFound += out.found
		for _, d := range out.discarded {
			emitSpanDiscarded(ctx, d)
		}
		result.Diagnostics.Discarded = append(result.Diagnostics.Discarded, out.discarded...)

		for _, a := range out.anchors {
			if a.Metadata.Degraded {
				result.Diagnostics.Degraded++
				emitStrategyDegraded(ctx, a)
			}
		}
		if len(out.anchors) > 0 {
			if err := work.SetText(n.id, out.text); err != nil {
				return nil, err
			}
		}
		anchors = append(anchors, out.anchors...)
	}
	if analyzed > 0 && len(failures) == analyzed {
		return nil, fmt.Errorf("%w: %w", ErrAllNodesFailed, errors.Join(failures...))
	}

	ids := make([]string, len(nodes))
	texts := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i], texts[i] = n.id, n.text
	}

	cm := &CloakMap{
		Version:        e.opts.version,
		DocumentID:     docID,
		DocumentHash:   documentFingerprint(ids, texts, policy.Seed()),
		CreatedAt:      e.opts.clock().UTC().Truncate(time.Millisecond),
		PolicySnapshot: policy.Snapshot(),
		Anchors:        anchors,
	}
	if e.opts.encryptor != nil && policy.Reversible() {
		if cm, err = cm.Seal(e.opts.encryptor); err != nil {
			return nil, err
		}
	}

	result.Document = work
	result.CloakMap = cm
	result.EntitiesMasked = len(anchors)
	return result, nil
}

// readNodes captures every node id and text of doc in traversal order.
func readNodes[D Document[D]](doc D) ([]nodeInput, error) {
	ids := doc.NodeIDs()
	nodes := make([]nodeInput, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for i, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate node id %q", ErrInvalidDocument, id)
		}
		seen[id] = struct{}{}

		text, ok := doc.Text(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		nodes[i] = nodeInput{index: i, id: id, text: text}
	}
	return nodes, nil
}

// maskNode resolves and transforms the spans of one node. It is a pure
// function of its arguments and safe to call concurrently.
func maskNode(n nodeInput, spans []DetectedSpan, policy Policy) nodeOutput {
	kept, discarded := resolveSpans(n.id, n.text, spans, policy)
	out := nodeOutput{
		found:     len(spans),
		discarded: discarded,
		anchors:   make([]Anchor, 0, len(kept)),
	}

	var b strings.Builder
	b.Grow(len(n.text))
	last := 0
	for _, s := range kept {
		original := n.text[s.Start:s.End]
		anchor := Anchor{
			NodeID:     n.id,
			NodeIndex:  n.index,
			Start:      s.Start,
			End:        s.End,
			EntityType: s.EntityType,
			Metadata: AnchorMetadata{
				OriginalHash: Fingerprint(original, policy.Seed()),
				Confidence:   s.Score,
			},
		}
		if policy.Reversible() {
			anchor.Metadata.OriginalText = original
		}
		applyStrategy(&anchor, original, policy)

		b.WriteString(n.text[last:s.Start])
		b.WriteString(anchor.MaskedValue)
		last = s.End
		out.anchors = append(out.anchors, anchor)
	}
	b.WriteString(n.text[last:])
	out.text = b.String()
	return out
}

// applyStrategy fills the anchor's masked value. A failing strategy is
// replaced by the policy default, and a failing default by a codepoint-
// length run of '*'; either substitution marks the anchor degraded.
func applyStrategy(a *Anchor, original string, policy Policy) {
	strategy := policy.StrategyFor(a.EntityType)
	a.StrategyUsed = strategy.Kind

	masked, err := strategy.Apply(original, a.EntityType, policy.Seed())
	if err == nil {
		a.MaskedValue = masked
		return
	}

	a.Metadata.Degraded = true
	a.Metadata.DegradedReason = err.Error()

	fallback := policy.DefaultStrategy()
	if masked, ferr := fallback.Apply(original, a.EntityType, policy.Seed()); ferr == nil {
		a.MaskedValue = masked
		a.Metadata.FallbackStrategy = fallback.Kind
		return
	}

	last := Redact('*', true)
	a.MaskedValue, _ = last.Apply(original, a.EntityType, policy.Seed())
	a.Metadata.FallbackStrategy = last.Kind
}

// Unmask restores the original text of doc from cm.
//
// Every anchor must carry its original text (or a sealed original the
// engine's encryptor can open); otherwise Unmask fails with
// ErrIrreversible before touching the document. Masked values are located
// at offsets recomputed from the anchors, and each restored original is
// checked against its fingerprint. Unmask never returns a partially
// restored document.
func (e *Engine[D]) Unmask(ctx context.Context, doc D, cm *CloakMap) (*UnmaskResult[D], error) {
	start := time.Now()
	if isNil(doc) {
		return nil, fmt.Errorf("%w: nil document", ErrInvalidDocument)
	}
	docID := documentID(doc)

	result, err := e.unmask(ctx, doc, cm)
	if err != nil {
		emitUnmaskComplete(ctx, docID, time.Since(start), 0, err)
		return nil, err
	}
	emitUnmaskComplete(ctx, docID, time.Since(start), result.Restored, nil)
	return result, nil
}

func (e *Engine[D]) unmask(ctx context.Context, doc D, cm *CloakMap) (*UnmaskResult[D], error) {
	if cm == nil {
		return nil, newSerializationError("", errors.New("nil cloakmap"))
	}
	if err := cm.Validate(); err != nil {
		return nil, err
	}
	emitUnmaskStart(ctx, cm.DocumentID, len(cm.Anchors))

	if cm.Sealed() {
		if e.opts.encryptor == nil {
			return nil, fmt.Errorf("%w: cloakmap is sealed and no encryptor is configured", ErrSeal)
		}
		var err error
		if cm, err = cm.Unseal(e.opts.encryptor); err != nil {
			return nil, err
		}
	}

	anchors := make([]Anchor, len(cm.Anchors))
	copy(anchors, cm.Anchors)
	sortAnchors(anchors)
	for _, a := range anchors {
		if a.Metadata.OriginalText == "" {
			return nil, &IrreversibleError{
				NodeID:     a.NodeID,
				Start:      a.Start,
				End:        a.End,
				EntityType: a.EntityType,
				Strategy:   a.StrategyUsed,
			}
		}
	}

	work := doc.Clone()
	seed := cm.PolicySnapshot.Seed

	type restoredNode struct {
		id   string
		text string
	}
	var restored []restoredNode
	for i := 0; i < len(anchors); {
		j := i + 1
		for j < len(anchors) && anchors[j].NodeID == anchors[i].NodeID {
			j++
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id := anchors[i].NodeID
		masked, ok := work.Text(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		text, err := restoreNode(id, masked, anchors[i:j], seed)
		if err != nil {
			return nil, err
		}
		restored = append(restored, restoredNode{id: id, text: text})
		i = j
	}

	for _, n := range restored {
		if err := work.SetText(n.id, n.text); err != nil {
			return nil, err
		}
	}

	if cm.DocumentHash != "" {
		nodes, err := readNodes(work)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(nodes))
		texts := make([]string, len(nodes))
		for i, n := range nodes {
			ids[i], texts[i] = n.id, n.text
		}
		if documentFingerprint(ids, texts, seed) != cm.DocumentHash {
			return nil, &IntegrityError{Reason: "restored document does not match document_hash"}
		}
	}

	return &UnmaskResult[D]{Document: work, Restored: len(anchors)}, nil
}

// restoreNode replaces each anchor's masked value in masked with its
// original. Anchors must belong to one node and be sorted by start; masked
// offsets are recomputed left to right from the accumulated length delta.
func restoreNode(id, masked string, anchors []Anchor, seed string) (string, error) {
	var b strings.Builder
	b.Grow(len(masked))
	delta, last := 0, 0
	for _, a := range anchors {
		ms := a.Start + delta
		me := ms + len(a.MaskedValue)
		if ms < last || me > len(masked) || masked[ms:me] != a.MaskedValue {
			return "", &IntegrityError{NodeID: id, Start: a.Start, Reason: "masked value not found at recorded offset"}
		}
		original := a.Metadata.OriginalText
		if len(original) != a.Len() || Fingerprint(original, seed) != a.Metadata.OriginalHash {
			return "", &IntegrityError{NodeID: id, Start: a.Start, Reason: "original text does not match fingerprint"}
		}

		b.WriteString(masked[last:ms])
		b.WriteString(original)
		last = me
		delta += len(a.MaskedValue) - a.Len()
	}
	b.WriteString(masked[last:])
	return b.String(), nil
}

func documentID(doc any) string {
	if d, ok := doc.(Identified); ok {
		return d.DocumentID()
	}
	return ""
}

func isNil(doc any) bool {
	if doc == nil {
		return true
	}
	v := reflect.ValueOf(doc)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}
