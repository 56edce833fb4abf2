package cloak_test

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"testing"

	"github.com/zoobzio/cloak"
	cloaktest "github.com/zoobzio/cloak/testing"
)

func newEngine(t *testing.T, d cloak.Detector, opts ...cloak.Option) *cloak.Engine[*cloak.TextDocument] {
	t.Helper()
	opts = append([]cloak.Option{cloak.WithClock(cloaktest.FixedClock())}, opts...)
	e, err := cloak.NewEngine[*cloak.TextDocument](d, opts...)
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	return e
}

func scenarioDetector() cloak.Detector {
	return cloaktest.StaticDetector{cloaktest.ScenarioText: cloaktest.ScenarioSpans()}
}

func scenarioDocument() *cloak.TextDocument {
	return cloak.Paragraphs("doc-1", cloaktest.ScenarioText)
}

func emailLiterals() cloaktest.LiteralDetector {
	return cloaktest.LiteralDetector{
		{Text: "John Doe", EntityType: "PERSON", Score: 0.85},
		{Text: "john@example.com", EntityType: "EMAIL_ADDRESS", Score: 1.0},
	}
}

func TestNewEngine_NilDetector(t *testing.T) {
	_, err := cloak.NewEngine[*cloak.TextDocument](nil)
	if !errors.Is(err, cloak.ErrDetection) {
		t.Errorf("NewEngine(nil) error = %v, want ErrDetection", err)
	}
}

func TestNewEngine_Version(t *testing.T) {
	if _, err := cloak.NewEngine[*cloak.TextDocument](scenarioDetector(), cloak.WithVersion("2.0")); !errors.Is(err, cloak.ErrSerialization) {
		t.Errorf("NewEngine(WithVersion(2.0)) error = %v, want ErrSerialization", err)
	}

	e := newEngine(t, scenarioDetector(), cloak.WithVersion("1.4"))
	result, err := e.Mask(context.Background(), scenarioDocument(), cloak.DefaultPolicy())
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}
	if result.CloakMap.Version != "1.4" {
		t.Errorf("Version = %q, want %q", result.CloakMap.Version, "1.4")
	}
}

func TestMask_Template(t *testing.T) {
	policy := cloak.DefaultPolicy().
		WithEntityStrategy("PERSON", cloak.Template("[NAME]")).
		WithEntityStrategy("EMAIL_ADDRESS", cloak.Template("[EMAIL]"))

	result, err := newEngine(t, scenarioDetector()).Mask(context.Background(), scenarioDocument(), policy)
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}

	if got, _ := result.Document.Text("p0"); got != "[NAME]'s email is [EMAIL]" {
		t.Errorf("masked text = %q, want %q", got, "[NAME]'s email is [EMAIL]")
	}
	if result.EntitiesFound != 2 || result.EntitiesMasked != 2 {
		t.Errorf("found/masked = %d/%d, want 2/2", result.EntitiesFound, result.EntitiesMasked)
	}

	anchors := result.CloakMap.Anchors
	if len(anchors) != 2 {
		t.Fatalf("len(Anchors) = %d, want 2", len(anchors))
	}
	for _, a := range anchors {
		if a.StrategyUsed != cloak.KindTemplate {
			t.Errorf("StrategyUsed = %q, want template", a.StrategyUsed)
		}
		if a.Metadata.OriginalText != "" {
			t.Error("non-reversible policy stored original text")
		}
		if a.Metadata.OriginalHash == "" {
			t.Error("anchor missing fingerprint")
		}
	}
	if anchors[0].Start != 0 || anchors[0].End != 8 || anchors[1].Start != 20 || anchors[1].End != 36 {
		t.Errorf("anchor ranges = [%d:%d] [%d:%d]", anchors[0].Start, anchors[0].End, anchors[1].Start, anchors[1].End)
	}
	if anchors[0].Metadata.Confidence != 0.85 {
		t.Errorf("Confidence = %v, want 0.85", anchors[0].Metadata.Confidence)
	}
	if result.CloakMap.DocumentID != "doc-1" {
		t.Errorf("DocumentID = %q, want %q", result.CloakMap.DocumentID, "doc-1")
	}
	if !result.CloakMap.CreatedAt.Equal(cloaktest.FixedTime) {
		t.Errorf("CreatedAt = %v, want %v", result.CloakMap.CreatedAt, cloaktest.FixedTime)
	}
}

func TestMask_InputUnchanged(t *testing.T) {
	doc := scenarioDocument()
	if _, err := newEngine(t, scenarioDetector()).Mask(context.Background(), doc, cloak.DefaultPolicy()); err != nil {
		t.Fatalf("Mask() error: %v", err)
	}
	if got, _ := doc.Text("p0"); got != cloaktest.ScenarioText {
		t.Errorf("input document modified: %q", got)
	}
}

func TestMask_Hash(t *testing.T) {
	policy := cloak.NewPolicy(cloak.Hash(cloak.HashSHA256, 8))
	engine := newEngine(t, scenarioDetector())

	first, err := engine.Mask(context.Background(), scenarioDocument(), policy)
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}
	masked, _ := first.Document.Text("p0")
	if !regexp.MustCompile(`^[0-9a-f]{8}'s email is [0-9a-f]{8}$`).MatchString(masked) {
		t.Errorf("masked text = %q, want two 8-hex tokens", masked)
	}

	digest, _ := cloak.SHA256Hasher().Hash([]byte("John Doe"))
	if !strings.HasPrefix(masked, digest[:8]) {
		t.Errorf("masked text = %q, want prefix %q", masked, digest[:8])
	}

	second, _ := engine.Mask(context.Background(), scenarioDocument(), policy)
	again, _ := second.Document.Text("p0")
	if again != masked {
		t.Errorf("hash tokens not stable: %q vs %q", masked, again)
	}
}

func TestMask_OverlapResolution(t *testing.T) {
	text := "John Doe from Denver"
	detector := cloaktest.StaticDetector{text: {
		cloaktest.Span("PERSON", 0, 8, 0.9),
		cloaktest.Span("LOCATION", 4, 12, 0.6),
	}}
	policy := cloak.DefaultPolicy().WithEntityStrategy("PERSON", cloak.Template("[NAME]"))

	result, err := newEngine(t, detector).Mask(context.Background(), cloak.Paragraphs("d", text), policy)
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}

	if got, _ := result.Document.Text("p0"); got != "[NAME] from Denver" {
		t.Errorf("masked text = %q, want %q", got, "[NAME] from Denver")
	}
	if result.EntitiesFound != 2 || result.EntitiesMasked != 1 {
		t.Errorf("found/masked = %d/%d, want 2/1", result.EntitiesFound, result.EntitiesMasked)
	}
	d := result.Diagnostics.Discarded
	if len(d) != 1 || d[0].Reason != cloak.DiscardOverlap || d[0].Span.EntityType != "LOCATION" {
		t.Errorf("Discarded = %+v, want LOCATION overlap", d)
	}
}

func TestMask_EndPastText(t *testing.T) {
	detector := cloaktest.StaticDetector{cloaktest.ScenarioText: {
		cloaktest.Span("PERSON", 0, 8, 0.85),
		cloaktest.Span("EMAIL_ADDRESS", 20, 37, 1.0),
	}}
	policy := cloak.DefaultPolicy().WithEntityStrategy("EMAIL_ADDRESS", cloak.Template("[EMAIL]"))

	result, err := newEngine(t, detector).Mask(context.Background(), scenarioDocument(), policy)
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}
	if got, _ := result.Document.Text("p0"); got != "[REDACTED]'s email is [EMAIL]" {
		t.Errorf("masked text = %q", got)
	}
	if end := result.CloakMap.Anchors[1].End; end != len(cloaktest.ScenarioText) {
		t.Errorf("anchor End = %d, want %d", end, len(cloaktest.ScenarioText))
	}
}

func TestMask_CountInvariant(t *testing.T) {
	text := "John Doe from Denver, ACME Corp, ok"
	detector := cloaktest.StaticDetector{text: {
		cloaktest.Span("PERSON", 0, 8, 0.9),
		cloaktest.Span("LOCATION", 4, 12, 0.6),  // overlap
		cloaktest.Span("LOCATION", 14, 20, 0.2), // below threshold
		cloaktest.Span("ORGANIZATION", 22, 26, 0.9),
		cloaktest.Span("ORGANIZATION", 22, 31, 0.9), // wins: longer
		cloaktest.Span("X", 33, 33, 0.9),            // zero length
		cloaktest.Span("X", 90, 99, 0.9),            // invalid
	}}
	policy := cloak.DefaultPolicy().WithDefaultThreshold(0.5).WithAllowList("ok")

	result, err := newEngine(t, detector).Mask(context.Background(), cloak.Paragraphs("d", text), policy)
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}

	discarded := len(result.Diagnostics.Discarded)
	if result.EntitiesFound != result.EntitiesMasked+discarded {
		t.Errorf("found %d != masked %d + discarded %d", result.EntitiesFound, result.EntitiesMasked, discarded)
	}
	if result.EntitiesMasked != len(result.CloakMap.Anchors) {
		t.Errorf("EntitiesMasked = %d, anchors = %d", result.EntitiesMasked, len(result.CloakMap.Anchors))
	}
	if result.EntitiesMasked != 2 {
		t.Errorf("EntitiesMasked = %d, want 2", result.EntitiesMasked)
	}
}

func TestMask_Deterministic(t *testing.T) {
	engine := newEngine(t, emailLiterals())
	policy := cloaktest.ReversiblePolicy()

	a, err := engine.Mask(context.Background(), cloaktest.EmailDocument(), policy)
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}
	b, _ := engine.Mask(context.Background(), cloaktest.EmailDocument(), policy)

	if a.Document.String() != b.Document.String() {
		t.Errorf("masked documents differ:\n%s\n%s", a.Document, b.Document)
	}
	if !a.CloakMap.Equal(b.CloakMap) {
		t.Error("CloakMaps differ between identical runs")
	}
}

func TestMask_ConcurrencyIndependent(t *testing.T) {
	texts := make([]string, 40)
	for i := range texts {
		texts[i] = "Call Alice Johnson at 555-867-5309 or alice@example.com."
		if i%3 == 0 {
			texts[i] = "Nothing to see."
		}
	}
	doc := cloak.Paragraphs("big", texts...)
	policy := cloaktest.ReversiblePolicy()

	serial, err := newEngine(t, cloaktest.ContactDetector(), cloak.WithConcurrency(1)).Mask(context.Background(), doc, policy)
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}
	parallel, err := newEngine(t, cloaktest.ContactDetector(), cloak.WithConcurrency(16)).Mask(context.Background(), doc, policy)
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}

	if serial.Document.String() != parallel.Document.String() {
		t.Error("masked output depends on concurrency")
	}
	if !serial.CloakMap.Equal(parallel.CloakMap) {
		t.Error("CloakMap depends on concurrency")
	}
	for i := 1; i < len(parallel.CloakMap.Anchors); i++ {
		prev, cur := parallel.CloakMap.Anchors[i-1], parallel.CloakMap.Anchors[i]
		if prev.NodeIndex > cur.NodeIndex || (prev.NodeIndex == cur.NodeIndex && prev.Start >= cur.Start) {
			t.Fatalf("anchors out of order at %d", i)
		}
	}
}

func TestMask_SurrogateConsistency(t *testing.T) {
	text := "John Doe met John Doe."
	policy := cloak.DefaultPolicy().WithSeed("s").WithEntityStrategy("PERSON", cloak.Surrogate(cloak.FallbackNone))
	detector := cloaktest.LiteralDetector{{Text: "John Doe", EntityType: "PERSON", Score: 0.9}}

	result, err := newEngine(t, detector).Mask(context.Background(), cloak.Paragraphs("d", text), policy)
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}
	a := result.CloakMap.Anchors
	if len(a) != 2 || a[0].MaskedValue != a[1].MaskedValue {
		t.Errorf("same original produced different surrogates: %+v", a)
	}
	if a[0].MaskedValue == "John Doe" {
		t.Error("surrogate equals original")
	}
}

func TestMask_CustomPanicDegrades(t *testing.T) {
	policy := cloak.DefaultPolicy().
		WithEntityStrategy("PERSON", cloak.Custom("boom", func(string) (string, error) { panic("kaboom") }))

	result, err := newEngine(t, scenarioDetector()).Mask(context.Background(), scenarioDocument(), policy)
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}

	a := result.CloakMap.Anchors[0]
	if a.MaskedValue != "[REDACTED]" {
		t.Errorf("MaskedValue = %q, want default strategy output", a.MaskedValue)
	}
	if a.StrategyUsed != cloak.KindCustom || a.Metadata.FallbackStrategy != cloak.KindTemplate {
		t.Errorf("StrategyUsed/FallbackStrategy = %q/%q", a.StrategyUsed, a.Metadata.FallbackStrategy)
	}
	if !a.Metadata.Degraded || !strings.Contains(a.Metadata.DegradedReason, "panicked") {
		t.Errorf("Metadata = %+v, want degraded with panic reason", a.Metadata)
	}
	if result.Diagnostics.Degraded != 1 {
		t.Errorf("Diagnostics.Degraded = %d, want 1", result.Diagnostics.Degraded)
	}
	if result.EntitiesMasked != 2 {
		t.Errorf("EntitiesMasked = %d, want 2", result.EntitiesMasked)
	}
}

func TestMask_DefaultStrategyFailsToo(t *testing.T) {
	failing := func(string) (string, error) { return "", errors.New("vault offline") }
	policy := cloak.NewPolicy(cloak.Custom("vault", failing))

	result, err := newEngine(t, scenarioDetector()).Mask(context.Background(), scenarioDocument(), policy)
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}
	if got, _ := result.Document.Text("p0"); got != "********'s email is ****************" {
		t.Errorf("masked text = %q", got)
	}
	for _, a := range result.CloakMap.Anchors {
		if a.Metadata.FallbackStrategy != cloak.KindRedact {
			t.Errorf("FallbackStrategy = %q, want redact", a.Metadata.FallbackStrategy)
		}
	}
}

func TestMask_DetectionFailureSkipsNode(t *testing.T) {
	detector := cloaktest.FailingDetector("Reply", scenarioDetector())

	result, err := newEngine(t, detector).Mask(context.Background(), cloaktest.EmailDocument(), cloak.DefaultPolicy())
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}

	f := result.Diagnostics.Failures
	if len(f) != 1 || f[0].NodeID != "p1" {
		t.Fatalf("Failures = %+v, want p1", f)
	}
	if !errors.Is(f[0].Err, cloak.ErrDetection) || !errors.Is(f[0].Err, cloaktest.ErrDetectorDown) {
		t.Errorf("failure error = %v", f[0].Err)
	}
	if got, _ := result.Document.Text("p1"); !strings.Contains(got, "john@example.com") {
		t.Errorf("failed node was modified: %q", got)
	}
	if len(result.CloakMap.Anchors) != 2 {
		t.Errorf("len(Anchors) = %d, want 2", len(result.CloakMap.Anchors))
	}
}

func TestMask_AllNodesFail(t *testing.T) {
	detector := cloaktest.FailingDetector("", nil)

	_, err := newEngine(t, detector).Mask(context.Background(), cloaktest.EmailDocument(), cloak.DefaultPolicy())
	if !errors.Is(err, cloak.ErrAllNodesFailed) {
		t.Errorf("Mask() error = %v, want ErrAllNodesFailed", err)
	}
	if !errors.Is(err, cloaktest.ErrDetectorDown) {
		t.Errorf("Mask() error = %v, want detector cause", err)
	}
}

func TestMask_AbortOnDetectionError(t *testing.T) {
	detector := cloaktest.FailingDetector("Reply", scenarioDetector())

	_, err := newEngine(t, detector, cloak.WithAbortOnDetectionError()).Mask(context.Background(), cloaktest.EmailDocument(), cloak.DefaultPolicy())
	var de *cloak.DetectionError
	if !errors.As(err, &de) || de.NodeID != "p1" {
		t.Errorf("Mask() error = %v, want DetectionError for p1", err)
	}
}

func TestMask_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newEngine(t, cloaktest.ContactDetector()).Mask(ctx, cloaktest.EmailDocument(), cloak.DefaultPolicy())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Mask() error = %v, want context.Canceled", err)
	}
}

func TestMask_EmptyNodesNotAnalyzed(t *testing.T) {
	detector := cloak.DetectorFunc(func(_ context.Context, text string) ([]cloak.DetectedSpan, error) {
		if text == "" {
			t.Error("detector called for empty node")
		}
		return nil, nil
	})

	result, err := newEngine(t, detector).Mask(context.Background(), cloak.Paragraphs("d", "", "text", ""), cloak.DefaultPolicy())
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}
	if result.EntitiesFound != 0 || len(result.CloakMap.Anchors) != 0 {
		t.Errorf("found = %d, anchors = %d", result.EntitiesFound, len(result.CloakMap.Anchors))
	}
}

func TestMask_InvalidInput(t *testing.T) {
	engine := newEngine(t, scenarioDetector())

	if _, err := engine.Mask(context.Background(), nil, cloak.DefaultPolicy()); !errors.Is(err, cloak.ErrInvalidDocument) {
		t.Errorf("Mask(nil) error = %v, want ErrInvalidDocument", err)
	}
	if _, err := engine.Mask(context.Background(), scenarioDocument(), cloak.Policy{}); !errors.Is(err, cloak.ErrInvalidPolicy) {
		t.Errorf("Mask(zero policy) error = %v, want ErrInvalidPolicy", err)
	}

	dup := &cloak.TextDocument{Nodes: []cloak.TextNode{{ID: "a", Text: "x"}, {ID: "a", Text: "y"}}}
	if _, err := engine.Mask(context.Background(), dup, cloak.DefaultPolicy()); !errors.Is(err, cloak.ErrInvalidDocument) {
		t.Errorf("Mask(duplicate ids) error = %v, want ErrInvalidDocument", err)
	}
}

func TestMaskAll(t *testing.T) {
	docs := []*cloak.TextDocument{
		cloak.Paragraphs("a", cloaktest.ScenarioText),
		cloak.Paragraphs("b", "nothing"),
		cloak.Paragraphs("c", cloaktest.ScenarioText, cloaktest.ScenarioText),
	}

	results, err := newEngine(t, scenarioDetector()).MaskAll(context.Background(), docs, cloak.DefaultPolicy())
	if err != nil {
		t.Fatalf("MaskAll() error: %v", err)
	}
	want := []int{2, 0, 4}
	for i, r := range results {
		if r.CloakMap.DocumentID != docs[i].ID {
			t.Errorf("results[%d].DocumentID = %q, want %q", i, r.CloakMap.DocumentID, docs[i].ID)
		}
		if r.EntitiesMasked != want[i] {
			t.Errorf("results[%d].EntitiesMasked = %d, want %d", i, r.EntitiesMasked, want[i])
		}
	}
}

func TestMaskAll_Error(t *testing.T) {
	docs := []*cloak.TextDocument{cloak.Paragraphs("a", "x"), nil}
	if _, err := newEngine(t, scenarioDetector()).MaskAll(context.Background(), docs, cloak.DefaultPolicy()); !errors.Is(err, cloak.ErrInvalidDocument) {
		t.Errorf("MaskAll() error = %v, want ErrInvalidDocument", err)
	}
}

func TestUnmask_RoundTrip(t *testing.T) {
	engine := newEngine(t, emailLiterals())
	original := cloaktest.EmailDocument()

	masked, err := engine.Mask(context.Background(), original, cloaktest.ReversiblePolicy())
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}
	if masked.Document.String() == original.String() {
		t.Fatal("Mask() left the document unchanged")
	}
	if got, _ := masked.Document.Text("p0"); !strings.Contains(got, "j***@example.com") {
		t.Errorf("masked p0 = %q, want partial email", got)
	}

	restored, err := engine.Unmask(context.Background(), masked.Document, masked.CloakMap)
	if err != nil {
		t.Fatalf("Unmask() error: %v", err)
	}
	if restored.Document.String() != original.String() {
		t.Errorf("Unmask() = %q, want %q", restored.Document.String(), original.String())
	}
	if restored.Restored != 4 {
		t.Errorf("Restored = %d, want 4", restored.Restored)
	}
	if got, _ := masked.Document.Text("p0"); got == cloaktest.ScenarioText {
		t.Error("Unmask() modified its input document")
	}
}

func TestUnmask_NoAnchors(t *testing.T) {
	engine := newEngine(t, scenarioDetector())
	doc := cloak.Paragraphs("d", "nothing sensitive")

	masked, err := engine.Mask(context.Background(), doc, cloak.DefaultPolicy())
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}
	restored, err := engine.Unmask(context.Background(), masked.Document, masked.CloakMap)
	if err != nil {
		t.Fatalf("Unmask() error: %v", err)
	}
	if restored.Document.String() != doc.String() || restored.Restored != 0 {
		t.Errorf("Unmask() = %q, %d", restored.Document.String(), restored.Restored)
	}
}

func TestUnmask_Irreversible(t *testing.T) {
	engine := newEngine(t, scenarioDetector())
	masked, err := engine.Mask(context.Background(), scenarioDocument(), cloak.DefaultPolicy())
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}

	_, err = engine.Unmask(context.Background(), masked.Document, masked.CloakMap)
	var ie *cloak.IrreversibleError
	if !errors.As(err, &ie) {
		t.Fatalf("Unmask() error = %v, want IrreversibleError", err)
	}
	if !errors.Is(err, cloak.ErrIrreversible) || ie.NodeID != "p0" || ie.Start != 0 {
		t.Errorf("IrreversibleError = %+v", ie)
	}
}

func TestUnmask_Tampering(t *testing.T) {
	engine := newEngine(t, scenarioDetector())
	masked, err := engine.Mask(context.Background(), cloaktest.EmailDocument(), cloaktest.ReversiblePolicy())
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(doc *cloak.TextDocument, cm *cloak.CloakMap)
	}{
		{
			name: "masked value edited",
			mutate: func(doc *cloak.TextDocument, _ *cloak.CloakMap) {
				text, _ := doc.Text("p0")
				_ = doc.SetText("p0", "#"+text[1:])
			},
		},
		{
			name: "original text swapped",
			mutate: func(_ *cloak.TextDocument, cm *cloak.CloakMap) {
				cm.Anchors[0].Metadata.OriginalText = "Jane Roe"
			},
		},
		{
			name: "original text resized",
			mutate: func(_ *cloak.TextDocument, cm *cloak.CloakMap) {
				cm.Anchors[0].Metadata.OriginalText = "John"
			},
		},
		{
			name: "unanchored node edited",
			mutate: func(doc *cloak.TextDocument, _ *cloak.CloakMap) {
				_ = doc.SetText("p1", "edited")
			},
		},
		{
			name: "wrong seed",
			mutate: func(_ *cloak.TextDocument, cm *cloak.CloakMap) {
				cm.PolicySnapshot.Seed = "other"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := masked.Document.Clone()
			cm := *masked.CloakMap
			cm.Anchors = slices.Clone(cm.Anchors)
			tt.mutate(doc, &cm)

			_, err := engine.Unmask(context.Background(), doc, &cm)
			if !errors.Is(err, cloak.ErrIntegrity) {
				t.Errorf("Unmask() error = %v, want ErrIntegrity", err)
			}
		})
	}
}

func TestUnmask_InvalidMap(t *testing.T) {
	engine := newEngine(t, scenarioDetector())
	doc := scenarioDocument()

	if _, err := engine.Unmask(context.Background(), doc, nil); !errors.Is(err, cloak.ErrSerialization) {
		t.Errorf("Unmask(nil map) error = %v, want ErrSerialization", err)
	}
	if _, err := engine.Unmask(context.Background(), doc, &cloak.CloakMap{Version: "9.0"}); !errors.Is(err, cloak.ErrSerialization) {
		t.Errorf("Unmask(bad version) error = %v, want ErrSerialization", err)
	}
}

func TestSealing(t *testing.T) {
	enc := cloaktest.TestEncryptor(t)
	engine := newEngine(t, emailLiterals(), cloak.WithEncryptor(enc))
	original := cloaktest.EmailDocument()

	masked, err := engine.Mask(context.Background(), original, cloaktest.ReversiblePolicy())
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}
	cm := masked.CloakMap
	if !cm.Sealed() {
		t.Fatal("CloakMap should be sealed")
	}
	for _, a := range cm.Anchors {
		if a.Metadata.OriginalText != "" || a.Metadata.SealedOriginal == "" {
			t.Errorf("anchor %s@%d: plaintext %q, sealed %q", a.NodeID, a.Start, a.Metadata.OriginalText, a.Metadata.SealedOriginal)
		}
	}

	restored, err := engine.Unmask(context.Background(), masked.Document, cm)
	if err != nil {
		t.Fatalf("Unmask() error: %v", err)
	}
	if restored.Document.String() != original.String() {
		t.Errorf("Unmask() = %q, want %q", restored.Document.String(), original.String())
	}

	plain := newEngine(t, emailLiterals())
	if _, err := plain.Unmask(context.Background(), masked.Document, cm); !errors.Is(err, cloak.ErrSeal) {
		t.Errorf("Unmask() without encryptor error = %v, want ErrSeal", err)
	}

	other, _ := cloak.AES([]byte("another-32-byte-key-for-testing!"))
	wrongKey := newEngine(t, emailLiterals(), cloak.WithEncryptor(other))
	if _, err := wrongKey.Unmask(context.Background(), masked.Document, cm); !errors.Is(err, cloak.ErrSeal) {
		t.Errorf("Unmask() with wrong key error = %v, want ErrSeal", err)
	}
}

func TestSealing_NonReversiblePolicy(t *testing.T) {
	engine := newEngine(t, scenarioDetector(), cloak.WithEncryptor(cloaktest.TestEncryptor(t)))
	masked, err := engine.Mask(context.Background(), scenarioDocument(), cloak.DefaultPolicy())
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}
	if masked.CloakMap.Sealed() {
		t.Error("non-reversible CloakMap should not be sealed")
	}
}

func TestRecord_MaskUnmask(t *testing.T) {
	engine, err := cloak.NewEngine[*cloak.Record[cloaktest.Contact]](
		cloaktest.ContactDetector(),
		cloak.WithClock(cloaktest.FixedClock()),
	)
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}

	original := cloaktest.NewContact()
	record, err := cloak.NewRecord("c-1", original)
	if err != nil {
		t.Fatalf("NewRecord() error: %v", err)
	}

	masked, err := engine.Mask(context.Background(), record, cloaktest.ReversiblePolicy())
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}
	v := masked.Document.Value

	if v.Name == original.Name || strings.Count(v.Name, " ") != 1 {
		t.Errorf("Name = %q, want a two-word surrogate", v.Name)
	}
	if v.Email != "a***@example.com" {
		t.Errorf("Email = %q, want %q", v.Email, "a***@example.com")
	}
	if !regexp.MustCompile(`^[0-9a-f]{12}$`).MatchString(v.SSN) {
		t.Errorf("SSN = %q, want 12 hex characters", v.SSN)
	}
	if want := "Call " + v.Name + " at ############."; v.Notes[0] != want {
		t.Errorf("Notes[0] = %q, want %q", v.Notes[0], want)
	}
	if v.Home.City != "<CITY>" || v.Home.Zip != original.Home.Zip || v.Revenue != original.Revenue {
		t.Errorf("Home/Revenue = %+v/%d", v.Home, v.Revenue)
	}
	if !reflect.DeepEqual(record.Value, original) {
		t.Error("Mask() modified the input record")
	}
	if masked.CloakMap.DocumentID != "c-1" {
		t.Errorf("DocumentID = %q, want %q", masked.CloakMap.DocumentID, "c-1")
	}

	restored, err := engine.Unmask(context.Background(), masked.Document, masked.CloakMap)
	if err != nil {
		t.Fatalf("Unmask() error: %v", err)
	}
	if !reflect.DeepEqual(restored.Document.Value, original) {
		t.Errorf("Unmask() = %+v, want %+v", restored.Document.Value, original)
	}
}

func TestCloakMap_Stats(t *testing.T) {
	engine := newEngine(t, emailLiterals())
	masked, err := engine.Mask(context.Background(), cloaktest.EmailDocument(), cloaktest.ReversiblePolicy())
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}

	s := masked.CloakMap.Stats()
	if s.Anchors != 4 || s.Nodes != 2 || s.Reversible != 4 || s.Sealed != 0 {
		t.Errorf("Stats() = %+v", s)
	}
	if s.ByEntity["PERSON"] != 2 || s.ByEntity["EMAIL_ADDRESS"] != 2 {
		t.Errorf("ByEntity = %v", s.ByEntity)
	}
	if s.ByStrategy[cloak.KindSurrogate] != 2 || s.ByStrategy[cloak.KindPartial] != 2 {
		t.Errorf("ByStrategy = %v", s.ByStrategy)
	}
	if got := masked.CloakMap.AnchorsFor("p1"); len(got) != 2 || got[0].Start > got[1].Start {
		t.Errorf("AnchorsFor(p1) = %+v", got)
	}
	if masked.CloakMap.EntityCount() != 4 {
		t.Errorf("EntityCount() = %d, want 4", masked.CloakMap.EntityCount())
	}
}
