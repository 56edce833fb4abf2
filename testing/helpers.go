// Package testing provides test utilities for cloak.
package testing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zoobzio/cloak"
)

// ScenarioText is the canonical single-node fixture.
const ScenarioText = "John Doe's email is john@example.com"

// ErrDetectorDown is returned by FailingDetector.
var ErrDetectorDown = errors.New("detector unavailable")

// TestKey returns a valid 32-byte AES key for testing.
func TestKey(t testing.TB) []byte {
	t.Helper()
	return []byte("32-byte-key-for-aes-256-encrypt!")
}

// TestEncryptor returns an AES encryptor configured for testing.
func TestEncryptor(t testing.TB) cloak.Encryptor {
	t.Helper()
	enc, err := cloak.AES(TestKey(t))
	if err != nil {
		t.Fatalf("AES() error: %v", err)
	}
	return enc
}

// FixedTime is the timestamp produced by FixedClock.
var FixedTime = time.Date(2024, time.May, 1, 12, 0, 0, 123_000_000, time.UTC)

// FixedClock returns a clock that always reads FixedTime.
func FixedClock() func() time.Time {
	return func() time.Time { return FixedTime }
}

// Span returns a detected span.
func Span(entityType string, start, end int, score float64) cloak.DetectedSpan {
	return cloak.DetectedSpan{EntityType: entityType, Start: start, End: end, Score: score}
}

// ScenarioSpans returns the detector output for ScenarioText.
func ScenarioSpans() []cloak.DetectedSpan {
	return []cloak.DetectedSpan{
		Span("PERSON", 0, 8, 0.85),
		Span("EMAIL_ADDRESS", 20, 36, 1.0),
	}
}

// StaticDetector returns fixed spans keyed by exact node text.
// Texts without an entry have no spans.
type StaticDetector map[string][]cloak.DetectedSpan

// Analyze implements cloak.Detector.
func (d StaticDetector) Analyze(_ context.Context, text string) ([]cloak.DetectedSpan, error) {
	spans := d[text]
	out := make([]cloak.DetectedSpan, len(spans))
	copy(out, spans)
	return out, nil
}

// Literal is a fixed string reported as an entity wherever it occurs.
type Literal struct {
	Text       string
	EntityType string
	Score      float64
}

// LiteralDetector reports every occurrence of each literal.
type LiteralDetector []Literal

// Analyze implements cloak.Detector.
func (d LiteralDetector) Analyze(ctx context.Context, text string) ([]cloak.DetectedSpan, error) {
	var spans []cloak.DetectedSpan
	for _, l := range d {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if l.Text == "" {
			continue
		}
		for from := 0; ; {
			i := strings.Index(text[from:], l.Text)
			if i < 0 {
				break
			}
			start := from + i
			spans = append(spans, Span(l.EntityType, start, start+len(l.Text), l.Score))
			from = start + len(l.Text)
		}
	}
	return spans, nil
}

// FailingDetector fails for every text containing marker and delegates the
// rest to next. An empty marker fails every text.
func FailingDetector(marker string, next cloak.Detector) cloak.Detector {
	return cloak.DetectorFunc(func(ctx context.Context, text string) ([]cloak.DetectedSpan, error) {
		if strings.Contains(text, marker) {
			return nil, ErrDetectorDown
		}
		if next == nil {
			return nil, nil
		}
		return next.Analyze(ctx, text)
	})
}

// ContactDetector recognizes the values used by the Contact fixture.
func ContactDetector() LiteralDetector {
	return LiteralDetector{
		{Text: "Alice Johnson", EntityType: "PERSON", Score: 0.95},
		{Text: "alice@example.com", EntityType: "EMAIL_ADDRESS", Score: 1.0},
		{Text: "555-867-5309", EntityType: "PHONE_NUMBER", Score: 0.9},
		{Text: "123-45-6789", EntityType: "US_SSN", Score: 0.99},
		{Text: "Denver", EntityType: "LOCATION", Score: 0.8},
	}
}

// ReversiblePolicy returns a reversible policy exercising every strategy
// that preserves enough information to be audited.
func ReversiblePolicy() cloak.Policy {
	return cloak.NewPolicy(cloak.Template("[REDACTED]")).
		WithSeed("fixture-seed").
		WithReversible(true).
		WithEntityStrategy("PERSON", cloak.Surrogate(cloak.FallbackAsterisks)).
		WithEntityStrategy("EMAIL_ADDRESS", cloak.Partial(cloak.MaskAuto)).
		WithEntityStrategy("PHONE_NUMBER", cloak.Redact('#', true)).
		WithEntityStrategy("US_SSN", cloak.Hash(cloak.HashSHA256, 12)).
		WithEntityStrategy("LOCATION", cloak.Template("<CITY>"))
}

// EmailDocument returns a two-node document around ScenarioText.
func EmailDocument() *cloak.TextDocument {
	return cloak.Paragraphs("email-1",
		ScenarioText,
		"Reply to john@example.com before Friday, John Doe.",
	)
}

// Address is a nested fixture struct.
type Address struct {
	Street string `json:"street" cloak:"text"`
	City   string `json:"city" cloak:"text"`
	Zip    string `json:"zip"`
}

// Contact is a tagged record fixture.
type Contact struct {
	ID      string   `json:"id"`
	Name    string   `json:"name" cloak:"text"`
	Email   string   `json:"email" cloak:"text"`
	SSN     string   `json:"ssn" cloak:"text"`
	Notes   []string `json:"notes" cloak:"text"`
	Home    Address  `json:"home"`
	Work    *Address `json:"work,omitempty"`
	Revenue int      `json:"revenue"`
}

// Clone implements cloak.Cloner[Contact].
func (c Contact) Clone() Contact {
	out := c
	if c.Notes != nil {
		out.Notes = make([]string, len(c.Notes))
		copy(out.Notes, c.Notes)
	}
	if c.Work != nil {
		w := *c.Work
		out.Work = &w
	}
	return out
}

// NewContact returns a populated Contact.
func NewContact() Contact {
	return Contact{
		ID:    "c-1",
		Name:  "Alice Johnson",
		Email: "alice@example.com",
		SSN:   "123-45-6789",
		Notes: []string{
			"Call Alice Johnson at 555-867-5309.",
			"Prefers email: alice@example.com",
		},
		Home:    Address{Street: "12 Elm Street", City: "Denver", Zip: "80202"},
		Revenue: 1200,
	}
}
