package cloak

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Kind identifies a masking strategy variant.
type Kind string

// Strategy kinds.
const (
	KindTemplate  Kind = "template"
	KindHash      Kind = "hash"
	KindSurrogate Kind = "surrogate"
	KindRedact    Kind = "redact"
	KindPartial   Kind = "partial"
	KindCustom    Kind = "custom"
)

// Fallback selects what a Surrogate strategy produces when the generator
// has no data for an entity type.
type Fallback string

// Surrogate fallbacks.
const (
	FallbackNone      Fallback = ""          // fail the span
	FallbackAsterisks Fallback = "asterisks" // one '*' per codepoint
	FallbackTemplate  Fallback = "template"  // [ENTITY_TYPE]
)

// Defaults applied when a strategy leaves a parameter unset.
const (
	DefaultHashAlgo     = HashSHA256
	DefaultRedactChar   = "*"
	DefaultRedactLength = 8
)

// CustomFunc is an externally supplied replacement function.
// It must be pure: the same text always yields the same replacement.
type CustomFunc func(text string) (string, error)

// Strategy is the masking rule applied to a span's text.
//
// Strategy is a closed set of variants selected by Kind. Only the fields
// relevant to the kind are meaningful; constructors set exactly those.
// Callback is never serialized: custom strategies are rebound by Name when
// a policy is loaded.
type Strategy struct {
	Kind Kind `json:"kind" yaml:"kind" bson:"kind"`

	// Template
	Template string `json:"template,omitempty" yaml:"template,omitempty" bson:"template,omitempty"`

	// Hash
	Algorithm HashAlgo `json:"algorithm,omitempty" yaml:"algorithm,omitempty" bson:"algorithm,omitempty"`
	Truncate  int      `json:"truncate,omitempty" yaml:"truncate,omitempty" bson:"truncate,omitempty"`
	Salt      string   `json:"salt,omitempty" yaml:"salt,omitempty" bson:"salt,omitempty"`
	Prefix    string   `json:"prefix,omitempty" yaml:"prefix,omitempty" bson:"prefix,omitempty"`

	// Surrogate
	Fallback   Fallback `json:"fallback,omitempty" yaml:"fallback,omitempty" bson:"fallback,omitempty"`
	FormatHint string   `json:"format_hint,omitempty" yaml:"format_hint,omitempty" bson:"format_hint,omitempty"`

	// Redact
	Char           string `json:"char,omitempty" yaml:"char,omitempty" bson:"char,omitempty"`
	PreserveLength bool   `json:"preserve_length,omitempty" yaml:"preserve_length,omitempty" bson:"preserve_length,omitempty"`
	Length         int    `json:"length,omitempty" yaml:"length,omitempty" bson:"length,omitempty"`

	// Partial
	Format MaskType `json:"format,omitempty" yaml:"format,omitempty" bson:"format,omitempty"`

	// Custom
	Name     string     `json:"name,omitempty" yaml:"name,omitempty" bson:"name,omitempty"`
	Callback CustomFunc `json:"-" yaml:"-" bson:"-" msgpack:"-"`
}

// Template returns a strategy that replaces every span with the literal s.
func Template(s string) Strategy {
	return Strategy{Kind: KindTemplate, Template: s}
}

// Hash returns a strategy that replaces a span with the hex digest of its
// text. A positive truncate keeps that many hex characters.
func Hash(algo HashAlgo, truncate int) Strategy {
	return Strategy{Kind: KindHash, Algorithm: algo, Truncate: truncate}
}

// Surrogate returns a strategy that replaces a span with a deterministic,
// type-plausible fake value.
func Surrogate(fallback Fallback) Strategy {
	return Strategy{Kind: KindSurrogate, Fallback: fallback}
}

// Redact returns a strategy that replaces a span with a run of char.
// With preserve set the run has one char per codepoint of the original.
func Redact(char rune, preserve bool) Strategy {
	return Strategy{Kind: KindRedact, Char: string(char), PreserveLength: preserve}
}

// Partial returns a strategy that keeps a non-identifying fragment of the
// span. MaskAuto selects the format from the entity type.
func Partial(format MaskType) Strategy {
	return Strategy{Kind: KindPartial, Format: format}
}

// Custom returns a strategy backed by an external function. The name
// identifies the callback in serialized policies.
func Custom(name string, fn CustomFunc) Strategy {
	return Strategy{Kind: KindCustom, Name: name, Callback: fn}
}

// WithSalt returns a copy of a Hash strategy that mixes salt into the digest.
func (s Strategy) WithSalt(salt string) Strategy {
	s.Salt = salt
	return s
}

// WithPrefix returns a copy of a Hash strategy that prepends prefix to its output.
func (s Strategy) WithPrefix(prefix string) Strategy {
	s.Prefix = prefix
	return s
}

// WithFormatHint returns a copy of a Surrogate strategy that fills the
// pattern hint: '#' is a digit, '?' a lowercase letter, '^' an uppercase
// letter, anything else is literal.
func (s Strategy) WithFormatHint(hint string) Strategy {
	s.FormatHint = hint
	return s
}

// WithLength returns a copy of a Redact strategy with a fixed run length
// used when length is not preserved.
func (s Strategy) WithLength(n int) Strategy {
	s.Length = n
	return s
}

// Validate reports whether the strategy is well-formed.
func (s Strategy) Validate() error {
	invalid := func(format string, args ...any) error {
		return newStrategyError(ErrInvalidStrategy, "", s.Kind, fmt.Errorf(format, args...))
	}

	switch s.Kind {
	case KindTemplate:
		if s.Template == "" {
			return invalid("template is empty")
		}
	case KindHash:
		if s.Algorithm != "" && !IsValidHashAlgo(s.Algorithm) {
			return invalid("unknown hash algorithm %q", s.Algorithm)
		}
		if s.Truncate < 0 {
			return invalid("negative truncate %d", s.Truncate)
		}
	case KindSurrogate:
		if !IsValidFallback(s.Fallback) {
			return invalid("unknown fallback %q", s.Fallback)
		}
	case KindRedact:
		if s.Char != "" && utf8.RuneCountInString(s.Char) != 1 {
			return invalid("redact char %q must be a single character", s.Char)
		}
		if s.Length < 0 {
			return invalid("negative length %d", s.Length)
		}
	case KindPartial:
		if !IsValidMaskType(s.Format) {
			return invalid("unknown partial format %q", s.Format)
		}
	case KindCustom:
		if s.Callback == nil {
			return invalid("custom strategy %q: %w", s.Name, ErrUnknownCallback)
		}
	default:
		return invalid("unknown kind %q", s.Kind)
	}
	return nil
}

// Apply computes the replacement for original.
//
// Apply is a pure function of its arguments. Template, Hash, Redact and
// Partial ignore the seed; Surrogate and Custom may depend on it.
// Failures are reported as *StrategyError.
func (s Strategy) Apply(original, entityType, seed string) (string, error) {
	switch s.Kind {
	case KindTemplate:
		if s.Template == "" {
			return "", newStrategyError(ErrInvalidStrategy, entityType, s.Kind, errors.New("template is empty"))
		}
		return s.Template, nil
	case KindHash:
		return s.applyHash(original, entityType)
	case KindSurrogate:
		return s.applySurrogate(original, entityType, seed)
	case KindRedact:
		return s.applyRedact(original), nil
	case KindPartial:
		return partialMask(original, entityType, s.Format), nil
	case KindCustom:
		return s.applyCustom(original, entityType)
	default:
		return "", newStrategyError(ErrInvalidStrategy, entityType, s.Kind, fmt.Errorf("unknown kind %q", s.Kind))
	}
}

func (s Strategy) applyHash(original, entityType string) (string, error) {
	algo := s.Algorithm
	if algo == "" {
		algo = DefaultHashAlgo
	}
	hasher, ok := hashers[algo]
	if !ok {
		return "", newStrategyError(ErrInvalidStrategy, entityType, s.Kind, fmt.Errorf("unknown hash algorithm %q", algo))
	}

	digest, err := hasher.Hash([]byte(s.Salt + original))
	if err != nil {
		return "", newStrategyError(ErrStrategy, entityType, s.Kind, err)
	}
	if s.Truncate > 0 && s.Truncate < len(digest) {
		digest = digest[:s.Truncate]
	}
	return s.Prefix + digest, nil
}

func (s Strategy) applySurrogate(original, entityType, seed string) (string, error) {
	value, err := NewSurrogateGenerator(seed).GenerateWithHint(original, entityType, s.FormatHint)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, ErrUnsupportedEntity) {
		return "", newStrategyError(ErrStrategy, entityType, s.Kind, err)
	}

	switch s.Fallback {
	case FallbackAsterisks:
		return asterisks(original), nil
	case FallbackTemplate:
		return "[" + entityType + "]", nil
	default:
		return "", newStrategyError(ErrStrategy, entityType, s.Kind, err)
	}
}

func (s Strategy) applyRedact(original string) string {
	char := s.Char
	if char == "" {
		char = DefaultRedactChar
	}
	n := s.Length
	if s.PreserveLength {
		n = utf8.RuneCountInString(original)
	} else if n == 0 {
		n = DefaultRedactLength
	}
	return strings.Repeat(char, n)
}

func (s Strategy) applyCustom(original, entityType string) (value string, err error) {
	if s.Callback == nil {
		return "", newStrategyError(ErrStrategy, entityType, s.Kind, fmt.Errorf("custom strategy %q: %w", s.Name, ErrUnknownCallback))
	}

	defer func() {
		if r := recover(); r != nil {
			value = ""
			err = newStrategyError(ErrStrategy, entityType, s.Kind, fmt.Errorf("custom strategy %q panicked: %v", s.Name, r))
		}
	}()

	value, err = s.Callback(original)
	if err != nil {
		return "", newStrategyError(ErrStrategy, entityType, s.Kind, err)
	}
	return value, nil
}
