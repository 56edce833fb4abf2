// Package cloak provides document-level PII masking with an auditable,
// reversible ledger.
//
// An Engine walks the text nodes of a document, asks an external Detector for
// sensitive spans in each node, replaces every span according to a Policy and
// records each replacement as an Anchor. The anchors, together with a snapshot
// of the policy, form a CloakMap: the only artifact needed to audit a masking
// run or, when the policy opted into reversibility, to restore the original.
//
// # Strategies
//
// Replacement rules are a closed set of variants:
//
//	Template("[NAME]")              - literal placeholder
//	Hash(HashSHA256, 8)             - hex digest, optionally truncated
//	Surrogate(FallbackAsterisks)    - deterministic fake value of the same type
//	Redact('*', true)               - run of a fixed character
//	Partial(MaskEmail)              - format-aware partial mask (a***@example.com)
//	Custom("faker", fn)             - caller-supplied function
//
// # Basic Usage
//
//	policy := cloak.NewPolicy(cloak.Template("[REDACTED]")).
//	    WithSeed("42").
//	    WithReversible(true).
//	    WithEntityStrategy("PERSON", cloak.Surrogate(cloak.FallbackAsterisks)).
//	    WithEntityStrategy("EMAIL_ADDRESS", cloak.Template("[EMAIL]"))
//
//	engine, _ := cloak.NewEngine[*cloak.TextDocument](detector)
//
//	result, _ := engine.Mask(ctx, doc, policy)
//	data, _ := result.CloakMap.Marshal(json.New())
//
//	cm, _ := cloak.ParseCloakMap(json.New(), data)
//	restored, _ := engine.Unmask(ctx, result.Document, cm)
//
// # Determinism
//
// For a fixed document, detector output and policy, masking always produces
// byte-identical text and an equal CloakMap (up to created_at). Surrogates are
// drawn from a generator seeded per call from a hash of the original text and
// the policy seed; no process-wide random state is involved.
//
// # Documents
//
// Any type implementing Document can be masked. Two are provided:
//
//   - TextDocument - an ordered arena of text nodes with stable ids
//   - Record[T]    - a struct whose `cloak:"text"` fields are the nodes
//
// # Codec Providers
//
// CloakMaps and policy files are encoded through a Codec. Implementations
// are available as subpackages:
//
//   - json - JSON encoding (application/json)
//   - yaml - YAML encoding (application/yaml)
//   - msgpack - MessagePack encoding (application/msgpack)
//   - bson - BSON encoding (application/bson)
package cloak

// Cloner allows types to provide deep copy logic.
// Documents implement it so the engine never mutates the caller's value.
//
// The Clone method must return a deep copy where modifications to the clone
// do not affect the original value. For types containing pointers, slices, or maps,
// ensure these are also copied to achieve true isolation.
//
// For simple value types with no pointers, slices, or maps, Clone can simply return
// the receiver value:
//
//	func (c Contact) Clone() Contact { return c }
type Cloner[T any] interface {
	Clone() T
}

// Codec provides content-type aware marshaling.
type Codec interface {
	// ContentType returns the MIME type for this codec (e.g., "application/json").
	ContentType() string

	// Marshal encodes v into bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes data into v.
	Unmarshal(data []byte, v any) error
}
