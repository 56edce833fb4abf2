package cloak

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
	"time"
)

// Version is the CloakMap format version written by this package.
// Maps with the same major version can be parsed.
const Version = "1.0"

// requiredKeys must be present at the top level of a serialized CloakMap.
var requiredKeys = []string{"version", "created_at", "policy_snapshot", "anchors"}

// CloakMap is the ledger of a masking run: every anchor plus the policy
// that produced them. It is the only artifact needed to audit a run or,
// for reversible policies, to restore the original document.
//
// A CloakMap returned by the engine or by ParseCloakMap is not modified by
// any method; Seal and Unseal return new maps.
type CloakMap struct {
	Version        string         `json:"version" yaml:"version" bson:"version"`
	DocumentID     string         `json:"document_id,omitempty" yaml:"document_id,omitempty" bson:"document_id,omitempty"`
	DocumentHash   string         `json:"document_hash,omitempty" yaml:"document_hash,omitempty" bson:"document_hash,omitempty"`
	CreatedAt      time.Time      `json:"created_at" yaml:"created_at" bson:"created_at"`
	PolicySnapshot PolicySnapshot `json:"policy_snapshot" yaml:"policy_snapshot" bson:"policy_snapshot"`
	Anchors        []Anchor       `json:"anchors" yaml:"anchors" bson:"anchors"`
}

// CloakMapStats summarizes a CloakMap.
type CloakMapStats struct {
	Anchors    int            `json:"anchors"`
	Nodes      int            `json:"nodes"`
	Reversible int            `json:"reversible"`
	Sealed     int            `json:"sealed"`
	Degraded   int            `json:"degraded"`
	ByEntity   map[string]int `json:"by_entity"`
	ByStrategy map[Kind]int   `json:"by_strategy"`
}

// ParseCloakMap decodes and validates a CloakMap.
//
// Every required top-level key must be present and the major version must
// match Version. Anchors are re-sorted and created_at is normalized to UTC
// milliseconds. Failures wrap ErrSerialization.
func ParseCloakMap(c Codec, data []byte) (*CloakMap, error) {
	var raw map[string]any
	if err := c.Unmarshal(data, &raw); err != nil {
		return nil, newSerializationError("", err)
	}
	for _, key := range requiredKeys {
		if _, ok := raw[key]; !ok {
			return nil, newSerializationError(key, errors.New("missing required key"))
		}
	}

	var cm CloakMap
	if err := c.Unmarshal(data, &cm); err != nil {
		return nil, newSerializationError("", err)
	}
	if err := checkVersion(cm.Version); err != nil {
		return nil, err
	}

	cm.normalize()
	if err := cm.Validate(); err != nil {
		return nil, err
	}
	return &cm, nil
}

// Marshal encodes the map with c.
func (m *CloakMap) Marshal(c Codec) ([]byte, error) {
	out := m.clone()
	if out.Anchors == nil {
		out.Anchors = []Anchor{}
	}
	data, err := c.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMarshal, err)
	}
	return data, nil
}

// EntityCount returns the number of anchors.
func (m *CloakMap) EntityCount() int {
	return len(m.Anchors)
}

// AnchorsFor returns the anchors of nodeID in start order.
func (m *CloakMap) AnchorsFor(nodeID string) []Anchor {
	var out []Anchor
	for _, a := range m.Anchors {
		if a.NodeID == nodeID {
			out = append(out, a)
		}
	}
	return out
}

// Sealed reports whether any anchor holds an encrypted original.
func (m *CloakMap) Sealed() bool {
	for _, a := range m.Anchors {
		if a.Metadata.SealedOriginal != "" {
			return true
		}
	}
	return false
}

// Stats returns per entity type and per strategy anchor counts.
func (m *CloakMap) Stats() CloakMapStats {
	s := CloakMapStats{
		Anchors:    len(m.Anchors),
		ByEntity:   make(map[string]int),
		ByStrategy: make(map[Kind]int),
	}
	nodes := make(map[string]struct{})
	for _, a := range m.Anchors {
		nodes[a.NodeID] = struct{}{}
		s.ByEntity[a.EntityType]++
		s.ByStrategy[a.StrategyUsed]++
		if a.Reversible() {
			s.Reversible++
		}
		if a.Metadata.SealedOriginal != "" {
			s.Sealed++
		}
		if a.Metadata.Degraded {
			s.Degraded++
		}
	}
	s.Nodes = len(nodes)
	return s
}

// Equal reports whether m and o describe the same masking run.
func (m *CloakMap) Equal(o *CloakMap) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.Version == o.Version &&
		m.DocumentID == o.DocumentID &&
		m.DocumentHash == o.DocumentHash &&
		m.CreatedAt.Equal(o.CreatedAt) &&
		reflect.DeepEqual(m.PolicySnapshot, o.PolicySnapshot) &&
		slices.Equal(m.Anchors, o.Anchors)
}

// Validate checks the map's required fields and anchor invariants: every
// anchor has a node, a non-empty range, a known strategy and a fingerprint,
// and no two anchors of one node overlap.
func (m *CloakMap) Validate() error {
	if err := checkVersion(m.Version); err != nil {
		return err
	}
	if m.CreatedAt.IsZero() {
		return newSerializationError("created_at", errors.New("missing timestamp"))
	}

	for i, a := range m.Anchors {
		field := fmt.Sprintf("anchors[%d]", i)
		switch {
		case a.NodeID == "":
			return newSerializationError(field+".node_id", errors.New("empty node id"))
		case a.NodeIndex < 0:
			return newSerializationError(field+".node_index", fmt.Errorf("negative index %d", a.NodeIndex))
		case a.Start < 0 || a.End <= a.Start:
			return newSerializationError(field, fmt.Errorf("invalid range [%d:%d]", a.Start, a.End))
		case a.EntityType == "":
			return newSerializationError(field+".entity_type", errors.New("empty entity type"))
		case !IsValidKind(a.StrategyUsed):
			return newSerializationError(field+".strategy_used", fmt.Errorf("unknown strategy %q", a.StrategyUsed))
		case a.Metadata.OriginalHash == "":
			return newSerializationError(field+".metadata.original_hash", errors.New("missing fingerprint"))
		case a.Metadata.OriginalText != "" && a.Metadata.SealedOriginal != "":
			return newSerializationError(field+".metadata", errors.New("both plaintext and sealed original present"))
		case math.IsNaN(a.Metadata.Confidence) || a.Metadata.Confidence < 0 || a.Metadata.Confidence > 1:
			return newSerializationError(field+".metadata.confidence", fmt.Errorf("confidence %v outside [0,1]", a.Metadata.Confidence))
		}
	}

	indexes := make(map[string]int)
	for _, a := range m.Anchors {
		if idx, ok := indexes[a.NodeID]; ok && idx != a.NodeIndex {
			return newSerializationError("anchors", fmt.Errorf("node %s has inconsistent indexes %d and %d", a.NodeID, idx, a.NodeIndex))
		}
		indexes[a.NodeID] = a.NodeIndex
	}

	sorted := slices.Clone(m.Anchors)
	sortAnchors(sorted)
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.NodeID != cur.NodeID {
			continue
		}
		if cur.Start < prev.End {
			return newSerializationError("anchors", fmt.Errorf("overlapping anchors in node %s at %d and %d", cur.NodeID, prev.Start, cur.Start))
		}
	}
	return nil
}

// Seal returns a copy of m with every plaintext original encrypted by enc.
func (m *CloakMap) Seal(enc Encryptor) (*CloakMap, error) {
	out := m.clone()
	for i := range out.Anchors {
		a := &out.Anchors[i]
		if a.Metadata.OriginalText == "" {
			continue
		}
		ct, err := enc.Encrypt([]byte(a.Metadata.OriginalText), a.associatedData())
		if err != nil {
			return nil, fmt.Errorf("%w: anchor %s[%d]: %w", ErrSeal, a.NodeID, a.Start, err)
		}
		a.Metadata.SealedOriginal = base64.StdEncoding.EncodeToString(ct)
		a.Metadata.OriginalText = ""
	}
	return out, nil
}

// Unseal returns a copy of m with every sealed original decrypted by enc.
// Each decrypted original is checked against its fingerprint.
func (m *CloakMap) Unseal(enc Encryptor) (*CloakMap, error) {
	out := m.clone()
	for i := range out.Anchors {
		a := &out.Anchors[i]
		if a.Metadata.SealedOriginal == "" {
			continue
		}
		ct, err := base64.StdEncoding.DecodeString(a.Metadata.SealedOriginal)
		if err != nil {
			return nil, fmt.Errorf("%w: anchor %s[%d]: %w", ErrSeal, a.NodeID, a.Start, err)
		}
		pt, err := enc.Decrypt(ct, a.associatedData())
		if err != nil {
			return nil, fmt.Errorf("%w: anchor %s[%d]: %w", ErrSeal, a.NodeID, a.Start, err)
		}
		if Fingerprint(string(pt), m.PolicySnapshot.Seed) != a.Metadata.OriginalHash {
			return nil, &IntegrityError{NodeID: a.NodeID, Start: a.Start, Reason: "sealed original does not match fingerprint"}
		}
		a.Metadata.OriginalText = string(pt)
		a.Metadata.SealedOriginal = ""
	}
	return out, nil
}

// normalize puts a decoded map in canonical form.
func (m *CloakMap) normalize() {
	m.CreatedAt = m.CreatedAt.UTC().Truncate(time.Millisecond)
	if len(m.Anchors) == 0 {
		m.Anchors = nil
	}
	sortAnchors(m.Anchors)
}

func (m *CloakMap) clone() *CloakMap {
	out := *m
	out.Anchors = slices.Clone(m.Anchors)
	return &out
}

func checkVersion(v string) error {
	if v == "" {
		return newSerializationError("version", errors.New("missing version"))
	}
	major, _, _ := strings.Cut(v, ".")
	wantMajor, _, _ := strings.Cut(Version, ".")
	if major != wantMajor {
		return newSerializationError("version", fmt.Errorf("unsupported version %q, want %s.x", v, wantMajor))
	}
	return nil
}
