package cloak

import (
	"fmt"
	"maps"
	"slices"
)

// Policy assigns masking strategies to entity types for one masking run.
//
// A Policy is an immutable value. Every With method returns a new Policy
// and leaves the receiver untouched, so one Policy may be shared by any
// number of concurrent masking runs.
type Policy struct {
	defaultStrategy  Strategy
	entityStrategies map[string]Strategy
	seed             string
	reversible       bool
	defaultThreshold float64
	thresholds       map[string]float64
	allowList        map[string]struct{}
}

// PolicySnapshot is the serializable form of a Policy.
// Custom strategies keep their name; their callbacks are not serialized.
type PolicySnapshot struct {
	Seed             string              `json:"seed,omitempty" yaml:"seed,omitempty" bson:"seed,omitempty"`
	DefaultStrategy  Strategy            `json:"default_strategy" yaml:"default_strategy" bson:"default_strategy"`
	EntityStrategies map[string]Strategy `json:"entity_strategies,omitempty" yaml:"entity_strategies,omitempty" bson:"entity_strategies,omitempty"`
	Reversible       bool                `json:"reversible,omitempty" yaml:"reversible,omitempty" bson:"reversible,omitempty"`
	DefaultThreshold float64             `json:"default_threshold,omitempty" yaml:"default_threshold,omitempty" bson:"default_threshold,omitempty"`
	Thresholds       map[string]float64  `json:"thresholds,omitempty" yaml:"thresholds,omitempty" bson:"thresholds,omitempty"`
	AllowList        []string            `json:"allow_list,omitempty" yaml:"allow_list,omitempty" bson:"allow_list,omitempty"`
}

// NewPolicy returns a policy that applies def to every entity type.
func NewPolicy(def Strategy) Policy {
	return Policy{defaultStrategy: def}
}

// DefaultPolicy returns a policy that replaces every span with "[REDACTED]".
func DefaultPolicy() Policy {
	return NewPolicy(Template("[REDACTED]"))
}

// WithSeed returns a copy of p using seed for surrogates and fingerprints.
func (p Policy) WithSeed(seed string) Policy {
	p.seed = seed
	return p
}

// WithEntityStrategy returns a copy of p applying s to entityType.
func (p Policy) WithEntityStrategy(entityType string, s Strategy) Policy {
	m := make(map[string]Strategy, len(p.entityStrategies)+1)
	maps.Copy(m, p.entityStrategies)
	m[entityType] = s
	p.entityStrategies = m
	return p
}

// WithDefaultStrategy returns a copy of p applying s to unmapped entity types.
func (p Policy) WithDefaultStrategy(s Strategy) Policy {
	p.defaultStrategy = s
	return p
}

// WithReversible returns a copy of p that does or does not record original
// text in anchors.
func (p Policy) WithReversible(reversible bool) Policy {
	p.reversible = reversible
	return p
}

// WithThreshold returns a copy of p that leaves spans of entityType with a
// score below minScore unmasked.
func (p Policy) WithThreshold(entityType string, minScore float64) Policy {
	m := make(map[string]float64, len(p.thresholds)+1)
	maps.Copy(m, p.thresholds)
	m[entityType] = minScore
	p.thresholds = m
	return p
}

// WithDefaultThreshold returns a copy of p with a minimum score for entity
// types without their own threshold.
func (p Policy) WithDefaultThreshold(minScore float64) Policy {
	p.defaultThreshold = minScore
	return p
}

// WithAllowList returns a copy of p that never masks spans whose text is
// exactly one of values.
func (p Policy) WithAllowList(values ...string) Policy {
	m := make(map[string]struct{}, len(p.allowList)+len(values))
	for v := range p.allowList {
		m[v] = struct{}{}
	}
	for _, v := range values {
		m[v] = struct{}{}
	}
	p.allowList = m
	return p
}

// StrategyFor returns the strategy mapped to entityType, or the default.
func (p Policy) StrategyFor(entityType string) Strategy {
	if s, ok := p.entityStrategies[entityType]; ok {
		return s
	}
	return p.defaultStrategy
}

// DefaultStrategy returns the strategy for unmapped entity types.
func (p Policy) DefaultStrategy() Strategy {
	return p.defaultStrategy
}

// Seed returns the policy seed.
func (p Policy) Seed() string {
	return p.seed
}

// Reversible reports whether anchors record original text.
func (p Policy) Reversible() bool {
	return p.reversible
}

// ThresholdFor returns the minimum score for entityType.
func (p Policy) ThresholdFor(entityType string) float64 {
	if t, ok := p.thresholds[entityType]; ok {
		return t
	}
	return p.defaultThreshold
}

// Allowed reports whether text is on the allow list.
func (p Policy) Allowed(text string) bool {
	_, ok := p.allowList[text]
	return ok
}

// EntityTypes returns the entity types with their own strategy, sorted.
func (p Policy) EntityTypes() []string {
	return slices.Sorted(maps.Keys(p.entityStrategies))
}

// Validate reports whether every strategy and threshold in p is usable.
func (p Policy) Validate() error {
	if err := p.defaultStrategy.Validate(); err != nil {
		return fmt.Errorf("%w: default strategy: %w", ErrInvalidPolicy, err)
	}
	for _, et := range p.EntityTypes() {
		if err := p.entityStrategies[et].Validate(); err != nil {
			return fmt.Errorf("%w: strategy for %s: %w", ErrInvalidPolicy, et, err)
		}
	}
	if p.defaultThreshold < 0 || p.defaultThreshold > 1 {
		return fmt.Errorf("%w: default threshold %v outside [0,1]", ErrInvalidPolicy, p.defaultThreshold)
	}
	for et, t := range p.thresholds {
		if t < 0 || t > 1 {
			return fmt.Errorf("%w: threshold for %s %v outside [0,1]", ErrInvalidPolicy, et, t)
		}
	}
	return nil
}

// Snapshot returns the serializable form of p.
func (p Policy) Snapshot() PolicySnapshot {
	snap := PolicySnapshot{
		Seed:             p.seed,
		DefaultStrategy:  stripCallback(p.defaultStrategy),
		Reversible:       p.reversible,
		DefaultThreshold: p.defaultThreshold,
	}
	if len(p.entityStrategies) > 0 {
		snap.EntityStrategies = make(map[string]Strategy, len(p.entityStrategies))
		for et, s := range p.entityStrategies {
			snap.EntityStrategies[et] = stripCallback(s)
		}
	}
	if len(p.thresholds) > 0 {
		snap.Thresholds = maps.Clone(p.thresholds)
	}
	if len(p.allowList) > 0 {
		snap.AllowList = slices.Sorted(maps.Keys(p.allowList))
	}
	return snap
}

// PolicyFromSnapshot rebuilds a Policy from snap, binding custom strategies
// to callbacks by name. A custom strategy naming a missing callback fails
// with ErrUnknownCallback.
func PolicyFromSnapshot(snap PolicySnapshot, callbacks map[string]CustomFunc) (Policy, error) {
	def, err := bindCallback(snap.DefaultStrategy, callbacks)
	if err != nil {
		return Policy{}, err
	}
	p := NewPolicy(def).
		WithSeed(snap.Seed).
		WithReversible(snap.Reversible).
		WithDefaultThreshold(snap.DefaultThreshold)

	for _, et := range slices.Sorted(maps.Keys(snap.EntityStrategies)) {
		s, err := bindCallback(snap.EntityStrategies[et], callbacks)
		if err != nil {
			return Policy{}, err
		}
		p = p.WithEntityStrategy(et, s)
	}
	for et, t := range snap.Thresholds {
		p = p.WithThreshold(et, t)
	}
	if len(snap.AllowList) > 0 {
		p = p.WithAllowList(snap.AllowList...)
	}

	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// ParsePolicy decodes a PolicySnapshot from data with c and rebuilds it.
func ParsePolicy(c Codec, data []byte, callbacks map[string]CustomFunc) (Policy, error) {
	var snap PolicySnapshot
	if err := c.Unmarshal(data, &snap); err != nil {
		return Policy{}, fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}
	return PolicyFromSnapshot(snap, callbacks)
}

func stripCallback(s Strategy) Strategy {
	s.Callback = nil
	return s
}

func bindCallback(s Strategy, callbacks map[string]CustomFunc) (Strategy, error) {
	if s.Kind != KindCustom {
		return s, nil
	}
	fn, ok := callbacks[s.Name]
	if !ok || fn == nil {
		return Strategy{}, fmt.Errorf("%w: %w %q", ErrInvalidPolicy, ErrUnknownCallback, s.Name)
	}
	s.Callback = fn
	return s, nil
}
