package cloak

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrDetection indicates the detector failed for a node.
	ErrDetection = errors.New("detection failed")

	// ErrAllNodesFailed indicates detection failed for every text node of a document.
	ErrAllNodesFailed = errors.New("detection failed for all nodes")

	// ErrStrategy indicates a strategy could not produce a replacement.
	ErrStrategy = errors.New("strategy failed")

	// ErrInvalidStrategy indicates a strategy has an unknown kind or invalid parameters.
	ErrInvalidStrategy = errors.New("invalid strategy")

	// ErrInvalidPolicy indicates a policy is missing or misconfigured.
	ErrInvalidPolicy = errors.New("invalid policy")

	// ErrUnknownCallback indicates a custom strategy names a callback that was not supplied.
	ErrUnknownCallback = errors.New("unknown callback")

	// ErrUnsupportedEntity indicates the surrogate generator has no data for an entity type.
	ErrUnsupportedEntity = errors.New("unsupported entity type")

	// ErrSerialization indicates a CloakMap could not be parsed or validated.
	ErrSerialization = errors.New("invalid cloakmap")

	// ErrMarshal indicates the codec failed to marshal output data.
	ErrMarshal = errors.New("marshal failed")

	// ErrIrreversible indicates an anchor stores no recoverable original.
	ErrIrreversible = errors.New("irreversible anchor")

	// ErrIntegrity indicates masked or restored content does not match the CloakMap.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrNodeNotFound indicates a node id does not exist in a document.
	ErrNodeNotFound = errors.New("node not found")

	// ErrInvalidDocument indicates a document exposes duplicate or unusable nodes.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidTag indicates a struct tag has an invalid format or value.
	ErrInvalidTag = errors.New("invalid tag")

	// ErrSeal indicates sealing or unsealing original text failed.
	ErrSeal = errors.New("seal failed")
)

// DetectionError reports a detector failure for a single node.
type DetectionError struct {
	NodeID string // Node whose text could not be analyzed
	Cause  error  // Original error from the detector
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("%s for node %s: %v", ErrDetection.Error(), e.NodeID, e.Cause)
}

func (e *DetectionError) Unwrap() []error {
	return []error{ErrDetection, e.Cause}
}

// StrategyError reports a strategy that could not transform a span.
// It wraps a sentinel error with the entity type and strategy kind involved.
type StrategyError struct {
	Err        error  // Underlying sentinel error (ErrStrategy, ErrInvalidStrategy, ...)
	EntityType string // Entity type of the span
	Strategy   Kind   // Strategy kind that failed
	Cause      error  // Original error, if any
}

func (e *StrategyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s strategy for %s: %v", e.Strategy, e.EntityType, e.Cause)
	}
	return fmt.Sprintf("%s strategy for %s: %s", e.Strategy, e.EntityType, e.Err.Error())
}

func (e *StrategyError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// SerializationError reports a CloakMap that cannot be parsed or validated.
type SerializationError struct {
	Field string // Offending key or anchor path, empty for whole-document failures
	Cause error  // Original error
}

func (e *SerializationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %v", ErrSerialization.Error(), e.Field, e.Cause)
	}
	return fmt.Sprintf("%s: %v", ErrSerialization.Error(), e.Cause)
}

func (e *SerializationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrSerialization}
	}
	return []error{ErrSerialization, e.Cause}
}

// IrreversibleError reports an unmask attempt against an anchor whose
// strategy stored no original text.
type IrreversibleError struct {
	NodeID     string
	Start      int
	End        int
	EntityType string
	Strategy   Kind
}

func (e *IrreversibleError) Error() string {
	return fmt.Sprintf("%s: %s anchor at %s[%d:%d] (%s) has no original text",
		ErrIrreversible.Error(), e.Strategy, e.NodeID, e.Start, e.End, e.EntityType)
}

func (e *IrreversibleError) Unwrap() error {
	return ErrIrreversible
}

// IntegrityError reports masked or restored text that disagrees with an anchor.
type IntegrityError struct {
	NodeID string
	Start  int
	Reason string
}

func (e *IntegrityError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("%s: %s", ErrIntegrity.Error(), e.Reason)
	}
	return fmt.Sprintf("%s at %s[%d]: %s", ErrIntegrity.Error(), e.NodeID, e.Start, e.Reason)
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrity
}

// newStrategyError creates a StrategyError for span transformation failures.
func newStrategyError(sentinel error, entityType string, kind Kind, cause error) error {
	return &StrategyError{
		Err:        sentinel,
		EntityType: entityType,
		Strategy:   kind,
		Cause:      cause,
	}
}

// newSerializationError creates a SerializationError for parse and validation failures.
func newSerializationError(field string, cause error) error {
	return &SerializationError{
		Field: field,
		Cause: cause,
	}
}
