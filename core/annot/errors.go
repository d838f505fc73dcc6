package annot

import (
	"errors"
	"fmt"

	"github.com/tierline/tierline/core/timespan"
)

// Sentinel errors for edit failures. Every engine operation that fails
// returns an error matching exactly one of these under errors.Is, and the
// store is guaranteed unchanged.
var (
	// ErrUnknownTier indicates an operation referenced a tier the
	// hierarchy does not define.
	ErrUnknownTier = errors.New("unknown tier")
	// ErrDegenerateInterval indicates a proposed interval that violates
	// the structural rules (negative start, non-positive or sub-minimum
	// duration, or past the document end).
	ErrDegenerateInterval = errors.New("degenerate interval")
	// ErrNoCoveringParent indicates a dependent-tier proposal that no
	// parent annotation contains.
	ErrNoCoveringParent = errors.New("no covering parent")
	// ErrNotFound indicates an operation referenced an unknown
	// annotation id.
	ErrNotFound = errors.New("annotation not found")
	// ErrDuplicateID indicates an insert would reuse a committed id.
	// Fresh ids make this unreachable through the engine API; a hit is a
	// programming error or a corrupt document.
	ErrDuplicateID = errors.New("duplicate annotation id")
)

// UnknownTierError reports an operation against an undefined tier.
type UnknownTierError struct {
	Tier string
}

func (e *UnknownTierError) Error() string {
	return fmt.Sprintf("unknown tier: %q", e.Tier)
}

func (e *UnknownTierError) Unwrap() error {
	return ErrUnknownTier
}

// DegenerateIntervalError reports a proposed span that fails the
// structural interval rules.
type DegenerateIntervalError struct {
	Span   timespan.Span
	Reason string
}

func (e *DegenerateIntervalError) Error() string {
	return fmt.Sprintf("degenerate interval %v: %s", e.Span, e.Reason)
}

func (e *DegenerateIntervalError) Unwrap() error {
	return ErrDegenerateInterval
}

// NoCoveringParentError reports a dependent-tier proposal with no
// containing annotation on the parent tier.
type NoCoveringParentError struct {
	Tier       string
	ParentTier string
	Span       timespan.Span
}

func (e *NoCoveringParentError) Error() string {
	return fmt.Sprintf("no annotation on tier %q covers %v for tier %q",
		e.ParentTier, e.Span, e.Tier)
}

func (e *NoCoveringParentError) Unwrap() error {
	return ErrNoCoveringParent
}

// NotFoundError reports an id with no committed annotation.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("annotation not found: %s", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// DuplicateIDError reports an insert that would reuse a committed id.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate annotation id: %s", e.ID)
}

func (e *DuplicateIDError) Unwrap() error {
	return ErrDuplicateID
}

// NewUnknownTier creates an UnknownTierError.
func NewUnknownTier(tier string) *UnknownTierError {
	return &UnknownTierError{Tier: tier}
}

// NewDegenerateInterval creates a DegenerateIntervalError from the failed
// structural check.
func NewDegenerateInterval(span timespan.Span, reason error) *DegenerateIntervalError {
	return &DegenerateIntervalError{Span: span, Reason: reason.Error()}
}

// NewNoCoveringParent creates a NoCoveringParentError.
func NewNoCoveringParent(tierName, parentTier string, span timespan.Span) *NoCoveringParentError {
	return &NoCoveringParentError{Tier: tierName, ParentTier: parentTier, Span: span}
}

// NewNotFound creates a NotFoundError.
func NewNotFound(id string) *NotFoundError {
	return &NotFoundError{ID: id}
}

// NewDuplicateID creates a DuplicateIDError.
func NewDuplicateID(id string) *DuplicateIDError {
	return &DuplicateIDError{ID: id}
}
