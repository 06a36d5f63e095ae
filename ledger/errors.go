/*
errors.go - Centralized error types for the consumption engine

PURPOSE:
  Every rejected operation returns a structured reason a caller can show
  to an end user without further lookups. Structured errors unwrap to a
  sentinel so callers can branch with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Feasibility - InsufficientResourceError (full shortfall list)
  2. Structure   - CycleError (with the offending path)
  3. Commit      - CommitFailure (storage failed mid-commit, rolled back)
  4. Input       - InvalidQuantityError, LossMismatchError

SEE ALSO:
  - engine.go: raises InsufficientResourceError, CommitFailure
  - composition.go: raises CycleError
  - api/handlers.go: maps these to HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrInsufficientResource = errors.New("insufficient resource")
	ErrCycle                = errors.New("composition cycle")
	ErrCommitFailed         = errors.New("commit failed")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrLossMismatch         = errors.New("losses do not match yield shortfall")

	ErrCompositionNotFound = errors.New("composition not found")
	ErrActionNotFound      = errors.New("action not found")
	ErrLotNotFound         = errors.New("lot not found")

	// ErrLotOverdrawn is returned by a store when a depletion would push a
	// lot's remaining quantity below zero.
	ErrLotOverdrawn = errors.New("lot overdrawn")

	// ErrDuplicateID is returned when a record or lot ID already exists.
	ErrDuplicateID = errors.New("duplicate id")

	ErrInvalidComponent   = errors.New("invalid component")
	ErrInvalidComposition = errors.New("invalid composition")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InsufficientResourceError carries every insufficient resource found by the
// check phase, not just the first.
type InsufficientResourceError struct {
	Report ShortfallReport
}

func (e *InsufficientResourceError) Error() string {
	parts := make([]string, len(e.Report.Shortfalls))
	for i, s := range e.Report.Shortfalls {
		parts[i] = fmt.Sprintf("%s (needed %s, available %s, short %s)",
			s.Item, s.Needed, s.Available, s.Shortfall)
	}
	return "insufficient resources: " + strings.Join(parts, "; ")
}

func (e *InsufficientResourceError) Unwrap() error { return ErrInsufficientResource }

// CycleError is returned when attaching Child to Parent would make Parent
// reachable from itself. Path starts and ends at Parent.
type CycleError struct {
	Parent ItemKey
	Child  ItemKey
	Path   []ItemKey
}

func (e *CycleError) Error() string {
	keys := make([]string, len(e.Path))
	for i, k := range e.Path {
		keys[i] = string(k)
	}
	return fmt.Sprintf("adding %s to %s creates a cycle: %s", e.Child, e.Parent, strings.Join(keys, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// CommitFailure wraps a storage error raised during the commit phase. The
// unit of work that receives it rolls back every write of the same commit.
type CommitFailure struct {
	ActionID ActionID
	Stage    string
	Err      error
}

func (e *CommitFailure) Error() string {
	return fmt.Sprintf("commit of action %s failed at %s: %v", e.ActionID, e.Stage, e.Err)
}

func (e *CommitFailure) Unwrap() []error { return []error{ErrCommitFailed, e.Err} }

// InvalidQuantityError rejects negative or otherwise unusable input before
// any ledger read.
type InvalidQuantityError struct {
	Field  string
	Value  decimal.Decimal
	Reason string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid %s %s: %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidQuantityError) Unwrap() error { return ErrInvalidQuantity }

// LossMismatchError is returned when supplied losses exceed the shortfall
// between requested and actual yield.
type LossMismatchError struct {
	RequestedYield decimal.Decimal
	ActualYield    decimal.Decimal
	Recorded       decimal.Decimal
}

func (e *LossMismatchError) Error() string {
	return fmt.Sprintf("losses total %s but requested %s and yielded %s",
		e.Recorded, e.RequestedYield, e.ActualYield)
}

func (e *LossMismatchError) Unwrap() error { return ErrLossMismatch }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to the caller's input or
// the current state of stock, not a storage fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientResource) ||
		errors.Is(err, ErrCycle) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrLossMismatch) ||
		errors.Is(err, ErrInvalidComponent) ||
		errors.Is(err, ErrInvalidComposition) ||
		errors.Is(err, ErrDuplicateID)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCompositionNotFound) ||
		errors.Is(err, ErrActionNotFound) ||
		errors.Is(err, ErrLotNotFound)
}
