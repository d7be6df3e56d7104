package engine

import (
	"errors"
	"fmt"

	"github.com/sigepol/risk-engine/internal/store"
)

// NotFoundError reports that a referenced policy, collection or alert does
// not exist. Never retried internally.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// InvalidStateError reports a transition attempted from a state that does not
// permit it, e.g. paying an already-cancelled collection.
type InvalidStateError struct {
	Entity     string
	ID         int64
	Status     string
	Transition string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %d: cannot %s from status %s", e.Entity, e.ID, e.Transition, e.Status)
}

// ConcurrentModificationError reports a failed optimistic status check. The
// caller should re-read and retry; the engine never retries automatically
// since retrying with stale intent could register a payment twice.
type ConcurrentModificationError struct {
	Entity string
	ID     int64
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("%s %d was modified concurrently, re-read and retry", e.Entity, e.ID)
}

// ValidationError reports malformed input, rejected before any state
// mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// mapStoreErr translates store-level sentinel errors for a single record into
// the engine's typed failures. Other errors pass through unchanged.
func mapStoreErr(err error, entity string, id int64) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return &NotFoundError{Entity: entity, ID: id}
	case errors.Is(err, store.ErrStaleStatus):
		return &ConcurrentModificationError{Entity: entity, ID: id}
	default:
		return err
	}
}
