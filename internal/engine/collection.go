package engine

import (
	"context"
	"strings"
	"time"

	"github.com/sigepol/risk-engine/internal/store"
)

// Payment methods accepted by the import pipeline and the payment form.
var paymentMethods = map[string]bool{
	"TRANSFERENCIA":     true,
	"CHEQUE":            true,
	"EFECTIVO":          true,
	"TARJETA":           true,
	"DEBITO_AUTOMATICO": true,
}

// PaymentInput carries the payment record attached when a collection
// transitions to PAGADA. Payments are not partial: a collection is paid in
// full exactly once.
type PaymentInput struct {
	PaymentDate    time.Time
	Method         string
	DocumentNumber string
	Observations   string
}

// RegisterPayment moves a PENDIENTE or EN_PROCESO collection to PAGADA,
// attaching the payment record. Registration is write-once: a second call on
// the same collection fails with InvalidStateError and leaves the original
// payment record untouched.
func (e *Engine) RegisterPayment(ctx context.Context, collectionID int64, input PaymentInput) (*store.Collection, error) {
	if input.PaymentDate.IsZero() {
		return nil, &ValidationError{Field: "payment_date", Reason: "required"}
	}
	if !paymentMethods[input.Method] {
		return nil, &ValidationError{Field: "payment_method", Reason: "unknown method " + input.Method}
	}

	collection, err := e.storage.Collection.Get(ctx, collectionID)
	if err != nil {
		return nil, mapStoreErr(err, "collection", collectionID)
	}

	if !isPayable(collection.Status) {
		return nil, &InvalidStateError{
			Entity:     "collection",
			ID:         collectionID,
			Status:     collection.Status,
			Transition: "register payment",
		}
	}

	expected := collection.Status
	collection.Status = store.CollectionStatusPaid
	collection.PaymentDate = &input.PaymentDate
	collection.PaymentMethod = &input.Method
	if input.DocumentNumber != "" {
		collection.DocumentNumber = &input.DocumentNumber
	}
	if input.Observations != "" {
		collection.Observations = &input.Observations
	}

	if err := e.storage.Collection.Update(ctx, collection, expected); err != nil {
		return nil, mapStoreErr(err, "collection", collectionID)
	}
	return collection, nil
}

// CancelCollection moves a PENDIENTE or EN_PROCESO collection to CANCELADA.
// A non-empty reason is required; paid or already-cancelled obligations
// cannot be cancelled.
func (e *Engine) CancelCollection(ctx context.Context, collectionID int64, reason string) (*store.Collection, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &ValidationError{Field: "cancel_reason", Reason: "required"}
	}

	collection, err := e.storage.Collection.Get(ctx, collectionID)
	if err != nil {
		return nil, mapStoreErr(err, "collection", collectionID)
	}

	if !isPayable(collection.Status) {
		return nil, &InvalidStateError{
			Entity:     "collection",
			ID:         collectionID,
			Status:     collection.Status,
			Transition: "cancel",
		}
	}

	expected := collection.Status
	collection.Status = store.CollectionStatusCancelled
	collection.CancelReason = &reason

	if err := e.storage.Collection.Update(ctx, collection, expected); err != nil {
		return nil, mapStoreErr(err, "collection", collectionID)
	}
	return collection, nil
}

// isPayable reports whether the status still admits payment or cancellation.
func isPayable(status string) bool {
	return status == store.CollectionStatusPending || status == store.CollectionStatusInProcess
}

// IsOverdue reports whether the obligation is past due and still unpaid.
// PAGADA and CANCELADA collections are never overdue regardless of date.
func IsOverdue(c *store.Collection, now time.Time) bool {
	if !isPayable(c.Status) {
		return false
	}
	return dateOf(now).After(dateOf(c.DueDate))
}

// DaysOverdue returns whole days past the due date; negative values are days
// remaining until it.
func DaysOverdue(c *store.Collection, now time.Time) int {
	return int(dateOf(now).Sub(dateOf(c.DueDate)).Hours() / 24)
}

// dateOf truncates to a calendar date in UTC so comparisons ignore the time
// of day.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
