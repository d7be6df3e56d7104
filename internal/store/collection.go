package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

type CollectionStore struct {
	db *sqlx.DB
}

func (cs *CollectionStore) ListForPolicy(ctx context.Context, policyID int64) ([]Collection, error) {
	query := `SELECT
		id, policy_id, amount_uf, issue_date, due_date, status,
		payment_date, payment_method, document_number, observations,
		cancel_reason, created_at, updated_at
	FROM collections
	WHERE policy_id = $1
	ORDER BY due_date ASC`

	collections := []Collection{}
	if err := cs.db.SelectContext(ctx, &collections, query, policyID); err != nil {
		return nil, err
	}
	return collections, nil
}

func (cs *CollectionStore) Get(ctx context.Context, id int64) (*Collection, error) {
	query := `SELECT
		id, policy_id, amount_uf, issue_date, due_date, status,
		payment_date, payment_method, document_number, observations,
		cancel_reason, created_at, updated_at
	FROM collections
	WHERE id = $1`

	var collection Collection
	err := cs.db.GetContext(ctx, &collection, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &collection, nil
}

// Update writes the collection's mutable columns guarded by an optimistic
// status check. When the stored status no longer matches expectedStatus the
// update touches zero rows and ErrStaleStatus is returned; the caller must
// re-read before retrying.
func (cs *CollectionStore) Update(ctx context.Context, collection *Collection, expectedStatus string) error {
	query := `UPDATE collections SET
		status = :status,
		payment_date = :payment_date,
		payment_method = :payment_method,
		document_number = :document_number,
		observations = :observations,
		cancel_reason = :cancel_reason,
		updated_at = now()
	WHERE id = :id AND status = :expected_status`

	arg := struct {
		*Collection
		ExpectedStatus string `db:"expected_status"`
	}{Collection: collection, ExpectedStatus: expectedStatus}

	result, err := cs.db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Distinguish a missing row from a concurrent status change.
		var status string
		err := cs.db.GetContext(ctx, &status, `SELECT status FROM collections WHERE id = $1`, collection.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrStaleStatus
	}
	return nil
}

func (cs *CollectionStore) Stats(ctx context.Context, now time.Time) (CollectionStats, error) {
	query := `SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = $1) AS pending,
		COUNT(*) FILTER (WHERE status = $2) AS in_process,
		COUNT(*) FILTER (WHERE status = $3) AS paid,
		COUNT(*) FILTER (WHERE status = $4) AS cancelled,
		COUNT(*) FILTER (WHERE status IN ($1, $2) AND due_date < $5) AS overdue,
		COALESCE(SUM(amount_uf) FILTER (WHERE status IN ($1, $2)), 0) AS pending_amount_uf,
		COALESCE(AVG(($5::date - due_date)) FILTER (WHERE status IN ($1, $2) AND due_date < $5), 0) AS avg_days_overdue
	FROM collections`

	var stats CollectionStats
	err := cs.db.GetContext(ctx, &stats, query,
		CollectionStatusPending,
		CollectionStatusInProcess,
		CollectionStatusPaid,
		CollectionStatusCancelled,
		now,
	)
	if err != nil {
		return CollectionStats{}, err
	}
	return stats, nil
}
