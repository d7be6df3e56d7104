package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type AlertStore struct {
	db *sqlx.DB
}

const pqUniqueViolation = "23505"

// Insert persists a new alert. The partial unique index on dedup_key makes a
// concurrent insert of the same open condition fail with a unique violation,
// which is surfaced as ErrDuplicateKey so callers can treat the race as an
// already-existing alert rather than an error.
func (as *AlertStore) Insert(ctx context.Context, alert *Alert) error {
	query := `INSERT INTO alerts (
		category,
		priority,
		status,
		title,
		message,
		policy_id,
		client_id,
		rule_id,
		dedup_key,
		limit_date
	) VALUES (
		:category,
		:priority,
		:status,
		:title,
		:message,
		:policy_id,
		:client_id,
		:rule_id,
		:dedup_key,
		:limit_date
	) RETURNING id, created_at`

	rows, err := as.db.NamedQueryContext(ctx, query, alert)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrDuplicateKey
		}
		return err
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&alert.ID, &alert.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (as *AlertStore) Get(ctx context.Context, id int64) (*Alert, error) {
	query := `SELECT
		id, category, priority, status, title, message, policy_id, client_id,
		rule_id, dedup_key, created_at, read_at, resolved_at, limit_date
	FROM alerts
	WHERE id = $1`

	var alert Alert
	err := as.db.GetContext(ctx, &alert, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func (as *AlertStore) ListOpenByKeys(ctx context.Context, keys []string) ([]Alert, error) {
	if len(keys) == 0 {
		return []Alert{}, nil
	}

	query, args, err := sqlx.In(`SELECT
		id, category, priority, status, title, message, policy_id, client_id,
		rule_id, dedup_key, created_at, read_at, resolved_at, limit_date
	FROM alerts
	WHERE dedup_key IN (?) AND status IN (?, ?)`,
		keys, AlertStatusPending, AlertStatusRead)
	if err != nil {
		return nil, err
	}

	alerts := []Alert{}
	if err := as.db.SelectContext(ctx, &alerts, as.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (as *AlertStore) CountOpenForPolicy(ctx context.Context, policyID int64) (int, error) {
	query := `SELECT COUNT(*) FROM alerts
		WHERE policy_id = $1 AND status IN ($2, $3)`

	var count int
	err := as.db.GetContext(ctx, &count, query, policyID, AlertStatusPending, AlertStatusRead)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Update writes the alert's lifecycle columns guarded by an optimistic status
// check, mirroring CollectionStore.Update.
func (as *AlertStore) Update(ctx context.Context, alert *Alert, expectedStatus string) error {
	query := `UPDATE alerts SET
		status = :status,
		read_at = :read_at,
		resolved_at = :resolved_at
	WHERE id = :id AND status = :expected_status`

	arg := struct {
		*Alert
		ExpectedStatus string `db:"expected_status"`
	}{Alert: alert, ExpectedStatus: expectedStatus}

	result, err := as.db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var status string
		err := as.db.GetContext(ctx, &status, `SELECT status FROM alerts WHERE id = $1`, alert.ID)
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

func (as *AlertStore) Stats(ctx context.Context, now time.Time) (AlertStats, error) {
	query := `SELECT
		COUNT(*) FILTER (WHERE status = $1) AS pending,
		COUNT(*) FILTER (WHERE status = $2) AS read,
		COUNT(*) FILTER (WHERE status = $3) AS resolved,
		COUNT(*) FILTER (WHERE status = $4) AS discarded,
		COUNT(*) FILTER (WHERE status IN ($1, $2) AND priority = 'CRITICA') AS open_critical,
		COUNT(*) FILTER (WHERE status IN ($1, $2) AND limit_date < $5) AS past_limit
	FROM alerts`

	var stats AlertStats
	err := as.db.GetContext(ctx, &stats, query,
		AlertStatusPending,
		AlertStatusRead,
		AlertStatusResolved,
		AlertStatusDiscarded,
		now,
	)
	if err != nil {
		return AlertStats{}, err
	}
	return stats, nil
}
