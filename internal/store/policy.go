package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

type PolicyStore struct {
	db *sqlx.DB
}

func (ps *PolicyStore) ListActive(ctx context.Context) ([]Policy, error) {
	query := `SELECT
		id, number, client_id, premium_uf, start_date, expiration_date,
		status, cluster, created_at, updated_at
	FROM policies
	WHERE status = $1
	ORDER BY expiration_date ASC`

	policies := []Policy{}
	if err := ps.db.SelectContext(ctx, &policies, query, PolicyStatusActive); err != nil {
		return nil, err
	}
	return policies, nil
}

func (ps *PolicyStore) Get(ctx context.Context, id int64) (*Policy, error) {
	query := `SELECT
		id, number, client_id, premium_uf, start_date, expiration_date,
		status, cluster, created_at, updated_at
	FROM policies
	WHERE id = $1`

	var policy Policy
	err := ps.db.GetContext(ctx, &policy, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

// UpdateCluster writes the externally computed cluster assignment. The engine
// never mutates any other policy column.
func (ps *PolicyStore) UpdateCluster(ctx context.Context, number string, cluster int) error {
	query := `UPDATE policies
		SET cluster = $1, updated_at = now()
		WHERE number = $2`

	result, err := ps.db.ExecContext(ctx, query, cluster, number)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
