package store

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// Status values follow the Spanish wire values produced by the import
// pipeline; Go code only ever compares against these constants.
var (
	PolicyStatusActive    = "VIGENTE"
	PolicyStatusExpired   = "VENCIDA"
	PolicyStatusCancelled = "CANCELADA"
)

var (
	CollectionStatusPending   = "PENDIENTE"
	CollectionStatusInProcess = "EN_PROCESO"
	CollectionStatusPaid      = "PAGADA"
	CollectionStatusOverdue   = "VENCIDA"
	CollectionStatusCancelled = "CANCELADA"
)

var (
	AlertStatusPending   = "PENDIENTE"
	AlertStatusRead      = "LEIDA"
	AlertStatusResolved  = "RESUELTA"
	AlertStatusDiscarded = "DESCARTADA"
)

var (
	// ErrNotFound is returned when the referenced row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStaleStatus is returned by guarded updates when the stored status no
	// longer matches the expected pre-state.
	ErrStaleStatus = errors.New("stored status does not match expected status")
	// ErrDuplicateKey is returned by Alert.Insert when an open alert with the
	// same dedup key already exists.
	ErrDuplicateKey = errors.New("open alert with same dedup key already exists")
)

type Storage struct {
	Policy interface {
		ListActive(ctx context.Context) ([]Policy, error)
		Get(ctx context.Context, id int64) (*Policy, error)
		UpdateCluster(ctx context.Context, number string, cluster int) error
	}

	Collection interface {
		ListForPolicy(ctx context.Context, policyID int64) ([]Collection, error)
		Get(ctx context.Context, id int64) (*Collection, error)
		Update(ctx context.Context, collection *Collection, expectedStatus string) error
		Stats(ctx context.Context, now time.Time) (CollectionStats, error)
	}

	Alert interface {
		Insert(ctx context.Context, alert *Alert) error
		Get(ctx context.Context, id int64) (*Alert, error)
		ListOpenByKeys(ctx context.Context, keys []string) ([]Alert, error)
		CountOpenForPolicy(ctx context.Context, policyID int64) (int, error)
		Update(ctx context.Context, alert *Alert, expectedStatus string) error
		Stats(ctx context.Context, now time.Time) (AlertStats, error)
	}
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{
		Policy:     &PolicyStore{db: db},
		Collection: &CollectionStore{db: db},
		Alert:      &AlertStore{db: db},
	}
}
