package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigepol/risk-engine/internal/store"
)

// seedBook loads a small mixed portfolio: policy 1 expiring in 3 days, policy
// 2 deep in mora, policy 3 with nothing wrong.
func seedBook(mem *store.MemoryStorage) {
	seedActivePolicy(mem, 1, date(2025, time.March, 13))
	seedActivePolicy(mem, 2, date(2025, time.December, 1))
	seedActivePolicy(mem, 3, date(2025, time.December, 1))

	seedPendingCollection(mem, 10, 2, date(2025, time.January, 1))
	seedPendingCollection(mem, 11, 2, date(2025, time.February, 1))
	seedPendingCollection(mem, 12, 2, date(2025, time.June, 1))
}

func TestRunEvaluation(t *testing.T) {
	now := date(2025, time.March, 10)

	t.Run("aggregates alerts and classifications across the book", func(t *testing.T) {
		e, mem := newTestEngine(now)
		seedBook(mem)

		report, err := e.RunEvaluation(context.Background())
		require.NoError(t, err)

		assert.NotEmpty(t, report.RunID)
		assert.Equal(t, now, report.AsOf)
		assert.Equal(t, 3, report.PoliciesEvaluated)
		assert.Equal(t, 0, report.Errors)

		// Policy 1: expiring. Policy 2: overdue collections plus mora above
		// the critical bar. Policy 3: clean.
		assert.Equal(t, 3, report.AlertsCreated)
		assert.Equal(t, 1, report.AlertsByCategory[CategoryExpirations])
		assert.Equal(t, 2, report.AlertsByCategory[CategoryCollections])

		byPolicy := map[int64]Classification{}
		for _, c := range report.Classifications {
			byPolicy[c.PolicyID] = c
		}
		require.Len(t, byPolicy, 3)
		assert.Equal(t, RiskMedium, byPolicy[1].Level)
		assert.Equal(t, RiskCritical, byPolicy[2].Level)
		assert.Equal(t, RiskLow, byPolicy[3].Level)
		assert.Equal(t, 1, report.ClassificationsByLevel[RiskMedium])
		assert.Equal(t, 1, report.ClassificationsByLevel[RiskCritical])
		assert.Equal(t, 1, report.ClassificationsByLevel[RiskLow])

		// Unassigned policies are grouped under cluster -1.
		require.Len(t, report.ClusterStats, 1)
		assert.Equal(t, -1, report.ClusterStats[0].Cluster)
		assert.Equal(t, 3, report.ClusterStats[0].Policies)
	})

	t.Run("second pass same day creates nothing new", func(t *testing.T) {
		e, mem := newTestEngine(now)
		seedBook(mem)

		first, err := e.RunEvaluation(context.Background())
		require.NoError(t, err)
		require.Equal(t, 3, first.AlertsCreated)

		second, err := e.RunEvaluation(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, second.AlertsCreated)
		assert.Equal(t, 3, second.PoliciesEvaluated)
		assert.NotEqual(t, first.RunID, second.RunID)
		assert.Equal(t, 3, mem.AlertCount())
	})

	t.Run("one failing policy does not stop the pass", func(t *testing.T) {
		e, mem := newTestEngine(now)
		seedBook(mem)

		original := e.storage.Collection
		e.storage.Collection = &flakyCollectionStore{inner: original, failPolicyID: 2}

		report, err := e.RunEvaluation(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, report.PoliciesEvaluated)
		assert.Equal(t, 1, report.Errors)
		// Policy 1's expiring alert still lands.
		assert.Equal(t, 1, report.AlertsByCategory[CategoryExpirations])
	})

	t.Run("cancellation returns the partial report", func(t *testing.T) {
		e, mem := newTestEngine(now)
		seedBook(mem)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		report, err := e.RunEvaluation(ctx)
		require.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, report)
		assert.Equal(t, 0, report.PoliciesEvaluated)
		assert.Equal(t, 0, mem.AlertCount())
	})
}

// flakyCollectionStore fails ListForPolicy for one policy, leaving the rest of
// the book untouched.
type flakyCollectionStore struct {
	inner interface {
		ListForPolicy(ctx context.Context, policyID int64) ([]store.Collection, error)
		Get(ctx context.Context, id int64) (*store.Collection, error)
		Update(ctx context.Context, collection *store.Collection, expectedStatus string) error
		Stats(ctx context.Context, now time.Time) (store.CollectionStats, error)
	}
	failPolicyID int64
}

func (f *flakyCollectionStore) ListForPolicy(ctx context.Context, policyID int64) ([]store.Collection, error) {
	if policyID == f.failPolicyID {
		return nil, errors.New("connection reset by peer")
	}
	return f.inner.ListForPolicy(ctx, policyID)
}

func (f *flakyCollectionStore) Get(ctx context.Context, id int64) (*store.Collection, error) {
	return f.inner.Get(ctx, id)
}

func (f *flakyCollectionStore) Update(ctx context.Context, collection *store.Collection, expectedStatus string) error {
	return f.inner.Update(ctx, collection, expectedStatus)
}

func (f *flakyCollectionStore) Stats(ctx context.Context, now time.Time) (store.CollectionStats, error) {
	return f.inner.Stats(ctx, now)
}
