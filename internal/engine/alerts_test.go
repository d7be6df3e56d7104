package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigepol/risk-engine/internal/store"
)

func seedActivePolicy(mem *store.MemoryStorage, id int64, expiration time.Time) {
	mem.SeedPolicy(store.Policy{
		ID:             id,
		Number:         "POL-2025-042",
		ClientID:       9,
		PremiumUF:      decimal.NewFromInt(30),
		StartDate:      expiration.AddDate(-1, 0, 0),
		ExpirationDate: expiration,
		Status:         store.PolicyStatusActive,
	})
}

func runRules(t *testing.T, e *Engine, policyID int64) []store.Alert {
	t.Helper()
	ctx := context.Background()
	policy, err := e.storage.Policy.Get(ctx, policyID)
	require.NoError(t, err)
	collections, err := e.storage.Collection.ListForPolicy(ctx, policyID)
	require.NoError(t, err)
	created, err := e.evaluatePolicyRules(ctx, &policySnapshot{
		policy:      policy,
		collections: collections,
		now:         e.clock.Now(),
	})
	require.NoError(t, err)
	return created
}

func TestExpiringPolicyRule(t *testing.T) {
	now := date(2025, time.March, 10)

	t.Run("expires in 3 days raises high priority", func(t *testing.T) {
		e, mem := newTestEngine(now)
		seedActivePolicy(mem, 100, date(2025, time.March, 13))

		created := runRules(t, e, 100)
		require.Len(t, created, 1)
		assert.Equal(t, CategoryExpirations, created[0].Category)
		assert.Equal(t, PriorityHigh, created[0].Priority)
		assert.Equal(t, "policy_expiring", created[0].RuleID)
		require.NotNil(t, created[0].LimitDate)

		// Same day, same conditions: deduplication blocks a second alert.
		created = runRules(t, e, 100)
		assert.Empty(t, created)
		assert.Equal(t, 1, mem.AlertCount())
	})

	t.Run("expires in 20 days raises medium priority", func(t *testing.T) {
		e, mem := newTestEngine(now)
		seedActivePolicy(mem, 100, date(2025, time.March, 30))

		created := runRules(t, e, 100)
		require.Len(t, created, 1)
		assert.Equal(t, PriorityMedium, created[0].Priority)
	})

	t.Run("expires in 31 days raises nothing", func(t *testing.T) {
		e, mem := newTestEngine(now)
		seedActivePolicy(mem, 100, date(2025, time.April, 10))

		created := runRules(t, e, 100)
		assert.Empty(t, created)
	})

	t.Run("resolved alert allows a recurrence", func(t *testing.T) {
		e, mem := newTestEngine(now)
		seedActivePolicy(mem, 100, date(2025, time.March, 13))

		created := runRules(t, e, 100)
		require.Len(t, created, 1)

		_, err := e.ResolveAlert(context.Background(), created[0].ID)
		require.NoError(t, err)

		created = runRules(t, e, 100)
		require.Len(t, created, 1)
		assert.Equal(t, 2, mem.AlertCount())
	})
}

func TestExpiredPolicyRule(t *testing.T) {
	now := date(2025, time.March, 10)
	e, mem := newTestEngine(now)
	seedActivePolicy(mem, 100, date(2025, time.February, 1))

	created := runRules(t, e, 100)
	require.Len(t, created, 1)
	assert.Equal(t, CategoryExpirations, created[0].Category)
	assert.Equal(t, PriorityCritical, created[0].Priority)
	assert.Equal(t, "policy_expired", created[0].RuleID)
}

func TestOverdueCollectionRule(t *testing.T) {
	now := date(2025, time.March, 10)

	t.Run("40 days overdue raises high priority", func(t *testing.T) {
		e, mem := newTestEngine(now)
		seedActivePolicy(mem, 100, date(2025, time.December, 1))
		seedPendingCollection(mem, 1, 100, date(2025, time.January, 29))
		// A second, current obligation keeps the mora rate at the 0.5
		// boundary so only the overdue rule fires.
		seedPendingCollection(mem, 2, 100, date(2025, time.June, 1))

		c, err := e.storage.Collection.Get(context.Background(), 1)
		require.NoError(t, err)
		assert.True(t, IsOverdue(c, now))
		assert.Equal(t, 40, DaysOverdue(c, now))

		created := runRules(t, e, 100)
		require.Len(t, created, 1)
		assert.Equal(t, CategoryCollections, created[0].Category)
		assert.Equal(t, PriorityHigh, created[0].Priority)

		// Once paid and the prior alert resolved, the condition is gone.
		_, err = e.RegisterPayment(context.Background(), 1, PaymentInput{
			PaymentDate: now,
			Method:      "TRANSFERENCIA",
		})
		require.NoError(t, err)
		_, err = e.ResolveAlert(context.Background(), created[0].ID)
		require.NoError(t, err)

		created = runRules(t, e, 100)
		assert.Empty(t, created)
	})

	t.Run("10 days overdue raises medium priority", func(t *testing.T) {
		e, mem := newTestEngine(now)
		seedActivePolicy(mem, 100, date(2025, time.December, 1))
		seedPendingCollection(mem, 1, 100, date(2025, time.February, 28))
		seedPendingCollection(mem, 2, 100, date(2025, time.June, 1))

		created := runRules(t, e, 100)
		require.Len(t, created, 1)
		assert.Equal(t, PriorityMedium, created[0].Priority)
	})
}

func TestHighMoraRule(t *testing.T) {
	now := date(2025, time.March, 10)
	e, mem := newTestEngine(now)
	seedActivePolicy(mem, 100, date(2025, time.December, 1))
	// 2 of 3 collections overdue: mora rate 0.67 crosses the 0.5 bar. The
	// overdue-collection rule fires alongside on its own dedup key.
	seedPendingCollection(mem, 1, 100, date(2025, time.January, 1))
	seedPendingCollection(mem, 2, 100, date(2025, time.February, 1))
	seedPendingCollection(mem, 3, 100, date(2025, time.June, 1))

	created := runRules(t, e, 100)
	require.Len(t, created, 2)

	byRule := map[string]store.Alert{}
	for _, a := range created {
		byRule[a.RuleID] = a
	}
	require.Contains(t, byRule, "high_mora")
	assert.Equal(t, PriorityCritical, byRule["high_mora"].Priority)
	assert.Equal(t, CategoryCollections, byRule["high_mora"].Category)
	require.Contains(t, byRule, "collection_overdue")
}

func TestDedupKey(t *testing.T) {
	key := DedupKey(CategoryCollections, 100, "high_mora")
	assert.Equal(t, "COBRANZAS:100:high_mora", key)
}

func TestAlertTransitions(t *testing.T) {
	now := date(2025, time.March, 10)

	seedAlert := func(e *Engine, mem *store.MemoryStorage) store.Alert {
		seedActivePolicy(mem, 100, date(2025, time.March, 13))
		created := runRules(t, e, 100)
		require.Len(t, created, 1)
		return created[0]
	}

	t.Run("mark read stamps read_at and is idempotent", func(t *testing.T) {
		e, mem := newTestEngine(now)
		alert := seedAlert(e, mem)

		read, err := e.MarkAlertRead(context.Background(), alert.ID)
		require.NoError(t, err)
		assert.Equal(t, store.AlertStatusRead, read.Status)
		require.NotNil(t, read.ReadAt)

		again, err := e.MarkAlertRead(context.Background(), alert.ID)
		require.NoError(t, err)
		assert.Equal(t, store.AlertStatusRead, again.Status)
		assert.Equal(t, *read.ReadAt, *again.ReadAt)
	})

	t.Run("resolve from pending and from read", func(t *testing.T) {
		e, mem := newTestEngine(now)
		alert := seedAlert(e, mem)

		resolved, err := e.ResolveAlert(context.Background(), alert.ID)
		require.NoError(t, err)
		assert.Equal(t, store.AlertStatusResolved, resolved.Status)
		require.NotNil(t, resolved.ResolvedAt)

		// Terminal: nothing transitions out of RESUELTA.
		_, err = e.MarkAlertRead(context.Background(), alert.ID)
		var invalidState *InvalidStateError
		require.ErrorAs(t, err, &invalidState)
		_, err = e.ResolveAlert(context.Background(), alert.ID)
		require.ErrorAs(t, err, &invalidState)
		_, err = e.DiscardAlert(context.Background(), alert.ID)
		require.ErrorAs(t, err, &invalidState)
	})

	t.Run("discard directly from pending", func(t *testing.T) {
		e, mem := newTestEngine(now)
		alert := seedAlert(e, mem)

		discarded, err := e.DiscardAlert(context.Background(), alert.ID)
		require.NoError(t, err)
		assert.Equal(t, store.AlertStatusDiscarded, discarded.Status)
		assert.Nil(t, discarded.ResolvedAt)
	})

	t.Run("concurrent transition surfaces as conflict", func(t *testing.T) {
		e, mem := newTestEngine(now)
		alert := seedAlert(e, mem)

		// Another user resolves the alert between our read and write.
		original := e.storage.Alert
		e.storage.Alert = &racingAlertStore{inner: original, mem: mem, raceID: alert.ID}

		_, err := e.DiscardAlert(context.Background(), alert.ID)
		var conflict *ConcurrentModificationError
		require.ErrorAs(t, err, &conflict)
	})

	t.Run("already terminal rejects the transition outright", func(t *testing.T) {
		e, mem := newTestEngine(now)
		alert := seedAlert(e, mem)

		mem.ForceAlertStatus(alert.ID, store.AlertStatusResolved)
		_, err := e.DiscardAlert(context.Background(), alert.ID)
		var invalidState *InvalidStateError
		require.ErrorAs(t, err, &invalidState)
	})

	t.Run("missing alert", func(t *testing.T) {
		e, _ := newTestEngine(now)
		_, err := e.MarkAlertRead(context.Background(), 404)
		var notFound *NotFoundError
		require.ErrorAs(t, err, &notFound)
	})
}

// racingAlertStore flips the stored status right after the engine reads it,
// simulating a concurrent writer.
type racingAlertStore struct {
	inner interface {
		Insert(ctx context.Context, alert *store.Alert) error
		Get(ctx context.Context, id int64) (*store.Alert, error)
		ListOpenByKeys(ctx context.Context, keys []string) ([]store.Alert, error)
		CountOpenForPolicy(ctx context.Context, policyID int64) (int, error)
		Update(ctx context.Context, alert *store.Alert, expectedStatus string) error
		Stats(ctx context.Context, now time.Time) (store.AlertStats, error)
	}
	mem    *store.MemoryStorage
	raceID int64
}

func (r *racingAlertStore) Insert(ctx context.Context, alert *store.Alert) error {
	return r.inner.Insert(ctx, alert)
}

func (r *racingAlertStore) Get(ctx context.Context, id int64) (*store.Alert, error) {
	a, err := r.inner.Get(ctx, id)
	if err == nil && id == r.raceID {
		r.mem.ForceAlertStatus(id, store.AlertStatusResolved)
	}
	return a, err
}

func (r *racingAlertStore) ListOpenByKeys(ctx context.Context, keys []string) ([]store.Alert, error) {
	return r.inner.ListOpenByKeys(ctx, keys)
}

func (r *racingAlertStore) CountOpenForPolicy(ctx context.Context, policyID int64) (int, error) {
	return r.inner.CountOpenForPolicy(ctx, policyID)
}

func (r *racingAlertStore) Update(ctx context.Context, alert *store.Alert, expectedStatus string) error {
	return r.inner.Update(ctx, alert, expectedStatus)
}

func (r *racingAlertStore) Stats(ctx context.Context, now time.Time) (store.AlertStats, error) {
	return r.inner.Stats(ctx, now)
}
