package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryStorage is an in-memory Storage implementation with the same guarded
// update and dedup semantics as the postgres stores. It backs the test suite
// and the evaluator's dry-run mode.
type MemoryStorage struct {
	mu          sync.RWMutex
	policies    map[int64]Policy
	collections map[int64]Collection
	alerts      map[int64]Alert
	nextAlertID int64
	now         func() time.Time
}

func NewMemoryStorage() (*Storage, *MemoryStorage) {
	m := &MemoryStorage{
		policies:    make(map[int64]Policy),
		collections: make(map[int64]Collection),
		alerts:      make(map[int64]Alert),
		nextAlertID: 1,
		now:         time.Now,
	}
	return &Storage{
		Policy:     (*memoryPolicyStore)(m),
		Collection: (*memoryCollectionStore)(m),
		Alert:      (*memoryAlertStore)(m),
	}, m
}

// SeedPolicy and SeedCollection load fixture rows. Zero timestamps are filled
// with the current time.
func (m *MemoryStorage) SeedPolicy(p Policy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now()
	}
	p.UpdatedAt = p.CreatedAt
	m.policies[p.ID] = p
}

func (m *MemoryStorage) SeedCollection(c Collection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.Status == "" {
		c.Status = CollectionStatusPending
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now()
	}
	c.UpdatedAt = c.CreatedAt
	m.collections[c.ID] = c
}

// ForceCollectionStatus rewrites a stored status directly, bypassing the
// guarded update. Tests use it to simulate a concurrent writer.
func (m *MemoryStorage) ForceCollectionStatus(id int64, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collections[id]
	c.Status = status
	m.collections[id] = c
}

func (m *MemoryStorage) ForceAlertStatus(id int64, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.alerts[id]
	a.Status = status
	m.alerts[id] = a
}

func (m *MemoryStorage) AlertCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.alerts)
}

func (m *MemoryStorage) AllAlerts() []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	alerts := make([]Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		alerts = append(alerts, a)
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].ID < alerts[j].ID })
	return alerts
}

type memoryPolicyStore MemoryStorage

func (m *memoryPolicyStore) ListActive(ctx context.Context) ([]Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	policies := []Policy{}
	for _, p := range m.policies {
		if p.Status == PolicyStatusActive {
			policies = append(policies, p)
		}
	}
	sort.Slice(policies, func(i, j int) bool {
		return policies[i].ExpirationDate.Before(policies[j].ExpirationDate)
	})
	return policies, nil
}

func (m *memoryPolicyStore) Get(ctx context.Context, id int64) (*Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.policies[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *memoryPolicyStore) UpdateCluster(ctx context.Context, number string, cluster int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.policies {
		if p.Number == number {
			p.Cluster = &cluster
			p.UpdatedAt = m.now()
			m.policies[id] = p
			return nil
		}
	}
	return ErrNotFound
}

type memoryCollectionStore MemoryStorage

func (m *memoryCollectionStore) ListForPolicy(ctx context.Context, policyID int64) ([]Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	collections := []Collection{}
	for _, c := range m.collections {
		if c.PolicyID == policyID {
			collections = append(collections, c)
		}
	}
	sort.Slice(collections, func(i, j int) bool {
		return collections[i].DueDate.Before(collections[j].DueDate)
	})
	return collections, nil
}

func (m *memoryCollectionStore) Get(ctx context.Context, id int64) (*Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *memoryCollectionStore) Update(ctx context.Context, collection *Collection, expectedStatus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.collections[collection.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Status != expectedStatus {
		return ErrStaleStatus
	}
	collection.UpdatedAt = m.now()
	m.collections[collection.ID] = *collection
	return nil
}

func (m *memoryCollectionStore) Stats(ctx context.Context, now time.Time) (CollectionStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := CollectionStats{PendingAmountUF: decimal.Zero}
	overdueDays := 0
	for _, c := range m.collections {
		stats.Total++
		switch c.Status {
		case CollectionStatusPending:
			stats.Pending++
		case CollectionStatusInProcess:
			stats.InProcess++
		case CollectionStatusPaid:
			stats.Paid++
		case CollectionStatusCancelled:
			stats.Cancelled++
		}
		if c.Status == CollectionStatusPending || c.Status == CollectionStatusInProcess {
			stats.PendingAmountUF = stats.PendingAmountUF.Add(c.AmountUF)
			if c.DueDate.Before(now) {
				stats.Overdue++
				overdueDays += int(now.Sub(c.DueDate).Hours() / 24)
			}
		}
	}
	if stats.Overdue > 0 {
		stats.AvgDaysOverdue = float64(overdueDays) / float64(stats.Overdue)
	}
	return stats, nil
}

type memoryAlertStore MemoryStorage

func (m *memoryAlertStore) Insert(ctx context.Context, alert *Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.DedupKey == alert.DedupKey &&
			(a.Status == AlertStatusPending || a.Status == AlertStatusRead) {
			return ErrDuplicateKey
		}
	}
	alert.ID = m.nextAlertID
	m.nextAlertID++
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = m.now()
	}
	m.alerts[alert.ID] = *alert
	return nil
}

func (m *memoryAlertStore) Get(ctx context.Context, id int64) (*Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *memoryAlertStore) ListOpenByKeys(ctx context.Context, keys []string) ([]Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}
	alerts := []Alert{}
	for _, a := range m.alerts {
		if _, ok := keySet[a.DedupKey]; !ok {
			continue
		}
		if a.Status == AlertStatusPending || a.Status == AlertStatusRead {
			alerts = append(alerts, a)
		}
	}
	return alerts, nil
}

func (m *memoryAlertStore) CountOpenForPolicy(ctx context.Context, policyID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, a := range m.alerts {
		if a.PolicyID != nil && *a.PolicyID == policyID &&
			(a.Status == AlertStatusPending || a.Status == AlertStatusRead) {
			count++
		}
	}
	return count, nil
}

func (m *memoryAlertStore) Update(ctx context.Context, alert *Alert, expectedStatus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.alerts[alert.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Status != expectedStatus {
		return ErrStaleStatus
	}
	m.alerts[alert.ID] = *alert
	return nil
}

func (m *memoryAlertStore) Stats(ctx context.Context, now time.Time) (AlertStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := AlertStats{}
	for _, a := range m.alerts {
		open := a.Status == AlertStatusPending || a.Status == AlertStatusRead
		switch a.Status {
		case AlertStatusPending:
			stats.Pending++
		case AlertStatusRead:
			stats.Read++
		case AlertStatusResolved:
			stats.Resolved++
		case AlertStatusDiscarded:
			stats.Discarded++
		}
		if open && a.Priority == "CRITICA" {
			stats.OpenCritical++
		}
		if open && a.LimitDate != nil && a.LimitDate.Before(now) {
			stats.PastLimit++
		}
	}
	return stats, nil
}
