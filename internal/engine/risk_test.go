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

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		moraRate   float64
		alertCount int
		want       RiskLevel
	}{
		{"clean book", 0.0, 0, RiskLow},
		{"mora exactly at low bound", 0.10, 0, RiskLow},
		{"mora just over low bound", 0.11, 0, RiskMedium},
		{"single alert", 0.0, 1, RiskMedium},
		{"mora exactly at medium bound", 0.30, 0, RiskMedium},
		{"mora just over medium bound", 0.31, 0, RiskHigh},
		{"three alerts", 0.0, 3, RiskHigh},
		{"mora exactly at high bound", 0.50, 0, RiskHigh},
		{"mora just over high bound", 0.51, 0, RiskCritical},
		{"six alerts", 0.0, 6, RiskCritical},
		{"four of ten overdue", 0.4, 0, RiskHigh},
		{"low mora with many alerts", 0.05, 6, RiskCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.moraRate, tt.alertCount))
		})
	}
}

func TestClassifyIsPure(t *testing.T) {
	for i := 0; i < 3; i++ {
		assert.Equal(t, RiskHigh, Classify(0.4, 0))
	}
}

func TestMoraRate(t *testing.T) {
	now := date(2025, time.March, 10)

	t.Run("no collections yields zero", func(t *testing.T) {
		assert.Equal(t, 0.0, MoraRate(nil, now))
	})

	t.Run("four of ten overdue", func(t *testing.T) {
		collections := make([]store.Collection, 0, 10)
		for i := 0; i < 4; i++ {
			collections = append(collections, store.Collection{
				Status:  store.CollectionStatusPending,
				DueDate: date(2025, time.January, 1),
			})
		}
		for i := 0; i < 6; i++ {
			collections = append(collections, store.Collection{
				Status:  store.CollectionStatusPending,
				DueDate: date(2025, time.June, 1),
			})
		}
		assert.InDelta(t, 0.4, MoraRate(collections, now), 1e-9)
	})

	t.Run("paid collections do not count as overdue", func(t *testing.T) {
		paymentDate := date(2025, time.February, 1)
		collections := []store.Collection{
			{Status: store.CollectionStatusPaid, DueDate: date(2025, time.January, 1), PaymentDate: &paymentDate},
			{Status: store.CollectionStatusPending, DueDate: date(2025, time.June, 1)},
		}
		assert.Equal(t, 0.0, MoraRate(collections, now))
	})
}

func TestClusterProfile(t *testing.T) {
	assert.Equal(t, "Producción baja", ClusterProfile(0))
	assert.Equal(t, "Cartera estable", ClusterProfile(1))
	assert.Equal(t, "Sin perfil", ClusterProfile(42))
	assert.Equal(t, "Sin perfil", ClusterProfile(-1))
}

func TestClassifyPolicy(t *testing.T) {
	now := date(2025, time.March, 10)
	e, mem := newTestEngine(now)

	mem.SeedPolicy(store.Policy{
		ID:             100,
		Number:         "POL-2025-001",
		ClientID:       7,
		PremiumUF:      decimal.NewFromInt(50),
		StartDate:      date(2024, time.April, 1),
		ExpirationDate: date(2025, time.April, 1),
		Status:         store.PolicyStatusActive,
	})
	// 2 of 4 collections overdue: mora rate 0.5 classifies as ALTO.
	seedPendingCollection(mem, 1, 100, date(2025, time.January, 1))
	seedPendingCollection(mem, 2, 100, date(2025, time.February, 1))
	seedPendingCollection(mem, 3, 100, date(2025, time.June, 1))
	seedPendingCollection(mem, 4, 100, date(2025, time.July, 1))

	classification, err := e.ClassifyPolicy(context.Background(), 100, 2)
	require.NoError(t, err)
	assert.Equal(t, "POL-2025-001", classification.PolicyNumber)
	assert.Equal(t, 2, classification.ClusterID)
	assert.Equal(t, "Alto valor", classification.ClusterProfile)
	assert.InDelta(t, 0.5, classification.MoraRate, 1e-9)
	assert.Equal(t, 0, classification.AlertCount)
	assert.Equal(t, RiskHigh, classification.Level)

	t.Run("cluster id never moves the level", func(t *testing.T) {
		other, err := e.ClassifyPolicy(context.Background(), 100, 0)
		require.NoError(t, err)
		assert.Equal(t, classification.Level, other.Level)
		assert.Equal(t, "Producción baja", other.ClusterProfile)
	})

	t.Run("missing policy", func(t *testing.T) {
		_, err := e.ClassifyPolicy(context.Background(), 999, 0)
		var notFound *NotFoundError
		require.ErrorAs(t, err, &notFound)
	})
}
