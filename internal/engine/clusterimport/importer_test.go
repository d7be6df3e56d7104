package clusterimport

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigepol/risk-engine/internal/logger"
	"github.com/sigepol/risk-engine/internal/store"
)

func newTestImporter() (*Importer, *store.Storage, *store.MemoryStorage) {
	storage, mem := store.NewMemoryStorage()
	appLogger := &logger.Logger{MinLevel: logger.LevelError}
	return New(storage, appLogger), storage, mem
}

func seedPolicy(mem *store.MemoryStorage, id int64, number string) {
	mem.SeedPolicy(store.Policy{
		ID:             id,
		Number:         number,
		ClientID:       1,
		PremiumUF:      decimal.NewFromInt(25),
		StartDate:      time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
		ExpirationDate: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		Status:         store.PolicyStatusActive,
	})
}

func TestImporterRun(t *testing.T) {
	t.Run("applies assignments and counts the rest", func(t *testing.T) {
		imp, storage, mem := newTestImporter()
		seedPolicy(mem, 1, "POL-001")
		seedPolicy(mem, 2, "POL-002")

		csv := strings.Join([]string{
			"policy_number,cluster",
			"POL-001,2",
			"POL-002,1",
			"POL-404,0",
			"POL-001,-1",
		}, "\n")

		summary, err := imp.Run(context.Background(), strings.NewReader(csv))
		require.NoError(t, err)
		assert.Equal(t, 4, summary.Rows)
		assert.Equal(t, 2, summary.Updated)
		assert.Equal(t, 1, summary.NotFound)
		assert.Equal(t, 1, summary.Malformed)

		policy, err := storage.Policy.Get(context.Background(), 1)
		require.NoError(t, err)
		require.NotNil(t, policy.Cluster)
		assert.Equal(t, 2, *policy.Cluster)

		// The run leaves an IMPORTACIONES alert; observations raise it to
		// MEDIA.
		alerts := mem.AllAlerts()
		require.Len(t, alerts, 1)
		assert.Equal(t, "IMPORTACIONES", alerts[0].Category)
		assert.Equal(t, "MEDIA", alerts[0].Priority)
	})

	t.Run("clean import records a low priority alert once", func(t *testing.T) {
		imp, _, mem := newTestImporter()
		seedPolicy(mem, 1, "POL-001")

		csv := "policy_number,cluster\nPOL-001,3\n"
		summary, err := imp.Run(context.Background(), strings.NewReader(csv))
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Updated)

		alerts := mem.AllAlerts()
		require.Len(t, alerts, 1)
		assert.Equal(t, "BAJA", alerts[0].Priority)

		// A rerun while the alert is still open dedups instead of piling up.
		_, err = imp.Run(context.Background(), strings.NewReader(csv))
		require.NoError(t, err)
		assert.Equal(t, 1, mem.AlertCount())
	})

	t.Run("missing required columns", func(t *testing.T) {
		imp, _, _ := newTestImporter()

		_, err := imp.Run(context.Background(), strings.NewReader("numero,grupo\nPOL-001,2\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "policy_number")
	})
}
