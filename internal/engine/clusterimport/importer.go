// Package clusterimport ingests the CSV the external K-Means batch emits and
// applies the cluster assignments to the policy book.
package clusterimport

import (
	"context"
	"fmt"
	"io"

	"github.com/go-gota/gota/dataframe"
	"golang.org/x/text/encoding/charmap"

	"github.com/sigepol/risk-engine/internal/logger"
	"github.com/sigepol/risk-engine/internal/store"
)

// Expected CSV columns. The batch writes Windows-1252 like the rest of the
// back-office exports, so the reader decodes before parsing.
const (
	colPolicyNumber = "policy_number"
	colCluster      = "cluster"
)

// Summary reports the outcome of one cluster-results import.
type Summary struct {
	Rows      int `json:"rows"`
	Updated   int `json:"updated"`
	NotFound  int `json:"not_found"`
	Malformed int `json:"malformed"`
}

type Importer struct {
	storage   *store.Storage
	appLogger *logger.Logger
}

func New(storage *store.Storage, appLogger *logger.Logger) *Importer {
	return &Importer{storage: storage, appLogger: appLogger}
}

// Run parses the CSV and writes cluster assignments to matching policies.
// Malformed rows and unknown policy numbers are counted and logged, never
// fatal; an IMPORTACIONES alert summarizing the run is left on the panel.
func (imp *Importer) Run(ctx context.Context, r io.Reader) (*Summary, error) {
	const component = "ClusterImport"

	decoded := charmap.Windows1252.NewDecoder().Reader(r)
	df := dataframe.ReadCSV(decoded, dataframe.WithLazyQuotes(true))
	if df.Err != nil {
		return nil, fmt.Errorf("failed to parse cluster results CSV: %w", df.Err)
	}

	names := df.Names()
	if !containsString(names, colPolicyNumber) || !containsString(names, colCluster) {
		return nil, fmt.Errorf("cluster results CSV missing required columns %q and %q", colPolicyNumber, colCluster)
	}

	summary := &Summary{Rows: df.Nrow()}
	imp.appLogger.Info(component, "Importing cluster results: rows=%d", summary.Rows)

	for row := 0; row < df.Nrow(); row++ {
		number := df.Col(colPolicyNumber).Elem(row).String()
		cluster, err := df.Col(colCluster).Elem(row).Int()
		if number == "" || err != nil || cluster < 0 {
			summary.Malformed++
			imp.appLogger.Warn(component, "Skipping malformed row %d: number=%q err=%v", row, number, err)
			continue
		}

		err = imp.storage.Policy.UpdateCluster(ctx, number, cluster)
		if err == store.ErrNotFound {
			summary.NotFound++
			imp.appLogger.Warn(component, "Policy %s not found for cluster assignment", number)
			continue
		}
		if err != nil {
			return summary, fmt.Errorf("failed to update cluster for policy %s: %w", number, err)
		}
		summary.Updated++
	}

	imp.recordImportAlert(ctx, summary)

	imp.appLogger.Info(component, "Cluster import complete: updated=%d notFound=%d malformed=%d",
		summary.Updated, summary.NotFound, summary.Malformed)
	return summary, nil
}

// recordImportAlert leaves a panel alert describing the run. A failure here
// does not fail the import.
func (imp *Importer) recordImportAlert(ctx context.Context, summary *Summary) {
	const component = "ClusterImport"

	priority := "BAJA"
	title := "Resultados de clustering importados"
	if summary.Malformed > 0 || summary.NotFound > 0 {
		priority = "MEDIA"
		title = "Importación de clustering con observaciones"
	}

	alert := &store.Alert{
		Category: "IMPORTACIONES",
		Priority: priority,
		Status:   store.AlertStatusPending,
		Title:    title,
		Message: fmt.Sprintf("Se procesaron %d filas: %d pólizas actualizadas, %d no encontradas, %d con errores",
			summary.Rows, summary.Updated, summary.NotFound, summary.Malformed),
		RuleID:   "cluster_import",
		DedupKey: "IMPORTACIONES:0:cluster_import",
	}

	err := imp.storage.Alert.Insert(ctx, alert)
	if err != nil && err != store.ErrDuplicateKey {
		imp.appLogger.Error(component, "Failed to record import alert: %v", err)
	}
}

func containsString(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
