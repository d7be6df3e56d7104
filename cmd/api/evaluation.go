package main

import (
	"net/http"
	"strconv"

	"github.com/sigepol/risk-engine/internal/engine"
	"github.com/sigepol/risk-engine/internal/engine/clusterimport"
	"github.com/sigepol/risk-engine/internal/response"
)

type EvaluationResponse = response.APIResponse[*engine.Report]
type ClassificationResponse = response.APIResponse[*engine.Classification]
type ClusterImportResponse = response.APIResponse[*clusterimport.Summary]

// @Summary		Run evaluation
// @Description	Runs the alert rule set and risk classifier over all active policies. A timed-out request keeps the alerts already persisted.
// @Tags			Evaluations
// @Produce		json
// @Success		200	{object}	EvaluationResponse		"Evaluation completed"
// @Failure		500	{object}	response.ErrorResponse	"Evaluation failed"
// @Router			/evaluations [post]
func (app *application) handleRunEvaluation(w http.ResponseWriter, r *http.Request) {
	report, err := app.engine.RunEvaluation(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "evaluation failed: "+err.Error())
		return
	}

	resp := &EvaluationResponse{
		Success: true,
		Data:    report,
		Message: "Evaluation pass completed",
	}

	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		Classify policy
// @Description	Computes the risk classification for one policy. The cluster query parameter overrides the stored assignment.
// @Tags			Policies
// @Produce		json
// @Param			id		path		int	true	"Policy ID"
// @Param			cluster	query		int	false	"Cluster id override"
// @Success		200		{object}	ClassificationResponse	"Classification computed"
// @Failure		404		{object}	response.ErrorResponse	"Policy not found"
// @Router			/policies/{id}/classification [get]
func (app *application) handleClassifyPolicy(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid policy id")
		return
	}

	cluster := -1
	if clusterParam := r.URL.Query().Get("cluster"); clusterParam != "" {
		cluster, err = strconv.Atoi(clusterParam)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid cluster parameter")
			return
		}
	} else {
		policy, err := app.store.Policy.Get(r.Context(), id)
		if err == nil && policy.Cluster != nil {
			cluster = *policy.Cluster
		}
	}

	classification, err := app.engine.ClassifyPolicy(r.Context(), id, cluster)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := &ClassificationResponse{
		Success: true,
		Data:    classification,
		Message: "Classification computed",
	}

	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		Import cluster results
// @Description	Ingests the CSV emitted by the external clustering batch and applies cluster assignments to policies.
// @Tags			ML
// @Accept			text/csv
// @Produce		json
// @Success		200	{object}	ClusterImportResponse	"Import processed"
// @Failure		400	{object}	response.ErrorResponse	"Malformed CSV"
// @Router			/ml/import [post]
func (app *application) handleImportClusterResults(w http.ResponseWriter, r *http.Request) {
	summary, err := app.importer.Run(r.Context(), r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "cluster import failed: "+err.Error())
		return
	}

	resp := &ClusterImportResponse{
		Success: true,
		Data:    summary,
		Message: "Cluster results imported",
	}

	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}
