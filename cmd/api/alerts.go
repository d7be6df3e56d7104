package main

import (
	"net/http"

	"github.com/sigepol/risk-engine/internal/response"
	"github.com/sigepol/risk-engine/internal/store"
)

type AlertResponse = response.APIResponse[*store.Alert]
type AlertStatsResponse = response.APIResponse[store.AlertStats]

// @Summary		Mark alert read
// @Description	Moves a pending alert to read. Idempotent on already-read alerts.
// @Tags			Alerts
// @Produce		json
// @Param			id	path		int						true	"Alert ID"
// @Success		200	{object}	AlertResponse			"Alert marked as read"
// @Failure		404	{object}	response.ErrorResponse	"Alert not found"
// @Failure		409	{object}	response.ErrorResponse	"Alert already resolved or discarded"
// @Router			/alerts/{id}/read [patch]
func (app *application) handleMarkAlertRead(w http.ResponseWriter, r *http.Request) {
	app.applyAlertTransition(w, r, "read")
}

// @Summary		Resolve alert
// @Description	Moves a pending or read alert to resolved. Terminal.
// @Tags			Alerts
// @Produce		json
// @Param			id	path		int						true	"Alert ID"
// @Success		200	{object}	AlertResponse			"Alert resolved"
// @Failure		404	{object}	response.ErrorResponse	"Alert not found"
// @Failure		409	{object}	response.ErrorResponse	"Alert already resolved or discarded"
// @Router			/alerts/{id}/resolve [patch]
func (app *application) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	app.applyAlertTransition(w, r, "resolve")
}

// @Summary		Discard alert
// @Description	Moves a pending or read alert to discarded. Terminal.
// @Tags			Alerts
// @Produce		json
// @Param			id	path		int						true	"Alert ID"
// @Success		200	{object}	AlertResponse			"Alert discarded"
// @Failure		404	{object}	response.ErrorResponse	"Alert not found"
// @Failure		409	{object}	response.ErrorResponse	"Alert already resolved or discarded"
// @Router			/alerts/{id}/discard [patch]
func (app *application) handleDiscardAlert(w http.ResponseWriter, r *http.Request) {
	app.applyAlertTransition(w, r, "discard")
}

func (app *application) applyAlertTransition(w http.ResponseWriter, r *http.Request, transition string) {
	id, err := urlParamID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	var alert *store.Alert
	switch transition {
	case "read":
		alert, err = app.engine.MarkAlertRead(r.Context(), id)
	case "resolve":
		alert, err = app.engine.ResolveAlert(r.Context(), id)
	case "discard":
		alert, err = app.engine.DiscardAlert(r.Context(), id)
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := &AlertResponse{
		Success: true,
		Data:    alert,
		Message: "Alert transition applied",
	}

	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		Alert statistics
// @Description	Aggregate alert counts by state for the panel header.
// @Tags			Alerts
// @Produce		json
// @Success		200	{object}	AlertStatsResponse		"Statistics computed"
// @Failure		500	{object}	response.ErrorResponse	"Failed to compute statistics"
// @Router			/alerts/stats [get]
func (app *application) handleGetAlertStats(w http.ResponseWriter, r *http.Request) {
	stats, err := app.store.Alert.Stats(r.Context(), app.engine.Now())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to get alert stats: "+err.Error())
		return
	}

	resp := &AlertStatsResponse{
		Success: true,
		Data:    stats,
		Message: "Successfully computed alert statistics",
	}

	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}
