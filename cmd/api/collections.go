package main

import (
	"net/http"

	"github.com/sigepol/risk-engine/internal/engine"
	"github.com/sigepol/risk-engine/internal/response"
	"github.com/sigepol/risk-engine/internal/store"
)

type CollectionResponse = response.APIResponse[*store.Collection]
type CollectionStatsResponse = response.APIResponse[store.CollectionStats]

// @Summary		Register payment
// @Description	Registers the payment for a pending collection. Write-once: a second call fails with 409.
// @Tags			Collections
// @Accept			json
// @Produce		json
// @Param			id		path		int																						true	"Collection ID"
// @Param			payment	body		object{payment_date:string,method:string,document_number:string,observations:string}	true	"Payment details"
// @Success		200		{object}	CollectionResponse		"Payment registered"
// @Failure		400		{object}	response.ErrorResponse	"Invalid payload"
// @Failure		404		{object}	response.ErrorResponse	"Collection not found"
// @Failure		409		{object}	response.ErrorResponse	"Collection already paid or cancelled, or modified concurrently"
// @Router			/collections/{id}/payment [post]
func (app *application) handleRegisterPayment(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid collection id")
		return
	}

	var input struct {
		PaymentDate    string `json:"payment_date" validate:"required"`
		Method         string `json:"method" validate:"required"`
		DocumentNumber string `json:"document_number"`
		Observations   string `json:"observations"`
	}

	if err := readJSON(w, r, &input); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := app.validate.Struct(input); err != nil {
		writeJSONError(w, http.StatusBadRequest, "missing required fields: "+err.Error())
		return
	}

	paymentDate, err := parseTime(input.PaymentDate)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid payment_date format (YYYY-MM-DD expected)")
		return
	}

	collection, err := app.engine.RegisterPayment(r.Context(), id, engine.PaymentInput{
		PaymentDate:    paymentDate,
		Method:         input.Method,
		DocumentNumber: input.DocumentNumber,
		Observations:   input.Observations,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := &CollectionResponse{
		Success: true,
		Data:    collection,
		Message: "Payment registered",
	}

	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		Cancel collection
// @Description	Cancels a pending collection. Requires a non-empty reason.
// @Tags			Collections
// @Accept			json
// @Produce		json
// @Param			id		path		int						true	"Collection ID"
// @Param			cancel	body		object{reason:string}	true	"Cancellation reason"
// @Success		200		{object}	CollectionResponse		"Collection cancelled"
// @Failure		400		{object}	response.ErrorResponse	"Missing reason"
// @Failure		404		{object}	response.ErrorResponse	"Collection not found"
// @Failure		409		{object}	response.ErrorResponse	"Collection already paid or cancelled"
// @Router			/collections/{id}/cancel [post]
func (app *application) handleCancelCollection(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid collection id")
		return
	}

	var input struct {
		Reason string `json:"reason"`
	}

	if err := readJSON(w, r, &input); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	collection, err := app.engine.CancelCollection(r.Context(), id, input.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := &CollectionResponse{
		Success: true,
		Data:    collection,
		Message: "Collection cancelled",
	}

	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		Collection statistics
// @Description	Aggregate counts and amounts over the collections book.
// @Tags			Collections
// @Produce		json
// @Success		200	{object}	CollectionStatsResponse	"Statistics computed"
// @Failure		500	{object}	response.ErrorResponse	"Failed to compute statistics"
// @Router			/collections/stats [get]
func (app *application) handleGetCollectionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := app.store.Collection.Stats(r.Context(), app.engine.Now())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to get collection stats: "+err.Error())
		return
	}

	resp := &CollectionStatsResponse{
		Success: true,
		Data:    stats,
		Message: "Successfully computed collection statistics",
	}

	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}
