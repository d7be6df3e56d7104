package main

import (
	"errors"
	"net/http"

	"github.com/sigepol/risk-engine/internal/engine"
)

// writeEngineError maps the engine's typed failures onto HTTP statuses.
// Expected business conditions (already paid, already resolved, concurrent
// edit) surface as client-visible statuses, never 500s.
func writeEngineError(w http.ResponseWriter, err error) {
	var notFound *engine.NotFoundError
	var invalidState *engine.InvalidStateError
	var concurrent *engine.ConcurrentModificationError
	var validation *engine.ValidationError

	switch {
	case errors.As(err, &notFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &invalidState):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.As(err, &concurrent):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.As(err, &validation):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
