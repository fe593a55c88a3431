package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kalambet/tenderscope/internal/tender"
)

// errorBody is the error envelope. Detail is the display string; Errors
// carries the structured causes it was built from.
type errorBody struct {
	Detail string       `json:"detail"`
	Errors []errorEntry `json:"errors"`
}

type errorEntry struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, errorBody{
		Detail: detail,
		Errors: []errorEntry{{Code: code, Message: detail}},
	})
}

// writeServiceError maps a pipeline error to a status code and envelope.
// Internal failures are logged and reported without their cause.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var pe *tender.ParseError
	var dm *tender.DimensionMismatchError
	switch {
	case errors.As(err, &pe):
		writeError(w, http.StatusBadRequest, "parse_error", pe.Error())
	case errors.Is(err, tender.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, tender.ErrIngestionInProgress):
		writeError(w, http.StatusConflict, "ingestion_in_progress", "an ingestion is already running, retry when it completes")
	case errors.As(err, &dm):
		logger.Error("embedding dimension mismatch", "want", dm.Want, "got", dm.Got)
		writeError(w, http.StatusInternalServerError, "embedding_dimension_mismatch", "search is misconfigured: the embedding model does not match the indexed data")
	default:
		logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
