package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"commauth/internal/apperror"
	"commauth/internal/token"
)

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

// writeError maps the error taxonomy to HTTP statuses. Verification
// failures on inbound tokens are client errors, not server faults.
func writeError(w http.ResponseWriter, err error) {
	var badReq *apperror.BadRequestError
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.As(err, &badReq):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad request", Detail: badReq.Reason})
	case errors.Is(err, apperror.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "insufficient permissions"})
	case errors.Is(err, token.ErrSignatureInvalid), errors.Is(err, token.ErrMalformed):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid token"})
	default:
		log.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
