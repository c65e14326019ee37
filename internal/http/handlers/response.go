package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/kikootwo/multiview/internal/apperr"
)

// jsonError is the {error, detail?} envelope §6/§7 require, written
// directly by the raw Chi handlers that bypass huma (/stream,
// /api/proxy-image) so their error responses match the huma-routed
// endpoints' shape exactly.
type jsonError struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeJSONError writes err as the standard envelope at the given status.
func writeJSONError(w http.ResponseWriter, status int, err error) {
	env := apperr.EnvelopeFor(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonError{Error: string(env.Error), Detail: env.Detail})
}
