package middleware

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// writeJSONError writes a JSON error body. The correlation id set earlier in
// the chain is echoed so callers can quote it.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg, CorrelationID: w.Header().Get(correlationHeader)})
}
