package api

import (
	"encoding/json"
	"net/http"

	"github.com/obscura-systems/wallet-core/internal/werr"
)

// ErrorBody is the JSON error envelope. Only the user-facing message
// crosses the API boundary; internal detail stays in the logs.
type ErrorBody struct {
	Message string `json:"message"`
}

// ErrorResponse wraps an ErrorBody.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// respondError maps a service error onto the wire.
func respondError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(werr.HTTPStatus(err))
	json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorBody{Message: werr.UserMessage(err)}})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses a JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return werr.InvalidData("request body decode failed: "+err.Error(), "Malformed request body")
	}
	return nil
}
