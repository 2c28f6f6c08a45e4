// Package httpx holds the response helpers shared by all handler
// packages: JSON encoding and the {code, message, details} error
// envelope.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/RustySnipers/optio/internal/apperror"

	"github.com/rs/zerolog/log"
)

// WriteJSON encodes v as the response body with the given status
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// WriteError converts err into the uniform error envelope. Validation
// errors are expected traffic and logged at debug; everything else at
// error with the full cause.
func WriteError(w http.ResponseWriter, err error) {
	status := apperror.HTTPStatus(err)
	envelope := apperror.ToEnvelope(err)

	if apperror.KindOf(err) == apperror.KindValidation {
		log.Debug().Str("code", envelope.Code).Str("message", envelope.Message).Msg("Request rejected")
	} else {
		log.Error().Err(err).Str("code", envelope.Code).Msg("Request failed")
	}

	WriteJSON(w, status, envelope)
}

// DecodeJSON parses the request body into v, returning a validation
// error suitable for WriteError on malformed input
func DecodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperror.Validation("Invalid JSON body")
	}
	return nil
}
