package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	checkout "github.com/graypay/checkout-go"
)

const maxBodyBytes = 1 << 20

// decodeJSON decodes a request body strictly: unknown fields and trailing
// content are rejected.
func decodeJSON(body io.Reader, v any) error {
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if dec.More() {
		return errors.New("unexpected content after JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps a failure onto an HTTP status and serializes the
// structured error body.
func writeError(w http.ResponseWriter, err error) {
	var cerr *checkout.Error
	if errors.As(err, &cerr) {
		writeStatusError(w, statusForKind(cerr.Kind), cerr)
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"kind":    "server_error",
		"message": "internal server error",
	})
}

func writeStatusError(w http.ResponseWriter, status int, err *checkout.Error) {
	writeJSON(w, status, err)
}

func statusForKind(kind checkout.ErrorKind) int {
	switch kind {
	case checkout.ErrorKindValidation:
		return http.StatusBadRequest
	case checkout.ErrorKindState:
		return http.StatusConflict
	case checkout.ErrorKindNetwork, checkout.ErrorKindProtocol:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
